package metrics

import (
	"time"

	"photo-gallery/internal/filesystem"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/workers"
)

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records filesystem retry
// metrics.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op string) {
	FilesystemRetryAttempts.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op string) {
	FilesystemRetrySuccess.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op string) {
	FilesystemRetryFailures.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveTransientError(op string) {
	FilesystemTransientErrors.WithLabelValues(op).Inc()
}

// poolObserver implements workers.PoolObserver.
type poolObserver struct{}

// NewPoolObserver creates an observer that records decode pool metrics.
func NewPoolObserver() workers.PoolObserver {
	return &poolObserver{}
}

func (o *poolObserver) TaskSubmitted(lane workers.Priority, n int) {
	PoolTasksSubmitted.WithLabelValues(lane.String()).Add(float64(n))
}

func (o *poolObserver) TaskCompleted(lane workers.Priority) {
	PoolTasksCompleted.WithLabelValues(lane.String()).Inc()
}

func (o *poolObserver) TaskPanicked(lane workers.Priority) {
	PoolTaskPanics.WithLabelValues(lane.String()).Inc()
}

func (o *poolObserver) TasksPurged(lane workers.Priority, n int) {
	PoolTasksPurged.WithLabelValues(lane.String()).Add(float64(n))
}

// pipelineObserver implements pipeline.Observer.
type pipelineObserver struct{}

// NewPipelineObserver creates an observer that records thumbnail pipeline
// events.
func NewPipelineObserver() pipeline.Observer {
	return &pipelineObserver{}
}

func (o *pipelineObserver) ThumbnailServed(tier pipeline.Tier) {
	ThumbnailServedTotal.WithLabelValues(string(tier)).Inc()
}

func (o *pipelineObserver) DecodeFinished(tier pipeline.Tier, d time.Duration) {
	ThumbnailDecodeDuration.WithLabelValues(string(tier)).Observe(d.Seconds())
}

func (o *pipelineObserver) DecodeFailed() {
	ThumbnailDecodeFailures.Inc()
}

func (o *pipelineObserver) StaleDiscarded() {
	ThumbnailStaleDiscards.Inc()
}

func (o *pipelineObserver) Evicted(evicted, demoted int) {
	ThumbnailEvictions.Add(float64(evicted))
	ThumbnailDemotions.Add(float64(demoted))
}

func (o *pipelineObserver) GenerationChanged(gen uint64) {
	PipelineGeneration.Set(float64(gen))
}
