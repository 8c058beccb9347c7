package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"photo-gallery/internal/albums"
	"photo-gallery/internal/library"
	"photo-gallery/internal/media"
	"photo-gallery/internal/memory"
	"photo-gallery/internal/pipeline"
	"photo-gallery/internal/render"
	"photo-gallery/internal/startup"
)

type testServer struct {
	lib     *library.Library
	h       *Handlers
	handler http.Handler
	folder  string
	images  []string
}

// writeImage writes a small opaque PNG.
func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 7), B: 90, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// newTestServer builds a library over a folder of three images, runs a
// frame loop and returns the status router. withStore adds an album store.
func newTestServer(t *testing.T, withStore bool, opts RouterOptions) *testServer {
	t.Helper()
	folder := t.TempDir()
	var images []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		images = append(images, writeImage(t, folder, name))
	}

	pipe, err := pipeline.New(media.NewImageDecoder(media.DecoderOptions{}), render.NewSoftwareRenderer(), pipeline.Options{
		ThumbnailSize: 32,
		Workers:       2,
	})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	var store *albums.Store
	if withStore {
		store, err = albums.Open(context.Background(), filepath.Join(t.TempDir(), "gallery.db"))
		if err != nil {
			t.Fatalf("albums.Open() error = %v", err)
		}
	}

	lib := library.New(pipe, store, library.Config{
		CacheDir:      t.TempDir(),
		Folders:       []string{folder},
		ThumbnailSize: 32,
		MinImageSize:  -1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lib.Frame()
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		lib.Close()
		pipe.Shutdown()
		if store != nil {
			store.Close()
		}
	})

	h := New(lib, &startup.Config{ThumbnailSize: 32})
	return &testServer{lib: lib, h: h, handler: h.Router(opts), folder: folder, images: images}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return v
}

// waitScanned starts a scan and waits until all images are shown.
func (s *testServer) waitScanned(t *testing.T) {
	t.Helper()
	if w := s.do(t, http.MethodPost, "/api/scan", nil); w.Code != http.StatusAccepted {
		t.Fatalf("POST /api/scan = %d", w.Code)
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		p := s.lib.Progress()
		if !p.Scanning && !p.LastComplete.IsZero() && len(s.lib.Paths()) == len(s.images) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for scan")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})

	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health before scan = %d, want 503", w.Code)
	}
	if got := decode[HealthResponse](t, w); got.Status != statusStarting || got.Ready {
		t.Errorf("health before scan = %+v", got)
	}
	if w := s.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz before scan = %d, want 503", w.Code)
	}

	s.waitScanned(t)

	w = s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
	got := decode[HealthResponse](t, w)
	if got.Status != statusHealthy || got.Images != 3 || got.LastScan == "" || got.Mode != "library" {
		t.Errorf("health = %+v", got)
	}
	if w := s.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", w.Code)
	}

	if w := s.do(t, http.MethodGet, "/livez", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("GET /livez = %d %q", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodHead, "/livez", nil); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d bytes", w.Code, w.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})
	w := s.do(t, http.MethodGet, "/version", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /version = %d", w.Code)
	}
	info := decode[startup.BuildInfo](t, w)
	if info.Version != startup.Version || info.GoVersion == "" {
		t.Errorf("version = %+v", info)
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("missing Cache-Control: no-cache")
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})
	s.waitScanned(t)

	w := s.do(t, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/stats = %d", w.Code)
	}
	stats := decode[StatsResponse](t, w)
	if stats.Images != 3 || stats.Mode != library.ModeLibrary || stats.Scan.Runs != 1 {
		t.Errorf("stats = %+v", stats.Stats)
	}
	if stats.Pipeline.PoolThreads != 2 {
		t.Errorf("pipeline pool threads = %d, want 2", stats.Pipeline.PoolThreads)
	}
	if stats.Memory != nil {
		t.Error("memory stats without a monitor")
	}

	monitor := memory.NewMonitor(memory.Config{LimitBytes: 1 << 40})
	defer monitor.Stop()
	monitor.Check()
	s.h.SetMemoryMonitor(monitor)

	stats = decode[StatsResponse](t, s.do(t, http.MethodGet, "/api/stats", nil))
	if stats.Memory == nil || stats.Memory.Limit == "" || stats.Memory.Level == "" {
		t.Errorf("memory stats = %+v", stats.Memory)
	}
}

func TestScanEndpoints(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})
	s.waitScanned(t)

	w := s.do(t, http.MethodGet, "/api/scan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/scan = %d", w.Code)
	}
	progress := decode[library.ScanProgress](t, w)
	if progress.Runs != 1 || progress.Scanning || progress.LastDuration == "" {
		t.Errorf("progress = %+v", progress)
	}

	if w := s.do(t, http.MethodGet, "/api/scan/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/scan", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/scan = %d, want 405", w.Code)
	}
}

func TestAlbumEndpoints(t *testing.T) {
	s := newTestServer(t, true, RouterOptions{})
	album := t.TempDir()

	w := s.do(t, http.MethodGet, "/api/albums", nil)
	if w.Code != http.StatusOK || len(decode[AlbumsResponse](t, w).Albums) != 0 {
		t.Fatalf("GET /api/albums = %d %q", w.Code, w.Body.String())
	}

	tests := []struct {
		name   string
		method string
		target string
		body   interface{}
		want   int
	}{
		{"add", http.MethodPost, "/api/albums", PathRequest{Path: album}, http.StatusCreated},
		{"add again", http.MethodPost, "/api/albums", PathRequest{Path: album}, http.StatusOK},
		{"add missing folder", http.MethodPost, "/api/albums", PathRequest{Path: filepath.Join(album, "nope")}, http.StatusBadRequest},
		{"add without path", http.MethodPost, "/api/albums", PathRequest{}, http.StatusBadRequest},
		{"add unknown field", http.MethodPost, "/api/albums", map[string]string{"folder": album}, http.StatusBadRequest},
		{"add file", http.MethodPost, "/api/albums", PathRequest{Path: s.images[0]}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, tt.method, tt.target, tt.body); w.Code != tt.want {
				t.Errorf("%s %s = %d %q, want %d", tt.method, tt.target, w.Code, w.Body.String(), tt.want)
			}
		})
	}

	list := decode[AlbumsResponse](t, s.do(t, http.MethodGet, "/api/albums", nil)).Albums
	if len(list) != 1 {
		t.Fatalf("albums = %+v, want one", list)
	}

	if w := s.do(t, http.MethodDelete, "/api/albums?path="+url.QueryEscape(list[0].Path), nil); w.Code != http.StatusOK {
		t.Errorf("DELETE by query = %d %q", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodDelete, "/api/albums", PathRequest{Path: album}); w.Code != http.StatusNotFound {
		t.Errorf("DELETE missing album = %d, want 404", w.Code)
	}
}

func TestAlbumEndpointsWithoutStore(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})

	if w := s.do(t, http.MethodGet, "/api/albums", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/albums = %d, want 503", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/albums", PathRequest{Path: t.TempDir()}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /api/albums = %d, want 503", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/recent", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/recent = %d, want 503", w.Code)
	}
}

func TestViewEndpoints(t *testing.T) {
	s := newTestServer(t, true, RouterOptions{})
	s.waitScanned(t)

	w := s.do(t, http.MethodPut, "/api/view", library.Viewport{Start: 1, Count: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/view = %d %q", w.Code, w.Body.String())
	}
	if v := decode[ViewResponse](t, w); v.Viewport.Start != 1 || v.Viewport.Count != 2 || v.Images != 3 {
		t.Errorf("view = %+v", v)
	}
	if w := s.do(t, http.MethodPut, "/api/view", library.Viewport{Start: -1, Count: 2}); w.Code != http.StatusBadRequest {
		t.Errorf("negative viewport = %d, want 400", w.Code)
	}

	target := s.images[2]
	w = s.do(t, http.MethodPost, "/api/open", PathRequest{Path: target})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/open = %d %q", w.Code, w.Body.String())
	}
	v := decode[ViewResponse](t, w)
	if v.Mode != library.ModeFolder || v.Index == nil || v.Images != 3 {
		t.Fatalf("open = %+v", v)
	}
	if got := s.lib.Paths()[*v.Index]; got != target {
		t.Errorf("index %d points at %s, want %s", *v.Index, got, target)
	}

	recent := decode[map[string][]string](t, s.do(t, http.MethodGet, "/api/recent", nil))["recent"]
	if len(recent) != 1 || recent[0] != target {
		t.Errorf("recent = %v, want [%s]", recent, target)
	}

	if w := s.do(t, http.MethodPost, "/api/open", PathRequest{Path: filepath.Join(s.folder, "gone.png")}); w.Code != http.StatusNotFound {
		t.Errorf("open missing file = %d, want 404", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/library", nil)
	if v := decode[ViewResponse](t, w); v.Mode != library.ModeLibrary {
		t.Errorf("after /api/library mode = %s", v.Mode)
	}
	if v := decode[ViewResponse](t, s.do(t, http.MethodGet, "/api/view", nil)); v.Mode != library.ModeLibrary {
		t.Errorf("GET /api/view mode = %s", v.Mode)
	}
}

func TestGetThumbnail(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{})
	s.waitScanned(t)

	if w := s.do(t, http.MethodGet, "/api/thumbnail", nil); w.Code != http.StatusBadRequest {
		t.Errorf("no path = %d, want 400", w.Code)
	}
	outside := writeImage(t, t.TempDir(), "outside.png")
	if w := s.do(t, http.MethodGet, "/api/thumbnail?path="+url.QueryEscape(outside), nil); w.Code != http.StatusNotFound {
		t.Errorf("image outside gallery = %d, want 404", w.Code)
	}

	target := "/api/thumbnail?path=" + url.QueryEscape(s.images[1])
	deadline := time.Now().Add(10 * time.Second)
	var w *httptest.ResponseRecorder
	for time.Now().Before(deadline) {
		w = s.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusAccepted {
			break
		}
		if w.Header().Get("Retry-After") == "" {
			t.Fatal("202 without Retry-After")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("GET thumbnail = %d %q", w.Code, w.Body.String())
	}

	ct := w.Header().Get("Content-Type")
	if ct != "image/jpeg" && ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	cfg, _, err := image.DecodeConfig(w.Body)
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if cfg.Width > 32 || cfg.Height > 32 {
		t.Errorf("thumbnail is %dx%d, want at most 32px", cfg.Width, cfg.Height)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{MetricsEnabled: true})
	s.do(t, http.MethodGet, "/api/stats", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "photo_gallery_http_requests_total") {
		t.Error("metrics output lacks photo_gallery_http_requests_total")
	}

	off := newTestServer(t, false, RouterOptions{})
	if w := off.do(t, http.MethodGet, "/metrics", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET /metrics when disabled = %d, want 404", w.Code)
	}
}

func TestRoutesListed(t *testing.T) {
	s := newTestServer(t, false, RouterOptions{MetricsEnabled: true})
	routes, err := startup.GetRoutes(s.h.Router(RouterOptions{MetricsEnabled: true}))
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	want := map[string]bool{
		"GET /health": false, "GET /metrics": false, "POST /api/scan": false,
		"DELETE /api/albums": false, "GET /api/thumbnail": false,
	}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Errorf("route %s not registered", key)
		}
	}
}

func TestReadPathFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/albums?path=/photos", http.NoBody)
	got, err := readPath(httptest.NewRecorder(), req)
	if err != nil || got != "/photos" {
		t.Errorf("readPath() = %q, %v", got, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/albums", strings.NewReader("not json"))
	if _, err := readPath(httptest.NewRecorder(), req); err == nil {
		t.Error("expected error for invalid body")
	}

	big := `{"path":"` + strings.Repeat("x", maxRequestBody) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/albums", strings.NewReader(big))
	if _, err := readPath(httptest.NewRecorder(), req); err == nil {
		t.Error("expected error for oversized body")
	}
}
