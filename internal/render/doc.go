// Package render provides the bitmap backend the thumbnail pipeline uploads
// into when the gallery runs without a window.
//
// [SoftwareRenderer] implements the pipeline's Renderer contract: it copies
// each BGRA buffer into an RGBA image, because the buffer may point into the
// memory-mapped thumbnail cache. Bitmaps can be released explicitly, which is
// how the pipeline returns memory on eviction and under memory pressure.
//
// [Encode] turns a bitmap back into JPEG or PNG for the status server.
package render
