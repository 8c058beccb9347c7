// Package media decodes image files into BGRA pixel buffers for the thumbnail
// pipeline.
//
// ImageDecoder implements the Decoder interface:
//   - Decode: full-resolution decode, downscaled past MaxImageDimension /
//     MaxImagePixels so a panorama cannot exhaust memory
//   - GenerateThumbnail: longest edge capped at maxSize (256 by default),
//     using libvips decode-time shrinking for JPEGs when available
//   - GetImageInfo: dimensions, format and EXIF orientation/capture time
//     without decoding pixels
//
// JPEG, PNG, GIF, BMP, TIFF and WebP are always available. HEIC/HEIF needs a
// cgo build on a non-Windows platform.
package media
