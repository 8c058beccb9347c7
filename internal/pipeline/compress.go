package pipeline

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// pixelCodec compresses Tier-2 pixel buffers. EncodeAll and DecodeAll are safe
// for concurrent use, so one encoder and one decoder serve every goroutine.
type pixelCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newPixelCodec() (*pixelCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &pixelCodec{enc: enc, dec: dec}, nil
}

func (c *pixelCodec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

// decompress returns the pixels, failing unless exactly rawSize bytes come out.
func (c *pixelCodec) decompress(data []byte, rawSize int) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, make([]byte, 0, rawSize))
	if err != nil {
		return nil, err
	}
	if len(out) != rawSize {
		return nil, fmt.Errorf("decompressed %d bytes, want %d", len(out), rawSize)
	}
	return out, nil
}

func (c *pixelCodec) close() {
	c.enc.Close()
	c.dec.Close()
}
