package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec compresses cached payloads. WAV from a speech engine is mostly
// low-amplitude PCM and shrinks well.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	if level <= 0 {
		level = 3
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &codec{encoder: encoder, decoder: decoder}, nil
}

// encode and decode use the stateless EncodeAll/DecodeAll paths, which are
// safe for concurrent use.
func (c *codec) encode(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *codec) decode(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return out, nil
}
