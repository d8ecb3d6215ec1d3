package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstd frame magic number
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
	// File extensions that are already compressed
	SkipExtensions []string
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
		SkipExtensions: []string{
			".zip", ".gz", ".zst", ".xz", ".bz2",
			".png", ".jpg", ".jpeg", ".gif", ".webp",
			".mp3", ".mp4", ".pdf",
		},
	}
}

// compressor wraps one zstd encoder and decoder. EncodeAll and DecodeAll are
// safe for concurrent use, so no pooling is needed.
type compressor struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCompressor(opts CompressionOptions) (*compressor, error) {
	if opts.Level == 0 {
		opts.Level = int(zstd.SpeedDefault)
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevel(opts.Level)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &compressor{opts: opts, enc: enc, dec: dec}, nil
}

func (c *compressor) shouldCompress(path string, size int) bool {
	if size < c.opts.MinSize {
		return false
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, skip := range c.opts.SkipExtensions {
		if ext == skip {
			return false
		}
	}
	return true
}

// compress returns the bytes to store and whether they are compressed.
// Content that does not shrink is stored as is.
func (c *compressor) compress(path string, content []byte) ([]byte, bool) {
	if !c.shouldCompress(path, len(content)) {
		return content, false
	}

	out := c.enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false
	}
	return out, true
}

func (c *compressor) decompress(content []byte) ([]byte, error) {
	if len(content) < len(zstdMagic) || string(content[:4]) != string(zstdMagic) {
		return nil, fmt.Errorf("content is not a zstd frame")
	}
	out, err := c.dec.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

func (c *compressor) close() {
	c.enc.Close()
	c.dec.Close()
}
