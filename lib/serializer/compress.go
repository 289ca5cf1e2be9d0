// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package serializer

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/telespool/lib/transmission"
)

// maxDecodedSize bounds decompression so a corrupt or hostile payload
// cannot exhaust memory.
const maxDecodedSize = 256 << 20

type compressor interface {
	encoding() string
	compress(data []byte) ([]byte, error)
}

func newCompressor(encoding string) (compressor, error) {
	switch encoding {
	case transmission.EncodingGzip:
		return &gzipCompressor{}, nil
	case transmission.EncodingZstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("serializer: creating zstd encoder: %w", err)
		}
		return &zstdCompressor{encoder: encoder}, nil
	case transmission.EncodingLZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("serializer: unknown encoding %q: %w", encoding, transmission.ErrInvalidArgument)
	}
}

// gzipCompressor pools writers: gzip.NewWriter allocates several
// hundred KB of state.
type gzipCompressor struct {
	writers sync.Pool
}

func (*gzipCompressor) encoding() string { return transmission.EncodingGzip }

func (c *gzipCompressor) compress(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, ok := c.writers.Get().(*gzip.Writer)
	if ok {
		writer.Reset(&buffer)
	} else {
		writer = gzip.NewWriter(&buffer)
	}
	defer c.writers.Put(writer)

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// zstdCompressor shares one encoder; EncodeAll is safe for concurrent
// use.
type zstdCompressor struct {
	encoder *zstd.Encoder
}

func (*zstdCompressor) encoding() string { return transmission.EncodingZstd }

func (c *zstdCompressor) compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

type lz4Compressor struct{}

func (lz4Compressor) encoding() string { return transmission.EncodingLZ4 }

func (lz4Compressor) compress(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func decompress(encoding string, payload []byte) ([]byte, error) {
	var reader io.Reader
	switch encoding {
	case transmission.EncodingGzip:
		gzipReader, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("serializer: opening gzip payload: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case transmission.EncodingZstd:
		decoder, err := zstd.NewReader(bytes.NewReader(payload), zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("serializer: opening zstd payload: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	case transmission.EncodingLZ4:
		reader = lz4.NewReader(bytes.NewReader(payload))
	default:
		return nil, fmt.Errorf("serializer: unsupported content encoding %q", encoding)
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("serializer: decompressing %s payload: %w", encoding, err)
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("serializer: decompressed payload exceeds %d bytes", maxDecodedSize)
	}
	return data, nil
}
