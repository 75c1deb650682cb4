package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// spooledBody is a seekable copy of a stream with a known length.
type spooledBody struct {
	reader  io.ReadSeeker
	size    int64
	cleanup func() error
}

func (b *spooledBody) Close() error {
	if b.cleanup == nil {
		return nil
	}
	return b.cleanup()
}

// spool buffers src in memory when it fits in maxMemoryBytes, otherwise in a
// temp file removed by Close. A negative size means unknown.
func spool(src io.Reader, size, maxMemoryBytes int64) (*spooledBody, error) {
	if maxMemoryBytes <= 0 {
		maxMemoryBytes = DefaultSpoolMemoryBytes
	}

	if size >= 0 && size <= maxMemoryBytes {
		data, err := io.ReadAll(io.LimitReader(src, size))
		if err != nil {
			return nil, err
		}
		return &spooledBody{reader: bytes.NewReader(data), size: int64(len(data))}, nil
	}

	// Unknown size: read up to the memory bound, then decide.
	if size < 0 {
		head, err := io.ReadAll(io.LimitReader(src, maxMemoryBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(head)) <= maxMemoryBytes {
			return &spooledBody{reader: bytes.NewReader(head), size: int64(len(head))}, nil
		}
		src = io.MultiReader(bytes.NewReader(head), src)
	}

	f, err := os.CreateTemp("", "swiftfs-spool-*")
	if err != nil {
		return nil, err
	}

	n, copyErr := io.Copy(f, src)
	if copyErr != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, copyErr
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}

	return &spooledBody{
		reader: f,
		size:   n,
		cleanup: func() error {
			name := f.Name()
			closeErr := f.Close()
			rmErr := os.Remove(name)
			if closeErr != nil {
				return fmt.Errorf("close temp file: %w", closeErr)
			}
			if rmErr != nil {
				return fmt.Errorf("remove temp file: %w", rmErr)
			}
			return nil
		},
	}, nil
}

// sizeOf reports the remaining length of r when it can be known without
// reading, or -1.
func sizeOf(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len())
	case *os.File:
		fi, err := v.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return -1
		}
		pos, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return -1
		}
		return fi.Size() - pos
	}
	return -1
}
