//go:build !linux && !darwin

package mmap

import "github.com/ajitpratap0/genobatch/pkg/errors"

func mmap(fd int, length int) ([]byte, error) {
	return nil, errors.New(errors.ErrorTypeFile, "mmap: not supported on this platform")
}

func munmap(b []byte) error { return nil }

func madvise(b []byte, advice int) error { return nil }

const (
	madvRandom     = 0
	madvSequential = 0
)
