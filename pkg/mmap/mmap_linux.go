//go:build linux

package mmap

import (
	"syscall"
)

func mmap(fd int, length int) ([]byte, error) {
	return syscall.Mmap(fd, 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

func munmap(b []byte) error {
	return syscall.Munmap(b)
}

func madvise(b []byte, advice int) error {
	return syscall.Madvise(b, advice)
}

const (
	madvSequential = syscall.MADV_SEQUENTIAL
	madvRandom     = syscall.MADV_RANDOM
)
