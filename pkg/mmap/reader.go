// Package mmap provides read-only memory-mapped files.
//
// A File behaves like an *os.File opened for reading: it implements
// io.Reader, io.ReaderAt, io.Seeker and io.Closer. Reads copy out of the
// mapping, so no syscall is made per read and random access through an
// index costs only page faults.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Advice hints the kernel about the expected access pattern
type Advice int

const (
	// Sequential suits whole-file scans
	Sequential Advice = iota
	// Random suits indexed queries
	Random
)

// File is a read-only memory-mapped file
type File struct {
	file *os.File
	data []byte
	pos  int64

	mu     sync.Mutex
	closed bool
}

// Open maps the named file. Empty files cannot be mapped and are reported
// with an error of type file; callers fall back to os.Open.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "mmap: open failed").WithDetail("path", name)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "mmap: stat failed").WithDetail("path", name)
	}
	size := stat.Size()
	if size == 0 || !stat.Mode().IsRegular() {
		f.Close()
		return nil, errors.New(errors.ErrorTypeFile, "mmap: not a non-empty regular file").WithDetail("path", name)
	}
	if int64(int(size)) != size {
		f.Close()
		return nil, errors.New(errors.ErrorTypeFile, "mmap: file too large to map").WithDetail("path", name)
	}

	data, err := mmap(int(f.Fd()), int(size))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "mmap: map failed").WithDetail("path", name)
	}
	return &File{file: f, data: data}, nil
}

// Advise hints the access pattern. Failures are ignored; advice is optional.
func (f *File) Advise(a Advice) {
	advice := madvSequential
	if a == Random {
		advice = madvRandom
	}
	_ = madvise(f.data, advice)
}

// Name returns the path the file was opened with
func (f *File) Name() string { return f.file.Name() }

// Size returns the file length in bytes
func (f *File) Size() int64 { return int64(len(f.data)) }

// Bytes returns the mapping. The slice is invalid after Close.
func (f *File) Bytes() []byte { return f.data }

// Read implements io.Reader
func (f *File) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "mmap: negative offset")
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.data)) + offset
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidInput, "mmap: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "mmap: negative position")
	}
	f.pos = abs
	return abs, nil
}

// Close unmaps and closes the file. It is safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	err := munmap(f.data)
	f.data = nil
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "mmap: close failed")
	}
	return nil
}
