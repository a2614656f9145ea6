package fileio

import (
	"context"
	"io"
	"sync"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// DefaultBlockSize is the ranged-read size for remote objects
const DefaultBlockSize = 4 << 20

// rangeFetcher reads byte ranges of one remote object
type rangeFetcher interface {
	size(ctx context.Context) (int64, error)
	readRange(ctx context.Context, off, n int64) (io.ReadCloser, error)
	close() error
}

// remoteFile serves reads from a single cached block, fetching a new block
// whenever a read falls outside it.
type remoteFile struct {
	ctx       context.Context
	name      string
	fetcher   rangeFetcher
	length    int64
	blockSize int64

	mu       sync.Mutex
	block    []byte
	blockOff int64
	pos      int64
	fetches  int
}

func newRemoteFile(ctx context.Context, name string, f rangeFetcher, blockSize int) (*remoteFile, error) {
	size, err := f.size(ctx)
	if err != nil {
		f.close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "stat remote object").WithDetail("uri", name)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &remoteFile{
		ctx:       ctx,
		name:      name,
		fetcher:   f,
		length:    size,
		blockSize: int64(blockSize),
		blockOff:  -1,
	}, nil
}

func (f *remoteFile) Size() int64  { return f.length }
func (f *remoteFile) Name() string { return f.name }

// ReadAt implements io.ReaderAt
func (f *remoteFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAt(p, off)
}

func (f *remoteFile) readAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "negative offset")
	}
	n := 0
	for n < len(p) {
		if off >= f.length {
			return n, io.EOF
		}
		if err := f.load(off); err != nil {
			return n, err
		}
		c := copy(p[n:], f.block[off-f.blockOff:])
		n += c
		off += int64(c)
	}
	return n, nil
}

// load makes the block holding off current
func (f *remoteFile) load(off int64) error {
	start := off / f.blockSize * f.blockSize
	if f.blockOff == start && f.block != nil {
		return nil
	}
	n := f.blockSize
	if start+n > f.length {
		n = f.length - start
	}

	rc, err := f.fetcher.readRange(f.ctx, start, n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "ranged read failed").
			WithDetail("uri", f.name).WithDetail("offset", start)
	}
	defer rc.Close()

	if int64(cap(f.block)) < n {
		f.block = make([]byte, n)
	}
	f.block = f.block[:n]
	if _, err := io.ReadFull(rc, f.block); err != nil {
		f.block = nil
		return errors.Wrap(err, errors.ErrorTypeConnection, "short ranged read").
			WithDetail("uri", f.name).WithDetail("offset", start)
	}
	f.blockOff = start
	f.fetches++
	return nil
}

// Read implements io.Reader
func (f *remoteFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= f.length {
		return 0, io.EOF
	}
	if rem := f.length - f.pos; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := f.readAt(p, f.pos)
	f.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek implements io.Seeker
func (f *remoteFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = f.length + offset
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidInput, "invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New(errors.ErrorTypeInvalidInput, "negative position")
	}
	f.pos = abs
	return abs, nil
}

// Close releases the storage client
func (f *remoteFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetcher == nil {
		return nil
	}
	err := f.fetcher.close()
	f.fetcher = nil
	f.block = nil
	return err
}
