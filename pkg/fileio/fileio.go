// Package fileio opens genomic inputs and creates outputs on local disk,
// Amazon S3 and Google Cloud Storage behind one random-access interface.
//
// Local files are memory-mapped. Remote objects are read with ranged
// requests through a block cache, so both sequential scans and index seeks
// work against them.
package fileio

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/mmap"
)

// File is a readable, seekable input
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
	// Size returns the length in bytes, or -1 when unknown
	Size() int64
	// Name returns the URI the file was opened with
	Name() string
}

// Options configures remote storage clients
type Options struct {
	S3Region           string
	S3Endpoint         string
	GCSCredentialsFile string
	// BlockSize is the ranged-read size for remote objects
	BlockSize int
}

// Scheme identifies where a URI points
type Scheme string

const (
	// SchemeLocal is a path on the local filesystem
	SchemeLocal Scheme = "file"
	// SchemeStdio is "-": stdin for input, stdout for output
	SchemeStdio Scheme = "-"
	// SchemeS3 is s3://bucket/key
	SchemeS3 Scheme = "s3"
	// SchemeGCS is gs://bucket/object
	SchemeGCS Scheme = "gs"
)

// Location is a parsed URI
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
	Path   string
}

// Parse splits a URI into its scheme and components
func Parse(uri string) (Location, error) {
	switch {
	case uri == "":
		return Location{}, errors.New(errors.ErrorTypeInvalidInput, "empty path")
	case uri == "-":
		return Location{Scheme: SchemeStdio}, nil
	case strings.HasPrefix(uri, "s3://"):
		return parseBucketURI(SchemeS3, strings.TrimPrefix(uri, "s3://"), uri)
	case strings.HasPrefix(uri, "gs://"):
		return parseBucketURI(SchemeGCS, strings.TrimPrefix(uri, "gs://"), uri)
	case strings.HasPrefix(uri, "file://"):
		return Location{Scheme: SchemeLocal, Path: strings.TrimPrefix(uri, "file://")}, nil
	case strings.Contains(uri, "://"):
		return Location{}, errors.Newf(errors.ErrorTypeInvalidInput, "unsupported URI scheme: %s", uri)
	default:
		return Location{Scheme: SchemeLocal, Path: uri}, nil
	}
}

func parseBucketURI(scheme Scheme, rest, uri string) (Location, error) {
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, errors.Newf(errors.ErrorTypeInvalidInput, "expected %s://bucket/key, got %s", scheme, uri)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// Open opens uri for reading
func Open(ctx context.Context, uri string, opts Options) (File, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case SchemeStdio:
		return &stream{r: os.Stdin, name: "-"}, nil
	case SchemeS3:
		fetcher, err := newS3Fetcher(ctx, loc, opts)
		if err != nil {
			return nil, err
		}
		return openRemote(ctx, uri, fetcher, opts.BlockSize)
	case SchemeGCS:
		fetcher, err := newGCSFetcher(ctx, loc, opts)
		if err != nil {
			return nil, err
		}
		return openRemote(ctx, uri, fetcher, opts.BlockSize)
	default:
		return openLocal(loc.Path)
	}
}

func openRemote(ctx context.Context, uri string, fetcher rangeFetcher, blockSize int) (File, error) {
	f, err := newRemoteFile(ctx, uri, fetcher, blockSize)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// openLocal maps the file, falling back to a plain descriptor for files
// that cannot be mapped.
func openLocal(path string) (File, error) {
	if m, err := mmap.Open(path); err == nil {
		return m, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open failed").WithDetail("path", path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat failed").WithDetail("path", path)
	}
	size := stat.Size()
	if !stat.Mode().IsRegular() {
		size = -1
	}
	return &osFile{File: f, size: size}, nil
}

type osFile struct {
	*os.File
	size int64
}

func (f *osFile) Size() int64 { return f.size }

// stream adapts a forward-only reader such as stdin
type stream struct {
	r    io.Reader
	name string
	pos  int64
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *stream) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New(errors.ErrorTypeFile, "random access is not supported on a stream").WithDetail("path", s.name)
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekCurrent {
		return s.pos, nil
	}
	return 0, errors.New(errors.ErrorTypeFile, "seek is not supported on a stream").WithDetail("path", s.name)
}

func (s *stream) Close() error { return nil }
func (s *stream) Size() int64  { return -1 }
func (s *stream) Name() string { return s.name }

// Create opens uri for writing. Remote objects are committed on Close.
func Create(ctx context.Context, uri string, opts Options) (io.WriteCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case SchemeStdio:
		return nopCloser{os.Stdout}, nil
	case SchemeS3:
		w, err := newS3Writer(ctx, loc, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	case SchemeGCS:
		w, err := newGCSWriter(ctx, loc, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		f, err := os.Create(loc.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "create failed").WithDetail("path", loc.Path)
		}
		return f, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
