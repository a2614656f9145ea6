package fileio

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func newGCSClient(ctx context.Context, opts Options) (*storage.Client, error) {
	var clientOpts []option.ClientOption
	if opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create GCS client")
	}
	return client, nil
}

type gcsFetcher struct {
	client *storage.Client
	obj    *storage.ObjectHandle
}

func newGCSFetcher(ctx context.Context, loc Location, opts Options) (*gcsFetcher, error) {
	client, err := newGCSClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &gcsFetcher{client: client, obj: client.Bucket(loc.Bucket).Object(loc.Key)}, nil
}

func (f *gcsFetcher) size(ctx context.Context) (int64, error) {
	attrs, err := f.obj.Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (f *gcsFetcher) readRange(ctx context.Context, off, n int64) (io.ReadCloser, error) {
	return f.obj.NewRangeReader(ctx, off, n)
}

func (f *gcsFetcher) close() error { return f.client.Close() }

// gcsWriter commits the object when closed
type gcsWriter struct {
	w      *storage.Writer
	client *storage.Client
}

func newGCSWriter(ctx context.Context, loc Location, opts Options) (*gcsWriter, error) {
	client, err := newGCSClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &gcsWriter{w: client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx), client: client}, nil
}

func (w *gcsWriter) Write(p []byte) (int, error) { return w.w.Write(p) }

func (w *gcsWriter) Close() error {
	err := w.w.Close()
	if cerr := w.client.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "gcs upload failed")
	}
	return nil
}
