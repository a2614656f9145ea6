package fileio

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func newS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load AWS configuration")
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type s3Fetcher struct {
	client *s3.Client
	bucket string
	key    string
}

func newS3Fetcher(ctx context.Context, loc Location, opts Options) (*s3Fetcher, error) {
	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &s3Fetcher{client: client, bucket: loc.Bucket, key: loc.Key}, nil
}

func (f *s3Fetcher) size(ctx context.Context) (int64, error) {
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (f *s3Fetcher) readRange(ctx context.Context, off, n int64) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (f *s3Fetcher) close() error { return nil }

// s3Writer streams into a multipart upload through a pipe
type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func newS3Writer(ctx context.Context, loc Location, opts Options) (*s3Writer, error) {
	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client)

	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.pw.Write(p) }

// Close finishes the upload and waits for it to complete
func (w *s3Writer) Close() error {
	w.pw.Close()
	if err := <-w.done; err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "s3 upload failed")
	}
	return nil
}
