package sink

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// ipcWriter covers both the IPC file and stream writers
type ipcWriter struct {
	format Format
	w      interface {
		Write(arrow.Record) error
		Close() error
	}
	rows int64
}

func newIPCFileWriter(schema *arrow.Schema, w io.Writer, opts Options) (*ipcWriter, error) {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(opts.allocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Arrow file writer")
	}
	return &ipcWriter{format: Arrow, w: fw}, nil
}

func newIPCStreamWriter(schema *arrow.Schema, w io.Writer, opts Options) (*ipcWriter, error) {
	sw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(opts.allocator()))
	return &ipcWriter{format: ArrowStream, w: sw}, nil
}

func (w *ipcWriter) Write(rec arrow.Record) error {
	if err := w.w.Write(rec); err != nil {
		return writeError(err, w.format)
	}
	w.rows += rec.NumRows()
	return nil
}

func (w *ipcWriter) Close() error {
	if err := w.w.Close(); err != nil {
		return writeError(err, w.format)
	}
	return nil
}

func (w *ipcWriter) Rows() int64 { return w.rows }
