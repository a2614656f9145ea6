package fileio

import (
	"bufio"
	"io"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Encoding names how an input stream is compressed
type Encoding string

// EncodingBGZF is blocked gzip, the only encoding that supports index queries
const EncodingBGZF Encoding = "bgzf"

// Decompressed is a decoded view of an input
type Decompressed struct {
	io.Reader
	Encoding Encoding

	codec io.Closer
	src   io.Closer
}

// Close closes the codec and then the underlying input
func (d *Decompressed) Close() error {
	if d.codec != nil {
		d.codec.Close()
	}
	return d.src.Close()
}

// Decompress sniffs the leading bytes of r and wraps it in the matching
// decoder. Unrecognised input passes through as plain text.
func Decompress(r io.ReadCloser) (*Decompressed, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	header, err := br.Peek(18)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		r.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read header failed")
	}

	if bgzf.IsBGZF(header) {
		zr := bgzf.NewReader(br)
		return &Decompressed{Reader: zr, Encoding: EncodingBGZF, codec: zr, src: r}, nil
	}

	algo := compression.Detect(header)
	if algo == compression.None {
		return &Decompressed{Reader: br, Encoding: Encoding(compression.None), src: r}, nil
	}
	dec, err := compression.NewReader(br, algo)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &Decompressed{Reader: dec, Encoding: Encoding(algo), codec: dec, src: r}, nil
}

// Sniff reports the encoding of f from its leading bytes without moving
// its read position
func Sniff(f File) (Encoding, error) {
	header := make([]byte, 18)
	n, err := f.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "read header failed").WithDetail("path", f.Name())
	}
	if bgzf.IsBGZF(header[:n]) {
		return EncodingBGZF, nil
	}
	return Encoding(compression.Detect(header[:n])), nil
}

// IsBGZF reports whether f starts with a BGZF block
func IsBGZF(f File) (bool, error) {
	enc, err := Sniff(f)
	return enc == EncodingBGZF, err
}
