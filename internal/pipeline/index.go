package pipeline

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/config"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/fileio"
	"github.com/ajitpratap0/genobatch/pkg/index/fai"
	"github.com/ajitpratap0/genobatch/pkg/index/tabix"
	"github.com/ajitpratap0/genobatch/pkg/logger"
	"github.com/ajitpratap0/genobatch/pkg/scan"
)

// BuildIndex writes the sidecar indexes that Query needs for cfg.Input and
// returns their locations. FASTA gets a .fai, plus a .gzi when bgzipped;
// GTF and GFF get a .tbi and must be BGZF-compressed and sorted.
func BuildIndex(ctx context.Context, cfg *config.ScanConfig) ([]string, error) {
	if cfg.Input == "" || cfg.Input == "-" {
		return nil, errors.New(errors.ErrorTypeConfig, "index needs an input file")
	}
	format, err := resolveFormat(cfg)
	if err != nil {
		return nil, err
	}
	in, err := NewInput(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("input", cfg.Input), zap.String("format", format))

	var written []string
	switch format {
	case FormatFASTA:
		written, err = buildFastaIndex(ctx, in)
	case FormatGTF, FormatGFF:
		written, err = buildTabixIndex(ctx, in)
	default:
		err = errors.Newf(errors.ErrorTypeInvalidInput, "%s inputs cannot be indexed", format)
	}
	if err != nil {
		return nil, err
	}
	log.Info("index built", zap.Strings("written", written))
	return written, nil
}

func buildFastaIndex(ctx context.Context, in *Input) ([]string, error) {
	f, err := in.open(ctx)
	if err != nil {
		return nil, err
	}
	enc, err := fileio.Sniff(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	if enc != fileio.EncodingBGZF && enc != fileio.Encoding(compression.None) {
		return nil, errors.Newf(errors.ErrorTypeInvalidInput, "cannot index %s-compressed FASTA; use bgzip", enc).
			WithDetail("input", in.URI)
	}

	r, err := in.openStream(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := fai.Build(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	faiPath := in.sidecar(in.Index, ".fai")
	if err := writeIndex(ctx, in, faiPath, func(w io.Writer) error { return fai.Write(w, idx) }); err != nil {
		return nil, err
	}
	written := []string{faiPath}

	if enc == fileio.EncodingBGZF {
		raw, err := in.open(ctx)
		if err != nil {
			return nil, err
		}
		gzi, err := bgzf.BuildGZI(raw)
		raw.Close()
		if err != nil {
			return nil, err
		}
		gziPath := in.sidecar(in.GZI, ".gzi")
		if err := writeIndex(ctx, in, gziPath, func(w io.Writer) error { return bgzf.WriteGZI(w, gzi) }); err != nil {
			return nil, err
		}
		written = append(written, gziPath)
	}
	return written, nil
}

func buildTabixIndex(ctx context.Context, in *Input) ([]string, error) {
	f, err := in.openBGZF(ctx)
	if err != nil {
		return nil, err
	}
	r := bgzf.NewReader(f)
	idx, err := tabix.Build(r, tabix.GFF)
	r.Close()
	if err != nil {
		return nil, err
	}
	path := in.sidecar(in.Index, ".tbi")
	if err := writeIndex(ctx, in, path, func(w io.Writer) error { return tabix.Write(w, idx) }); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func writeIndex(ctx context.Context, in *Input, uri string, write func(io.Writer) error) error {
	w, err := fileio.Create(ctx, uri, in.Storage)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Head reads at most n records of cfg.Input into memory. The caller
// releases the returned batches.
func Head(ctx context.Context, cfg *config.ScanConfig, n int) (*arrow.Schema, []arrow.Record, error) {
	c := *cfg
	c.Limit = n
	c.Regions = nil
	src, err := OpenSource(&c)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	rr, err := src.Scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer rr.Release()
	recs, err := scan.ReadAll(rr)
	if err != nil {
		return nil, nil, err
	}
	return rr.Schema(), recs, nil
}
