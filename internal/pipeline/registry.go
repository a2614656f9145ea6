package pipeline

import (
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/logger"
)

// Factory creates a Source for one session
type Factory func(in *Input) (Source, error)

// Registry maps format names to source factories
type Registry struct {
	formats map[string]Factory
	mu      sync.RWMutex
	logger  *zap.Logger
}

var globalRegistry = newBuiltinRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Factory),
		logger:  logger.Get().With(zap.String("component", "format_registry")),
	}
}

func newBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.formats[FormatFASTA] = newFastaSource
	r.formats[FormatFASTQ] = newFastqSource
	r.formats[FormatGTF] = newGTFSource
	r.formats[FormatGFF] = newGFFSource
	return r
}

// Register adds a format factory
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "format %s already registered", name)
	}
	r.formats[name] = factory
	r.logger.Debug("format registered", zap.String("name", name))
	return nil
}

// Create builds a Source for the named format
func (r *Registry) Create(name string, in *Input) (Source, error) {
	r.mu.RLock()
	factory, exists := r.formats[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "format %s not found", name).
			WithDetail("valid", strings.Join(r.Formats(), ", "))
	}
	return factory(in)
}

// Formats returns the registered format names, sorted
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterFormat adds a factory to the global registry
func RegisterFormat(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// Formats lists the globally registered formats
func Formats() []string {
	return globalRegistry.Formats()
}

// FieldNames returns the fixed columns of a registered format
func FieldNames(format string) ([]string, error) {
	src, err := globalRegistry.Create(format, &Input{})
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.FieldNames(), nil
}

var extensions = map[string]string{
	".fa":    FormatFASTA,
	".fasta": FormatFASTA,
	".fna":   FormatFASTA,
	".fas":   FormatFASTA,
	".fq":    FormatFASTQ,
	".fastq": FormatFASTQ,
	".gtf":   FormatGTF,
	".gff":   FormatGFF,
	".gff3":  FormatGFF,
}

var compressedSuffixes = []string{".gz", ".bgz", ".zst", ".lz4", ".sz", ".s2"}

// DetectFormat infers the format from a file name, ignoring a trailing
// compression suffix
func DetectFormat(name string) (string, error) {
	base := strings.ToLower(path.Base(name))
	for _, suffix := range compressedSuffixes {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	if format, ok := extensions[path.Ext(base)]; ok {
		return format, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "cannot infer format from %s; set the format explicitly", name)
}
