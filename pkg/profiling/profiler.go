// Package profiling captures pprof and execution-trace profiles around a
// conversion run.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// ProfileType represents the type of profiling to perform
type ProfileType string

const (
	CPUProfile       ProfileType = "cpu"
	HeapProfile      ProfileType = "heap"
	BlockProfile     ProfileType = "block"
	MutexProfile     ProfileType = "mutex"
	GoroutineProfile ProfileType = "goroutine"
	TraceProfile     ProfileType = "trace"
	AllProfiles      ProfileType = "all"
)

var allTypes = []ProfileType{CPUProfile, HeapProfile, BlockProfile, MutexProfile, GoroutineProfile, TraceProfile}

// ParseTypes validates profile names; "all" expands to every type
func ParseTypes(names []string) ([]ProfileType, error) {
	seen := map[ProfileType]bool{}
	var types []ProfileType
	for _, name := range names {
		pt := ProfileType(strings.ToLower(strings.TrimSpace(name)))
		switch pt {
		case AllProfiles:
			return allTypes, nil
		case CPUProfile, HeapProfile, BlockProfile, MutexProfile, GoroutineProfile, TraceProfile:
			if !seen[pt] {
				seen[pt] = true
				types = append(types, pt)
			}
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown profile type %q", name)
		}
	}
	return types, nil
}

// ProfileConfig contains configuration for profiling
type ProfileConfig struct {
	Types     []ProfileType
	OutputDir string

	// Block profile rate (0 = disabled)
	BlockProfileRate int
	// Mutex profile fraction (0 = disabled)
	MutexProfileFraction int
}

// DefaultProfileConfig returns a CPU and heap profile written to ./profiles
func DefaultProfileConfig() *ProfileConfig {
	return &ProfileConfig{
		Types:                []ProfileType{CPUProfile, HeapProfile},
		OutputDir:            "./profiles",
		BlockProfileRate:     1,
		MutexProfileFraction: 1,
	}
}

// Profiler collects the configured profiles between Start and Stop
type Profiler struct {
	config    *ProfileConfig
	logger    *zap.Logger
	stamp     string
	startTime time.Time
	cpuFile   *os.File
	traceFile *os.File
	written   []string
}

// NewProfiler creates a new profiler instance
func NewProfiler(config *ProfileConfig, logger *zap.Logger) *Profiler {
	if config == nil {
		config = DefaultProfileConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{config: config, logger: logger}
}

func (p *Profiler) has(t ProfileType) bool {
	for _, pt := range p.config.Types {
		if pt == t {
			return true
		}
	}
	return false
}

// Start begins profiling
func (p *Profiler) Start() error {
	p.startTime = time.Now()
	p.stamp = p.startTime.Format("20060102_150405")

	if err := os.MkdirAll(p.config.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create profile directory").
			WithDetail("dir", p.config.OutputDir)
	}

	if p.has(BlockProfile) && p.config.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(p.config.BlockProfileRate)
	}
	if p.has(MutexProfile) && p.config.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(p.config.MutexProfileFraction)
	}

	if p.has(CPUProfile) {
		file, err := p.create(CPUProfile, "prof")
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(file); err != nil {
			_ = file.Close()
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start CPU profiling")
		}
		p.cpuFile = file
	}

	if p.has(TraceProfile) {
		file, err := p.create(TraceProfile, "out")
		if err != nil {
			p.stopCPU()
			return err
		}
		if err := trace.Start(file); err != nil {
			_ = file.Close()
			p.stopCPU()
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to start tracing")
		}
		p.traceFile = file
	}

	p.logger.Info("profiling started",
		zap.String("output_dir", p.config.OutputDir),
		zap.Any("types", p.config.Types))
	return nil
}

// Stop ends profiling, writes the snapshot profiles and returns every file
// written
func (p *Profiler) Stop() ([]string, error) {
	p.stopCPU()
	if p.traceFile != nil {
		trace.Stop()
		_ = p.traceFile.Close()
		p.written = append(p.written, p.traceFile.Name())
		p.traceFile = nil
	}

	var firstErr error
	for _, pt := range []ProfileType{HeapProfile, BlockProfile, MutexProfile, GoroutineProfile} {
		if !p.has(pt) {
			continue
		}
		if err := p.snapshot(pt); err != nil {
			p.logger.Error("failed to save profile", zap.String("type", string(pt)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	p.logger.Info("profiling completed",
		zap.Duration("duration", time.Since(p.startTime)),
		zap.Strings("files", p.written))
	return p.written, firstErr
}

func (p *Profiler) stopCPU() {
	if p.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = p.cpuFile.Close()
	p.written = append(p.written, p.cpuFile.Name())
	p.cpuFile = nil
}

func (p *Profiler) snapshot(pt ProfileType) error {
	file, err := p.create(pt, "prof")
	if err != nil {
		return err
	}
	defer file.Close()

	if pt == HeapProfile {
		runtime.GC()
		err = pprof.WriteHeapProfile(file)
	} else {
		debug := 0
		if pt == GoroutineProfile {
			debug = 2
		}
		err = pprof.Lookup(string(pt)).WriteTo(file, debug)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, fmt.Sprintf("failed to write %s profile", pt))
	}
	p.written = append(p.written, file.Name())
	return nil
}

func (p *Profiler) create(pt ProfileType, ext string) (*os.File, error) {
	name := filepath.Join(p.config.OutputDir, fmt.Sprintf("%s_%s.%s", pt, p.stamp, ext))
	file, err := os.Create(name) //nolint:gosec // G304: directory is operator supplied
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to create %s profile file", pt))
	}
	return file, nil
}

// Run profiles fn and returns the files written alongside fn's error
func Run(config *ProfileConfig, logger *zap.Logger, fn func() error) ([]string, error) {
	p := NewProfiler(config, logger)
	if err := p.Start(); err != nil {
		return nil, err
	}
	runErr := fn()
	files, err := p.Stop()
	if runErr != nil {
		return files, runErr
	}
	return files, err
}
