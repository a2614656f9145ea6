// Package region parses and formats genomic regions.
//
// A Region is 1-based and inclusive on both ends. A zero Start or End means
// the interval is unbounded on that side, so "chr1" selects the whole contig
// and both "chr1:100" and "chr1:100-" select everything from position 100
// onwards.
package region

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Region is a (contig, start, end) coordinate range
type Region struct {
	Name  string
	Start int
	End   int
}

// Parse parses a region string such as "chr1", "chr1:100", "chr1:100-200",
// "chr1:1,000-2,000", "chr1:100-" or "chr1:-200". "chr1:100" runs to the end
// of the contig.
func Parse(s string) (Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Region{}, errors.New(errors.ErrorTypeInvalidInput, "empty region")
	}

	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Region{Name: s}, nil
	}

	name, interval := s[:i], s[i+1:]
	start, end, ok := parseInterval(interval)
	if !ok {
		// Contig names may legally contain colons (HLA alleles, for instance).
		return Region{Name: s}, nil
	}
	if name == "" {
		return Region{}, errors.Newf(errors.ErrorTypeInvalidInput, "region %q has no reference name", s)
	}
	if start < 1 {
		return Region{}, errors.Newf(errors.ErrorTypeInvalidInput, "region %q: start must be >= 1", s)
	}
	if end != 0 && end < start {
		return Region{}, errors.Newf(errors.ErrorTypeInvalidInput, "region %q: end %d before start %d", s, end, start)
	}
	return Region{Name: name, Start: start, End: end}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant regions.
func MustParse(s string) Region {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseAll parses every string in ss, preserving order
func ParseAll(ss []string) ([]Region, error) {
	out := make([]Region, 0, len(ss))
	for _, s := range ss {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// parseInterval accepts "100", "100-200", "100-" and "-200"; thousands
// separators are ignored. A lone position is open-ended.
func parseInterval(s string) (start, end int, ok bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, 0, false
	}

	lo, hi, hasDash := strings.Cut(s, "-")
	if lo == "" && hi == "" {
		return 0, 0, false
	}
	start = 1
	if lo != "" {
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return 0, 0, false
		}
	}
	if !hasDash || hi == "" {
		return start, 0, true
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// String formats the region so that Parse(r.String()) == r
func (r Region) String() string {
	switch {
	case r.Start == 0 && r.End == 0:
		return r.Name
	case r.End == 0:
		return r.Name + ":" + strconv.Itoa(r.Start) + "-"
	default:
		start := r.Start
		if start == 0 {
			start = 1
		}
		return r.Name + ":" + strconv.Itoa(start) + "-" + strconv.Itoa(r.End)
	}
}

// Bounded reports whether the region has an explicit end
func (r Region) Bounded() bool {
	return r.End != 0
}

// Overlaps reports whether the 1-based inclusive interval [start, end]
// intersects the region.
func (r Region) Overlaps(start, end int) bool {
	if r.Start != 0 && end < r.Start {
		return false
	}
	if r.End != 0 && start > r.End {
		return false
	}
	return true
}

// ZeroBased returns the region as a half-open [beg, end) interval. An
// unbounded end is returned as -1.
func (r Region) ZeroBased() (beg, end int) {
	if r.Start > 0 {
		beg = r.Start - 1
	}
	if r.End == 0 {
		return beg, -1
	}
	return beg, r.End
}
