// Package gxf reads GTF and GFF3 annotation files and encodes them as Arrow
// record batches.
//
// Both dialects share eight fixed columns. The ninth column holds per-record
// attributes whose keys vary between records; an AttributeScanner pass
// derives a stable, name-sorted column set that every batch of a session is
// then built against.
package gxf

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Feature holds the eight fixed columns common to GTF and GFF3
type Feature struct {
	Seqid  string
	Source string
	Type   string
	Start  int
	End    int
	Score  *float32
	// Strand is "+", "-" or "?"; empty when the column is "."
	Strand string
	// Phase is "0", "1" or "2"; empty when the column is "."
	Phase string
}

// GTFEntry is one `key "value";` attribute
type GTFEntry struct {
	Key   string
	Value string
}

// GTFRecord is one GTF line. Attributes keep file order and may repeat a
// key.
type GTFRecord struct {
	Feature
	Attributes []GTFEntry
}

// GFFValue is a percent-encoded GFF3 attribute value. A value containing a
// comma is an array.
type GFFValue struct {
	raw   []string
	array bool
}

// NewGFFValue splits a raw column-9 value into its elements
func NewGFFValue(raw string) GFFValue {
	if strings.IndexByte(raw, ',') < 0 {
		return GFFValue{raw: []string{raw}}
	}
	return GFFValue{raw: strings.Split(raw, ","), array: true}
}

// IsArray reports whether the value had more than one element
func (v GFFValue) IsArray() bool { return v.array }

// String returns the raw, still encoded value
func (v GFFValue) String() string { return strings.Join(v.raw, ",") }

// GFFAttribute is one `key=value` attribute
type GFFAttribute struct {
	Key   string
	Value GFFValue
}

// GFFRecord is one GFF3 feature line
type GFFRecord struct {
	Feature
	Attributes []GFFAttribute
}

// ParseGTFLine parses a single tab-delimited GTF line
func ParseGTFLine(line string) (*GTFRecord, error) {
	cols, err := splitColumns(line)
	if err != nil {
		return nil, err
	}
	feat, err := parseFeature(cols)
	if err != nil {
		return nil, err
	}
	attrs, err := parseGTFAttributes(cols[8])
	if err != nil {
		return nil, err
	}
	return &GTFRecord{Feature: feat, Attributes: attrs}, nil
}

// ParseGFFLine parses a single tab-delimited GFF3 line
func ParseGFFLine(line string) (*GFFRecord, error) {
	cols, err := splitColumns(line)
	if err != nil {
		return nil, err
	}
	feat, err := parseFeature(cols)
	if err != nil {
		return nil, err
	}
	attrs, err := parseGFFAttributes(cols[8])
	if err != nil {
		return nil, err
	}
	return &GFFRecord{Feature: feat, Attributes: attrs}, nil
}

func splitColumns(line string) ([]string, error) {
	cols := strings.SplitN(line, "\t", 9)
	if len(cols) != 9 {
		return nil, errors.Newf(errors.ErrorTypeParse, "expected 9 tab-separated columns, got %d", len(cols))
	}
	return cols, nil
}

func parseFeature(cols []string) (Feature, error) {
	f := Feature{
		Seqid:  cols[0],
		Source: cols[1],
		Type:   cols[2],
	}

	var err error
	if f.Start, err = strconv.Atoi(cols[3]); err != nil {
		return f, errors.Wrap(err, errors.ErrorTypeParse, "invalid start").WithDetail("value", cols[3])
	}
	if f.End, err = strconv.Atoi(cols[4]); err != nil {
		return f, errors.Wrap(err, errors.ErrorTypeParse, "invalid end").WithDetail("value", cols[4])
	}
	if f.Start < 1 || f.End < f.Start-1 {
		return f, errors.Newf(errors.ErrorTypeParse, "invalid interval %d-%d", f.Start, f.End)
	}

	if cols[5] != "." {
		score, err := strconv.ParseFloat(cols[5], 32)
		if err != nil {
			return f, errors.Wrap(err, errors.ErrorTypeParse, "invalid score").WithDetail("value", cols[5])
		}
		s := float32(score)
		f.Score = &s
	}

	switch cols[6] {
	case ".":
	case "+", "-", "?":
		f.Strand = cols[6]
	default:
		return f, errors.Newf(errors.ErrorTypeParse, "invalid strand %q", cols[6])
	}

	switch cols[7] {
	case ".":
	case "0", "1", "2":
		f.Phase = cols[7]
	default:
		return f, errors.Newf(errors.ErrorTypeParse, "invalid phase %q", cols[7])
	}

	return f, nil
}

// parseGTFAttributes parses `key "value"; key value;` pairs
func parseGTFAttributes(s string) ([]GTFEntry, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return nil, nil
	}

	var entries []GTFEntry
	for _, field := range splitGTFFields(s) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, " ")
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeParse, "invalid GTF attribute %q", field)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		entries = append(entries, GTFEntry{Key: key, Value: value})
	}
	return entries, nil
}

// splitGTFFields splits on semicolons outside of double quotes
func splitGTFFields(s string) []string {
	var fields []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, s[start:])
}

// parseGFFAttributes parses `key=value;key=v1,v2` pairs. Keys are decoded
// here; values stay encoded until they are adapted.
func parseGFFAttributes(s string) ([]GFFAttribute, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return nil, nil
	}

	var attrs []GFFAttribute
	for _, field := range strings.Split(s, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeParse, "invalid GFF attribute %q", field)
		}
		key, err := unescape(key)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, GFFAttribute{Key: key, Value: NewGFFValue(value)})
	}
	return attrs, nil
}

// unescape percent-decodes a GFF3 key or value element
func unescape(s string) (string, error) {
	if strings.IndexByte(s, '%') < 0 {
		return s, nil
	}
	v, err := url.PathUnescape(s)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeParse, "invalid percent-encoding").WithDetail("value", s)
	}
	return v, nil
}
