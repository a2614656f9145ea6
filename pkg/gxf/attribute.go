package gxf

import (
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// AttributeType is the closed set of column kinds an attribute can map to
type AttributeType int

const (
	// AttributeTypeString maps to a UTF-8 column
	AttributeTypeString AttributeType = iota
	// AttributeTypeArray maps to a list<item: utf8> column
	AttributeTypeArray
)

// String returns the canonical type tag
func (t AttributeType) String() string {
	switch t {
	case AttributeTypeString:
		return "String"
	case AttributeTypeArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// ArrowType returns the column type allocated for t
func (t AttributeType) ArrowType() arrow.DataType {
	if t == AttributeTypeArray {
		return arrow.ListOf(arrow.BinaryTypes.String)
	}
	return arrow.BinaryTypes.String
}

// ParseAttributeType parses a type tag. Matching is case-insensitive and
// only "string" and "array" are accepted.
func ParseAttributeType(s string) (AttributeType, error) {
	switch strings.ToLower(s) {
	case "string":
		return AttributeTypeString, nil
	case "array":
		return AttributeTypeArray, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeInvalidInput,
			"Invalid attribute type: '%s'. Must be 'String' or 'Array'.", s)
	}
}

// AttributeDef is one inferred or user-supplied attribute column
type AttributeDef struct {
	Name string
	Type AttributeType
}

// NewAttributeDef validates a raw (name, type tag) pair
func NewAttributeDef(name, typeTag string) (AttributeDef, error) {
	t, err := ParseAttributeType(typeTag)
	if err != nil {
		return AttributeDef{}, err.(*errors.Error).WithDetail("attribute", name)
	}
	return AttributeDef{Name: name, Type: t}, nil
}

// Field returns the column field for the attribute. Attribute columns are
// always nullable.
func (d AttributeDef) Field() arrow.Field {
	return arrow.Field{Name: d.Name, Type: d.Type.ArrowType(), Nullable: true}
}

// AttributeDefPair is the plain (name, type tag) form of an AttributeDef
type AttributeDefPair struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AttributeDefs is a name-sorted list of attribute definitions
type AttributeDefs []AttributeDef

// NewAttributeDefs validates pairs and returns them sorted by name.
// Duplicate names keep the first pair.
func NewAttributeDefs(pairs []AttributeDefPair) (AttributeDefs, error) {
	defs := make(AttributeDefs, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		d, err := NewAttributeDef(p.Name, p.Type)
		if err != nil {
			return nil, err
		}
		seen[p.Name] = struct{}{}
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// AttributeDefsFromMap builds sorted defs from a name to type-tag mapping
func AttributeDefsFromMap(m map[string]string) (AttributeDefs, error) {
	pairs := make([]AttributeDefPair, 0, len(m))
	for name, tag := range m {
		pairs = append(pairs, AttributeDefPair{Name: name, Type: tag})
	}
	return NewAttributeDefs(pairs)
}

// ToMap converts defs back to a name to type-tag mapping
func (defs AttributeDefs) ToMap() map[string]string {
	m := make(map[string]string, len(defs))
	for _, d := range defs {
		m[d.Name] = d.Type.String()
	}
	return m
}

// Pairs returns the defs as (name, type tag) pairs in order
func (defs AttributeDefs) Pairs() []AttributeDefPair {
	out := make([]AttributeDefPair, len(defs))
	for i, d := range defs {
		out[i] = AttributeDefPair{Name: d.Name, Type: d.Type.String()}
	}
	return out
}

// Fields returns one nullable field per def
func (defs AttributeDefs) Fields() []arrow.Field {
	fields := make([]arrow.Field, len(defs))
	for i, d := range defs {
		fields[i] = d.Field()
	}
	return fields
}

// StructType returns the type of the attributes struct column
func (defs AttributeDefs) StructType() *arrow.StructType {
	return arrow.StructOf(defs.Fields()...)
}

// MarshalJSON encodes defs as an ordered list of {"name","type"} objects
func (defs AttributeDefs) MarshalJSON() ([]byte, error) {
	return json.Marshal(defs.Pairs())
}

// UnmarshalJSON decodes and validates a list of {"name","type"} objects
func (defs *AttributeDefs) UnmarshalJSON(data []byte) error {
	var pairs []AttributeDefPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInvalidInput, "invalid attribute definitions")
	}
	parsed, err := NewAttributeDefs(pairs)
	if err != nil {
		return err
	}
	*defs = parsed
	return nil
}

// ValueKind is the variant of an AttributeValue
type ValueKind int

const (
	// ValueKindString is a single text value
	ValueKindString ValueKind = iota
	// ValueKindArray is an ordered sequence of text values
	ValueKindArray
)

func (k ValueKind) String() string {
	if k == ValueKindArray {
		return "Array"
	}
	return "String"
}

// AttributeValue is a tagged union of a string or an array of strings
type AttributeValue struct {
	kind  ValueKind
	str   string
	array []string
}

// StringValue returns a String attribute value
func StringValue(s string) AttributeValue {
	return AttributeValue{kind: ValueKindString, str: s}
}

// ArrayValue returns an Array attribute value. A nil or empty slice is an
// array that is present but empty.
func ArrayValue(items []string) AttributeValue {
	return AttributeValue{kind: ValueKindArray, array: items}
}

// Kind returns the variant
func (v AttributeValue) Kind() ValueKind { return v.kind }

// Str returns the text of a String value
func (v AttributeValue) Str() string { return v.str }

// Items returns the elements of an Array value
func (v AttributeValue) Items() []string { return v.array }

// ValueFromGTFEntry adapts a GTF attribute. GTF values are always single
// strings.
func ValueFromGTFEntry(e GTFEntry) AttributeValue {
	return StringValue(e.Value)
}

// ValueFromGFFValue adapts a GFF attribute value, percent-decoding it.
// Every array element must decode; a failure is returned rather than
// skipped.
func ValueFromGFFValue(v GFFValue) (AttributeValue, error) {
	if !v.IsArray() {
		s, err := unescape(v.String())
		if err != nil {
			return AttributeValue{}, err
		}
		return StringValue(s), nil
	}

	items := make([]string, len(v.raw))
	for i, raw := range v.raw {
		s, err := unescape(raw)
		if err != nil {
			return AttributeValue{}, err.(*errors.Error).WithDetail("element", i)
		}
		items[i] = s
	}
	return ArrayValue(items), nil
}

// AttributeBuilder accumulates one attribute column. Exactly one of str and
// list is set, matching the builder's type.
type AttributeBuilder struct {
	typ      AttributeType
	str      *array.StringBuilder
	list     *array.ListBuilder
	items    *array.StringBuilder
	finished bool
}

// NewAttributeBuilder returns a builder for columns of type t
func NewAttributeBuilder(mem memory.Allocator, t AttributeType) *AttributeBuilder {
	b := &AttributeBuilder{typ: t}
	if t == AttributeTypeArray {
		b.list = array.NewListBuilder(mem, arrow.BinaryTypes.String)
		b.items = b.list.ValueBuilder().(*array.StringBuilder)
	} else {
		b.str = array.NewStringBuilder(mem)
	}
	return b
}

// Type returns the column type of the builder
func (b *AttributeBuilder) Type() AttributeType { return b.typ }

// Len returns the number of values appended so far
func (b *AttributeBuilder) Len() int {
	if b.finished {
		return 0
	}
	if b.list != nil {
		return b.list.Len()
	}
	return b.str.Len()
}

// AppendNull records an absent attribute. For Array columns this is a
// list-level null, distinct from an empty list.
func (b *AttributeBuilder) AppendNull() error {
	if b.finished {
		return errBuilderFinished()
	}
	if b.list != nil {
		b.list.AppendNull()
	} else {
		b.str.AppendNull()
	}
	return nil
}

// Check reports the error AppendValue would return for v without
// appending anything.
func (b *AttributeBuilder) Check(v AttributeValue) error {
	if b.finished {
		return errBuilderFinished()
	}
	if (b.typ == AttributeTypeArray) != (v.kind == ValueKindArray) {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"Type mismatch: expected %s builder value, got %s value", b.typ, v.kind).
			WithDetail("builder", b.typ.String()).
			WithDetail("value", v.kind.String())
	}
	return nil
}

// AppendValue appends v. A value whose kind does not match the builder
// type is rejected and nothing is appended.
func (b *AttributeBuilder) AppendValue(v AttributeValue) error {
	if err := b.Check(v); err != nil {
		return err
	}
	if b.list != nil {
		b.list.Append(true)
		for _, item := range v.array {
			b.items.Append(item)
		}
	} else {
		b.str.Append(v.str)
	}
	return nil
}

// Finish returns the built column. The builder cannot be used afterwards;
// the caller owns the returned array.
func (b *AttributeBuilder) Finish() (arrow.Array, error) {
	if b.finished {
		return nil, errBuilderFinished()
	}
	b.finished = true

	if b.list != nil {
		arr := b.list.NewArray()
		b.list.Release()
		return arr, nil
	}
	arr := b.str.NewArray()
	b.str.Release()
	return arr, nil
}

// Release frees the underlying builder if Finish was never called
func (b *AttributeBuilder) Release() {
	if b.finished {
		return
	}
	b.finished = true
	if b.list != nil {
		b.list.Release()
	} else {
		b.str.Release()
	}
}

func errBuilderFinished() *errors.Error {
	return errors.New(errors.ErrorTypeInternal, "attribute builder already finished")
}

// ConflictPolicy names how the scanner resolves a key observed with more
// than one value shape.
type ConflictPolicy int

const (
	// FirstSeenWins fixes a key's type at its first observation. Later
	// observations with a different shape are ignored and not reported.
	FirstSeenWins ConflictPolicy = iota
)

func (p ConflictPolicy) String() string {
	return "first-seen-wins"
}

// AttributeScanner infers attribute columns from a record stream. It is
// owned by a single scan session and frozen by Collect.
type AttributeScanner struct {
	policy ConflictPolicy
	types  map[string]AttributeType
	frozen bool
}

// NewAttributeScanner returns an empty scanner using FirstSeenWins
func NewAttributeScanner() *AttributeScanner {
	return &AttributeScanner{policy: FirstSeenWins, types: make(map[string]AttributeType)}
}

// Policy returns the conflict policy in effect
func (s *AttributeScanner) Policy() ConflictPolicy { return s.policy }

// Len returns the number of distinct keys seen
func (s *AttributeScanner) Len() int { return len(s.types) }

// Observe records that name was seen with type t. It reports whether this
// observation fixed the key's type.
func (s *AttributeScanner) Observe(name string, t AttributeType) (bool, error) {
	if s.frozen {
		return false, errors.New(errors.ErrorTypeInternal, "attribute scanner is frozen").
			WithDetail("attribute", name)
	}
	if _, ok := s.types[name]; ok {
		return false, nil
	}
	s.types[name] = t
	return true, nil
}

// PushGTF observes every attribute of a GTF record. GTF attributes are
// always inferred as String.
func (s *AttributeScanner) PushGTF(rec *GTFRecord) error {
	for _, e := range rec.Attributes {
		if _, err := s.Observe(e.Key, AttributeTypeString); err != nil {
			return err
		}
	}
	return nil
}

// PushGFF observes every attribute of a GFF record, inferring String or
// Array from the value shape.
func (s *AttributeScanner) PushGFF(rec *GFFRecord) error {
	for _, a := range rec.Attributes {
		t := AttributeTypeString
		if a.Value.IsArray() {
			t = AttributeTypeArray
		}
		if _, err := s.Observe(a.Key, t); err != nil {
			return err
		}
	}
	return nil
}

// Collect freezes the scanner and returns (name, type tag) pairs sorted by
// name.
func (s *AttributeScanner) Collect() []AttributeDefPair {
	return s.Defs().Pairs()
}

// Defs freezes the scanner and returns the inferred definitions
func (s *AttributeScanner) Defs() AttributeDefs {
	s.frozen = true
	defs := make(AttributeDefs, 0, len(s.types))
	for name, t := range s.types {
		defs = append(defs, AttributeDef{Name: name, Type: t})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
