package gxf

import (
	"sort"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestNewAttributeDef(t *testing.T) {
	for _, tag := range []string{"String", "string", "STRING", "Array", "array", "aRRay"} {
		d, err := NewAttributeDef("k", tag)
		require.NoError(t, err, tag)
		assert.True(t, d.Field().Nullable)
	}

	d, err := NewAttributeDef("gene_id", "String")
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, d.Type.ArrowType()))

	d, err = NewAttributeDef("tag", "Array")
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), d.Type.ArrowType()))

	for _, tag := range []string{"", "int", "Strings", "list", " array"} {
		_, err := NewAttributeDef("k", tag)
		require.Error(t, err, tag)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput), tag)
	}

	_, err = ParseAttributeType("Integer")
	assert.EqualError(t, err, "invalid_input: Invalid attribute type: 'Integer'. Must be 'String' or 'Array'.")
}

func TestAttributeDefsSortedAndJSON(t *testing.T) {
	defs, err := AttributeDefsFromMap(map[string]string{"b": "array", "a": "String", "c": "string"})
	require.NoError(t, err)
	assert.Equal(t, []AttributeDefPair{{"a", "String"}, {"b", "Array"}, {"c", "String"}}, defs.Pairs())
	assert.Equal(t, map[string]string{"a": "String", "b": "Array", "c": "String"}, defs.ToMap())

	data, err := json.Marshal(defs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"a","type":"String"},{"name":"b","type":"Array"},{"name":"c","type":"String"}]`, string(data))

	var back AttributeDefs
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, defs, back)

	err = json.Unmarshal([]byte(`[{"name":"a","type":"map"}]`), &back)
	assert.True(t, errors.HasType(err, errors.ErrorTypeInvalidInput))
}

func TestAttributeBuilderRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewAttributeBuilder(mem, AttributeTypeString)
	inputs := []*string{strPtr("a"), nil, strPtr(""), nil, strPtr("e")}
	for _, in := range inputs {
		if in == nil {
			require.NoError(t, b.AppendNull())
		} else {
			require.NoError(t, b.AppendValue(StringValue(*in)))
		}
	}
	assert.Equal(t, len(inputs), b.Len())

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	col := arr.(*array.String)
	require.Equal(t, len(inputs), col.Len())
	for i, in := range inputs {
		assert.Equal(t, in == nil, col.IsNull(i), i)
		if in != nil {
			assert.Equal(t, *in, col.Value(i))
		}
	}
}

func TestAttributeBuilderArrayNullVersusEmpty(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewAttributeBuilder(mem, AttributeTypeArray)
	require.NoError(t, b.AppendValue(ArrayValue([]string{"x", "y"})))
	require.NoError(t, b.AppendNull())
	require.NoError(t, b.AppendValue(ArrayValue(nil)))

	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	list := arr.(*array.List)
	require.Equal(t, 3, list.Len())
	assert.False(t, list.IsNull(0))
	assert.True(t, list.IsNull(1))
	assert.False(t, list.IsNull(2))

	offsets := list.Offsets()
	assert.Equal(t, int32(2), offsets[1]-offsets[0])
	assert.Equal(t, int32(0), offsets[3]-offsets[2])

	items := list.ListValues().(*array.String)
	assert.Equal(t, "x", items.Value(0))
	assert.Equal(t, "y", items.Value(1))
}

func TestAttributeBuilderTypeMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, tc := range []struct {
		typ   AttributeType
		good  AttributeValue
		bad   AttributeValue
		names [2]string
	}{
		{AttributeTypeString, StringValue("a"), ArrayValue([]string{"a"}), [2]string{"String", "Array"}},
		{AttributeTypeArray, ArrayValue([]string{"a"}), StringValue("a"), [2]string{"Array", "String"}},
	} {
		b := NewAttributeBuilder(mem, tc.typ)
		require.NoError(t, b.AppendValue(tc.good))
		require.NoError(t, b.AppendNull())

		err := b.AppendValue(tc.bad)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
		assert.Contains(t, err.Error(), "expected "+tc.names[0])
		assert.Contains(t, err.Error(), "got "+tc.names[1])
		assert.Equal(t, 2, b.Len())

		arr, err := b.Finish()
		require.NoError(t, err)
		assert.Equal(t, 2, arr.Len())
		arr.Release()
	}
}

func TestAttributeBuilderFinishIsOneShot(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewAttributeBuilder(mem, AttributeTypeString)
	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()

	_, err = b.Finish()
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.True(t, errors.IsType(b.AppendNull(), errors.ErrorTypeInternal))
	assert.True(t, errors.IsType(b.AppendValue(StringValue("x")), errors.ErrorTypeInternal))
	b.Release()
}

func TestValueFromGFFValue(t *testing.T) {
	v, err := ValueFromGFFValue(NewGFFValue("a%3Bb"))
	require.NoError(t, err)
	assert.Equal(t, ValueKindString, v.Kind())
	assert.Equal(t, "a;b", v.Str())

	v, err = ValueFromGFFValue(NewGFFValue("x,y%2Cz"))
	require.NoError(t, err)
	assert.Equal(t, ValueKindArray, v.Kind())
	assert.Equal(t, []string{"x", "y,z"}, v.Items())

	_, err = ValueFromGFFValue(NewGFFValue("ok,bad%zz"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestScannerFirstSeenWins(t *testing.T) {
	s := NewAttributeScanner()
	assert.Equal(t, FirstSeenWins, s.Policy())
	assert.Equal(t, "first-seen-wins", s.Policy().String())

	require.NoError(t, s.PushGFF(&GFFRecord{Attributes: []GFFAttribute{
		{Key: "Dbxref", Value: NewGFFValue("GeneID:1")},
		{Key: "ID", Value: NewGFFValue("g1")},
	}}))
	require.NoError(t, s.PushGFF(&GFFRecord{Attributes: []GFFAttribute{
		{Key: "Dbxref", Value: NewGFFValue("GeneID:2,HGNC:5")},
		{Key: "Alias", Value: NewGFFValue("a,b")},
	}}))

	assert.Equal(t, []AttributeDefPair{
		{"Alias", "Array"},
		{"Dbxref", "String"},
		{"ID", "String"},
	}, s.Collect())

	err := s.PushGTF(&GTFRecord{Attributes: []GTFEntry{{Key: "x", Value: "y"}}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestScannerCollectSortedUnique(t *testing.T) {
	s := NewAttributeScanner()
	keys := []string{"zeta", "alpha", "mid", "alpha", "zeta", "beta", "mid"}
	for _, k := range keys {
		require.NoError(t, s.PushGTF(&GTFRecord{Attributes: []GTFEntry{{Key: k, Value: "v"}, {Key: k, Value: "w"}}}))
	}

	pairs := s.Collect()
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.Name
		assert.Equal(t, "String", p.Type)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, []string{"alpha", "beta", "mid", "zeta"}, names)
	assert.Equal(t, 4, s.Len())
}

func TestGeneIDExample(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	recs := []*GTFRecord{
		{Attributes: []GTFEntry{{Key: "gene_id", Value: "g1"}}},
		{Attributes: []GTFEntry{{Key: "gene_id", Value: "g2"}}},
	}
	s := NewAttributeScanner()
	for _, r := range recs {
		require.NoError(t, s.PushGTF(r))
	}
	assert.Equal(t, []AttributeDefPair{{"gene_id", "String"}}, s.Collect())

	b := NewAttributeBuilder(mem, AttributeTypeString)
	for _, r := range recs {
		require.NoError(t, b.AppendValue(ValueFromGTFEntry(r.Attributes[0])))
	}
	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	col := arr.(*array.String)
	assert.Equal(t, 0, col.NullN())
	assert.Equal(t, []string{"g1", "g2"}, []string{col.Value(0), col.Value(1)})
}

func strPtr(s string) *string { return &s }
