package importer

import (
	"math"
	"strconv"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statbridge/datatable"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		dt   arrow.DataType
		want datatable.Kind
	}{
		{arrow.PrimitiveTypes.Int8, datatable.KindInteger},
		{arrow.PrimitiveTypes.Uint64, datatable.KindInteger},
		{arrow.FixedWidthTypes.Boolean, datatable.KindBoolean},
		{arrow.BinaryTypes.String, datatable.KindText},
		{arrow.BinaryTypes.LargeString, datatable.KindText},
		{arrow.FixedWidthTypes.Float16, datatable.KindFloat},
		{arrow.PrimitiveTypes.Float64, datatable.KindFloat},
		{&arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}, datatable.KindText},
		{&arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.PrimitiveTypes.Int64}, datatable.KindUnsupported},
		{arrow.FixedWidthTypes.Date32, datatable.KindUnsupported},
		{arrow.BinaryTypes.Binary, datatable.KindUnsupported},
		{nil, datatable.KindUnsupported},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.dt != nil {
			name = tt.dt.String()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.dt))
		})
	}
}

func TestFormatFloatSpecialValues(t *testing.T) {
	assert.Equal(t, "NaN", FormatFloat(math.NaN(), 64))
	assert.Equal(t, "∞", FormatFloat(math.Inf(1), 64))
	assert.Equal(t, "-∞", FormatFloat(math.Inf(-1), 64))
	assert.Equal(t, "1.5", FormatFloat(1.5, 64))
	assert.Equal(t, "3", FormatFloat(3.0, 64))
	assert.Equal(t, "0.1", FormatFloat(0.1, 64))
	assert.Equal(t, "-0.25", FormatFloat(-0.25, 64))
}

func TestFormatFloatRoundTrips(t *testing.T) {
	values := []float64{
		0, 1, -1, 0.1, 1.0 / 3.0, math.Pi, 1e-300, 123456789.123456789,
		math.MaxFloat64, math.SmallestNonzeroFloat64, -2.5e17, 1e21, 100,
	}
	for _, v := range values {
		s := FormatFloat(v, 64)
		got, err := strconv.ParseFloat(s, 64)
		require.NoError(t, err, s)
		assert.Equal(t, v, got, s)
	}

	for _, v := range []float32{0.1, 1.0 / 3.0, 16777216, -7.25} {
		s := FormatFloat(float64(v), 32)
		got, err := strconv.ParseFloat(s, 32)
		require.NoError(t, err, s)
		assert.Equal(t, v, float32(got), s)
	}
}

func TestFormatValueMissingIsEmpty(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ib := array.NewInt32Builder(mem)
	defer ib.Release()
	ib.AppendNull()
	ints := ib.NewArray()
	defer ints.Release()

	bb := array.NewBooleanBuilder(mem)
	defer bb.Release()
	bb.AppendNull()
	bools := bb.NewArray()
	defer bools.Release()

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	sb.AppendNull()
	strs := sb.NewArray()
	defer strs.Release()

	fb := array.NewFloat64Builder(mem)
	defer fb.Release()
	fb.AppendNull()
	floats := fb.NewArray()
	defer floats.Release()

	for _, arr := range []arrow.Array{ints, bools, strs, floats} {
		s, missing := FormatValue(arr, 0)
		assert.Equal(t, "", s, arr.DataType().String())
		assert.True(t, missing, arr.DataType().String())
	}
}

func TestFormatColumn(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t.Run("integers", func(t *testing.T) {
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues([]int64{-1234567, 0, 42}, []bool{true, true, true})
		arr := b.NewArray()
		defer arr.Release()

		values, missing, kind := FormatColumn(arr)
		assert.Equal(t, datatable.KindInteger, kind)
		assert.Equal(t, []string{"-1234567", "0", "42"}, values)
		assert.Equal(t, []bool{false, false, false}, missing)
	})

	t.Run("unsigned", func(t *testing.T) {
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.Append(math.MaxUint64)
		arr := b.NewArray()
		defer arr.Release()

		values, _, _ := FormatColumn(arr)
		assert.Equal(t, []string{"18446744073709551615"}, values)
	})

	t.Run("booleans", func(t *testing.T) {
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues([]bool{true, false, true}, []bool{true, true, false})
		arr := b.NewArray()
		defer arr.Release()

		values, missing, kind := FormatColumn(arr)
		assert.Equal(t, datatable.KindBoolean, kind)
		assert.Equal(t, []string{"1", "0", ""}, values)
		assert.Equal(t, []bool{false, false, true}, missing)
	})

	t.Run("text verbatim", func(t *testing.T) {
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues([]string{"  padded ", "", "ünïcode"}, nil)
		arr := b.NewArray()
		defer arr.Release()

		values, missing, kind := FormatColumn(arr)
		assert.Equal(t, datatable.KindText, kind)
		assert.Equal(t, []string{"  padded ", "", "ünïcode"}, values)
		assert.Equal(t, []bool{false, false, false}, missing)
	})

	t.Run("float32 precision", func(t *testing.T) {
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues([]float32{0.1, float32(math.Inf(-1))}, nil)
		arr := b.NewArray()
		defer arr.Release()

		values, _, kind := FormatColumn(arr)
		assert.Equal(t, datatable.KindFloat, kind)
		assert.Equal(t, []string{"0.1", "-∞"}, values)
	})

	t.Run("unsupported", func(t *testing.T) {
		b := array.NewDate32Builder(mem)
		defer b.Release()
		b.Append(arrow.Date32(1))
		arr := b.NewArray()
		defer arr.Release()

		values, missing, kind := FormatColumn(arr)
		assert.Equal(t, datatable.KindUnsupported, kind)
		assert.Nil(t, values)
		assert.Nil(t, missing)
	})
}

func TestFormatDictionaryLabels(t *testing.T) {
	mem := memory.NewGoAllocator()
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}

	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	require.NoError(t, b.AppendString("low"))
	require.NoError(t, b.AppendString("high"))
	b.AppendNull()
	require.NoError(t, b.AppendString("low"))
	arr := b.NewArray()
	defer arr.Release()

	values, missing, kind := FormatColumn(arr)
	assert.Equal(t, datatable.KindText, kind)
	assert.Equal(t, []string{"low", "high", "", "low"}, values)
	assert.Equal(t, []bool{false, false, true, false}, missing)
}
