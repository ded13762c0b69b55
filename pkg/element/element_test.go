package element

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseType(t *testing.T) {
	for name, expected := range map[string]Type{
		"string":    TypeString,
		"":          TypeString,
		"LONG":      TypeLong,
		"int":       TypeLong,
		"double":    TypeDouble,
		"boolean":   TypeBool,
		"timestamp": TypeDate,
		"bytes":     TypeBytes,
	} {
		typ, err := ParseType(name)
		assert.NoError(t, err, name)
		assert.Equal(t, expected, typ, name)
	}

	_, err := ParseType("geometry")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	c, err := Convert(float64(42), TypeLong)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), c.Value)

	c, err = Convert("3.5", TypeDouble)
	assert.NoError(t, err)
	assert.Equal(t, 3.5, c.Value)

	c, err = Convert("true", TypeBool)
	assert.NoError(t, err)
	assert.Equal(t, true, c.Value)

	c, err = Convert("2024-01-02 03:04:05", TypeDate)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-02 03:04:05", c.String())

	c, err = Convert(nil, TypeLong)
	assert.NoError(t, err)
	assert.True(t, c.IsNull())

	_, err = Convert("abc", TypeLong)
	assert.Error(t, err)

	_, err = Convert(map[string]any{}, TypeLong)
	assert.Error(t, err)
}

func TestRecordByteSize(t *testing.T) {
	r := NewRecord(
		NewStringColumn("hello"),
		NewLongColumn(1),
		NewBoolColumn(true),
		NewNullColumn(),
		NewDateColumn(time.Now()),
	)
	assert.Equal(t, int64(5+8+1+0+8), r.ByteSize())
	assert.Equal(t, 5, r.Len())
}

func TestRecordAccess(t *testing.T) {
	r := NewRecord(NewStringColumn("a"), NewLongColumn(2))

	assert.Equal(t, "a", r.Get(0).String())
	assert.True(t, r.Get(5).IsNull())
	assert.Error(t, r.Set(2, NewNullColumn()))

	clone := r.Clone()
	assert.NoError(t, clone.Set(0, NewStringColumn("b")))
	assert.Equal(t, "a", r.Get(0).String())
	assert.Equal(t, "[b, 2]", clone.String())
}
