package godbf

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Code     string          `dbf:"stock_code"`
	Price    decimal.Decimal `dbf:"price"`
	Volume   int             `dbf:"volume"`
	Rate     float64         `dbf:"rate"`
	Placed   time.Time       `dbf:"placed"`
	Filled   bool            `dbf:"filled"`
	ID       uint32
	Note     string `dbf:"-"`
	internal string
}

func orderFields() []*Field {
	return []*Field{
		MustField("STOCK_CODE", TypeCharacter, 8, 0),
		MustField("PRICE", TypeNumber, 10, 3),
		MustField("VOLUME", TypeNumber, 6, 0),
		MustField("RATE", TypeFloat, 8, 4),
		MustField("PLACED", TypeDate, 0, 0),
		MustField("FILLED", TypeLogical, 1, 0),
		MustField("ID", TypeInteger, 0, 0),
		MustField("NOTE", TypeCharacter, 4, 0),
	}
}

func TestScan(t *testing.T) {
	placed := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	data := buildTable(t, orderFields(), []Record{
		{Text("600519"), Decimal(decimal.RequireFromString("1688.5")), Decimal(decimal.NewFromInt(300)),
			Float(0.125), Date(placed), Bool(true), Integer(7), Text("skip")},
		{Null(), Null(), Null(), Null(), Null(), Null(), Integer(8), Null()},
	})

	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	var o order
	require.NoError(t, rd.Scan(&o))
	assert.Equal(t, "600519", o.Code)
	assert.True(t, decimal.RequireFromString("1688.5").Equal(o.Price))
	assert.Equal(t, 300, o.Volume)
	assert.Equal(t, 0.125, o.Rate)
	assert.Equal(t, placed, o.Placed)
	assert.True(t, o.Filled)
	assert.Equal(t, uint32(7), o.ID)
	assert.Empty(t, o.Note)

	// nulls reset what the previous record left behind
	require.NoError(t, rd.Scan(&o))
	assert.Empty(t, o.Code)
	assert.True(t, o.Price.IsZero())
	assert.Zero(t, o.Volume)
	assert.True(t, o.Placed.IsZero())
	assert.False(t, o.Filled)
	assert.Equal(t, uint32(8), o.ID)

	assert.ErrorIs(t, rd.Scan(&o), io.EOF)
}

func TestUnmarshalErrors(t *testing.T) {
	fields := []*Field{MustField("N", TypeNumber, 5, 0)}
	rec := Record{Decimal(decimal.NewFromInt(-1))}

	var o order
	assert.Error(t, Unmarshal(fields, rec, o))
	assert.Error(t, Unmarshal(fields, rec, (*order)(nil)))
	n := 3
	assert.Error(t, Unmarshal(fields, rec, &n))
	assert.ErrorIs(t, Unmarshal(fields, Record{}, &o), ErrFieldCount)

	var unsigned struct{ N uint8 }
	assert.ErrorIs(t, Unmarshal(fields, rec, &unsigned), ErrValueOverflow)

	var small struct{ N int8 }
	assert.ErrorIs(t, Unmarshal(fields, Record{Decimal(decimal.NewFromInt(300))}, &small), ErrValueOverflow)

	var flag struct{ N bool }
	assert.ErrorIs(t, Unmarshal(fields, rec, &flag), ErrTypeMismatch)

	var text struct{ N string }
	require.NoError(t, Unmarshal(fields, rec, &text))
	assert.Equal(t, "-1", text.N)
}
