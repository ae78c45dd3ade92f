package godbf

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindBool
	KindDecimal
	KindFloat
	KindDate
	KindInteger
)

var kindNames = [...]string{"null", "text", "bool", "decimal", "float", "date", "integer"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is one field of a record. The zero Value is null.
type Value struct {
	kind Kind
	text string
	b    bool
	dec  decimal.Decimal
	f    float64
	date time.Time
	i    int32
}

// Record holds one value per field, in field order.
type Record []Value

func Null() Value                     { return Value{} }
func Text(s string) Value             { return Value{kind: KindText, text: s} }
func Bool(b bool) Value               { return Value{kind: KindBool, b: b} }
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func Float(f float64) Value           { return Value{kind: KindFloat, f: f} }
func Integer(i int32) Value           { return Value{kind: KindInteger, i: i} }

// Date keeps only the calendar day of t.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DecimalString parses s as an exact decimal value.
func DecimalString(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, err
	}
	return Decimal(d), nil
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the text of a KindText value and "" otherwise.
func (v Value) Str() string { return v.text }

func (v Value) Bool() bool               { return v.b }
func (v Value) Decimal() decimal.Decimal { return v.dec }
func (v Value) Float() float64           { return v.f }
func (v Value) Date() time.Time          { return v.date }
func (v Value) Int() int32               { return v.i }

// Interface returns the Go value held, or nil for null.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindText:
		return v.text
	case KindBool:
		return v.b
	case KindDecimal:
		return v.dec
	case KindFloat:
		return v.f
	case KindDate:
		return v.date
	case KindInteger:
		return v.i
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindDecimal:
		return v.dec.String()
	case KindFloat:
		return decimal.NewFromFloat(v.f).String()
	case KindDate:
		return v.date.Format("2006-01-02")
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	default:
		return ""
	}
}

// Equal compares kinds and payloads; decimals compare numerically.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindBool:
		return v.b == o.b
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindFloat:
		return v.f == o.f
	case KindDate:
		return v.date.Equal(o.date)
	case KindInteger:
		return v.i == o.i
	default:
		return true
	}
}
