package godbf

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// modelIndex maps table field positions to struct field positions using `dbf:"NAME"` tags.
// Untagged exported fields match by their Go name; "-" skips a field.
func modelIndex(fields []*Field, rt reflect.Type) map[int]int {
	index := make(map[int]int)
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" || sf.Anonymous {
			continue
		}
		column := sf.Tag.Get("dbf")
		if column == "-" {
			continue
		}
		if column == "" {
			column = sf.Name
		}
		for j, f := range fields {
			if strings.EqualFold(f.name, column) {
				index[j] = i
				break
			}
		}
	}
	return index
}

// Unmarshal copies rec into the struct pointed to by v. Text is stored without its trailing
// space padding; null values leave the zero value.
func Unmarshal(fields []*Field, rec Record, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("Unmarshal requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("Unmarshal requires a pointer to a struct, not a %s", rv.Kind())
	}
	if len(rec) != len(fields) {
		return fmt.Errorf("%w: got %d values for %d fields", ErrFieldCount, len(rec), len(fields))
	}
	for col, i := range modelIndex(fields, rv.Type()) {
		fieldValue := rv.Field(i)
		if err := assign(fieldValue, rec[col]); err != nil {
			return fmt.Errorf("field %s: %w", fields[col].name, err)
		}
	}
	return nil
}

// Scan reads the next active record into v. It returns io.EOF at the end of the table.
func (rd *Reader) Scan(v interface{}) error {
	rec, err := rd.Next()
	if err != nil {
		return err
	}
	return Unmarshal(rd.header.fields, rec, v)
}

func assign(fieldValue reflect.Value, v Value) error {
	fieldValue.Set(reflect.Zero(fieldValue.Type()))
	if v.IsNull() {
		return nil
	}
	switch fieldValue.Type() {
	case timeType:
		if v.kind != KindDate {
			return mismatch(fieldValue, v)
		}
		fieldValue.Set(reflect.ValueOf(v.date))
		return nil
	case decimalType:
		switch v.kind {
		case KindDecimal:
			fieldValue.Set(reflect.ValueOf(v.dec))
		case KindFloat:
			fieldValue.Set(reflect.ValueOf(decimal.NewFromFloat(v.f)))
		case KindInteger:
			fieldValue.Set(reflect.ValueOf(decimal.NewFromInt32(v.i)))
		default:
			return mismatch(fieldValue, v)
		}
		return nil
	}

	switch fieldValue.Kind() {
	case reflect.String:
		if v.kind == KindText {
			fieldValue.SetString(strings.TrimRight(v.text, " "))
		} else {
			fieldValue.SetString(v.String())
		}
	case reflect.Bool:
		if v.kind != KindBool {
			return mismatch(fieldValue, v)
		}
		fieldValue.SetBool(v.b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch v.kind {
		case KindInteger:
			n = int64(v.i)
		case KindDecimal:
			n = v.dec.IntPart()
		case KindFloat:
			n = int64(v.f)
		default:
			return mismatch(fieldValue, v)
		}
		if fieldValue.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrValueOverflow, n, fieldValue.Type())
		}
		fieldValue.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n int64
		switch v.kind {
		case KindInteger:
			n = int64(v.i)
		case KindDecimal:
			n = v.dec.IntPart()
		case KindFloat:
			n = int64(v.f)
		default:
			return mismatch(fieldValue, v)
		}
		if n < 0 || fieldValue.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrValueOverflow, n, fieldValue.Type())
		}
		fieldValue.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		switch v.kind {
		case KindFloat:
			fieldValue.SetFloat(v.f)
		case KindDecimal:
			fieldValue.SetFloat(v.dec.InexactFloat64())
		case KindInteger:
			fieldValue.SetFloat(float64(v.i))
		default:
			return mismatch(fieldValue, v)
		}
	default:
		return mismatch(fieldValue, v)
	}
	return nil
}

func mismatch(fieldValue reflect.Value, v Value) error {
	return fmt.Errorf("%w: cannot store %s in %s", ErrTypeMismatch, v.kind, fieldValue.Type())
}
