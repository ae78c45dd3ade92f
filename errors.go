package godbf

import (
	"errors"
	"fmt"
)

// Structural errors: the bytes on disk cannot be interpreted.
var (
	ErrUnexpectedEndOfData   = errors.New("unexpected end of data")
	ErrInvalidFieldType      = errors.New("invalid field type")
	ErrInvalidFieldName      = errors.New("invalid field name")
	ErrInvalidFieldLength    = errors.New("invalid field length")
	ErrInvalidDecimalCount   = errors.New("invalid decimal count")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrUnsupportedRecordType = errors.New("unsupported memo record type")
	ErrInvalidMemoBlockSize  = errors.New("invalid memo block size")
)

// Schema violations: the caller asked for something the table definition does not allow.
var (
	ErrTypeMismatch     = errors.New("value does not match field type")
	ErrFieldCount       = errors.New("invalid number of fields in record")
	ErrFieldsAlreadySet = errors.New("fields have already been set")
	ErrNoFields         = errors.New("fields should be set before adding records")
	ErrSchemaFrozen     = errors.New("field belongs to a table and cannot be changed")
	ErrMemoWrite        = errors.New("writing memo values is not supported")
	ErrValueOverflow    = errors.New("value does not fit field length")
)

// State errors.
var (
	ErrClosed      = errors.New("table is closed")
	ErrFinalized   = errors.New("writer has already been finalized")
	ErrDeleted     = errors.New("record is deleted")
	ErrNotSeekable = errors.New("source does not support random access")
)

// ParseError reports a NUMBER or FLOAT field whose content is not a numeric literal.
type ParseError struct {
	Field string
	Type  FieldType
	Raw   []byte
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s field %s: raw=%q: %v", e.Type, e.Field, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
