package godbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReadHeader decodes the prologue and the field descriptors and leaves r positioned at the
// first record, HeaderLength bytes from the start.
func ReadHeader(r io.Reader) (*Header, error) {
	var raw rawHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, endOfData("header", err)
	}
	h := &Header{
		Signature:             raw.Version,
		Year:                  1900 + int(raw.LastUpdateYear),
		Month:                 int(raw.LastUpdateMonth),
		Day:                   int(raw.LastUpdateDay),
		NumRecords:            raw.NumRecords,
		HeaderLength:          raw.HeaderLength,
		RecordLength:          raw.RecordLength,
		IncompleteTransaction: raw.Flag,
		EncryptionFlag:        raw.EncryptFlag,
		Flags:                 raw.MDXFlag,
		LanguageDriver:        raw.LanguageDriverID,
	}
	fields, err := readFields(r)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		f.frozen = true
	}
	h.fields = fields

	// anything between the terminator and the first record is legacy padding (the FoxPro backlink)
	consumed := int64(headerSize + fieldSize*len(fields) + 1)
	if gap := int64(h.HeaderLength) - consumed; gap > 0 {
		if _, err := io.CopyN(io.Discard, r, gap); err != nil {
			return nil, endOfData("header padding", err)
		}
	}
	return h, nil
}

func readFields(r io.Reader) ([]*Field, error) {
	var fields []*Field
	for {
		f, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", len(fields)+1, err)
		}
		if f == nil {
			return fields, nil
		}
		fields = append(fields, f)
	}
}

// readField returns nil, nil at the terminator without consuming more than its single byte.
func readField(r io.Reader) (*Field, error) {
	var buf [fieldSize]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return nil, endOfData("field descriptor", err)
	}
	if buf[0] == headerTerminator {
		return nil, nil
	}
	if _, err := io.ReadFull(r, buf[1:]); err != nil {
		return nil, endOfData("field descriptor", err)
	}
	return decodeField(buf[:])
}

// endOfData maps short reads to ErrUnexpectedEndOfData and wraps other I/O failures.
func endOfData(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrUnexpectedEndOfData, what)
	}
	return fmt.Errorf("read %s: %w", what, err)
}
