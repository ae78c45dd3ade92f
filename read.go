package godbf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// recordCodec translates between Records and their fixed-width bytes for one field list.
type recordCodec struct {
	fields       []*Field
	charset      Charset
	memo         *MemoFile
	recordLength int
}

func newRecordCodec(h *Header, charset Charset) (*recordCodec, error) {
	c := &recordCodec{fields: h.fields, charset: charset, recordLength: int(h.RecordLength)}
	need := 1
	for _, f := range h.fields {
		need += f.width()
	}
	if c.recordLength == 0 {
		c.recordLength = need
	}
	if c.recordLength < need {
		return nil, fmt.Errorf("%w: record length %d is shorter than its fields (%d)",
			ErrInvalidFieldLength, c.recordLength, need)
	}
	return c, nil
}

// decode converts one full record, status byte included.
func (c *recordCodec) decode(buf []byte) (rec Record, deleted bool, err error) {
	deleted = buf[0] == deletedFlag
	rec = make(Record, len(c.fields))
	pos := 1
	for i, f := range c.fields {
		w := f.width()
		rec[i], err = c.decodeField(f, buf[pos:pos+w])
		if err != nil {
			return nil, deleted, err
		}
		pos += w
	}
	return rec, deleted, nil
}

func (c *recordCodec) decodeField(f *Field, b []byte) (Value, error) {
	switch f.typ {
	case TypeCharacter:
		s, err := c.charset.Decode(b)
		if err != nil {
			return Value{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		return Text(s), nil

	case TypeDate:
		t, err := time.Parse("20060102", string(b))
		if err != nil {
			// empty or improper dates are null
			return Null(), nil
		}
		return Date(t), nil

	case TypeFloat:
		num := trimNumeric(b)
		if len(num) == 0 || bytes.IndexByte(num, '?') >= 0 {
			return Null(), nil
		}
		v, err := strconv.ParseFloat(string(num), 64)
		if err != nil {
			return Value{}, &ParseError{Field: f.name, Type: f.typ, Raw: append([]byte(nil), b...), Err: err}
		}
		return Float(v), nil

	case TypeNumber:
		num := bytes.ReplaceAll(trimNumeric(b), []byte{NUL}, nil)
		if len(bytes.Trim(num, "?*")) == 0 {
			return Null(), nil
		}
		if bytes.ContainsAny(num, "?*") {
			return Value{}, &ParseError{Field: f.name, Type: f.typ, Raw: append([]byte(nil), b...),
				Err: errors.New("placeholder inside numeric literal")}
		}
		d, err := decimal.NewFromString(string(num))
		if err != nil {
			return Value{}, &ParseError{Field: f.name, Type: f.typ, Raw: append([]byte(nil), b...), Err: err}
		}
		return Decimal(d), nil

	case TypeInteger:
		return Integer(int32(binary.LittleEndian.Uint32(b))), nil

	case TypeLogical:
		switch b[0] {
		case 'T', 't', 'Y':
			return Bool(true), nil
		}
		return Bool(false), nil

	case TypeMemo:
		if c.memo == nil || len(b) < 4 {
			return Null(), nil
		}
		address := int32(binary.LittleEndian.Uint32(b))
		if address <= 0 {
			return Null(), nil
		}
		s, err := c.memo.Memo(uint32(address))
		if err != nil {
			return Value{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		return Text(s), nil
	}
	return Value{}, fmt.Errorf("%w: %q", ErrInvalidFieldType, byte(f.typ))
}

// trimNumeric drops the space padding around a numeric literal.
func trimNumeric(b []byte) []byte {
	return bytes.Trim(b, " ")
}

// Reader iterates over the active records of a table.
type Reader struct {
	r       *bufio.Reader
	src     io.ReaderAt
	closers []io.Closer
	header  *Header
	codec   *recordCodec
	buf     []byte
	logger  *zap.Logger
	done    bool
	closed  bool
}

// NewReader decodes the table header from r. Records are then read sequentially with Next.
// If r is also an io.ReaderAt, RecordAt can address records directly.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return newReader(r, newOptions(opts))
}

func newReader(r io.Reader, o *options) (*Reader, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	charset := o.charset
	if charset == nil {
		charset = CharsetForCode(h.LanguageDriver)
	}
	codec, err := newRecordCodec(h, charset)
	if err != nil {
		return nil, err
	}
	rd := &Reader{
		r:      br,
		header: h,
		codec:  codec,
		buf:    make([]byte, codec.recordLength),
		logger: o.logger,
	}
	if ra, ok := r.(io.ReaderAt); ok {
		rd.src = ra
	}
	if o.memo != nil {
		if err := rd.attachMemo(o.memo); err != nil {
			return nil, err
		}
	}
	rd.logger.Debug("table opened",
		zap.Uint8("signature", h.Signature),
		zap.Uint32("records", h.NumRecords),
		zap.Int("fields", len(h.fields)),
		zap.String("charset", charset.Name()))
	return rd, nil
}

// attachMemo enables MEMO decoding; it has no effect on non-FoxPro tables.
func (rd *Reader) attachMemo(r io.ReaderAt) error {
	if rd.header.Signature != SigVisualFoxPro && rd.header.Signature != SigVisualFoxProAI {
		rd.logger.Debug("memo file ignored for non-FoxPro table", zap.Uint8("signature", rd.header.Signature))
		return nil
	}
	memo, err := OpenMemo(r, rd.codec.charset)
	if err != nil {
		return fmt.Errorf("open memo: %w", err)
	}
	rd.codec.memo = memo
	rd.logger.Debug("memo file attached", zap.Uint16("block_size", memo.header.BlockSize))
	return nil
}

func (rd *Reader) Header() *Header {
	return rd.header
}

func (rd *Reader) Fields() []*Field {
	return rd.header.fields
}

// NumRecords is the record count stored in the header, deleted records included.
func (rd *Reader) NumRecords() uint32 {
	return rd.header.NumRecords
}

// Next returns the next active record, skipping deleted ones. It returns io.EOF at the end of
// the table: at the 0x1A sentinel, at end of input, or at a truncated trailing record.
func (rd *Reader) Next() (Record, error) {
	if rd.closed {
		return nil, ErrClosed
	}
	for !rd.done {
		if _, err := io.ReadFull(rd.r, rd.buf[:1]); err != nil {
			return nil, rd.finish(err)
		}
		if rd.buf[0] == EOF {
			rd.done = true
			break
		}
		if _, err := io.ReadFull(rd.r, rd.buf[1:]); err != nil {
			return nil, rd.finish(err)
		}
		rec, deleted, err := rd.codec.decode(rd.buf)
		if err != nil {
			return nil, err
		}
		if deleted {
			continue
		}
		return rec, nil
	}
	return nil, io.EOF
}

func (rd *Reader) finish(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		rd.done = true
		return io.EOF
	}
	return fmt.Errorf("read record: %w", err)
}

// RecordAt reads record index directly from its byte offset.
func (rd *Reader) RecordAt(index uint32) (Record, error) {
	if rd.closed {
		return nil, ErrClosed
	}
	if rd.src == nil {
		return nil, ErrNotSeekable
	}
	if index >= rd.header.NumRecords {
		return nil, fmt.Errorf("index %d out of range [0,%d)", index, rd.header.NumRecords)
	}
	start := int64(rd.header.HeaderLength) + int64(rd.codec.recordLength)*int64(index)
	data := make([]byte, rd.codec.recordLength)
	if n, err := rd.src.ReadAt(data, start); n < len(data) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, endOfData(fmt.Sprintf("record %d", index), err)
	}
	if data[0] == EOF {
		return nil, io.EOF
	}
	rec, deleted, err := rd.codec.decode(data)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, fmt.Errorf("record %d: %w", index, ErrDeleted)
	}
	return rec, nil
}

// ReadAll drains the remaining active records.
func (rd *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close releases the table and memo files opened by Open. Both are closed even if one fails.
func (rd *Reader) Close() error {
	if rd.closed {
		return nil
	}
	rd.closed = true
	var err error
	for _, c := range rd.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
