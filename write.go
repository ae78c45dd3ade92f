package godbf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// validate checks arity and value kinds before anything is encoded.
func (c *recordCodec) validate(rec Record) error {
	if len(rec) != len(c.fields) {
		return fmt.Errorf("%w: got %d values for %d fields", ErrFieldCount, len(rec), len(c.fields))
	}
	for i, f := range c.fields {
		v := rec[i]
		if v.IsNull() {
			continue
		}
		var want Kind
		switch f.typ {
		case TypeCharacter:
			want = KindText
		case TypeLogical:
			want = KindBool
		case TypeNumber:
			want = KindDecimal
		case TypeFloat:
			want = KindFloat
		case TypeDate:
			want = KindDate
		case TypeInteger:
			want = KindInteger
		case TypeMemo:
			return fmt.Errorf("field %s: %w", f.name, ErrMemoWrite)
		}
		if v.kind != want {
			return fmt.Errorf("%w: field %s (%s) cannot hold a %s value", ErrTypeMismatch, f.name, f.typ, v.kind)
		}
	}
	return nil
}

// encode builds the full record bytes, status byte first. Nothing is written on error.
func (c *recordCodec) encode(rec Record) ([]byte, error) {
	if err := c.validate(rec); err != nil {
		return nil, err
	}
	buf := bytes.Repeat([]byte{SPACE}, c.recordLength)
	pos := 1
	for i, f := range c.fields {
		w := f.width()
		if err := c.encodeField(f, rec[i], buf[pos:pos+w]); err != nil {
			return nil, err
		}
		pos += w
	}
	return buf, nil
}

// encodeField fills dst, which arrives filled with spaces.
func (c *recordCodec) encodeField(f *Field, v Value, dst []byte) error {
	switch f.typ {
	case TypeCharacter:
		if v.IsNull() {
			return nil
		}
		b, err := encodeFitting(c.charset, v.text, len(dst))
		if err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		copy(dst, b)

	case TypeDate:
		if v.IsNull() {
			return nil
		}
		if y := v.date.Year(); y < 0 || y > 9999 {
			return fmt.Errorf("%w: field %s year %d", ErrValueOverflow, f.name, y)
		}
		copy(dst, v.date.Format("20060102"))

	case TypeFloat:
		if v.IsNull() {
			return nil
		}
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("%w: field %s cannot hold %v", ErrValueOverflow, f.name, v.f)
		}
		return alignRight(f, decimal.NewFromFloat(v.f).StringFixed(int32(f.decimals)), dst)

	case TypeNumber:
		if v.IsNull() {
			return nil
		}
		return alignRight(f, v.dec.StringFixed(int32(f.decimals)), dst)

	case TypeInteger:
		if v.IsNull() {
			binary.LittleEndian.PutUint32(dst, 0)
			return nil
		}
		binary.LittleEndian.PutUint32(dst, uint32(v.i))

	case TypeLogical:
		switch {
		case v.IsNull():
			dst[0] = '?'
		case v.b:
			dst[0] = 'T'
		default:
			dst[0] = 'F'
		}

	case TypeMemo:
		// only null reaches here; a zero block address reads back as null
		if len(dst) == integerLength {
			binary.LittleEndian.PutUint32(dst, 0)
		}
	}
	return nil
}

// encodeFitting encodes s, dropping trailing characters until the bytes fit in size, so that a
// multibyte character is never cut in half.
func encodeFitting(cs Charset, s string, size int) ([]byte, error) {
	for {
		b, err := cs.Encode(s)
		if err != nil || len(b) <= size {
			return b, err
		}
		if cut := size * utf8.UTFMax; len(s) > cut {
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			s = s[:cut]
			continue
		}
		_, n := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-n]
	}
}

// alignRight right-aligns a formatted number in dst; StringFixed has already rounded half up.
func alignRight(f *Field, s string, dst []byte) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%w: field %s(%d,%d) cannot hold %s", ErrValueOverflow, f.name, f.length, f.decimals, s)
	}
	copy(dst[len(dst)-len(s):], s)
	return nil
}

// Writer builds a new table in memory. Rows are encoded as they are appended and written out
// by a single call to Finalize.
type Writer struct {
	header    *Header
	charset   Charset
	codec     *recordCodec
	rows      [][]byte
	logger    *zap.Logger
	finalized bool
}

func NewWriter(opts ...Option) *Writer {
	o := newOptions(opts)
	return &Writer{
		header:  o.newHeader(),
		charset: o.charsetOrDefault(),
		logger:  o.logger,
	}
}

func (w *Writer) Header() *Header {
	return w.header
}

// SetFields fixes the table schema. It can be called only once.
func (w *Writer) SetFields(fields ...*Field) error {
	if err := w.header.SetFields(fields...); err != nil {
		return err
	}
	codec, err := newRecordCodec(w.header, w.charset)
	if err != nil {
		return err
	}
	w.codec = codec
	return nil
}

// Append validates and buffers one record.
func (w *Writer) Append(rec Record) error {
	if w.finalized {
		return ErrFinalized
	}
	if w.codec == nil {
		return ErrNoFields
	}
	data, err := w.codec.encode(rec)
	if err != nil {
		return err
	}
	w.rows = append(w.rows, data)
	return nil
}

// Finalize writes the header, every buffered record and the end-of-table sentinel.
func (w *Writer) Finalize(out io.Writer) error {
	if w.finalized {
		return ErrFinalized
	}
	if w.codec == nil {
		return ErrNoFields
	}
	w.finalized = true
	w.header.NumRecords = uint32(len(w.rows))

	bw := bufio.NewWriter(out)
	if err := w.header.Write(bw); err != nil {
		return err
	}
	for _, row := range w.rows {
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := bw.WriteByte(EOF); err != nil {
		return fmt.Errorf("write end of table: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	w.logger.Debug("table written", zap.Int("records", len(w.rows)))
	w.rows = nil
	return nil
}

// Appender adds records to a table file in place. Record bytes go straight to disk; the record
// count and update date in the header are patched on Close.
type Appender struct {
	f       *os.File
	header  *Header
	charset Charset
	codec   *recordCodec
	end     int64 // offset after the last record, where the next record goes
	fresh   bool
	logger  *zap.Logger
	closed  bool
}

// OpenAppend opens or creates fileName. An empty or missing file starts a new table whose
// fields must be set with SetFields.
func OpenAppend(fileName string, opts ...Option) (*Appender, error) {
	o := newOptions(opts)
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	fileStat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	a := &Appender{f: f, logger: o.logger}
	if fileStat.Size() == 0 {
		a.header = o.newHeader()
		a.charset = o.charsetOrDefault()
		a.fresh = true
		return a, nil
	}

	a.header, err = ReadHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	a.charset = o.charset
	if a.charset == nil {
		a.charset = CharsetForCode(a.header.LanguageDriver)
	}
	if a.codec, err = newRecordCodec(a.header, a.charset); err != nil {
		_ = f.Close()
		return nil, err
	}
	a.end = a.endOfRecords(fileStat.Size())
	a.logger.Debug("table opened for append",
		zap.String("file", fileName),
		zap.Uint32("records", a.header.NumRecords))
	return a, nil
}

// endOfRecords locates the byte after the last record from the header. A record count that
// claims more records than the file holds is cut down to the whole records present. Whatever
// follows the records (the sentinel, trailing bytes) is overwritten by the next record and cut
// off on Close.
func (a *Appender) endOfRecords(size int64) int64 {
	headerLength := int64(a.header.HeaderLength)
	recordLength := int64(a.codec.recordLength)
	records := int64(a.header.NumRecords)
	if headerLength+records*recordLength > size {
		records = 0
		if size > headerLength {
			records = (size - headerLength) / recordLength
		}
		a.logger.Warn("record count exceeds file size",
			zap.Uint32("header_records", a.header.NumRecords),
			zap.Int64("records", records))
		a.header.NumRecords = uint32(records)
	}
	return headerLength + records*recordLength
}

func (a *Appender) Header() *Header {
	return a.header
}

// SetFields defines the schema of a new table and writes its header.
func (a *Appender) SetFields(fields ...*Field) error {
	if a.closed {
		return ErrClosed
	}
	if !a.fresh {
		return ErrFieldsAlreadySet
	}
	if err := a.header.SetFields(fields...); err != nil {
		return err
	}
	codec, err := newRecordCodec(a.header, a.charset)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := a.header.Write(&buf); err != nil {
		return err
	}
	if _, err := a.f.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	a.codec = codec
	a.end = int64(buf.Len())
	a.fresh = false
	return nil
}

// Append encodes rec and writes it at the end of the record area.
func (a *Appender) Append(rec Record) error {
	if a.closed {
		return ErrClosed
	}
	if a.codec == nil {
		return ErrNoFields
	}
	data, err := a.codec.encode(rec)
	if err != nil {
		return err
	}
	if _, err := a.f.WriteAt(data, a.end); err != nil {
		return multierr.Append(fmt.Errorf("write record: %w", err), a.rollbackRecord())
	}
	a.end += int64(len(data))
	a.header.NumRecords++
	return nil
}

// rollbackRecord cuts a partially written record off the file.
func (a *Appender) rollbackRecord() error {
	if err := a.f.Truncate(a.end); err != nil {
		return fmt.Errorf("truncate while rolling back record: %w", err)
	}
	return nil
}

// Close patches the record count and update date, rewrites the sentinel, syncs and closes
// the file. The file is closed even if patching fails.
func (a *Appender) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	var err error
	if a.codec != nil {
		err = a.saveHeader()
	}
	return multierr.Append(err, a.f.Close())
}

func (a *Appender) saveHeader() error {
	if err := a.saveNumRecords(); err != nil {
		return err
	}
	if err := a.saveUpdateTime(); err != nil {
		return err
	}
	if _, err := a.f.WriteAt([]byte{EOF}, a.end); err != nil {
		return fmt.Errorf("write end of table: %w", err)
	}
	if err := a.f.Truncate(a.end + 1); err != nil {
		return fmt.Errorf("truncate after end of table: %w", err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("sync table: %w", err)
	}
	a.logger.Debug("table closed", zap.Uint32("records", a.header.NumRecords))
	return nil
}

func (a *Appender) saveNumRecords() error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], a.header.NumRecords)
	if _, err := a.f.WriteAt(b[:], 4); err != nil {
		return fmt.Errorf("write record count: %w", err)
	}
	return nil
}

func (a *Appender) saveUpdateTime() error {
	a.header.stamp()
	b := []byte{byte(a.header.Year - 1900), byte(a.header.Month), byte(a.header.Day)}
	if _, err := a.f.WriteAt(b, 1); err != nil {
		return fmt.Errorf("write update date: %w", err)
	}
	return nil
}
