package godbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"
)

// FieldType is the ASCII type tag of a field descriptor.
type FieldType byte

const (
	TypeCharacter FieldType = 'C'
	TypeLogical   FieldType = 'L'
	TypeNumber    FieldType = 'N'
	TypeFloat     FieldType = 'F'
	TypeDate      FieldType = 'D'
	TypeMemo      FieldType = 'M'
	TypeInteger   FieldType = 'I'
)

func (t FieldType) String() string {
	return string(rune(t))
}

func (t FieldType) valid() bool {
	switch t {
	case TypeCharacter, TypeLogical, TypeNumber, TypeFloat, TypeDate, TypeMemo, TypeInteger:
		return true
	}
	return false
}

const (
	headerSize      = 32
	fieldSize       = 32
	maxFieldNameLen = 10
	dateLength      = 8
	integerLength   = 4
	memoLength      = 4
)

// rawHeader is the 32-byte table prologue, little-endian.
type rawHeader struct {
	Version          byte
	LastUpdateYear   byte
	LastUpdateMonth  byte
	LastUpdateDay    byte
	NumRecords       uint32
	HeaderLength     uint16
	RecordLength     uint16
	Reserved         [2]byte
	Flag             byte
	EncryptFlag      byte
	Reserved2        [12]byte
	MDXFlag          byte
	LanguageDriverID byte
	Reserved3        [2]byte
}

// rawField is one 32-byte field descriptor.
type rawField struct {
	Name      [11]byte
	Type      byte
	Reserved1 [4]byte
	Length    byte
	Decimal   byte
	Reserved2 [14]byte
}

// Field describes one column of a table.
type Field struct {
	name     string
	typ      FieldType
	length   int
	decimals int
	frozen   bool
}

// NewField validates and builds a field. Length is ignored for DATE and INTEGER fields,
// and a MEMO field with length 0 gets the 4-byte FoxPro block address.
func NewField(name string, typ FieldType, length, decimals int) (*Field, error) {
	f := &Field{}
	if err := f.SetName(name); err != nil {
		return nil, err
	}
	if err := f.SetType(typ); err != nil {
		return nil, err
	}
	switch typ {
	case TypeDate, TypeInteger:
	case TypeMemo:
		if length == 0 {
			length = memoLength
		}
		fallthrough
	default:
		if err := f.SetLength(length); err != nil {
			return nil, err
		}
	}
	if err := f.SetDecimalCount(decimals); err != nil {
		return nil, err
	}
	return f, nil
}

// MustField is NewField for static schemas; it panics on error.
func MustField(name string, typ FieldType, length, decimals int) *Field {
	f, err := NewField(name, typ, length, decimals)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Field) Name() string      { return f.name }
func (f *Field) Type() FieldType   { return f.typ }
func (f *Field) Length() int       { return f.length }
func (f *Field) DecimalCount() int { return f.decimals }

// SetName accepts 1 to 10 bytes without NUL.
func (f *Field) SetName(name string) error {
	if f.frozen {
		return ErrSchemaFrozen
	}
	if len(name) == 0 || len(name) > maxFieldNameLen {
		return fmt.Errorf("%w: %q should be of length 1-%d", ErrInvalidFieldName, name, maxFieldNameLen)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidFieldName, name)
	}
	f.name = name
	return nil
}

// SetType sets the type tag. DATE and INTEGER fields get their fixed lengths here.
func (f *Field) SetType(typ FieldType) error {
	if f.frozen {
		return ErrSchemaFrozen
	}
	if !typ.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFieldType, byte(typ))
	}
	f.typ = typ
	switch typ {
	case TypeDate:
		f.length = dateLength
	case TypeInteger:
		f.length = integerLength
	}
	return nil
}

// SetLength must be called before SetDecimalCount.
func (f *Field) SetLength(length int) error {
	if f.frozen {
		return ErrSchemaFrozen
	}
	if length <= 0 || length > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidFieldLength, length)
	}
	if f.typ == TypeDate {
		return fmt.Errorf("%w: cannot change the length of a date field", ErrUnsupportedOperation)
	}
	f.length = length
	return nil
}

func (f *Field) SetDecimalCount(decimals int) error {
	if f.frozen {
		return ErrSchemaFrozen
	}
	if decimals < 0 || decimals > f.length {
		return fmt.Errorf("%w: %d for length %d", ErrInvalidDecimalCount, decimals, f.length)
	}
	f.decimals = decimals
	return nil
}

// width is the number of record bytes the field occupies.
func (f *Field) width() int {
	if f.typ == TypeInteger {
		return integerLength
	}
	return f.length
}

func (f *Field) String() string {
	return fmt.Sprintf("%s %s(%d,%d)", f.name, f.typ, f.length, f.decimals)
}

func (f *Field) encode() []byte {
	var raw rawField
	copy(raw.Name[:maxFieldNameLen], f.name)
	raw.Type = byte(f.typ)
	raw.Length = byte(f.length)
	raw.Decimal = byte(f.decimals)
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, &raw)
	return buf.Bytes()
}

// decodeField parses a full 32-byte descriptor. Reserved bytes are not retained.
func decodeField(b []byte) (*Field, error) {
	var raw rawField
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("%w: field descriptor: %v", ErrUnexpectedEndOfData, err)
	}
	name := raw.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	f := &Field{}
	if err := f.SetName(string(name)); err != nil {
		return nil, err
	}
	if err := f.SetType(FieldType(raw.Type)); err != nil {
		return nil, fmt.Errorf("field %s: %w", f.name, err)
	}
	// lengths come from the file as-is, including the declared length of INTEGER fields
	f.length = int(raw.Length)
	if f.length == 0 {
		return nil, fmt.Errorf("field %s: %w: 0", f.name, ErrInvalidFieldLength)
	}
	if err := f.SetDecimalCount(int(raw.Decimal)); err != nil {
		return nil, fmt.Errorf("field %s: %w", f.name, err)
	}
	return f, nil
}

// Header is the table header plus its field list.
type Header struct {
	Signature             byte
	Year                  int // full year
	Month                 int
	Day                   int
	NumRecords            uint32
	HeaderLength          uint16
	RecordLength          uint16
	IncompleteTransaction byte
	EncryptionFlag        byte
	Flags                 byte
	LanguageDriver        byte

	fields []*Field
}

// Table signatures.
const (
	SigDBaseIII       byte = 0x03
	SigVisualFoxPro   byte = 0x30
	SigVisualFoxProAI byte = 0x31
)

// Table flag bits at offset 28.
const (
	FlagStructuralIndex byte = 0x01
	FlagMemo            byte = 0x02
	FlagDatabase        byte = 0x04
)

// NewHeader returns an empty dBase III header with the default language driver.
func NewHeader() *Header {
	return &Header{
		Signature:      SigDBaseIII,
		LanguageDriver: DefaultLanguageDriver,
	}
}

// Fields returns the field list. The slice must not be modified.
func (h *Header) Fields() []*Field {
	return h.fields
}

// SetFields assigns the field list exactly once and freezes the fields.
func (h *Header) SetFields(fields ...*Field) error {
	if h.fields != nil {
		return ErrFieldsAlreadySet
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: should have at least one field", ErrNoFields)
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f == nil {
			return fmt.Errorf("%w: field %d is nil", ErrInvalidFieldName, i+1)
		}
		key := strings.ToUpper(f.name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidFieldName, f.name)
		}
		seen[key] = struct{}{}
	}
	headerLength, recordLength, err := layout(fields)
	if err != nil {
		return err
	}
	h.fields = append([]*Field(nil), fields...)
	for _, f := range h.fields {
		f.frozen = true
	}
	h.HeaderLength, h.RecordLength = headerLength, recordLength
	return nil
}

// HasMemo reports whether the table is Visual FoxPro with the memo flag set.
func (h *Header) HasMemo() bool {
	return (h.Signature == SigVisualFoxPro || h.Signature == SigVisualFoxProAI) && h.Flags&FlagMemo != 0
}

// Modified returns the last update date.
func (h *Header) Modified() time.Time {
	return time.Date(h.Year, time.Month(h.Month), h.Day, 0, 0, 0, 0, time.UTC)
}

// FieldIndex returns the position of the named field, ignoring case, or -1.
func (h *Header) FieldIndex(name string) int {
	for i, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return i
		}
	}
	return -1
}

func (h *Header) recompute() error {
	headerLength, recordLength, err := layout(h.fields)
	if err != nil {
		return err
	}
	h.HeaderLength, h.RecordLength = headerLength, recordLength
	return nil
}

// layout computes the header and record lengths of a field list.
func layout(fields []*Field) (headerLength, recordLength uint16, err error) {
	hl := headerSize + fieldSize*len(fields) + 1
	rl := 1
	for _, f := range fields {
		rl += f.width()
	}
	if hl > 0xFFFF || rl > 0xFFFF {
		return 0, 0, fmt.Errorf("%w: header %d bytes, record %d bytes", ErrInvalidFieldLength, hl, rl)
	}
	return uint16(hl), uint16(rl), nil
}

var timeNow = time.Now

// stamp sets the last update date to today.
func (h *Header) stamp() {
	year, month, day := timeNow().Date()
	h.Year, h.Month, h.Day = year, int(month), day
}

func (h *Header) raw() rawHeader {
	return rawHeader{
		Version:          h.Signature,
		LastUpdateYear:   byte(h.Year - 1900),
		LastUpdateMonth:  byte(h.Month),
		LastUpdateDay:    byte(h.Day),
		NumRecords:       h.NumRecords,
		HeaderLength:     h.HeaderLength,
		RecordLength:     h.RecordLength,
		Flag:             h.IncompleteTransaction,
		EncryptFlag:      h.EncryptionFlag,
		MDXFlag:          h.Flags,
		LanguageDriverID: h.LanguageDriver,
	}
}

// Write stamps the date, recomputes both lengths from the field list and writes the prologue,
// every field descriptor and the terminator.
func (h *Header) Write(w io.Writer) error {
	if err := h.recompute(); err != nil {
		return err
	}
	h.stamp()
	var buf bytes.Buffer
	buf.Grow(int(h.HeaderLength))
	raw := h.raw()
	if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
		return err
	}
	for _, f := range h.fields {
		buf.Write(f.encode())
	}
	buf.WriteByte(headerTerminator)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (h *Header) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d/%02d/%02d\n", h.Year, h.Month, h.Day)
	fmt.Fprintf(&sb, "Signature: 0x%02X\n", h.Signature)
	fmt.Fprintf(&sb, "Total records: %d\n", h.NumRecords)
	fmt.Fprintf(&sb, "Header length: %d\n", h.HeaderLength)
	fmt.Fprintf(&sb, "Record length: %d\n", h.RecordLength)
	fmt.Fprintf(&sb, "Language driver: 0x%02X (%s)\n", h.LanguageDriver, CharsetForCode(h.LanguageDriver).Name())
	for _, f := range h.fields {
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
