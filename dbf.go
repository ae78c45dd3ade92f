package godbf

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	SPACE = 0x20
	EOF   = 0x1A
	NUL   = 0x00

	deletedFlag      = '*'
	headerTerminator = 0x0D
)

type options struct {
	charset        Charset
	logger         *zap.Logger
	memo           io.ReaderAt
	signature      byte
	languageDriver byte
	hasDriver      bool
}

// Option configures readers and writers.
type Option func(*options)

// WithCharset overrides the charset chosen from the language driver byte. For new tables the
// language driver is derived from it when the charset has a registered code.
func WithCharset(cs Charset) Option {
	return func(o *options) { o.charset = cs }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMemo attaches an FPT memo file to a reader created with NewReader.
func WithMemo(r io.ReaderAt) Option {
	return func(o *options) { o.memo = r }
}

// WithSignature sets the signature byte of a new table.
func WithSignature(sig byte) Option {
	return func(o *options) { o.signature = sig }
}

// WithLanguageDriver sets the language driver byte of a new table.
func WithLanguageDriver(code byte) Option {
	return func(o *options) {
		o.languageDriver = code
		o.hasDriver = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), signature: SigDBaseIII}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) newHeader() *Header {
	h := NewHeader()
	h.Signature = o.signature
	switch {
	case o.hasDriver:
		h.LanguageDriver = o.languageDriver
	case o.charset != nil:
		if code, ok := CodeForCharset(o.charset.Name()); ok {
			h.LanguageDriver = code
		}
	}
	return h
}

func (o *options) charsetOrDefault() Charset {
	switch {
	case o.charset != nil:
		return o.charset
	case o.hasDriver:
		return CharsetForCode(o.languageDriver)
	}
	return DefaultCharset
}

// Open opens a table file for reading. For Visual FoxPro tables flagged with a memo file,
// the .fpt file next to it is located and opened as well.
func Open(fileName string, opts ...Option) (*Reader, error) {
	o := newOptions(opts)
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	rd, err := newReader(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rd.closers = append(rd.closers, f)

	if rd.header.HasMemo() && rd.codec.memo == nil {
		memoName, ok := findMemoFile(fileName)
		if !ok {
			rd.logger.Warn("memo flag set but no memo file found", zap.String("file", fileName))
			return rd, nil
		}
		mf, err := os.Open(memoName)
		if err != nil {
			_ = rd.Close()
			return nil, err
		}
		rd.closers = append(rd.closers, mf)
		if err := rd.attachMemo(mf); err != nil {
			_ = rd.Close()
			return nil, err
		}
	}
	return rd, nil
}

// findMemoFile looks for <base>.fpt next to the table, ignoring case.
func findMemoFile(fileName string) (string, bool) {
	dir := filepath.Dir(fileName)
	base := filepath.Base(fileName)
	want := strings.TrimSuffix(base, filepath.Ext(base)) + ".fpt"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), want) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
