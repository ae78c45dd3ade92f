package godbf

import (
	"fmt"
	"strings"

	"github.com/axgle/mahonia"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Charset converts between Go strings and the bytes stored in CHARACTER and MEMO fields.
type Charset interface {
	Name() string
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
}

// Language driver codes stored at offset 29 of the table header.
const (
	DOSUSA            byte = 0x01
	DOSMultilingual   byte = 0x02
	WindowsANSI       byte = 0x03
	StandardMacintosh byte = 0x04
	WindowsANSIFoxPro byte = 0x57
	EEMSDOS           byte = 0x64
	NordicMSDOS       byte = 0x65
	RussianMSDOS      byte = 0x66
	IcelandicMSDOS    byte = 0x67
	KamenickyMSDOS    byte = 0x68
	MazoviaMSDOS      byte = 0x69
	GreekMSDOS        byte = 0x6A
	TurkishMSDOS      byte = 0x6B
	ThaiWindows       byte = 0x7C
	HebrewWindows     byte = 0x7D
	ArabicWindows     byte = 0x7E
	RussianMacintosh  byte = 0x96
	EEMacintosh       byte = 0x97
	GreekMacintosh    byte = 0x98
	WindowsEE         byte = 0xC8
	RussianWindows    byte = 0xC9
	TurkishWindows    byte = 0xCA
	GreekWindows      byte = 0xCB
)

// DefaultLanguageDriver is written to new tables when no charset is configured.
const DefaultLanguageDriver = WindowsANSI

type codePage struct {
	code    byte
	name    string
	charset Charset
}

var cp1252 = newCharmapCharset("cp1252", charmap.Windows1252)

// codePages is ordered so that the first entry for a charset name is the preferred code on write.
// Entries with a nil charset are recognised drivers Go has no table for.
var codePages = []codePage{
	{DOSUSA, "cp437", newCharmapCharset("cp437", charmap.CodePage437)},
	{DOSMultilingual, "cp850", newCharmapCharset("cp850", charmap.CodePage850)},
	{WindowsANSI, "cp1252", cp1252},
	{StandardMacintosh, "macroman", newCharmapCharset("macroman", charmap.Macintosh)},
	{WindowsANSIFoxPro, "cp1252", cp1252},
	{EEMSDOS, "cp852", newCharmapCharset("cp852", charmap.CodePage852)},
	{NordicMSDOS, "cp865", newCharmapCharset("cp865", charmap.CodePage865)},
	{RussianMSDOS, "cp866", newCharmapCharset("cp866", charmap.CodePage866)},
	{IcelandicMSDOS, "cp861", nil},
	{KamenickyMSDOS, "kamenicky", nil},
	{MazoviaMSDOS, "mazovia", nil},
	{GreekMSDOS, "cp737", nil},
	{TurkishMSDOS, "cp857", nil},
	{ThaiWindows, "cp874", newCharmapCharset("cp874", charmap.Windows874)},
	{HebrewWindows, "cp1255", newCharmapCharset("cp1255", charmap.Windows1255)},
	{ArabicWindows, "cp1256", newCharmapCharset("cp1256", charmap.Windows1256)},
	{RussianMacintosh, "maccyrillic", newCharmapCharset("maccyrillic", charmap.MacintoshCyrillic)},
	{EEMacintosh, "maccentraleurope", nil},
	{GreekMacintosh, "macgreek", nil},
	{WindowsEE, "cp1250", newCharmapCharset("cp1250", charmap.Windows1250)},
	{RussianWindows, "cp1251", newCharmapCharset("cp1251", charmap.Windows1251)},
	{TurkishWindows, "cp1254", newCharmapCharset("cp1254", charmap.Windows1254)},
	{GreekWindows, "cp1253", newCharmapCharset("cp1253", charmap.Windows1253)},
}

var charsetAliases = map[string]string{
	"windows-1250": "cp1250",
	"windows-1251": "cp1251",
	"windows-1252": "cp1252",
	"windows-1253": "cp1253",
	"windows-1254": "cp1254",
	"windows-1255": "cp1255",
	"windows-1256": "cp1256",
	"windows-874":  "cp874",
	"ibm437":       "cp437",
	"ibm850":       "cp850",
	"ibm852":       "cp852",
	"ibm865":       "cp865",
	"ibm866":       "cp866",
	"macintosh":    "macroman",
}

// DefaultCharset is used for unknown language drivers and drivers without a Go charset.
var DefaultCharset Charset = cp1252

// CharsetForCode maps a language driver code to its charset, falling back to DefaultCharset.
func CharsetForCode(code byte) Charset {
	for _, cp := range codePages {
		if cp.code == code && cp.charset != nil {
			return cp.charset
		}
	}
	return DefaultCharset
}

// CodeForCharset returns the language driver code registered for a charset name.
func CodeForCharset(name string) (byte, bool) {
	name = normalizeCharsetName(name)
	for _, cp := range codePages {
		if cp.name == name {
			return cp.code, true
		}
	}
	return 0, false
}

// CharsetByName resolves a code page name from the driver table, then any charset mahonia knows.
func CharsetByName(name string) (Charset, error) {
	normalized := normalizeCharsetName(name)
	for _, cp := range codePages {
		if cp.name == normalized && cp.charset != nil {
			return cp.charset, nil
		}
	}
	cs := mahonia.GetCharset(name)
	if cs == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return &mahoniaCharset{
		name:    strings.ToLower(cs.Name),
		decoder: cs.NewDecoder(),
		encoder: cs.NewEncoder(),
	}, nil
}

func normalizeCharsetName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := charsetAliases[name]; ok {
		return alias
	}
	return name
}

type charmapCharset struct {
	name string
	enc  encoding.Encoding
}

func newCharmapCharset(name string, enc encoding.Encoding) *charmapCharset {
	return &charmapCharset{name: name, enc: enc}
}

func (c *charmapCharset) Name() string { return c.name }

func (c *charmapCharset) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return string(out), nil
}

func (c *charmapCharset) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return out, nil
}

type mahoniaCharset struct {
	name    string
	decoder mahonia.Decoder
	encoder mahonia.Encoder
}

func (c *mahoniaCharset) Name() string { return c.name }

func (c *mahoniaCharset) Decode(b []byte) (string, error) {
	return c.decoder.ConvertString(string(b)), nil
}

func (c *mahoniaCharset) Encode(s string) ([]byte, error) {
	return []byte(c.encoder.ConvertString(s)), nil
}
