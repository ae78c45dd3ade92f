package godbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharsetForCode(t *testing.T) {
	testCases := []struct {
		code byte
		want string
	}{
		{DOSUSA, "cp437"},
		{DOSMultilingual, "cp850"},
		{WindowsANSI, "cp1252"},
		{StandardMacintosh, "macroman"},
		{EEMSDOS, "cp852"},
		{RussianMSDOS, "cp866"},
		{WindowsEE, "cp1250"},
		{RussianWindows, "cp1251"},
		{GreekWindows, "cp1253"},
		// known drivers without a Go charset and unknown codes fall back to cp1252
		{IcelandicMSDOS, "cp1252"},
		{GreekMacintosh, "cp1252"},
		{0x00, "cp1252"},
		{0xFF, "cp1252"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, CharsetForCode(tc.code).Name(), "code 0x%02X", tc.code)
	}
}

func TestCodeForCharset(t *testing.T) {
	code, ok := CodeForCharset("cp1252")
	require.True(t, ok)
	assert.Equal(t, WindowsANSI, code)

	code, ok = CodeForCharset("Windows-1250")
	require.True(t, ok)
	assert.Equal(t, WindowsEE, code)

	_, ok = CodeForCharset("utf-8")
	assert.False(t, ok)
}

func TestCharsetByName(t *testing.T) {
	cs, err := CharsetByName("IBM866")
	require.NoError(t, err)
	assert.Equal(t, "cp866", cs.Name())

	utf8, err := CharsetByName("utf-8")
	require.NoError(t, err)
	b, err := utf8.Encode("héllo")
	require.NoError(t, err)
	assert.Equal(t, []byte("héllo"), b)

	_, err = CharsetByName("no-such-charset")
	assert.Error(t, err)
}

func TestCharmapCharsetRoundTrip(t *testing.T) {
	cs := CharsetForCode(WindowsANSI)
	b, err := cs.Encode("café")
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, b)

	s, err := cs.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "café", s)

	_, err = cs.Encode("日本")
	assert.Error(t, err)
}
