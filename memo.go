package godbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FPT record types.
const (
	memoPicture uint32 = 0x0
	memoText    uint32 = 0x1
	memoObject  uint32 = 0x2
)

const (
	memoHeaderSize = 512
	memoBlockHead  = 8
)

// MemoHeader is the big-endian prologue of an FPT file. The table header is little-endian.
type MemoHeader struct {
	NextFree  uint32
	Unused    [2]byte
	BlockSize uint16
}

// MemoFile reads text memos from a Visual FoxPro FPT file. Every lookup reads from r.
type MemoFile struct {
	r       io.ReaderAt
	charset Charset
	header  MemoHeader
}

// OpenMemo reads the memo prologue from r.
func OpenMemo(r io.ReaderAt, charset Charset) (*MemoFile, error) {
	if charset == nil {
		charset = DefaultCharset
	}
	buf := make([]byte, memoHeaderSize)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n >= memoBlockHead) {
		return nil, endOfData("memo header", err)
	}
	m := &MemoFile{r: r, charset: charset}
	m.header.NextFree = binary.BigEndian.Uint32(buf[0:4])
	copy(m.header.Unused[:], buf[4:6])
	m.header.BlockSize = binary.BigEndian.Uint16(buf[6:8])
	if m.header.BlockSize <= memoBlockHead {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMemoBlockSize, m.header.BlockSize)
	}
	return m, nil
}

func (m *MemoFile) Header() MemoHeader {
	return m.header
}

// Memo returns the text stored at block address. A payload longer than one block continues
// in the following blocks; bytes after the declared length are padding.
func (m *MemoFile) Memo(address uint32) (string, error) {
	raw, err := m.block(address)
	if err != nil {
		return "", err
	}
	return m.charset.Decode(raw)
}

func (m *MemoFile) block(address uint32) ([]byte, error) {
	blockSize := int64(m.header.BlockSize)
	offset := int64(address) * blockSize
	buf := make([]byte, blockSize)

	n, err := m.r.ReadAt(buf, offset)
	if n < memoBlockHead {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, endOfData(fmt.Sprintf("memo block %d", address), err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read memo block %d: %w", address, err)
	}

	recordType := binary.BigEndian.Uint32(buf[0:4])
	if recordType != memoText {
		return nil, fmt.Errorf("%w: %d at block %d", ErrUnsupportedRecordType, recordType, address)
	}
	length := int(binary.BigEndian.Uint32(buf[4:8]))

	data := make([]byte, 0, min(length, 1<<20))
	data = append(data, buf[memoBlockHead:n]...)
	for len(data) < length {
		if n < len(buf) {
			return nil, fmt.Errorf("%w: memo at block %d declares %d bytes, file holds %d",
				ErrUnexpectedEndOfData, address, length, len(data))
		}
		offset += blockSize
		n, err = m.r.ReadAt(buf, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read memo block at %d: %w", offset, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: memo at block %d declares %d bytes, file holds %d",
				ErrUnexpectedEndOfData, address, length, len(data))
		}
		data = append(data, buf[:n]...)
	}
	return data[:length], nil
}
