package godbf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestOpenFindsMemoFileIgnoringCase(t *testing.T) {
	memo, addresses := buildMemo(64, "kept in the memo file")
	table := memoTable(t, SigVisualFoxPro, addresses[0])

	path := writeFile(t, "orders.dbf", table)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "ORDERS.FPT"), memo, 0644))

	rd, err := Open(path)
	require.NoError(t, err)
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept in the memo file", recs[0][1].Str())

	assert.Len(t, rd.closers, 2)
	require.NoError(t, rd.Close())
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, rd.Close())
}

func TestOpenWithoutMemoFileWarns(t *testing.T) {
	_, addresses := buildMemo(64, "lost")
	path := writeFile(t, "orders.dbf", memoTable(t, SigVisualFoxPro, addresses[0]))

	core, logs := observer.New(zap.WarnLevel)
	rd, err := Open(path, WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, 1, logs.FilterMessage("memo flag set but no memo file found").Len())
	rec, err := rd.Next()
	require.NoError(t, err)
	assert.True(t, rec[1].IsNull())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dbf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenRejectsCorruptHeader(t *testing.T) {
	path := writeFile(t, "bad.dbf", []byte{SigDBaseIII, 124, 1, 1})
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnexpectedEndOfData)
}

func TestAppendCreatesTable(t *testing.T) {
	fixedNow(t)
	path := filepath.Join(t.TempDir(), "people.dbf")

	a, err := OpenAppend(path)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Append(people(1)[0]), ErrNoFields)
	require.NoError(t, a.SetFields(peopleFields()...))
	assert.ErrorIs(t, a.SetFields(peopleFields()...), ErrFieldsAlreadySet)
	for _, rec := range people(3) {
		require.NoError(t, a.Append(rec))
	}
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Append(people(1)[0]), ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte(EOF), data[len(data)-1])

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, uint32(3), rd.NumRecords())
	assert.Equal(t, 2024, rd.Header().Year)
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c         ", recs[2][0].Str())
	assert.True(t, decimal.NewFromInt(2).Equal(recs[2][1].Decimal()))
}

func TestAppendToExistingTable(t *testing.T) {
	fixedNow(t)
	path := writeFile(t, "people.dbf", buildTable(t, peopleFields(), people(2)))

	a, err := OpenAppend(path)
	require.NoError(t, err)
	assert.ErrorIs(t, a.SetFields(peopleFields()...), ErrFieldsAlreadySet)
	assert.Equal(t, uint32(2), a.Header().NumRecords)

	// a rejected record leaves the file untouched
	assert.ErrorIs(t, a.Append(Record{Bool(true), Null()}), ErrTypeMismatch)
	require.NoError(t, a.Append(Record{Text("zed"), Decimal(decimal.NewFromInt(99))}))
	require.NoError(t, a.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, uint32(3), rd.NumRecords())
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "zed       ", recs[2][0].Str())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(rd.Header().HeaderLength)+3*int64(rd.Header().RecordLength)+1, info.Size())
}

func TestAppendWithoutSentinel(t *testing.T) {
	data := buildTable(t, peopleFields(), people(1))
	path := writeFile(t, "people.dbf", data[:len(data)-1])

	a, err := OpenAppend(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(people(2)[1]))
	require.NoError(t, a.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestAppendIgnoresBytesAfterSentinel(t *testing.T) {
	data := buildTable(t, peopleFields(), people(1))
	data = append(data, "junk"...)
	path := writeFile(t, "people.dbf", data)

	a, err := OpenAppend(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(people(2)[1]))
	require.NoError(t, a.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, uint32(2), rd.NumRecords())
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b         ", recs[1][0].Str())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(rd.Header().HeaderLength)+2*int64(rd.Header().RecordLength)+1, info.Size())
}

func TestAppendLastRecordEndingInSentinelByte(t *testing.T) {
	fields := []*Field{MustField("ID", TypeInteger, 0, 0)}
	// little-endian 0x1A000000 ends in 0x1A
	data := buildTable(t, fields, []Record{{Integer(0x1A000000)}})
	path := writeFile(t, "ids.dbf", data[:len(data)-1])

	a, err := OpenAppend(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(Record{Integer(5)}))
	require.NoError(t, a.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int32(0x1A000000), recs[0][0].Int())
	assert.Equal(t, int32(5), recs[1][0].Int())
}

func TestAppendOverstatedRecordCount(t *testing.T) {
	data := buildTable(t, peopleFields(), people(2))
	data[4] = 9
	// half of a third record was written before the count was patched
	data = append(data[:len(data)-1], " half"...)
	path := writeFile(t, "people.dbf", data)

	a, err := OpenAppend(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), a.Header().NumRecords)
	require.NoError(t, a.Append(Record{Text("new"), Null()}))
	require.NoError(t, a.Close())

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, uint32(3), rd.NumRecords())
	recs, err := rd.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "new       ", recs[2][0].Str())
}

func TestAppendCloseWithoutFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dbf")
	a, err := OpenAppend(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
