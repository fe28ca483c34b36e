// Copyright 2025 Keel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chunk

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pingcap/errors"

	"github.com/keeldb/keel/config"
	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/disk"
	"github.com/keeldb/keel/util/memory"
)

const writeBufSize = 128 * 1024

// ListInDisk represents a slice of chunks storing in temporary disk.
type ListInDisk struct {
	fieldTypes   []*types.FieldType
	maxChunkSize int

	// offs[chkIdx][rowIdx] is the file offset of the encoded row, an extra
	// trailing element per chunk marks the end offset of its last row.
	offs       [][]int64
	totalBytes int64
	numRows    int

	file        *os.File
	w           *bufio.Writer
	flushed     bool
	rowBuf      []byte
	diskTracker *disk.Tracker
}

// NewListInDisk creates a new ListInDisk with field types.
func NewListInDisk(fieldTypes []*types.FieldType, maxChunkSize int) *ListInDisk {
	return &ListInDisk{
		fieldTypes:   fieldTypes,
		maxChunkSize: maxChunkSize,
		flushed:      true,
		diskTracker:  disk.NewTracker(memory.LabelForChunkListInDisk, -1),
	}
}

func (l *ListInDisk) initDiskFile() (err error) {
	dir := config.GetGlobalConfig().TempStoragePath
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return errors.Trace(err)
	}
	l.file, err = os.CreateTemp(dir, "keel_spill_"+strconv.Itoa(os.Getpid())+"_")
	if err != nil {
		return errors.Trace(err)
	}
	l.w = bufio.NewWriterSize(l.file, writeBufSize)
	return nil
}

// GetDiskTracker returns the disk tracker of this ListInDisk.
func (l *ListInDisk) GetDiskTracker() *disk.Tracker { return l.diskTracker }

// FieldTypes returns the fieldTypes of the list.
func (l *ListInDisk) FieldTypes() []*types.FieldType { return l.fieldTypes }

// Len returns the number of rows in ListInDisk.
func (l *ListInDisk) Len() int { return l.numRows }

// NumChunks returns the number of chunks in ListInDisk.
func (l *ListInDisk) NumChunks() int { return len(l.offs) }

// NumRowsOfChunk returns the number of rows of a chunk in ListInDisk.
func (l *ListInDisk) NumRowsOfChunk(chkIdx int) int {
	return len(l.offs[chkIdx]) - 1
}

// Add adds a chunk to the ListInDisk. Caller must make sure the input chk is
// not empty and not used any more and has the same field types with the list.
func (l *ListInDisk) Add(chk *Chunk) (err error) {
	if chk.NumRows() == 0 {
		return errors.New("chunk appended to ListInDisk should have at least 1 row")
	}
	if l.file == nil {
		if err = l.initDiskFile(); err != nil {
			return err
		}
	}
	offs := make([]int64, 0, chk.NumRows()+1)
	for i := 0; i < chk.NumRows(); i++ {
		offs = append(offs, l.totalBytes)
		if err = l.writeRow(chk.GetRow(i)); err != nil {
			return err
		}
	}
	offs = append(offs, l.totalBytes)
	l.offs = append(l.offs, offs)
	l.numRows += chk.NumRows()
	l.flushed = false
	l.diskTracker.Consume(l.totalBytes - l.diskTracker.BytesConsumed())
	return nil
}

// AppendRow appends a row to the ListInDisk and returns its RowPtr. Rows are
// grouped into chunks of maxChunkSize rows.
func (l *ListInDisk) AppendRow(row Row) (ptr RowPtr, err error) {
	if l.file == nil {
		if err = l.initDiskFile(); err != nil {
			return ptr, err
		}
	}
	chkIdx := len(l.offs) - 1
	if chkIdx == -1 || len(l.offs[chkIdx])-1 >= l.maxChunkSize {
		l.offs = append(l.offs, []int64{l.totalBytes})
		chkIdx++
	}
	rowIdx := len(l.offs[chkIdx]) - 1
	if err = l.writeRow(row); err != nil {
		return ptr, err
	}
	l.offs[chkIdx] = append(l.offs[chkIdx], l.totalBytes)
	l.numRows++
	l.flushed = false
	l.diskTracker.Consume(l.totalBytes - l.diskTracker.BytesConsumed())
	return RowPtr{ChkIdx: uint32(chkIdx), RowIdx: uint32(rowIdx)}, nil
}

func (l *ListInDisk) writeRow(row Row) error {
	l.rowBuf = encodeRow(l.rowBuf[:0], row)
	n, err := l.w.Write(l.rowBuf)
	if err != nil {
		return errors.Trace(err)
	}
	l.totalBytes += int64(n)
	return nil
}

func (l *ListInDisk) flush() error {
	if l.flushed {
		return nil
	}
	if err := l.w.Flush(); err != nil {
		return errors.Trace(err)
	}
	l.flushed = true
	return nil
}

// GetChunk gets a Chunk from the ListInDisk by chkIdx.
func (l *ListInDisk) GetChunk(chkIdx int) (*Chunk, error) {
	chk := New(l.fieldTypes, l.maxChunkSize, l.maxChunkSize)
	for rowIdx := 0; rowIdx < l.NumRowsOfChunk(chkIdx); rowIdx++ {
		row, err := l.GetRow(RowPtr{ChkIdx: uint32(chkIdx), RowIdx: uint32(rowIdx)})
		if err != nil {
			return nil, err
		}
		chk.AppendRow(row)
	}
	return chk, nil
}

// GetRow gets a Row from the ListInDisk by RowPtr.
func (l *ListInDisk) GetRow(ptr RowPtr) (row Row, err error) {
	if err = l.flush(); err != nil {
		return row, err
	}
	offs := l.offs[ptr.ChkIdx]
	begin, end := offs[ptr.RowIdx], offs[ptr.RowIdx+1]
	buf := make([]byte, end-begin)
	if _, err = l.file.ReadAt(buf, begin); err != nil {
		return row, errors.Trace(err)
	}
	return decodeRow(buf, l.fieldTypes)
}

// Close releases the disk resource.
func (l *ListInDisk) Close() error {
	if l.file == nil {
		return nil
	}
	l.diskTracker.Detach()
	name := l.file.Name()
	err := l.file.Close()
	if rmErr := os.Remove(filepath.Clean(name)); err == nil {
		err = rmErr
	}
	l.file = nil
	l.w = nil
	return errors.Trace(err)
}
