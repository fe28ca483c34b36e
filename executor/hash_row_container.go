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

package executor

import (
	"time"

	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/bitmap"
	"github.com/keeldb/keel/util/chunk"
	"github.com/keeldb/keel/util/disk"
	"github.com/keeldb/keel/util/memory"
)

// hashRowContainer is one partition's build row store plus the hash table
// over it. Rows accumulate through AppendRow during build ingestion; the
// table is built once the partition is complete and stays resident in
// memory. A spilled container never carries a hash table.
type hashRowContainer struct {
	hCtx *hashContext
	stat *hashStatistic

	// hashTable stores the map of hash key to RowPtr, nil until
	// buildHashTable has run.
	hashTable *unsafeHashTable

	// matchedStatus records per stored build row whether probing has found
	// a surviving match for it, one bitmap per chunk of the container.
	// Needed by the residual unmatched-build pass of right and full outer
	// joins.
	matchedStatus []*bitmap.ConcurrentBitmap

	rowContainer *chunk.RowContainer
	memTracker   *memory.Tracker
}

func newHashRowContainer(hCtx *hashContext, allTypes []*types.FieldType, chunkSize int) *hashRowContainer {
	rc := chunk.NewRowContainer(allTypes, chunkSize)
	c := &hashRowContainer{
		hCtx:         hCtx,
		stat:         new(hashStatistic),
		rowContainer: rc,
		memTracker:   memory.NewTracker(memory.LabelForPartition, -1),
	}
	rc.GetMemTracker().AttachTo(c.GetMemTracker())
	return c
}

// AppendRow appends one build row to the underlying row container. After a
// spill the append goes to disk and may fail; the stored error is returned
// verbatim.
func (c *hashRowContainer) AppendRow(row chunk.Row) (chunk.RowPtr, error) {
	return c.rowContainer.AppendRow(row)
}

// buildHashTable hashes every stored row and populates the hash table. It
// must only be called on a fully ingested, memory-resident container.
func (c *hashRowContainer) buildHashTable(nullEQ []bool) error {
	start := time.Now()
	defer func() { c.stat.buildTableElapse += time.Since(start) }()

	c.hashTable = newUnsafeHashTable(c.rowContainer.NumRow())
	c.matchedStatus = make([]*bitmap.ConcurrentBitmap, 0, c.rowContainer.NumChunks())
	for chkIdx := 0; chkIdx < c.rowContainer.NumChunks(); chkIdx++ {
		chk, err := c.rowContainer.GetChunk(chkIdx)
		if err != nil {
			return err
		}
		if err = c.hCtx.hashChunk(chk, nullEQ); err != nil {
			return err
		}
		numRows := chk.NumRows()
		for i := 0; i < numRows; i++ {
			if c.hCtx.hasNull[i] {
				continue
			}
			c.hashTable.Put(c.hCtx.hashVals[i].Sum64(), chunk.RowPtr{ChkIdx: uint32(chkIdx), RowIdx: uint32(i)})
		}
		c.matchedStatus = append(c.matchedStatus, bitmap.NewConcurrentBitmap(numRows))
	}
	c.GetMemTracker().Consume(c.hashTable.GetAndCleanMemoryDelta())
	return nil
}

// GetMatchedRowsAndPtrs gets the candidate build rows for probeRow. Rows
// colliding on the 64-bit hash but carrying unequal keys are filtered out
// here.
func (c *hashRowContainer) GetMatchedRowsAndPtrs(probeKey uint64, probeRow chunk.Row, probeHCtx *hashContext) (matched []chunk.Row, matchedPtrs []chunk.RowPtr, err error) {
	innerPtrs := c.hashTable.Get(probeKey)
	if len(innerPtrs) == 0 {
		return
	}
	matched = make([]chunk.Row, 0, len(innerPtrs))
	matchedPtrs = make([]chunk.RowPtr, 0, len(innerPtrs))
	for _, ptr := range innerPtrs {
		matchedRow, err := c.rowContainer.GetRow(ptr)
		if err != nil {
			return nil, nil, err
		}
		ok, err := c.matchJoinKey(matchedRow, probeRow, probeHCtx)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			c.stat.probeCollision++
			continue
		}
		matched = append(matched, matchedRow)
		matchedPtrs = append(matchedPtrs, ptr)
	}
	return
}

// matchJoinKey checks if the join keys of buildRow and probeRow are equal.
func (c *hashRowContainer) matchJoinKey(buildRow, probeRow chunk.Row, probeHCtx *hashContext) (bool, error) {
	for keyIdx, buildColIdx := range c.hCtx.keyColIdx {
		buildKey := buildRow.GetDatum(buildColIdx)
		probeKey := probeRow.GetDatum(probeHCtx.keyColIdx[keyIdx])
		cmp, err := buildKey.Compare(probeKey)
		if err != nil {
			return false, err
		}
		if cmp != 0 {
			return false, nil
		}
	}
	return true, nil
}

// markMatched flags the build row at ptr as matched. Entries in the table
// always address a chunk that predates the table build, so the bitmap for
// ptr.ChkIdx exists.
func (c *hashRowContainer) markMatched(ptr chunk.RowPtr) {
	c.matchedStatus[ptr.ChkIdx].Set(int(ptr.RowIdx))
}

// isMatched reports whether the build row at ptr was flagged during probing.
func (c *hashRowContainer) isMatched(ptr chunk.RowPtr) bool {
	return c.matchedStatus[ptr.ChkIdx].UnsafeIsSet(int(ptr.RowIdx))
}

// unmatchedRowPtrs enumerates the build rows never flagged as matched, for
// the residual phase of right and full outer joins.
func (c *hashRowContainer) unmatchedRowPtrs() []chunk.RowPtr {
	var ptrs []chunk.RowPtr
	for chkIdx, status := range c.matchedStatus {
		numRows := c.rowContainer.NumRowsOfChunk(chkIdx)
		for i := 0; i < numRows; i++ {
			if !status.UnsafeIsSet(i) {
				ptrs = append(ptrs, chunk.RowPtr{ChkIdx: uint32(chkIdx), RowIdx: uint32(i)})
			}
		}
	}
	return ptrs
}

// NumRow returns the number of stored build rows.
func (c *hashRowContainer) NumRow() int { return c.rowContainer.NumRow() }

// Len returns the number of entries in the hash table.
func (c *hashRowContainer) Len() uint64 {
	if c.hashTable == nil {
		return 0
	}
	return c.hashTable.Len()
}

// GetRow returns the row the ptr pointed to in the row container.
func (c *hashRowContainer) GetRow(ptr chunk.RowPtr) (chunk.Row, error) {
	return c.rowContainer.GetRow(ptr)
}

func (c *hashRowContainer) Close() error {
	defer c.memTracker.Detach()
	return c.rowContainer.Close()
}

// GetMemTracker returns the memory usage tracker of this container.
func (c *hashRowContainer) GetMemTracker() *memory.Tracker { return c.memTracker }

// GetDiskTracker returns the disk usage tracker of this container.
func (c *hashRowContainer) GetDiskTracker() *disk.Tracker { return c.rowContainer.GetDiskTracker() }

// ActionSpill returns a memory.ActionOnExceed for spilling over to disk.
func (c *hashRowContainer) ActionSpill() *chunk.SpillDiskAction {
	return c.rowContainer.ActionSpill()
}
