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
	"fmt"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/keeldb/keel/config"
	"github.com/keeldb/keel/expression"
	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
	"github.com/keeldb/keel/util/disk"
	"github.com/keeldb/keel/util/logutil"
	"github.com/keeldb/keel/util/memory"
)

// JoinType tells which kind of join the executor performs.
type JoinType int

const (
	// InnerJoin means inner join.
	InnerJoin JoinType = iota
	// LeftOuterJoin means left outer join.
	LeftOuterJoin
	// RightOuterJoin means right outer join.
	RightOuterJoin
	// FullOuterJoin means full outer join.
	FullOuterJoin
	// SemiJoin means left semi join.
	SemiJoin
	// AntiSemiJoin means left anti semi join.
	AntiSemiJoin
)

func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "inner join"
	case LeftOuterJoin:
		return "left outer join"
	case RightOuterJoin:
		return "right outer join"
	case FullOuterJoin:
		return "full outer join"
	case SemiJoin:
		return "semi join"
	case AntiSemiJoin:
		return "anti semi join"
	}
	return "unsupported join type"
}

// JoinConfig describes one partitioned hash join instance.
type JoinConfig struct {
	JoinType JoinType
	// PartitionBits is the number of top hash bits used for routing, giving
	// 2^PartitionBits partitions. Shared by the build and probe phases.
	PartitionBits uint

	BuildTypes []*types.FieldType
	ProbeTypes []*types.FieldType
	// BuildKeyColIdx and ProbeKeyColIdx pair up position by position.
	BuildKeyColIdx []int
	ProbeKeyColIdx []int
	// NullEQ marks key positions where a null key still routes and a null
	// build key equals a null probe key. A short or nil slice means nulls
	// never match.
	NullEQ []bool

	// JoinConditions encode the join condition itself, evaluated per
	// candidate before a match counts. OutputConditions are the operator's
	// general output filter, evaluated on every row about to be emitted.
	JoinConditions   expression.CNFExprs
	OutputConditions expression.CNFExprs

	// MaxChunkSize overrides the configured chunk size when positive.
	MaxChunkSize int
}

// PartitionedHashJoinExec joins a build row stream against a probe row
// stream, grace-hash partitioned by the top bits of the key hash. The probe
// loop is a resumable generator: each ProcessProbeBatch call fills the output
// chunk up to its required rows and suspends, leaving the probe cursor so the
// next call continues exactly where this one stopped. A single instance is
// not safe for concurrent calls.
type PartitionedHashJoinExec struct {
	conf       JoinConfig
	partitions []*partition

	buildHCtx *hashContext
	probeHCtx *hashContext

	maxChunkSize int
	memTracker   *memory.Tracker
	diskTracker  *disk.Tracker

	// probe cursor, owned by the instance between calls.
	probeChk      *chunk.Chunk
	probeHashVals []uint64
	probeSkip     []bool
	probeRowIdx   int
	curProbeRow   chunk.Row
	probeRowValid bool
	matched       []chunk.Row
	matchedPtrs   []chunk.RowPtr
	matchIdx      int
	matchedProbe  bool
	matchPart     *partition

	// joinChk is the scratch row buffer makeJoinRow writes into; committed
	// rows are copied out of it, so one row of backing storage suffices.
	joinChk      *chunk.Chunk
	nullBuildRow chunk.Row
	rowsReturned int64

	opened bool
}

// NewPartitionedHashJoinExec builds an executor from conf. Open must be
// called before ingesting build rows.
func NewPartitionedHashJoinExec(conf JoinConfig) (*PartitionedHashJoinExec, error) {
	if conf.PartitionBits < 1 || conf.PartitionBits > 16 {
		return nil, errors.Errorf("partition bits %d out of range [1, 16]", conf.PartitionBits)
	}
	if len(conf.BuildKeyColIdx) == 0 || len(conf.BuildKeyColIdx) != len(conf.ProbeKeyColIdx) {
		return nil, errors.Errorf("build and probe key columns must pair up, got %d and %d",
			len(conf.BuildKeyColIdx), len(conf.ProbeKeyColIdx))
	}
	switch conf.JoinType {
	case InnerJoin, LeftOuterJoin, RightOuterJoin, FullOuterJoin, SemiJoin, AntiSemiJoin:
	default:
		return nil, errors.Errorf("unsupported join type %d", conf.JoinType)
	}
	return &PartitionedHashJoinExec{conf: conf}, nil
}

// Open initializes the partitions, hash contexts and resource trackers.
func (e *PartitionedHashJoinExec) Open() error {
	if e.opened {
		return errors.New("executor already opened")
	}
	globalConf := config.GetGlobalConfig()
	e.maxChunkSize = e.conf.MaxChunkSize
	if e.maxChunkSize <= 0 {
		e.maxChunkSize = globalConf.MaxChunkSize
	}

	e.memTracker = memory.NewTracker(memory.LabelForBuildSideResult, globalConf.MemQuotaQuery)
	e.diskTracker = disk.NewTracker(memory.LabelForBuildSideResult, -1)

	e.buildHCtx = &hashContext{allTypes: e.conf.BuildTypes, keyColIdx: e.conf.BuildKeyColIdx}
	e.probeHCtx = &hashContext{allTypes: e.conf.ProbeTypes, keyColIdx: e.conf.ProbeKeyColIdx}

	numParts := 1 << e.conf.PartitionBits
	e.partitions = make([]*partition, numParts)
	for i := range e.partitions {
		buildRows := newHashRowContainer(e.buildHCtx, e.conf.BuildTypes, e.maxChunkSize)
		buildRows.GetMemTracker().AttachTo(e.memTracker)
		buildRows.GetDiskTracker().AttachTo(e.diskTracker)
		if globalConf.OOMUseTmpStorage {
			e.memTracker.FallbackOldAndSetNewAction(buildRows.ActionSpill())
		}
		e.partitions[i] = &partition{idx: i, buildRows: buildRows}
	}

	joinTypes := make([]*types.FieldType, 0, len(e.conf.ProbeTypes)+len(e.conf.BuildTypes))
	joinTypes = append(joinTypes, e.conf.ProbeTypes...)
	joinTypes = append(joinTypes, e.conf.BuildTypes...)
	e.joinChk = chunk.NewChunkWithCapacity(joinTypes, 1)

	nullChk := chunk.NewChunkWithCapacity(e.conf.BuildTypes, 1)
	nullDatums := make([]types.Datum, len(e.conf.BuildTypes))
	nullChk.AppendDatums(nullDatums...)
	e.nullBuildRow = nullChk.GetRow(0)

	e.opened = true
	return nil
}

// NumPartitions returns the number of partitions of this join level.
func (e *PartitionedHashJoinExec) NumPartitions() int { return len(e.partitions) }

// RowsReturned is the running total of committed output rows.
func (e *PartitionedHashJoinExec) RowsReturned() int64 { return e.rowsReturned }

// MarkPartitionSpilled switches a partition to disk-backed storage. Its
// build rows move to a temp file and probe rows routed to it are persisted
// for later repartitioning instead of being matched.
func (e *PartitionedHashJoinExec) MarkPartitionSpilled(idx int) error {
	p := e.partitions[idx]
	if p.isClosed() {
		return errors.Errorf("cannot spill closed partition %d", idx)
	}
	if p.isSpilled() {
		return nil
	}
	logutil.BgLogger().Info("partition spilled to disk",
		zap.Int("partition", idx),
		zap.Int("buildRows", p.buildRows.NumRow()))
	p.buildRows.rowContainer.SpillToDisk()
	p.probeRows = chunk.NewRowContainer(e.conf.ProbeTypes, e.maxChunkSize)
	p.probeRows.GetDiskTracker().AttachTo(e.diskTracker)
	p.probeRows.SpillToDisk()
	p.status = partitionSpilled
	p.buildRows.hashTable = nil
	return nil
}

// ProcessBuildBatch ingests one build chunk: every includable row is hashed,
// routed by the top hash bits and appended to its partition's row store. The
// first failing append aborts the batch and surfaces the stored error.
func (e *PartitionedHashJoinExec) ProcessBuildBatch(chk *chunk.Chunk) error {
	if err := e.buildHCtx.hashChunk(chk, e.conf.NullEQ); err != nil {
		return err
	}
	numRows := chk.NumRows()
	for i := 0; i < numRows; i++ {
		if e.buildHCtx.hasNull[i] {
			continue
		}
		hash := uint32(e.buildHCtx.hashVals[i].Sum64() >> 32)
		p := e.partitions[partitionIdxByHash(hash, e.conf.PartitionBits)]
		if _, err := p.buildRows.AppendRow(chk.GetRow(i)); err != nil {
			return err
		}
	}
	return nil
}

// BuildHashTables finishes the build phase: partitions that never received a
// row are closed, memory-resident partitions get their hash table built, and
// spilled partitions stay table-less until repartitioned.
func (e *PartitionedHashJoinExec) BuildHashTables() error {
	for _, p := range e.partitions {
		switch {
		case p.buildRows.NumRow() == 0:
			// An empty partition is closed even when it already spilled:
			// no build row can ever match its probe rows.
			p.status = partitionClosed
		case p.isSpilled():
		default:
			if err := p.buildRows.buildHashTable(e.conf.NullEQ); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrepareProbeChunk installs the next probe chunk and hashes its key
// columns. The previous chunk must be fully consumed.
func (e *PartitionedHashJoinExec) PrepareProbeChunk(chk *chunk.Chunk) error {
	if !e.ProbeBatchExhausted() {
		return errors.New("previous probe batch not exhausted")
	}
	if err := e.probeHCtx.hashChunk(chk, e.conf.NullEQ); err != nil {
		return err
	}
	numRows := chk.NumRows()
	if cap(e.probeHashVals) < numRows {
		e.probeHashVals = make([]uint64, numRows)
		e.probeSkip = make([]bool, numRows)
	}
	e.probeHashVals = e.probeHashVals[:numRows]
	e.probeSkip = e.probeSkip[:numRows]
	for i := 0; i < numRows; i++ {
		e.probeSkip[i] = e.probeHCtx.hasNull[i]
		if !e.probeSkip[i] {
			e.probeHashVals[i] = e.probeHCtx.hashVals[i].Sum64()
		}
	}
	e.probeChk = chk
	e.probeRowIdx = 0
	return nil
}

// ProbeBatchExhausted reports whether the current probe chunk is fully
// consumed and no row is pending finalization.
func (e *PartitionedHashJoinExec) ProbeBatchExhausted() bool {
	if e.probeChk == nil {
		return true
	}
	return !e.probeRowValid && e.probeRowIdx >= e.probeChk.NumRows()
}

// ProcessProbeBatch runs the probe loop until the output chunk is full, the
// probe batch is exhausted, or an append to a spilled partition's probe
// store fails. The caller guarantees outChk is not already full on entry and
// reuses the same capacity contract across calls.
func (e *PartitionedHashJoinExec) ProcessProbeBatch(outChk *chunk.Chunk) error {
	switch e.conf.JoinType {
	case InnerJoin, LeftOuterJoin, RightOuterJoin, FullOuterJoin, SemiJoin, AntiSemiJoin:
	default:
		panic(fmt.Sprintf("unknown join type %d", int(e.conf.JoinType)))
	}
	for {
		if e.probeRowValid {
			if err := e.joinMatches(outChk); err != nil {
				return err
			}
			if outChk.IsFull() {
				return nil
			}
			if err := e.finalizeProbeRow(outChk); err != nil {
				return err
			}
			if outChk.IsFull() {
				return nil
			}
		}
		advanced, err := e.advanceProbeRow()
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}
}

// joinMatches consumes the candidate build rows for the current probe row,
// resuming at the match iterator position left by the previous call.
func (e *PartitionedHashJoinExec) joinMatches(outChk *chunk.Chunk) error {
	for e.matchIdx < len(e.matched) {
		buildRow := e.matched[e.matchIdx]
		buildPtr := e.matchedPtrs[e.matchIdx]
		e.matchIdx++

		joined := e.makeJoinRow(e.curProbeRow, buildRow)
		ok, err := expression.EvalBool(e.conf.JoinConditions, joined)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		e.matchedProbe = true

		switch e.conf.JoinType {
		case AntiSemiJoin:
			// Any surviving match disqualifies the probe row entirely.
			e.matchIdx = len(e.matched)
			return nil
		case RightOuterJoin, FullOuterJoin:
			e.matchPart.buildRows.markMatched(buildPtr)
		case SemiJoin:
			// One match answers the existence question.
			e.matchIdx = len(e.matched)
		}

		ok, err = expression.EvalBool(e.conf.OutputConditions, joined)
		if err != nil {
			return err
		}
		if ok {
			outChk.AppendRow(joined)
			e.rowsReturned++
			if outChk.IsFull() {
				return nil
			}
		}
	}
	return nil
}

// finalizeProbeRow emits the unmatched-row output owed by outer and anti
// join types when the match iterator ended without a surviving match, then
// clears the cursor for the next probe row.
func (e *PartitionedHashJoinExec) finalizeProbeRow(outChk *chunk.Chunk) error {
	emitUnmatched := !e.matchedProbe &&
		(e.conf.JoinType == LeftOuterJoin || e.conf.JoinType == FullOuterJoin || e.conf.JoinType == AntiSemiJoin)
	if emitUnmatched {
		joined := e.makeJoinRow(e.curProbeRow, e.nullBuildRow)
		ok, err := expression.EvalBool(e.conf.OutputConditions, joined)
		if err != nil {
			return err
		}
		if ok {
			e.clearProbeRow()
			outChk.AppendRow(joined)
			e.rowsReturned++
			return nil
		}
	}
	e.clearProbeRow()
	return nil
}

func (e *PartitionedHashJoinExec) clearProbeRow() {
	e.probeRowValid = false
	e.matchedProbe = false
	e.matched = e.matched[:0]
	e.matchedPtrs = e.matchedPtrs[:0]
	e.matchIdx = 0
	e.matchPart = nil
}

// advanceProbeRow pulls probe rows from the current batch until one needs
// matching or finalization. Rows routed to a spilled partition are persisted
// and produce no output now; rows routed to a closed partition or excluded
// by the hash evaluation carry no candidates but still owe the outer/anti
// unmatched emission.
func (e *PartitionedHashJoinExec) advanceProbeRow() (bool, error) {
	for e.probeChk != nil && e.probeRowIdx < e.probeChk.NumRows() {
		idx := e.probeRowIdx
		e.probeRowIdx++
		row := e.probeChk.GetRow(idx)

		if e.probeSkip[idx] {
			e.curProbeRow = row
			e.probeRowValid = true
			return true, nil
		}

		hash := uint32(e.probeHashVals[idx] >> 32)
		p := e.partitions[partitionIdxByHash(hash, e.conf.PartitionBits)]
		switch p.status {
		case partitionClosed:
			e.curProbeRow = row
			e.probeRowValid = true
			return true, nil
		case partitionSpilled:
			if _, err := p.probeRows.AppendRow(row); err != nil {
				return false, err
			}
		case partitionInMemory:
			matched, matchedPtrs, err := p.buildRows.GetMatchedRowsAndPtrs(e.probeHashVals[idx], row, e.probeHCtx)
			if err != nil {
				return false, err
			}
			e.curProbeRow = row
			e.probeRowValid = true
			e.matchPart = p
			e.matched = matched
			e.matchedPtrs = matchedPtrs
			e.matchIdx = 0
			return true, nil
		}
	}
	return false, nil
}

// makeJoinRow combines a probe row and a build row into one output row,
// probe columns first. The result aliases the executor's scratch chunk and
// must be copied before the next candidate is processed.
func (e *PartitionedHashJoinExec) makeJoinRow(probeRow, buildRow chunk.Row) chunk.Row {
	e.joinChk.Reset()
	e.joinChk.AppendPartialRow(0, probeRow)
	e.joinChk.AppendPartialRow(probeRow.Len(), buildRow)
	return e.joinChk.GetRow(0)
}

// UnmatchedBuildRowPtrs enumerates the build rows of an in-memory partition
// that never matched, for the residual phase of right and full outer joins.
func (e *PartitionedHashJoinExec) UnmatchedBuildRowPtrs(partIdx int) []chunk.RowPtr {
	p := e.partitions[partIdx]
	if p.status != partitionInMemory {
		return nil
	}
	return p.buildRows.unmatchedRowPtrs()
}

// SpilledProbeRows hands out the probe row store of a spilled partition for
// the repartitioning step. Returns nil for non-spilled partitions.
func (e *PartitionedHashJoinExec) SpilledProbeRows(partIdx int) *chunk.RowContainer {
	p := e.partitions[partIdx]
	if !p.isSpilled() {
		return nil
	}
	return p.probeRows
}

// Close releases every partition's storage. The first error is kept,
// remaining partitions are still closed.
func (e *PartitionedHashJoinExec) Close() error {
	var firstErr error
	for _, p := range e.partitions {
		if err := p.buildRows.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if p.probeRows != nil {
			if err := p.probeRows.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	e.memTracker.Detach()
	e.probeChk = nil
	e.clearProbeRow()
	return firstErr
}
