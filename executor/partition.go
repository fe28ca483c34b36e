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
	"github.com/keeldb/keel/util/chunk"
)

// partitionStatus is the lifecycle state of one partition.
type partitionStatus int

const (
	// partitionInMemory holds its build rows resident and, once built,
	// a hash table over them.
	partitionInMemory partitionStatus = iota
	// partitionSpilled persists build rows to disk, carries no hash table,
	// and accumulates probe rows for later repartitioning.
	partitionSpilled
	// partitionClosed observed zero build rows, lookups always miss.
	partitionClosed
)

func (s partitionStatus) String() string {
	switch s {
	case partitionInMemory:
		return "in-memory"
	case partitionSpilled:
		return "spilled"
	case partitionClosed:
		return "closed"
	}
	return "unknown"
}

// partition is one bucket of the hash-based split of build rows, identified
// by the top bits of the key hash.
type partition struct {
	idx    int
	status partitionStatus

	buildRows *hashRowContainer
	// probeRows holds the probe rows routed to this partition after it
	// spilled, persisted for the recursive repartitioning step.
	probeRows *chunk.RowContainer
}

func (p *partition) isClosed() bool  { return p.status == partitionClosed }
func (p *partition) isSpilled() bool { return p.status == partitionSpilled }

// partitionIdxByHash routes a 32-bit hash to its partition by the top bits.
// Build and probe phases of one partitioning level must use the same bit
// width or routing becomes inconsistent.
func partitionIdxByHash(hash uint32, partitionBits uint) int {
	return int(hash >> (32 - partitionBits))
}
