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

package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/keeldb/keel/util/logutil"
)

// ActionOnExceed is the action taken when memory usage exceeds the memory
// quota.
// NOTE: All the implementors should be thread-safe.
type ActionOnExceed interface {
	// Action will be called when memory usage exceeds the memory quota of the
	// corresponding Tracker.
	Action(t *Tracker)
	// SetFallback sets a fallback action which will be triggered if itself has
	// already been triggered.
	SetFallback(a ActionOnExceed)
	// GetFallback gets the fallback action of the Action.
	GetFallback() ActionOnExceed
	// GetPriority gets the priority of the Action.
	GetPriority() int64
	// SetFinished sets the finished state of the Action.
	SetFinished()
	// IsFinished returns the finished state of the Action.
	IsFinished() bool
}

// BaseOOMAction manages the fallback action for all Action.
type BaseOOMAction struct {
	fallbackAction ActionOnExceed
	finished       int32
}

// SetFallback sets a fallback action which will be triggered if itself has
// already been triggered.
func (b *BaseOOMAction) SetFallback(a ActionOnExceed) {
	b.fallbackAction = a
}

// SetFinished sets the finished state of the Action.
func (b *BaseOOMAction) SetFinished() {
	atomic.StoreInt32(&b.finished, 1)
}

// IsFinished returns the finished state of the Action.
func (b *BaseOOMAction) IsFinished() bool {
	return atomic.LoadInt32(&b.finished) == 1
}

// GetFallback gets the fallback action and removes finished fallbacks.
func (b *BaseOOMAction) GetFallback() ActionOnExceed {
	for b.fallbackAction != nil && b.fallbackAction.IsFinished() {
		b.SetFallback(b.fallbackAction.GetFallback())
	}
	return b.fallbackAction
}

// Default OOM Action priority.
const (
	DefPanicPriority = iota
	DefLogPriority
	DefSpillPriority
)

// LogOnExceed logs a warning only once when memory usage exceeds the memory
// quota.
type LogOnExceed struct {
	BaseOOMAction
	mutex sync.Mutex // For synchronization.
	acted bool
}

// Action logs a warning only once when memory usage exceeds the memory quota.
func (a *LogOnExceed) Action(t *Tracker) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.acted {
		a.acted = true
		logutil.BgLogger().Warn("memory exceeds quota",
			zap.Int("label", t.Label()),
			zap.Int64("consumed", t.BytesConsumed()),
			zap.Int64("quota", t.GetBytesLimit()))
	}
}

// GetPriority gets the priority of the Action.
func (*LogOnExceed) GetPriority() int64 {
	return DefLogPriority
}

// PanicOnExceed panics when memory usage exceeds the memory quota.
type PanicOnExceed struct {
	BaseOOMAction
	mutex sync.Mutex // For synchronization.
	acted bool
}

// Action panics when memory usage exceeds the memory quota.
func (a *PanicOnExceed) Action(t *Tracker) {
	a.mutex.Lock()
	if !a.acted {
		logutil.BgLogger().Warn("memory exceeds quota",
			zap.Int("label", t.Label()),
			zap.Int64("consumed", t.BytesConsumed()),
			zap.Int64("quota", t.GetBytesLimit()))
	}
	a.acted = true
	a.mutex.Unlock()
	panic(PanicMemoryExceed + fmt.Sprintf("[label=%d]", t.Label()))
}

// GetPriority gets the priority of the Action.
func (*PanicOnExceed) GetPriority() int64 {
	return DefPanicPriority
}

// PanicMemoryExceed represents the panic message when out of memory quota.
const PanicMemoryExceed string = "Out Of Memory Quota!"
