/*
Copyright (C) 2026  YourDB Contributors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package yourdb

import "sync"

// Gate is a per-entity writer-preference reader/writer coordination
// primitive: any number of concurrent readers OR one exclusive writer, and
// a waiting writer blocks the arrival of new readers even while readers
// currently hold the gate. Waiting writers are woken one at a time, but a
// writer arriving while the gate is momentarily free can enter ahead of
// writers already waiting, so the order among competing writers is not
// guaranteed to be FIFO. Re-entrance is not supported -- a nested
// WriteEnter by the same goroutine deadlocks, and a nested ReadEnter
// deadlocks once a writer is waiting.
//
// This is the classic condition-variable-plus-waiting-writer-counter
// construction: writer starvation is the only hazard a log-append
// workload sees in practice, so there is no need for a phase-fair or
// ticket lock here.
type Gate struct {
	mu             sync.Mutex
	readCond       *sync.Cond
	writeCond      *sync.Cond
	readers        int
	writerActive   bool
	writersWaiting int
}

// NewGate constructs a ready-to-use Gate.
func NewGate() *Gate {
	g := &Gate{}
	g.readCond = sync.NewCond(&g.mu)
	g.writeCond = sync.NewCond(&g.mu)
	return g
}

// ReadEnter blocks until the gate can be entered in shared mode. A reader
// arriving while a writer holds or is waiting for the gate blocks, so a
// writer already in the queue is never jumped by a newer reader.
func (g *Gate) ReadEnter() {
	g.mu.Lock()
	for g.writerActive || g.writersWaiting > 0 {
		g.readCond.Wait()
	}
	g.readers++
	g.mu.Unlock()
}

// ReadExit releases one shared holder of the gate.
func (g *Gate) ReadExit() {
	g.mu.Lock()
	g.readers--
	if g.readers == 0 {
		g.writeCond.Signal()
	}
	g.mu.Unlock()
}

// WriteEnter blocks until the gate can be entered exclusively.
func (g *Gate) WriteEnter() {
	g.mu.Lock()
	g.writersWaiting++
	for g.writerActive || g.readers > 0 {
		g.writeCond.Wait()
	}
	g.writersWaiting--
	g.writerActive = true
	g.mu.Unlock()
}

// WriteExit releases exclusive ownership of the gate, preferring to wake a
// waiting writer over a broadcast to waiting readers.
func (g *Gate) WriteExit() {
	g.mu.Lock()
	g.writerActive = false
	if g.writersWaiting > 0 {
		g.writeCond.Signal()
	} else {
		g.readCond.Broadcast()
	}
	g.mu.Unlock()
}
