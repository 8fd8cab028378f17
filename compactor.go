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

import (
	"github.com/docker/go-units"
	"github.com/google/uuid"
)

/*
runCompaction is C7: a two-phase rewrite of the entity's log segment that
shrinks it down to one SNAPSHOT_MARK plus one INSERT per live record, without
ever blocking writers for the full duration of the rewrite.

Phase 1 (write gate held): take a snapshot of the live record set and the
segment's current sequence number, then release the gate immediately so
concurrent inserts/deletes/updates can keep appending to the live segment
while phase 2 runs.

Phase 2 (no gate held): stream the snapshot into a staging segment under a
fresh UUID. This is the expensive part (potentially large I/O) and is
exactly what phase 1's early release makes safe to run concurrently with
ordinary traffic.

Phase 3 (write gate re-acquired): copy every frame appended to the live
segment after the phase-1 snapshot boundary onto the tail of the staging
segment, then ask the backend to atomically commit the staging segment over
the live one, and rebind the entity's open LogSegment writer onto the
now-current file. The index set is never touched: phase 1's snapshot was
already exactly what's indexed, and phase 3's tail frames have already been
applied to the index by the writers that produced them.
*/
func (e *Entity) runCompaction() error {
	e.gate.WriteEnter()
	snapshot := e.index.Scan()
	snapshotSeq := e.segment.Seq()
	e.gate.WriteExit()

	stagingID := uuid.NewString()
	before := snapshotSeq

	staging, err := e.backend.OpenStagingWriter(e.name, stagingID)
	if err != nil {
		return err
	}
	staged := NewLogSegment(staging, 0)
	if _, err := staged.Append(OpSnapshotMark, nil); err != nil {
		staging.Close()
		return err
	}
	for _, rec := range snapshot {
		payload, err := EncodeRecordPayload(rec, e.schema.Compress)
		if err != nil {
			staging.Close()
			return err
		}
		if _, err := staged.Append(OpInsert, payload); err != nil {
			staging.Close()
			return err
		}
	}
	if err := staged.Sync(); err != nil {
		staging.Close()
		return err
	}

	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	tailReader, err := e.backend.OpenLogReader(e.name)
	if err != nil {
		staging.Close()
		return err
	}
	allEntries, err := ReplayFrames(tailReader)
	tailReader.Close()
	if err != nil {
		staging.Close()
		return err
	}
	var tailCount int
	for _, entry := range allEntries {
		if entry.Seq <= snapshotSeq {
			continue
		}
		if _, err := staged.Append(entry.Tag, entry.Payload); err != nil {
			staging.Close()
			return err
		}
		tailCount++
	}
	if err := staged.Sync(); err != nil {
		staging.Close()
		return err
	}
	if err := staging.Close(); err != nil {
		return err
	}

	if err := e.backend.CommitStaging(e.name, stagingID); err != nil {
		return err
	}

	writer, err := e.backend.OpenLogWriter(e.name)
	if err != nil {
		return err
	}
	newSeq := uint64(1 + len(snapshot) + tailCount) // snapshot mark + live records + tail
	e.segment.Rebind(writer, newSeq)
	e.frameCount = newSeq

	e.log.WithFields(map[string]interface{}{
		"frames_before":  before,
		"live_records":   len(snapshot),
		"tail_copied":    tailCount,
		"staged_size":    units.HumanSize(float64(approxSegmentBytes(len(snapshot)))),
	}).Info("compaction committed")
	return nil
}

// approxSegmentBytes is a rough byte estimate used only for the log line
// above; it does not need to be exact.
func approxSegmentBytes(liveRecords int) int {
	return liveRecords * 128
}
