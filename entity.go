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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// EntityConfig tunes engine behavior per entity, sourced from
// CatalogOptions at open time.
type EntityConfig struct {
	// CompactionRatio triggers an async optimize() when
	// live-records/log-frames drops below this value. Zero disables
	// the automatic trigger (optimize() remains available explicitly).
	CompactionRatio float64
}

// Entity is the public CRUD + query surface of C6, orchestrating the
// schema (C1), codec (C2), log segment (C3), index set (C4) and gate (C5)
// for one named collection of records.
type Entity struct {
	name    string
	schema  *Schema
	gate    *Gate
	index   *IndexSet
	segment *LogSegment
	backend PersistenceBackend
	cfg     EntityConfig
	log     *logrus.Entry

	frameCount uint64 // total frames currently in the log segment
	compacting int32  // atomic flag: a compaction is in flight
}

// openEntity replays entity's log segment (if any), applying lazy upgrades
// per record as it is loaded, then opens the segment for further appends.
func openEntity(name string, schema *Schema, backend PersistenceBackend, cfg EntityConfig, logger *logrus.Logger) (*Entity, error) {
	e := &Entity{
		name:    name,
		schema:  schema,
		gate:    NewGate(),
		index:   NewIndexSet(schema),
		backend: backend,
		cfg:     cfg,
		log:     logger.WithField("entity", name),
	}

	reader, err := backend.OpenLogReader(name)
	var entries []LogEntry
	if err == nil {
		defer reader.Close()
		entries, err = ReplayFrames(reader)
		if err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, ioErr("open log for replay", err)
	}

	for _, entry := range entries {
		if err := e.applyReplayedEntry(entry); err != nil {
			return nil, err
		}
	}
	e.frameCount = uint64(len(entries))

	writer, err := backend.OpenLogWriter(name)
	if err != nil {
		return nil, err
	}
	e.segment = NewLogSegment(writer, uint64(len(entries)))

	e.log.WithFields(logrus.Fields{
		"frames": len(entries),
		"live":   e.index.Len(),
	}).Info("entity opened")
	return e, nil
}

func (e *Entity) applyReplayedEntry(entry LogEntry) error {
	switch entry.Tag {
	case OpSnapshotMark:
		return nil // informational boundary only
	case OpInsert:
		rec, err := DecodeRecordPayload(entry.Payload)
		if err != nil {
			return err
		}
		fields, err := decodeFrameFields(rec.fields, e.schema)
		if err != nil {
			return err
		}
		rec.fields = fields
		if rec.Version < e.schema.Version {
			upgraded, err := e.schema.applyUpgrades(rec)
			if err != nil {
				return err
			}
			rec = upgraded
		} else if rec.Version > e.schema.Version {
			return fmt.Errorf("%w: record version %d exceeds schema version %d", ErrUpgradeChainBroken, rec.Version, e.schema.Version)
		}
		if err := validate(rec, e.schema); err != nil {
			return err
		}
		e.index.Replace(rec) // replaces any prior record with the same pk
		return nil
	case OpDelete:
		raw, err := DecodeKeyPayload(entry.Payload)
		if err != nil {
			return err
		}
		pk, err := coerceKind(raw, e.schema.Fields[e.schema.PrimaryKey])
		if err != nil {
			return err
		}
		e.index.Remove(pk)
		return nil
	default:
		return ErrCorruptFrame
	}
}

// Insert validates rec against the current schema, stamps it at the
// current version, and durably appends it before making it visible.
func (e *Entity) Insert(rec Record) error {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	if err := validate(rec, e.schema); err != nil {
		return err
	}
	rec.Version = e.schema.Version
	pk, _ := rec.Get(e.schema.PrimaryKey)
	if _, exists := e.index.Get(pk); exists {
		return ErrDuplicatePrimaryKey
	}

	payload, err := EncodeRecordPayload(rec, e.schema.Compress)
	if err != nil {
		return err
	}
	if _, err := e.segment.Append(OpInsert, payload); err != nil {
		return err
	}
	if err := e.segment.Sync(); err != nil {
		return err
	}

	if err := e.index.Insert(rec); err != nil {
		// unreachable given the existence check above; if it ever fails, the
		// frame is already in the log and replay will install it.
		return err
	}
	e.frameCount++
	e.maybeScheduleCompaction()
	return nil
}

// Delete resolves filter against the index (read-only, but performed under
// the write gate per spec.md 4.6) and removes every match, syncing once at
// the end of the batch.
func (e *Entity) Delete(filter Filter) (int, error) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	matches, err := planAndExecute(e.index, e.schema, filter)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range matches {
		pk, _ := rec.Get(e.schema.PrimaryKey)
		payload, err := EncodeKeyPayload(pk)
		if err != nil {
			return count, err
		}
		if _, err := e.segment.Append(OpDelete, payload); err != nil {
			return count, err
		}
		e.index.Remove(pk)
		e.frameCount++
		count++
	}
	if count > 0 {
		if err := e.segment.Sync(); err != nil {
			return count, err
		}
	}
	e.maybeScheduleCompaction()
	return count, nil
}

// Update resolves filter, applies transform to a clone of each match,
// re-validates, and appends a replacement INSERT frame at the current
// version. A mid-batch failure aborts the remainder; already-appended
// replacements are not rolled back since they are logically valid updates.
func (e *Entity) Update(filter Filter, transform func(Record) (Record, error)) (int, error) {
	e.gate.WriteEnter()
	defer e.gate.WriteExit()

	matches, err := planAndExecute(e.index, e.schema, filter)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range matches {
		oldPK, _ := rec.Get(e.schema.PrimaryKey)
		updated, err := transform(rec.Clone())
		if err != nil {
			return count, err
		}
		if err := validate(updated, e.schema); err != nil {
			return count, err
		}
		newPK, _ := updated.Get(e.schema.PrimaryKey)
		if !scalarEqual(oldPK, newPK) {
			return count, ErrPrimaryKeyImmutable
		}
		updated.Version = e.schema.Version

		payload, err := EncodeRecordPayload(updated, e.schema.Compress)
		if err != nil {
			return count, err
		}
		if _, err := e.segment.Append(OpInsert, payload); err != nil {
			return count, err
		}
		e.index.Replace(updated)
		e.frameCount++
		count++
	}
	if count > 0 {
		if err := e.segment.Sync(); err != nil {
			return count, err
		}
	}
	e.maybeScheduleCompaction()
	return count, nil
}

// Select plans and executes filter under a shared read gate, returning a
// list snapshot of matching records, all at the entity's current version.
func (e *Entity) Select(filter Filter) ([]Record, error) {
	e.gate.ReadEnter()
	defer e.gate.ReadExit()
	return planAndExecute(e.index, e.schema, filter)
}

// Optimize triggers compaction synchronously (see compactor.go).
func (e *Entity) Optimize() error {
	return e.runCompaction()
}

// Close releases the entity's log segment. Closing an already-closed
// entity is not an error.
func (e *Entity) Close() error {
	if err := e.segment.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func (e *Entity) maybeScheduleCompaction() {
	if e.cfg.CompactionRatio <= 0 {
		return
	}
	live := int64(e.index.Len())
	frames := int64(e.frameCount)
	if frames == 0 {
		return
	}
	ratio := float64(live) / float64(frames)
	if ratio >= e.cfg.CompactionRatio {
		return
	}
	if !atomic.CompareAndSwapInt32(&e.compacting, 0, 1) {
		return // a compaction is already in flight
	}
	go func() {
		defer atomic.StoreInt32(&e.compacting, 0)
		if err := e.runCompaction(); err != nil {
			e.log.WithError(err).Warn("background compaction failed")
		}
	}()
}

// schemaMetaBlob serializes the schema for persistence (the upgrade
// functions themselves are host-supplied code and are never persisted;
// only the version/field/index metadata is).
func schemaMetaBlob(schema *Schema) ([]byte, error) {
	return json.MarshalIndent(schema, "", "  ")
}
