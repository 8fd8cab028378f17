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
	"fmt"
	"sort"
	"sync"
)

// UpgradeFunc transforms a record of version v into a record of version v+1.
type UpgradeFunc func(Record) (Record, error)

// Schema describes an entity: its primary key, its declared fields, which
// fields are indexed, and the upgrade chain that brings an old record
// forward to the current version. Immutable after entity creation except
// via RegisterUpgrade (which only adds or replaces chain links).
type Schema struct {
	mu sync.Mutex

	Name       string          `json:"name"`
	PrimaryKey string          `json:"primary_key"`
	Fields     map[string]Kind `json:"fields"`
	Indexed    []string        `json:"indexed"`
	Version    int             `json:"version"`
	// Compress opts every INSERT payload (inserts, updates and compaction
	// snapshots) into lz4, see codec.go.
	Compress bool `json:"compress"`

	upgrades map[string]UpgradeFunc // "from->to" -> fn, not persisted
}

// NewSchema constructs a schema. version defaults to 1 if zero.
func NewSchema(name, primaryKey string, fields map[string]Kind, indexed []string, version int) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: entity name must not be empty", ErrInvalidSchema)
	}
	if primaryKey == "" {
		return nil, fmt.Errorf("%w: primary key field must be set", ErrInvalidSchema)
	}
	if _, ok := fields[primaryKey]; !ok {
		return nil, fmt.Errorf("%w: primary key %q must be a declared field", ErrInvalidSchema, primaryKey)
	}
	if version == 0 {
		version = 1
	}
	fieldsCopy := make(map[string]Kind, len(fields))
	for k, v := range fields {
		fieldsCopy[k] = v
	}
	idx := append([]string(nil), indexed...)
	sort.Strings(idx)
	return &Schema{
		Name:       name,
		PrimaryKey: primaryKey,
		Fields:     fieldsCopy,
		Indexed:    idx,
		Version:    version,
		upgrades:   make(map[string]UpgradeFunc),
	}, nil
}

// IsIndexed reports whether field is covered by a secondary index. The
// primary key is implicitly indexed but is not listed in Indexed.
func (s *Schema) IsIndexed(field string) bool {
	if field == s.PrimaryKey {
		return true
	}
	for _, f := range s.Indexed {
		if f == field {
			return true
		}
	}
	return false
}

// RegisterUpgrade appends an upgrade step from fromVersion to fromVersion+1.
// Consecutive calls must build a gapless chain 1->2->...->Version; gaps are
// only detected lazily, when a stored record needs to cross them (see
// applyUpgrades), matching the spec's "lazy upgrade" design.
func (s *Schema) RegisterUpgrade(fromVersion int, fn UpgradeFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromVersion < 1 || fromVersion >= s.Version {
		return fmt.Errorf("%w: upgrade step %d->%d is out of range for schema version %d",
			ErrInvalidSchema, fromVersion, fromVersion+1, s.Version)
	}
	key := fmt.Sprintf("%d->%d", fromVersion, fromVersion+1)
	if s.upgrades == nil {
		s.upgrades = make(map[string]UpgradeFunc)
	}
	s.upgrades[key] = fn
	return nil
}

// applyUpgrades walks the chain from rec.Version to s.Version one step at a
// time, applying the registered transform at each link. Returns
// ErrUpgradeChainBroken if any link from->from+1 is missing.
func (s *Schema) applyUpgrades(rec Record) (Record, error) {
	s.mu.Lock()
	upgrades := s.upgrades
	s.mu.Unlock()
	for rec.Version < s.Version {
		key := fmt.Sprintf("%d->%d", rec.Version, rec.Version+1)
		fn, ok := upgrades[key]
		if !ok {
			return Record{}, fmt.Errorf("%w: no upgrade registered for %s", ErrUpgradeChainBroken, key)
		}
		upgraded, err := fn(rec)
		if err != nil {
			return Record{}, fmt.Errorf("%w: upgrade %s failed: %v", ErrUpgradeChainBroken, key, err)
		}
		upgraded.Version = rec.Version + 1
		rec = upgraded
	}
	return rec, nil
}

// validate checks that record is well-formed with respect to schema: every
// declared field is present with a value of the declared kind, the primary
// key is present and non-null, and no extra fields are present.
func validate(rec Record, schema *Schema) error {
	fields := rec.fields
	for name, declared := range schema.Fields {
		v, ok := fields[name]
		if !ok {
			return &SchemaViolation{Field: name, Expected: declared.String(), Got: "missing"}
		}
		if v == nil {
			if name == schema.PrimaryKey {
				return &SchemaViolation{Field: name, Expected: "non-null primary key", Got: "null"}
			}
			return &SchemaViolation{Field: name, Expected: declared.String(), Got: "null"}
		}
		got, ok := kindOf(v)
		if !ok || got != declared {
			return &SchemaViolation{Field: name, Expected: declared.String(), Got: fmt.Sprintf("%T", v)}
		}
	}
	for name := range fields {
		if _, ok := schema.Fields[name]; !ok {
			return &SchemaViolation{Field: name, Expected: "no such field", Got: "present"}
		}
	}
	if pk, ok := fields[schema.PrimaryKey]; !ok || pk == nil {
		return &SchemaViolation{Field: schema.PrimaryKey, Expected: "non-null primary key", Got: "missing"}
	}
	return nil
}
