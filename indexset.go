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

	nlrm "github.com/launix-de/NonLockingReadMap"
)

// recordEntry is the item type backing the primary map: value-receiver
// methods so recordEntry itself (not *recordEntry) satisfies
// nlrm.KeyGetter[string], matching how NonLockingReadMap's generic
// parameter is constrained.
type recordEntry struct {
	key string
	rec Record
}

func (e recordEntry) GetKey() string    { return e.key }
func (e recordEntry) ComputeSize() uint { return approxRecordSize(e.rec) }

// bucketEntry is one secondary-index bucket: a field value (as its
// canonical string form) mapped to the set of primary keys whose field
// equals that value.
type bucketEntry struct {
	key string
	pks map[string]struct{}
}

func (b bucketEntry) GetKey() string { return b.key }
func (b bucketEntry) ComputeSize() uint {
	return uint(16 + 32*len(b.pks))
}

func approxRecordSize(r Record) uint {
	sz := uint(16)
	for k, v := range r.fields {
		sz += uint(len(k)) + 16
		if s, ok := v.(string); ok {
			sz += uint(len(s))
		}
	}
	return sz
}

// valueKey renders a scalar field value into the canonical string form used
// as a secondary-index bucket key and as an ordering key in the
// NonLockingReadMap instances below. Kind-tagging the prefix keeps values
// of different kinds (e.g. the string "1" and the int 1) from colliding.
func valueKey(v any) string {
	switch t := v.(type) {
	case int64:
		return fmt.Sprintf("i:%020d", t)
	case float64:
		return fmt.Sprintf("f:%v", t)
	case string:
		return "s:" + t
	case bool:
		if t {
			return "b:1"
		}
		return "b:0"
	default:
		return fmt.Sprintf("?:%v", t)
	}
}

// IndexSet maintains one primary map (pk -> record) and, for each declared
// secondary index field, a map (field value -> set of pks). Mutations are
// only ever driven while the owning Entity holds its write Gate, and reads
// only while it holds a read or write Gate, so IndexSet itself needs no
// additional locking around the gate's own discipline -- the
// NonLockingReadMap instances below exist to make concurrent reads
// (multiple goroutines holding the shared read gate at once) lock-free,
// not to protect against concurrent writers (the gate already forbids
// those).
type IndexSet struct {
	schema    *Schema
	primary   nlrm.NonLockingReadMap[recordEntry, string]
	secondary map[string]*nlrm.NonLockingReadMap[bucketEntry, string]
}

// NewIndexSet builds an empty IndexSet for schema.
func NewIndexSet(schema *Schema) *IndexSet {
	is := &IndexSet{
		schema:    schema,
		primary:   nlrm.New[recordEntry, string](),
		secondary: make(map[string]*nlrm.NonLockingReadMap[bucketEntry, string], len(schema.Indexed)),
	}
	for _, f := range schema.Indexed {
		m := nlrm.New[bucketEntry, string]()
		is.secondary[f] = &m
	}
	return is
}

func (is *IndexSet) pkString(rec Record) (string, any) {
	pk, _ := rec.Get(is.schema.PrimaryKey)
	return valueKey(pk), pk
}

// Insert adds rec to the index set, failing ErrDuplicatePrimaryKey if its
// primary key is already present. Updates the primary map and every
// secondary bucket atomically from the caller's perspective.
func (is *IndexSet) Insert(rec Record) error {
	key, _ := is.pkString(rec)
	if is.primary.Get(key) != nil {
		return ErrDuplicatePrimaryKey
	}
	is.primary.Set(&recordEntry{key: key, rec: rec})
	is.addToSecondaries(key, rec)
	return nil
}

// Replace overwrites the record stored under rec's own primary key (used by
// Update and by log replay, where an INSERT for an already-live pk
// supersedes the prior record). It is not an error if no prior record
// existed.
func (is *IndexSet) Replace(rec Record) {
	key, _ := is.pkString(rec)
	if prior := is.primary.Get(key); prior != nil {
		is.removeFromSecondaries(key, prior.rec)
	}
	is.primary.Set(&recordEntry{key: key, rec: rec})
	is.addToSecondaries(key, rec)
}

// Remove deletes the record with the given primary key value, returning it
// (and true) if it was present.
func (is *IndexSet) Remove(pk any) (Record, bool) {
	key := valueKey(pk)
	entry := is.primary.Get(key)
	if entry == nil {
		return Record{}, false
	}
	is.primary.Remove(key)
	is.removeFromSecondaries(key, entry.rec)
	return entry.rec, true
}

// Get returns the live record for pk, if any.
func (is *IndexSet) Get(pk any) (Record, bool) {
	entry := is.primary.Get(valueKey(pk))
	if entry == nil {
		return Record{}, false
	}
	return entry.rec, true
}

// Lookup returns the set of primary keys whose field equals value. field
// must be a declared index (the primary key counts as implicitly
// indexed).
func (is *IndexSet) Lookup(field string, value any) []any {
	if field == is.schema.PrimaryKey {
		if _, ok := is.Get(value); ok {
			return []any{value}
		}
		return nil
	}
	idx, ok := is.secondary[field]
	if !ok {
		return nil
	}
	bucket := idx.Get(valueKey(value))
	if bucket == nil {
		return nil
	}
	out := make([]any, 0, len(bucket.pks))
	for pkKey := range bucket.pks {
		if entry := is.primary.Get(pkKey); entry != nil {
			if pk, ok := entry.rec.Get(is.schema.PrimaryKey); ok {
				out = append(out, pk)
			}
		}
	}
	return out
}

// BucketSize reports the size of the secondary-index bucket for
// field=value, used by the query planner's smallest-bucket tie-break and
// exposed as a test hook (S2).
func (is *IndexSet) BucketSize(field string, value any) int {
	if field == is.schema.PrimaryKey {
		if _, ok := is.Get(value); ok {
			return 1
		}
		return 0
	}
	idx, ok := is.secondary[field]
	if !ok {
		return -1
	}
	bucket := idx.Get(valueKey(value))
	if bucket == nil {
		return 0
	}
	return len(bucket.pks)
}

// Scan returns a snapshot of all live records.
func (is *IndexSet) Scan() []Record {
	all := is.primary.GetAll()
	out := make([]Record, 0, len(all))
	for _, e := range all {
		out = append(out, (*e).rec)
	}
	return out
}

// Len reports the number of live records.
func (is *IndexSet) Len() int {
	return len(is.primary.GetAll())
}

func (is *IndexSet) addToSecondaries(pkKey string, rec Record) {
	for _, field := range is.schema.Indexed {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		idx := is.secondary[field]
		bKey := valueKey(v)
		existing := idx.Get(bKey)
		var pks map[string]struct{}
		if existing != nil {
			pks = make(map[string]struct{}, len(existing.pks)+1)
			for k := range existing.pks {
				pks[k] = struct{}{}
			}
		} else {
			pks = make(map[string]struct{}, 1)
		}
		pks[pkKey] = struct{}{}
		idx.Set(&bucketEntry{key: bKey, pks: pks})
	}
}

func (is *IndexSet) removeFromSecondaries(pkKey string, rec Record) {
	for _, field := range is.schema.Indexed {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		idx := is.secondary[field]
		bKey := valueKey(v)
		existing := idx.Get(bKey)
		if existing == nil {
			continue
		}
		if len(existing.pks) <= 1 {
			idx.Remove(bKey)
			continue
		}
		pks := make(map[string]struct{}, len(existing.pks)-1)
		for k := range existing.pks {
			if k != pkKey {
				pks[k] = struct{}{}
			}
		}
		idx.Set(&bucketEntry{key: bKey, pks: pks})
	}
}
