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
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// CatalogOptions configures a Catalog at open time: which persistence
// backend it is rooted on and the per-entity behavior every entity opened
// through it inherits.
type CatalogOptions struct {
	// Backend is the persistence backend the catalog and every entity it
	// opens is rooted on. Required.
	Backend PersistenceBackend
	// CompactionRatio is the default EntityConfig.CompactionRatio applied
	// to every entity opened through this catalog.
	CompactionRatio float64
	// Logger is the structured logger every entity derives its own
	// per-entity *logrus.Entry from. A default, text-formatted logger at
	// Info level is used if nil.
	Logger *logrus.Logger
}

// catalogIndex is the JSON body persisted at catalog.meta: just the set of
// entity names known to exist, sufficient to reject CreateEntity on a name
// already in use and to refuse to open an entity never created.
type catalogIndex struct {
	Entities []string `json:"entities"`
}

// Catalog is C8: the process-wide directory of entities, each opened at
// most once per process. Grounded on the teacher's package-level database
// registry in storage/database.go, generalized from "table registry"
// to "entity registry" and backed by the pluggable PersistenceBackend
// instead of a fixed local-filesystem layout.
type Catalog struct {
	mu      sync.Mutex
	backend PersistenceBackend
	cfg     EntityConfig
	log     *logrus.Logger

	names   map[string]bool    // known entity names, mirrors catalog.meta
	schemas map[string]*Schema // loaded schemas for known entities
	open    map[string]*Entity // currently-open entities
}

// OpenCatalog loads (or initializes) the catalog index from opts.Backend.
func OpenCatalog(opts CatalogOptions) (*Catalog, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("%w: CatalogOptions.Backend is required", ErrInvalidSchema)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Catalog{
		backend: opts.Backend,
		cfg:     EntityConfig{CompactionRatio: opts.CompactionRatio},
		log:     logger,
		names:   make(map[string]bool),
		schemas: make(map[string]*Schema),
		open:    make(map[string]*Entity),
	}

	raw, err := opts.Backend.ReadCatalogIndex()
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var idx catalogIndex
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, fmt.Errorf("%w: corrupt catalog.meta: %v", ErrInvalidSchema, err)
		}
		for _, name := range idx.Entities {
			c.names[name] = true
		}
	}
	return c, nil
}

func (c *Catalog) persistIndex() error {
	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	data, err := json.MarshalIndent(catalogIndex{Entities: names}, "", "  ")
	if err != nil {
		return err
	}
	return c.backend.WriteCatalogIndex(data)
}

// CreateEntity registers a new entity under schema.Name and persists its
// schema blob. It does not open the entity; call OpenEntity to start using
// it.
func (c *Catalog) CreateEntity(schema *Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.names[schema.Name] {
		return fmt.Errorf("%w: %s", ErrEntityExists, schema.Name)
	}
	blob, err := schemaMetaBlob(schema)
	if err != nil {
		return err
	}
	if err := c.backend.WriteSchema(schema.Name, blob); err != nil {
		return err
	}
	c.names[schema.Name] = true
	c.schemas[schema.Name] = schema
	if err := c.persistIndex(); err != nil {
		return err
	}
	c.log.WithField("entity", schema.Name).Info("entity created")
	return nil
}

// OpenEntity opens (replaying its log) a previously-created entity, caching
// the result so repeated calls return the same live *Entity.
// registerUpgrades, if non-nil, is applied to the loaded schema before replay so lazy upgrades
// registered by the caller are in effect from the first record read.
func (c *Catalog) OpenEntity(name string, registerUpgrades func(*Schema) error) (*Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.open[name]; ok {
		return e, nil
	}
	if !c.names[name] {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}

	schema, ok := c.schemas[name]
	if !ok {
		raw, err := c.backend.ReadSchema(name)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("%w: %s (missing schema.meta)", ErrEntityNotFound, name)
		}
		var loaded Schema
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return nil, fmt.Errorf("%w: corrupt schema for %s: %v", ErrInvalidSchema, name, err)
		}
		loaded.upgrades = make(map[string]UpgradeFunc)
		schema = &loaded
		c.schemas[name] = schema
	}
	if registerUpgrades != nil {
		if err := registerUpgrades(schema); err != nil {
			return nil, err
		}
	}

	e, err := openEntity(name, schema, c.backend, c.cfg, c.log)
	if err != nil {
		return nil, err
	}
	c.open[name] = e
	return e, nil
}

// DropEntity closes (if open) and permanently removes an entity's schema,
// log and any staging files.
func (c *Catalog) DropEntity(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.names[name] {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}
	if e, ok := c.open[name]; ok {
		_ = e.Close()
		delete(c.open, name)
	}
	if err := c.backend.RemoveEntity(name); err != nil {
		return err
	}
	delete(c.names, name)
	delete(c.schemas, name)
	if err := c.persistIndex(); err != nil {
		return err
	}
	c.log.WithField("entity", name).Info("entity dropped")
	return nil
}

// ListEntities returns the sorted names of every entity the catalog knows
// about, open or not.
func (c *Catalog) ListEntities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityExists reports whether name has been created (open or not).
func (c *Catalog) EntityExists(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.names[name]
}

// Close closes every entity the catalog currently has open.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for name, e := range c.open {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.open, name)
	}
	return firstErr
}
