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
// Command yourdbdemo exercises a catalog end to end against a local
// directory: create an entity, insert a handful of records, query them
// back, and report what's stored. It is a smoke harness, not the user
// facade: the façade and any CLI/REPL built on top of this engine are out
// of scope for this module.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cph-systems/yourdb"
)

func main() {
	root := "./yourdb-demo-data"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	backend, err := yourdb.NewFileBackend(root)
	if err != nil {
		logger.WithError(err).Fatal("open backend")
	}

	cat, err := yourdb.OpenCatalog(yourdb.CatalogOptions{
		Backend:         backend,
		CompactionRatio: 0.5,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("open catalog")
	}
	defer cat.Close()

	schema, err := yourdb.NewSchema("widgets", "id",
		map[string]yourdb.Kind{
			"id":    yourdb.KindInt,
			"name":  yourdb.KindString,
			"price": yourdb.KindFloat,
		},
		[]string{"name"}, 1)
	if err != nil {
		logger.WithError(err).Fatal("build schema")
	}

	if !cat.EntityExists("widgets") {
		if err := cat.CreateEntity(schema); err != nil {
			logger.WithError(err).Fatal("create entity")
		}
	}

	widgets, err := cat.OpenEntity("widgets", nil)
	if err != nil {
		logger.WithError(err).Fatal("open entity")
	}

	seed := []yourdb.Record{
		yourdb.NewRecord(map[string]any{"id": int64(1), "name": "sprocket", "price": 4.5}),
		yourdb.NewRecord(map[string]any{"id": int64(2), "name": "cog", "price": 2.25}),
		yourdb.NewRecord(map[string]any{"id": int64(3), "name": "sprocket", "price": 4.75}),
	}
	for _, rec := range seed {
		if err := widgets.Insert(rec); err != nil && err != yourdb.ErrDuplicatePrimaryKey {
			logger.WithError(err).Fatal("insert")
		}
	}

	matches, err := widgets.Select(yourdb.Filter{"name": "sprocket"})
	if err != nil {
		logger.WithError(err).Fatal("select")
	}
	fmt.Printf("found %d sprocket(s):\n", len(matches))
	for _, rec := range matches {
		id, _ := rec.Get("id")
		price, _ := rec.Get("price")
		fmt.Printf("  id=%v price=%v\n", id, price)
	}

	if err := widgets.Optimize(); err != nil {
		logger.WithError(err).Warn("optimize")
	}
}
