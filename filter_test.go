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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema("widgets", "id", map[string]Kind{
		"id":    KindInt,
		"name":  KindString,
		"price": KindFloat,
	}, []string{"name"}, 1)
	require.NoError(t, err)
	return s
}

func seedIndex(t *testing.T, schema *Schema) *IndexSet {
	t.Helper()
	is := NewIndexSet(schema)
	rows := []Record{
		NewRecord(map[string]any{"id": int64(1), "name": "sprocket", "price": 4.5}),
		NewRecord(map[string]any{"id": int64(2), "name": "cog", "price": 2.25}),
		NewRecord(map[string]any{"id": int64(3), "name": "sprocket", "price": 9.0}),
	}
	for _, r := range rows {
		require.NoError(t, is.Insert(r))
	}
	return is
}

func Test_PlanAndExecute_NilFilterScansEverything(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	is := seedIndex(t, schema)
	out, err := planAndExecute(is, schema, nil)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func Test_PlanAndExecute_EqualityUsesIndexedSeed(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	is := seedIndex(t, schema)
	out, err := planAndExecute(is, schema, Filter{"name": "sprocket"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	for _, r := range out {
		name, _ := r.Get("name")
		assert.Equal(t, "sprocket", name)
	}
}

func Test_PlanAndExecute_OperatorPredicate(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	is := seedIndex(t, schema)
	out, err := planAndExecute(is, schema, Filter{"price": map[string]any{"$gt": 3.0}})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func Test_PlanAndExecute_CombinesSeedAndLinearPredicates(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	is := seedIndex(t, schema)
	out, err := planAndExecute(is, schema, Filter{
		"name":  "sprocket",
		"price": map[string]any{"$gte": 9.0},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	id, _ := out[0].Get("id")
	assert.Equal(t, int64(3), id)
}

func Test_CompileFilter_RejectsUnknownFieldAndOperator(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	_, err := compileFilter(Filter{"nope": 1}, schema)
	require.Error(t, err)

	_, err = compileFilter(Filter{"price": map[string]any{"$bogus": 1.0}}, schema)
	require.Error(t, err)
}

func Test_CompileFilter_RejectsKindMismatch(t *testing.T) {
	t.Parallel()
	schema := priceSchema(t)
	_, err := compileFilter(Filter{"price": "not-a-float"}, schema)
	require.Error(t, err)
}
