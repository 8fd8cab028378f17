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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetSchema(t *testing.T, version int) *Schema {
	t.Helper()
	s, err := NewSchema("widgets", "id", map[string]Kind{
		"id":   KindInt,
		"name": KindString,
	}, []string{"name"}, version)
	require.NoError(t, err)
	return s
}

func Test_NewSchema_RejectsMissingPrimaryKeyField(t *testing.T) {
	t.Parallel()
	_, err := NewSchema("widgets", "id", map[string]Kind{"name": KindString}, nil, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchema))
}

func Test_Validate_RejectsKindMismatchAndExtraFields(t *testing.T) {
	t.Parallel()
	schema := widgetSchema(t, 1)

	good := NewRecord(map[string]any{"id": int64(1), "name": "sprocket"})
	require.NoError(t, validate(good, schema))

	wrongKind := NewRecord(map[string]any{"id": "not-an-int", "name": "sprocket"})
	err := validate(wrongKind, schema)
	require.Error(t, err)
	var violation *SchemaViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "id", violation.Field)

	extra := NewRecord(map[string]any{"id": int64(1), "name": "sprocket", "extra": true})
	require.Error(t, validate(extra, schema))

	missing := NewRecord(map[string]any{"id": int64(1)})
	require.Error(t, validate(missing, schema))
}

func Test_RegisterUpgrade_RejectsOutOfRangeStep(t *testing.T) {
	t.Parallel()
	schema := widgetSchema(t, 2)
	require.Error(t, schema.RegisterUpgrade(2, func(r Record) (Record, error) { return r, nil }))
	require.Error(t, schema.RegisterUpgrade(0, func(r Record) (Record, error) { return r, nil }))
	require.NoError(t, schema.RegisterUpgrade(1, func(r Record) (Record, error) { return r, nil }))
}

func Test_ApplyUpgrades_WalksChainAndDetectsGaps(t *testing.T) {
	t.Parallel()
	schema := widgetSchema(t, 3)
	require.NoError(t, schema.RegisterUpgrade(1, func(r Record) (Record, error) {
		return r.With("name", r.Fields()["name"].(string)+"-v2"), nil
	}))
	// intentionally skip registering 2->3 to exercise the gap detection.

	old := NewRecord(map[string]any{"id": int64(1), "name": "sprocket"})
	old.Version = 1
	_, err := schema.applyUpgrades(old)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpgradeChainBroken))

	require.NoError(t, schema.RegisterUpgrade(2, func(r Record) (Record, error) { return r, nil }))
	upgraded, err := schema.applyUpgrades(old)
	require.NoError(t, err)
	assert.Equal(t, 3, upgraded.Version)
	name, _ := upgraded.Get("name")
	assert.Equal(t, "sprocket-v2", name)
}
