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

func Test_Catalog_CreateOpenDrop(t *testing.T) {
	t.Parallel()
	cat, _ := openTestCatalog(t)

	schema := widgetSchema(t, 1)
	assert.False(t, cat.EntityExists("widgets"))
	require.NoError(t, cat.CreateEntity(schema))
	assert.True(t, cat.EntityExists("widgets"))
	assert.ErrorIs(t, cat.CreateEntity(schema), ErrEntityExists)

	e1, err := cat.OpenEntity("widgets", nil)
	require.NoError(t, err)
	e2, err := cat.OpenEntity("widgets", nil)
	require.NoError(t, err)
	assert.Same(t, e1, e2, "repeated OpenEntity must return the same live instance")

	assert.Equal(t, []string{"widgets"}, cat.ListEntities())

	require.NoError(t, cat.DropEntity("widgets"))
	assert.False(t, cat.EntityExists("widgets"))
	_, err = cat.OpenEntity("widgets", nil)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func Test_Catalog_OpenEntity_UnknownNameFails(t *testing.T) {
	t.Parallel()
	cat, _ := openTestCatalog(t)
	_, err := cat.OpenEntity("nope", nil)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func Test_Catalog_PersistsIndexAcrossReopen(t *testing.T) {
	t.Parallel()
	cat, dir := openTestCatalog(t)
	require.NoError(t, cat.CreateEntity(widgetSchema(t, 1)))
	require.NoError(t, cat.Close())

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	cat2, err := OpenCatalog(CatalogOptions{Backend: backend})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat2.Close() })

	assert.True(t, cat2.EntityExists("widgets"))
	assert.Equal(t, []string{"widgets"}, cat2.ListEntities())
}
