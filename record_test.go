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

func Test_Record_GetWithClone(t *testing.T) {
	t.Parallel()

	rec := NewRecord(map[string]any{"id": int64(1), "name": "sprocket"})
	v, ok := rec.Get("name")
	require.True(t, ok)
	assert.Equal(t, "sprocket", v)

	updated := rec.With("name", "cog")
	orig, _ := rec.Get("name")
	newVal, _ := updated.Get("name")
	assert.Equal(t, "sprocket", orig, "With must not mutate the receiver")
	assert.Equal(t, "cog", newVal)

	clone := rec.Clone()
	clone.fields["name"] = "mutated-in-place"
	origAfter, _ := rec.Get("name")
	assert.Equal(t, "sprocket", origAfter, "Clone's backing map must be independent")
}

func Test_CoerceKind(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		in      any
		kind    Kind
		want    any
		wantErr bool
	}{
		{name: "WholeFloatToInt", in: float64(7), kind: KindInt, want: int64(7)},
		{name: "FractionalFloatToIntFails", in: float64(7.5), kind: KindInt, wantErr: true},
		{name: "FloatStaysFloat", in: float64(1.5), kind: KindFloat, want: float64(1.5)},
		{name: "StringStaysString", in: "hi", kind: KindString, want: "hi"},
		{name: "BoolStaysBool", in: true, kind: KindBool, want: true},
		{name: "StringForIntFails", in: "7", kind: KindInt, wantErr: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := coerceKind(tc.in, tc.kind)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
