package fdtable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Distrotech/mksh/internal/fdtable"
)

func TestTableGetSetSparse(t *testing.T) {
	var tab fdtable.Table

	require.NoError(t, tab.Set(0, fdtable.Slot{Dup: 3, Saved: true}))
	require.NoError(t, tab.Set(9, fdtable.Slot{Closed: true, Saved: true}))

	got, err := tab.Get(0)
	require.NoError(t, err)
	assert.Equal(t, fdtable.Slot{Dup: 3, Saved: true}, got)

	got, err = tab.Get(9)
	require.NoError(t, err)
	assert.Equal(t, fdtable.Slot{Closed: true, Saved: true}, got)

	got, err = tab.Get(4)
	require.NoError(t, err)
	assert.Equal(t, fdtable.Slot{}, got)
}

func TestTableEachRestoresInReverseOrder(t *testing.T) {
	var tab fdtable.Table
	require.NoError(t, tab.Set(1, fdtable.Slot{Dup: 10, Saved: true}))
	require.NoError(t, tab.Set(0, fdtable.Slot{Dup: 11, Saved: true}))
	require.NoError(t, tab.Set(2, fdtable.Slot{Dup: 12, Saved: true}))

	var order []uint
	tab.Each(func(fd uint, s fdtable.Slot) bool {
		order = append(order, fd)
		return true
	})
	assert.Equal(t, []uint{2, 1, 0}, order)
}

func TestTableLimitError(t *testing.T) {
	limited := fdtable.NewWithLimit(8)

	require.NoError(t, limited.Set(3, fdtable.Slot{Dup: 3, Saved: true}))

	err := limited.Set(20, fdtable.Slot{Dup: 20, Saved: true})
	var limErr fdtable.LimitError
	require.ErrorAs(t, err, &limErr)
	assert.Equal(t, uint(20), limErr.FD)
}
