// Package fdtable implements the per-environment-frame saved-fd vector used
// by the redirection engine (spec §3 "Execution environment stack": "each
// with a saved-fd vector of size NUFILE").
//
// A shell only ever touches a handful of the file descriptors below NUFILE
// at a time (0, 1, 2, and whatever a script redirects), so the vector is
// sparse in practice; this keeps the teacher's paged-growth allocator
// (originally `internal/mem.Ints`, a VM memory model) instead of a flat
// `[NUFILE]int` array, just retargeted at fd slots instead of memory cells.
package fdtable

import "fmt"

// DefaultPageSize is the default page size for a Table's backing pages.
const DefaultPageSize = 16

// LimitError indicates a fd operation addressed a slot beyond Table.Limit.
type LimitError struct {
	FD uint
	Op string
}

func (e LimitError) Error() string {
	return fmt.Sprintf("fd limit exceeded by %v @fd %v", e.Op, e.FD)
}

// pagedCore provides growth bookkeeping common to any paged integer store.
type pagedCore struct {
	pageSize uint
	// Limit caps the highest addressable fd slot; 0 means unbounded
	// (the host is expected to enforce NUFILE itself via ProcessHost).
	Limit uint

	bases []uint
	sizes []uint
}

func (m *pagedCore) findPage(fd uint) int {
	i, j := 0, len(m.bases)
	for i < j {
		h := int(uint(i+j)>>1) + 1
		if h < len(m.bases) && m.bases[h] <= fd {
			i = h
		} else {
			j = h - 1
		}
	}
	return i
}

func (m *pagedCore) allocPage(pageID int, fd uint) (base, size uint, isNew bool) {
	if pageID == len(m.bases) {
		base = fd / m.pageSize * m.pageSize
		size = m.pageSize
		if i := len(m.bases) - 1; i >= 0 {
			lastEnd := m.bases[i] + m.sizes[i]
			if base < lastEnd {
				size -= lastEnd - base
				base = lastEnd
			}
		}
		m.bases = append(m.bases, base)
		m.sizes = append(m.sizes, size)
		return base, size, true
	}

	base = m.bases[pageID]
	if fd < base {
		size = m.pageSize
		nextBase := base
		base = fd / m.pageSize * m.pageSize
		if gapSize := nextBase - base; size > gapSize {
			size = gapSize
		}
		m.bases = append(m.bases, 0)
		m.sizes = append(m.sizes, 0)
		copy(m.bases[pageID+1:], m.bases[pageID:])
		copy(m.sizes[pageID+1:], m.sizes[pageID:])
		m.bases[pageID] = base
		m.sizes[pageID] = size
		return base, size, true
	}

	return base, m.sizes[pageID], false
}

func (m *pagedCore) checkLimit(fd uint, op string) error {
	if max := m.Limit; max != 0 && fd > max {
		return LimitError{fd, op}
	}
	return nil
}

// Slot records what a saved fd position needs to be restored: either a
// duplicate of a prior open fd (Dup >= 0) or a request that the slot be
// closed on restore (Closed).
type Slot struct {
	Dup    int
	Closed bool
	Saved  bool
}

// Table is a sparse, growable vector of Slot, indexed by fd number, used as
// one environment frame's saved-fd vector. The zero value is ready to use.
type Table struct {
	pagedCore
	pages [][]Slot
}

// NewWithLimit returns a Table that rejects any fd greater than limit
// (limit itself is accepted). A limit of 0 means unbounded.
func NewWithLimit(limit uint) *Table {
	return &Table{pagedCore: pagedCore{Limit: limit}}
}

// Get returns the slot saved at fd, or the zero Slot if fd was never saved
// in this frame.
func (t *Table) Get(fd uint) (Slot, error) {
	if err := t.checkLimit(fd, "get"); err != nil {
		return Slot{}, err
	}
	if t.pageSize == 0 || len(t.pages) == 0 {
		return Slot{}, nil
	}
	pageID := t.findPage(fd)
	base := t.bases[pageID]
	page := t.pages[pageID]
	if i := int(fd) - int(base); 0 <= i && i < len(page) {
		return page[i], nil
	}
	return Slot{}, nil
}

// Set stores a slot at fd, growing pages as necessary.
func (t *Table) Set(fd uint, s Slot) error {
	if err := t.checkLimit(fd, "set"); err != nil {
		return err
	}
	if t.pageSize == 0 {
		t.pageSize = DefaultPageSize
	}
	pageID := t.findPage(fd)
	base, size, isNew := t.pagedCore.allocPage(pageID, fd)
	var page []Slot
	if isNew {
		page = make([]Slot, size)
		if pageID == len(t.bases) {
			t.pages = append(t.pages, page)
		} else {
			t.pages = append(t.pages, nil)
			copy(t.pages[pageID+1:], t.pages[pageID:])
			t.pages[pageID] = page
		}
	} else {
		page = t.pages[pageID]
	}
	if i := int(fd) - int(base); 0 <= i && i < len(page) {
		page[i] = s
	}
	return nil
}

// Each calls f for every fd slot marked Saved, in descending fd order. The
// order is by fd number only; it is not necessarily the reverse of the
// order in which the slots were saved. Stops early if f returns false.
func (t *Table) Each(f func(fd uint, s Slot) bool) {
	for pageID := len(t.bases) - 1; pageID >= 0; pageID-- {
		base := t.bases[pageID]
		page := t.pages[pageID]
		for i := len(page) - 1; i >= 0; i-- {
			if !page[i].Saved {
				continue
			}
			if !f(base+uint(i), page[i]) {
				return
			}
		}
	}
}
