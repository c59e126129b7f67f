package mksh

import (
	"fmt"
	"path/filepath"
)

// mapSymbolTable is the default SymbolTable collaborator: an in-memory map,
// with no real scoping/persistence beyond this process (spec §1 Non-goals:
// "no real symbol-table persistence/scoping semantics beyond an in-memory
// map").
type mapSymbolTable struct {
	vars map[string]Value
}

func newMapSymbolTable() *mapSymbolTable {
	return &mapSymbolTable{vars: make(map[string]Value)}
}

func (t *mapSymbolTable) Lookup(name string) (Value, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *mapSymbolTable) Set(name string, val Value, flags TypeFlags) error {
	if cur, ok := t.vars[name]; ok && cur.Flags&ReadOnly != 0 {
		return fmt.Errorf("%s: is read only", name)
	}
	val.Flags |= flags
	t.vars[name] = val
	return nil
}

func (t *mapSymbolTable) Delete(name string) error {
	if cur, ok := t.vars[name]; ok && cur.Flags&ReadOnly != 0 {
		return fmt.Errorf("%s: is read only", name)
	}
	delete(t.vars, name)
	return nil
}

// Typeset applies a `declare`-style flag-only decl (this core does not
// parse the full `typeset -i/-x name=val...` grammar; that belongs to the
// out-of-scope builtin option parser, spec §1) to an existing or
// zero-valued entry named decl.
func (t *mapSymbolTable) Typeset(decl string, flags TypeFlags) error {
	v := t.vars[decl]
	v.Flags |= flags
	t.vars[decl] = v
	return nil
}

// globMatcher is the default GlobMatcher collaborator: shell patterns are
// translated to Go's path/filepath glob syntax (`*`, `?`, `[...]` all line
// up) and matched with filepath.Match, which is the standard-library
// equivalent of the out-of-scope "real" glob engine (extended globs
// `@(...)`/`!(...)`/etc. are not supported by filepath.Match and fall back
// to a literal-equality check).
type globMatcher struct{}

func (globMatcher) Match(text, pattern string) bool {
	ok, err := filepath.Match(pattern, text)
	if err != nil {
		return text == pattern
	}
	return ok
}
