package hostobject

import (
	"sort"
)

// Table is an immutable collection of named members of one category.
// Once built, entries cannot be added or removed, so lookups need no locking.
type Table[F any] struct {
	members map[string]F
	names   []string // sorted for consistent iteration
}

// tableBuilder accumulates members during table construction.
type tableBuilder[F any] struct {
	kind    Kind
	members map[string]F
}

func newTableBuilder[F any](kind Kind) *tableBuilder[F] {
	return &tableBuilder[F]{
		kind:    kind,
		members: make(map[string]F),
	}
}

// add registers a member under name.
// Returns an error if the name is empty or already registered in this table.
func (b *tableBuilder[F]) add(name string, member F) error {
	if name == "" {
		return &DeclarationError{Kind: b.kind, Name: name, Err: ErrEmptyName}
	}
	if _, exists := b.members[name]; exists {
		return &DeclarationError{Kind: b.kind, Name: name, Err: ErrDuplicateMember}
	}
	b.members[name] = member
	return nil
}

func (b *tableBuilder[F]) build(wrap func(F) F) *Table[F] {
	names := make([]string, 0, len(b.members))
	for name := range b.members {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make(map[string]F, len(b.members))
	for name, member := range b.members {
		if wrap != nil {
			member = wrap(member)
		}
		members[name] = member
	}
	return &Table[F]{members: members, names: names}
}

// Lookup returns the member registered under name.
func (t *Table[F]) Lookup(name string) (F, bool) {
	if t == nil {
		var zero F
		return zero, false
	}
	member, ok := t.members[name]
	return member, ok
}

// Has returns true if a member with the given name is registered.
func (t *Table[F]) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// Names returns a sorted list of all registered names.
func (t *Table[F]) Names() []string {
	if t == nil {
		return nil
	}
	result := make([]string, len(t.names))
	copy(result, t.names)
	return result
}

// Len returns the number of registered members.
func (t *Table[F]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
