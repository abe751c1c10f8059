package registry

// Handle addresses one entity of type T in its arena. A handle whose entity
// was removed no longer resolves, even after the slot is reused. The zero
// Handle never resolves.
type Handle[T any] struct {
	index      int
	generation uint32
}

// Valid reports whether the handle was ever issued.
func (h Handle[T]) Valid() bool {
	return h.generation != 0
}

type slot[T any] struct {
	generation uint32
	live       bool
	name       string
	value      *T
}

// arena stores entities of one kind, in insertion order, with a name index.
type arena[T any] struct {
	slots []slot[T]
	free  []int
	names map[string]Handle[T]
	order []Handle[T]
}

func newArena[T any]() *arena[T] {
	return &arena[T]{names: make(map[string]Handle[T])}
}

// insert stores value under name. It returns false when the name is taken.
func (a *arena[T]) insert(name string, value *T) (Handle[T], bool) {
	if _, taken := a.names[name]; taken {
		return Handle[T]{}, false
	}

	var index int
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = len(a.slots)
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[index]
	s.generation++
	s.live = true
	s.name = name
	s.value = value

	h := Handle[T]{index: index, generation: s.generation}
	a.names[name] = h
	a.order = append(a.order, h)
	return h, true
}

func (a *arena[T]) get(h Handle[T]) (*T, bool) {
	if h.index < 0 || h.index >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, false
	}
	return s.value, true
}

func (a *arena[T]) lookup(name string) (Handle[T], bool) {
	h, ok := a.names[name]
	return h, ok
}

func (a *arena[T]) name(h Handle[T]) string {
	if _, ok := a.get(h); !ok {
		return ""
	}
	return a.slots[h.index].name
}

func (a *arena[T]) remove(h Handle[T]) (*T, bool) {
	value, ok := a.get(h)
	if !ok {
		return nil, false
	}

	s := &a.slots[h.index]
	delete(a.names, s.name)
	s.live = false
	s.value = nil
	s.name = ""
	a.free = append(a.free, h.index)

	for idx, live := range a.order {
		if live == h {
			a.order = append(a.order[:idx], a.order[idx+1:]...)
			break
		}
	}
	return value, true
}

func (a *arena[T]) handles() []Handle[T] {
	out := make([]Handle[T], len(a.order))
	copy(out, a.order)
	return out
}

func (a *arena[T]) count() int {
	return len(a.order)
}
