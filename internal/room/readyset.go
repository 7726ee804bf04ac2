package room

import "sort"

// ReadySet is the set of player ids that confirmed readiness.
type ReadySet map[string]struct{}

// NewReadySet builds a set from ids, ignoring duplicates.
func NewReadySet(ids ...string) ReadySet {
	s := make(ReadySet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is ready.
func (s ReadySet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id ready. Returns false if it already was.
func (s ReadySet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Delete removes id.
func (s ReadySet) Delete(id string) {
	delete(s, id)
}

// Filter returns the subset whose ids are still on the roster.
func (s ReadySet) Filter(players []Player) ReadySet {
	out := make(ReadySet, len(s))
	for _, p := range players {
		if s.Has(p.ID) {
			out[p.ID] = struct{}{}
		}
	}
	return out
}

// IDs returns the members in roster order, unknown ids sorted after them.
func (s ReadySet) IDs(players []Player) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, p := range players {
		if s.Has(p.ID) {
			out = append(out, p.ID)
			seen[p.ID] = struct{}{}
		}
	}
	var rest []string
	for id := range s {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
