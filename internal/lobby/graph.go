package lobby

import "sort"

// requestGraph holds pending challenges as directed edges requester -> requestee.
// out and in mirror each other; every edge appears in both.
type requestGraph struct {
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

func newRequestGraph() *requestGraph {
	return &requestGraph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// add inserts from -> to. Returns false if the edge already exists.
func (g *requestGraph) add(from, to string) bool {
	if g.has(from, to) {
		return false
	}
	link(g.out, from, to)
	link(g.in, to, from)
	return true
}

func (g *requestGraph) has(from, to string) bool {
	_, ok := g.out[from][to]
	return ok
}

// remove deletes from -> to. Returns true if the edge existed.
func (g *requestGraph) remove(from, to string) bool {
	if !g.has(from, to) {
		return false
	}
	unlink(g.out, from, to)
	unlink(g.in, to, from)
	return true
}

// detach removes every edge touching id and returns the counterparties, sorted.
func (g *requestGraph) detach(id string) []string {
	seen := make(map[string]struct{})
	for to := range g.out[id] {
		unlink(g.in, to, id)
		seen[to] = struct{}{}
	}
	for from := range g.in[id] {
		unlink(g.out, from, id)
		seen[from] = struct{}{}
	}
	delete(g.out, id)
	delete(g.in, id)
	return sortedKeys(seen)
}

// outgoing lists identities id has challenged.
func (g *requestGraph) outgoing(id string) []string {
	return sortedKeys(g.out[id])
}

// incoming lists identities that have challenged id.
func (g *requestGraph) incoming(id string) []string {
	return sortedKeys(g.in[id])
}

func (g *requestGraph) size() int {
	n := 0
	for _, targets := range g.out {
		n += len(targets)
	}
	return n
}

func (g *requestGraph) each(fn func(from, to string)) {
	for from, targets := range g.out {
		for to := range targets {
			fn(from, to)
		}
	}
}

func link(m map[string]map[string]struct{}, a, b string) {
	set, ok := m[a]
	if !ok {
		set = make(map[string]struct{})
		m[a] = set
	}
	set[b] = struct{}{}
}

func unlink(m map[string]map[string]struct{}, a, b string) {
	set, ok := m[a]
	if !ok {
		return
	}
	delete(set, b)
	if len(set) == 0 {
		delete(m, a)
	}
}

// sortedKeys never returns nil so empty lists encode as [] on the wire.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
