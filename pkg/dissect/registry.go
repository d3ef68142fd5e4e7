package dissect

import (
	"sort"
	"sync"
)

// Built-in table names. Protocol packages declare their own sub-dissector
// tables alongside the dissector that consults them.
const (
	TableUDPPort = "udp.port"
	TableTCPPort = "tcp.port"
)

// Registry maps selector values to dissectors. Tables are named by
// convention {protocol}.{selector}, e.g. "udp.port" or "rtcp.app.name".
// One registry instance is shared by the engine and every dissector wired
// into a run; there is no process-global instance.
type Registry struct {
	mu    sync.RWMutex
	uints map[string]map[uint32]Dissector
	strs  map[string]map[string]Dissector
	heur  map[string][]Dissector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		uints: make(map[string]map[uint32]Dissector),
		strs:  make(map[string]map[string]Dissector),
		heur:  make(map[string][]Dissector),
	}
}

// AddUint binds a dissector to an integer selector. A later binding for the
// same key replaces the earlier one.
func (r *Registry) AddUint(table string, key uint32, d Dissector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.uints[table]
	if !ok {
		t = make(map[uint32]Dissector)
		r.uints[table] = t
	}
	t[key] = d
}

// AddString binds a dissector to a string selector. Keys match exactly.
func (r *Registry) AddString(table string, key string, d Dissector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.strs[table]
	if !ok {
		t = make(map[string]Dissector)
		r.strs[table] = t
	}
	t[key] = d
}

// AddHeuristic appends a dissector to the heuristic list of a parent
// protocol, e.g. "udp". Heuristics run in registration order.
func (r *Registry) AddHeuristic(parent string, d Dissector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heur[parent] = append(r.heur[parent], d)
}

// LookupUint returns the dissector bound to key in table.
func (r *Registry) LookupUint(table string, key uint32) (Dissector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.uints[table][key]
	return d, ok
}

// LookupString returns the dissector bound to key in table.
func (r *Registry) LookupString(table string, key string) (Dissector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.strs[table][key]
	return d, ok
}

// Heuristics returns the heuristic list of a parent protocol.
func (r *Registry) Heuristics(parent string) []Dissector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.heur[parent]
}

// Tables returns the names of all known tables, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.uints)+len(r.strs))
	for name := range r.uints {
		seen[name] = struct{}{}
	}
	for name := range r.strs {
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
