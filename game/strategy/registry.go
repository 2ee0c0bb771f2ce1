package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps strategy types to profiles. It starts with the five presets
// and accepts custom profiles loaded from the roster file.
// A Registry is not safe for concurrent mutation; register profiles at
// startup and treat it as read-only afterwards.
type Registry struct {
	byType map[Type]Profile
	byName map[string]Type
	next   Type
}

// NewRegistry returns a registry seeded with the presets.
func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[Type]Profile),
		byName: make(map[string]Type),
		next:   Berserker + 1,
	}
	for _, p := range presets {
		r.byType[p.Type] = p
		r.byName[p.Name] = p.Type
	}
	return r
}

// Register adds or replaces a profile keyed by its name. A profile whose name
// is not yet known is assigned a fresh Type, which is returned.
func (r *Registry) Register(p Profile) Type {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if t, ok := r.byName[name]; ok {
		p.Type = t
	} else {
		p.Type = r.next
		r.next++
	}
	p.Name = name
	r.byType[p.Type] = p
	r.byName[name] = p.Type
	return p.Type
}

// Get returns the profile for t, falling back to Balanced.
func (r *Registry) Get(t Type) Profile {
	if r == nil {
		return Get(t)
	}
	if p, ok := r.byType[t]; ok {
		return p
	}
	return r.byType[Balanced]
}

// Lookup resolves a profile by name.
func (r *Registry) Lookup(name string) (Profile, error) {
	t, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("strategy: unknown profile %q", name)
	}
	return r.byType[t], nil
}

// Types lists every registered type in ascending order.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
