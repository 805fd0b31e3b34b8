package command

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the root commands.
type Registry struct {
	mu        sync.RWMutex
	roots     map[string]*Node
	completed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{roots: make(map[string]*Node)}
}

// Register adds a root command under all of its aliases.
func (r *Registry) Register(n *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed {
		return &RegistrationError{Command: n.Key(), Reason: "registry is closed"}
	}
	if len(n.meta.Aliases) == 0 {
		return &RegistrationError{Command: n.Key(), Reason: "root command needs at least one alias"}
	}
	for _, alias := range n.meta.Aliases {
		if _, exists := r.roots[strings.ToLower(alias)]; exists {
			return &RegistrationError{Command: n.Key(), Alias: alias, Reason: "alias already registered"}
		}
	}
	for _, alias := range n.meta.Aliases {
		r.roots[strings.ToLower(alias)] = n
	}
	return nil
}

// Complete closes the registry and every registered tree.
func (r *Registry) Complete() error {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return nil
	}
	r.completed = true
	r.mu.Unlock()

	for _, n := range r.All() {
		if !n.Accepting() {
			continue
		}
		if err := n.CompleteRegistration(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a root command by alias.
func (r *Registry) Get(alias string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.roots[strings.ToLower(alias)]
	return n, ok
}

// All returns each root command once, ordered by key.
func (r *Registry) All() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Node]struct{}, len(r.roots))
	out := make([]*Node, 0, len(r.roots))
	for _, n := range r.roots {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Walk visits every node depth-first, parents before children.
func (r *Registry) Walk(fn func(n *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children() {
			visit(c, depth+1)
		}
	}
	for _, n := range r.All() {
		visit(n, 0)
	}
}
