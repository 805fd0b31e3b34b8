package command

import (
	"sort"
	"strings"
	"sync"
)

// Node is one command in the tree. A node is built and wired at startup; once
// CompleteRegistration has run it is read-only and safe to share.
type Node struct {
	meta     Metadata
	executor Executor
	parent   *Node

	mu        sync.Mutex
	children  map[string]*Node
	accepting bool
}

// NewNode builds a node. A nil executor makes it a pure container whose
// invocation prints usage.
func NewNode(meta Metadata, executor Executor) *Node {
	return &Node{
		meta:      meta,
		executor:  executor,
		children:  make(map[string]*Node),
		accepting: true,
	}
}

func (n *Node) Metadata() *Metadata { return &n.meta }
func (n *Node) Key() string         { return n.meta.Key }
func (n *Node) Executor() Executor  { return n.executor }
func (n *Node) HasExecutor() bool   { return n.executor != nil }
func (n *Node) Parent() *Node       { return n.parent }

// Path is the space separated alias path from the root, e.g. "kit create".
func (n *Node) Path() string {
	if n.parent == nil {
		return n.meta.Primary()
	}
	return n.parent.Path() + " " + n.meta.Primary()
}

// Attach registers child under alias. The same child may be attached under
// several aliases.
func (n *Node) Attach(alias string, child *Node) error {
	alias = strings.ToLower(strings.TrimSpace(alias))
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.accepting {
		return &RegistrationError{Command: n.meta.Key, Alias: alias, Reason: "registration already complete"}
	}
	if alias == "" || strings.ContainsAny(alias, " \t") {
		return &RegistrationError{Command: n.meta.Key, Alias: alias, Reason: "invalid alias"}
	}
	if _, exists := n.children[alias]; exists {
		return &RegistrationError{Command: n.meta.Key, Alias: alias, Reason: "alias already registered"}
	}
	if child.parent != nil && child.parent != n {
		return &RegistrationError{Command: child.meta.Key, Alias: alias, Reason: "node already has a parent"}
	}
	child.parent = n
	if child.meta.Parent == nil {
		child.meta.Parent = &n.meta
	}
	n.children[alias] = child
	return nil
}

// AttachChild attaches child under every one of its aliases.
func (n *Node) AttachChild(child *Node) error {
	for _, alias := range child.meta.Aliases {
		if err := n.Attach(alias, child); err != nil {
			return err
		}
	}
	return nil
}

// CompleteRegistration closes this node and its subtree to further mutation.
func (n *Node) CompleteRegistration() error {
	n.mu.Lock()
	if !n.accepting {
		n.mu.Unlock()
		return &RegistrationError{Command: n.meta.Key, Reason: "registration already complete"}
	}
	n.accepting = false
	children := n.distinctChildren()
	n.mu.Unlock()

	for _, child := range children {
		if !child.Accepting() {
			continue
		}
		if err := child.CompleteRegistration(); err != nil {
			return err
		}
	}
	return nil
}

// Accepting reports whether the node still takes new children.
func (n *Node) Accepting() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accepting
}

// Child looks up a direct child by alias, case-insensitively.
func (n *Node) Child(alias string) (*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[strings.ToLower(alias)]
	return c, ok
}

// Children returns each distinct child once, ordered by primary alias.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.distinctChildren()
}

func (n *Node) distinctChildren() []*Node {
	seen := make(map[*Node]struct{}, len(n.children))
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].meta.Primary() < out[j].meta.Primary()
	})
	return out
}

// TestPermission reports whether a holds every base permission of the node.
func (n *Node) TestPermission(perms PermissionService, a *Actor) bool {
	for _, p := range n.meta.Permissions {
		if !perms.HasPermission(a, p) {
			return false
		}
	}
	return true
}

// MissingPermission returns the first base permission a lacks, if any.
func (n *Node) MissingPermission(perms PermissionService, a *Actor) (string, bool) {
	for _, p := range n.meta.Permissions {
		if !perms.HasPermission(a, p) {
			return p, true
		}
	}
	return "", false
}
