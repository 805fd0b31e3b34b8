package command

import (
	"strings"

	"github.com/mattjoyce/cmdgate/internal/args"
)

// UsageLine renders the single-line synopsis of n, e.g. "/kit create <name>".
func (n *Node) UsageLine(s *Services, a *Actor) string {
	synopsis := "/" + n.Path()
	if params := args.Usage(n.meta.Parameters); params != "" {
		synopsis += " " + params
	}
	desc := ""
	if n.meta.DescriptionKey != "" {
		desc = s.Message(a, n.meta.DescriptionKey)
	}
	return strings.TrimRight(s.Message(a, "command.usage.line", synopsis, desc), " ")
}

// Usage renders the help block for n: a header, the node's own synopsis when
// it has an executor, and one line per child a may run. Rendering does not
// depend on prior calls.
func (n *Node) Usage(s *Services, a *Actor) string {
	lines := []string{s.Message(a, "command.usage.header", n.Path())}
	if n.HasExecutor() {
		lines = append(lines, n.UsageLine(s, a))
	}
	for _, c := range n.Children() {
		if !c.meta.Source.Accepts(a.Kind()) {
			continue
		}
		if !c.TestPermission(s.Permissions, a) {
			continue
		}
		lines = append(lines, c.UsageLine(s, a))
	}
	return strings.Join(lines, "\n")
}
