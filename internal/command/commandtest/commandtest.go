// Package commandtest provides in-memory collaborators for testing code built
// on the command package.
package commandtest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattjoyce/cmdgate/internal/command"
)

// Permissions grants permissions and numeric options per actor name.
type Permissions struct {
	mu      sync.Mutex
	grants  map[string]map[string]bool
	options map[string]map[string]float64
}

func NewPermissions() *Permissions {
	return &Permissions{
		grants:  make(map[string]map[string]bool),
		options: make(map[string]map[string]float64),
	}
}

// Grant gives the named actor each permission. "*" grants everything.
func (p *Permissions) Grant(actor string, perms ...string) *Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grants[actor] == nil {
		p.grants[actor] = make(map[string]bool)
	}
	for _, perm := range perms {
		p.grants[actor][perm] = true
	}
	return p
}

// SetOption sets a numeric option for the named actor.
func (p *Permissions) SetOption(actor, key string, v float64) *Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.options[actor] == nil {
		p.options[actor] = make(map[string]float64)
	}
	p.options[actor][key] = v
	return p
}

func (p *Permissions) HasPermission(a *command.Actor, perm string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := p.grants[a.Name()]
	return g["*"] || g[perm]
}

func (p *Permissions) NumericOption(a *command.Actor, keys ...string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if v, ok := p.options[a.Name()][k]; ok {
			return v, true
		}
	}
	return 0, false
}

// Messages renders a key followed by its arguments, e.g. "cooldown.wait 3".
type Messages struct{}

func (Messages) Resolve(_ string, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, key)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

// Inbox collects messages delivered to an actor.
type Inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (i *Inbox) Send(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, text)
}

// Messages returns a copy of everything received so far.
func (i *Inbox) Messages() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.msgs...)
}

// Contains reports whether any received message starts with prefix.
func (i *Inbox) Contains(prefix string) bool {
	for _, m := range i.Messages() {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// Services wires Permissions and Messages into command.Services.
func Services(p *Permissions) *command.Services {
	return &command.Services{
		Permissions:  p,
		Messages:     Messages{},
		OptionPrefix: "cmdgate",
	}
}
