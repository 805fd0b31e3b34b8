// Package permission implements the command permission service on top of the
// permissions section of the configuration.
//
// A subject is an actor name. Its grants come from its own permission list
// and from its groups (or the default group when it lists none), following
// group inheritance. "*" grants everything, "kit.*" grants "kit" and every
// "kit.<x>". A leading "-" denies and always beats a grant. Console actors
// hold every permission.
package permission

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
)

type grantSet struct {
	allow   []string
	deny    []string
	options []map[string]float64
}

type Service struct {
	mu    sync.RWMutex
	cfg   config.PermissionsConfig
	cache map[string]*grantSet
}

// New validates group inheritance and builds a service.
func New(cfg config.PermissionsConfig) (*Service, error) {
	s := &Service{}
	if err := s.Reload(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload swaps in a new permission model.
func (s *Service) Reload(cfg config.PermissionsConfig) error {
	for name := range cfg.Groups {
		if err := checkCycle(cfg, name, nil); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.cfg = cfg
	s.cache = make(map[string]*grantSet)
	s.mu.Unlock()
	return nil
}

func checkCycle(cfg config.PermissionsConfig, name string, path []string) error {
	for _, p := range path {
		if p == name {
			return fmt.Errorf("permission group inheritance cycle: %s -> %s", strings.Join(path, " -> "), name)
		}
	}
	for _, parent := range cfg.Groups[name].Inherit {
		if err := checkCycle(cfg, parent, append(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) HasPermission(a *command.Actor, permission string) bool {
	if a.Kind() == command.KindConsole {
		return true
	}
	if permission == "" {
		return true
	}
	g := s.grants(a.Name())
	for _, d := range g.deny {
		if Matches(d, permission) {
			return false
		}
	}
	for _, p := range g.allow {
		if Matches(p, permission) {
			return true
		}
	}
	return false
}

func (s *Service) NumericOption(a *command.Actor, keys ...string) (float64, bool) {
	g := s.grants(a.Name())
	for _, key := range keys {
		for _, opts := range g.options {
			if v, ok := opts[key]; ok {
				return v, true
			}
		}
	}
	return 0, false
}

func (s *Service) grants(name string) *grantSet {
	name = strings.ToLower(name)
	s.mu.RLock()
	g, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.cache[name]; ok {
		return g
	}
	g = s.resolve(name)
	s.cache[name] = g
	return g
}

func (s *Service) resolve(name string) *grantSet {
	g := &grantSet{}
	subject, ok := lookupSubject(s.cfg.Subjects, name)
	groups := subject.Groups
	if !ok || len(groups) == 0 {
		if s.cfg.DefaultGroup != "" {
			groups = []string{s.cfg.DefaultGroup}
		}
	}

	g.add(subject.Permissions, subject.Options)
	seen := make(map[string]bool)
	var visit func(group string)
	visit = func(group string) {
		if seen[group] {
			return
		}
		seen[group] = true
		gc, ok := s.cfg.Groups[group]
		if !ok {
			return
		}
		g.add(gc.Permissions, gc.Options)
		for _, parent := range gc.Inherit {
			visit(parent)
		}
	}
	for _, group := range groups {
		visit(group)
	}
	return g
}

func lookupSubject(subjects map[string]config.SubjectConfig, name string) (config.SubjectConfig, bool) {
	if sc, ok := subjects[name]; ok {
		return sc, true
	}
	for k, sc := range subjects {
		if strings.EqualFold(k, name) {
			return sc, true
		}
	}
	return config.SubjectConfig{}, false
}

func (g *grantSet) add(perms []string, options map[string]float64) {
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "-") {
			g.deny = append(g.deny, strings.TrimPrefix(p, "-"))
			continue
		}
		g.allow = append(g.allow, p)
	}
	if len(options) > 0 {
		g.options = append(g.options, options)
	}
}

// Matches reports whether the grant pattern covers permission. "*" covers
// everything and "a.*" covers "a" and anything below it.
func Matches(pattern, permission string) bool {
	pattern = strings.ToLower(pattern)
	permission = strings.ToLower(permission)
	if pattern == "*" || pattern == permission {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return permission == prefix || strings.HasPrefix(permission, prefix+".")
	}
	return false
}
