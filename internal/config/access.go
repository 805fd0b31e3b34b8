package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value using a dot-notation path such as
// "api.listen". A "type:name" prefix addresses one entry of the command,
// group or subject maps, e.g. "command:kit.create" or "group:vip.options".
func (c *Config) GetPath(path string) (any, error) {
	if strings.Contains(path, ":") {
		return c.getEntity(path)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return getValue(m, path)
}

func (c *Config) getEntity(address string) (any, error) {
	entityType, rest, _ := strings.Cut(address, ":")

	var (
		entity any
		field  string
		ok     bool
	)
	switch entityType {
	case "command":
		// Command keys are dotted themselves; match the longest known key.
		key := rest
		for {
			if entity, ok = c.Commands[key]; ok {
				field = strings.TrimPrefix(strings.TrimPrefix(rest, key), ".")
				break
			}
			i := strings.LastIndex(key, ".")
			if i < 0 {
				return nil, fmt.Errorf("command %q not configured", rest)
			}
			key = key[:i]
		}
	case "group":
		name, f, _ := strings.Cut(rest, ".")
		if entity, ok = c.Permissions.Groups[name]; !ok {
			return nil, fmt.Errorf("group %q not found", name)
		}
		field = f
	case "subject":
		name, f, _ := strings.Cut(rest, ".")
		if entity, ok = c.Permissions.Subjects[name]; !ok {
			return nil, fmt.Errorf("subject %q not found", name)
		}
		field = f
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}

	if field == "" {
		return entity, nil
	}
	data, err := yaml.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", entityType, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", entityType, err)
	}
	return getValue(m, field)
}

func getValue(m map[string]any, path string) (any, error) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}
		val, exists := node[part]
		if !exists {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
		current = val
	}
	return current, nil
}

// SetPath rewrites one scalar in the YAML file at file, creating missing
// mapping keys on the way. The edited file must still load; otherwise the
// original content is restored and the validation error returned.
func SetPath(file, path, value string) error {
	original, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(original, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}

	target, err := findNode(root.Content[0], splitPath(path), true)
	if err != nil {
		return fmt.Errorf("failed to navigate/create path %q: %w", path, err)
	}
	target.Kind = yaml.ScalarNode
	target.Value = value
	target.Tag = guessTag(value)
	target.Content = nil

	candidate, err := yaml.Marshal(&root)
	if err != nil {
		return err
	}
	return persistWithValidation(file, original, candidate)
}

// splitPath splits a dotted path into mapping keys. Command keys and option
// names are dotted themselves, so "commands.kit.create.cost" yields
// [commands kit.create cost] and everything after "options" is one key.
func splitPath(path string) []string {
	parts := strings.Split(path, ".")
	if len(parts) > 3 && parts[0] == "commands" {
		last := len(parts) - 1
		return []string{"commands", strings.Join(parts[1:last], "."), parts[last]}
	}
	for i, p := range parts {
		if p == "options" && i+2 < len(parts) {
			return append(parts[:i+1:i+1], strings.Join(parts[i+1:], "."))
		}
	}
	return parts
}

// findNode walks parts through mapping nodes. An existing dotted key that
// spans several parts wins over a shorter one.
func findNode(node *yaml.Node, parts []string, create bool) (*yaml.Node, error) {
	current := node
	for len(parts) > 0 {
		if current.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%q is not a mapping", parts[0])
		}

		var next *yaml.Node
		used := 1
		for i := 0; i+1 < len(current.Content); i += 2 {
			key := current.Content[i].Value
			for n := len(parts); n >= used; n-- {
				if key == strings.Join(parts[:n], ".") {
					next, used = current.Content[i+1], n
					break
				}
			}
		}
		if next == nil {
			if !create {
				return nil, fmt.Errorf("key %q not found", parts[0])
			}
			// The last part is overwritten with the scalar anyway.
			next = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			current.Content = append(current.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: parts[0]},
				next,
			)
		}
		current = next
		parts = parts[used:]
	}
	return current, nil
}

func guessTag(v string) string {
	if v == "true" || v == "false" {
		return "!!bool"
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return "!!int"
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil && strings.ContainsAny(v, ".eE") {
		return "!!float"
	}
	return "!!str"
}

func persistWithValidation(file string, original, candidate []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(file); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.WriteFile(file, candidate, mode); err != nil {
		return fmt.Errorf("failed to persist config change: %w", err)
	}
	if _, err := Load(file); err != nil {
		if restoreErr := os.WriteFile(file, original, mode); restoreErr != nil {
			return fmt.Errorf("validation failed (%v) and rollback failed (%v)", err, restoreErr)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
