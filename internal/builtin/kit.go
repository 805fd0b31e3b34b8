package builtin

import (
	"strings"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
)

type kitCreate struct{ kits *KitStore }

// PreExecute rejects duplicates before any warmup or charge is applied.
func (e *kitCreate) PreExecute(c *command.Context) (command.Result, bool, error) {
	name, err := command.RequireOne[string](c, "name")
	if err != nil {
		return command.Result{}, false, err
	}
	exists, err := e.kits.Exists(c.Ctx(), c.UniqueID(), name)
	if err != nil {
		return command.Result{}, false, err
	}
	if exists {
		return c.Fail("builtin.kit.exists", name), true, nil
	}
	return command.Result{}, false, nil
}

func (e *kitCreate) Execute(c *command.Context) (command.Result, error) {
	name, err := command.RequireOne[string](c, "name")
	if err != nil {
		return command.Result{}, err
	}
	created, err := e.kits.Create(c.Ctx(), c.UniqueID(), name)
	if err != nil {
		return command.Result{}, err
	}
	if !created {
		return c.Fail("builtin.kit.exists", name), nil
	}
	c.SendMessage("builtin.kit.create.done", name)
	return c.Success(), nil
}

type kitList struct{ kits *KitStore }

func (e *kitList) Execute(c *command.Context) (command.Result, error) {
	names, err := e.kits.List(c.Ctx(), c.UniqueID())
	if err != nil {
		return command.Result{}, err
	}
	if len(names) == 0 {
		c.SendMessage("builtin.kit.list.empty")
		return c.Success(), nil
	}
	c.SendMessage("builtin.kit.list.entries", strings.Join(names, ", "))
	return c.Success(), nil
}

type kitRemove struct{ kits *KitStore }

func (e *kitRemove) Execute(c *command.Context) (command.Result, error) {
	name, err := command.RequireOne[string](c, "name")
	if err != nil {
		return command.Result{}, err
	}
	removed, err := e.kits.Remove(c.Ctx(), c.UniqueID(), name)
	if err != nil {
		return command.Result{}, err
	}
	if !removed {
		return command.Result{}, c.Error("builtin.kit.missing", name)
	}
	c.SendMessage("builtin.kit.remove.done", name)
	return c.Success(), nil
}

func (b *builder) kit() (*command.Node, error) {
	kit := b.node(command.Metadata{
		Key:            "kit",
		Aliases:        []string{"kit", "kits"},
		Permissions:    []string{"cmdgate.kit"},
		DescriptionKey: "builtin.kit.description",
	}, nil)
	if kit == nil {
		return nil, nil
	}

	kits := b.deps.Kits
	children := []*command.Node{
		b.node(command.Metadata{
			Key:         "kit.create",
			Aliases:     []string{"create", "new"},
			Permissions: []string{"cmdgate.kit.create"},
			Modifiers: []command.ModifierSpec{
				{Modifier: b.cooldown, ExemptPermission: "cmdgate.kit.create.nocooldown"},
				{Modifier: b.cost, ExemptPermission: "cmdgate.kit.create.free"},
			},
			Parameters:     []args.Element{args.String("name")},
			DescriptionKey: "builtin.kit.create.description",
		}, &kitCreate{kits: kits}),
		b.node(command.Metadata{
			Key:            "kit.list",
			Aliases:        []string{"list", "ls"},
			Permissions:    []string{"cmdgate.kit.list"},
			DescriptionKey: "builtin.kit.list.description",
		}, &kitList{kits: kits}),
		b.node(command.Metadata{
			Key:            "kit.remove",
			Aliases:        []string{"remove", "rm"},
			Permissions:    []string{"cmdgate.kit.remove"},
			Parameters:     []args.Element{args.String("name")},
			DescriptionKey: "builtin.kit.remove.description",
		}, &kitRemove{kits: kits}),
	}
	for _, child := range children {
		if child == nil {
			continue
		}
		if err := kit.AttachChild(child); err != nil {
			return nil, err
		}
	}
	return kit, nil
}
