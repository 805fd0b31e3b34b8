package builtin

import (
	"github.com/google/uuid"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/events"
)

// report runs on a background worker.
type report struct{ hub *events.Hub }

func (e *report) Execute(c *command.Context) (command.Result, error) {
	text, err := command.RequireOne[string](c, "text")
	if err != nil {
		return command.Result{}, err
	}
	id := uuid.NewString()[:8]
	if e.hub != nil {
		e.hub.Publish(events.ReportFiled, map[string]any{
			"id":            id,
			"invocation_id": c.InvocationID(),
			"actor":         c.Actor().Name(),
			"text":          text,
		})
	}
	c.Logger().Info("Report filed", "report_id", id)
	c.SendMessage("builtin.report.done", id)
	return c.Success(), nil
}

func (b *builder) report() *command.Node {
	return b.node(command.Metadata{
		Key:            "report",
		Aliases:        []string{"report"},
		Permissions:    []string{"cmdgate.report"},
		Async:          true,
		Parameters:     []args.Element{args.Remaining("text")},
		DescriptionKey: "builtin.report.description",
	}, &report{hub: b.deps.Events})
}
