package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/archdiagram/pkg/model"
	"github.com/matzehuels/archdiagram/pkg/observability"
	"github.com/matzehuels/archdiagram/pkg/project"
)

// Parse decodes an architecture document. source only labels the hooks.
func Parse(ctx context.Context, data []byte, source string) (*model.ArchitectureModel, error) {
	hooks := observability.Pipeline()
	hooks.OnParseStart(ctx, source)
	start := time.Now()

	m, err := model.Parse(data)
	if err != nil {
		hooks.OnParseComplete(ctx, source, 0, time.Since(start), err)
		return nil, err
	}
	hooks.OnParseComplete(ctx, source, m.ResourceCount(), time.Since(start), nil)
	return m, nil
}

// Project builds the generic graph for m.
func Project(ctx context.Context, m *model.ArchitectureModel, opts Options) (project.Result, error) {
	po, err := opts.ProjectOptions()
	if err != nil {
		return project.Result{}, err
	}
	start := time.Now()
	res := project.Project(m, po)
	observability.Pipeline().OnProject(ctx, res.Perspective, len(res.Graph.Children),
		len(res.Graph.Edges), len(res.Dropped), time.Since(start))
	return res, nil
}
