package job

import (
	"context"
	"fmt"

	"reportharness/internal/engine"
	"reportharness/pkg/logging"

	"github.com/sourcegraph/conc/pool"
)

// SelectionCounter answers cardinality queries against the engine.
// *engine.Client implements it.
type SelectionCounter interface {
	Count(ctx context.Context, q engine.CountQuery) (int, error)
}

// ExpectedCount returns how many reports desc should produce. Reports are
// counted concurrently; a report that cannot be counted contributes 1.
func ExpectedCount(ctx context.Context, desc *Description, counter SelectionCounter, log logging.Logger) int {
	p := pool.NewWithResults[int]()
	for _, task := range desc.Tasks {
		for _, report := range task.Reports {
			p.Go(func() int {
				n, err := reportCount(ctx, task, report, counter)
				if err != nil {
					log.Warn("Counting report %q failed, assuming 1: %v", report.Name, err)
					return 1
				}
				return n
			})
		}
	}

	total := 0
	for _, n := range p.Wait() {
		total += n
	}
	return total
}

// reportCount returns 1 unless the report has a dynamic selection with
// explicit values, in which case the engine decides.
func reportCount(ctx context.Context, task Task, report Report, counter SelectionCounter) (int, error) {
	dyn, ok := report.dynamic()
	if !ok || len(dyn.Values) == 0 {
		return 1, nil
	}
	if counter == nil {
		return 0, fmt.Errorf("no engine available for dynamic selection %s", dyn.Name)
	}
	app := report.app(task)
	if app == "" {
		return 0, fmt.Errorf("report has no app connection")
	}

	q := engine.CountQuery{App: app, Field: dyn.Name, Values: dyn.Values}
	for _, s := range report.Template.Selections {
		if s.Type == SelectionStatic {
			q.Static = append(q.Static, engine.FieldSelection{Field: s.Name, Values: s.Values})
		}
	}
	return counter.Count(ctx, q)
}
