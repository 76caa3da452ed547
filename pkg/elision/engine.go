// Package elision removes runtime checks from a program: every check proven
// safe, then the costliest remaining checks the budget allows.
package elision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smith-xyz/golang-check-elider/pkg/analysis/resolver"
	"github.com/smith-xyz/golang-check-elider/pkg/budget"
	"github.com/smith-xyz/golang-check-elider/pkg/cost"
	"github.com/smith-xyz/golang-check-elider/pkg/ir"
	"github.com/smith-xyz/golang-check-elider/pkg/models"
)

// Classifier produces cached verdicts within a Begin/End batch.
type Classifier interface {
	Begin(ctx context.Context) error
	End(ctx context.Context) error
	Classify(ctx context.Context, check models.Check) (models.Classification, error)
}

// Engine runs elision over one program. It is not safe for concurrent use;
// independent programs get independent engines.
type Engine struct {
	logger     *slog.Logger
	graph      ir.Graph
	policy     *budget.Policy
	classifier Classifier
}

// New creates an engine.
func New(logger *slog.Logger, g ir.Graph, policy *budget.Policy, classifier Classifier) *Engine {
	return &Engine{logger: logger, graph: g, policy: policy, classifier: classifier}
}

// Run ranks the checks, simulates the budget alone, then classifies and
// rewires. Branches are only rewritten once every check has been decided;
// a failed run leaves the program untouched and returns no outcome.
func (e *Engine) Run(ctx context.Context, entries []models.CostEntry) (*models.ElisionOutcome, error) {
	catalog := cost.NewCatalog(entries)
	ranked := catalog.Rank()

	outcome := &models.ElisionOutcome{
		ProgramID:   e.graph.ProgramID(),
		TotalChecks: catalog.TotalCount(),
		TotalCost:   catalog.TotalCost(),
		States:      make(map[string]models.CheckState, len(ranked)),
	}
	for _, entry := range ranked {
		outcome.States[entry.Check.ID] = models.StateKept
		if _, ok := e.rewirable(entry.Check); !ok {
			outcome.Ineligible++
		}
	}

	outcome.Simulated = e.simulate(ranked, catalog)
	e.logger.Debug("Simulation finished", "program", outcome.ProgramID, "budget", e.policy.String(),
		"checks", outcome.Simulated.Checks, "cost", outcome.Simulated.Cost)

	drops, err := e.plan(ctx, ranked, catalog, outcome)
	if err != nil {
		return nil, err
	}

	for _, d := range drops {
		if err := e.graph.SetCondition(d.Check.Branch, d.RegularBranch == 0); err != nil {
			return nil, fmt.Errorf("failed to rewire check %s: %w", d.Check.ID, err)
		}
		outcome.States[d.Check.ID] = models.StateRewired
	}
	outcome.RemovedChecks = drops
	outcome.Removed = outcome.SafeRemoved.Merge(outcome.UnsafeRemoved)
	return outcome, nil
}

// simulate counts what the budget alone would remove. It does not classify
// or mutate anything.
func (e *Engine) simulate(ranked []models.CostEntry, catalog *cost.Catalog) models.Counter {
	var sim models.Counter
	for i, entry := range ranked {
		if e.policy.ShouldStop(e.state(i, sim, entry, catalog)) {
			break
		}
		if _, ok := e.rewirable(entry.Check); ok {
			sim.Add(entry.Cost)
		}
	}
	return sim
}

// plan decides the terminal state of every check. Safe checks are dropped
// regardless of the budget; Unsafe checks are dropped until the budget,
// evaluated over Unsafe removals only, says stop.
func (e *Engine) plan(ctx context.Context, ranked []models.CostEntry, catalog *cost.Catalog, outcome *models.ElisionOutcome) (drops []models.RemovedCheck, err error) {
	if err := e.classifier.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if endErr := e.classifier.End(ctx); endErr != nil && err == nil {
			drops, err = nil, fmt.Errorf("failed to release oracle session: %w", endErr)
		}
	}()

	for i, entry := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		class, err := e.classifier.Classify(ctx, entry.Check)
		if err != nil {
			return nil, fmt.Errorf("failed to classify check %s: %w", entry.Check.ID, err)
		}

		if class.Verdict == models.Unsafe &&
			e.policy.ShouldStop(e.state(i, outcome.UnsafeRemoved, entry, catalog)) {
			e.logger.Debug("Budget exhausted", "position", i, "next_cost", entry.Cost)
			break
		}

		regular, ok := e.rewirable(entry.Check)
		if !ok {
			e.logger.Info("Check left intact: no unique regular branch", "check", entry.Check.ID,
				"location", entry.Check.Location.String())
			continue
		}

		if class.Verdict == models.Safe {
			outcome.SafeRemoved.Add(entry.Cost)
		} else {
			outcome.UnsafeRemoved.Add(entry.Cost)
		}
		drops = append(drops, models.RemovedCheck{
			Check:         entry.Check,
			Cost:          entry.Cost,
			Verdict:       class.Verdict,
			RegularBranch: regular,
		})
	}
	return drops, nil
}

func (e *Engine) state(i int, removed models.Counter, entry models.CostEntry, catalog *cost.Catalog) budget.State {
	return budget.State{
		Position:   i,
		Count:      removed.Checks,
		Cost:       removed.Cost,
		NextCost:   entry.Cost,
		TotalCount: catalog.TotalCount(),
		TotalCost:  catalog.TotalCost(),
	}
}

// rewirable returns the regular successor index of a check whose branch
// condition can be replaced.
func (e *Engine) rewirable(check models.Check) (int, bool) {
	regular, ok := resolver.RegularSuccessor(e.graph, check.Branch)
	if !ok {
		return -1, false
	}
	if v := e.graph.Value(check.Branch); len(v.Operands) == 0 {
		return -1, false
	}
	return regular, true
}
