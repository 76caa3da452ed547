package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/smith-xyz/golang-check-elider/pkg/models"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
)

type stubResolver struct {
	sites map[string]*models.MemoryAccessSite
	calls int
}

func (r *stubResolver) Resolve(check models.Check) (*models.MemoryAccessSite, bool) {
	r.calls++
	site, ok := r.sites[check.ID]
	return site, ok
}

func site(fn, instr string, origin models.Origin) *models.MemoryAccessSite {
	return &models.MemoryAccessSite{Function: fn, Instruction: instr, Origin: origin}
}

// unreachableOracle stands in for an attack graph server that drops every
// query.
type unreachableOracle struct{}

func (unreachableOracle) Open(context.Context) (oracle.Session, error) {
	return unreachableOracle{}, nil
}

func (unreachableOracle) Query(context.Context, oracle.Query) (oracle.Result, error) {
	return oracle.Result{}, errors.New("connection reset")
}

func (unreachableOracle) Close(context.Context) error { return nil }

func newClassifier(r SiteResolver, c oracle.Connector) *Classifier {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), "demo", r, c, 0)
}

func TestClassify(t *testing.T) {
	resolver := &stubResolver{sites: map[string]*models.MemoryAccessSite{
		"stack":    site("main.f", "t1 = *t0", models.OriginStack),
		"exploit":  site("main.f", "*t5 = 0:int", models.OriginStack),
		"heap":     site("main.f", "t3 = *t2", models.OriginHeap),
		"global":   site("main.f", "t9 = *t8", models.OriginGlobal),
		"unknown":  site("main.f", "t7 = *t6", models.OriginUnresolved),
		"heap-hit": site("main.f", "*t5 = 0:int", models.OriginHeap),
	}}
	attackGraph := oracle.NewStatic([]oracle.Record{
		{Program: "demo", Function: "main.f", Instruction: "*t5 = 0:int", Label: "n1"},
	})

	tests := []struct {
		check   string
		verdict models.Verdict
		reason  string
	}{
		{"stack", models.Safe, models.ReasonNoExploit},
		{"exploit", models.Unsafe, models.ReasonExploitRecord},
		{"heap", models.Unsafe, models.ReasonNotStack},
		{"global", models.Unsafe, models.ReasonNotStack},
		{"unknown", models.Unsafe, models.ReasonNotStack},
		{"heap-hit", models.Unsafe, models.ReasonNotStack},
		{"no-site", models.Unsafe, models.ReasonNoSite},
	}

	ctx := context.Background()
	c := newClassifier(resolver, attackGraph)
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer c.End(ctx)

	for _, tt := range tests {
		t.Run(tt.check, func(t *testing.T) {
			got, err := c.Classify(ctx, models.Check{ID: tt.check})
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Verdict != tt.verdict || got.Reason != tt.reason {
				t.Errorf("Classify() = %v (%s), want %v (%s)", got.Verdict, got.Reason, tt.verdict, tt.reason)
			}
		})
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	resolver := &stubResolver{sites: map[string]*models.MemoryAccessSite{
		"a": site("main.f", "t1 = *t0", models.OriginStack),
	}}
	c := newClassifier(resolver, oracle.NewStatic(nil))
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer c.End(ctx)

	first, err := c.Classify(ctx, models.Check{ID: "a"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := c.Classify(ctx, models.Check{ID: "a"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if first.Verdict != second.Verdict || first.Reason != second.Reason {
		t.Errorf("verdicts differ: %+v then %+v", first, second)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}

	// A fresh classifier over the same oracle state agrees.
	fresh := newClassifier(resolver, oracle.NewStatic(nil))
	_ = fresh.Begin(ctx)
	defer fresh.End(ctx)
	again, err := fresh.Classify(ctx, models.Check{ID: "a"})
	if err != nil || again.Verdict != first.Verdict {
		t.Errorf("fresh Classify() = %v, %v, want %v", again.Verdict, err, first.Verdict)
	}
}

func TestClassifyOracleFailure(t *testing.T) {
	ctx := context.Background()
	resolver := &stubResolver{sites: map[string]*models.MemoryAccessSite{
		"a": site("main.f", "t1 = *t0", models.OriginStack),
		"b": site("main.f", "t1 = *t0", models.OriginHeap),
	}}
	c := newClassifier(resolver, unreachableOracle{})
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer c.End(ctx)

	if _, err := c.Classify(ctx, models.Check{ID: "a"}); !errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("Classify() error = %v, want ErrOracleUnavailable", err)
	}
	// Failures are not cached as verdicts.
	if _, ok := c.cache["a"]; ok {
		t.Error("failed classification was cached")
	}
	// Checks decided before the oracle is consulted still classify.
	if got, err := c.Classify(ctx, models.Check{ID: "b"}); err != nil || got.Verdict != models.Unsafe {
		t.Errorf("Classify(heap) = %v, %v", got.Verdict, err)
	}
}

func TestClassifyWithoutSession(t *testing.T) {
	resolver := &stubResolver{sites: map[string]*models.MemoryAccessSite{
		"a": site("main.f", "t1 = *t0", models.OriginStack),
	}}
	c := newClassifier(resolver, oracle.NewStatic(nil))
	if _, err := c.Classify(context.Background(), models.Check{ID: "a"}); !errors.Is(err, ErrNoSession) {
		t.Errorf("Classify() before Begin error = %v, want ErrNoSession", err)
	}
}

func TestBeginFailsWhenOracleClosed(t *testing.T) {
	ctx := context.Background()
	o := oracle.NewStatic(nil)
	_ = o.Close(ctx)
	c := newClassifier(&stubResolver{}, o)
	if err := c.Begin(ctx); !errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("Begin() error = %v, want ErrOracleUnavailable", err)
	}
	if err := c.End(ctx); err != nil {
		t.Errorf("End() without session error = %v", err)
	}
}

func TestClassifyDisabled(t *testing.T) {
	resolver := &stubResolver{sites: map[string]*models.MemoryAccessSite{
		"a": site("main.f", "t1 = *t0", models.OriginStack),
	}}
	c := newClassifier(resolver, nil)
	if c.Enabled() {
		t.Fatal("Enabled() = true without a connector")
	}
	ctx := context.Background()
	if err := c.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	got, err := c.Classify(ctx, models.Check{ID: "a"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Verdict != models.Unsafe || got.Reason != models.ReasonDisabled {
		t.Errorf("Classify() = %+v, want Unsafe (disabled)", got)
	}
}
