// Package classifier decides whether removing a check is provably safe: the
// guarded access must be stack-local and absent from the attack graph.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smith-xyz/golang-check-elider/pkg/models"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
)

var (
	ErrOracleUnavailable = errors.New("exploitability oracle unavailable")
	ErrNoSession         = errors.New("classification batch not started")
)

// SiteResolver finds the memory access guarded by a check.
type SiteResolver interface {
	Resolve(check models.Check) (*models.MemoryAccessSite, bool)
}

// Classifier produces one verdict per check and caches it for the run.
// A nil connector disables oracle queries and classifies every check Unsafe.
type Classifier struct {
	logger    *slog.Logger
	programID string
	resolver  SiteResolver
	connector oracle.Connector
	timeout   time.Duration

	session oracle.Session
	cache   map[string]models.Classification
}

// New creates a classifier for one program.
func New(logger *slog.Logger, programID string, resolver SiteResolver, connector oracle.Connector, timeout time.Duration) *Classifier {
	return &Classifier{
		logger:    logger,
		programID: programID,
		resolver:  resolver,
		connector: connector,
		timeout:   timeout,
		cache:     make(map[string]models.Classification),
	}
}

// Enabled reports whether the classifier consults an oracle.
func (c *Classifier) Enabled() bool {
	return c.connector != nil
}

// Begin opens the oracle session for a batch of classifications.
func (c *Classifier) Begin(ctx context.Context) error {
	if c.connector == nil || c.session != nil {
		return nil
	}
	session, err := c.connector.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	c.session = session
	return nil
}

// End releases the oracle session. It is safe to call more than once.
func (c *Classifier) End(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close(ctx)
	c.session = nil
	return err
}

// Classify returns the verdict for check, computing it at most once.
func (c *Classifier) Classify(ctx context.Context, check models.Check) (models.Classification, error) {
	if cached, ok := c.cache[check.ID]; ok {
		return cached, nil
	}
	result, err := c.classify(ctx, check)
	if err != nil {
		return models.Classification{}, err
	}
	c.cache[check.ID] = result
	c.logger.Debug("Classified check", "check", check.ID, "verdict", result.Verdict.String(), "reason", result.Reason)
	return result, nil
}

func (c *Classifier) classify(ctx context.Context, check models.Check) (models.Classification, error) {
	if c.connector == nil {
		return models.Classification{Verdict: models.Unsafe, Reason: models.ReasonDisabled}, nil
	}

	site, ok := c.resolver.Resolve(check)
	if !ok {
		return models.Classification{Verdict: models.Unsafe, Reason: models.ReasonNoSite}, nil
	}
	if !site.Origin.IsStackLocal() {
		return models.Classification{Verdict: models.Unsafe, Site: site, Reason: models.ReasonNotStack}, nil
	}

	if c.session == nil {
		return models.Classification{}, ErrNoSession
	}
	qctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	result, err := c.session.Query(qctx, oracle.Query{
		Program:     c.programID,
		Function:    site.Function,
		Instruction: site.Instruction,
	})
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: check %s: %v", ErrOracleUnavailable, check.ID, err)
	}

	if result.Matched() {
		return models.Classification{Verdict: models.Unsafe, Site: site, Reason: models.ReasonExploitRecord, Matches: result.Labels}, nil
	}
	return models.Classification{Verdict: models.Safe, Site: site, Reason: models.ReasonNoExploit}, nil
}
