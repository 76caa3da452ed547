// Package neo4jstore queries an attack graph held in Neo4j.
package neo4jstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
)

// AttackQuery finds program instructions reached by an attack action. Both
// nodes must belong to the queried program.
const AttackQuery = `MATCH (a:AttackGraphNode)-[:EDGE]->(p:ProgramInstruction)
WHERE a.program_name = $program_name
  AND p.program_name = $program_name
  AND a.type = $attack_type
  AND p.instruction CONTAINS $instruction
  AND p.function_name = $function_name
RETURN p.label AS label`

// Config holds the connection parameters.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store is an oracle connector backed by a Neo4j driver.
type Store struct {
	logger   *slog.Logger
	driver   neo4j.DriverWithContext
	database string
}

// Connect creates a driver and verifies the server is reachable.
func Connect(ctx context.Context, logger *slog.Logger, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver for %s: %w", cfg.URI, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j at %s is unreachable: %w", cfg.URI, err)
	}
	logger.Debug("Connected to attack graph", "uri", cfg.URI, "database", cfg.Database)
	return &Store{logger: logger, driver: driver, database: cfg.Database}, nil
}

// Open starts a read session.
func (s *Store) Open(ctx context.Context) (oracle.Session, error) {
	inner := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	return &session{logger: s.logger, inner: inner}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Params builds the parameters of AttackQuery.
func Params(q oracle.Query) map[string]any {
	return map[string]any{
		"program_name":  q.Program,
		"function_name": q.Function,
		"instruction":   q.Instruction,
		"attack_type":   oracle.AttackAction,
	}
}

type session struct {
	logger *slog.Logger
	inner  neo4j.SessionWithContext
}

func (s *session) Query(ctx context.Context, q oracle.Query) (oracle.Result, error) {
	result, err := s.inner.Run(ctx, AttackQuery, Params(q))
	if err != nil {
		return oracle.Result{}, fmt.Errorf("attack graph query failed: %w", err)
	}

	out, err := collect(ctx, result)
	if err != nil {
		return oracle.Result{}, fmt.Errorf("attack graph query failed: %w", err)
	}
	s.logger.Debug("Attack graph query", "function", q.Function, "instruction", q.Instruction, "matches", len(out.Labels))
	return out, nil
}

// rows is the part of neo4j.ResultWithContext collect reads.
type rows interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// collect adds one label per returned row. A row is a match even when the
// instruction node carries no label.
func collect(ctx context.Context, result rows) (oracle.Result, error) {
	var out oracle.Result
	for result.Next(ctx) {
		var label string
		if v, ok := result.Record().Get("label"); ok && v != nil {
			label = fmt.Sprint(v)
		}
		out.Labels = append(out.Labels, label)
	}
	if err := result.Err(); err != nil {
		return oracle.Result{}, err
	}
	return out, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
