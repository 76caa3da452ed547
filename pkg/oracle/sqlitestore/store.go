// Package sqlitestore keeps an attack graph in an embedded SQLite database
// and serves it as an exploitability oracle.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smith-xyz/golang-check-elider/pkg/oracle"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS attack_nodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	program_name TEXT NOT NULL,
	type TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS program_instructions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	program_name TEXT NOT NULL,
	function_name TEXT NOT NULL,
	instruction TEXT NOT NULL,
	label TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS edges (
	attack_id INTEGER NOT NULL REFERENCES attack_nodes(id),
	instruction_id INTEGER NOT NULL REFERENCES program_instructions(id)
)`, `
CREATE INDEX IF NOT EXISTS idx_instructions_lookup
	ON program_instructions (program_name, function_name)`,
}

const attackQuery = `
SELECT p.label
FROM edges e
JOIN attack_nodes a ON a.id = e.attack_id
JOIN program_instructions p ON p.id = e.instruction_id
WHERE a.program_name = ?
  AND p.program_name = ?
  AND a.type = ?
  AND p.function_name = ?
  AND instr(p.instruction, ?) > 0
ORDER BY p.id
`

// Store is an attack graph backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to init attack graph schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

// Import inserts every record in a single transaction.
func (s *Store) Import(ctx context.Context, records []oracle.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, r := range records {
		if err := addRecord(ctx, tx, r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attack graph import: %w", err)
	}
	return nil
}

func addRecord(ctx context.Context, tx *sql.Tx, r oracle.Record) error {
	attackType := r.AttackType
	if attackType == "" {
		attackType = oracle.AttackAction
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO attack_nodes (program_name, type) VALUES (?, ?)`, r.Program, attackType)
	if err != nil {
		return fmt.Errorf("failed to insert attack node: %w", err)
	}
	attackID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO program_instructions (program_name, function_name, instruction, label) VALUES (?, ?, ?, ?)`,
		r.Program, r.Function, r.Instruction, r.Label)
	if err != nil {
		return fmt.Errorf("failed to insert program instruction: %w", err)
	}
	instrID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO edges (attack_id, instruction_id) VALUES (?, ?)`, attackID, instrID); err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// Open reserves a connection for one classification batch.
func (s *Store) Open(ctx context.Context) (oracle.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sqlite connection: %w", err)
	}
	return &session{conn: conn}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

type session struct {
	conn *sql.Conn
}

func (s *session) Query(ctx context.Context, q oracle.Query) (oracle.Result, error) {
	rows, err := s.conn.QueryContext(ctx, attackQuery, q.Program, q.Program, oracle.AttackAction, q.Function, q.Instruction)
	if err != nil {
		return oracle.Result{}, fmt.Errorf("attack graph query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result oracle.Result
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return oracle.Result{}, err
		}
		result.Labels = append(result.Labels, label)
	}
	if err := rows.Err(); err != nil {
		return oracle.Result{}, err
	}
	return result, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.conn.Close()
}
