package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "attack.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	err := s.Import(ctx, []oracle.Record{
		{Program: "demo", Function: "main.parse", Instruction: "*t4 = 0:byte", Label: "n1"},
		{Program: "demo", Function: "main.parse", Instruction: "t7 = *t6", Label: "n2", AttackType: "Precondition"},
		{Program: "other", Function: "main.parse", Instruction: "t7 = *t6", Label: "n3"},
		{Program: "demo", Function: "main.copy", Instruction: "t2 = *t1 ; line 9", Label: "n4"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	session, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close(ctx)

	tests := []struct {
		name  string
		query oracle.Query
		want  string
	}{
		{"attack action on instruction", oracle.Query{Program: "demo", Function: "main.parse", Instruction: "*t4 = 0:byte"}, "n1"},
		{"substring match", oracle.Query{Program: "demo", Function: "main.copy", Instruction: "t2 = *t1"}, "n4"},
		{"non attack action node", oracle.Query{Program: "demo", Function: "main.parse", Instruction: "t7 = *t6"}, ""},
		{"other program", oracle.Query{Program: "nope", Function: "main.parse", Instruction: "*t4 = 0:byte"}, ""},
		{"other function", oracle.Query{Program: "demo", Function: "main.copy", Instruction: "*t4 = 0:byte"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if tt.want == "" {
				if got.Matched() {
					t.Errorf("Query() = %v, want no match", got.Labels)
				}
				return
			}
			if len(got.Labels) != 1 || got.Labels[0] != tt.want {
				t.Errorf("Query() = %v, want [%s]", got.Labels, tt.want)
			}
		})
	}
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attack.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Import(ctx, []oracle.Record{{Program: "demo", Function: "main.f", Instruction: "t1 = *t0", Label: "n9"}}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close(ctx)
	session, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open() session error = %v", err)
	}
	defer session.Close(ctx)
	got, err := session.Query(ctx, oracle.Query{Program: "demo", Function: "main.f", Instruction: "t1 = *t0"})
	if err != nil || !got.Matched() {
		t.Errorf("Query() after reopen = %v, %v", got, err)
	}
}
