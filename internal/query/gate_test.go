package query

import (
	"errors"
	"strings"
	"testing"
)

func TestGate_AcceptsReadOnlyStatements(t *testing.T) {
	g := NewGate(1000)

	tests := []struct {
		name string
		stmt string
	}{
		{"simple select", "SELECT * FROM transactions LIMIT 10"},
		{"trailing semicolon", "SELECT transaction_id FROM transactions LIMIT 5;"},
		{"with cte", "WITH latest AS (SELECT * FROM transactions LIMIT 50) SELECT * FROM latest LIMIT 50"},
		{"aggregate", "SELECT error_code, COUNT(*) FROM transactions GROUP BY error_code ORDER BY 2 DESC LIMIT 10"},
		{"keyword inside string literal", "SELECT * FROM transactions WHERE error_message = 'failed to update ledger' LIMIT 10"},
		{"escaped quote in literal", "SELECT * FROM transactions WHERE provider = 'o''neill' LIMIT 1"},
		{"semicolon inside literal", "SELECT * FROM transactions WHERE alert_description = 'a;b' LIMIT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Check(tt.stmt); err != nil {
				t.Errorf("Check(%q) = %v, want nil", tt.stmt, err)
			}
		})
	}
}

func TestGate_RejectsUnsafeStatements(t *testing.T) {
	g := NewGate(1000)

	tests := []struct {
		name string
		stmt string
	}{
		{"empty", ""},
		{"whitespace only", "   ;  "},
		{"delete", "DELETE FROM transactions WHERE transaction_id = 'tx_1'"},
		{"update", "UPDATE transactions SET tx_status = 'confirmed'"},
		{"insert", "INSERT INTO transactions (transaction_id) VALUES ('tx_1')"},
		{"drop", "DROP TABLE transactions"},
		{"truncate", "TRUNCATE transactions"},
		{"create", "CREATE TABLE evil (id int)"},
		{"lowercase mutation", "delete from transactions"},
		{"statement smuggling", "SELECT 1; DELETE FROM transactions"},
		{"smuggling after limit", "SELECT * FROM transactions LIMIT 1; DROP TABLE transactions"},
		{"line comment", "SELECT * FROM transactions -- LIMIT 1\n"},
		{"block comment", "SELECT /* hidden */ * FROM transactions"},
		{"select into", "SELECT * INTO copy_table FROM transactions"},
		{"select for update", "SELECT * FROM transactions FOR UPDATE"},
		{"explain", "EXPLAIN SELECT * FROM transactions"},
		{"set session", "SET search_path TO public"},
		{"copy out", "COPY transactions TO '/tmp/out.csv'"},
		{"dollar quoting", "SELECT $$delete from transactions$$"},
		{"unterminated literal", "SELECT * FROM transactions WHERE provider = 'oops"},
		{"function call statement", "CALL refresh_everything()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Check(tt.stmt)
			var unsafeErr *UnsafeStatementError
			if !errors.As(err, &unsafeErr) {
				t.Errorf("Check(%q) = %v, want *UnsafeStatementError", tt.stmt, err)
			}
		})
	}
}

func TestGate_InjectsLimit(t *testing.T) {
	g := NewGate(250)

	got, err := g.Check("SELECT * FROM transactions ORDER BY timestamp::timestamptz DESC")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !strings.HasSuffix(got, "LIMIT 250") {
		t.Errorf("Check() = %q, want LIMIT 250 suffix", got)
	}
}

func TestGate_PreservesExistingLimit(t *testing.T) {
	g := NewGate(250)

	stmt := "SELECT * FROM transactions LIMIT 10"
	got, err := g.Check(stmt)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if got != stmt {
		t.Errorf("Check() = %q, want unchanged %q", got, stmt)
	}
	if strings.Count(strings.ToUpper(got), "LIMIT") != 1 {
		t.Errorf("Check() duplicated LIMIT: %q", got)
	}
}
