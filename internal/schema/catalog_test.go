package schema

import (
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Table() != "transactions" {
		t.Errorf("Table() = %q, want %q", c.Table(), "transactions")
	}
	if len(c.Describe()) == 0 {
		t.Fatal("Describe() returned no entries")
	}
}

func TestDescribe_ReturnsCopy(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	entries := c.Describe()
	entries[0].Name = "mutated"

	if c.Describe()[0].Name == "mutated" {
		t.Error("mutating the Describe() result changed the catalog")
	}
}

func TestDescribe_NoDuplicates(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	seen := make(map[string]bool)
	for _, e := range c.Describe() {
		if seen[e.Name] {
			t.Errorf("duplicate column %q", e.Name)
		}
		seen[e.Name] = true
		switch e.Category {
		case CategoryFinancial, CategoryIdentity, CategoryRisk, CategoryBlockchain, CategoryOperational:
		default:
			t.Errorf("column %q has unknown category %q", e.Name, e.Category)
		}
	}
}

func TestPromptBlock_ContainsEveryColumn(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	block := c.PromptBlock()
	for _, name := range c.ColumnNames() {
		if !strings.Contains(block, name) {
			t.Errorf("prompt block missing column %q", name)
		}
	}

	// Descriptions appear verbatim.
	for _, e := range c.Describe() {
		if !strings.Contains(block, e.Description) {
			t.Errorf("prompt block missing description for %q", e.Name)
		}
	}
}
