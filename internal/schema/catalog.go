// Package schema describes the queryable transaction dataset.
//
// The catalog is the single source of truth for which columns exist in
// the transactions table and what they mean. Its entries are rendered
// verbatim into generation prompts so the language model only references
// real columns. The catalog is immutable after Load and is shared
// read-only by all concurrent pipeline runs.
package schema

import (
	"fmt"
	"strings"
)

// Category classifies a column by its domain semantics.
type Category string

const (
	CategoryFinancial   Category = "financial"
	CategoryIdentity    Category = "identity"
	CategoryRisk        Category = "risk"
	CategoryBlockchain  Category = "blockchain"
	CategoryOperational Category = "operational"
)

// Entry describes one column of the transactions table.
type Entry struct {
	Name        string
	Category    Category
	Description string
}

// Catalog is the immutable column catalog for the transactions table.
type Catalog struct {
	table       string
	entries     []Entry
	promptBlock string
}

// TableName is the transactional table every generated statement reads.
const TableName = "transactions"

// Load builds the catalog from the fixed column definition. Construction
// failure (duplicate or empty column names) is fatal at startup, not a
// per-request condition.
func Load() (*Catalog, error) {
	entries := columnDefinitions()

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Description == "" {
			return nil, fmt.Errorf("schema catalog: column with empty name or description")
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("schema catalog: duplicate column %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}

	c := &Catalog{table: TableName, entries: entries}
	c.promptBlock = renderPromptBlock(entries)
	return c, nil
}

// Describe returns the ordered column entries. The returned slice is a
// copy; the catalog itself never changes after Load.
func (c *Catalog) Describe() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Table returns the table name generated statements must target.
func (c *Catalog) Table() string {
	return c.table
}

// ColumnNames returns the ordered column names.
func (c *Catalog) ColumnNames() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// PromptBlock returns the catalog rendered for embedding into a
// generation prompt: one "name (category): description" line per column.
func (c *Catalog) PromptBlock() string {
	return c.promptBlock
}

func renderPromptBlock(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.Name, e.Category, e.Description)
	}
	return b.String()
}

// columnDefinitions lists every column of the transactions table with the
// short description used verbatim in generation prompts.
func columnDefinitions() []Entry {
	return []Entry{
		{"account_id", CategoryIdentity, "string - Unique identifier for the account"},
		{"affected_service", CategoryOperational, "string - Service affected by the transaction"},
		{"alert_description", CategoryOperational, "string - Description of any alerts"},
		{"aml_risk_score", CategoryRisk, "numeric - Anti-money laundering risk score"},
		{"auto_retry_enabled", CategoryOperational, "boolean - Whether auto retry is enabled"},
		{"balance_after", CategoryFinancial, "numeric - Account balance after transaction"},
		{"balance_before", CategoryFinancial, "numeric - Account balance before transaction"},
		{"block_hash", CategoryBlockchain, "string - Blockchain block hash"},
		{"block_number", CategoryBlockchain, "integer - Blockchain block number"},
		{"bridge_fee_bps", CategoryFinancial, "numeric - Bridge fee in basis points"},
		{"bridge_protocol", CategoryBlockchain, "string - Bridge protocol used"},
		{"confirmations", CategoryBlockchain, "integer - Number of confirmations"},
		{"credit_amount", CategoryFinancial, "numeric - Amount credited"},
		{"crypto_amount", CategoryFinancial, "numeric - Amount in cryptocurrency"},
		{"crypto_token", CategoryFinancial, "string - Type of cryptocurrency token"},
		{"debit_amount", CategoryFinancial, "numeric - Amount debited"},
		{"defi_protocol", CategoryBlockchain, "string - DeFi protocol used"},
		{"dest_chain_id", CategoryBlockchain, "integer - Destination chain ID"},
		{"document_types", CategoryIdentity, "string - Types of documents involved"},
		{"error_code", CategoryOperational, "string - Error code if any"},
		{"error_message", CategoryOperational, "string - Error message if any"},
		{"estimated_impact", CategoryOperational, "string - Estimated impact of the transaction"},
		{"event_index", CategoryOperational, "integer - Index of the event"},
		{"event_type", CategoryOperational, "string - Type of event (e.g., PaymentInitiated, SettlementConfirmed)"},
		{"exchange_rate", CategoryFinancial, "numeric - Exchange rate used"},
		{"fiat_amount", CategoryFinancial, "numeric - Amount in fiat currency"},
		{"fiat_currency", CategoryFinancial, "string - Type of fiat currency (e.g., USD, GBP)"},
		{"flow_type", CategoryOperational, "string - Type of flow (e.g., crypto_to_fiat_success)"},
		{"from_address", CategoryBlockchain, "string - Source address"},
		{"from_network", CategoryBlockchain, "string - Source network"},
		{"gas_cost_native", CategoryBlockchain, "numeric - Gas cost in native currency"},
		{"gas_price_gwei", CategoryBlockchain, "numeric - Gas price in Gwei"},
		{"gas_used", CategoryBlockchain, "integer - Amount of gas used"},
		{"incident_id", CategoryOperational, "string - Incident identifier"},
		{"kyc_provider", CategoryIdentity, "string - KYC provider"},
		{"kyc_session_id", CategoryIdentity, "string - KYC session identifier"},
		{"kyc_status", CategoryIdentity, "string - KYC status (e.g., verified)"},
		{"ledger_entry_id", CategoryFinancial, "string - Ledger entry identifier"},
		{"ledger_entry_type", CategoryFinancial, "string - Type of ledger entry"},
		{"ledger_reference", CategoryFinancial, "string - Ledger reference"},
		{"lp_fee_bps", CategoryFinancial, "numeric - Liquidity provider fee in basis points"},
		{"merkle_root", CategoryBlockchain, "string - Merkle root hash"},
		{"min_received", CategoryFinancial, "numeric - Minimum amount received"},
		{"mitigation_steps", CategoryOperational, "string - Steps taken for mitigation"},
		{"network", CategoryBlockchain, "string - Blockchain network"},
		{"next_retry_in", CategoryOperational, "string - Next retry time"},
		{"oncall_team", CategoryOperational, "string - On-call team responsible"},
		{"pep_check", CategoryRisk, "string - Politically exposed person check result"},
		{"pool_address", CategoryBlockchain, "string - Pool address"},
		{"proof_hash", CategoryBlockchain, "string - Proof hash"},
		{"protocol_network", CategoryBlockchain, "string - Protocol network"},
		{"protocol_tvl", CategoryFinancial, "numeric - Total value locked in protocol"},
		{"protocol_type", CategoryBlockchain, "string - Type of protocol"},
		{"provider", CategoryOperational, "string - Service provider"},
		{"relay_node", CategoryBlockchain, "string - Relay node"},
		{"retry_count", CategoryOperational, "integer - Number of retries"},
		{"risk_score", CategoryRisk, "numeric - Risk score"},
		{"sanctions_check", CategoryRisk, "string - Sanctions check result"},
		{"severity", CategoryOperational, "string - Severity level"},
		{"sla_breach", CategoryOperational, "boolean - Whether SLA was breached"},
		{"slippage_tolerance", CategoryFinancial, "numeric - Slippage tolerance"},
		{"source_chain_id", CategoryBlockchain, "integer - Source chain ID"},
		{"timestamp", CategoryOperational, "timestamp - Time of the transaction (stored as text, cast with ::timestamptz)"},
		{"to_address", CategoryBlockchain, "string - Destination address"},
		{"to_network", CategoryBlockchain, "string - Destination network"},
		{"transaction_id", CategoryIdentity, "string - Unique transaction identifier"},
		{"tx_hash", CategoryBlockchain, "string - Transaction hash"},
		{"tx_status", CategoryBlockchain, "string - Transaction status (e.g., confirmed, pending)"},
		{"user_id", CategoryIdentity, "string - User identifier"},
		{"user_tier", CategoryIdentity, "string - User tier (e.g., silver, gold)"},
		{"verification_level", CategoryIdentity, "string - Verification level"},
	}
}
