// Package docs defines the document adapter boundary: the well-known
// table layout of a docwallet document and the Backend interface the
// engine drives it through.
//
// The document is a display of authoritative repository state plus the
// cells users edit. Writes are row- and cell-targeted; every write
// resolves its target from a freshly loaded table snapshot so a shifted
// row is never overwritten blind.
package docs

import (
	"context"
	"crypto/sha256"
)

// Well-known table names.
const (
	TableConfig      = "Config"
	TableCommands    = "Commands"
	TableChat        = "Chat"
	TableBalances    = "Balances"
	TableOpenOrders  = "OpenOrders"
	TableActivity    = "RecentActivity"
	TableAudit       = "Audit"
	TablePayoutRules = "PayoutRules"
)

// Commands table columns.
const (
	ColCmdID = iota
	ColCmdCommand
	ColCmdStatus
	ColCmdApprovalURL
	ColCmdResult
	ColCmdError
)

// Chat table columns.
const (
	ColChatUser = iota
	ColChatAgent
)

// Config table columns.
const (
	ColConfigKey = iota
	ColConfigValue
)

// Balances table columns.
const (
	ColBalLocation = iota
	ColBalAsset
	ColBalAmount
)

// Audit table columns.
const (
	ColAuditTime = iota
	ColAuditMessage
)

// PayoutRules table columns.
const (
	ColPayoutRecipient = iota
	ColPayoutAmount
	ColPayoutAsset
	ColPayoutInterval
	ColPayoutNextRun
	ColPayoutLastTx
	ColPayoutStatus
)

// Headers for every table, index 0 being the header row of the document.
var Headers = map[string][]string{
	TableConfig:      {"KEY", "VALUE"},
	TableCommands:    {"ID", "COMMAND", "STATUS", "APPROVAL_URL", "RESULT", "ERROR"},
	TableChat:        {"USER", "AGENT"},
	TableBalances:    {"LOCATION", "ASSET", "BALANCE"},
	TableOpenOrders:  {"ID", "TYPE", "PAIR", "TRIGGER", "QTY", "STATUS"},
	TableActivity:    {"TIME", "TYPE", "DETAILS", "TX"},
	TableAudit:       {"TIME", "MESSAGE"},
	TablePayoutRules: {"RECIPIENT", "AMOUNT", "ASSET", "INTERVAL_H", "NEXT_RUN", "LAST_TX", "STATUS"},
}

// TemplateTables is the creation order for a fresh document. PayoutRules
// is optional and not part of the template; users add it when needed.
var TemplateTables = []string{
	TableConfig, TableCommands, TableChat, TableBalances,
	TableOpenOrders, TableActivity, TableAudit,
}

// Row is one table row. Cells are plain strings; missing trailing cells
// read as "".
type Row []string

// Cell returns the cell at col, or "" when the row is short.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// Table is a snapshot of one named document table. Rows excludes the
// header; data rows begin at document row index 1, so the document row
// index of Rows[i] is i+1.
type Table struct {
	Name string
	Rows []Row
}

// DocumentInfo identifies one discoverable document.
type DocumentInfo struct {
	DocID string
	Name  string
}

// Backend is the document adapter. Implementations must be idempotent on
// retried writes and must never modify rows they were not asked to
// touch.
type Backend interface {
	// ListDocuments enumerates the documents the service can reach.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// LoadTables reads all well-known tables of one document. Absent
	// tables are simply missing from the map.
	LoadTables(ctx context.Context, docID string) (map[string]*Table, error)

	// EnsureTemplate creates any missing well-known tables. Idempotent.
	EnsureTemplate(ctx context.Context, docID string) error

	// UpdateCell writes one cell. rowIdx is the data row index as in
	// Table.Rows (0-based, header excluded).
	UpdateCell(ctx context.Context, docID, table string, rowIdx, colIdx int, text string) error

	// SetRowCells writes several cells of one row in a single call.
	SetRowCells(ctx context.Context, docID, table string, rowIdx int, cells map[int]string) error

	// AppendRow appends one data row to a table.
	AppendRow(ctx context.Context, docID, table string, cells Row) error

	// ReplaceRows atomically replaces all data rows of a table.
	ReplaceRows(ctx context.Context, docID, table string, rows []Row) error
}

// CommandsHash digests the user-editable cells of a Commands table: the
// raw command and the status cell (status doubles as the cell-edit
// approval surface). System-owned id/result/error cells are excluded so
// the engine's own writes never force a reconcile.
func CommandsHash(t *Table) []byte {
	h := sha256.New()
	if t != nil {
		for _, row := range t.Rows {
			h.Write([]byte(row.Cell(ColCmdCommand)))
			h.Write([]byte{0})
			h.Write([]byte(row.Cell(ColCmdStatus)))
			h.Write([]byte{0x1e})
		}
	}
	return h.Sum(nil)
}
