// Package memory implements an in-process document backend. It backs the
// engine tests and the demo deployment where no external document
// service is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Naveen-807/Franky-Docs-sub000/docs"
)

// Backend is an in-memory docs.Backend. Safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	documents map[string]*document

	// FailLoads forces LoadTables errors for listed doc ids; used to
	// exercise poll failure handling.
	FailLoads map[string]bool
}

type document struct {
	name   string
	tables map[string][]docs.Row
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		documents: make(map[string]*document),
		FailLoads: make(map[string]bool),
	}
}

// AddDocument registers a document with no tables.
func (b *Backend) AddDocument(docID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.documents[docID]; !ok {
		b.documents[docID] = &document{name: name, tables: make(map[string][]docs.Row)}
	}
}

// RemoveDocument drops a document, as when access is revoked.
func (b *Backend) RemoveDocument(docID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.documents, docID)
}

func (b *Backend) doc(docID string) (*document, error) {
	d, ok := b.documents[docID]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", docID)
	}
	return d, nil
}

// ListDocuments implements docs.Backend.
func (b *Backend) ListDocuments(ctx context.Context) ([]docs.DocumentInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var infos []docs.DocumentInfo
	for id, d := range b.documents {
		infos = append(infos, docs.DocumentInfo{DocID: id, Name: d.name})
	}
	return infos, nil
}

// LoadTables implements docs.Backend.
func (b *Backend) LoadTables(ctx context.Context, docID string) (map[string]*docs.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailLoads[docID] {
		return nil, fmt.Errorf("simulated load failure for %s", docID)
	}

	d, err := b.doc(docID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*docs.Table, len(d.tables))
	for name, rows := range d.tables {
		copied := make([]docs.Row, len(rows))
		for i, row := range rows {
			copied[i] = append(docs.Row{}, row...)
		}
		out[name] = &docs.Table{Name: name, Rows: copied}
	}
	return out, nil
}

// EnsureTemplate implements docs.Backend.
func (b *Backend) EnsureTemplate(ctx context.Context, docID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.doc(docID)
	if err != nil {
		return err
	}
	for _, name := range docs.TemplateTables {
		if _, ok := d.tables[name]; !ok {
			d.tables[name] = []docs.Row{}
		}
	}
	return nil
}

// UpdateCell implements docs.Backend.
func (b *Backend) UpdateCell(ctx context.Context, docID, table string, rowIdx, colIdx int, text string) error {
	return b.SetRowCells(ctx, docID, table, rowIdx, map[int]string{colIdx: text})
}

// SetRowCells implements docs.Backend.
func (b *Backend) SetRowCells(ctx context.Context, docID, table string, rowIdx int, cells map[int]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.doc(docID)
	if err != nil {
		return err
	}
	rows, ok := d.tables[table]
	if !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}
	if rowIdx < 0 || rowIdx >= len(rows) {
		return fmt.Errorf("row %d out of range in %s/%s", rowIdx, docID, table)
	}

	width := len(docs.Headers[table])
	row := rows[rowIdx]
	for len(row) < width {
		row = append(row, "")
	}
	for col, text := range cells {
		if col < 0 || col >= width {
			return fmt.Errorf("column %d out of range in %s", col, table)
		}
		row[col] = text
	}
	rows[rowIdx] = row
	d.tables[table] = rows
	return nil
}

// AppendRow implements docs.Backend.
func (b *Backend) AppendRow(ctx context.Context, docID, table string, cells docs.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.doc(docID)
	if err != nil {
		return err
	}
	if _, ok := d.tables[table]; !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}
	d.tables[table] = append(d.tables[table], append(docs.Row{}, cells...))
	return nil
}

// ReplaceRows implements docs.Backend.
func (b *Backend) ReplaceRows(ctx context.Context, docID, table string, rows []docs.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.doc(docID)
	if err != nil {
		return err
	}
	if _, ok := d.tables[table]; !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}
	copied := make([]docs.Row, len(rows))
	for i, row := range rows {
		copied[i] = append(docs.Row{}, row...)
	}
	d.tables[table] = copied
	return nil
}

// AddTable creates an empty table, as when a user adds an optional
// table (PayoutRules) by hand.
func (b *Backend) AddTable(docID, table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.documents[docID]; ok {
		if _, ok := d.tables[table]; !ok {
			d.tables[table] = []docs.Row{}
		}
	}
}

// UserType simulates a user typing into a cell; identical to UpdateCell
// but reads better in tests.
func (b *Backend) UserType(docID, table string, rowIdx, colIdx int, text string) error {
	return b.UpdateCell(context.Background(), docID, table, rowIdx, colIdx, text)
}

// UserAppendCommand simulates a user adding a fresh command row.
func (b *Backend) UserAppendCommand(docID, raw string) error {
	return b.AppendRow(context.Background(), docID, docs.TableCommands,
		docs.Row{"", raw, "", "", "", ""})
}
