// Package gdocs implements the document adapter against the Google Docs
// and Drive APIs. Tables are located by a bold title paragraph carrying
// the well-known table name directly above each table. All writes
// resolve their target from a fresh Documents.Get so concurrent edits
// never shift a write onto the wrong row.
package gdocs

import (
	"context"
	"fmt"
	"strings"

	gdocs "google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/Naveen-807/Franky-Docs-sub000/docs"
)

// Backend talks to the Google Docs and Drive APIs.
type Backend struct {
	docsSvc  *gdocs.Service
	driveSvc *drive.Service

	namePrefix  string
	discoverAll bool
}

// New builds a backend from a service-account credentials file.
func New(ctx context.Context, credentialsFile, namePrefix string, discoverAll bool) (*Backend, error) {
	docsSvc, err := gdocs.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdocs.DocumentsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Backend{
		docsSvc:     docsSvc,
		driveSvc:    driveSvc,
		namePrefix:  namePrefix,
		discoverAll: discoverAll,
	}, nil
}

// ListDocuments implements docs.Backend by querying Drive for Google
// Docs files, filtered by the configured name prefix unless discovery of
// all reachable documents is enabled.
func (b *Backend) ListDocuments(ctx context.Context) ([]docs.DocumentInfo, error) {
	query := "mimeType='application/vnd.google-apps.document' and trashed=false"
	if !b.discoverAll && b.namePrefix != "" {
		query += fmt.Sprintf(" and name contains '%s'", strings.ReplaceAll(b.namePrefix, "'", `\'`))
	}

	var infos []docs.DocumentInfo
	pageToken := ""
	for {
		call := b.driveSvc.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("drive list failed: %w", err)
		}
		for _, f := range list.Files {
			if !b.discoverAll && b.namePrefix != "" && !strings.HasPrefix(f.Name, b.namePrefix) {
				continue
			}
			infos = append(infos, docs.DocumentInfo{DocID: f.Id, Name: f.Name})
		}
		if list.NextPageToken == "" {
			return infos, nil
		}
		pageToken = list.NextPageToken
	}
}

// locatedTable pairs a parsed table snapshot with its position in the
// document body.
type locatedTable struct {
	name     string
	element  *gdocs.StructuralElement
	snapshot *docs.Table
}

// fetch loads the document and locates every titled table.
func (b *Backend) fetch(ctx context.Context, docID string) (*gdocs.Document, map[string]*locatedTable, error) {
	doc, err := b.docsSvc.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("documents get failed: %w", err)
	}

	tables := make(map[string]*locatedTable)
	pendingTitle := ""
	for _, elem := range doc.Body.Content {
		switch {
		case elem.Paragraph != nil:
			title := strings.TrimSpace(paragraphText(elem.Paragraph))
			if _, known := docs.Headers[title]; known {
				pendingTitle = title
			} else if title != "" {
				pendingTitle = ""
			}
		case elem.Table != nil:
			if pendingTitle != "" {
				tables[pendingTitle] = &locatedTable{
					name:     pendingTitle,
					element:  elem,
					snapshot: tableSnapshot(pendingTitle, elem.Table),
				}
				pendingTitle = ""
			}
		}
	}
	return doc, tables, nil
}

// LoadTables implements docs.Backend.
func (b *Backend) LoadTables(ctx context.Context, docID string) (map[string]*docs.Table, error) {
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*docs.Table, len(located))
	for name, lt := range located {
		out[name] = lt.snapshot
	}
	return out, nil
}

// EnsureTemplate implements docs.Backend. Missing tables are appended to
// the end of the document: a bold title paragraph followed by a table
// holding only its header row.
func (b *Backend) EnsureTemplate(ctx context.Context, docID string) error {
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return err
	}

	for _, name := range docs.TemplateTables {
		if _, ok := located[name]; ok {
			continue
		}
		if err := b.appendTable(ctx, docID, name); err != nil {
			return err
		}
	}
	return nil
}

// appendTable creates one titled table at the end of the body and fills
// its header row. The title insert and table insert go in one batch; the
// header fill needs the fresh indexes of the new cells, so it re-fetches.
func (b *Backend) appendTable(ctx context.Context, docID, name string) error {
	header := docs.Headers[name]

	reqs := []*gdocs.Request{
		{
			InsertText: &gdocs.InsertTextRequest{
				Text:                 "\n" + name + "\n",
				EndOfSegmentLocation: &gdocs.EndOfSegmentLocation{},
			},
		},
		{
			InsertTable: &gdocs.InsertTableRequest{
				Rows:                 1,
				Columns:              int64(len(header)),
				EndOfSegmentLocation: &gdocs.EndOfSegmentLocation{},
			},
		},
	}
	if err := b.batchUpdate(ctx, docID, reqs); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	// Fill and bold the header row.
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return err
	}
	lt, ok := located[name]
	if !ok {
		return fmt.Errorf("table %s missing after creation", name)
	}

	var fill []*gdocs.Request
	row := lt.element.Table.TableRows[0]
	// Right to left so earlier cell indexes stay valid within the batch.
	for col := len(header) - 1; col >= 0; col-- {
		if col >= len(row.TableCells) {
			continue
		}
		start := cellStartIndex(row.TableCells[col])
		fill = append(fill,
			&gdocs.Request{
				InsertText: &gdocs.InsertTextRequest{
					Location: &gdocs.Location{Index: start},
					Text:     header[col],
				},
			},
			&gdocs.Request{
				UpdateTextStyle: &gdocs.UpdateTextStyleRequest{
					Range: &gdocs.Range{
						StartIndex: start,
						EndIndex:   start + int64(len(header[col])),
					},
					TextStyle: &gdocs.TextStyle{Bold: true},
					Fields:    "bold",
				},
			},
		)
	}
	if err := b.batchUpdate(ctx, docID, fill); err != nil {
		return fmt.Errorf("failed to fill header of %s: %w", name, err)
	}
	return nil
}

// UpdateCell implements docs.Backend.
func (b *Backend) UpdateCell(ctx context.Context, docID, table string, rowIdx, colIdx int, text string) error {
	return b.SetRowCells(ctx, docID, table, rowIdx, map[int]string{colIdx: text})
}

// SetRowCells implements docs.Backend. The target row is resolved from a
// fresh snapshot and all cell writes go in one batch, ordered right to
// left so the batch's own edits cannot shift later targets.
func (b *Backend) SetRowCells(ctx context.Context, docID, table string, rowIdx int, cells map[int]string) error {
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return err
	}
	lt, ok := located[table]
	if !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}

	// Data row 0 is document table row 1 (row 0 is the header).
	docRow := rowIdx + 1
	if docRow < 1 || docRow >= len(lt.element.Table.TableRows) {
		return fmt.Errorf("row %d out of range in %s/%s", rowIdx, docID, table)
	}
	row := lt.element.Table.TableRows[docRow]

	var reqs []*gdocs.Request
	for col := len(row.TableCells) - 1; col >= 0; col-- {
		text, wanted := cells[col]
		if !wanted {
			continue
		}
		reqs = append(reqs, replaceCellRequests(row.TableCells[col], text)...)
	}
	if len(reqs) == 0 {
		return nil
	}
	return b.batchUpdate(ctx, docID, reqs)
}

// AppendRow implements docs.Backend.
func (b *Backend) AppendRow(ctx context.Context, docID, table string, cells docs.Row) error {
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return err
	}
	lt, ok := located[table]
	if !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}

	lastRow := len(lt.element.Table.TableRows) - 1
	req := &gdocs.Request{
		InsertTableRow: &gdocs.InsertTableRowRequest{
			TableCellLocation: &gdocs.TableCellLocation{
				TableStartLocation: &gdocs.Location{Index: lt.element.StartIndex},
				RowIndex:           int64(lastRow),
				ColumnIndex:        0,
			},
			InsertBelow: true,
		},
	}
	if err := b.batchUpdate(ctx, docID, []*gdocs.Request{req}); err != nil {
		return fmt.Errorf("failed to append row to %s: %w", table, err)
	}

	newRowIdx := len(lt.snapshot.Rows) // data index of the appended row
	fill := make(map[int]string, len(cells))
	for col, text := range cells {
		if text != "" {
			fill[col] = text
		}
	}
	if len(fill) == 0 {
		return nil
	}
	return b.SetRowCells(ctx, docID, table, newRowIdx, fill)
}

// ReplaceRows implements docs.Backend. Existing data rows are deleted
// bottom-up in one batch, then the new rows are appended.
func (b *Backend) ReplaceRows(ctx context.Context, docID, table string, rows []docs.Row) error {
	_, located, err := b.fetch(ctx, docID)
	if err != nil {
		return err
	}
	lt, ok := located[table]
	if !ok {
		return fmt.Errorf("table not found: %s/%s", docID, table)
	}

	var deletes []*gdocs.Request
	for docRow := len(lt.element.Table.TableRows) - 1; docRow >= 1; docRow-- {
		deletes = append(deletes, &gdocs.Request{
			DeleteTableRow: &gdocs.DeleteTableRowRequest{
				TableCellLocation: &gdocs.TableCellLocation{
					TableStartLocation: &gdocs.Location{Index: lt.element.StartIndex},
					RowIndex:           int64(docRow),
					ColumnIndex:        0,
				},
			},
		})
	}
	if len(deletes) > 0 {
		if err := b.batchUpdate(ctx, docID, deletes); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, row := range rows {
		if err := b.AppendRow(ctx, docID, table, row); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) batchUpdate(ctx context.Context, docID string, reqs []*gdocs.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	_, err := b.docsSvc.Documents.BatchUpdate(docID, &gdocs.BatchUpdateDocumentRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update failed: %w", err)
	}
	return nil
}

// replaceCellRequests deletes a cell's current text and inserts the
// replacement at the cell start.
func replaceCellRequests(cell *gdocs.TableCell, text string) []*gdocs.Request {
	start := cellStartIndex(cell)
	end := cellEndIndex(cell)

	var reqs []*gdocs.Request
	// The last character of a cell is its terminal newline, which must
	// survive; delete up to end-1 only.
	if end-1 > start {
		reqs = append(reqs, &gdocs.Request{
			DeleteContentRange: &gdocs.DeleteContentRangeRequest{
				Range: &gdocs.Range{StartIndex: start, EndIndex: end - 1},
			},
		})
	}
	if text != "" {
		reqs = append(reqs, &gdocs.Request{
			InsertText: &gdocs.InsertTextRequest{
				Location: &gdocs.Location{Index: start},
				Text:     text,
			},
		})
	}
	return reqs
}

func cellStartIndex(cell *gdocs.TableCell) int64 {
	if len(cell.Content) > 0 {
		return cell.Content[0].StartIndex
	}
	return cell.StartIndex + 1
}

func cellEndIndex(cell *gdocs.TableCell) int64 {
	if len(cell.Content) > 0 {
		return cell.Content[len(cell.Content)-1].EndIndex
	}
	return cell.EndIndex
}

// tableSnapshot converts an API table into the adapter's row model,
// excluding the header row.
func tableSnapshot(name string, t *gdocs.Table) *docs.Table {
	snapshot := &docs.Table{Name: name}
	for i, row := range t.TableRows {
		if i == 0 {
			continue
		}
		cells := make(docs.Row, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			cells = append(cells, cellText(cell))
		}
		snapshot.Rows = append(snapshot.Rows, cells)
	}
	return snapshot
}

func cellText(cell *gdocs.TableCell) string {
	var sb strings.Builder
	for _, elem := range cell.Content {
		if elem.Paragraph != nil {
			sb.WriteString(paragraphText(elem.Paragraph))
		}
	}
	return strings.TrimSpace(sb.String())
}

func paragraphText(p *gdocs.Paragraph) string {
	var sb strings.Builder
	for _, elem := range p.Elements {
		if elem.TextRun != nil {
			sb.WriteString(elem.TextRun.Content)
		}
	}
	return sb.String()
}
