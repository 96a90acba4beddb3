package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

const lockedMessage = "Command locked after approval/execution"

// stripSystemPrefix drops the bracketed marker the scheduler puts in
// front of spawned rows ("[SCHED:<id>#<run>] ...") so the row still
// matches its record's raw command.
func stripSystemPrefix(raw string) string {
	if strings.HasPrefix(raw, "[") {
		if end := strings.Index(raw, "] "); end >= 0 {
			return strings.TrimSpace(raw[end+2:])
		}
	}
	return raw
}

// runPoll reconciles each tracked document's Commands table with the
// repository: registers new rows, applies cell-edit approvals, re-parses
// edited rows, and rejects edits to locked commands. Documents whose
// user-editable hash is unchanged are skipped.
func (e *Engine) runPoll(ctx context.Context) error {
	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}

	for i := range tracked {
		doc := &tracked[i]
		if err := e.pollDoc(ctx, doc); err != nil {
			e.notePollFailure(doc, err)
		} else if doc.PollFailures > 0 {
			_ = e.store.SetDocPollFailures(doc.DocID, 0)
		}
	}
	return nil
}

// notePollFailure counts consecutive failures and drops the document
// from tracking once the limit is reached.
func (e *Engine) notePollFailure(doc *repo.Doc, cause error) {
	log := common.DocLogger("poll", doc.DocID)
	failures := doc.PollFailures + 1
	log.Warnf("poll failed (%d consecutive): %v", failures, cause)

	if failures >= e.cfg.Engine.PollFailureLimit {
		log.Error("poll failure limit reached, dropping document from tracking")
		if err := e.store.RemoveDoc(doc.DocID); err != nil {
			log.Errorf("failed to remove doc: %v", err)
		}
		return
	}
	if err := e.store.SetDocPollFailures(doc.DocID, failures); err != nil {
		log.Errorf("failed to record poll failure: %v", err)
	}
}

func (e *Engine) pollDoc(ctx context.Context, doc *repo.Doc) error {
	tables, err := e.backend.LoadTables(ctx, doc.DocID)
	if err != nil {
		return err
	}
	commands := tables[docs.TableCommands]
	if commands == nil {
		return nil
	}

	hash := hex.EncodeToString(docs.CommandsHash(commands))
	if hash == doc.LastUserHash {
		return nil
	}

	if err := e.reconcileCommands(ctx, doc.DocID, commands); err != nil {
		return err
	}

	// The reconcile writes change system-owned status cells, so the
	// stored hash is recomputed from a fresh snapshot; otherwise the
	// next poll would reconcile again for our own writes.
	tables, err = e.backend.LoadTables(ctx, doc.DocID)
	if err != nil {
		return err
	}
	hash = hex.EncodeToString(docs.CommandsHash(tables[docs.TableCommands]))
	return e.store.SetDocLastUserHash(doc.DocID, hash)
}

func (e *Engine) reconcileCommands(ctx context.Context, docID string, t *docs.Table) error {
	for idx, row := range t.Rows {
		raw := strings.TrimSpace(row.Cell(docs.ColCmdCommand))
		if raw == "" {
			continue
		}
		cmdID := strings.TrimSpace(row.Cell(docs.ColCmdID))

		if cmdID == "" {
			e.registerRow(ctx, docID, idx, raw)
			continue
		}
		e.reconcileKnownRow(ctx, docID, idx, cmdID, raw, row)
	}
	return nil
}

// registerRow assigns an id to a fresh user row, parses it, stores the
// record and writes the system cells back.
func (e *Engine) registerRow(ctx context.Context, docID string, rowIdx int, raw string) {
	log := common.DocLogger("poll", docID)

	// Natural-language input is canonicalized before parsing and the
	// cell rewritten so the document shows the canonical form.
	cells := map[int]string{}
	if !command.HasPrefix(raw) {
		if canonical, ok := command.TryAutoDetect(raw); ok {
			raw = canonical
			cells[docs.ColCmdCommand] = canonical
		}
	}

	cmdID := newID()
	cmd := &repo.Command{CmdID: cmdID, DocID: docID, Raw: raw}

	parsed, err := command.Parse(raw)
	if err != nil {
		cmd.Status = repo.StatusInvalid
		cmd.ErrorText = err.Error()
	} else {
		cmd.Status = e.initialStatus(parsed.Kind)
		cmd.ParsedJSON = marshalParsed(parsed)
	}

	if err := e.store.InsertCommand(cmd); err != nil {
		log.Errorf("failed to insert command: %v", err)
		return
	}

	cells[docs.ColCmdID] = cmdID
	cells[docs.ColCmdStatus] = string(cmd.Status)
	cells[docs.ColCmdError] = cmd.ErrorText
	if cmd.Status == repo.StatusPendingApproval {
		cells[docs.ColCmdApprovalURL] = e.approvalURL(docID, cmdID)
	}
	if err := e.backend.SetRowCells(ctx, docID, docs.TableCommands, rowIdx, cells); err != nil {
		log.Errorf("failed to write back command cells: %v", err)
	}
	log.WithField("cmd", cmdID).Infof("registered command %s", cmd.Status)
}

// reconcileKnownRow handles cell-edit approval and raw-command edits for
// a row that already has a repository record.
func (e *Engine) reconcileKnownRow(ctx context.Context, docID string, rowIdx int, cmdID, raw string, row docs.Row) {
	log := common.DocLogger("poll", docID)

	cmd, err := e.store.Command(cmdID)
	if err != nil {
		// Row carries an id the repository does not know (e.g. restored
		// from a document copy). Re-register under the same id.
		restored := &repo.Command{CmdID: cmdID, DocID: docID, Raw: raw}
		if parsed, perr := command.Parse(raw); perr != nil {
			restored.Status = repo.StatusInvalid
			restored.ErrorText = perr.Error()
		} else {
			restored.Status = e.initialStatus(parsed.Kind)
			restored.ParsedJSON = marshalParsed(parsed)
		}
		if err := e.store.InsertCommand(restored); err != nil {
			log.Errorf("failed to restore command %s: %v", cmdID, err)
		}
		return
	}

	// Cell-edit approval: typing APPROVED or REJECTED into the status
	// cell of a pending command decides it.
	if cmd.Status == repo.StatusPendingApproval {
		decision := strings.ToUpper(strings.TrimSpace(row.Cell(docs.ColCmdStatus)))
		if decision == string(repo.StatusApproved) || decision == string(repo.StatusRejected) {
			if err := e.store.SetCommandStatus(cmdID, repo.Status(decision), repo.Update{}); err != nil {
				log.Errorf("cell-edit decision failed for %s: %v", cmdID, err)
			} else {
				e.audit(docID, fmt.Sprintf("%s %s (cell-edit)", cmdID, decision))
				log.WithField("cmd", cmdID).Infof("cell-edit decision: %s", decision)
			}
			return
		}
	}

	if stripSystemPrefix(raw) == cmd.Raw {
		return
	}

	// Raw command edited. Terminal and approved records are locked.
	if !cmd.Status.Editable() {
		if err := e.backend.UpdateCell(ctx, docID, docs.TableCommands, rowIdx, docs.ColCmdError, lockedMessage); err != nil {
			log.Errorf("failed to write locked notice: %v", err)
		}
		return
	}

	// Editable record: re-parse the new text.
	var (
		newStatus  = repo.StatusPendingApproval
		errorText  = ""
		parsedJSON = ""
	)
	if !command.HasPrefix(raw) {
		if canonical, ok := command.TryAutoDetect(raw); ok {
			raw = canonical
			_ = e.backend.UpdateCell(ctx, docID, docs.TableCommands, rowIdx, docs.ColCmdCommand, canonical)
		}
	}
	parsed, perr := command.Parse(raw)
	if perr != nil {
		newStatus = repo.StatusInvalid
		errorText = perr.Error()
	} else {
		newStatus = e.initialStatus(parsed.Kind)
		parsedJSON = marshalParsed(parsed)
	}

	if err := e.store.UpdateCommandParse(cmdID, raw, parsedJSON, newStatus, errorText); err != nil {
		log.Errorf("re-parse update failed for %s: %v", cmdID, err)
		return
	}
	cells := map[int]string{
		docs.ColCmdStatus: string(newStatus),
		docs.ColCmdError:  errorText,
		docs.ColCmdResult: "",
	}
	if newStatus == repo.StatusPendingApproval {
		cells[docs.ColCmdApprovalURL] = e.approvalURL(docID, cmdID)
	}
	if err := e.backend.SetRowCells(ctx, docID, docs.TableCommands, rowIdx, cells); err != nil {
		log.Errorf("failed to mirror re-parse: %v", err)
	}
}
