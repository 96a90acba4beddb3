// Package engine implements the orchestration core: the tick scheduler,
// the nine periodic ticks, and the execution dispatcher. The repository
// is the single source of truth; ticks read document state, request
// command transitions through the repository, and mirror authoritative
// state back into document cells.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/config"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/statemanager"
	"github.com/Naveen-807/Franky-Docs-sub000/vault"
)

// Engine wires the repository, document backend, integration ports and
// vault together and owns the nine ticks.
type Engine struct {
	cfg     *config.Config
	store   *repo.Store
	backend docs.Backend
	ports   *ports.Set
	vault   *vault.Vault
	tracker *statemanager.Manager

	now func() time.Time
}

// New builds an engine. The tracker may be shared with the status API.
func New(cfg *config.Config, store *repo.Store, backend docs.Backend, portSet *ports.Set, v *vault.Vault, tracker *statemanager.Manager) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		backend: backend,
		ports:   portSet,
		vault:   v,
		tracker: tracker,
		now:     time.Now,
	}
}

// Store exposes the repository for the approval API.
func (e *Engine) Store() *repo.Store { return e.store }

// StartupSweep fails commands left EXECUTING by a previous process. Runs
// once before the scheduler starts.
func (e *Engine) StartupSweep(ctx context.Context) {
	swept, err := e.store.FailStaleExecutingCommands(0)
	if err != nil {
		common.Logger.Errorf("startup sweep failed: %v", err)
		return
	}
	for i := range swept {
		cmd := &swept[i]
		common.Logger.WithField("cmd", cmd.CmdID).Warn("failed command left executing by previous run")
		e.audit(cmd.DocID, fmt.Sprintf("%s FAILED (stale after restart)", cmd.CmdID))
		e.mirrorCommand(ctx, cmd)
	}
}

// newID mints an opaque record identifier.
func newID() string {
	return uuid.NewString()[:8]
}

// initialStatus classifies a freshly parsed command per the approval
// rules: auto-approve set or demo mode skip the pending step.
func (e *Engine) initialStatus(kind command.Kind) repo.Status {
	if e.cfg.Engine.DemoMode || command.AutoApproved(kind, e.cfg.Engine.AutoApprove) {
		return repo.StatusApproved
	}
	return repo.StatusPendingApproval
}

// approvalURL is the link written into a pending command's cell.
func (e *Engine) approvalURL(docID, cmdID string) string {
	base := strings.TrimRight(e.cfg.Server.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", e.cfg.Server.Port)
	}
	return fmt.Sprintf("%s/cmd/%s/%s", base, docID, cmdID)
}

// secretsFor decrypts the document's secret bundle. Plaintext lives only
// for the duration of the call chain; nothing caches it.
func (e *Engine) secretsFor(docID string) (*vault.Secrets, error) {
	blob, err := e.store.SecretsBlob(docID)
	if err != nil {
		return nil, err
	}
	return e.vault.Open(blob)
}

// provisionSecrets creates and persists a wallet bundle for a document
// that has none. Idempotent: a concurrent creation wins and its bundle
// is returned.
func (e *Engine) provisionSecrets(ctx context.Context, docID string) (*vault.Secrets, error) {
	if secrets, err := e.secretsFor(docID); err == nil {
		return secrets, nil
	}

	secrets, err := vault.Generate(vault.StacksVersion(e.cfg.Ports.Stacks.Network))
	if err != nil {
		return nil, fmt.Errorf("wallet generation failed: %w", err)
	}
	blob, err := e.vault.Seal(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to seal wallet secrets: %w", err)
	}

	// Re-check: another tick may have provisioned between our check and
	// the write. The first stored bundle is authoritative.
	if existing, err := e.secretsFor(docID); err == nil {
		return existing, nil
	}
	if err := e.store.PutSecretsBlob(docID, blob); err != nil {
		return nil, fmt.Errorf("failed to store wallet secrets: %w", err)
	}

	stacksAddr := ""
	if secrets.Stacks != nil {
		stacksAddr = secrets.Stacks.Address
	}
	if err := e.store.SetDocAddresses(docID, secrets.EVM.Address, stacksAddr); err != nil {
		return nil, err
	}
	e.audit(docID, fmt.Sprintf("wallet provisioned EVM=%s STX=%s", secrets.EVM.Address, stacksAddr))
	common.DocLogger("engine", docID).Info("provisioned wallet secrets")
	return secrets, nil
}

// audit appends to the repository audit trail; failures only log.
func (e *Engine) audit(docID, message string) {
	if err := e.store.AppendAudit(docID, message); err != nil {
		common.DocLogger("engine", docID).Errorf("audit append failed: %v", err)
	}
}

// activity records an executed action in the capped recent-activity
// history.
func (e *Engine) activity(docID, typ, details, txRef string) {
	err := e.store.AppendActivity(&repo.Activity{
		DocID:   docID,
		Type:    typ,
		Details: details,
		TxRef:   txRef,
	})
	if err != nil {
		common.DocLogger("engine", docID).Errorf("activity append failed: %v", err)
	}
}

// marshalParsed renders a parsed command for storage; a nil parse stores
// the empty string.
func marshalParsed(p *command.Parsed) string {
	if p == nil {
		return ""
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(raw)
}

// parsedOf recovers the parsed form of a stored command, re-parsing the
// raw text when the stored form is absent.
func parsedOf(cmd *repo.Command) (*command.Parsed, error) {
	if cmd.ParsedJSON != "" {
		var p command.Parsed
		if err := json.Unmarshal([]byte(cmd.ParsedJSON), &p); err == nil && p.Kind != "" {
			return &p, nil
		}
	}
	return command.Parse(cmd.Raw)
}

// commandRowIndex locates the data row of a command in a freshly loaded
// Commands table. Returns -1 when the row is gone (user deleted it).
func commandRowIndex(t *docs.Table, cmdID string) int {
	if t == nil {
		return -1
	}
	for i, row := range t.Rows {
		if row.Cell(docs.ColCmdID) == cmdID {
			return i
		}
	}
	return -1
}

// mirrorCommand writes a command record's system-owned cells into its
// document row: status, result, error. The row is resolved from a fresh
// snapshot so concurrent edits cannot shift the write.
func (e *Engine) mirrorCommand(ctx context.Context, cmd *repo.Command) {
	tables, err := e.backend.LoadTables(ctx, cmd.DocID)
	if err != nil {
		common.DocLogger("engine", cmd.DocID).Errorf("mirror load failed: %v", err)
		return
	}
	idx := commandRowIndex(tables[docs.TableCommands], cmd.CmdID)
	if idx < 0 {
		return
	}

	cells := map[int]string{
		docs.ColCmdStatus: string(cmd.Status),
		docs.ColCmdResult: cmd.ResultText,
		docs.ColCmdError:  cmd.ErrorText,
	}
	if cmd.TxRef != "" {
		cells[docs.ColCmdResult] = strings.TrimSpace(cmd.ResultText + " " + cmd.TxRef)
	}
	if err := e.backend.SetRowCells(ctx, cmd.DocID, docs.TableCommands, idx, cells); err != nil {
		common.DocLogger("engine", cmd.DocID).Errorf("mirror write failed: %v", err)
	}
}

// setConfigValue upserts a KEY/VALUE row in the document's Config table.
func (e *Engine) setConfigValue(ctx context.Context, docID, key, value string) error {
	tables, err := e.backend.LoadTables(ctx, docID)
	if err != nil {
		return err
	}
	t := tables[docs.TableConfig]
	if t != nil {
		for i, row := range t.Rows {
			if row.Cell(docs.ColConfigKey) == key {
				return e.backend.UpdateCell(ctx, docID, docs.TableConfig, i, docs.ColConfigValue, value)
			}
		}
	}
	return e.backend.AppendRow(ctx, docID, docs.TableConfig, docs.Row{key, value})
}

// appendCommandRow adds a fresh Commands row for an engine-created
// command (schedules, chat, agent proposals) and mirrors its initial
// state.
func (e *Engine) appendCommandRow(ctx context.Context, cmd *repo.Command, displayRaw string) {
	row := docs.Row{cmd.CmdID, displayRaw, string(cmd.Status), "", "", ""}
	if cmd.Status == repo.StatusPendingApproval {
		row[docs.ColCmdApprovalURL] = e.approvalURL(cmd.DocID, cmd.CmdID)
	}
	if err := e.backend.AppendRow(ctx, cmd.DocID, docs.TableCommands, row); err != nil {
		common.DocLogger("engine", cmd.DocID).Errorf("failed to append command row: %v", err)
	}
}
