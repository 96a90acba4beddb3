package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
)

// runPayouts executes due rows of the optional PayoutRules table and
// writes the outcome back into the row.
func (e *Engine) runPayouts(ctx context.Context) error {
	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}
	for i := range tracked {
		if err := e.payoutDoc(ctx, tracked[i].DocID); err != nil {
			common.DocLogger("payouts", tracked[i].DocID).Warnf("payout pass failed: %v", err)
		}
	}
	return nil
}

func (e *Engine) payoutDoc(ctx context.Context, docID string) error {
	tables, err := e.backend.LoadTables(ctx, docID)
	if err != nil {
		return err
	}
	rules := tables[docs.TablePayoutRules]
	if rules == nil {
		return nil
	}

	for idx, row := range rules.Rows {
		recipient := strings.TrimSpace(row.Cell(docs.ColPayoutRecipient))
		if recipient == "" {
			continue
		}
		status := strings.ToUpper(strings.TrimSpace(row.Cell(docs.ColPayoutStatus)))
		if status == "PAUSED" || status == "CANCELLED" {
			continue
		}
		if !e.payoutDue(row.Cell(docs.ColPayoutNextRun)) {
			continue
		}
		e.runPayoutRule(ctx, docID, idx, row)
	}
	return nil
}

// payoutDue treats an empty or unparseable NEXT_RUN as due now.
func (e *Engine) payoutDue(nextRun string) bool {
	nextRun = strings.TrimSpace(nextRun)
	if nextRun == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339, nextRun)
	if err != nil {
		return true
	}
	return !e.now().Before(t)
}

func (e *Engine) runPayoutRule(ctx context.Context, docID string, rowIdx int, row docs.Row) {
	log := common.DocLogger("payouts", docID).WithField("row", rowIdx)

	recipient := strings.TrimSpace(row.Cell(docs.ColPayoutRecipient))
	amount := strings.TrimSpace(row.Cell(docs.ColPayoutAmount))
	asset := strings.ToUpper(strings.TrimSpace(row.Cell(docs.ColPayoutAsset)))
	intervalH, err := strconv.ParseFloat(strings.TrimSpace(row.Cell(docs.ColPayoutInterval)), 64)
	if err != nil || intervalH <= 0 {
		e.writePayoutOutcome(ctx, docID, rowIdx, "", "", "ERROR: invalid interval")
		return
	}

	// Reuse the payout command validation so rules and typed commands
	// accept exactly the same shapes.
	raw := fmt.Sprintf("DW PAYOUT %s %s TO %s", amount, asset, recipient)
	parsed, err := command.Parse(raw)
	if err != nil {
		e.writePayoutOutcome(ctx, docID, rowIdx, "", "", "ERROR: "+err.Error())
		return
	}

	secrets, err := e.secretsFor(docID)
	if err != nil {
		e.writePayoutOutcome(ctx, docID, rowIdx, "", "", "ERROR: wallet not set up")
		return
	}

	nextRun := e.now().Add(time.Duration(intervalH * float64(time.Hour))).Format(time.RFC3339)
	result, err := e.execPayout(ctx, parsed, secrets)
	if err != nil {
		log.Warnf("payout failed: %v", err)
		e.writePayoutOutcome(ctx, docID, rowIdx, nextRun, "", "ERROR: "+err.Error())
		e.audit(docID, fmt.Sprintf("payout to %s FAILED: %v", recipient, err))
		return
	}

	e.writePayoutOutcome(ctx, docID, rowIdx, nextRun, result.TxRef, "OK "+e.now().Format(time.RFC3339))
	e.audit(docID, fmt.Sprintf("payout %s %s to %s executed", amount, asset, recipient))
	e.activity(docID, "PAYOUT", fmt.Sprintf("%s %s to %s", amount, asset, recipient), result.TxRef)
	log.Info("payout executed")
}

// writePayoutOutcome updates a rule row's NEXT_RUN, LAST_TX and STATUS
// cells; empty values leave the cell untouched.
func (e *Engine) writePayoutOutcome(ctx context.Context, docID string, rowIdx int, nextRun, lastTx, status string) {
	cells := map[int]string{}
	if nextRun != "" {
		cells[docs.ColPayoutNextRun] = nextRun
	}
	if lastTx != "" {
		cells[docs.ColPayoutLastTx] = lastTx
	}
	if status != "" {
		cells[docs.ColPayoutStatus] = status
	}
	if len(cells) == 0 {
		return
	}
	if err := e.backend.SetRowCells(ctx, docID, docs.TablePayoutRules, rowIdx, cells); err != nil {
		common.DocLogger("payouts", docID).Errorf("failed to write payout outcome: %v", err)
	}
}
