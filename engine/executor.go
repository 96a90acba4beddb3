package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

// runExecutor drains APPROVED commands oldest-first under the per-tick
// budget. The APPROVED -> EXECUTING transition is the uniqueness gate:
// it succeeds for exactly one caller, so a command is executed at most
// once even across overlapping inline executions.
func (e *Engine) runExecutor(ctx context.Context) error {
	e.staleSweep(ctx)

	budget := e.cfg.Engine.ExecutorBudget
	if budget <= 0 {
		budget = 5
	}

	for n := 0; n < budget; n++ {
		cmd, err := e.store.NextApprovedCommand()
		if err != nil {
			return err
		}
		if cmd == nil {
			return nil
		}
		if !e.claimAndExecute(ctx, cmd) {
			// Claim lost to a concurrent executor; do not burn budget.
			n--
		}
	}
	return nil
}

// staleSweep fails commands that sat APPROVED longer than the threshold.
func (e *Engine) staleSweep(ctx context.Context) {
	swept, err := e.store.FailStaleApprovedCommands(e.cfg.Engine.StaleAfter)
	if err != nil {
		common.TickLogger("executor").Errorf("stale sweep failed: %v", err)
		return
	}
	for i := range swept {
		cmd := &swept[i]
		common.DocLogger("executor", cmd.DocID).WithField("cmd", cmd.CmdID).Warn("command went stale")
		e.audit(cmd.DocID, fmt.Sprintf("%s FAILED (stale)", cmd.CmdID))
		e.mirrorCommand(ctx, cmd)
	}
}

// claimAndExecute runs one command end to end. Returns false when the
// EXECUTING claim was lost.
func (e *Engine) claimAndExecute(ctx context.Context, cmd *repo.Command) bool {
	log := common.DocLogger("executor", cmd.DocID).WithField("cmd", cmd.CmdID)

	if err := e.store.SetCommandStatus(cmd.CmdID, repo.StatusExecuting, repo.Update{}); err != nil {
		if errors.Is(err, repo.ErrIllegalTransition) {
			return false
		}
		// Other claim errors burn budget so a broken record cannot spin
		// the tick.
		log.Errorf("failed to claim command: %v", err)
		return true
	}
	cmd.Status = repo.StatusExecuting
	e.mirrorCommand(ctx, cmd)

	result, execErr := e.executeClaimed(ctx, cmd)
	if execErr != nil {
		log.Warnf("execution failed: %v", execErr)
		if err := e.store.SetCommandStatus(cmd.CmdID, repo.StatusFailed, repo.Update{ErrorText: execErr.Error()}); err != nil {
			log.Errorf("failed to record failure: %v", err)
		}
		cmd.Status = repo.StatusFailed
		cmd.ErrorText = execErr.Error()
		e.mirrorCommand(ctx, cmd)
		e.audit(cmd.DocID, fmt.Sprintf("%s FAILED: %s", cmd.CmdID, execErr.Error()))
		return true
	}

	upd := repo.Update{ResultText: result.Text, TxRef: result.TxRef}
	if err := e.store.SetCommandStatus(cmd.CmdID, repo.StatusExecuted, upd); err != nil {
		log.Errorf("failed to record result: %v", err)
	}
	cmd.Status = repo.StatusExecuted
	cmd.ResultText = result.Text
	cmd.TxRef = result.TxRef
	cmd.ErrorText = ""
	e.mirrorCommand(ctx, cmd)

	e.audit(cmd.DocID, fmt.Sprintf("%s EXECUTED: %s", cmd.CmdID, result.Text))
	e.activity(cmd.DocID, "EXECUTE", cmd.Raw, result.TxRef)
	log.Info("command executed")
	return true
}

// executeClaimed resolves the parsed form and secrets, then dispatches.
func (e *Engine) executeClaimed(ctx context.Context, cmd *repo.Command) (*Result, error) {
	parsed, err := parsedOf(cmd)
	if err != nil {
		return nil, fmt.Errorf("command no longer parses: %w", err)
	}
	secrets, err := e.secretsFor(cmd.DocID)
	if err != nil {
		secrets = nil // arms that need a wallet surface their own error
	}
	return e.Execute(ctx, cmd.DocID, cmd.CmdID, parsed, secrets)
}
