package engine

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

const (
	staleAlertAge  = 30 * time.Minute
	lowGasFactor   = 10 // alert when balance < fee * factor
	proposalPrefix = "AGENT_LAST_"
)

// runAgent produces alerts (stale approvals, low gas, price threshold
// breaches) and may enqueue auto-proposals. Proposals always enter as
// PENDING_APPROVAL; the agent never executes anything itself.
func (e *Engine) runAgent(ctx context.Context) error {
	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}
	for i := range tracked {
		doc := &tracked[i]
		e.alertStalePending(doc.DocID)
		e.alertLowGas(ctx, doc)
		e.alertThresholds(doc.DocID)
		e.proposeRebalance(ctx, doc.DocID)
	}
	return nil
}

// alertStalePending audits commands waiting for a decision for too long.
func (e *Engine) alertStalePending(docID string) {
	cmds, err := e.store.ListRecentCommands(docID, 50)
	if err != nil {
		return
	}
	cutoff := e.now().Add(-staleAlertAge)
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Status != repo.StatusPendingApproval || cmd.UpdatedAt.After(cutoff) {
			continue
		}
		e.onceAlert(docID, "STALE_"+cmd.CmdID,
			fmt.Sprintf("alert: %s has waited for approval since %s", cmd.CmdID, cmd.UpdatedAt.Format(time.RFC3339)))
	}
}

// alertLowGas warns when the wallet cannot cover ~10 plain transfers.
func (e *Engine) alertLowGas(ctx context.Context, doc *repo.Doc) {
	if doc.PrimaryAddress == "" {
		return
	}
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return
	}
	balance, err := evm.NativeBalance(ctx, doc.PrimaryAddress)
	if err != nil {
		return
	}
	fee, err := evm.EstimateFee(ctx)
	if err != nil {
		return
	}
	need := new(big.Int).Mul(fee, big.NewInt(lowGasFactor))
	if balance.Cmp(need) < 0 {
		e.onceAlert(doc.DocID, "LOWGAS",
			fmt.Sprintf("alert: low gas on %s, balance covers fewer than %d transfers", doc.PrimaryAddress, lowGasFactor))
	}
}

// alertThresholds compares armed price alerts against the cached mids.
func (e *Engine) alertThresholds(docID string) {
	cfg, err := e.store.ListDocConfig(docID)
	if err != nil {
		return
	}
	for key, value := range cfg {
		if !strings.HasPrefix(key, alertKeyPrefix) || strings.HasPrefix(key, proposalPrefix) {
			continue
		}
		coin := strings.TrimPrefix(key, alertKeyPrefix)
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil || threshold <= 0 {
			continue
		}
		snap, err := e.cachedPrice(coin)
		if err != nil {
			continue
		}
		if snap.Mid >= threshold {
			e.onceAlert(docID, "THRESHOLD_"+coin,
				fmt.Sprintf("alert: %s at $%g crossed threshold $%g", coin, snap.Mid, threshold))
		}
	}
}

// proposeRebalance enqueues a pending rebalance command when the user
// opted in, subject to cooldown and dedupe against recent commands.
func (e *Engine) proposeRebalance(ctx context.Context, docID string) {
	enabled, err := e.store.GetDocConfig(docID, cfgKeyAutoRebalance)
	if err != nil || !strings.EqualFold(enabled, "ON") {
		return
	}

	raw := "DW REBALANCE 50"
	if !e.cooldownElapsed(docID, "REBALANCE") {
		return
	}
	if e.recentlyProposed(docID, raw) {
		return
	}

	parsed, err := command.Parse(raw)
	if err != nil {
		return
	}
	cmd := &repo.Command{
		CmdID:      newID(),
		DocID:      docID,
		Raw:        raw,
		ParsedJSON: marshalParsed(parsed),
		Status:     repo.StatusPendingApproval,
	}
	if err := e.store.InsertCommand(cmd); err != nil {
		common.DocLogger("agent", docID).Errorf("failed to enqueue proposal: %v", err)
		return
	}
	e.appendCommandRow(ctx, cmd, raw)
	e.audit(docID, fmt.Sprintf("%s proposed by agent: %s", cmd.CmdID, raw))
	e.markCooldown(docID, "REBALANCE")
}

// recentlyProposed reports whether an identical non-terminal command is
// already queued.
func (e *Engine) recentlyProposed(docID, raw string) bool {
	cmds, err := e.store.ListRecentCommands(docID, 20)
	if err != nil {
		return true
	}
	for i := range cmds {
		if cmds[i].Raw == raw && !cmds[i].Status.Terminal() {
			return true
		}
	}
	return false
}

func (e *Engine) cooldownElapsed(docID, key string) bool {
	last, err := e.store.GetDocConfig(docID, proposalPrefix+key)
	if err != nil || last == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return true
	}
	cooldown := e.cfg.Engine.AgentCooldown
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return e.now().Sub(t) >= cooldown
}

func (e *Engine) markCooldown(docID, key string) {
	_ = e.store.SetDocConfig(docID, proposalPrefix+key, e.now().Format(time.RFC3339))
}

// onceAlert audits an alert at most once per cooldown window per key.
func (e *Engine) onceAlert(docID, key, message string) {
	if !e.cooldownElapsed(docID, "ALERT_"+key) {
		return
	}
	e.audit(docID, message)
	e.activity(docID, "ALERT", message, "")
	e.markCooldown(docID, "ALERT_"+key)
}
