package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/statemanager"
)

// Decide applies an approval decision arriving from the HTTP surface.
// The decision is validated against the command's document and the state
// machine; on success the document row is mirrored and the decision
// audited. Returns the updated record.
func (e *Engine) Decide(ctx context.Context, docID, cmdID, decision string) (*repo.Command, error) {
	decision = strings.ToUpper(strings.TrimSpace(decision))
	var target repo.Status
	switch decision {
	case string(repo.StatusApproved):
		target = repo.StatusApproved
	case string(repo.StatusRejected):
		target = repo.StatusRejected
	default:
		return nil, fmt.Errorf("invalid decision %q, expected APPROVED or REJECTED", decision)
	}

	cmd, err := e.store.Command(cmdID)
	if err != nil {
		return nil, err
	}
	if cmd.DocID != docID {
		return nil, fmt.Errorf("%w: command %s in doc %s", repo.ErrNotFound, cmdID, docID)
	}

	if err := e.store.SetCommandStatus(cmdID, target, repo.Update{}); err != nil {
		return nil, err
	}
	cmd, err = e.store.Command(cmdID)
	if err != nil {
		return nil, err
	}

	e.audit(docID, fmt.Sprintf("%s %s (web)", cmdID, decision))
	e.mirrorCommand(ctx, cmd)
	return cmd, nil
}

// TickStates exposes the tick tracker snapshot for the status API.
func (e *Engine) TickStates() []statemanager.TickState {
	return e.tracker.Snapshot()
}

// Healthy reports whether the most recent run of every tick succeeded.
func (e *Engine) Healthy() bool { return e.tracker.Healthy() }
