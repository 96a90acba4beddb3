package engine

import (
	"context"
	"fmt"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

// runSchedules spawns one approved command per due schedule. The spawn,
// run counter and next-run advance commit in a single transaction, so a
// crash never double-spawns or silently skips a run.
func (e *Engine) runSchedules(ctx context.Context) error {
	due, err := e.store.ListDueSchedules(e.now())
	if err != nil {
		return err
	}

	for i := range due {
		sch := &due[i]
		log := common.DocLogger("scheduler", sch.DocID).WithField("schedule", sch.ScheduleID)

		raw := sch.InnerCommand
		if !command.HasPrefix(raw) {
			raw = command.Prefix + " " + raw
		}
		parsed, perr := command.Parse(raw)
		if perr != nil {
			// A schedule whose inner command no longer parses is dead;
			// cancel instead of failing forever.
			log.Warnf("inner command invalid, cancelling: %v", perr)
			if err := e.store.CancelSchedule(sch.ScheduleID); err != nil {
				log.Errorf("failed to cancel schedule: %v", err)
			}
			e.audit(sch.DocID, fmt.Sprintf("schedule %s cancelled: inner command invalid: %v", sch.ScheduleID, perr))
			continue
		}

		cmd := &repo.Command{
			CmdID:      newID(),
			DocID:      sch.DocID,
			Raw:        raw,
			ParsedJSON: marshalParsed(parsed),
			Status:     repo.StatusApproved,
		}
		if err := e.store.AdvanceScheduleWithCommand(sch.ScheduleID, cmd); err != nil {
			log.Errorf("failed to advance schedule: %v", err)
			continue
		}

		run := sch.TotalRuns + 1
		display := fmt.Sprintf("[SCHED:%s#%d] %s", sch.ScheduleID, run, raw)
		e.appendCommandRow(ctx, cmd, display)
		e.audit(sch.DocID, fmt.Sprintf("schedule %s spawned %s (run %d)", sch.ScheduleID, cmd.CmdID, run))
		log.WithField("cmd", cmd.CmdID).Infof("spawned run %d", run)
	}
	return nil
}
