package repo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Naveen-807/Franky-Docs-sub000/db/bolt"
)

// Update carries the optional result fields applied alongside a status
// transition.
type Update struct {
	ResultText string
	ErrorText  string
	TxRef      string
}

// InsertCommand stores a brand-new command record. The initial status
// must be INVALID, PENDING_APPROVAL or APPROVED; Seq and timestamps are
// assigned here.
func (s *Store) InsertCommand(cmd *Command) error {
	switch cmd.Status {
	case StatusInvalid, StatusPendingApproval, StatusApproved:
	default:
		return fmt.Errorf("%w: new command may not start as %s", ErrIllegalTransition, cmd.Status)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		var existing Command
		if err := bolt.GetJSONTx(tx, bucketCommands, cmd.CmdID, &existing); err == nil {
			return fmt.Errorf("command %s already exists", cmd.CmdID)
		}

		seq, err := bolt.NextSequenceTx(tx, bucketCommands)
		if err != nil {
			return err
		}
		cmd.Seq = seq
		cmd.CreatedAt = s.now()
		cmd.UpdatedAt = cmd.CreatedAt
		return bolt.PutJSONTx(tx, bucketCommands, cmd.CmdID, cmd)
	})
}

// Command returns one command record.
func (s *Store) Command(cmdID string) (*Command, error) {
	var cmd Command
	if err := s.db.GetJSON(bucketCommands, cmdID, &cmd); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: command %s", ErrNotFound, cmdID)
		}
		return nil, err
	}
	return &cmd, nil
}

// allowedTransition encodes the command state machine. Terminal states
// accept nothing; the executor owns APPROVED to EXECUTING.
func allowedTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusInvalid:
		return to == StatusInvalid || to == StatusPendingApproval || to == StatusApproved
	case StatusPendingApproval:
		return to == StatusPendingApproval || to == StatusApproved ||
			to == StatusRejected || to == StatusInvalid
	case StatusApproved:
		return to == StatusExecuting
	case StatusExecuting:
		return to == StatusExecuted || to == StatusFailed
	}
	return false
}

// SetCommandStatus transitions a command, enforcing the state machine.
// ErrIllegalTransition is returned on any violation; the record is left
// untouched. bbolt serializes writers, so a concurrent second attempt at
// APPROVED to EXECUTING for the same command loses and gets the error:
// this is the at-most-once execution gate.
func (s *Store) SetCommandStatus(cmdID string, to Status, upd Update) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.setStatusTx(tx, cmdID, to, upd)
	})
}

func (s *Store) setStatusTx(tx *bbolt.Tx, cmdID string, to Status, upd Update) error {
	var cmd Command
	if err := bolt.GetJSONTx(tx, bucketCommands, cmdID, &cmd); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return fmt.Errorf("%w: command %s", ErrNotFound, cmdID)
		}
		return err
	}

	if !allowedTransition(cmd.Status, to) {
		return fmt.Errorf("%w: %s -> %s (command %s)", ErrIllegalTransition, cmd.Status, to, cmdID)
	}

	cmd.Status = to
	if upd.ResultText != "" {
		cmd.ResultText = upd.ResultText
	}
	if upd.ErrorText != "" {
		cmd.ErrorText = upd.ErrorText
	}
	if upd.TxRef != "" {
		cmd.TxRef = upd.TxRef
	}
	if to == StatusPendingApproval {
		// A re-parsed edit starts clean.
		cmd.ErrorText = ""
		cmd.ResultText = ""
		cmd.TxRef = ""
	}
	cmd.UpdatedAt = s.now()
	return bolt.PutJSONTx(tx, bucketCommands, cmdID, cmd)
}

// UpdateCommandParse replaces the raw command and parse outcome of an
// editable record, as the poll tick does when a user edits a row. The
// record must still be editable and the target status must be a parse
// outcome.
func (s *Store) UpdateCommandParse(cmdID, raw, parsedJSON string, to Status, errorText string) error {
	switch to {
	case StatusInvalid, StatusPendingApproval, StatusApproved:
	default:
		return fmt.Errorf("%w: re-parse may not target %s", ErrIllegalTransition, to)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		var cmd Command
		if err := bolt.GetJSONTx(tx, bucketCommands, cmdID, &cmd); err != nil {
			if errors.Is(err, bolt.ErrKeyNotFound) {
				return fmt.Errorf("%w: command %s", ErrNotFound, cmdID)
			}
			return err
		}

		if !cmd.Status.Editable() {
			return fmt.Errorf("%w: %s is not editable", ErrIllegalTransition, cmd.Status)
		}

		cmd.Raw = raw
		cmd.ParsedJSON = parsedJSON
		cmd.Status = to
		cmd.ErrorText = errorText
		cmd.ResultText = ""
		cmd.TxRef = ""
		cmd.UpdatedAt = s.now()
		return bolt.PutJSONTx(tx, bucketCommands, cmdID, cmd)
	})
}

func (s *Store) listCommands(filter func(*Command) bool) ([]Command, error) {
	var cmds []Command
	err := s.db.ForEachJSON(bucketCommands,
		func() interface{} { return &Command{} },
		func(key string, value interface{}) error {
			cmd := value.(*Command)
			if filter == nil || filter(cmd) {
				cmds = append(cmds, *cmd)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].CreatedAt.Equal(cmds[j].CreatedAt) {
			return cmds[i].Seq < cmds[j].Seq
		}
		return cmds[i].CreatedAt.Before(cmds[j].CreatedAt)
	})
	return cmds, nil
}

// ListQueuedCommands returns the APPROVED commands of one document
// awaiting execution, oldest first.
func (s *Store) ListQueuedCommands(docID string) ([]Command, error) {
	return s.listCommands(func(c *Command) bool {
		return c.DocID == docID && c.Status == StatusApproved
	})
}

// NextApprovedCommand returns the globally oldest APPROVED command, or
// nil when none is waiting.
func (s *Store) NextApprovedCommand() (*Command, error) {
	cmds, err := s.listCommands(func(c *Command) bool {
		return c.Status == StatusApproved
	})
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	return &cmds[0], nil
}

// ListRecentCommands returns the n newest commands of one document,
// newest first.
func (s *Store) ListRecentCommands(docID string, n int) ([]Command, error) {
	cmds, err := s.listCommands(func(c *Command) bool {
		return c.DocID == docID
	})
	if err != nil {
		return nil, err
	}
	// listCommands is oldest-first; flip and trim.
	for i, j := 0, len(cmds)-1; i < j; i, j = i+1, j-1 {
		cmds[i], cmds[j] = cmds[j], cmds[i]
	}
	if n > 0 && len(cmds) > n {
		cmds = cmds[:n]
	}
	return cmds, nil
}

// CountCommandsByStatus returns command counts keyed by status.
func (s *Store) CountCommandsByStatus() (map[Status]int, error) {
	counts := make(map[Status]int)
	err := s.db.ForEachJSON(bucketCommands,
		func() interface{} { return &Command{} },
		func(key string, value interface{}) error {
			counts[value.(*Command).Status]++
			return nil
		})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// FailStaleApprovedCommands force-fails commands that sat APPROVED longer
// than olderThan. Returns the failed commands. This bypasses the normal
// EXECUTING step: a stale command is surfaced FAILED without ever being
// executed.
func (s *Store) FailStaleApprovedCommands(olderThan time.Duration) ([]Command, error) {
	return s.failStale(StatusApproved, olderThan)
}

// FailStaleExecutingCommands force-fails commands stranded in EXECUTING,
// as happens when the process dies mid-execution. Run once at startup.
func (s *Store) FailStaleExecutingCommands(olderThan time.Duration) ([]Command, error) {
	return s.failStale(StatusExecuting, olderThan)
}

func (s *Store) failStale(from Status, olderThan time.Duration) ([]Command, error) {
	cutoff := s.now().Add(-olderThan)
	var failed []Command

	err := s.db.Update(func(tx *bbolt.Tx) error {
		var stale []Command
		err := bolt.ForEachJSONTx(tx, bucketCommands,
			func() interface{} { return &Command{} },
			func(key string, value interface{}) error {
				cmd := value.(*Command)
				if cmd.Status == from && cmd.UpdatedAt.Before(cutoff) {
					stale = append(stale, *cmd)
				}
				return nil
			})
		if err != nil {
			return err
		}

		for i := range stale {
			stale[i].Status = StatusFailed
			stale[i].ErrorText = "stale"
			stale[i].UpdatedAt = s.now()
			if err := bolt.PutJSONTx(tx, bucketCommands, stale[i].CmdID, stale[i]); err != nil {
				return err
			}
		}
		failed = stale
		return nil
	})
	return failed, err
}
