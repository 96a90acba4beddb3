package repo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Naveen-807/Franky-Docs-sub000/db/bolt"
)

// InsertSchedule stores a new schedule as ACTIVE.
func (s *Store) InsertSchedule(sch *Schedule) error {
	sch.Status = ScheduleActive
	sch.CreatedAt = s.now()
	if sch.NextRunAt.IsZero() {
		sch.NextRunAt = s.now().Add(intervalDuration(sch.IntervalHours))
	}
	return s.db.PutJSON(bucketSchedules, sch.ScheduleID, sch)
}

// Schedule returns one schedule.
func (s *Store) Schedule(scheduleID string) (*Schedule, error) {
	var sch Schedule
	if err := s.db.GetJSON(bucketSchedules, scheduleID, &sch); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: schedule %s", ErrNotFound, scheduleID)
		}
		return nil, err
	}
	return &sch, nil
}

// ListSchedules returns the schedules of one document, or all schedules
// when docID is empty.
func (s *Store) ListSchedules(docID string) ([]Schedule, error) {
	var schedules []Schedule
	err := s.db.ForEachJSON(bucketSchedules,
		func() interface{} { return &Schedule{} },
		func(key string, value interface{}) error {
			sch := value.(*Schedule)
			if docID == "" || sch.DocID == docID {
				schedules = append(schedules, *sch)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].ScheduleID < schedules[j].ScheduleID
	})
	return schedules, nil
}

// ListDueSchedules returns the ACTIVE schedules whose next run is at or
// before now.
func (s *Store) ListDueSchedules(now time.Time) ([]Schedule, error) {
	schedules, err := s.ListSchedules("")
	if err != nil {
		return nil, err
	}
	due := schedules[:0]
	for _, sch := range schedules {
		if sch.Status == ScheduleActive && !sch.NextRunAt.After(now) {
			due = append(due, sch)
		}
	}
	return due, nil
}

// AdvanceScheduleWithCommand emits the spawned command and advances the
// schedule in one transaction: next_run_at moves forward by the interval
// and total_runs increments exactly once per spawn.
func (s *Store) AdvanceScheduleWithCommand(scheduleID string, cmd *Command) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var sch Schedule
		if err := bolt.GetJSONTx(tx, bucketSchedules, scheduleID, &sch); err != nil {
			if errors.Is(err, bolt.ErrKeyNotFound) {
				return fmt.Errorf("%w: schedule %s", ErrNotFound, scheduleID)
			}
			return err
		}
		if sch.Status != ScheduleActive {
			return fmt.Errorf("schedule %s is %s", scheduleID, sch.Status)
		}

		seq, err := bolt.NextSequenceTx(tx, bucketCommands)
		if err != nil {
			return err
		}
		cmd.Seq = seq
		cmd.CreatedAt = s.now()
		cmd.UpdatedAt = cmd.CreatedAt
		if err := bolt.PutJSONTx(tx, bucketCommands, cmd.CmdID, cmd); err != nil {
			return err
		}

		sch.TotalRuns++
		sch.NextRunAt = sch.NextRunAt.Add(intervalDuration(sch.IntervalHours))
		// A long outage must not cause a burst of catch-up spawns.
		if !sch.NextRunAt.After(s.now()) {
			sch.NextRunAt = s.now().Add(intervalDuration(sch.IntervalHours))
		}
		return bolt.PutJSONTx(tx, bucketSchedules, scheduleID, sch)
	})
}

// CancelSchedule marks a schedule CANCELLED.
func (s *Store) CancelSchedule(scheduleID string) error {
	var sch Schedule
	if err := s.db.GetJSON(bucketSchedules, scheduleID, &sch); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return fmt.Errorf("%w: schedule %s", ErrNotFound, scheduleID)
		}
		return err
	}
	sch.Status = ScheduleCancelled
	return s.db.PutJSON(bucketSchedules, scheduleID, sch)
}

func intervalDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
