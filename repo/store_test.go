package repo

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertCommand(t *testing.T, s *Store, cmdID, docID string, status Status) {
	t.Helper()
	require.NoError(t, s.InsertCommand(&Command{
		CmdID:  cmdID,
		DocID:  docID,
		Raw:    "DW STATUS",
		Status: status,
	}))
}

func TestDocLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.UpsertDoc("doc-1", "Treasury One"))
	require.NoError(t, s.SetDocAddresses("doc-1", "0xabc", "SP123"))
	require.NoError(t, s.SetDocLastUserHash("doc-1", "deadbeef"))

	// Re-upsert keeps addresses and hash.
	require.NoError(t, s.UpsertDoc("doc-1", "Treasury One (renamed)"))

	doc, err := s.Doc("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Treasury One (renamed)", doc.DisplayName)
	assert.Equal(t, "0xabc", doc.PrimaryAddress)
	assert.Equal(t, "SP123", doc.SecondaryAddress)
	assert.Equal(t, "deadbeef", doc.LastUserHash)

	require.NoError(t, s.RemoveDoc("doc-1"))
	_, err = s.Doc("doc-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{name: "pending to approved", from: StatusPendingApproval, to: StatusApproved},
		{name: "pending to rejected", from: StatusPendingApproval, to: StatusRejected},
		{name: "pending re-parsed", from: StatusPendingApproval, to: StatusPendingApproval},
		{name: "pending edited to garbage", from: StatusPendingApproval, to: StatusInvalid},
		{name: "invalid re-parsed", from: StatusInvalid, to: StatusPendingApproval},
		{name: "approved to executing", from: StatusApproved, to: StatusExecuting},
		{name: "approved straight to executed", from: StatusApproved, to: StatusExecuted, wantErr: true},
		{name: "pending to executing", from: StatusPendingApproval, to: StatusExecuting, wantErr: true},
		{name: "invalid to executing", from: StatusInvalid, to: StatusExecuting, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			insertCommand(t, s, "cmd-1", "doc-1", tt.from)

			err := s.SetCommandStatus("cmd-1", tt.to, Update{})
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrIllegalTransition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTerminalIsWriteOnce(t *testing.T) {
	for _, terminal := range []Status{StatusExecuted, StatusFailed, StatusRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			s := openTestStore(t)
			insertCommand(t, s, "cmd-1", "doc-1", StatusApproved)
			require.NoError(t, s.SetCommandStatus("cmd-1", StatusExecuting, Update{}))
			switch terminal {
			case StatusRejected:
				// Rejection only happens from PENDING_APPROVAL; rebuild.
				s = openTestStore(t)
				insertCommand(t, s, "cmd-1", "doc-1", StatusPendingApproval)
				require.NoError(t, s.SetCommandStatus("cmd-1", StatusRejected, Update{}))
			default:
				require.NoError(t, s.SetCommandStatus("cmd-1", terminal, Update{ResultText: "done"}))
			}

			for _, next := range []Status{StatusPendingApproval, StatusApproved, StatusExecuting, StatusExecuted, StatusFailed} {
				err := s.SetCommandStatus("cmd-1", next, Update{})
				assert.True(t, errors.Is(err, ErrIllegalTransition), "terminal %s accepted %s", terminal, next)
			}
		})
	}
}

func TestExecutingGateIsExclusive(t *testing.T) {
	s := openTestStore(t)
	insertCommand(t, s, "cmd-1", "doc-1", StatusApproved)

	require.NoError(t, s.SetCommandStatus("cmd-1", StatusExecuting, Update{}))
	err := s.SetCommandStatus("cmd-1", StatusExecuting, Update{})
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func TestUpdateCommandParseLockedAfterApproval(t *testing.T) {
	s := openTestStore(t)
	insertCommand(t, s, "cmd-1", "doc-1", StatusApproved)

	err := s.UpdateCommandParse("cmd-1", "DW PRICE", "", StatusPendingApproval, "")
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func TestUpdateCommandParseClearsResultFields(t *testing.T) {
	s := openTestStore(t)
	insertCommand(t, s, "cmd-1", "doc-1", StatusInvalid)
	require.NoError(t, s.SetCommandStatus("cmd-1", StatusInvalid, Update{ErrorText: "bad verb"}))

	require.NoError(t, s.UpdateCommandParse("cmd-1", "DW STATUS", `{"type":"STATUS"}`, StatusPendingApproval, ""))

	cmd, err := s.Command("cmd-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, cmd.Status)
	assert.Equal(t, "DW STATUS", cmd.Raw)
	assert.Empty(t, cmd.ErrorText)
	assert.Empty(t, cmd.ResultText)
}

func TestNextApprovedCommandFIFO(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	times := []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)}
	i := 0
	s.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	insertCommand(t, s, "cmd-late", "doc-1", StatusApproved)
	insertCommand(t, s, "cmd-first", "doc-1", StatusApproved)
	insertCommand(t, s, "cmd-mid", "doc-2", StatusApproved)

	s.now = time.Now
	next, err := s.NextApprovedCommand()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "cmd-first", next.CmdID)

	queued, err := s.ListQueuedCommands("doc-1")
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "cmd-first", queued[0].CmdID)
	assert.Equal(t, "cmd-late", queued[1].CmdID)
}

func TestFailStaleApprovedCommands(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return old }
	insertCommand(t, s, "cmd-stale", "doc-1", StatusApproved)

	s.now = time.Now
	insertCommand(t, s, "cmd-fresh", "doc-1", StatusApproved)

	failed, err := s.FailStaleApprovedCommands(time.Hour)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "cmd-stale", failed[0].CmdID)

	cmd, err := s.Command("cmd-stale")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cmd.Status)
	assert.Equal(t, "stale", cmd.ErrorText)

	cmd, err = s.Command("cmd-fresh")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, cmd.Status)
}

func TestFailStaleExecutingCommands(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-time.Minute)
	s.now = func() time.Time { return old }
	insertCommand(t, s, "cmd-1", "doc-1", StatusApproved)
	require.NoError(t, s.SetCommandStatus("cmd-1", StatusExecuting, Update{}))

	s.now = time.Now
	failed, err := s.FailStaleExecutingCommands(time.Second)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	cmd, err := s.Command("cmd-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, cmd.Status)
	assert.Equal(t, "stale", cmd.ErrorText)
}

func TestScheduleAdvanceIsAtomic(t *testing.T) {
	s := openTestStore(t)
	start := time.Now().Add(-time.Second)
	require.NoError(t, s.InsertSchedule(&Schedule{
		ScheduleID:    "sched-1",
		DocID:         "doc-1",
		IntervalHours: 1,
		InnerCommand:  "DW STATUS",
		NextRunAt:     start,
	}))

	due, err := s.ListDueSchedules(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)

	err = s.AdvanceScheduleWithCommand("sched-1", &Command{
		CmdID:  "cmd-spawned",
		DocID:  "doc-1",
		Raw:    "DW STATUS",
		Status: StatusApproved,
	})
	require.NoError(t, err)

	sch, err := s.Schedule("sched-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sch.TotalRuns)
	assert.True(t, sch.NextRunAt.After(time.Now()), "next_run_at must move into the future")

	cmd, err := s.Command("cmd-spawned")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, cmd.Status)

	due, err = s.ListDueSchedules(time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCancelledScheduleDoesNotAdvance(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertSchedule(&Schedule{
		ScheduleID:    "sched-1",
		DocID:         "doc-1",
		IntervalHours: 1,
		InnerCommand:  "DW STATUS",
	}))
	require.NoError(t, s.CancelSchedule("sched-1"))

	err := s.AdvanceScheduleWithCommand("sched-1", &Command{CmdID: "cmd-x", DocID: "doc-1", Status: StatusApproved})
	assert.Error(t, err)
	_, err = s.Command("cmd-x")
	assert.True(t, errors.Is(err, ErrNotFound), "no command may be spawned for a cancelled schedule")
}

func TestOrderTriggerIsOneShot(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertOrder(&ConditionalOrder{
		OrderID:      "ord-1",
		DocID:        "doc-1",
		Type:         OrderStopLoss,
		Base:         "STX",
		Quote:        "USD",
		TriggerPrice: 0.80,
		Qty:          "10",
	}))

	err := s.TriggerOrderWithCommand("ord-1", &Command{
		CmdID:  "cmd-sell",
		DocID:  "doc-1",
		Raw:    "DW STX_SEND ...",
		Status: StatusApproved,
	})
	require.NoError(t, err)

	order, err := s.Order("ord-1")
	require.NoError(t, err)
	assert.Equal(t, OrderTriggered, order.Status)
	assert.Equal(t, "cmd-sell", order.TriggeredCmdID)

	// Second trigger must fail and spawn nothing.
	err = s.TriggerOrderWithCommand("ord-1", &Command{CmdID: "cmd-sell-2", DocID: "doc-1", Status: StatusApproved})
	assert.Error(t, err)
	_, err = s.Command("cmd-sell-2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPriceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertPrice(&PriceSnapshot{Pair: "STX-USD", Mid: 0.79, Source: "primary"}))

	snap, err := s.Price("STX-USD")
	require.NoError(t, err)
	assert.Equal(t, 0.79, snap.Mid)
	assert.False(t, snap.UpdatedAt.IsZero())

	_, err = s.Price("BTC-USD")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDocConfig(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetDocConfig("doc-1", "EVM_ADDRESS", "0xabc"))
	require.NoError(t, s.SetDocConfig("doc-1", "STATUS", "READY"))
	require.NoError(t, s.SetDocConfig("doc-2", "STATUS", "NEW"))

	value, err := s.GetDocConfig("doc-1", "EVM_ADDRESS")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", value)

	value, err = s.GetDocConfig("doc-1", "MISSING")
	require.NoError(t, err)
	assert.Empty(t, value)

	all, err := s.ListDocConfig("doc-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"EVM_ADDRESS": "0xabc", "STATUS": "READY"}, all)
}

func TestSecretsBlob(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.HasSecrets("doc-1"))

	blob := []byte{0x01, 0x02, 0xff}
	require.NoError(t, s.PutSecretsBlob("doc-1", blob))
	assert.True(t, s.HasSecrets("doc-1"))

	got, err := s.SecretsBlob("doc-1")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestActivityCap(t *testing.T) {
	s := openTestStore(t)
	s.SetActivityCap(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendActivity(&Activity{
			DocID:   "doc-1",
			Type:    "TRANSFER",
			Details: string(rune('a' + i)),
		}))
	}

	entries, err := s.ListActivity("doc-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].Details)
	assert.Equal(t, "c", entries[2].Details)
}

func TestAuditOrdering(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AppendAudit("doc-1", "first"))
	require.NoError(t, s.AppendAudit("doc-1", "second"))
	require.NoError(t, s.AppendAudit("doc-2", "other doc"))

	events, err := s.ListAudit("doc-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Message)
	assert.Equal(t, "first", events[1].Message)
}

func TestCountCommandsByStatus(t *testing.T) {
	s := openTestStore(t)
	insertCommand(t, s, "c1", "doc-1", StatusApproved)
	insertCommand(t, s, "c2", "doc-1", StatusApproved)
	insertCommand(t, s, "c3", "doc-1", StatusPendingApproval)

	counts, err := s.CountCommandsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusApproved])
	assert.Equal(t, 1, counts[StatusPendingApproval])
}
