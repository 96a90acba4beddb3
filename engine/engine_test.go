package engine

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naveen-807/Franky-Docs-sub000/config"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/docs/memory"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/statemanager"
	"github.com/Naveen-807/Franky-Docs-sub000/vault"
)

const testDoc = "doc-1"

// fakeEVM is an in-memory ports.EVMClient.
type fakeEVM struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	sends    []string
	fee      *big.Int
}

func newFakeEVM() *fakeEVM {
	return &fakeEVM{balances: make(map[string]*big.Int), fee: big.NewInt(1000)}
}

func (f *fakeEVM) setBalance(addr string, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = wei
}

func (f *fakeEVM) NativeBalance(ctx context.Context, addr string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeEVM) TokenBalance(ctx context.Context, token, addr string) (*big.Int, uint8, error) {
	return big.NewInt(5_000_000), 6, nil
}

func (f *fakeEVM) SendNative(ctx context.Context, priv, to string, wei *big.Int) (*ports.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, fmt.Sprintf("native %s %s", to, wei))
	return &ports.TxResult{TxHash: "0xevm1"}, nil
}

func (f *fakeEVM) SendToken(ctx context.Context, priv, token, to string, amount *big.Int) (*ports.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, fmt.Sprintf("token %s %s", to, amount))
	return &ports.TxResult{TxHash: "0xtok1"}, nil
}

func (f *fakeEVM) CallContract(ctx context.Context, priv, contract, sig string, args []string) (*ports.TxResult, error) {
	return &ports.TxResult{TxHash: "0xcall1"}, nil
}

func (f *fakeEVM) ReadContract(ctx context.Context, contract, sig string, args []string) ([]string, error) {
	return []string{"42"}, nil
}

func (f *fakeEVM) TxStatus(ctx context.Context, txHash string) (bool, bool, error) {
	return true, true, nil
}

func (f *fakeEVM) EstimateFee(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.fee), nil
}

// fakeStacks is an in-memory ports.StacksClient.
type fakeStacks struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeStacks) Balance(ctx context.Context, addr string) (*big.Int, error) {
	return big.NewInt(3_000_000), nil
}

func (f *fakeStacks) Send(ctx context.Context, priv, to string, micro *big.Int, memo string) (*ports.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, fmt.Sprintf("%s %s", to, micro))
	return &ports.TxResult{TxHash: "0xstx1"}, nil
}

func (f *fakeStacks) TxStatus(ctx context.Context, txID string) (bool, bool, error) {
	return true, true, nil
}

func (f *fakeStacks) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// fakeMarket serves one settable price per symbol.
type fakeMarket struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{prices: map[string]float64{"ETH": 3000, "STX": 1.0, "USDC": 1.0}}
}

func (f *fakeMarket) set(symbol string, p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = p
}

func (f *fakeMarket) Price(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[strings.ToUpper(symbol)], nil
}

type fakeFaucet struct{ calls int }

func (f *fakeFaucet) Fund(ctx context.Context, evmAddr, stacksAddr string) error {
	f.calls++
	return nil
}

// testEnv bundles a fully wired engine over the memory backend.
type testEnv struct {
	engine  *Engine
	store   *repo.Store
	backend *memory.Backend
	evm     *fakeEVM
	stacks  *fakeStacks
	market  *fakeMarket
	faucet  *fakeFaucet
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	backend := memory.New()
	backend.AddDocument(testDoc, "Treasury Doc")
	require.NoError(t, backend.EnsureTemplate(context.Background(), testDoc))
	require.NoError(t, store.UpsertDoc(testDoc, "Treasury Doc"))

	v, err := vault.New("test-master-key")
	require.NoError(t, err)

	evm := newFakeEVM()
	stacks := &fakeStacks{}
	market := newFakeMarket()
	faucet := &fakeFaucet{}

	cfg := &config.Config{}
	cfg.Engine.ExecutorBudget = 5
	cfg.Engine.StaleAfter = time.Hour
	cfg.Engine.PollFailureLimit = 3
	cfg.Server.PublicBaseURL = "http://test.local"

	env := &testEnv{
		store:   store,
		backend: backend,
		evm:     evm,
		stacks:  stacks,
		market:  market,
		faucet:  faucet,
		cfg:     cfg,
	}
	env.engine = New(cfg, store, backend, &ports.Set{
		EVM:          evm,
		Stacks:       stacks,
		Market:       market,
		Faucet:       faucet,
		USDCContract: "0x2222222222222222222222222222222222222222",
	}, v, statemanager.New())
	return env
}

func (env *testEnv) poll(t *testing.T) {
	t.Helper()
	require.NoError(t, env.engine.runPoll(context.Background()))
}

func (env *testEnv) execute(t *testing.T) {
	t.Helper()
	require.NoError(t, env.engine.runExecutor(context.Background()))
}

func (env *testEnv) commandsTable(t *testing.T) *docs.Table {
	t.Helper()
	tables, err := env.backend.LoadTables(context.Background(), testDoc)
	require.NoError(t, err)
	return tables[docs.TableCommands]
}

func (env *testEnv) onlyCommand(t *testing.T) *repo.Command {
	t.Helper()
	cmds, err := env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	return &cmds[0]
}

func TestFirstSetupEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW SETUP"))

	env.poll(t)
	env.execute(t)

	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusExecuted, cmd.Status)
	assert.Contains(t, cmd.ResultText, "EVM=0x")
	assert.Contains(t, cmd.ResultText, "STX=SP")
	assert.True(t, env.store.HasSecrets(testDoc))

	tables, err := env.backend.LoadTables(context.Background(), testDoc)
	require.NoError(t, err)
	cfg := map[string]string{}
	for _, row := range tables[docs.TableConfig].Rows {
		cfg[row.Cell(docs.ColConfigKey)] = row.Cell(docs.ColConfigValue)
	}
	assert.Contains(t, cfg["EVM_ADDRESS"], "0x")
	assert.Equal(t, "READY", cfg["STATUS"])

	// The record's cells are mirrored into the row.
	table := env.commandsTable(t)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, cmd.CmdID, table.Rows[0].Cell(docs.ColCmdID))
	assert.Equal(t, "EXECUTED", table.Rows[0].Cell(docs.ColCmdStatus))
}

func TestEditAfterExecutionIsLocked(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW SETUP"))
	env.poll(t)
	env.execute(t)
	before := env.onlyCommand(t)

	// User rewrites the executed row's command cell.
	require.NoError(t, env.backend.UserType(testDoc, docs.TableCommands, 0, docs.ColCmdCommand, "DW STATUS"))
	env.poll(t)

	after := env.onlyCommand(t)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Raw, after.Raw)

	table := env.commandsTable(t)
	assert.Equal(t, "Command locked after approval/execution", table.Rows[0].Cell(docs.ColCmdError))
}

func TestApprovalViaCellEdit(t *testing.T) {
	env := newTestEnv(t)
	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW EVM_SEND "+to+" 0.5"))
	env.poll(t)

	cmd := env.onlyCommand(t)
	require.Equal(t, repo.StatusPendingApproval, cmd.Status)
	table := env.commandsTable(t)
	assert.Contains(t, table.Rows[0].Cell(docs.ColCmdApprovalURL), "/cmd/"+testDoc+"/"+cmd.CmdID)

	// Wallet and funds so execution succeeds.
	_, err := env.engine.provisionSecrets(context.Background(), testDoc)
	require.NoError(t, err)
	secrets, err := env.engine.secretsFor(testDoc)
	require.NoError(t, err)
	env.evm.setBalance(secrets.EVM.Address, big.NewInt(2e18))

	require.NoError(t, env.backend.UserType(testDoc, docs.TableCommands, 0, docs.ColCmdStatus, "APPROVED"))
	env.poll(t)
	cmd = env.onlyCommand(t)
	assert.Equal(t, repo.StatusApproved, cmd.Status)

	audits, err := env.store.ListAudit(testDoc, 10)
	require.NoError(t, err)
	found := false
	for _, a := range audits {
		if strings.Contains(a.Message, cmd.CmdID+" APPROVED (cell-edit)") {
			found = true
		}
	}
	assert.True(t, found, "cell-edit approval must be audited")

	env.execute(t)
	cmd = env.onlyCommand(t)
	assert.Equal(t, repo.StatusExecuted, cmd.Status)
	assert.Equal(t, "0xevm1", cmd.TxRef)
}

func TestRejectionViaCellEdit(t *testing.T) {
	env := newTestEnv(t)
	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW EVM_SEND "+to+" 0.5"))
	env.poll(t)

	require.NoError(t, env.backend.UserType(testDoc, docs.TableCommands, 0, docs.ColCmdStatus, "rejected"))
	env.poll(t)
	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusRejected, cmd.Status)

	env.execute(t)
	assert.Equal(t, repo.StatusRejected, env.onlyCommand(t).Status)
}

func TestInvalidCommandSurfacesError(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW EVM_SEND nonsense 1"))
	env.poll(t)

	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusInvalid, cmd.Status)
	table := env.commandsTable(t)
	assert.Contains(t, table.Rows[0].Cell(docs.ColCmdError), "nonsense")
}

func TestEditReparsesEditableCommand(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW EVM_SEND nonsense 1"))
	env.poll(t)
	require.Equal(t, repo.StatusInvalid, env.onlyCommand(t).Status)

	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.UserType(testDoc, docs.TableCommands, 0, docs.ColCmdCommand, "DW EVM_SEND "+to+" 1"))
	env.poll(t)

	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusPendingApproval, cmd.Status)
	assert.Contains(t, cmd.Raw, to)
	table := env.commandsTable(t)
	assert.Empty(t, table.Rows[0].Cell(docs.ColCmdError))
}

func TestAutoDetectRewritesCell(t *testing.T) {
	env := newTestEnv(t)
	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "send 10 USDC to "+to))
	env.poll(t)

	table := env.commandsTable(t)
	assert.Equal(t, "DW PAYOUT 10 USDC TO "+to, table.Rows[0].Cell(docs.ColCmdCommand))
	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusPendingApproval, cmd.Status)
}

func TestHashSkipAvoidsRewrites(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW SETUP"))
	env.poll(t)

	// Quiescent: a second poll must not touch the repository record.
	before := env.onlyCommand(t)
	env.poll(t)
	after := env.onlyCommand(t)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	doc, err := env.store.Doc(testDoc)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.LastUserHash)
}

func TestPollFailureRemovesDocAtLimit(t *testing.T) {
	env := newTestEnv(t)
	env.backend.FailLoads[testDoc] = true

	for i := 0; i < env.cfg.Engine.PollFailureLimit; i++ {
		env.poll(t)
	}
	_, err := env.store.Doc(testDoc)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestStopLossTriggersOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secrets, err := env.engine.provisionSecrets(ctx, testDoc)
	require.NoError(t, err)
	require.NotNil(t, secrets.Stacks)

	require.NoError(t, env.store.InsertOrder(&repo.ConditionalOrder{
		OrderID:      "ord-1",
		DocID:        testDoc,
		Type:         repo.OrderStopLoss,
		Base:         "STX",
		Quote:        "USD",
		TriggerPrice: 0.80,
		Qty:          "10",
		Status:       repo.OrderActive,
	}))

	env.market.set("STX", 0.79)
	require.NoError(t, env.engine.runPrice(ctx))

	order, err := env.store.Order("ord-1")
	require.NoError(t, err)
	assert.Equal(t, repo.OrderTriggered, order.Status)
	require.NotEmpty(t, order.TriggeredCmdID)

	spawned, err := env.store.Command(order.TriggeredCmdID)
	require.NoError(t, err)
	assert.Contains(t, spawned.Raw, "DW STX_SEND")
	assert.Contains(t, []repo.Status{repo.StatusApproved, repo.StatusExecuted}, spawned.Status)
	assert.Equal(t, 1, env.stacks.sendCount())

	// Price stays below trigger: no second spawn.
	require.NoError(t, env.engine.runPrice(ctx))
	cmds, err := env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
	assert.Equal(t, 1, env.stacks.sendCount())
}

func TestScheduleEmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.InsertSchedule(&repo.Schedule{
		ScheduleID:    "sch-1",
		DocID:         testDoc,
		IntervalHours: 1,
		InnerCommand:  "STATUS",
		NextRunAt:     time.Now().Add(-time.Second),
		Status:        repo.ScheduleActive,
	}))

	require.NoError(t, env.engine.runSchedules(ctx))

	sch, err := env.store.Schedule("sch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sch.TotalRuns)
	assert.True(t, sch.NextRunAt.After(time.Now()))

	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusApproved, cmd.Status)
	assert.Equal(t, "DW STATUS", cmd.Raw)

	table := env.commandsTable(t)
	require.Len(t, table.Rows, 1)
	assert.Contains(t, table.Rows[0].Cell(docs.ColCmdCommand), "[SCHED:sch-1#1]")

	// The prefixed row must not read as a user edit on the next poll.
	env.poll(t)
	assert.Equal(t, repo.StatusApproved, env.onlyCommand(t).Status)
}

func TestInvalidScheduleInnerCancels(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.InsertSchedule(&repo.Schedule{
		ScheduleID:    "sch-bad",
		DocID:         testDoc,
		IntervalHours: 1,
		InnerCommand:  "NO_SUCH_VERB xyz",
		NextRunAt:     time.Now().Add(-time.Second),
		Status:        repo.ScheduleActive,
	}))
	require.NoError(t, env.engine.runSchedules(context.Background()))

	sch, err := env.store.Schedule("sch-bad")
	require.NoError(t, err)
	assert.Equal(t, repo.ScheduleCancelled, sch.Status)

	cmds, err := env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestRestartSweepFailsExecuting(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW SETUP"))
	env.poll(t)

	cmd := env.onlyCommand(t)
	require.NoError(t, env.store.SetCommandStatus(cmd.CmdID, repo.StatusExecuting, repo.Update{}))

	env.engine.StartupSweep(context.Background())

	swept, err := env.store.Command(cmd.CmdID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusFailed, swept.Status)
	assert.Equal(t, "stale", swept.ErrorText)
}

func TestStaleApprovedSweep(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Engine.StaleAfter = time.Millisecond
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW SETUP"))
	env.poll(t)
	time.Sleep(5 * time.Millisecond)

	env.execute(t)
	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusFailed, cmd.Status)
	assert.Equal(t, "stale", cmd.ErrorText)
}

func TestExecutorBudget(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Engine.ExecutorBudget = 2

	for i := 0; i < 4; i++ {
		require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW STATUS"))
	}
	env.poll(t)
	env.execute(t)

	counts, err := env.store.CountCommandsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[repo.StatusExecuted])
	assert.Equal(t, 2, counts[repo.StatusApproved])

	env.execute(t)
	counts, err = env.store.CountCommandsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 4, counts[repo.StatusExecuted])
}

func TestChatExecuteQueuesCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.AppendRow(ctx, testDoc, docs.TableChat,
		docs.Row{"!execute send 10 USDC to " + to, ""}))

	require.NoError(t, env.engine.runChat(ctx))

	tables, err := env.backend.LoadTables(ctx, testDoc)
	require.NoError(t, err)
	agent := tables[docs.TableChat].Rows[0].Cell(docs.ColChatAgent)
	assert.Contains(t, agent, "Queued")

	cmd := env.onlyCommand(t)
	assert.Equal(t, repo.StatusPendingApproval, cmd.Status)
	assert.Equal(t, "DW PAYOUT 10 USDC TO "+to, cmd.Raw)
}

func TestChatSuggestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.backend.AppendRow(ctx, testDoc, docs.TableChat,
		docs.Row{"what's my balance", ""}))

	require.NoError(t, env.engine.runChat(ctx))

	tables, err := env.backend.LoadTables(ctx, testDoc)
	require.NoError(t, err)
	agent := tables[docs.TableChat].Rows[0].Cell(docs.ColChatAgent)
	assert.Contains(t, agent, "DW BALANCE")

	cmds, err := env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	assert.Empty(t, cmds, "suggestions must not queue commands")
}

func TestBalancesTickReplacesTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secrets, err := env.engine.provisionSecrets(ctx, testDoc)
	require.NoError(t, err)
	env.evm.setBalance(secrets.EVM.Address, big.NewInt(2e18))
	require.NoError(t, env.engine.runPrice(ctx)) // seed cached prices

	require.NoError(t, env.engine.runBalances(ctx))

	tables, err := env.backend.LoadTables(ctx, testDoc)
	require.NoError(t, err)
	rows := tables[docs.TableBalances].Rows
	require.Len(t, rows, 3) // ETH, USDC, STX

	assert.Equal(t, "EVM", rows[0].Cell(docs.ColBalLocation))
	assert.Equal(t, "ETH", rows[0].Cell(docs.ColBalAsset))
	assert.Contains(t, rows[0].Cell(docs.ColBalAmount), "2")
	assert.Contains(t, rows[0].Cell(docs.ColBalAmount), "$6,000")
}

func TestPayoutRuleExecutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.provisionSecrets(ctx, testDoc)
	require.NoError(t, err)

	// PayoutRules is not part of the template; the user adds it by hand.
	env.backend.AddTable(testDoc, docs.TablePayoutRules)
	require.NoError(t, env.backend.AppendRow(ctx, testDoc, docs.TablePayoutRules,
		docs.Row{"0x1111111111111111111111111111111111111111", "25", "USDC", "24", "", "", ""}))

	require.NoError(t, env.engine.runPayouts(ctx))

	tables, err := env.backend.LoadTables(ctx, testDoc)
	require.NoError(t, err)
	row := tables[docs.TablePayoutRules].Rows[0]
	assert.Equal(t, "0xtok1", row.Cell(docs.ColPayoutLastTx))
	assert.Contains(t, row.Cell(docs.ColPayoutStatus), "OK")
	assert.NotEmpty(t, row.Cell(docs.ColPayoutNextRun))
}

func TestDemoModeAutoApproves(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Engine.DemoMode = true

	to := "0x1111111111111111111111111111111111111111"
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW EVM_SEND "+to+" 0.5"))
	env.poll(t)

	assert.Equal(t, repo.StatusApproved, env.onlyCommand(t).Status)
}

func TestDisabledPortFailsCleanly(t *testing.T) {
	env := newTestEnv(t)
	env.engine.ports.Bridge = nil
	require.NoError(t, env.backend.UserAppendCommand(testDoc,
		"DW BRIDGE ETH STX 1 SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"))
	env.poll(t)

	cmd := env.onlyCommand(t)
	require.NoError(t, env.store.SetCommandStatus(cmd.CmdID, repo.StatusApproved, repo.Update{}))
	env.execute(t)

	cmd = env.onlyCommand(t)
	assert.Equal(t, repo.StatusFailed, cmd.Status)
	assert.Contains(t, cmd.ErrorText, "not configured")
}

func TestDiscoveryDropsUnreachableDoc(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.cfg.Docs.TemplateBatch = 4

	env.backend.AddDocument("doc-2", "Other")
	require.NoError(t, env.engine.runDiscovery(ctx))
	docsList, err := env.store.ListDocs()
	require.NoError(t, err)
	assert.Len(t, docsList, 2)

	env.backend.RemoveDocument("doc-2")
	require.NoError(t, env.engine.runDiscovery(ctx))
	docsList, err = env.store.ListDocs()
	require.NoError(t, err)
	require.Len(t, docsList, 1)
	assert.Equal(t, testDoc, docsList[0].DocID)
}

func TestSchedulerNoSelfOverlap(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Engine.Intervals = config.IntervalsConfig{Poll: 5 * time.Millisecond}

	var mu sync.Mutex
	active, maxActive, runs := 0, 0, 0

	s := &Scheduler{engine: env.engine, stopChan: make(chan struct{})}
	s.register("poll", 5*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		runs++
		mu.Unlock()

		time.Sleep(12 * time.Millisecond) // longer than the interval

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})

	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	s.Stop(time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive, "a tick must never overlap itself")
	assert.GreaterOrEqual(t, runs, 2, "skipped fires must not stall the tick")
}

func TestAgentProposalCooldownAndDedupe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SetDocConfig(testDoc, "AUTO_REBALANCE", "ON"))

	require.NoError(t, env.engine.runAgent(ctx))
	cmds, err := env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, repo.StatusPendingApproval, cmds[0].Status)
	assert.Equal(t, "DW REBALANCE 50", cmds[0].Raw)

	// Second run: cooldown and dedupe both block a duplicate.
	require.NoError(t, env.engine.runAgent(ctx))
	cmds, err = env.store.ListRecentCommands(testDoc, 10)
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
}

func TestUniqueExecutionUnderConcurrentClaims(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.backend.UserAppendCommand(testDoc, "DW STATUS"))
	env.poll(t)
	cmd := env.onlyCommand(t)
	require.Equal(t, repo.StatusApproved, cmd.Status)

	// Two executors race for the same approved command; the EXECUTING
	// gate admits exactly one.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = env.engine.runExecutor(context.Background())
		}()
	}
	wg.Wait()

	final, err := env.store.Command(cmd.CmdID)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusExecuted, final.Status)
}
