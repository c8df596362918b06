package mailsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/batch"
	"mailpilot/internal/model"
	"mailpilot/internal/retry"
	"mailpilot/internal/status"
)

// events records the interleaving of collaborator calls so ordering
// guarantees can be asserted.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

type fakeMailbox struct {
	events *events
	pages  map[string]model.MailboxPage // keyed by cursor
	err    error
	calls  int
}

func (f *fakeMailbox) FetchPage(ctx context.Context, grant, cursor string, limit int) (model.MailboxPage, error) {
	f.calls++
	f.events.add("fetch:" + cursor)
	if f.err != nil {
		return model.MailboxPage{}, f.err
	}
	return f.pages[cursor], nil
}

type fakeTriager struct {
	events    *events
	failIDs   map[string]bool
	batches   [][]string
	watchlist []string
	beat      bool
}

func (f *fakeTriager) ProcessBatch(ctx context.Context, userID string, emails []model.EmailMessage, watchlist []string, heartbeat func(ctx context.Context, detail string)) ([]batch.Result[model.TriageResult], error) {
	ids := make([]string, len(emails))
	results := make([]batch.Result[model.TriageResult], len(emails))
	for i, e := range emails {
		ids[i] = e.ID
		results[i].Index = i
		if f.failIDs[e.ID] {
			results[i].Err = errors.New("triage failed: timeout")
			continue
		}
		results[i].Value = model.TriageResult{
			MessageID: e.ID,
			Priority:  model.PriorityNormal,
			Category:  model.CategoryGeneral,
		}
	}
	f.batches = append(f.batches, ids)
	f.watchlist = watchlist
	f.events.add(fmt.Sprintf("batch:%d", len(emails)))
	if f.beat && heartbeat != nil {
		heartbeat(ctx, "chunk 1 of 1")
	}
	return results, nil
}

type fakeMessageStore struct {
	existing map[string]bool
	err      error
}

func (f *fakeMessageStore) ExistingMessageIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return f.existing, f.err
}

type fakeWatchlist struct {
	symbols []string
	err     error
}

func (f *fakeWatchlist) Lookup(ctx context.Context, userID string) ([]string, error) {
	return f.symbols, f.err
}

type fakeCheckpoints struct {
	events *events
	stored []model.SyncCheckpoint
	err    error
}

func (f *fakeCheckpoints) Upsert(ctx context.Context, cp model.SyncCheckpoint) error {
	f.stored = append(f.stored, cp)
	f.events.add("checkpoint:" + cp.Cursor)
	return f.err
}

type fakeDeadLetters struct {
	poisoned map[string]bool
	inserted []model.DeadLetter
	filtErr  error
}

func (f *fakeDeadLetters) Insert(ctx context.Context, dl model.DeadLetter) error {
	f.inserted = append(f.inserted, dl)
	return nil
}

func (f *fakeDeadLetters) Poisoned(ctx context.Context, mailboxID string, ids []string) (map[string]bool, error) {
	return f.poisoned, f.filtErr
}

type fakeSyncAudit struct {
	records []model.AuditRecord
}

func (f *fakeSyncAudit) Append(ctx context.Context, record model.AuditRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeSyncAudit) actions() []string {
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r.Action
	}
	return out
}

type fakeScheduler struct {
	scheduled []contract.SyncRequestedPayload
	runAts    []time.Time
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, payload contract.SyncRequestedPayload, runAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, payload)
	f.runAts = append(f.runAts, runAt)
	return nil
}

type fakeLease struct {
	mu        sync.Mutex
	denied    bool
	acquired  int
	refreshed int
	released  int
}

func (f *fakeLease) Acquire(ctx context.Context, name, identity, holder string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return !f.denied, nil
}

func (f *fakeLease) Refresh(ctx context.Context, name, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

func (f *fakeLease) Release(ctx context.Context, name, identity, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

type fakeAttempts struct {
	counts map[string]int64
	resets []string
}

func (f *fakeAttempts) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeAttempts) Reset(ctx context.Context, key string) error {
	f.resets = append(f.resets, key)
	delete(f.counts, key)
	return nil
}

type syncFixture struct {
	events      *events
	mailbox     *fakeMailbox
	triager     *fakeTriager
	store       *fakeMessageStore
	watchlists  *fakeWatchlist
	checkpoints *fakeCheckpoints
	deadletters *fakeDeadLetters
	audit       *fakeSyncAudit
	scheduler   *fakeScheduler
	lease       *fakeLease
	attempts    *fakeAttempts
	register    *status.Register
	coord       *Coordinator
}

func emailPage(prefix string, n int, next string) model.MailboxPage {
	page := model.MailboxPage{NextCursor: next}
	for i := 0; i < n; i++ {
		page.Items = append(page.Items, model.EmailMessage{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Subject: "Hello",
			Body:    "world",
		})
	}
	return page
}

func newSyncFixture() *syncFixture {
	ev := &events{}
	f := &syncFixture{
		events:      ev,
		mailbox:     &fakeMailbox{events: ev, pages: map[string]model.MailboxPage{}},
		triager:     &fakeTriager{events: ev},
		store:       &fakeMessageStore{},
		watchlists:  &fakeWatchlist{symbols: []string{"AAPL"}},
		checkpoints: &fakeCheckpoints{events: ev},
		deadletters: &fakeDeadLetters{},
		audit:       &fakeSyncAudit{},
		scheduler:   &fakeScheduler{},
		lease:       &fakeLease{},
		attempts:    &fakeAttempts{},
		register:    status.NewRegister(),
	}
	invoker := retry.NewInvokerWithClock(
		zap.NewNop(),
		func(ctx context.Context, d time.Duration) error { return nil },
		func() float64 { return 0 },
	)
	f.coord = NewCoordinator(
		f.mailbox, f.triager, f.store, f.watchlists, f.checkpoints,
		f.deadletters, f.audit, f.scheduler, f.lease, f.attempts,
		f.register, invoker, DefaultConfig(), zap.NewNop(),
	)
	f.coord.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	seq := 0
	f.coord.newID = func() string {
		seq++
		return fmt.Sprintf("gen-%d", seq)
	}
	return f
}

func syncRequest() contract.SyncRequestedPayload {
	return contract.SyncRequestedPayload{
		InstanceID: "inst-1",
		MailboxID:  "mbx-1",
		UserID:     "user-1",
		Grant:      "grant-1",
		Epoch:      1,
	}
}

func TestRunTwoPageMailbox(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 50, "cur-2")
	f.mailbox.pages["cur-2"] = emailPage("p2", 10, "")

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	snap, ok := f.register.Snapshot("inst-1")
	require.True(t, ok, "status stays registered for operators after completion")
	st := snap.(model.SyncStatus)
	assert.Equal(t, model.PhaseCompleted, st.Phase)
	assert.Equal(t, 60, st.EmailsFetched)
	assert.Equal(t, 60, st.EmailsProcessed)
	assert.Equal(t, 60, st.EmailsTriaged)
	assert.Equal(t, "", st.Cursor)
	assert.Empty(t, st.Errors)

	require.Len(t, f.checkpoints.stored, 2)
	assert.Equal(t, "cur-2", f.checkpoints.stored[0].Cursor)
	assert.Equal(t, "", f.checkpoints.stored[1].Cursor)

	assert.Equal(t, 1, f.lease.acquired)
	assert.Equal(t, 1, f.lease.released)
	assert.Contains(t, f.audit.actions(), "sync.completed")
	assert.Empty(t, f.scheduler.scheduled, "initial sync does not continue")
}

// Page 2 is fetched only after every item on page 1 was attempted and the
// cursor durably checkpointed.
func TestRunNoPageSkipping(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 3, "cur-2")
	f.mailbox.pages["cur-2"] = emailPage("p2", 2, "")

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fetch:",
		"batch:3",
		"checkpoint:cur-2",
		"fetch:cur-2",
		"batch:2",
		"checkpoint:",
	}, f.events.log)
}

func TestRunDedupesAgainstStoreAndDeadLetters(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 5, "")
	f.store.existing = map[string]bool{"p1-0": true, "p1-1": true}
	f.deadletters.poisoned = map[string]bool{"p1-2": true}

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	require.Len(t, f.triager.batches, 1)
	assert.Equal(t, []string{"p1-3", "p1-4"}, f.triager.batches[0], "only fresh items reach triage")

	snap, _ := f.register.Snapshot("inst-1")
	st := snap.(model.SyncStatus)
	assert.Equal(t, 5, st.EmailsFetched)
	assert.Equal(t, 5, st.EmailsProcessed, "duplicates and poison items still count as processed")
	assert.Equal(t, 2, st.EmailsTriaged)
}

func TestRunLeaseLostDropsRequest(t *testing.T) {
	f := newSyncFixture()
	f.lease.denied = true
	f.mailbox.pages[""] = emailPage("p1", 5, "")

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, f.mailbox.calls, "no work while another epoch holds the lease")
}

func TestRunFetchExhaustionFailsEpoch(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.err = errors.New("fetch: upstream returned 503")

	err := f.coord.Run(context.Background(), syncRequest())
	require.Error(t, err)
	assert.Equal(t, 4, f.mailbox.calls, "retried to exhaustion before failing")

	snap, _ := f.register.Snapshot("inst-1")
	st := snap.(model.SyncStatus)
	assert.Equal(t, model.PhaseFailed, st.Phase)
	assert.Contains(t, f.audit.actions(), "sync.failed")
	assert.Equal(t, 1, f.lease.released, "lease released on failure too")
}

func TestRunItemFailureIsolatedAndPoisonDeadLettered(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 3, "")
	f.triager.failIDs = map[string]bool{"p1-1": true}
	// Two prior epochs already failed this message.
	f.attempts.counts = map[string]int64{"retry:triage:p1-1": 2}

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err, "item failures never fail the epoch")

	snap, _ := f.register.Snapshot("inst-1")
	st := snap.(model.SyncStatus)
	assert.Equal(t, model.PhaseCompleted, st.Phase)
	assert.Equal(t, 3, st.EmailsFetched)
	assert.Equal(t, 2, st.EmailsProcessed)
	require.Len(t, st.Errors, 1)
	assert.Equal(t, "p1-1", st.Errors[0].MessageID)
	assert.Equal(t, "triage", st.Errors[0].Stage)

	require.Len(t, f.deadletters.inserted, 1)
	dl := f.deadletters.inserted[0]
	assert.Equal(t, "p1-1", dl.MessageID)
	assert.Equal(t, int64(3), dl.Attempts)
	assert.Contains(t, f.audit.actions(), "sync.dead_lettered")
	assert.Contains(t, f.attempts.resets, "retry:triage:p1-1", "counter cleared once dead-lettered")
}

func TestRunFirstFailureNotDeadLettered(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 2, "")
	f.triager.failIDs = map[string]bool{"p1-0": true}

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)
	assert.Empty(t, f.deadletters.inserted, "below the poison threshold")
	assert.Equal(t, int64(1), f.attempts.counts["retry:triage:p1-0"])
}

func TestRunOngoingSchedulesContinuation(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 2, "")
	req := syncRequest()
	req.Ongoing = true
	req.Cursor = ""

	err := f.coord.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.scheduler.scheduled, 1)
	next := f.scheduler.scheduled[0]
	assert.Equal(t, "mbx-1", next.MailboxID)
	assert.Equal(t, "user-1", next.UserID)
	assert.Equal(t, 2, next.Epoch)
	assert.Equal(t, "", next.Cursor, "continuation resumes from the final cursor")
	assert.True(t, next.Ongoing)
	assert.NotEqual(t, req.InstanceID, next.InstanceID)

	wantRunAt := time.Date(2026, 8, 24, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, wantRunAt, f.scheduler.runAts[0])
}

func TestRunWatchlistLookupDegrades(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 2, "")
	f.watchlists.err = errors.New("watchlist query timeout")

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err, "watch-list outage never fails the epoch")
	assert.Nil(t, f.triager.watchlist, "triage ran with ticker confirmation disabled")
}

func TestRunEmptyMailboxCompletes(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = model.MailboxPage{}

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	snap, _ := f.register.Snapshot("inst-1")
	st := snap.(model.SyncStatus)
	assert.Equal(t, model.PhaseCompleted, st.Phase)
	assert.Equal(t, 0, st.EmailsFetched)
	require.Len(t, f.checkpoints.stored, 1, "terminal cursor still checkpointed")
}

func TestRunHeartbeatRefreshesLease(t *testing.T) {
	f := newSyncFixture()
	f.mailbox.pages[""] = emailPage("p1", 2, "")
	f.triager.beat = true

	err := f.coord.Run(context.Background(), syncRequest())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.lease.refreshed, 1, "heartbeats keep the epoch lease alive")
}
