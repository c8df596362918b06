package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/model"
	"mailpilot/internal/retry"
)

type fakeRunner struct {
	reqs []contract.SyncRequestedPayload
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, req contract.SyncRequestedPayload) error {
	f.reqs = append(f.reqs, req)
	return f.err
}

type fakeDeduper struct {
	duplicate bool
	ids       []string
}

func (f *fakeDeduper) AcquireOnce(ctx context.Context, handler, id string) bool {
	f.ids = append(f.ids, id)
	return !f.duplicate
}

type fakeDLQ struct {
	keys   []string
	bodies [][]byte
	errs   []string
	err    error
}

func (f *fakeDLQ) PublishToDLQ(routingKey string, payload []byte, originalError string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, routingKey)
	f.bodies = append(f.bodies, payload)
	f.errs = append(f.errs, originalError)
	return nil
}

type fakeSuggester struct {
	suggestions []model.ReplySuggestion
	err         error
	calls       int
}

func (f *fakeSuggester) Suggest(ctx context.Context, userID, threadID string) ([]model.ReplySuggestion, error) {
	f.calls++
	return f.suggestions, f.err
}

type fakeCounter struct {
	counts map[string]int64
	resets []string
}

func (f *fakeCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Reset(ctx context.Context, key string) error {
	f.resets = append(f.resets, key)
	delete(f.counts, key)
	return nil
}

func syncBody(t *testing.T) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(contract.SyncRequestedPayload{
		InstanceID: "inst-1",
		MailboxID:  "mbx-1",
		UserID:     "user-1",
		Epoch:      1,
	})
	require.NoError(t, err)
	return b
}

func TestSyncHandlerRunsRequest(t *testing.T) {
	runner := &fakeRunner{}
	dedup := &fakeDeduper{}
	dlq := &fakeDLQ{}
	h := NewSyncHandler(runner, dedup, dlq, zap.NewNop())

	err := h.Handle(contract.RoutingKeySyncStart)(context.Background(), syncBody(t))
	require.NoError(t, err)

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, "mbx-1", runner.reqs[0].MailboxID)
	assert.Equal(t, []string{"inst-1"}, dedup.ids)
	assert.Empty(t, dlq.keys)
}

func TestSyncHandlerCorruptPayloadGoesToDLQ(t *testing.T) {
	runner := &fakeRunner{}
	dlq := &fakeDLQ{}
	h := NewSyncHandler(runner, &fakeDeduper{}, dlq, zap.NewNop())

	err := h.Handle(contract.RoutingKeySyncStart)(context.Background(), json.RawMessage(`{broken`))
	require.NoError(t, err, "corrupt payload is acked, not requeued")

	assert.Empty(t, runner.reqs)
	require.Len(t, dlq.keys, 1)
	assert.Equal(t, contract.RoutingKeySyncStart, dlq.keys[0])
}

func TestSyncHandlerDropsDuplicate(t *testing.T) {
	runner := &fakeRunner{}
	h := NewSyncHandler(runner, &fakeDeduper{duplicate: true}, &fakeDLQ{}, zap.NewNop())

	err := h.Handle(contract.RoutingKeySyncContinue)(context.Background(), syncBody(t))
	require.NoError(t, err)
	assert.Empty(t, runner.reqs)
}

func TestSyncHandlerAcksTerminalFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("page fetch failed: 503")}
	h := NewSyncHandler(runner, &fakeDeduper{}, &fakeDLQ{}, zap.NewNop())

	err := h.Handle(contract.RoutingKeySyncStart)(context.Background(), syncBody(t))
	assert.NoError(t, err, "terminal epoch failures are not requeued")
}

func replyBody(t *testing.T) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(contract.ReplyRequestedPayload{
		RequestID: "req-1",
		UserID:    "user-1",
		ThreadID:  "thr-1",
	})
	require.NoError(t, err)
	return b
}

func TestReplyHandlerSuccess(t *testing.T) {
	suggester := &fakeSuggester{suggestions: []model.ReplySuggestion{{ID: "s1"}}}
	counter := &fakeCounter{}
	h := NewReplyHandler(suggester, counter, &fakeDLQ{}, zap.NewNop())

	err := h.Handle(context.Background(), replyBody(t))
	require.NoError(t, err)
	assert.Equal(t, 1, suggester.calls)
	assert.Equal(t, []string{"retry:reply:req-1"}, counter.resets)
}

func TestReplyHandlerRetryableFailureRequeues(t *testing.T) {
	suggester := &fakeSuggester{err: errors.New("ai generate: ai service returned 503")}
	counter := &fakeCounter{}
	dlq := &fakeDLQ{}
	h := NewReplyHandler(suggester, counter, dlq, zap.NewNop())

	err := h.Handle(context.Background(), replyBody(t))
	require.Error(t, err, "transient failure is nacked for redelivery")
	assert.Equal(t, int64(1), counter.counts["retry:reply:req-1"])
	assert.Empty(t, dlq.keys)
}

func TestReplyHandlerExhaustedDeliveriesParkOnDLQ(t *testing.T) {
	suggester := &fakeSuggester{err: errors.New("ai generate: ai service returned 503")}
	counter := &fakeCounter{counts: map[string]int64{"retry:reply:req-1": 4}}
	dlq := &fakeDLQ{}
	h := NewReplyHandler(suggester, counter, dlq, zap.NewNop())

	err := h.Handle(context.Background(), replyBody(t))
	require.NoError(t, err, "parked request is acked")
	require.Len(t, dlq.keys, 1)
	assert.Equal(t, contract.RoutingKeyReplyRequested, dlq.keys[0])
	assert.Contains(t, counter.resets, "retry:reply:req-1")
}

func TestReplyHandlerNonRetryableFailureAcked(t *testing.T) {
	suggester := &fakeSuggester{err: retry.Fatal(errors.New("thread thr-1 has no messages"))}
	counter := &fakeCounter{}
	dlq := &fakeDLQ{}
	h := NewReplyHandler(suggester, counter, dlq, zap.NewNop())

	err := h.Handle(context.Background(), replyBody(t))
	assert.NoError(t, err)
	assert.Empty(t, dlq.keys)
	assert.Empty(t, counter.counts)
}

func TestReplyHandlerCorruptPayloadGoesToDLQ(t *testing.T) {
	suggester := &fakeSuggester{}
	dlq := &fakeDLQ{}
	h := NewReplyHandler(suggester, &fakeCounter{}, dlq, zap.NewNop())

	err := h.Handle(context.Background(), json.RawMessage(`not json`))
	require.NoError(t, err)
	assert.Equal(t, 0, suggester.calls)
	require.Len(t, dlq.keys, 1)
}
