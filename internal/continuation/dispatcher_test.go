package continuation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
)

type fakeStore struct {
	due    []*Continuation
	dueErr error
	sent   []int64
	failed []int64
}

func (f *fakeStore) GetDue(ctx context.Context, limit int) ([]*Continuation, error) {
	return f.due, f.dueErr
}

func (f *fakeStore) MarkAsSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkAsFailed(ctx context.Context, id int64, maxRetries int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublisher struct {
	published []contract.SyncRequestedPayload
	keys      []string
	err       error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, routingKey)
	f.published = append(f.published, payload.(contract.SyncRequestedPayload))
	return nil
}

func dueRow(t *testing.T, id int64, mailboxID string, epoch int) *Continuation {
	t.Helper()
	body, err := json.Marshal(contract.SyncRequestedPayload{
		InstanceID: "inst-next",
		MailboxID:  mailboxID,
		Epoch:      epoch,
		Ongoing:    true,
	})
	require.NoError(t, err)
	return &Continuation{ID: id, MailboxID: mailboxID, Payload: body, Status: "pending"}
}

func TestDispatchDuePublishesAndMarksSent(t *testing.T) {
	store := &fakeStore{due: []*Continuation{
		dueRow(t, 1, "mbx-1", 2),
		dueRow(t, 2, "mbx-2", 7),
	}}
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	d.dispatchDue(context.Background())

	require.Len(t, pub.published, 2)
	assert.Equal(t, []string{"sync.continue", "sync.continue"}, pub.keys)
	assert.Equal(t, "mbx-1", pub.published[0].MailboxID)
	assert.Equal(t, 2, pub.published[0].Epoch)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Empty(t, store.failed)
}

func TestDispatchDueMarksFailedOnPublishError(t *testing.T) {
	store := &fakeStore{due: []*Continuation{dueRow(t, 3, "mbx-1", 2)}}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := NewDispatcher(store, pub, zap.NewNop())

	d.dispatchDue(context.Background())

	assert.Empty(t, store.sent)
	assert.Equal(t, []int64{3}, store.failed)
}

func TestDispatchDueMarksFailedOnCorruptPayload(t *testing.T) {
	store := &fakeStore{due: []*Continuation{
		{ID: 4, MailboxID: "mbx-1", Payload: json.RawMessage(`{not json`), Status: "pending"},
	}}
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	d.dispatchDue(context.Background())

	assert.Empty(t, pub.published)
	assert.Equal(t, []int64{4}, store.failed)
}

func TestDispatchDueNothingDue(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	d.dispatchDue(context.Background())

	assert.Empty(t, pub.published)
	assert.Empty(t, store.sent)
	assert.Empty(t, store.failed)
}
