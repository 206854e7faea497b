package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsinsight/opsinsight-go/internal/metrics"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestDispatcher_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	email := &recordingEmail{}
	chat := &recordingChat{}
	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(email, chat, store, time.Second, zaptest.NewLogger(t))

	emailAction := model.NewEmailAction("a@b.io", "subject", "body")
	chatAction := model.NewChatAction("team", "channel", "hello")
	log := &statusLog{}

	d.Dispatch(context.Background(), []model.DispatchAction{emailAction, chatAction}, log.notify)
	d.Wait()

	assert.Equal(t, []model.EmailSend{{To: "a@b.io", Subject: "subject", Body: "body"}}, email.Sent())
	assert.Equal(t, []model.ChatPost{{TeamID: "team", ChannelID: "channel", Content: "hello"}}, chat.Posted())

	for _, id := range []string{emailAction.ID, chatAction.ID} {
		assert.Equal(t, []model.DispatchState{model.StateQueued, model.StateRunning, model.StateSucceeded}, log.states(id))

		status, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.StateSucceeded, status.State)
		assert.Empty(t, status.Error)
	}
}

// blockingStore 写入阻塞直到 release 关闭
type blockingStore struct {
	StatusStore
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, status model.DispatchStatus) error {
	<-b.release
	return b.StatusStore.Save(ctx, status)
}

func TestDispatcher_DoesNotWaitForStatusStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &blockingStore{StatusStore: NewMemoryStatusStore(time.Hour), release: make(chan struct{})}
	email := &recordingEmail{}
	d := NewDispatcher(email, nil, store, time.Second, zaptest.NewLogger(t))

	action := model.NewEmailAction("a@b.io", "s", "b")
	returned := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), []model.DispatchAction{action}, nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the status store")
	}
	assert.Empty(t, email.Sent(), "action waits behind its own queued write, not the caller")

	close(store.release)
	d.Wait()

	status, err := store.Get(context.Background(), action.ID)
	require.NoError(t, err)
	assert.True(t, status.State.Terminal())
	assert.Len(t, email.Sent(), 1)
}

func TestDispatcher_TransportFailureIsRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	email := &recordingEmail{send: func(context.Context, string, string, string) error {
		return errors.New("535 authentication failed")
	}}
	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(email, nil, store, time.Second, zaptest.NewLogger(t))
	log := &statusLog{}

	action := model.NewEmailAction("a@b.io", "s", "b")
	d.Dispatch(context.Background(), []model.DispatchAction{action}, log.notify)
	d.Wait()

	assert.Equal(t, []model.DispatchState{model.StateQueued, model.StateRunning, model.StateFailed}, log.states(action.ID))

	status, err := store.Get(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, status.State)
	assert.Contains(t, status.Error, "535")
}

func TestDispatcher_OneFailureDoesNotAffectOther(t *testing.T) {
	defer goleak.VerifyNone(t)

	email := &recordingEmail{send: func(context.Context, string, string, string) error {
		return errors.New("smtp down")
	}}
	chat := &recordingChat{}
	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(email, chat, store, time.Second, zaptest.NewLogger(t))

	emailAction := model.NewEmailAction("a@b.io", "s", "b")
	chatAction := model.NewChatAction("t", "c", "m")
	d.Dispatch(context.Background(), []model.DispatchAction{emailAction, chatAction}, nil)
	d.Wait()

	got, err := store.Get(context.Background(), chatAction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, got.State)
	assert.Len(t, chat.Posted(), 1)
}

func TestDispatcher_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &recordingChat{post: func(ctx context.Context, _, _, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(nil, chat, store, 20*time.Millisecond, zaptest.NewLogger(t))

	action := model.NewChatAction("t", "c", "m")
	d.Dispatch(context.Background(), []model.DispatchAction{action}, nil)
	d.Wait()

	status, err := store.Get(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, status.State)
	assert.Contains(t, status.Error, context.DeadlineExceeded.Error())
}

func TestDispatcher_SurvivesRequestCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	var sawErr error
	email := &recordingEmail{send: func(ctx context.Context, _, _, _ string) error {
		sawErr = ctx.Err()
		return ctx.Err()
	}}
	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(email, nil, store, time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	action := model.NewEmailAction("a@b.io", "s", "b")
	d.Dispatch(ctx, []model.DispatchAction{action}, nil)
	d.Wait()

	assert.NoError(t, sawErr)
	status, err := store.Get(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, status.State)
}

func TestDispatcher_MissingTransport(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStatusStore(time.Hour)
	d := NewDispatcher(nil, nil, store, time.Second, zaptest.NewLogger(t))

	action := model.NewEmailAction("a@b.io", "s", "b")
	d.Dispatch(context.Background(), []model.DispatchAction{action}, nil)
	d.Wait()

	status, err := store.Get(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, status.State)
	assert.Equal(t, "email transport unavailable", status.Error)
}

func TestDispatcher_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	chat := &recordingChat{post: func(context.Context, string, string, string) error {
		<-release
		return nil
	}}
	d := NewDispatcher(nil, chat, nil, time.Second, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), []model.DispatchAction{model.NewChatAction("t", "c", "m")}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_NoActions(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, time.Second, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), nil, nil)
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_Metrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	succeeded := testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("chat", "succeeded"))
	failed := testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("email", "failed"))

	email := &recordingEmail{send: func(context.Context, string, string, string) error {
		return errors.New("smtp down")
	}}
	d := NewDispatcher(email, &recordingChat{}, nil, time.Second, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), []model.DispatchAction{
		model.NewEmailAction("a@b.io", "s", "b"),
		model.NewChatAction("t", "c", "m"),
	}, nil)
	d.Wait()

	assert.Equal(t, succeeded+1, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("chat", "succeeded")))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("email", "failed")))
	assert.Zero(t, testutil.ToFloat64(metrics.DispatchActive.WithLabelValues("email")))
}
