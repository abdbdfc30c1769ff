package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  int
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained++
	return nil
}

func TestPublisherPublishesEvent(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "", nil)

	n := core.Notification{ID: "n1", UserID: "user.one", Kind: core.NotificationKindBudgetAlert, Category: "Food", PercentUsed: decimal.NewFromInt(81)}
	require.NoError(t, p.Publish(context.Background(), n))

	require.Equal(t, []string{"financemate.notifications.user_one"}, conn.subjects)

	var event Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &event))
	require.Equal(t, core.NotificationKindBudgetAlert, event.Type)
	require.Equal(t, "n1", event.Notification.ID)
	require.False(t, event.PublishedAt.IsZero())
}

func TestPublisherErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("no responders")}
	p := New(conn, "alerts", nil)

	err := p.Publish(context.Background(), core.Notification{UserID: "u1"})
	require.ErrorContains(t, err, "alerts.u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Publish(ctx, core.Notification{}), context.Canceled)
}

func TestPublisherClose(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "alerts", nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, conn.drained)
	require.Error(t, p.Publish(context.Background(), core.Notification{UserID: "u1"}))

	var nilPublisher *Publisher
	require.NoError(t, nilPublisher.Publish(context.Background(), core.Notification{}))
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(" ", "", nil)
	require.Error(t, err)
}
