package line

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-concierge/internal/domain"
)

type fakeGetter struct {
	value string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.value, f.err
}

func testOrder() domain.Order {
	return domain.Order{
		ID:            "SAV00TEST",
		UserID:        "U123",
		RecipientName: "花子",
		BroadcastDate: "2026-09-15",
		PlanName:      "事前予約プラン",
		Price:         8800,
		Status:        domain.OrderPending,
	}
}

func newTestNotifier(t *testing.T, handler http.HandlerFunc) (*Notifier, *fakeGetter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	getter := &fakeGetter{value: `{"token":"channel-token"}`}
	n, err := NewNotifier(getter, "/vision-concierge", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return n, getter
}

func TestNewNotifier_Validation(t *testing.T) {
	_, err := NewNotifier(nil, "/p")
	require.Error(t, err)

	_, err = NewNotifier(&fakeGetter{}, "")
	require.Error(t, err)
}

func TestNotifyOrderEvent_HappyPath(t *testing.T) {
	var gotReq pushRequest
	n, getter := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/bot/message/push", r.URL.Path)
		require.Equal(t, "Bearer channel-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
	})

	err := n.NotifyOrderEvent(context.Background(), domain.NotifyOrderReceived, testOrder())
	require.NoError(t, err)
	require.Equal(t, "U123", gotReq.To)
	require.Len(t, gotReq.Messages, 1)
	require.Equal(t, "text", gotReq.Messages[0].Type)
	require.Contains(t, gotReq.Messages[0].Text, "SAV00TEST")
	require.Contains(t, gotReq.Messages[0].Text, "¥8800")
	require.Equal(t, 1, getter.calls)
}

func TestNotifyOrderEvent_TokenFetchedOnce(t *testing.T) {
	n, getter := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	order := testOrder()

	require.NoError(t, n.NotifyOrderEvent(context.Background(), domain.NotifyOrderReceived, order))
	require.NoError(t, n.NotifyOrderEvent(context.Background(), domain.NotifyOrderConfirmed, order))
	require.Equal(t, 1, getter.calls)
}

func TestNotifyOrderEvent_MissingUserID(t *testing.T) {
	n, _ := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("server must not be reached")
	})
	order := testOrder()
	order.UserID = ""
	require.Error(t, n.NotifyOrderEvent(context.Background(), domain.NotifyOrderReceived, order))
}

func TestNotifyOrderEvent_UnknownEvent(t *testing.T) {
	n, getter := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("server must not be reached")
	})
	err := n.NotifyOrderEvent(context.Background(), domain.NotificationEvent("bogus"), testOrder())
	require.Error(t, err)
	require.Zero(t, getter.calls)
}

func TestNotifyOrderEvent_UpstreamStatusError(t *testing.T) {
	n, _ := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})
	err := n.NotifyOrderEvent(context.Background(), domain.NotifyOrderReceived, testOrder())

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestNotifyOrderEvent_CredentialError(t *testing.T) {
	getter := &fakeGetter{err: errors.New("denied")}
	n, err := NewNotifier(getter, "/vision-concierge")
	require.NoError(t, err)
	require.ErrorContains(t,
		n.NotifyOrderEvent(context.Background(), domain.NotifyOrderReceived, testOrder()),
		"denied")
}

func TestMessageText_PerEvent(t *testing.T) {
	order := testOrder()
	cases := []struct {
		event domain.NotificationEvent
		want  string
	}{
		{domain.NotifyOrderReceived, "ご注文を受け付けました"},
		{domain.NotifyOrderConfirmed, "ご注文が確定しました"},
		{domain.NotifyPaymentCompleted, "お支払いを確認しました"},
		{domain.NotifyBroadcastScheduled, "放映スケジュールが決まりました"},
		{domain.NotifyBroadcastCompleted, "放映が完了しました"},
	}
	for _, tc := range cases {
		text, err := messageText(tc.event, order)
		require.NoError(t, err, "event=%s", tc.event)
		require.Contains(t, text, tc.want)
		require.Contains(t, text, order.ID)
	}
}

func TestMessageText_FreePriceDisplay(t *testing.T) {
	order := testOrder()
	order.Price = 0
	text, err := messageText(domain.NotifyOrderReceived, order)
	require.NoError(t, err)
	require.Contains(t, text, "無料")
}
