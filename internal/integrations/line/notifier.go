// Package line pushes order lifecycle notifications to users over the LINE
// Messaging API. Notification delivery is best-effort; callers log failures
// instead of surfacing them to the conversation.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"vision-concierge/internal/domain"
)

const defaultBaseURL = "https://api.line.me"

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the JSON shape stored in SSM for the channel access token.
type tokenPayload struct {
	Token string `json:"token"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []pushMessage `json:"messages"`
}

type pushMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HTTPStatusError captures non-2xx responses from the Messaging API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("line: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Notifier sends push messages with an SSM-backed channel access token.
type Notifier struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Notifier)

func WithBaseURL(baseURL string) Option {
	return func(n *Notifier) {
		n.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = httpClient
	}
}

// NewNotifier creates a Notifier backed by the given paramstore getter.
func NewNotifier(ps Getter, paramPrefix string, opts ...Option) (*Notifier, error) {
	if ps == nil {
		return nil, errors.New("line: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("line: parameter prefix must not be empty")
	}
	n := &Notifier{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Notifier) resolveToken(ctx context.Context) (string, error) {
	n.tokenOnce.Do(func() {
		raw, err := n.getter.GetParameter(ctx, n.paramPrefix+"/line-channel-token")
		if err != nil {
			n.tokenErr = fmt.Errorf("line: fetch channel token: %w", err)
			return
		}
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			n.tokenErr = fmt.Errorf("line: unmarshal channel token value: %w", err)
			return
		}
		if tp.Token == "" {
			n.tokenErr = errors.New("line: channel token is empty")
			return
		}
		n.token = tp.Token
	})
	return n.token, n.tokenErr
}

// NotifyOrderEvent pushes the Japanese notification text for an order
// lifecycle event to the order's user.
func (n *Notifier) NotifyOrderEvent(ctx context.Context, event domain.NotificationEvent, order domain.Order) error {
	if order.UserID == "" {
		return errors.New("line: order has no user id")
	}
	text, err := messageText(event, order)
	if err != nil {
		return err
	}

	token, err := n.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(pushRequest{
		To:       order.UserID,
		Messages: []pushMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("line: marshal push request: %w", err)
	}

	url := strings.TrimRight(n.baseURL, "/") + "/v2/bot/message/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("line: push request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	return nil
}

// messageText renders the notification body for each lifecycle event.
func messageText(event domain.NotificationEvent, order domain.Order) (string, error) {
	switch event {
	case domain.NotifyOrderReceived:
		return fmt.Sprintf(`ご注文を受け付けました 🎉

注文番号：%s
プラン：%s（%s）
放映希望日：%s

内容を確認のうえ、改めてご連絡します！`,
			order.ID, order.PlanName, priceDisplay(order.Price), order.BroadcastDate), nil
	case domain.NotifyOrderConfirmed:
		return fmt.Sprintf(`ご注文が確定しました ✅

注文番号：%s
放映日：%s

放映までしばらくお待ちください！`, order.ID, order.BroadcastDate), nil
	case domain.NotifyPaymentCompleted:
		return fmt.Sprintf(`お支払いを確認しました 💳

注文番号：%s
金額：%s

ありがとうございます！`, order.ID, priceDisplay(order.Price)), nil
	case domain.NotifyBroadcastScheduled:
		return fmt.Sprintf(`放映スケジュールが決まりました 📅

注文番号：%s
放映日：%s

渋谷でもYouTube LIVEでもご覧いただけます！`, order.ID, order.BroadcastDate), nil
	case domain.NotifyBroadcastCompleted:
		return fmt.Sprintf(`メッセージの放映が完了しました 🌟

注文番号：%s
%sさんへの想い、渋谷の空に届きました！

またのご利用をお待ちしています 💕`, order.ID, order.RecipientName), nil
	default:
		return "", fmt.Errorf("line: unknown notification event %q", event)
	}
}

func priceDisplay(price int) string {
	if price == 0 {
		return "無料"
	}
	return fmt.Sprintf("¥%d", price)
}
