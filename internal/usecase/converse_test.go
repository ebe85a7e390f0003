package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/fallback"
	"vision-concierge/internal/signtext"
)

type fakeState struct {
	contexts   map[string]domain.ConversationContext
	history    []domain.ChatMessage
	loadErr    error
	saveErr    error
	appendErr  error
	historyErr error
	appended   int
}

func newFakeState() *fakeState {
	return &fakeState{contexts: map[string]domain.ConversationContext{}}
}

func (f *fakeState) LoadContext(_ context.Context, sessionID string) (*domain.ConversationContext, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.contexts[sessionID]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (f *fakeState) SaveContext(_ context.Context, conv *domain.ConversationContext) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.contexts[conv.SessionID] = *conv
	return nil
}

func (f *fakeState) AppendTurn(_ context.Context, _, _, _ string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended++
	return nil
}

func (f *fakeState) GetHistory(_ context.Context, _ string, _ int) ([]domain.ChatMessage, error) {
	return f.history, f.historyErr
}

type fakeOrders struct {
	mu      sync.Mutex
	created []domain.Order
	err     error
}

func (f *fakeOrders) CreateOrder(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeGenerator struct {
	reply domain.GeneratedReply
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []domain.ChatMessage, _ string) (domain.GeneratedReply, error) {
	f.calls++
	return f.reply, f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (f *fakeNotifier) NotifyOrderEvent(_ context.Context, event domain.NotificationEvent, _ domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func mustNewService(t *testing.T, state StateStore, orders OrderStore, opts ...ConverseOption) *ConverseService {
	t.Helper()
	svc, err := NewConverseService(state, orders, opts...)
	require.NoError(t, err)
	return svc
}

func drive(t *testing.T, svc *ConverseService, sessionID string, messages ...string) []ConverseOutput {
	t.Helper()
	outs := make([]ConverseOutput, 0, len(messages))
	for _, m := range messages {
		out, err := svc.Converse(context.Background(), ConverseInput{SessionID: sessionID, Message: m})
		require.NoError(t, err, "message=%q", m)
		outs = append(outs, out)
	}
	return outs
}

var happyPathScript = []string{
	"こんにちは",
	"花子さん",
	"誕生日",
	"9月15日",
	"花子へ\n誕生日\nおめでと\nずっと\n一緒に♥",
	"無料",
	"OK",
}

func TestConverse_HappyPathToOrder(t *testing.T) {
	state := newFakeState()
	orders := &fakeOrders{}
	svc := mustNewService(t, state, orders)

	outs := drive(t, svc, "s1", happyPathScript...)

	require.Equal(t, domain.StepAskRecipient, outs[0].Step)
	require.Contains(t, outs[0].Reply, "ようこそ")
	require.Equal(t, domain.StepAskOccasion, outs[1].Step)
	require.Contains(t, outs[1].Reply, "花子さん")
	require.Equal(t, domain.StepAskDate, outs[2].Step)
	require.Equal(t, domain.StepCreateMessage, outs[3].Step)
	require.Contains(t, outs[3].Reply, "9月15日")
	require.Equal(t, domain.StepSelectPlan, outs[4].Step)
	require.Equal(t, domain.StepConfirmOrder, outs[5].Step)
	require.Contains(t, outs[5].Reply, "無料プラン")
	require.Equal(t, domain.StepComplete, outs[6].Step)
	require.Contains(t, outs[6].Reply, outs[6].OrderID)
	require.True(t, strings.HasPrefix(outs[6].OrderID, "SAV"))

	require.Equal(t, 1, orders.count())
	created := orders.created[0]
	require.Equal(t, "花子", created.RecipientName)
	require.Equal(t, domain.OccasionBirthday, created.Occasion)
	require.Equal(t, []string{"花子へ", "誕生日", "おめでと", "ずっと", "一緒に♥"}, created.MessageLines)
	require.Equal(t, domain.PlanFree, created.PlanID)
	require.Equal(t, domain.OrderPending, created.Status)
	require.Equal(t, "s1", created.UserID)
	require.Equal(t, len(happyPathScript), state.appended)
}

func TestConverse_SuggestionSelectionFlow(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	drive(t, svc, "s1", "こんにちは", "花子", "ありがとう", "明日")

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "提案して"})
	require.NoError(t, err)
	require.Equal(t, domain.StepSelectMessage, out.Step)
	require.Contains(t, out.Reply, "案1")

	saved := state.contexts["s1"]
	require.Len(t, saved.PendingSuggestions, 3)
	want := fallback.Suggestions("花子", domain.OccasionThanks)
	require.Equal(t, want, saved.PendingSuggestions)

	out, err = svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "案2"})
	require.NoError(t, err)
	require.Equal(t, domain.StepSelectPlan, out.Step)

	saved = state.contexts["s1"]
	require.Equal(t, want[1], saved.MessageLines)
	require.Empty(t, saved.PendingSuggestions)
}

func TestConverse_FormatViolationKeepsStep(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	drive(t, svc, "s1", "こんにちは", "花子", "誕生日", "明日")

	out, err := svc.Converse(context.Background(), ConverseInput{
		SessionID: "s1",
		Message:   "一\n二\n三\n四\n五\n六",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StepCreateMessage, out.Step)
	require.Contains(t, out.Reply, "行数が6行")

	saved := state.contexts["s1"]
	require.Empty(t, saved.MessageLines)
	require.Equal(t, "花子", saved.RecipientName)
}

func TestConverse_OverWideLinesAreTruncatedNotRejected(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	drive(t, svc, "s1", "こんにちは", "花子", "誕生日", "明日")

	out, err := svc.Converse(context.Background(), ConverseInput{
		SessionID: "s1",
		Message:   "おたんじょうびおめでとう",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StepSelectPlan, out.Step)

	saved := state.contexts["s1"]
	require.Equal(t, []string{"おたんじ"}, saved.MessageLines)
}

func TestConverse_RemoteFailureMatchesLocalOnly(t *testing.T) {
	orig := newOrderID
	newOrderID = func() string { return "SAVTEST0001" }
	defer func() { newOrderID = orig }()

	script := append(append([]string{}, happyPathScript[:4]...), "提案して", "案1", "無料", "OK")

	run := func(opts ...ConverseOption) []ConverseOutput {
		svc := mustNewService(t, newFakeState(), &fakeOrders{}, opts...)
		return drive(t, svc, "s1", script...)
	}

	gen := &fakeGenerator{err: errors.New("upstream down")}
	withRemote := run(WithGenerator(gen))
	localOnly := run()

	require.Positive(t, gen.calls)
	require.Equal(t, len(localOnly), len(withRemote))
	for i := range localOnly {
		require.Equal(t, localOnly[i].Reply, withRemote[i].Reply, "turn %d", i)
		require.Equal(t, localOnly[i].Step, withRemote[i].Step, "turn %d", i)
	}
}

func TestConverse_RemoteStructuredSuggestionsUsed(t *testing.T) {
	remote := [][]string{{"花子へ", "いつでも", "味方だよ", "ずっと", "一緒に♥"}}
	gen := &fakeGenerator{reply: domain.GeneratedReply{Suggestions: remote}}
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{}, WithGenerator(gen))

	drive(t, svc, "s1", "こんにちは", "花子", "ありがとう", "明日", "提案して")

	saved := state.contexts["s1"]
	require.Equal(t, remote, saved.PendingSuggestions)
	require.Equal(t, 1, gen.calls)
}

func TestConverse_RemoteInvalidSuggestionsFallBack(t *testing.T) {
	// remote proposes a line that is far too wide
	gen := &fakeGenerator{reply: domain.GeneratedReply{
		Suggestions: [][]string{{"花子へ", "おたんじょうびおめでとう", "！", "！", "！"}},
	}}
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{}, WithGenerator(gen))

	drive(t, svc, "s1", "こんにちは", "花子", "誕生日", "明日", "提案して")

	saved := state.contexts["s1"]
	require.Equal(t, fallback.Suggestions("花子", domain.OccasionBirthday), saved.PendingSuggestions)
	for _, lines := range saved.PendingSuggestions {
		require.True(t, signtext.ValidateLines(lines).OK)
	}
}

func TestConverse_FreeTextRemoteReplyNeverChangesSuggestions(t *testing.T) {
	gen := &fakeGenerator{reply: domain.GeneratedReply{Text: "いいですね！こんなのはどうでしょう。"}}
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{}, WithGenerator(gen))

	drive(t, svc, "s1", "こんにちは", "花子", "誕生日", "明日", "提案して")

	saved := state.contexts["s1"]
	require.Equal(t, fallback.Suggestions("花子", domain.OccasionBirthday), saved.PendingSuggestions)
}

func TestConverse_DuplicateConfirmCreatesOneOrder(t *testing.T) {
	state := newFakeState()
	orders := &fakeOrders{}
	svc := mustNewService(t, state, orders)

	outs := drive(t, svc, "s1", happyPathScript...)
	orderID := outs[len(outs)-1].OrderID
	require.NotEmpty(t, orderID)

	// simulate a redelivered confirm turn against the already-confirmed context
	saved := state.contexts["s1"]
	saved.CurrentStep = domain.StepConfirmOrder
	state.contexts["s1"] = saved

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "OK"})
	require.NoError(t, err)
	require.Equal(t, orderID, out.OrderID)
	require.Contains(t, out.Reply, orderID)
	require.Equal(t, 1, orders.count())
}

func TestConverse_OrderCreationFailureKeepsSlots(t *testing.T) {
	state := newFakeState()
	orders := &fakeOrders{err: errors.New("throttled")}
	svc := mustNewService(t, state, orders)

	outs := drive(t, svc, "s1", happyPathScript...)
	final := outs[len(outs)-1]
	require.Equal(t, domain.StepConfirmOrder, final.Step)
	require.Contains(t, final.Reply, "エラーが発生")
	require.Empty(t, final.OrderID)

	saved := state.contexts["s1"]
	require.False(t, saved.OrderConfirmed)
	require.Equal(t, "花子", saved.RecipientName)
	require.NotEmpty(t, saved.MessageLines)

	// retry succeeds without re-entering anything
	orders.err = nil
	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "OK"})
	require.NoError(t, err)
	require.Equal(t, domain.StepComplete, out.Step)
	require.Equal(t, 1, orders.count())
}

func TestConverse_CancelReturnsToPlanSelection(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	drive(t, svc, "s1", happyPathScript[:6]...)

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "キャンセル"})
	require.NoError(t, err)
	require.Equal(t, domain.StepSelectPlan, out.Step)

	saved := state.contexts["s1"]
	require.Empty(t, saved.SelectedPlan)
	require.NotEmpty(t, saved.MessageLines) // only the plan is discarded
}

func TestConverse_ResetCommandClearsEverything(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	drive(t, svc, "s1", happyPathScript...)

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "新しいメッセージを作る"})
	require.NoError(t, err)
	require.Equal(t, domain.StepAskRecipient, out.Step)

	saved := state.contexts["s1"]
	require.Empty(t, saved.RecipientName)
	require.Empty(t, saved.MessageLines)
	require.Empty(t, saved.OrderID)
	require.False(t, saved.OrderConfirmed)
}

func TestConverse_DeterministicReplay(t *testing.T) {
	orig := newOrderID
	newOrderID = func() string { return "SAVTEST0001" }
	defer func() { newOrderID = orig }()

	script := append(append([]string{}, happyPathScript[:4]...), "提案して", "案1", "事前予約", "キャンセル", "無料", "OK")

	run := func() []ConverseOutput {
		svc := mustNewService(t, newFakeState(), &fakeOrders{})
		return drive(t, svc, "s1", script...)
	}
	a := run()
	b := run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].Reply, b[i].Reply, "turn %d", i)
		require.Equal(t, a[i].Step, b[i].Step, "turn %d", i)
	}
}

func TestConverse_InvalidInput(t *testing.T) {
	svc := mustNewService(t, newFakeState(), &fakeOrders{})

	_, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "   "})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Equal(t, "empty_message", ucErr.Reason)

	_, err = svc.Converse(context.Background(), ConverseInput{
		SessionID: "s1",
		Message:   strings.Repeat("あ", defaultMaxInput+1),
	})
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, "message_too_long", ucErr.Reason)
}

func TestConverse_GeneratesSessionID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "generated-session" }
	defer func() { newUUID = orig }()

	svc := mustNewService(t, newFakeState(), &fakeOrders{})
	out, err := svc.Converse(context.Background(), ConverseInput{Message: "こんにちは"})
	require.NoError(t, err)
	require.Equal(t, "generated-session", out.SessionID)
}

func TestConverse_StateErrors(t *testing.T) {
	state := newFakeState()
	state.loadErr = errors.New("dynamo down")
	svc := mustNewService(t, state, &fakeOrders{})

	_, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "こんにちは"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInternal, ucErr.Code)
	require.Equal(t, "context_load_error", ucErr.Reason)

	state.loadErr = nil
	state.saveErr = errors.New("dynamo down")
	_, err = svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "こんにちは"})
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, "context_save_error", ucErr.Reason)
}

func TestConverse_AppendTurnFailureIsTolerated(t *testing.T) {
	state := newFakeState()
	state.appendErr = errors.New("throttled")
	svc := mustNewService(t, state, &fakeOrders{})

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "こんにちは"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Reply)
}

func TestConverse_OrderNotificationDelivered(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := mustNewService(t, newFakeState(), &fakeOrders{}, WithNotifier(notifier))

	drive(t, svc, "s1", happyPathScript...)
	svc.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, []domain.NotificationEvent{domain.NotifyOrderReceived}, notifier.events)
}

func TestConverse_NotificationDrainedBeforeTurnReturns(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := mustNewService(t, newFakeState(), &fakeOrders{}, WithNotifier(notifier))

	// no Wait call: the confirm turn itself must not return before the
	// notification went out, or a frozen process would drop it
	drive(t, svc, "s1", happyPathScript...)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, []domain.NotificationEvent{domain.NotifyOrderReceived}, notifier.events)
}

func TestHandleAskOccasion_RepromptKeepsStep(t *testing.T) {
	svc := mustNewService(t, newFakeState(), &fakeOrders{})
	conv := domain.NewConversationContext("s1")
	conv.RecipientName = "花子"
	conv.CurrentStep = domain.StepAskOccasion

	reply := svc.handleAskOccasion(conv, "")
	require.Equal(t, domain.StepAskOccasion, conv.CurrentStep)
	require.Equal(t, fallback.OccasionReprompt(), reply)
	require.NotContains(t, reply, "素敵です")
}

func TestConverse_CompleteStepAnswersQueries(t *testing.T) {
	svc := mustNewService(t, newFakeState(), &fakeOrders{})
	drive(t, svc, "s1", happyPathScript...)

	out, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "料金はいくら？"})
	require.NoError(t, err)
	require.Equal(t, domain.StepComplete, out.Step)
	require.Contains(t, out.Reply, "料金プラン")

	out, err = svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "バイバイ"})
	require.NoError(t, err)
	require.Contains(t, out.Reply, "ありがとうございました")
}

func TestConverse_SerializesTurnsWithinSession(t *testing.T) {
	state := newFakeState()
	svc := mustNewService(t, state, &fakeOrders{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Converse(context.Background(), ConverseInput{SessionID: "s1", Message: "こんにちは"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	saved := state.contexts["s1"]
	require.True(t, saved.CurrentStep.Valid())
}

func TestNewConverseService_Validation(t *testing.T) {
	_, err := NewConverseService(nil, &fakeOrders{})
	require.Error(t, err)
	_, err = NewConverseService(newFakeState(), nil)
	require.Error(t, err)
}

func TestNewOrderID_Format(t *testing.T) {
	origNow := timeNow
	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = origNow }()

	id := newOrderID()
	ts := strings.ToUpper(strconv.FormatInt(fixed.UnixMilli(), 36))
	require.True(t, strings.HasPrefix(id, "SAV"+ts))
	require.Len(t, id, len("SAV")+len(ts)+4)
	require.Equal(t, strings.ToUpper(id), id)
}

func TestBuildContextSummary(t *testing.T) {
	conv := domain.NewConversationContext("s1")
	conv.RecipientName = "花子"
	conv.Occasion = domain.OccasionBirthday
	conv.BroadcastDate = "2026-09-15"
	conv.CurrentStep = domain.StepCreateMessage

	summary := buildContextSummary(conv)
	require.Contains(t, summary, "recipient: 花子")
	require.Contains(t, summary, "birthday")
	require.Contains(t, summary, "2026-09-15")
	require.Contains(t, summary, "create_message")

	require.Empty(t, buildContextSummary(nil))
}
