package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/fallback"
	"vision-concierge/internal/signtext"
)

const (
	defaultMaxInput      = 500
	defaultRemoteTimeout = 10 * time.Second
	maxHistoryItems      = 20
	notifyRetryDelay     = 2 * time.Second
)

type StateStore interface {
	LoadContext(ctx context.Context, sessionID string) (*domain.ConversationContext, error)
	SaveContext(ctx context.Context, conv *domain.ConversationContext) error
	AppendTurn(ctx context.Context, sessionID, text, reply string) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) error
}

// MessageGenerator is the optional remote text-generation service. It only
// ever contributes suggestion phrasing; slot extraction and step transitions
// are computed locally on every turn.
type MessageGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []domain.ChatMessage, contextSummary string) (domain.GeneratedReply, error)
}

// Notifier delivers order lifecycle notifications. Delivery is best-effort.
type Notifier interface {
	NotifyOrderEvent(ctx context.Context, event domain.NotificationEvent, order domain.Order) error
}

// ConverseService runs the order-taking conversation. One instance serves
// all sessions; turns within a session are serialized so context updates
// never interleave.
type ConverseService struct {
	state         StateStore
	orders        OrderStore
	generator     MessageGenerator
	notifier      Notifier
	logger        *slog.Logger
	maxInputLen   int
	remoteTimeout time.Duration

	sessionLocks sync.Map // sessionID -> *sync.Mutex
	notifyWG     sync.WaitGroup
}

type ConverseOption func(*ConverseService)

// WithGenerator attaches a remote generation service. Without one the
// engine runs local-only, which is also the behavior whenever the remote
// call fails.
func WithGenerator(g MessageGenerator) ConverseOption {
	return func(s *ConverseService) { s.generator = g }
}

func WithNotifier(n Notifier) ConverseOption {
	return func(s *ConverseService) { s.notifier = n }
}

func WithLogger(l *slog.Logger) ConverseOption {
	return func(s *ConverseService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMaxInputLength(n int) ConverseOption {
	return func(s *ConverseService) {
		if n > 0 {
			s.maxInputLen = n
		}
	}
}

func WithRemoteTimeout(d time.Duration) ConverseOption {
	return func(s *ConverseService) {
		if d > 0 {
			s.remoteTimeout = d
		}
	}
}

type ConverseInput struct {
	SessionID string
	UserID    string
	Message   string
}

type ConverseOutput struct {
	Reply     string
	SessionID string
	Step      domain.Step
	OrderID   string
}

func NewConverseService(state StateStore, orders OrderStore, opts ...ConverseOption) (*ConverseService, error) {
	if state == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	if orders == nil {
		return nil, errors.New("usecase: order store must not be nil")
	}
	s := &ConverseService{
		state:         state,
		orders:        orders,
		logger:        slog.Default(),
		maxInputLen:   defaultMaxInput,
		remoteTimeout: defaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Converse processes one user turn. Identical context and input always yield
// the identical reply and state transition.
func (s *ConverseService) Converse(ctx context.Context, in ConverseInput) (ConverseOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ConverseOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len([]rune(message)) > s.maxInputLen {
		return ConverseOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = sessionID
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.state.LoadContext(ctx, sessionID)
	if err != nil {
		return ConverseOutput{}, newError(ErrorInternal, "context_load_error", err)
	}
	if conv == nil {
		conv = domain.NewConversationContext(sessionID)
	}

	reply, err := s.advance(ctx, conv, userID, message)
	if err != nil {
		return ConverseOutput{}, err
	}

	if err := s.state.SaveContext(ctx, conv); err != nil {
		return ConverseOutput{}, newError(ErrorInternal, "context_save_error", err)
	}
	if err := s.state.AppendTurn(ctx, sessionID, message, reply); err != nil {
		// history is advisory; the committed context is what matters
		s.logger.Warn("append turn failed", "sessionId", sessionID, "error", err)
	}

	// drain notification sends: the runtime may freeze the process as soon as
	// the response is returned
	s.notifyWG.Wait()

	return ConverseOutput{
		Reply:     reply,
		SessionID: sessionID,
		Step:      conv.CurrentStep,
		OrderID:   conv.OrderID,
	}, nil
}

// Wait blocks until in-flight notification deliveries finish. Converse
// drains its own sends before returning; Wait covers shutdown paths.
func (s *ConverseService) Wait() {
	s.notifyWG.Wait()
}

func (s *ConverseService) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// advance dispatches one turn through the step machine, mutating conv in
// place and returning the reply text.
func (s *ConverseService) advance(ctx context.Context, conv *domain.ConversationContext, userID, message string) (string, error) {
	if conv.CurrentStep != domain.StepGreeting && isResetCommand(message) {
		conv.Reset(domain.StepAskRecipient)
		return fallback.NewMessageStarted(), nil
	}

	switch conv.CurrentStep {
	case domain.StepGreeting:
		conv.CurrentStep = domain.StepAskRecipient
		return fallback.Welcome(), nil
	case domain.StepAskRecipient:
		return s.handleAskRecipient(conv, message), nil
	case domain.StepAskOccasion:
		return s.handleAskOccasion(conv, message), nil
	case domain.StepAskDate:
		return s.handleAskDate(conv, message), nil
	case domain.StepCreateMessage:
		return s.handleCreateMessage(ctx, conv, message), nil
	case domain.StepSelectMessage:
		return s.handleSelectMessage(ctx, conv, message), nil
	case domain.StepSelectPlan:
		return s.handleSelectPlan(conv, message), nil
	case domain.StepConfirmOrder:
		return s.handleConfirmOrder(ctx, conv, userID, message)
	case domain.StepComplete:
		return s.handleComplete(conv, message), nil
	default:
		return "", newError(ErrorInternal, "unknown_step", nil)
	}
}

func (s *ConverseService) handleAskRecipient(conv *domain.ConversationContext, message string) string {
	name := extractRecipientName(message)
	if name == "" {
		return fallback.RecipientReprompt()
	}
	conv.RecipientName = name
	conv.CurrentStep = domain.StepAskOccasion
	return fallback.RecipientSaved(name)
}

func (s *ConverseService) handleAskOccasion(conv *domain.ConversationContext, message string) string {
	occ := parseOccasion(message)
	if occ == domain.OccasionUnset {
		return fallback.OccasionReprompt()
	}
	conv.Occasion = occ
	conv.CurrentStep = domain.StepAskDate
	return fallback.OccasionSaved(conv.RecipientName, occ)
}

func (s *ConverseService) handleAskDate(conv *domain.ConversationContext, message string) string {
	iso, label := parseDate(message, timeNow())
	conv.BroadcastDateRaw = message
	conv.BroadcastDate = iso
	if label == "" {
		label = message
	}
	conv.CurrentStep = domain.StepCreateMessage
	return fallback.DateSaved(conv.RecipientName, label)
}

func (s *ConverseService) handleCreateMessage(ctx context.Context, conv *domain.ConversationContext, message string) string {
	if wantsSuggestion(message) {
		return s.offerSuggestions(ctx, conv, message)
	}
	return s.commitMessage(conv, signtext.SplitIntoLines(message))
}

func (s *ConverseService) handleSelectMessage(ctx context.Context, conv *domain.ConversationContext, message string) string {
	if wantsSuggestion(message) {
		return s.offerSuggestions(ctx, conv, message)
	}
	if n := parseSuggestionChoice(message, len(conv.PendingSuggestions)); n > 0 {
		return s.commitMessage(conv, conv.PendingSuggestions[n-1])
	}
	// anything else is treated as a hand-written message
	return s.commitMessage(conv, signtext.SplitIntoLines(message))
}

// commitMessage validates candidate lines and either locks them in and moves
// to plan selection, or reports the violations and keeps the current step.
func (s *ConverseService) commitMessage(conv *domain.ConversationContext, lines []string) string {
	res := signtext.ValidateLines(lines)
	if !res.OK {
		return fallback.FormatViolations(res)
	}
	conv.MessageLines = lines
	conv.PendingSuggestions = nil
	conv.CurrentStep = domain.StepSelectPlan
	return fallback.MessageCommitted(lines)
}

func (s *ConverseService) offerSuggestions(ctx context.Context, conv *domain.ConversationContext, message string) string {
	conv.PendingSuggestions = s.generateSuggestions(ctx, conv, message)
	conv.CurrentStep = domain.StepSelectMessage
	return fallback.SuggestionsOffered(conv.RecipientName, conv.PendingSuggestions)
}

// generateSuggestions asks the remote service for candidates and falls back
// to the local templates on any failure or unusable reply. Candidates are
// re-validated here regardless of origin.
func (s *ConverseService) generateSuggestions(ctx context.Context, conv *domain.ConversationContext, message string) [][]string {
	local := fallback.Suggestions(conv.RecipientName, conv.Occasion)
	if s.generator == nil {
		return local
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	history, err := s.state.GetHistory(ctx, conv.SessionID, maxHistoryItems)
	if err != nil {
		s.logger.Warn("history load failed, generating without it", "sessionId", conv.SessionID, "error", err)
		history = nil
	}
	history = append(history, domain.ChatMessage{Role: "user", Content: message})

	reply, err := s.generator.Generate(remoteCtx, buildSystemPrompt(), history, buildContextSummary(conv))
	if err != nil {
		s.logger.Warn("remote generation failed, using local suggestions", "sessionId", conv.SessionID, "error", err)
		return local
	}
	if !reply.Structured() {
		return local
	}

	valid := make([][]string, 0, len(reply.Suggestions))
	for _, lines := range reply.Suggestions {
		if len(lines) == signtext.MaxLines && signtext.ValidateLines(lines).OK {
			valid = append(valid, lines)
		}
	}
	if len(valid) == 0 {
		return local
	}
	return valid
}

func (s *ConverseService) handleSelectPlan(conv *domain.ConversationContext, message string) string {
	if wantsPlanDetails(message) {
		return fallback.PlanDetails()
	}
	planID := parsePlanID(message)
	if planID == "" {
		return fallback.PlanDetails()
	}
	plan, err := domain.PlanByID(planID)
	if err != nil {
		return fallback.PlanDetails()
	}
	conv.SelectedPlan = planID
	conv.CurrentStep = domain.StepConfirmOrder
	return fallback.OrderSummary(conv, plan)
}

func (s *ConverseService) handleConfirmOrder(ctx context.Context, conv *domain.ConversationContext, userID, message string) (string, error) {
	switch {
	case isCancel(message):
		conv.SelectedPlan = ""
		conv.CurrentStep = domain.StepSelectPlan
		return fallback.OrderCancelled(), nil
	case wantsMessageChange(message):
		conv.MessageLines = nil
		conv.PendingSuggestions = nil
		conv.CurrentStep = domain.StepCreateMessage
		return fallback.DateSaved(conv.RecipientName, dateLabel(conv)), nil
	case wantsPlanChange(message):
		conv.CurrentStep = domain.StepSelectPlan
		return fallback.PlanDetails(), nil
	case isAffirmative(message):
		return s.finalizeOrder(ctx, conv, userID)
	default:
		return fallback.ConfirmReprompt(), nil
	}
}

// finalizeOrder creates the order exactly once. A confirmed context replays
// the completion reply without writing anything, so a duplicated confirm
// turn cannot create a second order.
func (s *ConverseService) finalizeOrder(ctx context.Context, conv *domain.ConversationContext, userID string) (string, error) {
	plan, err := domain.PlanByID(conv.SelectedPlan)
	if err != nil {
		return "", newError(ErrorOrderCreation, "incomplete_order_state", err)
	}
	if conv.RecipientName == "" || len(conv.MessageLines) == 0 {
		return "", newError(ErrorOrderCreation, "incomplete_order_state", nil)
	}

	if conv.OrderConfirmed && conv.OrderID != "" {
		conv.CurrentStep = domain.StepComplete
		return fallback.OrderCompleted(conv.OrderID, conv.RecipientName, plan), nil
	}

	now := timeNow().UTC()
	order := domain.Order{
		ID:            newOrderID(),
		UserID:        userID,
		RecipientName: conv.RecipientName,
		Occasion:      conv.Occasion,
		BroadcastDate: conv.BroadcastDate,
		MessageLines:  conv.MessageLines,
		PlanID:        plan.ID,
		PlanName:      plan.NameJa,
		Price:         plan.Price,
		Status:        domain.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		// slots stay intact so the user can simply confirm again
		s.logger.Error("order creation failed", "sessionId", conv.SessionID, "orderId", order.ID, "error", err)
		return fallback.OrderFailed(), nil
	}

	conv.OrderConfirmed = true
	conv.OrderID = order.ID
	conv.CurrentStep = domain.StepComplete

	s.notifyAsync(order)
	return fallback.OrderCompleted(order.ID, conv.RecipientName, plan), nil
}

func (s *ConverseService) handleComplete(conv *domain.ConversationContext, message string) string {
	if isFarewell(message) {
		return fallback.Farewell()
	}
	if resp, ok := fallback.AnswerQuery(message, conv); ok {
		return resp
	}
	return fallback.CompleteOptions()
}

// notifyAsync pushes the order-received notification in the background with
// one retry. Failures are logged and never surfaced to the conversation.
func (s *ConverseService) notifyAsync(order domain.Order) {
	if s.notifier == nil {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		s.sendOrderNotification(order)
	}()
}

func (s *ConverseService) sendOrderNotification(order domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	err := s.notifier.NotifyOrderEvent(ctx, domain.NotifyOrderReceived, order)
	if err == nil {
		return
	}
	s.logger.Warn("order notification failed, retrying", "orderId", order.ID, "error", err)

	time.Sleep(notifyRetryDelay)
	retryCtx, cancelRetry := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancelRetry()
	if err := s.notifier.NotifyOrderEvent(retryCtx, domain.NotifyOrderReceived, order); err != nil {
		s.logger.Error("order notification dropped after retry", "orderId", order.ID, "error", err)
	}
}

func dateLabel(conv *domain.ConversationContext) string {
	if conv.BroadcastDate != "" {
		return conv.BroadcastDate
	}
	if conv.BroadcastDateRaw != "" {
		return conv.BroadcastDateRaw
	}
	return "未定"
}

var newUUID = func() string {
	return uuid.NewString()
}

var timeNow = time.Now

// newOrderID builds a short human-readable order id: a SAV prefix, the
// millisecond timestamp in base36 and a random suffix.
var newOrderID = func() string {
	ts := strings.ToUpper(strconv.FormatInt(timeNow().UnixMilli(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "SAV" + ts + suffix
}
