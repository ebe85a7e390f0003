package domain

// Step identifies where a conversation currently is in the order-taking flow.
type Step string

const (
	StepGreeting      Step = "greeting"
	StepAskRecipient  Step = "ask_recipient"
	StepAskOccasion   Step = "ask_occasion"
	StepAskDate       Step = "ask_date"
	StepCreateMessage Step = "create_message"
	StepSelectMessage Step = "select_message"
	StepSelectPlan    Step = "select_plan"
	StepConfirmOrder  Step = "confirm_order"
	StepComplete      Step = "complete"
)

// Valid reports whether s is one of the declared steps.
func (s Step) Valid() bool {
	switch s {
	case StepGreeting, StepAskRecipient, StepAskOccasion, StepAskDate,
		StepCreateMessage, StepSelectMessage, StepSelectPlan,
		StepConfirmOrder, StepComplete:
		return true
	}
	return false
}

// Occasion categorizes why a message is being sent.
type Occasion string

const (
	OccasionUnset       Occasion = ""
	OccasionBirthday    Occasion = "birthday"
	OccasionAnniversary Occasion = "anniversary"
	OccasionGraduation  Occasion = "graduation"
	OccasionWedding     Occasion = "wedding"
	OccasionThanks      Occasion = "thanks"
	OccasionCelebration Occasion = "celebration"
	OccasionOther       Occasion = "other"
)

// Label returns the Japanese display label used in conversational prose.
func (o Occasion) Label() string {
	switch o {
	case OccasionBirthday:
		return "誕生日"
	case OccasionAnniversary:
		return "記念日"
	case OccasionGraduation:
		return "卒業・入学"
	case OccasionWedding:
		return "結婚"
	case OccasionThanks:
		return "感謝"
	default:
		return "お祝い"
	}
}

// ConversationContext is the single mutable record owned by one active
// conversation. It is created at session start, reset on explicit command,
// and never shared across concurrent turns.
type ConversationContext struct {
	SessionID          string     `json:"sessionId"`
	RecipientName      string     `json:"recipientName"`
	Occasion           Occasion   `json:"occasion"`
	BroadcastDateRaw   string     `json:"broadcastDateRaw"`
	BroadcastDate      string     `json:"broadcastDate"` // YYYY-MM-DD when parseable, otherwise empty
	MessageLines       []string   `json:"messageLines"`
	PendingSuggestions [][]string `json:"pendingSuggestions,omitempty"`
	SelectedPlan       string     `json:"selectedPlan"`
	CurrentStep        Step       `json:"currentStep"`
	OrderConfirmed     bool       `json:"orderConfirmed"`
	OrderID            string     `json:"orderId,omitempty"`
}

// NewConversationContext returns a fresh context at the greeting step.
func NewConversationContext(sessionID string) *ConversationContext {
	return &ConversationContext{
		SessionID:   sessionID,
		CurrentStep: StepGreeting,
	}
}

// Reset clears every collected slot and moves the conversation to the given
// step. The session identity is preserved.
func (c *ConversationContext) Reset(to Step) {
	c.RecipientName = ""
	c.Occasion = OccasionUnset
	c.BroadcastDateRaw = ""
	c.BroadcastDate = ""
	c.MessageLines = nil
	c.PendingSuggestions = nil
	c.SelectedPlan = ""
	c.CurrentStep = to
	c.OrderConfirmed = false
	c.OrderID = ""
}
