package usecase

import (
	"fmt"
	"strings"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/signtext"
)

// buildSystemPrompt returns the fixed instruction block for the remote
// generation service. The contract deliberately restricts the model to
// suggestion authoring; slot extraction and step transitions never leave the
// local engine.
func buildSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"あなたは渋谷の大型ビジョンに放映するお祝いメッセージの作家です。",
		"",
		"Task:",
		"会話の文脈をもとに、放映用メッセージの候補を考えてください。",
		"",
		"Format Rules:",
		fmt.Sprintf("1) 各候補はちょうど%d行。", signtext.MaxLines),
		fmt.Sprintf("2) 1行の表示幅は%d以内。全角文字と絵文字は幅2、半角文字は幅1。", signtext.MaxLineWidth),
		fmt.Sprintf("3) 候補全体の表示幅は%d以内。", signtext.MaxTotalWidth),
		"4) ♥☆♪などの記号は幅1として使えます。",
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func outputContract() string {
	return `JSONのみを返してください。形式: {"suggestions":[{"lines":["...","...","...","...","..."]}]}。` +
		"候補は最大3件。説明文は書かないでください。"
}

// buildContextSummary serializes the collected slots for the remote call so
// the model sees the conversation state without receiving control over it.
func buildContextSummary(c *domain.ConversationContext) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation State:\n")
	fmt.Fprintf(&b, "- step: %s\n", c.CurrentStep)
	if c.RecipientName != "" {
		fmt.Fprintf(&b, "- recipient: %s\n", c.RecipientName)
	}
	if c.Occasion != domain.OccasionUnset {
		fmt.Fprintf(&b, "- occasion: %s (%s)\n", c.Occasion, c.Occasion.Label())
	}
	if c.BroadcastDate != "" {
		fmt.Fprintf(&b, "- broadcast date: %s\n", c.BroadcastDate)
	} else if c.BroadcastDateRaw != "" {
		fmt.Fprintf(&b, "- broadcast date (raw): %s\n", c.BroadcastDateRaw)
	}
	if len(c.MessageLines) > 0 {
		fmt.Fprintf(&b, "- message: %s\n", strings.Join(c.MessageLines, " / "))
	}
	if c.SelectedPlan != "" {
		fmt.Fprintf(&b, "- plan: %s\n", c.SelectedPlan)
	}
	return strings.TrimRight(b.String(), "\n")
}
