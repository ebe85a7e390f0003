package fallback

import (
	"fmt"
	"strings"

	"vision-concierge/internal/domain"
)

// intentRule pairs a predicate with the handler that answers it. Rules are
// evaluated top to bottom and the first match wins; the order is part of the
// contract, so a more specific rule must be listed before a broader one.
type intentRule struct {
	name    string
	match   func(text string) bool
	respond func(c *domain.ConversationContext) string
}

func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var intentRules = []intentRule{
	{
		name: "help",
		match: func(t string) bool {
			return containsAny(t, "使い方", "ヘルプ", "help", "サービスについて")
		},
		respond: func(*domain.ConversationContext) string {
			return `渋谷愛ビジョンは、渋谷の大型ビジョンに大切な人へのメッセージを放映するサービスです。

会話の流れで、贈る相手・お祝いの種類・放映希望日・メッセージ・プランを順番にお聞きします。
「新しいメッセージを作る」でいつでも始められます！`
		},
	},
	{
		name: "pricing",
		match: func(t string) bool {
			return containsAny(t, "料金", "価格", "いくら", "値段")
		},
		respond: func(*domain.ConversationContext) string {
			var b strings.Builder
			b.WriteString("料金プランのご案内です 💰\n")
			for _, p := range domain.Plans() {
				fmt.Fprintf(&b, "\n・%s：%s", p.NameJa, p.PriceDisplay)
			}
			b.WriteString("\n\n詳しくは「プランを教えて」と聞いてください！")
			return b.String()
		},
	},
	{
		name: "location",
		match: func(t string) bool {
			return containsAny(t, "場所", "どこ", "アクセス")
		},
		respond: func(*domain.ConversationContext) string {
			return `渋谷愛ビジョンは、渋谷駅・宮益坂下交差点の縦型大型ビジョンです 🏙️

放映はYouTube LIVEでもご覧いただけます！`
		},
	},
	{
		name: "make_message",
		match: func(t string) bool {
			return containsAny(t, "新しい", "作る", "作りたい", "メッセージ", "贈りたい", "最初から")
		},
		respond: func(*domain.ConversationContext) string {
			return NewMessageStarted()
		},
	},
	{
		name: "occasion",
		match: func(t string) bool {
			return containsAny(t, "誕生日", "記念日", "卒業", "入学", "結婚", "ありがとう", "感謝", "お祝い")
		},
		respond: func(*domain.ConversationContext) string {
			return `お祝いのメッセージですね！🎉

「新しいメッセージを作る」と言っていただければ、ご案内を始めます。`
		},
	},
	{
		name: "plan",
		match: func(t string) bool {
			return containsAny(t, "プラン", "無料", "team", "チーム", "予約", "おめあり")
		},
		respond: func(*domain.ConversationContext) string {
			return PlanDetails()
		},
	},
	{
		name: "confirmation",
		match: func(t string) bool {
			return containsAny(t, "ok", "はい", "了解", "わかった")
		},
		respond: func(*domain.ConversationContext) string {
			return CompleteOptions()
		},
	},
}

// AnswerQuery runs the ordered intent rules over a free-form utterance and
// returns the first matching response. ok is false when nothing matched.
func AnswerQuery(text string, c *domain.ConversationContext) (response string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range intentRules {
		if rule.match(t) {
			return rule.respond(c), true
		}
	}
	return "", false
}

// RuleNames exposes the evaluation order of the intent rules.
func RuleNames() []string {
	names := make([]string, len(intentRules))
	for i, r := range intentRules {
		names[i] = r.name
	}
	return names
}
