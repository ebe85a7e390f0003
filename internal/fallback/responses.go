// Package fallback is the deterministic response engine for the order-taking
// conversation. It produces the canned per-step prose and the candidate
// message suggestions used whenever the remote generation service is absent
// or unusable, so a turn can always complete with a well-formed reply.
package fallback

import (
	"fmt"
	"strings"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/signtext"
)

// Welcome greets a new session and asks for the recipient's name.
func Welcome() string {
	return `こんにちは！渋谷愛ビジョンへようこそ 💕

渋谷の大型ビジョンで、大切な人に「おめでとう」「ありがとう」のメッセージを届けませんか？

まず、メッセージを贈りたい相手のお名前を教えてください ✨`
}

// RecipientSaved acknowledges the recipient and asks for the occasion.
func RecipientSaved(name string) string {
	return fmt.Sprintf(`%sさんへのメッセージですね！素敵です ✨

どんなお祝いや感謝を伝えたいですか？

1️⃣ 誕生日おめでとう
2️⃣ 記念日のお祝い
3️⃣ 卒業・入学おめでとう
4️⃣ 結婚おめでとう
5️⃣ ありがとうを伝えたい

番号か、内容を教えてください！`, name)
}

// RecipientReprompt asks again when no name could be taken from the turn.
func RecipientReprompt() string {
	return `メッセージを贈りたい相手のお名前を教えてください ✨`
}

// OccasionReprompt asks again when no occasion could be taken from the turn.
func OccasionReprompt() string {
	return `どんなお祝いや感謝を伝えたいですか？

1️⃣ 誕生日おめでとう
2️⃣ 記念日のお祝い
3️⃣ 卒業・入学おめでとう
4️⃣ 結婚おめでとう
5️⃣ ありがとうを伝えたい

番号か、内容を教えてください！`
}

// OccasionSaved confirms the occasion and asks for the broadcast date.
func OccasionSaved(name string, occasion domain.Occasion) string {
	return fmt.Sprintf(`%sさんへの%sのメッセージですね！💕

放映を希望する日付を教えてください。
（例：1月25日、明日、など）

💡 誕生日の場合は、午前0時の「誕生祭」枠がおすすめです！`, name, occasion.Label())
}

// DateSaved confirms the date and explains the message format.
func DateSaved(name, dateLabel string) string {
	return fmt.Sprintf(`%sの放映ですね！📅

それでは、%sさんへのメッセージを作りましょう！

📝 メッセージのルール
・5行まで、1行は表示幅8（全角4文字）以内
・メッセージ全体で表示幅40以内
・♥☆♪などの記号も使えます

メッセージを入力するか、「提案して」と言ってください！`, dateLabel, name)
}

// SuggestionsOffered renders candidate messages for the user to pick from.
func SuggestionsOffered(name string, suggestions [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sさんへのメッセージ案を考えました！💡\n", name)
	for i, lines := range suggestions {
		fmt.Fprintf(&b, "\n案%d\n```\n%s\n```\n", i+1, strings.Join(lines, "\n"))
	}
	b.WriteString("\n気に入ったものがあれば「案1」のように教えてください。自分でメッセージを入力してもOKです！")
	return b.String()
}

// MessageCommitted confirms the committed lines and lists the plans.
func MessageCommitted(lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "素敵なメッセージですね！✨\n\n```\n%s\n```\n\nこのメッセージで進めましょう！\n\n次に、放映プランを選んでください 💎\n", strings.Join(lines, "\n"))
	for _, p := range domain.Plans() {
		fmt.Fprintf(&b, "\n・%s（%s）- %s", p.NameJa, p.PriceDisplay, p.Description)
	}
	b.WriteString("\n\n詳しく知りたいプランがあれば「詳しく教えて」と言ってください！")
	return b.String()
}

// FormatViolations explains why a candidate message was rejected, naming the
// specific violations so the user can fix them.
func FormatViolations(res signtext.Result) string {
	var b strings.Builder
	b.WriteString("ごめんなさい、メッセージがルールに合いませんでした 🙏\n")
	for _, v := range res.Violations {
		switch v.Kind {
		case signtext.ViolationTooManyLines:
			fmt.Fprintf(&b, "・行数が%d行あります（%d行以内にしてください）\n", v.Width, signtext.MaxLines)
		case signtext.ViolationLineTooWide:
			fmt.Fprintf(&b, "・%d行目の幅が%dです（%d以内にしてください）\n", v.Line, v.Width, signtext.MaxLineWidth)
		case signtext.ViolationTotalTooWide:
			fmt.Fprintf(&b, "・全体の幅が%dです（%d以内にしてください）\n", v.Width, signtext.MaxTotalWidth)
		}
	}
	b.WriteString("\n少し短くして、もう一度入力してください！")
	return b.String()
}

// PlanDetails describes every plan, used for the "tell me more" intent.
func PlanDetails() string {
	var b strings.Builder
	b.WriteString("各プランの詳細をご説明しますね！\n")
	for _, p := range domain.Plans() {
		fmt.Fprintf(&b, "\n%s（%s）\n・%s\n・1日%d通まで\n", p.NameJa, p.PriceDisplay, p.Description, p.MaxMessagesPerDay)
		if p.IsGuaranteed {
			b.WriteString("・確実に放映されます\n")
		} else {
			b.WriteString("・放映は抽選です\n")
		}
		if p.AllowsDecoration {
			b.WriteString("・愛デコ（装飾）対応\n")
		}
		if p.AllowsCard {
			b.WriteString("・愛カード（QR付）対応\n")
		}
	}
	b.WriteString("\nどのプランにしますか？")
	return b.String()
}

// OrderSummary echoes every collected slot ahead of confirmation.
func OrderSummary(c *domain.ConversationContext, plan domain.Plan) string {
	date := c.BroadcastDate
	if date == "" {
		date = c.BroadcastDateRaw
	}
	if date == "" {
		date = "未設定"
	}
	return fmt.Sprintf(`%sを選択しました！

📋 ご注文内容の確認

👤 贈る相手：%sさん
🎉 お祝いの種類：%s
📅 放映希望日：%s
💰 プラン：%s（%s）

`+"```\n%s\n```"+`

この内容でよろしいですか？
「OK」または「注文する」で確定、「キャンセル」で取り消しできます。`,
		plan.NameJa, c.RecipientName, c.Occasion.Label(), date,
		plan.NameJa, plan.PriceDisplay, strings.Join(c.MessageLines, "\n"))
}

// OrderCompleted thanks the user after a successful finalization.
func OrderCompleted(orderID, name string, plan domain.Plan) string {
	outcome := "🎲 抽選結果は放映日にYouTube LIVEでご確認ください。"
	if plan.IsGuaranteed {
		outcome = "✅ 放映が確定しましたら、LINEでお知らせします。"
	}
	return fmt.Sprintf(`🎉 ご注文ありがとうございます！

注文ID: %s

%sさんへのメッセージを受け付けました。

%s

渋谷愛ビジョンで、あなたの想いが届きますように 💕

他にもメッセージを送りたい場合は、「新しいメッセージを作る」と言ってください！`, orderID, name, outcome)
}

// OrderFailed tells the user that finalization failed and can be retried.
// The collected slots stay intact, so a retry needs no re-entry.
func OrderFailed() string {
	return `ごめんなさい、注文の処理でエラーが発生しました 🙏

入力いただいた内容はそのまま残っています。
少し待ってから、もう一度「OK」と言ってください。`
}

// OrderCancelled confirms backing out of the confirmation step.
func OrderCancelled() string {
	return `キャンセルしました。

プランを選び直しますか？それとも最初からやり直しますか？`
}

// ConfirmReprompt lists the editable fields when confirmation input was not
// understood.
func ConfirmReprompt() string {
	return `修正したい箇所はありますか？

・メッセージを変更 → 「メッセージを変更」
・プランを変更 → 「プランを変更」

または「OK」で確定、「キャンセル」で取り消しできます。`
}

// NewMessageStarted acknowledges a full reset from the complete step.
func NewMessageStarted() string {
	return `新しいメッセージを作成しましょう！✨

メッセージを贈りたい相手のお名前を教えてください 💕`
}

// Farewell closes out a finished conversation.
func Farewell() string {
	return `ありがとうございました！💕

またメッセージを送りたくなったら、いつでもお声がけください ✨`
}

// CompleteOptions restates what a finished session can still do.
func CompleteOptions() string {
	return `何かお手伝いできることはありますか？

・新しいメッセージを作成 → 「新しいメッセージを作る」
・プランについて知りたい → 「プランを教えて」
・使い方を知りたい → 「使い方」`
}
