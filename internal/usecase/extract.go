package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vision-concierge/internal/domain"
)

// honorifics are stripped from the tail of a recipient utterance, longest
// first so さま wins over さ.
var honorifics = []string{"さん", "さま", "様", "ちゃん", "くん", "君", "へ", "に"}

// extractRecipientName pulls a name out of a free-form utterance by stripping
// leading filler and trailing honorifics. It always succeeds on non-empty
// input, falling back to the raw trimmed text, so the step can never
// dead-end.
func extractRecipientName(text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ""
	}
	name := raw
	for _, prefix := range []string{"名前は", "相手は"} {
		name = strings.TrimPrefix(name, prefix)
	}
	for changed := true; changed; {
		changed = false
		for _, h := range honorifics {
			if trimmed := strings.TrimSuffix(name, h); trimmed != name && trimmed != "" {
				name = trimmed
				changed = true
			}
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return raw
	}
	return name
}

// occasionKeywords is evaluated in order; the first hit wins.
var occasionKeywords = []struct {
	occasion domain.Occasion
	words    []string
}{
	{domain.OccasionBirthday, []string{"誕生日", "誕生祭", "バースデー", "birthday"}},
	{domain.OccasionAnniversary, []string{"記念日", "記念"}},
	{domain.OccasionGraduation, []string{"卒業", "入学"}},
	{domain.OccasionWedding, []string{"結婚", "ウェディング"}},
	{domain.OccasionThanks, []string{"ありがとう", "感謝"}},
	{domain.OccasionCelebration, []string{"お祝い", "おめでと"}},
}

// numberedOccasions mirrors the menu shown by the occasion prompt.
var numberedOccasions = map[string]domain.Occasion{
	"1": domain.OccasionBirthday,
	"2": domain.OccasionAnniversary,
	"3": domain.OccasionGraduation,
	"4": domain.OccasionWedding,
	"5": domain.OccasionThanks,
}

// parseOccasion maps an utterance to an occasion. Any non-empty text that
// matches nothing falls back to OccasionOther so the flow always advances.
func parseOccasion(text string) domain.Occasion {
	t := strings.TrimSpace(normalizeDigits(text))
	if t == "" {
		return domain.OccasionUnset
	}
	if occ, ok := numberedOccasions[strings.TrimSuffix(strings.TrimSuffix(t, "️⃣"), "番")]; ok {
		return occ
	}
	lower := strings.ToLower(t)
	for _, entry := range occasionKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.occasion
			}
		}
	}
	return domain.OccasionOther
}

var monthDayRe = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)

// parseDate resolves a date utterance against the current time. It returns
// the ISO date and a short display label, or empty strings when the text
// carries no recognizable date. A month/day already past this year rolls over
// to next year.
func parseDate(text string, now time.Time) (iso, label string) {
	t := normalizeDigits(strings.TrimSpace(text))

	switch {
	case strings.Contains(t, "今日"):
		return now.Format("2006-01-02"), "今日"
	case strings.Contains(t, "明後日"):
		return now.AddDate(0, 0, 2).Format("2006-01-02"), "明後日"
	case strings.Contains(t, "明日"):
		return now.AddDate(0, 0, 1).Format("2006-01-02"), "明日"
	}

	m := monthDayRe.FindStringSubmatch(t)
	if m == nil {
		return "", ""
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", ""
	}

	candidate := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if candidate.Month() != time.Month(month) || candidate.Day() != day {
		// e.g. 2月31日 normalized away by time.Date
		return "", ""
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate.Format("2006-01-02"), fmt.Sprintf("%d月%d日", month, day)
}

// planKeywords is evaluated in order; more specific tokens come first so
// おめあり祭23B is not swallowed by broader matches.
var planKeywords = []struct {
	planID string
	words  []string
}{
	{domain.PlanOmeari23B, []string{"おめあり", "23b", "23時"}},
	{domain.PlanReservation, []string{"事前予約", "予約", "reservation", "8800", "8,800"}},
	{domain.PlanTeam9, []string{"team", "チーム", "愛9", "500"}},
	{domain.PlanFree, []string{"無料", "フリー", "free", "0円"}},
}

// parsePlanID maps an utterance to a plan id, also accepting the 1-based
// menu position. Returns "" when nothing matched.
func parsePlanID(text string) string {
	t := strings.ToLower(strings.TrimSpace(normalizeDigits(text)))
	if t == "" {
		return ""
	}
	if n, err := strconv.Atoi(t); err == nil {
		all := domain.Plans()
		if n >= 1 && n <= len(all) {
			return all[n-1].ID
		}
		return ""
	}
	for _, entry := range planKeywords {
		for _, w := range entry.words {
			if strings.Contains(t, w) {
				return entry.planID
			}
		}
	}
	return ""
}

var suggestionChoiceRe = regexp.MustCompile(`^案?(\d{1,2})$`)

// parseSuggestionChoice resolves 案N / N selections into a 1-based index.
// Returns 0 when the text is not a selection or the index is out of range.
func parseSuggestionChoice(text string, count int) int {
	t := strings.TrimSpace(normalizeDigits(text))
	m := suggestionChoiceRe.FindStringSubmatch(t)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 || n > count {
		return 0
	}
	return n
}

func isAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range []string{"ok", "ｏｋ", "はい", "うん", "了解", "確定", "注文する", "注文", "お願い", "yes"} {
		if t == w || strings.HasPrefix(t, w) {
			return true
		}
	}
	return false
}

func isCancel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return containsAny(t, "キャンセル", "やめる", "やめたい", "取り消し", "cancel", "いいえ")
}

func isResetCommand(text string) bool {
	t := strings.TrimSpace(text)
	return containsAny(t, "新しいメッセージ", "最初から", "やり直し", "リセット")
}

func wantsSuggestion(text string) bool {
	return containsAny(strings.TrimSpace(text), "提案", "おまかせ", "お任せ", "考えて", "おすすめ")
}

func wantsMessageChange(text string) bool {
	return containsAny(strings.TrimSpace(text), "メッセージを変更", "メッセージ変更")
}

func wantsPlanChange(text string) bool {
	return containsAny(strings.TrimSpace(text), "プランを変更", "プラン変更", "プランを選び直")
}

func wantsPlanDetails(text string) bool {
	return containsAny(strings.TrimSpace(text), "詳しく", "詳細")
}

func isFarewell(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return containsAny(t, "さようなら", "さよなら", "バイバイ", "またね", "bye")
}

func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// normalizeDigits folds full-width digits to ASCII so numeric shorthand works
// regardless of the user's input mode.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}
