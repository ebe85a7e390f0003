package fallback

import (
	"strings"

	"vision-concierge/internal/domain"
	"vision-concierge/internal/signtext"
)

// maxNameWidth is the display-width budget for a recipient name inside a
// suggestion line. Longer names are truncated before interpolation so every
// generated line stays within the sign format.
const maxNameWidth = 4

// fallbackName keeps templates valid when no recipient name was collected.
const fallbackName = "きみ"

// suggestionTemplates maps an occasion to candidate 5-line messages. The
// empty string slot in each template receives the (truncated) recipient name.
// Every line must stay within the 8-unit budget once a 4-unit name is
// substituted.
func suggestionTemplates(occasion domain.Occasion) [][5]string {
	switch occasion {
	case domain.OccasionBirthday:
		return [][5]string{
			{"%sへ", "誕生日", "おめでと", "すてきな", "一年を♥"},
			{"%s", "HAPPY", "BIRTH", "DAY!", "大好き♥"},
			{"祝%s", "生まれて", "きてくれ", "ありがと", "ずっと♥"},
		}
	case domain.OccasionAnniversary:
		return [][5]string{
			{"%sへ", "記念日", "おめでと", "ずっと", "一緒に♥"},
			{"%s", "出会えて", "幸せです", "ありがと", "愛してる"},
			{"%sと", "過ごした", "日々は", "宝物だよ", "ずっと♥"},
		}
	case domain.OccasionGraduation:
		return [][5]string{
			{"%sへ", "卒業", "おめでと", "新しい", "門出に♥"},
			{"%s", "がんばっ", "たね！", "未来は", "明るいよ"},
			{"祝%s", "努力が", "実ったね", "誇りだよ", "最高♥"},
		}
	case domain.OccasionWedding:
		return [][5]string{
			{"%sへ", "ご結婚", "おめでと", "末永く", "幸せに♥"},
			{"%s", "ふたりの", "門出を", "心から", "祝福♥"},
			{"%sへ", "ふたり", "ならば", "大丈夫", "お幸せに"},
		}
	case domain.OccasionThanks:
		return [][5]string{
			{"%sへ", "いつも", "ありがと", "感謝を", "込めて♥"},
			{"%s", "あなたの", "おかげで", "今日も", "笑顔です"},
			{"%sへ", "THANK", "YOU!", "大好きだ", "よ♥♥♥"},
		}
	default:
		return [][5]string{
			{"%sへ", "おめでと", "心から", "お祝い", "します♥"},
			{"%s", "すてきな", "一日を", "すごして", "ね♥♥"},
			{"祝%s", "いつも", "応援して", "いるよ", "がんばれ"},
		}
	}
}

// Suggestions builds the deterministic candidate messages for a recipient
// and occasion. Every returned candidate passes signtext.ValidateLines.
func Suggestions(recipientName string, occasion domain.Occasion) [][]string {
	name := signtext.TruncateToWidth(recipientName, maxNameWidth)
	if name == "" {
		name = fallbackName
	}

	templates := suggestionTemplates(occasion)
	out := make([][]string, 0, len(templates))
	for _, tpl := range templates {
		lines := make([]string, 0, len(tpl))
		for _, line := range tpl {
			line = strings.ReplaceAll(line, "%s", name)
			lines = append(lines, signtext.TruncateToWidth(line, signtext.MaxLineWidth))
		}
		out = append(out, lines)
	}
	return out
}
