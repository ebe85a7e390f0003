package domain

import "fmt"

// Plan is a priced broadcast tier. The plan table is immutable reference
// data, safely shared across sessions.
type Plan struct {
	ID                string
	Name              string
	NameJa            string
	Price             int
	PriceDisplay      string
	Description       string
	IsGuaranteed      bool
	MaxMessagesPerDay int
	AllowsDecoration  bool
	AllowsCard        bool
}

const (
	PlanFree        = "free"
	PlanTeam9       = "team9"
	PlanReservation = "reservation"
	PlanOmeari23B   = "omeari23b"
)

var plans = []Plan{
	{
		ID:                PlanFree,
		Name:              "Free",
		NameJa:            "無料プラン",
		Price:             0,
		PriceDisplay:      "無料",
		Description:       "抽選で放映（1日1通まで）",
		IsGuaranteed:      false,
		MaxMessagesPerDay: 1,
	},
	{
		ID:                PlanTeam9,
		Name:              "TEAM愛9",
		NameJa:            "TEAM愛9",
		Price:             500,
		PriceDisplay:      "月額500円",
		Description:       "有料会員で当選確率アップ、放映枠の指定が可能",
		IsGuaranteed:      false,
		MaxMessagesPerDay: 2,
	},
	{
		ID:                PlanReservation,
		Name:              "Reservation",
		NameJa:            "事前予約",
		Price:             8800,
		PriceDisplay:      "8,800円〜",
		Description:       "確実に放映。愛デコ・愛カード対応",
		IsGuaranteed:      true,
		MaxMessagesPerDay: 99,
		AllowsDecoration:  true,
		AllowsCard:        true,
	},
	{
		ID:                PlanOmeari23B,
		Name:              "Omeari 23B",
		NameJa:            "おめあり祭23B",
		Price:             3300,
		PriceDisplay:      "3,300円",
		Description:       "当日18:59まで予約可能、23時台に確実に放映",
		IsGuaranteed:      true,
		MaxMessagesPerDay: 99,
	},
}

// Plans returns the plan table in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan by identifier.
func PlanByID(id string) (Plan, error) {
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("domain: unknown plan %q", id)
}

// GuaranteedPlans returns the plans that always broadcast.
func GuaranteedPlans() []Plan {
	var out []Plan
	for _, p := range plans {
		if p.IsGuaranteed {
			out = append(out, p)
		}
	}
	return out
}
