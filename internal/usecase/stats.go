package usecase

import (
	"context"

	"vision-concierge/internal/domain"
)

// OrderLister is the repository surface the stats summary reads from.
type OrderLister interface {
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}

// OrderStats aggregates an order listing. Revenue covers every order that is
// not cancelled; a cancelled order keeps its record but no longer bills.
type OrderStats struct {
	Total    int
	ByStatus map[domain.OrderStatus]int
	Revenue  int
}

// SummarizeOrders folds a listing into per-status counts and total revenue.
func SummarizeOrders(orders []domain.Order) OrderStats {
	stats := OrderStats{ByStatus: make(map[domain.OrderStatus]int)}
	for _, o := range orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status != domain.OrderCancelled {
			stats.Revenue += o.Price
		}
	}
	return stats
}

// LoadOrderStats lists the orders matching the filter and summarizes them.
func LoadOrderStats(ctx context.Context, lister OrderLister, filter domain.OrderFilter) (OrderStats, error) {
	if lister == nil {
		return OrderStats{}, newError(ErrorInternal, "missing_order_lister", nil)
	}
	orders, err := lister.ListOrders(ctx, filter)
	if err != nil {
		return OrderStats{}, newError(ErrorInternal, "order_list_error", err)
	}
	return SummarizeOrders(orders), nil
}
