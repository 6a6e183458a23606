package warehouse

import (
	"fmt"
	"sort"

	"salespipe/internal/model"
)

// QueryError reports a summary rebuild failure. The prior summary table is
// preserved because the replace is atomic-or-nothing.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// BuildSummary groups events by (product_id, sale_date) and computes
// COUNT(*), SUM(quantity), SUM(total_amount). Rows are ordered sale_date
// descending, then total_revenue descending. The ordering has no semantic
// effect but must stay deterministic; product_id ascending breaks
// remaining ties.
func BuildSummary(events []model.SalesEvent) []SummaryRow {
	type groupKey struct {
		productID int64
		saleDate  string
	}
	groups := make(map[groupKey]*SummaryRow)
	var order []groupKey
	for _, ev := range events {
		k := groupKey{productID: ev.ProductID, saleDate: model.SaleDate(ev.Timestamp)}
		row, ok := groups[k]
		if !ok {
			row = &SummaryRow{ProductID: k.productID, SaleDate: k.saleDate}
			groups[k] = row
			order = append(order, k)
		}
		row.TotalOrders++
		row.TotalQuantity += ev.Quantity
		row.TotalRevenue += ev.TotalAmount
	}

	rows := make([]SummaryRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, *groups[k])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SaleDate != rows[j].SaleDate {
			return rows[i].SaleDate > rows[j].SaleDate
		}
		if rows[i].TotalRevenue != rows[j].TotalRevenue {
			return rows[i].TotalRevenue > rows[j].TotalRevenue
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	return rows
}

// Aggregator recomputes the summary table from the full raw table.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Rebuild performs a full-replace rebuild: the whole summary table is
// swapped with the new result, never mutated row by row. Returns the new
// summary row count.
func (a *Aggregator) Rebuild() (int, error) {
	var events []model.SalesEvent
	err := a.store.RangeRaw(func(ev model.SalesEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return 0, &QueryError{Err: fmt.Errorf("scan raw table: %w", err)}
	}
	rows := BuildSummary(events)
	if err := a.store.ReplaceSummary(rows); err != nil {
		return 0, &QueryError{Err: fmt.Errorf("replace summary: %w", err)}
	}
	return len(rows), nil
}
