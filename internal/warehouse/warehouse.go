package warehouse

import (
	"salespipe/internal/model"
)

// SummaryRow is one row of the derived summary table: aggregates for a
// (product_id, sale_date) group.
type SummaryRow struct {
	ProductID     int64   `json:"product_id"`
	SaleDate      string  `json:"sale_date"`
	TotalOrders   int64   `json:"total_orders"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// Store abstracts the warehouse backend. The raw table is append-only and
// created when first written; the summary table is only ever replaced
// wholesale, never patched row by row.
type Store interface {
	AppendRaw(events []model.SalesEvent) error
	RangeRaw(fn func(ev model.SalesEvent) error) error
	ReplaceSummary(rows []SummaryRow) error
	Summary() ([]SummaryRow, error)
	Close() error
}
