package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form assigned at enrichment. No timezone
// suffix is guaranteed; the value is local wall-clock time.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// OrderRequest is the inbound shape on POST /order. Required numeric fields
// are pointers so a missing field is distinguishable from a zero value and
// can be rejected at the boundary.
type OrderRequest struct {
	OrderID    *int64   `json:"order_id"`
	CustomerID *int64   `json:"customer_id"`
	ProductID  *int64   `json:"product_id"`
	Quantity   *int64   `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// SalesEvent is the wire and durable form of an order. Immutable once
// published; total_amount is computed once at enrichment and never
// recomputed downstream. Field declaration order is the canonical JSON
// field order.
type SalesEvent struct {
	OrderID     int64   `json:"order_id"`
	CustomerID  int64   `json:"customer_id"`
	ProductID   int64   `json:"product_id"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Timestamp   string  `json:"timestamp"`
	TotalAmount float64 `json:"total_amount"`
}

// ValidationError reports a malformed order request. Events failing
// validation never reach the queue.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order request: %s %s", e.Field, e.Reason)
}

// Now returns the wall-clock time used for timestamp assignment. Split for
// testability.
var Now = func() time.Time { return time.Now() }

// Enrich validates an order request and converts it into a SalesEvent.
// An absent timestamp is assigned at enrichment time, not at
// queue-processing time. Negative unit_price and quantity are accepted,
// matching upstream behavior.
func Enrich(req OrderRequest) (SalesEvent, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"order_id", req.OrderID != nil},
		{"customer_id", req.CustomerID != nil},
		{"product_id", req.ProductID != nil},
		{"quantity", req.Quantity != nil},
		{"unit_price", req.UnitPrice != nil},
	}
	for _, f := range required {
		if !f.ok {
			return SalesEvent{}, &ValidationError{Field: f.name, Reason: "is required"}
		}
	}

	ts := req.Timestamp
	if ts == "" {
		ts = Now().Format(TimestampLayout)
	}

	return SalesEvent{
		OrderID:     *req.OrderID,
		CustomerID:  *req.CustomerID,
		ProductID:   *req.ProductID,
		Quantity:    *req.Quantity,
		UnitPrice:   *req.UnitPrice,
		Timestamp:   ts,
		TotalAmount: float64(*req.Quantity) * *req.UnitPrice,
	}, nil
}

// EncodeEvent renders the canonical UTF-8 JSON wire form.
func EncodeEvent(ev SalesEvent) ([]byte, error) {
	b, err := json.Marshal(&ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// DecodeEvent parses a wire payload back into a SalesEvent.
func DecodeEvent(data []byte) (SalesEvent, error) {
	var ev SalesEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return SalesEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// SaleDate extracts the calendar date (YYYY-MM-DD) from an event timestamp
// for summary grouping.
func SaleDate(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}
