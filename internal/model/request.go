package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TableNumber accepts both `"5"` and `5` on the wire and always marshals as
// a string.
type TableNumber string

func (t *TableNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TableNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tableNumber must be a string or a number: %w", err)
	}
	*t = TableNumber(n.String())
	return nil
}

// ItemRequest is one line item as sent by the dashboard.
type ItemRequest struct {
	Quantity    int              `json:"quantity"`
	ProductName string           `json:"productName"`
	UnitPrice   decimal.Decimal  `json:"unitPrice"`
	TotalPrice  *decimal.Decimal `json:"totalPrice,omitempty"`
}

// PrintRequest is the inbound "print ticket" request.
type PrintRequest struct {
	Items          []ItemRequest `json:"items"`
	TableNumber    TableNumber   `json:"tableNumber"`
	CustomerName   string        `json:"customerName,omitempty"`
	RestaurantName string        `json:"restaurantName,omitempty"`
}

// Order validates the request and builds an Order from it. Totals are
// recomputed from quantity and unit price; a caller supplied totalPrice that
// disagrees at two decimals is rejected.
func (r PrintRequest) Order() (Order, error) {
	var verr ValidationError
	if len(r.Items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	if string(r.TableNumber) == "" {
		verr.Add("tableNumber", "is required")
	}

	items := make([]LineItem, 0, len(r.Items))
	for i, in := range r.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		item, err := NewLineItem(in.Quantity, in.ProductName, in.UnitPrice)
		if err != nil {
			if itemErr, ok := err.(*ValidationError); ok {
				verr.merge(prefix, itemErr)
				continue
			}
			return Order{}, err
		}
		if in.TotalPrice != nil {
			if in.TotalPrice.IsNegative() {
				verr.Add(prefix+".totalPrice", "must not be negative")
				continue
			}
			if !in.TotalPrice.Round(2).Equal(item.TotalPrice.Round(2)) {
				verr.Add(prefix+".totalPrice", fmt.Sprintf("%s does not match quantity x unitPrice = %s",
					in.TotalPrice.StringFixed(2), item.TotalPrice.StringFixed(2)))
				continue
			}
		}
		items = append(items, item)
	}
	if verr.HasProblems() {
		return Order{}, &verr
	}
	return NewOrder(items, string(r.TableNumber), r.CustomerName, r.RestaurantName)
}

// Summary is the short recap returned with every accepted ticket.
type Summary struct {
	ItemCount int    `json:"itemCount"`
	Total     string `json:"total"`
}

// AttemptReport is the wire form of one channel attempt.
type AttemptReport struct {
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	Success   bool   `json:"success"`
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsedMs"`
}

// PrintResponse is returned for every print request that passed validation.
type PrintResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Method     string          `json:"method,omitempty"`
	DispatchID string          `json:"dispatchId,omitempty"`
	Summary    *Summary        `json:"summary,omitempty"`
	Attempts   []AttemptReport `json:"attempts"`
}

// WebhookBody is the JSON forwarded to remote automation endpoints and
// message subjects.
type WebhookBody struct {
	Items          []ItemRequest `json:"items"`
	TableNumber    TableNumber   `json:"tableNumber"`
	CustomerName   string        `json:"customerName"`
	RestaurantName string        `json:"restaurantName"`
	Timestamp      time.Time     `json:"timestamp"`
	Total          string        `json:"total"`
}

// NewWebhookBody builds the forward body for order at the given time.
func NewWebhookBody(order Order, at time.Time) WebhookBody {
	req := order.Request()
	return WebhookBody{
		Items:          req.Items,
		TableNumber:    req.TableNumber,
		CustomerName:   req.CustomerName,
		RestaurantName: req.RestaurantName,
		Timestamp:      at,
		Total:          order.Total().StringFixed(2),
	}
}
