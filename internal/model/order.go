package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRestaurantName is printed when an order carries no restaurant name.
const DefaultRestaurantName = "RESTAURANTE"

// --- Order Structures ---

// LineItem is one priced line of an order. TotalPrice is always
// Quantity × UnitPrice; use NewLineItem to build one.
type LineItem struct {
	Quantity    int
	ProductName string
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// NewLineItem checks the item fields and computes its total.
func NewLineItem(quantity int, productName string, unitPrice decimal.Decimal) (LineItem, error) {
	var verr ValidationError
	if quantity <= 0 {
		verr.Add("quantity", "must be a positive integer")
	}
	if strings.TrimSpace(productName) == "" {
		verr.Add("productName", "is required")
	}
	if unitPrice.IsNegative() {
		verr.Add("unitPrice", "must not be negative")
	}
	if verr.HasProblems() {
		return LineItem{}, &verr
	}
	return LineItem{
		Quantity:    quantity,
		ProductName: strings.TrimSpace(productName),
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Order is the immutable input of one ticket. Construct it with NewOrder;
// the accessors hand out copies.
type Order struct {
	items      []LineItem
	table      string
	customer   string
	restaurant string
}

// NewOrder builds an Order. At least one item and a table are required; an
// empty restaurant name falls back to DefaultRestaurantName.
func NewOrder(items []LineItem, table, customer, restaurant string) (Order, error) {
	var verr ValidationError
	if len(items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		verr.Add("tableNumber", "is required")
	}
	if verr.HasProblems() {
		return Order{}, &verr
	}

	restaurant = strings.TrimSpace(restaurant)
	if restaurant == "" {
		restaurant = DefaultRestaurantName
	}

	owned := make([]LineItem, len(items))
	copy(owned, items)
	return Order{
		items:      owned,
		table:      table,
		customer:   strings.TrimSpace(customer),
		restaurant: restaurant,
	}, nil
}

func (o Order) Items() []LineItem {
	out := make([]LineItem, len(o.items))
	copy(out, o.items)
	return out
}

func (o Order) ItemCount() int         { return len(o.items) }
func (o Order) Table() string          { return o.table }
func (o Order) Customer() string       { return o.customer }
func (o Order) RestaurantName() string { return o.restaurant }

// Total is the sum of every item's TotalPrice.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// Request rebuilds the wire shape of the order, as forwarded to relay agents.
func (o Order) Request() PrintRequest {
	req := PrintRequest{
		TableNumber:    TableNumber(o.table),
		CustomerName:   o.customer,
		RestaurantName: o.restaurant,
		Items:          make([]ItemRequest, 0, len(o.items)),
	}
	for _, item := range o.items {
		total := item.TotalPrice
		req.Items = append(req.Items, ItemRequest{
			Quantity:    item.Quantity,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  &total,
		})
	}
	return req
}
