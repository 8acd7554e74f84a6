package models

import "time"

// OrderItem is a line of a storefront order as carried on the orders topic.
// UnitPrice is tax-inclusive.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Order is the subset of an order the billing service needs to invoice it.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	Currency  string      `json:"currency"`
	CreatedAt time.Time   `json:"created_at"`
}
