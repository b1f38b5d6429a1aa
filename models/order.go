package models

import (
	"time"
)

type Order struct {
	UUID            string    `json:"uuid"`
	ExternalOrderID string    `json:"order_id"`
	BuyerID         string    `json:"buyer_id"`
	BuyerName       string    `json:"buyer_name"`
	BuyerEmail      string    `json:"buyer_email"`
	BuyerPhone      string    `json:"buyer_phone,omitempty"`
	Platform        string    `json:"platform"`
	OrderAmount     float64   `json:"order_amount"`
	CreatedAt       time.Time `json:"created_at"`
}
