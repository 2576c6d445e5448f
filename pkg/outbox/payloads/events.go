package payloads

import (
	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/pkg/enums"
)

// OrderCreatedEvent fans out after a checkout commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	UserID      uuid.UUID           `json:"user_id"`
	VendorID    uuid.UUID           `json:"vendor_id"`
	OrderNumber string              `json:"order_number"`
	TotalCents  int64               `json:"total_cents"`
	Currency    enums.Currency      `json:"currency"`
	Method      enums.PaymentMethod `json:"payment_method"`
	Status      enums.OrderStatus   `json:"status"`
	Payment     enums.PaymentStatus `json:"payment_status"`
	SiblingIDs  []uuid.UUID         `json:"sibling_order_ids,omitempty"`
}

// OrderStateChangedEvent fires on ship/deliver/cancel transitions.
type OrderStateChangedEvent struct {
	OrderID  uuid.UUID         `json:"order_id"`
	UserID   uuid.UUID         `json:"user_id"`
	VendorID uuid.UUID         `json:"vendor_id"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
	Reason   string            `json:"reason,omitempty"`
}

// PaymentConfirmedEvent fires when a gateway verification succeeds.
type PaymentConfirmedEvent struct {
	Reference   string      `json:"reference"`
	OrderIDs    []uuid.UUID `json:"order_ids"`
	AmountCents int64       `json:"amount_cents"`
}

// EscrowSettledEvent fires on release or refund.
type EscrowSettledEvent struct {
	EscrowID    uuid.UUID          `json:"escrow_id"`
	OrderID     uuid.UUID          `json:"order_id"`
	Status      enums.EscrowStatus `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	Reason      string             `json:"reason,omitempty"`
}
