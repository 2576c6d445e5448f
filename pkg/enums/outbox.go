package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateCheckout     OutboxAggregateType = "checkout"
	AggregateEscrowLedger OutboxAggregateType = "escrow_ledger"
	AggregateCoupon       OutboxAggregateType = "coupon"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckout,
	AggregateEscrowLedger,
	AggregateCoupon,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated     OutboxEventType = "order_created"
	EventOrderShipped     OutboxEventType = "order_shipped"
	EventOrderDelivered   OutboxEventType = "order_delivered"
	EventOrderCancelled   OutboxEventType = "order_cancelled"
	EventPaymentConfirmed OutboxEventType = "payment_confirmed"
	EventEscrowReleased   OutboxEventType = "escrow_released"
	EventEscrowRefunded   OutboxEventType = "escrow_refunded"
	EventEscrowDisputed   OutboxEventType = "escrow_disputed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventPaymentConfirmed,
	EventEscrowReleased,
	EventEscrowRefunded,
	EventEscrowDisputed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
