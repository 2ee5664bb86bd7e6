package domain

type OrderStatus string

const (
	StatusPendingConfirmation OrderStatus = "pending_confirmation"
	StatusConfirmed           OrderStatus = "confirmed"
	StatusInPreparation       OrderStatus = "in_preparation"
	StatusShipped             OrderStatus = "shipped"
	StatusDelivered           OrderStatus = "delivered"
	StatusCancelled           OrderStatus = "cancelled"
)

// OrderStatusSequence lists every status in fulfillment order.
var OrderStatusSequence = []OrderStatus{
	StatusPendingConfirmation,
	StatusConfirmed,
	StatusInPreparation,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// StatusLabels maps each status to its customer-facing label.
var StatusLabels = map[OrderStatus]string{
	StatusPendingConfirmation: "Pendiente de confirmacion",
	StatusConfirmed:           "Confirmado",
	StatusInPreparation:       "En preparacion",
	StatusShipped:             "Enviado",
	StatusDelivered:           "Entregado",
	StatusCancelled:           "Cancelado",
}

var nextStatusMap = map[OrderStatus][]OrderStatus{
	StatusPendingConfirmation: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:           {StatusInPreparation, StatusCancelled},
	StatusInPreparation:       {StatusShipped, StatusCancelled},
	StatusShipped:             {StatusDelivered},
	StatusDelivered:           {},
	StatusCancelled:           {},
}

// ParseOrderStatus returns the status for a wire string, or false when the
// string is not part of the vocabulary.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	for _, s := range OrderStatusSequence {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// AllowedNextStatuses returns the legal next statuses for current; empty
// for the terminal states delivered and cancelled.
func AllowedNextStatuses(current OrderStatus) []OrderStatus {
	return nextStatusMap[current]
}

// CanTransition reports whether an order may move from current to next.
// A same-state request is valid: the admin UI double-submits the same
// button at times and treats it as a harmless no-op.
func CanTransition(current, next OrderStatus) bool {
	if current == next {
		return true
	}
	for _, allowed := range nextStatusMap[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave the given status.
func IsTerminal(status OrderStatus) bool {
	return len(nextStatusMap[status]) == 0
}

// InProgressStatuses are the statuses shown as an active order on the
// customer's account page.
var InProgressStatuses = []OrderStatus{
	StatusPendingConfirmation,
	StatusConfirmed,
	StatusInPreparation,
	StatusShipped,
}
