package orders

type Status string

const (
	// AwaitingPayment is the unsettled placeholder of a hosted checkout; it holds no stock.
	StatusAwaitingPayment Status = "Awaiting Payment"
	StatusPlaced          Status = "Order Placed"
	StatusPacking         Status = "Packing"
	StatusShipped         Status = "Shipped"
	StatusOutForDelivery  Status = "Out for delivery"
	StatusDelivered       Status = "Delivered"
	StatusCanceled        Status = "Canceled"
)

var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment: {StatusPlaced: true},
	StatusPlaced:          {StatusPacking: true, StatusCanceled: true},
	StatusPacking:         {StatusShipped: true},
	StatusShipped:         {StatusOutForDelivery: true},
	StatusOutForDelivery:  {StatusDelivered: true},
	StatusDelivered:       {},
	StatusCanceled:        {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// fulfillment are the statuses an admin may set directly.
var fulfillment = map[Status]bool{
	StatusPlaced:         true,
	StatusPacking:        true,
	StatusShipped:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
}

// CanAdminSet allows moving freely between fulfillment statuses, including
// corrections backwards. Canceled is terminal, unsettled orders are owned by
// settlement, and cancellation has to go through Cancel to restore stock.
func CanAdminSet(from, to Status) bool {
	if from == to {
		return false
	}
	return fulfillment[from] && fulfillment[to]
}

func (s Status) Known() bool {
	_, ok := validNext[s]
	return ok
}
