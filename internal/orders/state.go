package orders

// ItemReturnState is the explicit form of the per-item state machine that the
// underlying fields (returnStatus, pickupStatus, replacementOrderId) encode
// implicitly. It is derived fresh from the item on every use and never stored.
type ItemReturnState int

const (
	StateNoReturn ItemReturnState = iota
	StateRequested
	StateApprovedAwaitingPickup
	StateApprovedPickedUp
	StateApprovedReplaced
	StateRejected
	StateRefunded
)

func (s ItemReturnState) String() string {
	switch s {
	case StateNoReturn:
		return "NoReturn"
	case StateRequested:
		return "Requested"
	case StateApprovedAwaitingPickup:
		return "ApprovedAwaitingPickup"
	case StateApprovedPickedUp:
		return "ApprovedPickedUp"
	case StateApprovedReplaced:
		return "ApprovedReplaced"
	case StateRejected:
		return "Rejected"
	case StateRefunded:
		return "Refunded"
	}
	return "Unknown"
}

// ItemState derives the tagged state from the item's fields. A "Returned"
// status (customer shipped the item back themselves) is folded into the
// approved branch and walks the same pickup, replacement and refund steps.
func ItemState(item *OrderItem) ItemReturnState {
	switch item.ReturnStatus {
	case "":
		return StateNoReturn
	case ReturnStatusRequested:
		return StateRequested
	case ReturnStatusRejected:
		return StateRejected
	case ReturnStatusRefunded:
		return StateRefunded
	case ReturnStatusApproved, ReturnStatusReturned:
		if item.ReturnDetails == nil || item.ReturnDetails.PickupStatus != PickupStatusPickedUp {
			return StateApprovedAwaitingPickup
		}
		if item.ReplacementOrderID != "" {
			return StateApprovedReplaced
		}
		return StateApprovedPickedUp
	}
	return StateNoReturn
}

// ItemActions lists the admin actions valid for an item in its current state.
// Refund and replacement are independent: a refunded item may still get its
// one replacement, and a replaced item may still be refunded.
type ItemActions struct {
	Approve           bool
	Reject            bool
	MarkPickedUp      bool
	CreateReplacement bool
	ProcessRefund     bool
}

// ActionsFor computes availability from the derived state plus the two facts
// the state alone does not carry across the refunded branch.
func ActionsFor(state ItemReturnState, pickedUp, hasReplacement bool) ItemActions {
	var a ItemActions
	switch state {
	case StateRequested:
		a.Approve = true
		a.Reject = true
	case StateApprovedAwaitingPickup:
		a.MarkPickedUp = true
	case StateApprovedPickedUp:
		a.CreateReplacement = true
		a.ProcessRefund = true
	case StateApprovedReplaced:
		a.ProcessRefund = true
	case StateRefunded:
		a.CreateReplacement = pickedUp && !hasReplacement
	}
	return a
}

// Actions derives the available actions straight from the item.
func Actions(item *OrderItem) ItemActions {
	pickedUp := item.ReturnDetails != nil && item.ReturnDetails.PickupStatus == PickupStatusPickedUp
	return ActionsFor(ItemState(item), pickedUp, item.ReplacementOrderID != "")
}
