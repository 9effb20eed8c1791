package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func itemWith(returnStatus, pickupStatus, replacementID string) OrderItem {
	item := OrderItem{
		ProductID:          "p1",
		ReturnStatus:       returnStatus,
		ReplacementOrderID: replacementID,
	}
	if returnStatus != "" {
		item.ReturnDetails = &ReturnDetails{PickupStatus: pickupStatus}
	}
	return item
}

func TestItemState(t *testing.T) {
	tests := []struct {
		name     string
		item     OrderItem
		expected ItemReturnState
	}{
		{
			name:     "no return activity",
			item:     itemWith("", "", ""),
			expected: StateNoReturn,
		},
		{
			name:     "return requested",
			item:     itemWith(ReturnStatusRequested, "", ""),
			expected: StateRequested,
		},
		{
			name:     "approved awaiting pickup",
			item:     itemWith(ReturnStatusApproved, "", ""),
			expected: StateApprovedAwaitingPickup,
		},
		{
			name:     "approved and picked up",
			item:     itemWith(ReturnStatusApproved, PickupStatusPickedUp, ""),
			expected: StateApprovedPickedUp,
		},
		{
			name:     "approved picked up and replaced",
			item:     itemWith(ReturnStatusApproved, PickupStatusPickedUp, "ord-replacement"),
			expected: StateApprovedReplaced,
		},
		{
			name:     "rejected",
			item:     itemWith(ReturnStatusRejected, "", ""),
			expected: StateRejected,
		},
		{
			name:     "refunded",
			item:     itemWith(ReturnStatusRefunded, PickupStatusPickedUp, ""),
			expected: StateRefunded,
		},
		{
			name:     "customer-shipped return not yet received",
			item:     itemWith(ReturnStatusReturned, "", ""),
			expected: StateApprovedAwaitingPickup,
		},
		{
			name:     "customer-shipped return received",
			item:     itemWith(ReturnStatusReturned, PickupStatusPickedUp, ""),
			expected: StateApprovedPickedUp,
		},
		{
			name:     "approved without details treated as awaiting pickup",
			item:     OrderItem{ReturnStatus: ReturnStatusApproved},
			expected: StateApprovedAwaitingPickup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ItemState(&tt.item))
		})
	}
}

func TestActions(t *testing.T) {
	tests := []struct {
		name     string
		item     OrderItem
		expected ItemActions
	}{
		{
			name:     "no return allows nothing",
			item:     itemWith("", "", ""),
			expected: ItemActions{},
		},
		{
			name:     "requested allows approve and reject only",
			item:     itemWith(ReturnStatusRequested, "", ""),
			expected: ItemActions{Approve: true, Reject: true},
		},
		{
			name:     "awaiting pickup allows pickup only",
			item:     itemWith(ReturnStatusApproved, "", ""),
			expected: ItemActions{MarkPickedUp: true},
		},
		{
			name:     "picked up allows replacement and refund",
			item:     itemWith(ReturnStatusApproved, PickupStatusPickedUp, ""),
			expected: ItemActions{CreateReplacement: true, ProcessRefund: true},
		},
		{
			name:     "replaced item can still be refunded",
			item:     itemWith(ReturnStatusApproved, PickupStatusPickedUp, "ord-replacement"),
			expected: ItemActions{ProcessRefund: true},
		},
		{
			name:     "rejected is terminal",
			item:     itemWith(ReturnStatusRejected, "", ""),
			expected: ItemActions{},
		},
		{
			name:     "refunded picked-up item can still be replaced once",
			item:     itemWith(ReturnStatusRefunded, PickupStatusPickedUp, ""),
			expected: ItemActions{CreateReplacement: true},
		},
		{
			name:     "refunded and replaced allows nothing",
			item:     itemWith(ReturnStatusRefunded, PickupStatusPickedUp, "ord-replacement"),
			expected: ItemActions{},
		},
		{
			name:     "refunded without pickup allows nothing",
			item:     itemWith(ReturnStatusRefunded, "", ""),
			expected: ItemActions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Actions(&tt.item))
		})
	}
}

// Every state exposes at most one "stage" of the lifecycle: no state may
// allow both approve/reject and any post-approval action.
func TestActionStagesAreExclusive(t *testing.T) {
	states := []ItemReturnState{
		StateNoReturn, StateRequested, StateApprovedAwaitingPickup,
		StateApprovedPickedUp, StateApprovedReplaced, StateRejected, StateRefunded,
	}
	for _, state := range states {
		for _, pickedUp := range []bool{false, true} {
			for _, hasReplacement := range []bool{false, true} {
				a := ActionsFor(state, pickedUp, hasReplacement)
				decision := a.Approve || a.Reject
				post := a.MarkPickedUp || a.CreateReplacement || a.ProcessRefund
				assert.False(t, decision && post,
					"state %s exposes decision and post-approval actions together", state)
			}
		}
	}
}

func TestItemStateString(t *testing.T) {
	assert.Equal(t, "NoReturn", StateNoReturn.String())
	assert.Equal(t, "Refunded", StateRefunded.String())
	assert.Equal(t, "Unknown", ItemReturnState(42).String())
}
