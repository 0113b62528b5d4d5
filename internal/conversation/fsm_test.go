package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPathCheckout(t *testing.T) {
	m := &machine{}
	steps := []State{
		StateBrowsing,
		StateFulfillmentSelection,
		StateDeliveryForm,
		StateOrderSummary,
		StateConfirming,
		StateIdle,
	}
	for _, next := range steps {
		require.NoError(t, m.to(next), "to %s", next)
	}
	assert.Equal(t, StateIdle, m.current())
}

func TestMachine_RejectsSkippingSteps(t *testing.T) {
	m := &machine{}
	assert.Error(t, m.to(StateDeliveryForm), "cannot jump straight to the form")
	assert.Error(t, m.to(StateConfirming), "cannot confirm from idle")
	assert.Equal(t, StateIdle, m.current(), "failed transition leaves state unchanged")
}

func TestMachine_ConfirmFailureReturnsToSummary(t *testing.T) {
	m := &machine{state: StateConfirming}
	require.NoError(t, m.to(StateOrderSummary))
	require.NoError(t, m.to(StateConfirming), "manual retry allowed")
}

func TestMachine_AbortFromAnyCheckoutStep(t *testing.T) {
	for _, from := range []State{StateFulfillmentSelection, StateDeliveryForm, StateOrderSummary} {
		m := &machine{state: from}
		assert.NoError(t, m.to(StateCartReviewing), "abort from %s", from)
	}
}
