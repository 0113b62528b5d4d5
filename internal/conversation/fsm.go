package conversation

import "fmt"

// State is the explicit checkout position of a session. Every checkout
// action is validated against the transition table before it runs, so a
// stray button press can never skip a step.
type State int

const (
	StateIdle State = iota
	StateBrowsing
	StateCartReviewing
	StateFulfillmentSelection
	StateDeliveryForm
	StateOrderSummary
	StateConfirming
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateBrowsing:             "browsing",
	StateCartReviewing:        "cart_reviewing",
	StateFulfillmentSelection: "fulfillment_selection",
	StateDeliveryForm:         "delivery_form",
	StateOrderSummary:         "order_summary",
	StateConfirming:           "confirming",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists, per state, the states reachable from it. Browsing and
// cart review are reachable from anywhere since the user can always back out
// of checkout.
var transitions = map[State][]State{
	StateIdle:                 {StateBrowsing, StateCartReviewing, StateFulfillmentSelection},
	StateBrowsing:             {StateBrowsing, StateCartReviewing, StateFulfillmentSelection, StateIdle},
	StateCartReviewing:        {StateBrowsing, StateCartReviewing, StateFulfillmentSelection, StateIdle},
	StateFulfillmentSelection: {StateDeliveryForm, StateOrderSummary, StateBrowsing, StateCartReviewing},
	StateDeliveryForm:         {StateOrderSummary, StateBrowsing, StateCartReviewing},
	StateOrderSummary:         {StateConfirming, StateBrowsing, StateCartReviewing},
	StateConfirming:           {StateIdle, StateOrderSummary},
}

// machine tracks session state and enforces the transition table. It is not
// safe for concurrent use; the engine serializes access.
type machine struct {
	state State
}

func (m *machine) current() State {
	return m.state
}

// to advances to next if the transition table allows it.
func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}

// force sets the state unconditionally. Reserved for session hydration.
func (m *machine) force(s State) {
	m.state = s
}
