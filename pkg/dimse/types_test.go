package dimse

import "testing"

func TestPriorityValid(t *testing.T) {
	cases := []struct {
		p     Priority
		valid bool
	}{
		{PriorityMedium, true},
		{PriorityHigh, true},
		{PriorityLow, true},
		{Priority(99), false},
		{Priority(-1), false},
	}
	for _, c := range cases {
		if got := c.p.Valid(); got != c.valid {
			t.Errorf("Priority(%d).Valid() = %v, want %v", c.p, got, c.valid)
		}
	}
}

func TestAssociationStateTerminal(t *testing.T) {
	terminal := []AssociationState{StateReleased, StateAborted, StateRefused, StateFailed}
	nonTerminal := []AssociationState{StateIdle, StateNegotiating, StateEstablished, StateReleasing}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestPresentationContextAccepted(t *testing.T) {
	accepted := PresentationContext{Result: ContextAccepted}
	if !accepted.Accepted() {
		t.Errorf("expected accepted context to report Accepted() == true")
	}
	rejected := PresentationContext{Result: ContextAbstractSyntaxNotSupported}
	if rejected.Accepted() {
		t.Errorf("expected rejected context to report Accepted() == false")
	}
}

func TestCoercePriority(t *testing.T) {
	if got := coercePriority(PriorityHigh); got != PriorityHigh {
		t.Errorf("valid priority should pass through unchanged, got %v", got)
	}
	if got := coercePriority(Priority(42)); got != PriorityMedium {
		t.Errorf("invalid priority should coerce to PriorityMedium, got %v", got)
	}
}

func TestTerminalStatus(t *testing.T) {
	if terminalStatus(StatusPending) {
		t.Errorf("StatusPending should not be terminal")
	}
	if !terminalStatus(StatusSuccess) {
		t.Errorf("StatusSuccess should be terminal")
	}
	if !terminalStatus(StatusCannotUnderstand) {
		t.Errorf("StatusCannotUnderstand should be terminal")
	}
}
