package dimse

import "testing"

func TestNegotiatePreservesOrderAndID(t *testing.T) {
	offered := []PresentationContext{
		{AbstractSyntax: VerificationSOPClass, TransferSyntaxes: DefaultTransferSyntaxes},
		{AbstractSyntax: StudyRootFindSOPClass, TransferSyntaxes: DefaultTransferSyntaxes},
	}
	proposed := []PresentationContext{
		{ID: 1, AbstractSyntax: StudyRootFindSOPClass, TransferSyntaxes: []string{ImplicitVRLittleEndian}},
		{ID: 3, AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ExplicitVRLittleEndian}},
	}

	n := NewPresentationContextNegotiator()
	result := n.Negotiate(proposed, offered)

	if len(result) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result))
	}
	if result[0].ID != 1 || result[1].ID != 3 {
		t.Fatalf("negotiator reordered contexts: got ids %d, %d", result[0].ID, result[1].ID)
	}
	for i, r := range result {
		if !r.Accepted() {
			t.Fatalf("context %d unexpectedly not accepted: result=%v", i, r.Result)
		}
	}
}

func TestNegotiateAbstractSyntaxNotOffered(t *testing.T) {
	offered := []PresentationContext{{AbstractSyntax: VerificationSOPClass, TransferSyntaxes: DefaultTransferSyntaxes}}
	proposed := []PresentationContext{{ID: 1, AbstractSyntax: StudyRootMoveSOPClass, TransferSyntaxes: DefaultTransferSyntaxes}}

	result := NewPresentationContextNegotiator().Negotiate(proposed, offered)
	if result[0].Result != ContextAbstractSyntaxNotSupported {
		t.Fatalf("expected ContextAbstractSyntaxNotSupported, got %v", result[0].Result)
	}
	if result[0].Accepted() {
		t.Fatalf("context should not be accepted")
	}
}

func TestNegotiateNoCommonTransferSyntax(t *testing.T) {
	offered := []PresentationContext{{AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ExplicitVRBigEndian}}}
	proposed := []PresentationContext{{ID: 1, AbstractSyntax: VerificationSOPClass, TransferSyntaxes: []string{ImplicitVRLittleEndian}}}

	result := NewPresentationContextNegotiator().Negotiate(proposed, offered)
	if result[0].Result != ContextTransferSyntaxesNotSupported {
		t.Fatalf("expected ContextTransferSyntaxesNotSupported, got %v", result[0].Result)
	}
}

func TestNegotiateAcceptorPreferenceOrder(t *testing.T) {
	offered := []PresentationContext{{
		AbstractSyntax:   VerificationSOPClass,
		TransferSyntaxes: []string{ExplicitVRLittleEndian, ImplicitVRLittleEndian},
	}}
	proposed := []PresentationContext{{
		ID:               1,
		AbstractSyntax:   VerificationSOPClass,
		TransferSyntaxes: []string{ImplicitVRLittleEndian, ExplicitVRLittleEndian},
	}}

	result := NewPresentationContextNegotiator().Negotiate(proposed, offered)
	if result[0].AcceptedTransferSyntax != ExplicitVRLittleEndian {
		t.Fatalf("expected acceptor's preferred transfer syntax %q, got %q", ExplicitVRLittleEndian, result[0].AcceptedTransferSyntax)
	}
}

func TestResolveRolesDefaultsToRequestorSCU(t *testing.T) {
	proposed := PresentationContext{AbstractSyntax: StudyRootGetSOPClass}
	offered := PresentationContext{AbstractSyntax: StudyRootGetSOPClass}

	scu, scp := resolveRoles(proposed, offered)
	if !scu || scp {
		t.Fatalf("expected default roles (scu=true, scp=false), got scu=%v scp=%v", scu, scp)
	}
}

func TestResolveRolesConjunction(t *testing.T) {
	proposed := PresentationContext{AbstractSyntax: StudyRootGetSOPClass, RoleSCU: true, RoleSCP: true}
	offered := PresentationContext{AbstractSyntax: StudyRootGetSOPClass, RoleSCU: false, RoleSCP: true}

	scu, scp := resolveRoles(proposed, offered)
	if scu || !scp {
		t.Fatalf("expected conjunction (scu=false, scp=true), got scu=%v scp=%v", scu, scp)
	}
}

func TestAnyAccepted(t *testing.T) {
	none := []PresentationContext{{Result: ContextAbstractSyntaxNotSupported}, {Result: ContextTransferSyntaxesNotSupported}}
	if AnyAccepted(none) {
		t.Fatalf("expected AnyAccepted to be false when nothing was accepted")
	}
	some := []PresentationContext{{Result: ContextAbstractSyntaxNotSupported}, {Result: ContextAccepted}}
	if !AnyAccepted(some) {
		t.Fatalf("expected AnyAccepted to be true")
	}
}
