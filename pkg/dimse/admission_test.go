package dimse

import (
	"testing"
	"time"
)

// fakeAEHandle is a minimal AEHandle double used to exercise
// applyAdmissionPolicy without a live connection.
type fakeAEHandle struct {
	localAET       string
	requiredCaller string
	requiredCalled string
	maxAssoc       int
	activeCount    int
}

func (f *fakeAEHandle) LocalAETitle() string          { return f.localAET }
func (f *fakeAEHandle) RequiredCallingAETitle() string { return f.requiredCaller }
func (f *fakeAEHandle) RequiredCalledAETitle() string  { return f.requiredCalled }
func (f *fakeAEHandle) MaximumAssociations() int       { return f.maxAssoc }
func (f *fakeAEHandle) ActiveAssociationCount() int    { return f.activeCount }

func (f *fakeAEHandle) PresentationContextsSCU() []PresentationContext { return nil }
func (f *fakeAEHandle) PresentationContextsSCP() []PresentationContext { return nil }

func (f *fakeAEHandle) ACSETimeout() time.Duration  { return time.Second }
func (f *fakeAEHandle) DIMSETimeout() time.Duration { return time.Second }
func (f *fakeAEHandle) IdleTimeout() time.Duration  { return time.Second }

func (f *fakeAEHandle) LocalMaxPDULength() uint32      { return 16384 }
func (f *fakeAEHandle) ImplementationClassUID() string { return "1.2.3" }
func (f *fakeAEHandle) ImplementationVersion() string  { return "TEST" }

func (f *fakeAEHandle) ServiceClassHandler(string) (ServiceClassHandler, bool) { return nil, false }
func (f *fakeAEHandle) DatasetCodec() DatasetCodec                             { return nil }

func (f *fakeAEHandle) OnAssociationAccepted(AssociationParameters)           {}
func (f *fakeAEHandle) OnAssociationRejected(AssociationParameters, RejectParams) {}
func (f *fakeAEHandle) OnAssociationReleased()                                {}
func (f *fakeAEHandle) OnAssociationAborted(*AbortPrimitive)                   {}

func TestApplyAdmissionPolicyAllowsMatchingCallingAET(t *testing.T) {
	s := &AssociationSupervisor{ae: &fakeAEHandle{requiredCaller: "EXPECTED_AET"}}
	_, reject := s.applyAdmissionPolicy(AssociationParameters{CallingAETitle: "expected_aet"})
	if reject {
		t.Fatalf("expected case-insensitive calling AET match to be admitted")
	}
}

func TestApplyAdmissionPolicyRejectsUnknownCallingAET(t *testing.T) {
	s := &AssociationSupervisor{ae: &fakeAEHandle{requiredCaller: "EXPECTED_AET"}}
	rp, reject := s.applyAdmissionPolicy(AssociationParameters{CallingAETitle: "SOMEONE_ELSE"})
	if !reject {
		t.Fatalf("expected rejection for mismatched calling AET")
	}
	if rp.Diagnostic != DiagnosticCallingAETNotRecognized {
		t.Fatalf("expected DiagnosticCallingAETNotRecognized, got %v", rp.Diagnostic)
	}
}

func TestApplyAdmissionPolicyRejectsUnknownCalledAET(t *testing.T) {
	s := &AssociationSupervisor{ae: &fakeAEHandle{requiredCalled: "OUR_AET"}}
	rp, reject := s.applyAdmissionPolicy(AssociationParameters{CalledAETitle: "WRONG_AET"})
	if !reject {
		t.Fatalf("expected rejection for mismatched called AET")
	}
	if rp.Diagnostic != DiagnosticCalledAETNotRecognized {
		t.Fatalf("expected DiagnosticCalledAETNotRecognized, got %v", rp.Diagnostic)
	}
}

func TestApplyAdmissionPolicyRejectsAtCapacity(t *testing.T) {
	s := &AssociationSupervisor{ae: &fakeAEHandle{maxAssoc: 2, activeCount: 2}}
	rp, reject := s.applyAdmissionPolicy(AssociationParameters{})
	if !reject {
		t.Fatalf("expected rejection at capacity")
	}
	if rp.Diagnostic != DiagnosticLocalLimitExceeded {
		t.Fatalf("expected DiagnosticLocalLimitExceeded, got %v", rp.Diagnostic)
	}
	if rp.Result != RejectedTransient {
		t.Fatalf("capacity rejection should be transient, got %v", rp.Result)
	}
}

func TestApplyAdmissionPolicyNoRestrictionsAdmitsAnyone(t *testing.T) {
	s := &AssociationSupervisor{ae: &fakeAEHandle{}}
	_, reject := s.applyAdmissionPolicy(AssociationParameters{CallingAETitle: "ANY_AET", CalledAETitle: "ANY_OTHER"})
	if reject {
		t.Fatalf("expected no rejection when no calling/called/capacity restrictions are configured")
	}
}

func TestAetEqualCaseInsensitive(t *testing.T) {
	if !aetEqual("Some_AET", "SOME_aet") {
		t.Fatalf("expected aetEqual to be case-insensitive")
	}
	if aetEqual("AET_ONE", "AET_TWO") {
		t.Fatalf("expected distinct AE titles to compare unequal")
	}
}
