package dimse

import (
	"fmt"
)

func recordDIMSERequest(command string) {
	DIMSERequestsTotal.WithLabelValues(command, "sent").Inc()
}

// FindResult is one element of the lazy C-FIND response sequence.
type FindResult struct {
	Dataset Dataset
	Status  uint16
}

// MoveResult is one element of the lazy C-MOVE progress sequence.
type MoveResult struct {
	Dataset              Dataset
	Status               uint16
	Remaining, Completed, Failed, Warning uint16
}

// GetResult is one element of the lazy C-GET progress sequence.
type GetResult struct {
	Dataset Dataset
	Status  uint16
}

// terminalStatus reports whether a DIMSE status code ends a
// multi-response exchange: every status other than StatusPending
// (0xFF00) is terminal.
func terminalStatus(status uint16) bool {
	return status != StatusPending
}

// findAcceptedContext locates the accepted SCU context for an abstract
// syntax; spec §4.F step 3.
func (s *AssociationSupervisor) findAcceptedContext(abstractSyntax string) (*PresentationContext, bool) {
	for i := range s.scuSupported {
		if s.scuSupported[i].AbstractSyntax == abstractSyntax && s.scuSupported[i].Accepted() {
			return &s.scuSupported[i], true
		}
	}
	return nil, false
}

// checkEstablished is step 1 of every SCU helper's shared skeleton.
func (s *AssociationSupervisor) checkEstablished() error {
	if s.State() != StateEstablished {
		return ErrNotEstablished
	}
	return nil
}

func coercePriority(p Priority) Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// SendCEcho issues a C-ECHO-RQ (Verification SOP class) and returns
// the response status, which is always Success on reply.
func (s *AssociationSupervisor) SendCEcho(msgID uint16) (uint16, error) {
	if err := s.checkEstablished(); err != nil {
		return 0, err
	}
	pc, ok := s.findAcceptedContext(VerificationSOPClass)
	if !ok {
		return 0, fmt.Errorf("verification SOP class not in supported SOP classes: %w", ErrNoMatchingContext)
	}

	req := DIMSEMessage{
		CommandSet:             map[uint32]any{TagCommandField: CommandFieldCEchoRQ},
		PresentationContextID:  pc.ID,
		MessageID:              msgID,
		AffectedSOPClassUID:    VerificationSOPClass,
		Priority:               PriorityMedium,
	}
	recordDIMSERequest("C-ECHO")
	if err := s.dimse.Send(req, pc.AcceptedTransferSyntax); err != nil {
		return 0, err
	}
	resp, ok, err := s.dimse.Receive(s.ae.DIMSETimeout(), pc.AcceptedTransferSyntax)
	if err != nil {
		return 0, err
	}
	if !ok || resp.Status == nil {
		return 0, ErrTimeout
	}
	return *resp.Status, nil
}

// SendCStore issues a C-STORE-RQ for ds. The transfer syntax is the
// one whose accepted context's abstract syntax equals ds.SOPClassUID;
// if none is found, returns CannotUnderstand. Encoding failure under
// the selected transfer syntax also returns CannotUnderstand, without
// emitting a C-STORE-RQ.
func (s *AssociationSupervisor) SendCStore(ds Dataset, msgID uint16, priority Priority) (*uint16, error) {
	if err := s.checkEstablished(); err != nil {
		return nil, err
	}
	priority = coercePriority(priority)

	pc, ok := s.findAcceptedContext(ds.SOPClassUID())
	if !ok {
		status := StatusCannotUnderstand
		return &status, nil
	}

	codec := s.ae.DatasetCodec()
	if codec != nil {
		if _, err := codec.Encode(ds, pc.AcceptedTransferSyntax); err != nil {
			status := StatusCannotUnderstand
			return &status, nil
		}
	}

	req := DIMSEMessage{
		CommandSet:             map[uint32]any{TagCommandField: CommandFieldCStoreRQ},
		Dataset:                 ds,
		PresentationContextID:  pc.ID,
		MessageID:              msgID,
		AffectedSOPClassUID:    ds.SOPClassUID(),
		AffectedSOPInstanceUID: ds.SOPInstanceUID(),
		Priority:               priority,
	}
	recordDIMSERequest("C-STORE")
	if err := s.dimse.Send(req, pc.AcceptedTransferSyntax); err != nil {
		return nil, err
	}
	resp, ok, err := s.dimse.Receive(s.ae.DIMSETimeout(), pc.AcceptedTransferSyntax)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return resp.Status, nil
}

// SendCFind issues a C-FIND-RQ and returns a lazy, finite, non-
// restartable channel of (result, status) pairs, closed after a
// terminal status.
func (s *AssociationSupervisor) SendCFind(ds Dataset, msgID uint16, priority Priority, model QueryModel) (<-chan FindResult, error) {
	if err := s.checkEstablished(); err != nil {
		return nil, err
	}
	sopClass, ok := FindSOPClassUID(model)
	if !ok {
		return nil, newConfigError("unknown query model for C-FIND")
	}
	pc, ok := s.findAcceptedContext(sopClass)
	if !ok {
		return nil, fmt.Errorf("C-FIND SOP class %s not in supported SOP classes: %w", sopClass, ErrNoMatchingContext)
	}
	priority = coercePriority(priority)

	req := DIMSEMessage{
		CommandSet:            map[uint32]any{TagCommandField: CommandFieldCFindRQ},
		Dataset:                ds,
		PresentationContextID: pc.ID,
		MessageID:             msgID,
		AffectedSOPClassUID:   sopClass,
		Priority:              priority,
	}
	recordDIMSERequest("C-FIND")
	if err := s.dimse.Send(req, pc.AcceptedTransferSyntax); err != nil {
		return nil, err
	}

	out := make(chan FindResult)
	go func() {
		defer close(out)
		for {
			resp, ok, err := s.dimse.Receive(s.ae.DIMSETimeout(), pc.AcceptedTransferSyntax)
			if err != nil || !ok || resp.Status == nil {
				return
			}
			out <- FindResult{Dataset: resp.Dataset, Status: *resp.Status}
			if terminalStatus(*resp.Status) {
				return
			}
		}
	}()
	return out, nil
}

// SendCMove issues a C-MOVE-RQ naming moveDestinationAET as the
// storage SCP that should receive the matching instances, and returns
// a lazy progress sequence.
func (s *AssociationSupervisor) SendCMove(ds Dataset, moveDestinationAET string, msgID uint16, priority Priority, model QueryModel) (<-chan MoveResult, error) {
	if err := s.checkEstablished(); err != nil {
		return nil, err
	}
	sopClass, ok := MoveSOPClassUID(model)
	if !ok {
		return nil, newConfigError("unknown query model for C-MOVE")
	}
	pc, ok := s.findAcceptedContext(sopClass)
	if !ok {
		return nil, fmt.Errorf("C-MOVE SOP class %s not in supported SOP classes: %w", sopClass, ErrNoMatchingContext)
	}
	priority = coercePriority(priority)

	req := DIMSEMessage{
		CommandSet: map[uint32]any{
			TagCommandField:    CommandFieldCMoveRQ,
			TagMoveDestination: moveDestinationAET,
		},
		Dataset:                ds,
		PresentationContextID: pc.ID,
		MessageID:             msgID,
		AffectedSOPClassUID:   sopClass,
		Priority:              priority,
	}
	recordDIMSERequest("C-MOVE")
	if err := s.dimse.Send(req, pc.AcceptedTransferSyntax); err != nil {
		return nil, err
	}

	out := make(chan MoveResult)
	go func() {
		defer close(out)
		for {
			resp, ok, err := s.dimse.Receive(s.ae.DIMSETimeout(), pc.AcceptedTransferSyntax)
			if err != nil || !ok || resp.Status == nil {
				return
			}
			mr := MoveResult{Dataset: resp.Dataset, Status: *resp.Status}
			if v, ok := resp.CommandSet[TagNumberOfRemainingSuboperations].(uint16); ok {
				mr.Remaining = v
			}
			if v, ok := resp.CommandSet[TagNumberOfCompletedSuboperations].(uint16); ok {
				mr.Completed = v
			}
			if v, ok := resp.CommandSet[TagNumberOfFailedSuboperations].(uint16); ok {
				mr.Failed = v
			}
			if v, ok := resp.CommandSet[TagNumberOfWarningSuboperations].(uint16); ok {
				mr.Warning = v
			}
			out <- mr
			if terminalStatus(*resp.Status) {
				return
			}
		}
	}()
	return out, nil
}

// SendCGet issues a C-GET-RQ. Incoming C-STORE sub-operations that
// arrive while the exchange is outstanding are handled by the same
// dispatch path the acceptor role uses (spec §4.F C-GET note) rather
// than opening a second connection; the caller's AE must have
// registered storage service-class handlers for that to succeed.
func (s *AssociationSupervisor) SendCGet(ds Dataset, msgID uint16, priority Priority, model QueryModel) (<-chan GetResult, error) {
	if err := s.checkEstablished(); err != nil {
		return nil, err
	}
	sopClass, ok := GetSOPClassUID(model)
	if !ok {
		return nil, newConfigError("unknown query model for C-GET")
	}
	pc, ok := s.findAcceptedContext(sopClass)
	if !ok {
		return nil, fmt.Errorf("C-GET SOP class %s not in supported SOP classes: %w", sopClass, ErrNoMatchingContext)
	}
	priority = coercePriority(priority)

	req := DIMSEMessage{
		CommandSet:            map[uint32]any{TagCommandField: CommandFieldCGetRQ},
		Dataset:                ds,
		PresentationContextID: pc.ID,
		MessageID:             msgID,
		AffectedSOPClassUID:   sopClass,
		Priority:              priority,
	}
	recordDIMSERequest("C-GET")
	if err := s.dimse.Send(req, pc.AcceptedTransferSyntax); err != nil {
		return nil, err
	}

	out := make(chan GetResult)
	go func() {
		defer close(out)
		for {
			resp, ok, err := s.dimse.Receive(s.ae.DIMSETimeout(), pc.AcceptedTransferSyntax)
			if err != nil {
				return
			}
			if !ok {
				continue
			}
			if cf, isCf := resp.CommandSet[TagCommandField].(uint16); isCf && cf == CommandFieldCStoreRQ {
				s.dispatchInbound(resp)
				continue
			}
			if resp.Status == nil {
				continue
			}
			out <- GetResult{Dataset: resp.Dataset, Status: *resp.Status}
			if terminalStatus(*resp.Status) {
				return
			}
		}
	}()
	return out, nil
}

// The N-services are not implemented; invocation always fails.
func (s *AssociationSupervisor) SendNGet() error    { return ErrUnimplemented }
func (s *AssociationSupervisor) SendNSet() error    { return ErrUnimplemented }
func (s *AssociationSupervisor) SendNAction() error { return ErrUnimplemented }
func (s *AssociationSupervisor) SendNCreate() error { return ErrUnimplemented }
func (s *AssociationSupervisor) SendNDelete() error { return ErrUnimplemented }
