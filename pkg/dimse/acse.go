package dimse

import (
	"fmt"
	"time"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse/pdu"
)

// ACSEResponse classifies the outcome of an ACSE Request exchange
// (spec §4.B).
type ACSEResponse int

const (
	ACSEResponseAccepted ACSEResponse = iota
	ACSEResponseRejected
	ACSEResponseAborted
	ACSEResponseProviderAborted
	ACSEResponseTransportFailure
)

// ACSEProvider is the interface contract for component B: issuing and
// receiving A-ASSOCIATE/A-RELEASE/A-ABORT primitives. Grounded on
// pynetdicom/association.py's ACSEServiceProvider call sites
// (Request/Accept/Reject/Release/Abort/CheckRelease/CheckAbort).
type ACSEProvider interface {
	// WaitForRequest blocks up to timeout for an inbound A-ASSOCIATE-RQ.
	// Used only by the acceptor role (spec §4.E step 1).
	WaitForRequest(timeout time.Duration) (*AssociationParameters, error)

	// Request proposes an association as requestor; blocks up to the
	// ACSE timeout.
	Request(params AssociationParameters, timeout time.Duration) (ACSEResponse, *AssociationParameters, *RejectParams, error)

	// Accept builds and sends the A-ASSOCIATE-AC for rq using the
	// negotiated accepted contexts.
	Accept(rq AssociationParameters, accepted []PresentationContext, local AssociationParameters) error

	// Reject sends an A-ASSOCIATE-RJ.
	Reject(result RejectResult, source RejectSource, diagnostic RejectDiagnostic) error

	// Release issues an A-RELEASE-RQ and awaits A-RELEASE-RP within
	// the ACSE timeout.
	Release(timeout time.Duration) error

	// Abort issues an A-ABORT with the given source/reason.
	Abort(source, reason byte) error

	// CheckRelease / CheckAbort are non-blocking polls; each returns
	// true (or a non-nil primitive) exactly once per arrival.
	CheckRelease() bool
	CheckAbort() *pdu.Abort

	// MaxPDULength is the peer's advertised receive size, populated
	// after acceptance.
	MaxPDULength() uint32
}

type acseProvider struct {
	dul    DULProvider
	router *pduRouter

	localMaxPDU  uint32
	peerMaxPDU   uint32
	implClassUID string
	implVersion  string
}

// NewACSEProvider constructs the default ACSE implementation over a
// DUL connection and its router.
func NewACSEProvider(dul DULProvider, router *pduRouter, localMaxPDU uint32, implClassUID, implVersion string) ACSEProvider {
	return &acseProvider{
		dul:          dul,
		router:       router,
		localMaxPDU:  localMaxPDU,
		implClassUID: implClassUID,
		implVersion:  implVersion,
	}
}

// WaitForRequest reads the inbound A-ASSOCIATE-RQ off the router's
// dedicated channel rather than calling DULProvider.ReceivePDU
// directly: the router goroutine is the sole reader of the DUL's
// frame channel once an association is under construction, and a
// second direct reader here would race it for the same frame.
func (a *acseProvider) WaitForRequest(timeout time.Duration) (*AssociationParameters, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-a.router.associateRQ:
		rq, err := pdu.DecodeAssociateRQ(f.payload)
		if err != nil {
			return nil, fmt.Errorf("dimse: decode associate-rq: %w", err)
		}
		return associateRQToParams(rq), nil
	case <-timer.C:
		if !a.dul.IsAlive() {
			return nil, ErrProviderAborted
		}
		return nil, ErrTimeout
	}
}

func associateRQToParams(rq pdu.AssociateRQ) *AssociationParameters {
	params := &AssociationParameters{
		CallingAETitle:          rq.CallingAETitle,
		CalledAETitle:           rq.CalledAETitle,
		ApplicationContextName:  rq.ApplicationContextName,
		PeerMaxPDULength:        rq.MaxPDULength,
		ImplementationClassUID:  rq.ImplementationClassUID,
		ImplementationVersion:   rq.ImplementationVersion,
	}
	for _, pc := range rq.PresentationContexts {
		params.PresentationContexts = append(params.PresentationContexts, PresentationContext{
			ID:               pc.ID,
			AbstractSyntax:   pc.AbstractSyntax,
			TransferSyntaxes: pc.TransferSyntaxes,
			RoleSCU:          true,
		})
	}
	return params
}

func paramsToAssociateRQ(params AssociationParameters) pdu.AssociateRQ {
	rq := pdu.AssociateRQ{
		CalledAETitle:           params.CalledAETitle,
		CallingAETitle:          params.CallingAETitle,
		ApplicationContextName:  params.ApplicationContextName,
		MaxPDULength:            params.LocalMaxPDULength,
		ImplementationClassUID:  params.ImplementationClassUID,
		ImplementationVersion:   params.ImplementationVersion,
	}
	for _, pc := range params.PresentationContexts {
		rq.PresentationContexts = append(rq.PresentationContexts, pdu.PresentationContextRQ{
			ID:               pc.ID,
			AbstractSyntax:   pc.AbstractSyntax,
			TransferSyntaxes: pc.TransferSyntaxes,
		})
	}
	return rq
}

func (a *acseProvider) Request(params AssociationParameters, timeout time.Duration) (ACSEResponse, *AssociationParameters, *RejectParams, error) {
	rq := paramsToAssociateRQ(params)
	if err := a.dul.SendPDU(pdu.TypeAssociateRQ, pdu.EncodeAssociateRQ(rq)); err != nil {
		return ACSEResponseTransportFailure, nil, nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-a.router.acseReply:
			switch f.t {
			case pdu.TypeAssociateAC:
				ac, err := pdu.DecodeAssociateAC(f.payload)
				if err != nil {
					return ACSEResponseTransportFailure, nil, nil, err
				}
				a.peerMaxPDU = ac.MaxPDULength
				return ACSEResponseAccepted, associateACToParams(ac), nil, nil
			case pdu.TypeAssociateRJ:
				rj, err := pdu.DecodeAssociateRJ(f.payload)
				if err != nil {
					return ACSEResponseTransportFailure, nil, nil, err
				}
				return ACSEResponseRejected, nil, &RejectParams{
					Result:     RejectResult(rj.Result),
					Source:     RejectSource(rj.Source),
					Diagnostic: RejectDiagnostic(rj.Reason),
				}, nil
			case pdu.TypeAbort:
				a.router.checkAbort()
				ab, err := pdu.DecodeAbort(f.payload)
				if err != nil || ab.Source == 2 {
					return ACSEResponseProviderAborted, nil, nil, ErrProviderAborted
				}
				return ACSEResponseAborted, nil, nil, ErrPeerAborted
			}
		case <-timer.C:
			return ACSEResponseTransportFailure, nil, nil, ErrTimeout
		}
		if !a.dul.IsAlive() {
			if ab := a.router.checkAbort(); ab != nil {
				if ab.Source == 2 {
					return ACSEResponseProviderAborted, nil, nil, ErrProviderAborted
				}
				return ACSEResponseAborted, nil, nil, ErrPeerAborted
			}
			return ACSEResponseTransportFailure, nil, nil, ErrProviderAborted
		}
	}
}

func associateACToParams(ac pdu.AssociateAC) *AssociationParameters {
	params := &AssociationParameters{
		CallingAETitle:          ac.CallingAETitle,
		CalledAETitle:           ac.CalledAETitle,
		ApplicationContextName:  ac.ApplicationContextName,
		PeerMaxPDULength:        ac.MaxPDULength,
		ImplementationClassUID:  ac.ImplementationClassUID,
		ImplementationVersion:   ac.ImplementationVersion,
	}
	for _, pc := range ac.PresentationContexts {
		result := ContextNoReason
		switch pc.Result {
		case 0:
			result = ContextAccepted
		case 1:
			result = ContextUserRejected
		case 2:
			result = ContextNoReason
		case 3:
			result = ContextAbstractSyntaxNotSupported
		case 4:
			result = ContextTransferSyntaxesNotSupported
		}
		params.PresentationContexts = append(params.PresentationContexts, PresentationContext{
			ID:                     pc.ID,
			Result:                 result,
			AcceptedTransferSyntax: pc.TransferSyntax,
			AcceptedRoleSCU:        true,
		})
	}
	return params
}

func (a *acseProvider) Accept(rq AssociationParameters, accepted []PresentationContext, local AssociationParameters) error {
	ac := pdu.AssociateAC{
		CalledAETitle:           rq.CalledAETitle,
		CallingAETitle:          rq.CallingAETitle,
		ApplicationContextName:  rq.ApplicationContextName,
		MaxPDULength:            local.LocalMaxPDULength,
		ImplementationClassUID:  local.ImplementationClassUID,
		ImplementationVersion:   local.ImplementationVersion,
	}
	for _, pc := range accepted {
		resultByte := byte(2)
		switch pc.Result {
		case ContextAccepted:
			resultByte = 0
		case ContextUserRejected:
			resultByte = 1
		case ContextNoReason:
			resultByte = 2
		case ContextAbstractSyntaxNotSupported:
			resultByte = 3
		case ContextTransferSyntaxesNotSupported:
			resultByte = 4
		}
		ac.PresentationContexts = append(ac.PresentationContexts, pdu.PresentationContextAC{
			ID:             pc.ID,
			Result:         resultByte,
			TransferSyntax: pc.AcceptedTransferSyntax,
		})
	}
	a.peerMaxPDU = rq.PeerMaxPDULength
	return a.dul.SendPDU(pdu.TypeAssociateAC, pdu.EncodeAssociateAC(ac))
}

func (a *acseProvider) Reject(result RejectResult, source RejectSource, diagnostic RejectDiagnostic) error {
	rj := pdu.AssociateRJ{Result: byte(result), Source: byte(source), Reason: byte(diagnostic)}
	return a.dul.SendPDU(pdu.TypeAssociateRJ, pdu.EncodeAssociateRJ(rj))
}

func (a *acseProvider) Release(timeout time.Duration) error {
	if err := a.dul.SendPDU(pdu.TypeReleaseRQ, pdu.EncodeReleaseRQ()); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.router.checkRelease() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ErrTimeout
}

func (a *acseProvider) Abort(source, reason byte) error {
	return a.dul.SendPDU(pdu.TypeAbort, pdu.EncodeAbort(pdu.Abort{Source: source, Reason: reason}))
}

func (a *acseProvider) CheckRelease() bool {
	return a.router.checkRelease()
}

func (a *acseProvider) CheckAbort() *pdu.Abort {
	return a.router.checkAbort()
}

func (a *acseProvider) MaxPDULength() uint32 {
	return a.peerMaxPDU
}
