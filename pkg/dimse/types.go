// Package dimse implements the upper-layer association engine that
// couples ACSE, DIMSE and DUL into a single per-connection supervisor.
package dimse

import "fmt"

// Role tags which side of an association this engine instance plays.
type Role int

const (
	RoleRequestor Role = iota
	RoleAcceptor
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "Acceptor"
	}
	return "Requestor"
}

// AssociationState is the tagged state of the association lifecycle.
// Transitions are strictly monotonic: once a terminal value is reached
// no further transition is permitted.
type AssociationState int

const (
	StateIdle AssociationState = iota
	StateNegotiating
	StateEstablished
	StateReleasing
	StateReleased
	StateAborted
	StateRefused
	StateFailed
)

func (s AssociationState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateNegotiating:
		return "Negotiating"
	case StateEstablished:
		return "Established"
	case StateReleasing:
		return "Releasing"
	case StateReleased:
		return "Released"
	case StateAborted:
		return "Aborted"
	case StateRefused:
		return "Refused"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("AssociationState(%d)", int(s))
	}
}

// Terminal reports whether s is one of the four terminal states after
// which no further transition may occur.
func (s AssociationState) Terminal() bool {
	switch s {
	case StateReleased, StateAborted, StateRefused, StateFailed:
		return true
	default:
		return false
	}
}

// PresentationContextResult classifies the outcome of negotiating a
// single presentation context.
type PresentationContextResult int

const (
	ContextPending PresentationContextResult = iota
	ContextAccepted
	ContextUserRejected
	ContextNoReason
	ContextAbstractSyntaxNotSupported
	ContextTransferSyntaxesNotSupported
)

func (r PresentationContextResult) String() string {
	switch r {
	case ContextAccepted:
		return "accepted"
	case ContextUserRejected:
		return "user-rejected"
	case ContextNoReason:
		return "no-reason"
	case ContextAbstractSyntaxNotSupported:
		return "abstract-syntax-not-supported"
	case ContextTransferSyntaxesNotSupported:
		return "transfer-syntax-not-supported"
	default:
		return "pending"
	}
}

// PresentationContext is the (id, abstract syntax, transfer syntax
// list, role) tuple negotiated between the two peers. Ids are odd
// 8-bit values, unique within one association.
type PresentationContext struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
	RoleSCU          bool
	RoleSCP          bool

	// Populated by the negotiator on the acceptor side.
	Result                   PresentationContextResult
	AcceptedTransferSyntax   string
	AcceptedRoleSCU          bool
	AcceptedRoleSCP          bool
}

// Accepted reports whether this context was selected during negotiation.
func (pc PresentationContext) Accepted() bool {
	return pc.Result == ContextAccepted
}

// RejectResult / RejectSource / RejectDiagnostic are the A-ASSOCIATE-RJ
// vocabulary from PS3.8 Table 9-21.
type RejectResult byte

const (
	RejectedPermanent RejectResult = 1
	RejectedTransient RejectResult = 2
)

type RejectSource byte

const (
	SourceServiceUser               RejectSource = 1
	SourceServiceProviderACSE       RejectSource = 2
	SourceServiceProviderPresentation RejectSource = 3
)

type RejectDiagnostic byte

const (
	DiagnosticNoReasonGiven            RejectDiagnostic = 1
	DiagnosticApplicationContextNotSupported RejectDiagnostic = 2
	DiagnosticCallingAETNotRecognized  RejectDiagnostic = 3
	DiagnosticCalledAETNotRecognized   RejectDiagnostic = 7
	DiagnosticProtocolVersionNotSupported RejectDiagnostic = 2 // service-provider-ACSE source
	DiagnosticTemporaryCongestion      RejectDiagnostic = 1
	DiagnosticLocalLimitExceeded       RejectDiagnostic = 2
)

// RejectParams is the tuple carried by an A-ASSOCIATE-RJ, and by the
// on_association_rejected callback.
type RejectParams struct {
	Result     RejectResult
	Source     RejectSource
	Diagnostic RejectDiagnostic
}

// ExtendedNegotiationItem is an opaque extended-negotiation sub-item
// held in AssociationParameters. The PDU codec neither encodes nor
// decodes these items, so they are not exchanged with the peer.
type ExtendedNegotiationItem struct {
	SOPClassUID    string
	SubItemVersion byte
	Data           []byte
}

// UserIdentityItem is an opaque A-ASSOCIATE user-identity sub-item.
type UserIdentityItem struct {
	Type              byte
	PrimaryField      []byte
	SecondaryField    []byte
	ResponseRequested bool
}

// AssociationParameters carries the negotiated (or proposed) state of
// one association.
type AssociationParameters struct {
	CallingAETitle  string // 16 bytes, space-padded on the wire
	CalledAETitle   string
	ApplicationContextName string

	PresentationContexts []PresentationContext

	// 0 = unlimited.
	LocalMaxPDULength uint32
	PeerMaxPDULength  uint32

	ImplementationClassUID string
	ImplementationVersion  string

	ExtendedNegotiationItems []ExtendedNegotiationItem
	UserIdentity             *UserIdentityItem
}

// Priority is the DIMSE priority enum. The SCU helpers replace an
// invalid value with PriorityMedium (coercePriority) before building
// the request; no error is returned for it.
type Priority int

const (
	PriorityMedium Priority = 0
	PriorityHigh   Priority = 1
	PriorityLow    Priority = 2
)

func (p Priority) Valid() bool {
	return p == PriorityMedium || p == PriorityHigh || p == PriorityLow
}

// Dataset is the external collaborator representing an encoded or
// decodable DICOM dataset. Its concrete implementation (VR encode/
// decode) lies outside this engine; callers supply one that at least
// knows its own SOP Class/Instance UIDs.
type Dataset interface {
	SOPClassUID() string
	SOPInstanceUID() string
}

// DIMSEMessage is the message-level unit the supervisor routes on. The
// command set is treated opaquely apart from the fields below.
type DIMSEMessage struct {
	CommandSet             map[uint32]any
	Dataset                Dataset
	PresentationContextID  byte
	MessageID              uint16
	AffectedSOPClassUID    string
	AffectedSOPInstanceUID string
	Priority               Priority
	Status                 *uint16 // nil on requests, set on responses
}

// IsResponse reports whether this message carries a response status.
func (m DIMSEMessage) IsResponse() bool {
	return m.Status != nil
}
