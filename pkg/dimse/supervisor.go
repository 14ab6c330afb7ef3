package dimse

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse/pdu"
)

// AbortPrimitive is the payload passed to OnAssociationAborted. Per
// spec §9's open question about on_association_aborted sometimes being
// invoked with no primitive: this engine always supplies one. It sets
// ProviderInitiated when the association request is answered by a
// service-provider A-ABORT (or one that cannot be decoded). DUL death
// and idle timeout do not invoke OnAssociationAborted: they end in
// Failed and Released respectively.
type AbortPrimitive struct {
	Source            byte
	Reason            byte
	ProviderInitiated bool
}

// ServiceClassHandler is bound, per spec §9, to an explicit context
// object rather than injected via attribute assignment. One handler
// instance is registered per abstract syntax UID the AE is prepared to
// act as SCP for.
type ServiceClassHandler interface {
	HandleSCP(hctx *HandlerContext, msg *DIMSEMessage) error
}

// HandlerContext is the explicit (dimse, acse, ae, presentation-context,
// max-pdu) bundle passed to a service-class handler's entry point,
// replacing the source pattern's attribute-injection.
type HandlerContext struct {
	DIMSE        DIMSEProvider
	ACSE         ACSEProvider
	AE           AEHandle
	Context      PresentationContext
	MaxPDULength uint32
}

// AEHandle is the read-only, non-owning view the supervisor holds of
// its parent AE: policy fields and callbacks. Per spec §9's
// bidirectional-reference re-architecture note, the AE owns
// associations; the supervisor never holds a reference back into the
// AE's mutable registry, only this narrow interface.
type AEHandle interface {
	LocalAETitle() string
	RequiredCallingAETitle() string
	RequiredCalledAETitle() string
	MaximumAssociations() int
	ActiveAssociationCount() int

	PresentationContextsSCU() []PresentationContext
	PresentationContextsSCP() []PresentationContext

	ACSETimeout() time.Duration
	DIMSETimeout() time.Duration
	IdleTimeout() time.Duration

	LocalMaxPDULength() uint32
	ImplementationClassUID() string
	ImplementationVersion() string

	ServiceClassHandler(abstractSyntaxUID string) (ServiceClassHandler, bool)
	DatasetCodec() DatasetCodec

	OnAssociationAccepted(params AssociationParameters)
	OnAssociationRejected(params AssociationParameters, reject RejectParams)
	OnAssociationReleased()
	OnAssociationAborted(primitive *AbortPrimitive)
}

// SupervisorConfig supplies exactly one of Conn (acceptor role) or
// PeerAddr (requestor role).
type SupervisorConfig struct {
	Conn     net.Conn
	PeerAddr string
	// CalledAETitle names the peer AE title proposed in the
	// A-ASSOCIATE-RQ; only meaningful when PeerAddr is set.
	CalledAETitle string
}

// AssociationSupervisor is component E: the core. One instance owns
// exactly one DUL session for the lifetime of one association.
// Grounded on pynetdicom/association.py's Association class, with the
// re-architecture notes of spec §9 applied (tagged state/role, one-way
// AE ownership, explicit handler-context binding).
type AssociationSupervisor struct {
	ID   string
	Role Role
	ae   AEHandle

	mu    sync.Mutex
	state AssociationState

	dul    DULProvider
	router *pduRouter
	acse   ACSEProvider
	dimse  DIMSEProvider

	params AssociationParameters

	killed       atomic.Bool
	callbackOnce sync.Once

	// scuSupported caches, per accepted context, the SOP class handle
	// usable by the SCU helpers (spec §4.E step Requestor classify).
	scuSupported []PresentationContext

	logger zerolog.Logger
}

// NewAssociationSupervisor validates cfg and constructs (but does not
// start) a supervisor. Exactly one of cfg.Conn / cfg.PeerAddr must be
// set; violating that never starts a task (spec §8 testable property).
func NewAssociationSupervisor(ae AEHandle, cfg SupervisorConfig) (*AssociationSupervisor, error) {
	hasConn := cfg.Conn != nil
	hasPeer := cfg.PeerAddr != ""
	if hasConn == hasPeer {
		return nil, newConfigError("exactly one of client connection or peer address must be supplied")
	}

	role := RoleRequestor
	if hasConn {
		role = RoleAcceptor
	}

	id := uuid.NewString()
	s := &AssociationSupervisor{
		ID:     id,
		Role:   role,
		ae:     ae,
		state:  StateIdle,
		logger: log.With().Str("assoc_id", id).Str("role", role.String()).Logger(),
	}

	if hasConn {
		s.dul = NewTCPDULProvider(cfg.Conn, ae.IdleTimeout())
	} else {
		conn, err := net.DialTimeout("tcp", cfg.PeerAddr, ae.ACSETimeout())
		if err != nil {
			return nil, fmt.Errorf("dimse: dial %s: %w", cfg.PeerAddr, err)
		}
		s.dul = NewTCPDULProvider(conn, ae.IdleTimeout())
		s.params.CalledAETitle = cfg.CalledAETitle
	}
	s.router = newPDURouter(s.dul)
	s.acse = NewACSEProvider(s.dul, s.router, ae.LocalMaxPDULength(), ae.ImplementationClassUID(), ae.ImplementationVersion())
	s.dimse = NewDIMSEProvider(s.dul, s.router, ae.DatasetCodec())

	return s, nil
}

// State returns the current association state.
func (s *AssociationSupervisor) State() AssociationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition performs a state change, refusing to leave a terminal
// state (spec §3 invariant, §8 testable property).
func (s *AssociationSupervisor) transition(next AssociationState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = next
	return true
}

// Run drives the association to completion; it blocks until a
// terminal state is reached. Callers invoke it in its own goroutine.
func (s *AssociationSupervisor) Run(ctx context.Context) {
	s.transition(StateNegotiating)
	if s.Role == RoleAcceptor {
		s.runAcceptor(ctx)
	} else {
		s.runRequestor(ctx)
	}
}

func (s *AssociationSupervisor) runAcceptor(ctx context.Context) {
	negotiationStart := time.Now()
	timeout := s.ae.ACSETimeout()
	params, err := s.acse.WaitForRequest(timeout)
	if err != nil {
		s.logger.Warn().Err(err).Msg("no A-ASSOCIATE-RQ received within timeout")
		s.transition(StateFailed)
		s.kill()
		return
	}
	s.params = *params

	if reject, ok := s.applyAdmissionPolicy(*params); ok {
		AdmissionRejections.WithLabelValues(fmt.Sprintf("%d", reject.Diagnostic)).Inc()
		_ = s.acse.Reject(reject.Result, reject.Source, reject.Diagnostic)
		s.ae.OnAssociationRejected(*params, reject)
		s.transition(StateRefused)
		s.kill()
		return
	}

	negotiator := NewPresentationContextNegotiator()
	accepted := negotiator.Negotiate(params.PresentationContexts, s.ae.PresentationContextsSCP())
	local := AssociationParameters{
		CalledAETitle:           s.ae.LocalAETitle(),
		CallingAETitle:          params.CallingAETitle,
		LocalMaxPDULength:       s.ae.LocalMaxPDULength(),
		ImplementationClassUID:  s.ae.ImplementationClassUID(),
		ImplementationVersion:   s.ae.ImplementationVersion(),
	}
	if err := s.acse.Accept(*params, accepted, local); err != nil {
		s.logger.Error().Err(err).Msg("failed to send A-ASSOCIATE-AC")
		s.transition(StateFailed)
		s.kill()
		return
	}
	s.params.PresentationContexts = accepted

	if !AnyAccepted(accepted) {
		NegotiationDuration.WithLabelValues("acceptor", "no_contexts_accepted").Observe(time.Since(negotiationStart).Seconds())
		_ = s.acse.Abort(2, 0)
		s.transition(StateAborted)
		s.kill()
		return
	}

	s.transition(StateEstablished)
	NegotiationDuration.WithLabelValues("acceptor", "accepted").Observe(time.Since(negotiationStart).Seconds())
	ActiveAssociations.WithLabelValues("acceptor").Inc()
	s.ae.OnAssociationAccepted(s.params)
	s.logger.Info().Msg("association established (acceptor)")

	s.steadyStateLoop(ctx, true)
	ActiveAssociations.WithLabelValues("acceptor").Dec()
}

func (s *AssociationSupervisor) applyAdmissionPolicy(params AssociationParameters) (RejectParams, bool) {
	if required := s.ae.RequiredCallingAETitle(); required != "" && !aetEqual(required, params.CallingAETitle) {
		return RejectParams{RejectedPermanent, SourceServiceUser, DiagnosticCallingAETNotRecognized}, true
	}
	if required := s.ae.RequiredCalledAETitle(); required != "" && !aetEqual(required, params.CalledAETitle) {
		return RejectParams{RejectedPermanent, SourceServiceUser, DiagnosticCalledAETNotRecognized}, true
	}
	if max := s.ae.MaximumAssociations(); max > 0 && s.ae.ActiveAssociationCount() >= max {
		return RejectParams{RejectedTransient, SourceServiceProviderPresentation, DiagnosticLocalLimitExceeded}, true
	}
	return RejectParams{}, false
}

// aetEqual implements spec §9's resolution of the require_called_aet
// open question: a case-insensitive match.
func aetEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func (s *AssociationSupervisor) runRequestor(ctx context.Context) {
	negotiationStart := time.Now()
	scu := s.ae.PresentationContextsSCU()
	if len(scu) == 0 {
		s.logger.Error().Msg("no SCU presentation contexts configured")
		s.transition(StateFailed)
		s.kill()
		return
	}

	params := AssociationParameters{
		CallingAETitle:          s.ae.LocalAETitle(),
		CalledAETitle:           s.params.CalledAETitle,
		ApplicationContextName:  pdu.DefaultApplicationContextName,
		PresentationContexts:    scu,
		LocalMaxPDULength:       s.ae.LocalMaxPDULength(),
		ImplementationClassUID:  s.ae.ImplementationClassUID(),
		ImplementationVersion:   s.ae.ImplementationVersion(),
	}

	resp, accepted, reject, err := s.acse.Request(params, s.ae.ACSETimeout())
	if err != nil && resp == ACSEResponseTransportFailure {
		s.logger.Error().Err(err).Msg("association request failed")
		s.transition(StateFailed)
		s.kill()
		return
	}

	switch resp {
	case ACSEResponseAccepted:
		if !AnyAccepted(accepted.PresentationContexts) {
			_ = s.acse.Abort(2, 0)
			s.transition(StateFailed)
			s.kill()
			return
		}
		// The A-ASSOCIATE-AC carries no abstract syntaxes; restore each
		// accepted context's SOP class from the proposal with the same id.
		for i := range accepted.PresentationContexts {
			for _, proposed := range scu {
				if proposed.ID == accepted.PresentationContexts[i].ID {
					accepted.PresentationContexts[i].AbstractSyntax = proposed.AbstractSyntax
					break
				}
			}
		}
		s.params = *accepted
		s.params.CallingAETitle = params.CallingAETitle
		s.scuSupported = accepted.PresentationContexts
		s.transition(StateEstablished)
		NegotiationDuration.WithLabelValues("requestor", "accepted").Observe(time.Since(negotiationStart).Seconds())
		ActiveAssociations.WithLabelValues("requestor").Inc()
		s.ae.OnAssociationAccepted(s.params)
		s.logger.Info().Msg("association established (requestor)")
		s.steadyStateLoop(ctx, false)
		ActiveAssociations.WithLabelValues("requestor").Dec()
	case ACSEResponseRejected:
		s.ae.OnAssociationRejected(params, *reject)
		s.transition(StateRefused)
		s.kill()
	case ACSEResponseAborted:
		s.fireAborted(&AbortPrimitive{})
		s.transition(StateAborted)
		s.kill()
	case ACSEResponseProviderAborted:
		s.fireAborted(&AbortPrimitive{ProviderInitiated: true})
		s.transition(StateAborted)
		s.kill()
	default:
		s.transition(StateFailed)
		s.kill()
	}
}

// steadyStateLoop is the cooperative, polled event loop shared by both
// roles (spec §4.E steady-state loop / §5 scheduling model). dispatch
// is true for the acceptor, which routes inbound DIMSE to service
// handlers; the requestor relies on the SCU helpers in scu.go to drive
// DIMSE traffic directly, and only polls for release/abort/liveness.
func (s *AssociationSupervisor) steadyStateLoop(ctx context.Context, dispatch bool) {
	dimseTimeout := s.ae.DIMSETimeout()
	for {
		if s.State().Terminal() {
			return
		}

		if dispatch {
			msg, ok, err := s.dimse.Receive(dimseTimeout, s.transferSyntaxFor(0))
			if err != nil {
				s.logger.Warn().Err(err).Msg("dimse receive error")
			} else if ok {
				s.dispatchInbound(msg)
			}
		}

		if s.acse.CheckRelease() {
			s.ae.OnAssociationReleased()
			s.transition(StateReleased)
			s.kill()
			return
		}
		if ab := s.acse.CheckAbort(); ab != nil {
			s.fireAborted(&AbortPrimitive{Source: ab.Source, Reason: ab.Reason})
			s.transition(StateAborted)
			s.kill()
			return
		}
		if !s.dul.IsAlive() {
			s.transition(StateFailed)
			s.kill()
			return
		}
		if s.dul.IdleTimerExpired() {
			s.ae.OnAssociationReleased()
			s.transition(StateReleased)
			s.kill()
			return
		}

		select {
		case <-ctx.Done():
			_ = s.Abort()
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *AssociationSupervisor) fireAborted(ab *AbortPrimitive) {
	s.callbackOnce.Do(func() {
		s.ae.OnAssociationAborted(ab)
	})
}

// transferSyntaxFor looks up the accepted transfer syntax for a
// presentation-context id; 0 is a sentinel meaning "any", used by
// Receive which doesn't know the pc id until the PDV arrives.
func (s *AssociationSupervisor) transferSyntaxFor(pcID byte) string {
	for _, pc := range s.params.PresentationContexts {
		if pcID == 0 || pc.ID == pcID {
			if pc.Accepted() {
				return pc.AcceptedTransferSyntax
			}
		}
	}
	return ImplicitVRLittleEndian
}

// dispatchInbound routes a received DIMSE message by presentation-
// context id (never by message id — spec §9's routing-bug resolution)
// to the bound service-class handler.
func (s *AssociationSupervisor) dispatchInbound(msg *DIMSEMessage) {
	var ctx *PresentationContext
	for i := range s.params.PresentationContexts {
		if s.params.PresentationContexts[i].ID == msg.PresentationContextID && s.params.PresentationContexts[i].Accepted() {
			ctx = &s.params.PresentationContexts[i]
			break
		}
	}
	if ctx == nil {
		s.logger.Warn().Uint8("pc_id", msg.PresentationContextID).Msg("dropping message referencing unknown presentation context")
		return
	}
	DIMSERequestsTotal.WithLabelValues(commandFieldLabel(msg.CommandSet[TagCommandField]), "received").Inc()

	handler, ok := s.ae.ServiceClassHandler(ctx.AbstractSyntax)
	if !ok {
		s.logger.Warn().Str("abstract_syntax", ctx.AbstractSyntax).Msg("no service-class handler registered")
		return
	}

	hctx := &HandlerContext{
		DIMSE:        s.dimse,
		ACSE:         s.acse,
		AE:           s.ae,
		Context:      *ctx,
		MaxPDULength: s.acse.MaxPDULength(),
	}
	if err := handler.HandleSCP(hctx, msg); err != nil {
		s.logger.Error().Err(err).Str("abstract_syntax", ctx.AbstractSyntax).Msg("service-class handler failed")
	}
}

// Release requests a graceful local release (spec §4.E Shutdown).
// Idempotent.
func (s *AssociationSupervisor) Release() error {
	if s.State().Terminal() {
		return nil
	}
	err := s.acse.Release(s.ae.ACSETimeout())
	s.transition(StateReleasing)
	s.transitionForce(StateReleased)
	s.kill()
	return err
}

// Abort requests a local A-ABORT(service-user, not-significant) and
// tears down. Idempotent.
func (s *AssociationSupervisor) Abort() error {
	if s.State().Terminal() {
		return nil
	}
	err := s.acse.Abort(0, 0)
	s.transition(StateAborted)
	s.kill()
	return err
}

// transitionForce is used only by Release, which must reach Released
// even though Releasing is itself non-terminal and the generic
// transition() would otherwise require a second call.
func (s *AssociationSupervisor) transitionForce(next AssociationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = next
}

// commandFieldLabel renders a raw command-field value for metrics
// cardinality control, falling back to a numeric label for anything
// this engine doesn't name.
func commandFieldLabel(v any) string {
	cf, ok := v.(uint16)
	if !ok {
		return "unknown"
	}
	switch cf {
	case CommandFieldCStoreRQ:
		return "C-STORE"
	case CommandFieldCGetRQ:
		return "C-GET"
	case CommandFieldCFindRQ:
		return "C-FIND"
	case CommandFieldCMoveRQ:
		return "C-MOVE"
	case CommandFieldCEchoRQ:
		return "C-ECHO"
	case CommandFieldCCancelRQ:
		return "C-CANCEL"
	default:
		return fmt.Sprintf("0x%04X", cf)
	}
}

// kill is the idempotent shutdown path: sets the kill flag, stops the
// DUL, and stops the PDU router. Safe to call multiple times.
func (s *AssociationSupervisor) kill() {
	if !s.killed.CompareAndSwap(false, true) {
		return
	}
	s.router.close()
	for i := 0; i < 100; i++ {
		if s.dul.Stop() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}
