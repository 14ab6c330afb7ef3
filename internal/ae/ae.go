// Package ae owns the local Application Entity: its policy, its
// active-association registry, the TCP accept loop that spawns an
// AssociationSupervisor per inbound connection (spec §4.E acceptor
// role), and Dial for requestor-initiated associations.
package ae

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse"
)

// Config is the local AE's static policy, resolved once at startup
// from internal/config.AEConfig.
type Config struct {
	Title                  string
	ListenAddr             string
	MaxPDULength           uint32
	MaxAssociations        int
	ACSETimeout            time.Duration
	DIMSETimeout           time.Duration
	IdleTimeout            time.Duration
	RequiredCallingAET     string
	RequiredCalledAET      string
	ImplementationClassUID string
	ImplementationVersion  string

	// SCPPresentationContexts are the abstract-syntax/transfer-syntax
	// offers this AE accepts as SCP (spec §4.A "offered" list).
	SCPPresentationContexts []dimse.PresentationContext
	// SCUPresentationContexts are proposed when this AE acts as
	// requestor (spec §4.E Requestor role).
	SCUPresentationContexts []dimse.PresentationContext
}

// Callbacks are invoked on association lifecycle events (spec §4.E);
// any may be nil.
type Callbacks struct {
	OnAccepted func(params dimse.AssociationParameters)
	OnRejected func(params dimse.AssociationParameters, reject dimse.RejectParams)
	OnReleased func()
	OnAborted  func(primitive *dimse.AbortPrimitive)
}

// AE is the owning Application Entity. It implements
// dimse.AEHandle, the narrow read-only view each
// AssociationSupervisor holds of it (spec §9's one-way-ownership
// re-architecture: the supervisor sees the AE only through that
// interface, while the AE keeps each running supervisor in its
// active registry until the supervisor's Run returns).
type AE struct {
	cfg       Config
	registry  *dimse.ServiceClassRegistry
	codec     dimse.DatasetCodec
	callbacks Callbacks

	mu           sync.Mutex
	active       map[string]*dimse.AssociationSupervisor
	listener     net.Listener
}

// New constructs an AE. codec may be nil only if no presentation
// context ever carries a dataset (e.g. a Verification-only AE).
func New(cfg Config, registry *dimse.ServiceClassRegistry, codec dimse.DatasetCodec, callbacks Callbacks) *AE {
	return &AE{
		cfg:       cfg,
		registry:  registry,
		codec:     codec,
		callbacks: callbacks,
		active:    make(map[string]*dimse.AssociationSupervisor),
	}
}

// ListenAndServe accepts inbound TCP connections and spawns one
// AssociationSupervisor per connection, returning only when ctx is
// canceled or the listener fails. Grounded on
// yasushi-saito-go-netdicom/serviceprovider.go's
// ServiceProvider.Run/RunProviderForConn accept loop, adapted to this
// engine's per-connection supervisor instead of a channel-driven state
// machine.
func (a *AE) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("ae: listen %s: %w", a.cfg.ListenAddr, err)
	}
	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Error().Err(err).Msg("ae: accept error")
			continue
		}
		go a.serve(ctx, conn)
	}
}

func (a *AE) serve(ctx context.Context, conn net.Conn) {
	supervisor, err := dimse.NewAssociationSupervisor(a, dimse.SupervisorConfig{Conn: conn})
	if err != nil {
		log.Error().Err(err).Msg("ae: failed to construct association supervisor")
		_ = conn.Close()
		return
	}
	a.register(supervisor)
	defer a.unregister(supervisor)
	supervisor.Run(ctx)
}

func (a *AE) register(s *dimse.AssociationSupervisor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[s.ID] = s
}

func (a *AE) unregister(s *dimse.AssociationSupervisor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, s.ID)
}

// Dial initiates a requestor-role association toward peerAddr, naming
// calledAETitle as the peer's AE title (spec §4.E Requestor role).
// Callers drive the association via the returned supervisor's SCU
// helpers (SendCEcho/SendCFind/...) after Run reaches StateEstablished.
func (a *AE) Dial(ctx context.Context, peerAddr, calledAETitle string) (*dimse.AssociationSupervisor, error) {
	supervisor, err := dimse.NewAssociationSupervisor(a, dimse.SupervisorConfig{
		PeerAddr:      peerAddr,
		CalledAETitle: calledAETitle,
	})
	if err != nil {
		return nil, err
	}
	a.register(supervisor)
	go func() {
		defer a.unregister(supervisor)
		supervisor.Run(ctx)
	}()

	deadline := time.Now().Add(a.cfg.ACSETimeout)
	for time.Now().Before(deadline) {
		switch supervisor.State() {
		case dimse.StateEstablished:
			return supervisor, nil
		case dimse.StateRefused, dimse.StateAborted, dimse.StateFailed:
			return nil, fmt.Errorf("ae: association to %s failed to establish: state=%s", peerAddr, supervisor.State())
		}
		time.Sleep(time.Millisecond)
	}
	return nil, fmt.Errorf("ae: association to %s: %w", peerAddr, dimse.ErrTimeout)
}

// VerifyEcho dials peerAddr, issues a single C-ECHO, and releases the
// association, reporting the round-trip time. Used by the admin
// surface's connection-test endpoint (spec §4.F SendCEcho).
func (a *AE) VerifyEcho(ctx context.Context, peerAddr, calledAET string) (time.Duration, error) {
	start := time.Now()
	supervisor, err := a.Dial(ctx, peerAddr, calledAET)
	if err != nil {
		return 0, err
	}
	defer func() {
		if supervisor.State() == dimse.StateEstablished {
			_ = supervisor.Release()
		}
	}()

	status, err := supervisor.SendCEcho(1)
	if err != nil {
		return 0, err
	}
	if status != dimse.StatusSuccess {
		return 0, fmt.Errorf("ae: C-ECHO to %s returned status 0x%04X", peerAddr, status)
	}
	return time.Since(start), nil
}

// ActiveAssociationCount satisfies both dimse.AEHandle and
// handlers.AssociationCounter.
func (a *AE) ActiveAssociationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *AE) LocalAETitle() string             { return a.cfg.Title }
func (a *AE) RequiredCallingAETitle() string    { return a.cfg.RequiredCallingAET }
func (a *AE) RequiredCalledAETitle() string     { return a.cfg.RequiredCalledAET }
func (a *AE) MaximumAssociations() int          { return a.cfg.MaxAssociations }
func (a *AE) ACSETimeout() time.Duration        { return a.cfg.ACSETimeout }
func (a *AE) DIMSETimeout() time.Duration       { return a.cfg.DIMSETimeout }
func (a *AE) IdleTimeout() time.Duration        { return a.cfg.IdleTimeout }
func (a *AE) LocalMaxPDULength() uint32         { return a.cfg.MaxPDULength }
func (a *AE) ImplementationClassUID() string    { return a.cfg.ImplementationClassUID }
func (a *AE) ImplementationVersion() string     { return a.cfg.ImplementationVersion }
func (a *AE) DatasetCodec() dimse.DatasetCodec  { return a.codec }

func (a *AE) PresentationContextsSCP() []dimse.PresentationContext {
	return append([]dimse.PresentationContext(nil), a.cfg.SCPPresentationContexts...)
}

func (a *AE) PresentationContextsSCU() []dimse.PresentationContext {
	return append([]dimse.PresentationContext(nil), a.cfg.SCUPresentationContexts...)
}

func (a *AE) ServiceClassHandler(abstractSyntaxUID string) (dimse.ServiceClassHandler, bool) {
	return a.registry.Lookup(abstractSyntaxUID)
}

func (a *AE) OnAssociationAccepted(params dimse.AssociationParameters) {
	if a.callbacks.OnAccepted != nil {
		a.callbacks.OnAccepted(params)
	}
}

func (a *AE) OnAssociationRejected(params dimse.AssociationParameters, reject dimse.RejectParams) {
	if a.callbacks.OnRejected != nil {
		a.callbacks.OnRejected(params, reject)
	}
}

func (a *AE) OnAssociationReleased() {
	if a.callbacks.OnReleased != nil {
		a.callbacks.OnReleased()
	}
}

func (a *AE) OnAssociationAborted(primitive *dimse.AbortPrimitive) {
	if a.callbacks.OnAborted != nil {
		a.callbacks.OnAborted(primitive)
	}
}
