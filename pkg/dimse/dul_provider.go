package dimse

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse/pdu"
)

// DULProvider is the interface contract for component D (spec §4.C/D):
// the PDU-level state machine over one TCP connection. It owns no
// protocol semantics beyond liveness and idle tracking; ACSE and DIMSE
// read/write PDUs through it.
type DULProvider interface {
	// SendPDU writes one framed PDU.
	SendPDU(t pdu.Type, payload []byte) error
	// ReceivePDU waits up to timeout for the next framed PDU. A zero
	// timeout polls non-blocking.
	ReceivePDU(timeout time.Duration) (pdu.Type, []byte, bool, error)
	// IsAlive reports whether the underlying connection is still
	// usable; false once Stop has completed or the peer has gone away.
	IsAlive() bool
	// IdleTimerExpired reports whether no PDU has been read or written
	// for longer than the configured idle timeout.
	IdleTimerExpired() bool
	// Stop requests graceful shutdown; it is idempotent and safe to
	// call repeatedly until it returns true.
	Stop() bool
	// ResetIdleTimer is called by ACSE/DIMSE whenever traffic occurs.
	ResetIdleTimer()
}

// tcpDULProvider is a DULProvider backed by a single net.Conn. A
// background goroutine reads frames continuously (grounded on
// yasushi-saito-go-netdicom/statemachine.go's read-loop idea,
// simplified away from its full channel-driven FSM per spec §9's
// cooperative-loop re-architecture note) and hands them to ReceivePDU
// via a buffered channel.
type tcpDULProvider struct {
	conn net.Conn

	idleTimeout time.Duration
	lastActive  atomic.Int64 // unix nano

	frames chan frame
	errs   chan error

	alive   atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex
}

type frame struct {
	t       pdu.Type
	payload []byte
}

// NewTCPDULProvider wraps conn and starts its background reader.
func NewTCPDULProvider(conn net.Conn, idleTimeout time.Duration) DULProvider {
	d := &tcpDULProvider{
		conn:        conn,
		idleTimeout: idleTimeout,
		frames:      make(chan frame, 8),
		errs:        make(chan error, 1),
	}
	d.alive.Store(true)
	d.ResetIdleTimer()
	go d.readLoop()
	return d
}

func (d *tcpDULProvider) readLoop() {
	for {
		t, payload, err := pdu.ReadFrame(d.conn)
		if err != nil {
			d.alive.Store(false)
			select {
			case d.errs <- err:
			default:
			}
			close(d.frames)
			return
		}
		d.ResetIdleTimer()
		d.frames <- frame{t: t, payload: payload}
	}
}

func (d *tcpDULProvider) SendPDU(t pdu.Type, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := pdu.WriteFrame(d.conn, t, payload); err != nil {
		d.alive.Store(false)
		return err
	}
	d.ResetIdleTimer()
	return nil
}

func (d *tcpDULProvider) ReceivePDU(timeout time.Duration) (pdu.Type, []byte, bool, error) {
	if timeout <= 0 {
		select {
		case f, ok := <-d.frames:
			if !ok {
				return 0, nil, false, d.drainErr()
			}
			return f.t, f.payload, true, nil
		default:
			return 0, nil, false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f, ok := <-d.frames:
		if !ok {
			return 0, nil, false, d.drainErr()
		}
		return f.t, f.payload, true, nil
	case <-timer.C:
		return 0, nil, false, nil
	}
}

func (d *tcpDULProvider) drainErr() error {
	select {
	case err := <-d.errs:
		if err == io.EOF {
			return nil
		}
		return err
	default:
		return nil
	}
}

func (d *tcpDULProvider) IsAlive() bool {
	return d.alive.Load()
}

func (d *tcpDULProvider) IdleTimerExpired() bool {
	if d.idleTimeout <= 0 {
		return false
	}
	last := time.Unix(0, d.lastActive.Load())
	return time.Since(last) > d.idleTimeout
}

func (d *tcpDULProvider) ResetIdleTimer() {
	d.lastActive.Store(time.Now().UnixNano())
}

func (d *tcpDULProvider) Stop() bool {
	if d.stopped.Load() {
		return true
	}
	d.stopped.Store(true)
	d.alive.Store(false)
	_ = d.conn.Close()
	return true
}
