package dimse

import (
	"sync/atomic"
	"time"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse/pdu"
)

// pduRouter demultiplexes inbound PDUs read off one DULProvider into
// the two consumers above it: ACSE (A-RELEASE-RQ/RP, A-ABORT,
// A-ASSOCIATE-*) and DIMSE (P-DATA-TF). Both providers share one
// underlying connection, so exactly one goroutine may call
// DULProvider.ReceivePDU; this router is that goroutine.
type pduRouter struct {
	dul DULProvider

	dimseFrames chan frame

	releasePending atomic.Bool
	abortPending   atomic.Pointer[pdu.Abort]

	acseReply   chan frame // A-ASSOCIATE-AC/RJ/ABORT during Request()
	associateRQ chan frame // A-ASSOCIATE-RQ during WaitForRequest()

	stop chan struct{}
}

func newPDURouter(dul DULProvider) *pduRouter {
	r := &pduRouter{
		dul:         dul,
		dimseFrames: make(chan frame, 8),
		acseReply:   make(chan frame, 1),
		associateRQ: make(chan frame, 1),
		stop:        make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *pduRouter) run() {
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		t, payload, ok, err := r.dul.ReceivePDU(200 * time.Millisecond)
		if err != nil || (!ok && !r.dul.IsAlive()) {
			return
		}
		if !ok {
			continue
		}
		switch t {
		case pdu.TypePDataTF:
			select {
			case r.dimseFrames <- frame{t: t, payload: payload}:
			case <-r.stop:
				return
			}
		case pdu.TypeReleaseRQ, pdu.TypeReleaseRP:
			r.releasePending.Store(true)
		case pdu.TypeAbort:
			ab, err := pdu.DecodeAbort(payload)
			if err != nil {
				ab = pdu.Abort{}
			}
			r.abortPending.Store(&ab)
			// Also surface the abort to a blocked Request() call: it
			// only wakes on acseReply or its timer, so without this an
			// in-flight A-ASSOCIATE-RQ's abort is invisible until the
			// ACSE timeout expires.
			select {
			case r.acseReply <- frame{t: t, payload: payload}:
			default:
			}
		case pdu.TypeAssociateAC, pdu.TypeAssociateRJ:
			select {
			case r.acseReply <- frame{t: t, payload: payload}:
			default:
			}
		case pdu.TypeAssociateRQ:
			select {
			case r.associateRQ <- frame{t: t, payload: payload}:
			default:
			}
		}
	}
}

// checkRelease returns true exactly once when a release primitive has
// arrived since the last call.
func (r *pduRouter) checkRelease() bool {
	return r.releasePending.CompareAndSwap(true, false)
}

// checkAbort returns the pending abort primitive exactly once, nil
// otherwise.
func (r *pduRouter) checkAbort() *pdu.Abort {
	return r.abortPending.Swap(nil)
}

func (r *pduRouter) close() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}
