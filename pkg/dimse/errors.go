package dimse

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy of kinds the supervisor and SCU
// helpers can surface. Wrap with fmt.Errorf("...: %w", ErrX) to attach
// context; callers compare with errors.Is.
var (
	// ErrInvalidConfiguration covers construction misuse (both or
	// neither of client_socket/peer_ae supplied) and unknown query
	// models. Priority values outside the accepted set are coerced by
	// the SCU helpers and not reported as an error.
	ErrInvalidConfiguration = errors.New("dimse: invalid configuration")

	// ErrNotEstablished is returned by SCU helpers invoked while the
	// association is not in the Established state.
	ErrNotEstablished = errors.New("dimse: association not established")

	// ErrNoMatchingContext covers a requested SOP class absent from
	// the accepted contexts (SCU side) and an incoming message that
	// references an unknown presentation-context id (SCP side).
	ErrNoMatchingContext = errors.New("dimse: no matching presentation context")

	// ErrTimeout marks an ACSE or DIMSE exchange that exceeded its
	// configured timeout.
	ErrTimeout = errors.New("dimse: operation timed out")

	// ErrPeerRejected classifies an A-ASSOCIATE-RJ response.
	ErrPeerRejected = errors.New("dimse: association rejected by peer")

	// ErrPeerAborted classifies a peer-initiated A-ABORT.
	ErrPeerAborted = errors.New("dimse: association aborted by peer")

	// ErrProviderAborted classifies a provider-initiated A-ABORT
	// (A-P-ABORT), e.g. raised by the local DUL on transport failure.
	ErrProviderAborted = errors.New("dimse: association aborted by provider")

	// ErrEncodingFailure marks a dataset that could not be serialized
	// under the negotiated transfer syntax.
	ErrEncodingFailure = errors.New("dimse: dataset encoding failed")

	// ErrUnimplemented marks the N-service helpers, which are not
	// implemented.
	ErrUnimplemented = errors.New("dimse: service not implemented")
)

// newConfigError wraps ErrInvalidConfiguration with a reason.
func newConfigError(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidConfiguration)
}

// newContextError wraps ErrNoMatchingContext with the offending identifier.
func newContextError(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrNoMatchingContext)
}
