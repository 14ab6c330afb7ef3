package dimse

// PresentationContextNegotiator intersects a requestor's proposed
// contexts against an acceptor's offered contexts. Grounded on
// yasushi-saito-go-netdicom/contextmanager.go's onAssociateRequest,
// generalized to return the full result list rather than aborting
// internally — per spec the negotiator never rejects the association
// itself, the supervisor does.
type PresentationContextNegotiator struct{}

// NewPresentationContextNegotiator constructs the (stateless) negotiator.
func NewPresentationContextNegotiator() *PresentationContextNegotiator {
	return &PresentationContextNegotiator{}
}

// Negotiate runs the algorithm of spec §4.A: for each proposed context,
// preserving its id and input order, find the offered context with a
// matching abstract syntax, intersect transfer syntaxes preserving the
// acceptor's preference order, and resolve SCU/SCP roles.
//
// The returned slice always has the same length and id order as
// proposed; Negotiate never errors. The supervisor is responsible for
// treating an all-rejected result as an abort condition.
func (n *PresentationContextNegotiator) Negotiate(proposed, offered []PresentationContext) []PresentationContext {
	offeredByAbstractSyntax := make(map[string]PresentationContext, len(offered))
	for _, off := range offered {
		if _, exists := offeredByAbstractSyntax[off.AbstractSyntax]; !exists {
			offeredByAbstractSyntax[off.AbstractSyntax] = off
		}
	}

	result := make([]PresentationContext, len(proposed))
	for i, p := range proposed {
		out := p
		off, ok := offeredByAbstractSyntax[p.AbstractSyntax]
		if !ok {
			out.Result = ContextAbstractSyntaxNotSupported
			result[i] = out
			continue
		}

		selected, ok := firstCommonTransferSyntax(off.TransferSyntaxes, p.TransferSyntaxes)
		if !ok {
			out.Result = ContextTransferSyntaxesNotSupported
			result[i] = out
			continue
		}

		out.AcceptedTransferSyntax = selected
		out.AcceptedRoleSCU, out.AcceptedRoleSCP = resolveRoles(p, off)
		out.Result = ContextAccepted
		result[i] = out
	}
	return result
}

// firstCommonTransferSyntax walks the acceptor's preference order and
// returns the first entry also present in the proposed list.
func firstCommonTransferSyntax(acceptorOrder, proposed []string) (string, bool) {
	proposedSet := make(map[string]struct{}, len(proposed))
	for _, ts := range proposed {
		proposedSet[ts] = struct{}{}
	}
	for _, ts := range acceptorOrder {
		if _, ok := proposedSet[ts]; ok {
			return ts, true
		}
	}
	return "", false
}

// resolveRoles applies step 4 of spec §4.A: when either side explicitly
// negotiates SCP/SCU role selection (RoleSCU/RoleSCP set to non-default
// on the proposed context), the accepted roles are the conjunction of
// proposed and offered; otherwise the default (requestor=SCU,
// acceptor=SCP) applies.
func resolveRoles(proposed, offered PresentationContext) (scu, scp bool) {
	if !proposed.RoleSCU && !proposed.RoleSCP {
		return true, false
	}
	return proposed.RoleSCU && offered.RoleSCU, proposed.RoleSCP && offered.RoleSCP
}

// AnyAccepted reports whether at least one context in the negotiated
// result was accepted; the supervisor aborts when this is false.
func AnyAccepted(contexts []PresentationContext) bool {
	for _, c := range contexts {
		if c.Accepted() {
			return true
		}
	}
	return false
}
