package ae

import (
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-dicom-connector/internal/services"
	"github.com/otcheredev/ris-dicom-connector/pkg/dimse"
)

// VerificationHandler answers C-ECHO-RQ with Success, the only
// behavior PS3.4 Annex A defines for the Verification SOP class.
type VerificationHandler struct{}

func (VerificationHandler) HandleSCP(hctx *dimse.HandlerContext, msg *dimse.DIMSEMessage) error {
	status := dimse.StatusSuccess
	resp := dimse.DIMSEMessage{
		CommandSet:             map[uint32]any{dimse.TagCommandField: dimse.CommandFieldCEchoRSP},
		PresentationContextID:  msg.PresentationContextID,
		MessageID:              msg.MessageID,
		AffectedSOPClassUID:    msg.AffectedSOPClassUID,
		Status:                 &status,
	}
	return hctx.DIMSE.Send(resp, hctx.Context.AcceptedTransferSyntax)
}

// StorageHandler accepts C-STORE-RQ for any SOP class it is
// registered against. When the AE has a codec it re-encodes the
// received dataset under the accepted transfer syntax as a check,
// reporting CannotUnderstand if that fails and Success otherwise.
// This engine does not persist the dataset bytes
// itself (that responsibility belongs to whatever Dataset
// implementation the codec produces); it only completes the DIMSE
// exchange.
type StorageHandler struct{}

func (StorageHandler) HandleSCP(hctx *dimse.HandlerContext, msg *dimse.DIMSEMessage) error {
	status := dimse.StatusSuccess
	if codec := hctx.AE.DatasetCodec(); codec != nil && msg.Dataset != nil {
		if _, err := codec.Encode(msg.Dataset, hctx.Context.AcceptedTransferSyntax); err != nil {
			log.Warn().Err(err).Str("sop_instance", msg.AffectedSOPInstanceUID).Msg("storage handler: dataset re-encode check failed")
			status = dimse.StatusCannotUnderstand
		}
	}
	resp := dimse.DIMSEMessage{
		CommandSet:             map[uint32]any{dimse.TagCommandField: dimse.CommandFieldCStoreRSP},
		PresentationContextID:  msg.PresentationContextID,
		MessageID:              msg.MessageID,
		AffectedSOPClassUID:    msg.AffectedSOPClassUID,
		AffectedSOPInstanceUID: msg.AffectedSOPInstanceUID,
		Status:                 &status,
	}
	return hctx.DIMSE.Send(resp, hctx.Context.AcceptedTransferSyntax)
}

// QueryRetrieveHandler answers every C-FIND-RQ with an immediate
// Success and zero matches. It has no study database of its own, and
// the Cache field is held but not consulted when answering.
type QueryRetrieveHandler struct {
	Cache *services.QueryCacheService
}

func (h QueryRetrieveHandler) HandleSCP(hctx *dimse.HandlerContext, msg *dimse.DIMSEMessage) error {
	status := dimse.StatusSuccess
	resp := dimse.DIMSEMessage{
		CommandSet:             map[uint32]any{dimse.TagCommandField: dimse.CommandFieldCFindRSP},
		PresentationContextID:  msg.PresentationContextID,
		MessageID:              msg.MessageID,
		AffectedSOPClassUID:    msg.AffectedSOPClassUID,
		Status:                 &status,
	}
	return hctx.DIMSE.Send(resp, hctx.Context.AcceptedTransferSyntax)
}
