package dimse

import (
	"fmt"
	"time"

	"github.com/otcheredev/ris-dicom-connector/pkg/dimse/pdu"
)

// DatasetCodec is the external collaborator (spec §1/§6 "out of
// scope") that knows how to serialize/deserialize a Dataset under a
// negotiated transfer syntax. The engine never inspects VRs itself.
type DatasetCodec interface {
	Encode(ds Dataset, transferSyntax string) ([]byte, error)
	Decode(data []byte, transferSyntax string) (Dataset, error)
}

// DIMSEProvider is the interface contract for component C: sending and
// receiving DIMSE messages tagged with a presentation-context id.
// Grounded on giesekow-go-netdicom/dimse's Message/ReadMessage/
// EncodeMessage shape, generalized to the codec-injected Dataset model
// this engine uses instead of a concrete VR library.
type DIMSEProvider interface {
	// Send frames message as one or more P-DATA-TF PDUs, each carrying
	// at most 16352 bytes of command or dataset data. The peer's
	// negotiated maximum PDU length is not consulted.
	Send(message DIMSEMessage, transferSyntax string) error
	// Receive waits up to timeout for the next DIMSE message. A zero
	// timeout polls non-blocking.
	Receive(timeout time.Duration, transferSyntax string) (*DIMSEMessage, bool, error)
}

type dimseProvider struct {
	dul    DULProvider
	router *pduRouter
	codec  DatasetCodec
}

// NewDIMSEProvider constructs the default wire implementation.
func NewDIMSEProvider(dul DULProvider, router *pduRouter, codec DatasetCodec) DIMSEProvider {
	return &dimseProvider{dul: dul, router: router, codec: codec}
}

const pdvHeaderOverhead = 6 // 4-byte item length + 1 pc-id + 1 flags byte

func (p *dimseProvider) Send(message DIMSEMessage, transferSyntax string) error {
	cs := commandSetFromMessage(message)
	cmdBytes := cs.encode()

	var dsBytes []byte
	if message.Dataset != nil {
		if p.codec == nil {
			return fmt.Errorf("dimse: dataset present but no codec configured: %w", ErrEncodingFailure)
		}
		var err error
		dsBytes, err = p.codec.Encode(message.Dataset, transferSyntax)
		if err != nil {
			return fmt.Errorf("dimse: %w: %v", ErrEncodingFailure, err)
		}
	}

	if err := p.sendChunked(message.PresentationContextID, cmdBytes, true); err != nil {
		return err
	}
	if len(dsBytes) > 0 {
		if err := p.sendChunked(message.PresentationContextID, dsBytes, false); err != nil {
			return err
		}
	}
	return nil
}

// sendChunked splits data into PDVs no larger than a conservative
// fixed chunk size and frames exactly one P-DATA-TF per chunk, the
// last PDV of the last chunk marked Last. The chunk size is fixed and
// does not depend on the peer's negotiated maximum PDU length, so a
// peer advertising less than 16358 bytes can receive PDUs larger than
// its limit. One PDU always carries one PDV.
func (p *dimseProvider) sendChunked(pcID byte, data []byte, isCommand bool) error {
	const chunkSize = 16352 // conservative default, well under a 16KB peer max
	if len(data) == 0 {
		return p.dul.SendPDU(pdu.TypePDataTF, pdu.EncodePDataTF([]pdu.PresentationDataValue{{
			PresentationContextID: pcID, Command: isCommand, Last: true, Data: nil,
		}}))
	}
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		last := end == len(data)
		pdv := pdu.PresentationDataValue{
			PresentationContextID: pcID,
			Command:                isCommand,
			Last:                    last,
			Data:                    data[offset:end],
		}
		if err := p.dul.SendPDU(pdu.TypePDataTF, pdu.EncodePDataTF([]pdu.PresentationDataValue{pdv})); err != nil {
			return err
		}
	}
	return nil
}

func (p *dimseProvider) Receive(timeout time.Duration, transferSyntax string) (*DIMSEMessage, bool, error) {
	var cmdBuf []byte
	var dsBuf []byte
	var pcID byte
	haveCmd := false
	deadline := time.Now().Add(timeout)

	for {
		remaining := timeout
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
		}
		select {
		case f, ok := <-p.router.dimseFrames:
			if !ok {
				return nil, false, nil
			}
			values, err := pdu.DecodePDataTF(f.payload)
			if err != nil {
				return nil, false, err
			}
			for _, v := range values {
				pcID = v.PresentationContextID
				if v.Command {
					cmdBuf = append(cmdBuf, v.Data...)
					if v.Last {
						haveCmd = true
					}
				} else {
					dsBuf = append(dsBuf, v.Data...)
				}
			}
		case <-time.After(remaining):
			if timeout <= 0 {
				return nil, false, nil
			}
			if !haveCmd {
				return nil, false, nil
			}
		}

		if haveCmd {
			// A command with CommandDataSetType == 0x0101 (null) carries
			// no dataset; we can't know that until decoded, so attempt
			// decode and return once either the command says "no
			// dataset" or we've accumulated any dataset bytes already
			// queued on the channel.
			cs, err := decodeCommandSet(cmdBuf)
			if err != nil {
				return nil, false, err
			}
			dataSetType, _ := cs.getUint16(TagCommandDataSetType)
			if dataSetType == 0x0101 || len(dsBuf) > 0 || timeout <= 0 {
				msg := messageFromCommandSet(cs, pcID)
				if len(dsBuf) > 0 && p.codec != nil {
					ds, err := p.codec.Decode(dsBuf, transferSyntax)
					if err == nil {
						msg.Dataset = ds
					}
				}
				return msg, true, nil
			}
		}
	}
}

func commandSetFromMessage(m DIMSEMessage) *commandSet {
	cs := newCommandSet()
	for tag, v := range m.CommandSet {
		switch val := v.(type) {
		case uint16:
			cs.setUint16(tag, val)
		case string:
			cs.setString(tag, val)
		}
	}
	cs.setString(TagAffectedSOPClassUID, m.AffectedSOPClassUID)
	cs.setUint16(TagMessageID, m.MessageID)
	cs.setUint16(TagPriority, uint16(m.Priority))
	if m.AffectedSOPInstanceUID != "" {
		cs.setString(TagAffectedSOPInstanceUID, m.AffectedSOPInstanceUID)
	}
	if m.Status != nil {
		cs.setUint16(TagStatus, *m.Status)
		cs.setUint16(TagMessageIDBeingRespondedTo, m.MessageID)
	}
	if m.Dataset != nil {
		cs.setUint16(TagCommandDataSetType, 1)
	} else {
		cs.setUint16(TagCommandDataSetType, 0x0101)
	}
	return cs
}

func messageFromCommandSet(cs *commandSet, pcID byte) *DIMSEMessage {
	msg := &DIMSEMessage{PresentationContextID: pcID, CommandSet: map[uint32]any{}}
	if v, ok := cs.getString(TagAffectedSOPClassUID); ok {
		msg.AffectedSOPClassUID = v
	}
	if v, ok := cs.getString(TagAffectedSOPInstanceUID); ok {
		msg.AffectedSOPInstanceUID = v
	}
	if v, ok := cs.getUint16(TagMessageID); ok {
		msg.MessageID = v
	} else if v, ok := cs.getUint16(TagMessageIDBeingRespondedTo); ok {
		msg.MessageID = v
	}
	if v, ok := cs.getUint16(TagPriority); ok {
		msg.Priority = Priority(v)
	}
	if v, ok := cs.getUint16(TagStatus); ok {
		status := v
		msg.Status = &status
	}
	if v, ok := cs.getUint16(TagCommandField); ok {
		msg.CommandSet[TagCommandField] = v
	}
	// C-MOVE-RSP sub-operation progress counters (PS3.7 C.4.2.3); the
	// SCU helper reads these back out of CommandSet to populate
	// MoveResult.
	for _, tag := range []uint32{
		TagNumberOfRemainingSuboperations,
		TagNumberOfCompletedSuboperations,
		TagNumberOfFailedSuboperations,
		TagNumberOfWarningSuboperations,
	} {
		if v, ok := cs.getUint16(tag); ok {
			msg.CommandSet[tag] = v
		}
	}
	return msg
}
