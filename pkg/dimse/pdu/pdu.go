// Package pdu implements the PS3.8 upper-layer PDU wire codec: the
// byte-level framing the DUL provider sends and receives. It is the
// external-collaborator codec the supervisor delegates encoding to
// (spec §6) — grounded on the item-based encode/decode pattern in
// giesekow-go-netdicom/pdu and the PDU type catalog in
// yasushi-saito-go-netdicom/pdu.go, reworked around encoding/binary
// instead of a custom Encoder/Decoder type.
package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Type is the PDU type field, byte 0 of every PDU.
type Type byte

const (
	TypeAssociateRQ Type = 0x01
	TypeAssociateAC Type = 0x02
	TypeAssociateRJ Type = 0x03
	TypePDataTF     Type = 0x04
	TypeReleaseRQ   Type = 0x05
	TypeReleaseRP   Type = 0x06
	TypeAbort       Type = 0x07
)

func (t Type) String() string {
	switch t {
	case TypeAssociateRQ:
		return "A-ASSOCIATE-RQ"
	case TypeAssociateAC:
		return "A-ASSOCIATE-AC"
	case TypeAssociateRJ:
		return "A-ASSOCIATE-RJ"
	case TypePDataTF:
		return "P-DATA-TF"
	case TypeReleaseRQ:
		return "A-RELEASE-RQ"
	case TypeReleaseRP:
		return "A-RELEASE-RP"
	case TypeAbort:
		return "A-ABORT"
	default:
		return fmt.Sprintf("PDU(0x%02x)", byte(t))
	}
}

// Item type field values for A-ASSOCIATE-RQ/AC sub-items.
const (
	ItemApplicationContext          = 0x10
	ItemPresentationContextRQ       = 0x20
	ItemPresentationContextAC       = 0x21
	ItemAbstractSyntax              = 0x30
	ItemTransferSyntax               = 0x40
	ItemUserInformation              = 0x50
	ItemMaxLength                    = 0x51
	ItemImplementationClassUID       = 0x52
	ItemAsynchronousOperationsWindow = 0x53
	ItemRoleSelection                = 0x54
	ItemImplementationVersionName    = 0x55
	ItemSOPClassExtendedNegotiation  = 0x56
	ItemUserIdentityRQ               = 0x58
	ItemUserIdentityAC               = 0x59
)

const DefaultApplicationContextName = "1.2.840.10008.3.1.1.1"

// ReadFrame reads one PDU's 6-byte header and payload from r.
func ReadFrame(r io.Reader) (Type, []byte, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("pdu: read header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[2:6])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("pdu: read payload: %w", err)
		}
	}
	return Type(header[0]), payload, nil
}

// WriteFrame writes a 6-byte header followed by payload to w.
func WriteFrame(w io.Writer, t Type, payload []byte) error {
	header := make([]byte, 6, 6+len(payload))
	header[0] = byte(t)
	header[1] = 0
	binary.BigEndian.PutUint32(header[2:6], uint32(len(payload)))
	header = append(header, payload...)
	_, err := w.Write(header)
	return err
}

// PresentationContextRQ is a proposed presentation context, as carried
// in an A-ASSOCIATE-RQ.
type PresentationContextRQ struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// PresentationContextAC is an accepted (or rejected) presentation
// context, as carried in an A-ASSOCIATE-AC. Result mirrors PS3.8
// Table 9-18 (0=accepted, 1=user-rejection, 2=no-reason,
// 3=abstract-syntax-not-supported, 4=transfer-syntaxes-not-supported).
type PresentationContextAC struct {
	ID             byte
	Result         byte
	TransferSyntax string
}

// AssociateRQ is the decoded body of an A-ASSOCIATE-RQ PDU.
type AssociateRQ struct {
	ProtocolVersion       uint16
	CalledAETitle         string
	CallingAETitle        string
	ApplicationContextName string
	PresentationContexts  []PresentationContextRQ
	MaxPDULength          uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateAC is the decoded body of an A-ASSOCIATE-AC PDU.
type AssociateAC struct {
	ProtocolVersion        uint16
	CalledAETitle          string
	CallingAETitle         string
	ApplicationContextName string
	PresentationContexts   []PresentationContextAC
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

// AssociateRJ is the decoded body of an A-ASSOCIATE-RJ PDU.
type AssociateRJ struct {
	Result byte
	Source byte
	Reason byte
}

// Abort is the decoded body of an A-ABORT PDU.
type Abort struct {
	Source byte
	Reason byte
}

func padAETitle(title string) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = ' '
	}
	copy(out, []byte(title))
	return out
}

func trimAETitle(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

func writeItem(buf *bytes.Buffer, itemType byte, value string) {
	buf.WriteByte(itemType)
	buf.WriteByte(0)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)))
	buf.Write(lenBuf[:])
	buf.WriteString(value)
}

// EncodeAssociateRQ serializes an A-ASSOCIATE-RQ PDU payload (the
// 6-byte frame header is handled separately by WriteFrame).
func EncodeAssociateRQ(rq AssociateRQ) []byte {
	var buf bytes.Buffer
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], 1)
	buf.Write(u16[:]) // protocol version
	buf.Write([]byte{0, 0})
	buf.Write(padAETitle(rq.CalledAETitle))
	buf.Write(padAETitle(rq.CallingAETitle))
	buf.Write(make([]byte, 32)) // reserved

	appCtxName := rq.ApplicationContextName
	if appCtxName == "" {
		appCtxName = DefaultApplicationContextName
	}
	writeItem(&buf, ItemApplicationContext, appCtxName)

	for _, pc := range rq.PresentationContexts {
		var item bytes.Buffer
		item.WriteByte(pc.ID)
		item.Write([]byte{0, 0, 0})
		var abs bytes.Buffer
		writeItem(&abs, ItemAbstractSyntax, pc.AbstractSyntax)
		item.Write(abs.Bytes())
		for _, ts := range pc.TransferSyntaxes {
			var tsBuf bytes.Buffer
			writeItem(&tsBuf, ItemTransferSyntax, ts)
			item.Write(tsBuf.Bytes())
		}
		buf.WriteByte(ItemPresentationContextRQ)
		buf.WriteByte(0)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(item.Len()))
		buf.Write(l[:])
		buf.Write(item.Bytes())
	}

	buf.Write(encodeUserInformation(rq.MaxPDULength, rq.ImplementationClassUID, rq.ImplementationVersion))

	return buf.Bytes()
}

func encodeUserInformation(maxPDU uint32, implClassUID, implVersion string) []byte {
	var inner bytes.Buffer
	var maxLenBuf [4]byte
	binary.BigEndian.PutUint32(maxLenBuf[:], maxPDU)
	inner.WriteByte(ItemMaxLength)
	inner.Write([]byte{0, 0, 4})
	inner.Write(maxLenBuf[:])

	var implBuf bytes.Buffer
	writeItem(&implBuf, ItemImplementationClassUID, implClassUID)
	inner.Write(implBuf.Bytes())

	if implVersion != "" {
		var verBuf bytes.Buffer
		writeItem(&verBuf, ItemImplementationVersionName, implVersion)
		inner.Write(verBuf.Bytes())
	}

	var out bytes.Buffer
	out.WriteByte(ItemUserInformation)
	out.WriteByte(0)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(inner.Len()))
	out.Write(l[:])
	out.Write(inner.Bytes())
	return out.Bytes()
}

// DecodeAssociateRQ parses an A-ASSOCIATE-RQ PDU payload.
func DecodeAssociateRQ(payload []byte) (AssociateRQ, error) {
	var rq AssociateRQ
	if len(payload) < 68 {
		return rq, fmt.Errorf("pdu: associate-rq too short (%d bytes)", len(payload))
	}
	rq.ProtocolVersion = binary.BigEndian.Uint16(payload[0:2])
	rq.CalledAETitle = trimAETitle(payload[4:20])
	rq.CallingAETitle = trimAETitle(payload[20:36])

	items := payload[68:]
	for len(items) >= 4 {
		itemType := items[0]
		itemLen := binary.BigEndian.Uint16(items[2:4])
		if len(items) < int(4+itemLen) {
			return rq, fmt.Errorf("pdu: truncated item type 0x%02x", itemType)
		}
		body := items[4 : 4+itemLen]
		switch itemType {
		case ItemApplicationContext:
			rq.ApplicationContextName = string(body)
		case ItemPresentationContextRQ:
			pc, err := decodePresentationContextRQ(body)
			if err != nil {
				return rq, err
			}
			rq.PresentationContexts = append(rq.PresentationContexts, pc)
		case ItemUserInformation:
			maxPDU, implClass, implVer := decodeUserInformation(body)
			rq.MaxPDULength = maxPDU
			rq.ImplementationClassUID = implClass
			rq.ImplementationVersion = implVer
		}
		items = items[4+itemLen:]
	}
	return rq, nil
}

func decodePresentationContextRQ(body []byte) (PresentationContextRQ, error) {
	var pc PresentationContextRQ
	if len(body) < 4 {
		return pc, fmt.Errorf("pdu: presentation-context-rq too short")
	}
	pc.ID = body[0]
	sub := body[4:]
	for len(sub) >= 4 {
		subType := sub[0]
		subLen := binary.BigEndian.Uint16(sub[2:4])
		if len(sub) < int(4+subLen) {
			return pc, fmt.Errorf("pdu: truncated sub-item in presentation context")
		}
		subBody := sub[4 : 4+subLen]
		switch subType {
		case ItemAbstractSyntax:
			pc.AbstractSyntax = string(subBody)
		case ItemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, string(subBody))
		}
		sub = sub[4+subLen:]
	}
	return pc, nil
}

func decodeUserInformation(body []byte) (maxPDU uint32, implClassUID, implVersion string) {
	sub := body
	for len(sub) >= 4 {
		subType := sub[0]
		subLen := binary.BigEndian.Uint16(sub[2:4])
		if len(sub) < int(4+subLen) {
			return
		}
		subBody := sub[4 : 4+subLen]
		switch subType {
		case ItemMaxLength:
			if len(subBody) >= 4 {
				maxPDU = binary.BigEndian.Uint32(subBody[0:4])
			}
		case ItemImplementationClassUID:
			implClassUID = string(subBody)
		case ItemImplementationVersionName:
			implVersion = string(subBody)
		}
		sub = sub[4+subLen:]
	}
	return
}

// EncodeAssociateAC serializes an A-ASSOCIATE-AC PDU payload.
func EncodeAssociateAC(ac AssociateAC) []byte {
	var buf bytes.Buffer
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], 1)
	buf.Write(u16[:])
	buf.Write([]byte{0, 0})
	buf.Write(padAETitle(ac.CalledAETitle))
	buf.Write(padAETitle(ac.CallingAETitle))
	buf.Write(make([]byte, 32))

	appCtxName := ac.ApplicationContextName
	if appCtxName == "" {
		appCtxName = DefaultApplicationContextName
	}
	writeItem(&buf, ItemApplicationContext, appCtxName)

	for _, pc := range ac.PresentationContexts {
		var item bytes.Buffer
		item.WriteByte(pc.ID)
		item.WriteByte(0)
		item.WriteByte(pc.Result)
		item.WriteByte(0)
		var tsBuf bytes.Buffer
		writeItem(&tsBuf, ItemTransferSyntax, pc.TransferSyntax)
		item.Write(tsBuf.Bytes())

		buf.WriteByte(ItemPresentationContextAC)
		buf.WriteByte(0)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(item.Len()))
		buf.Write(l[:])
		buf.Write(item.Bytes())
	}

	buf.Write(encodeUserInformation(ac.MaxPDULength, ac.ImplementationClassUID, ac.ImplementationVersion))
	return buf.Bytes()
}

// DecodeAssociateAC parses an A-ASSOCIATE-AC PDU payload.
func DecodeAssociateAC(payload []byte) (AssociateAC, error) {
	var ac AssociateAC
	if len(payload) < 68 {
		return ac, fmt.Errorf("pdu: associate-ac too short (%d bytes)", len(payload))
	}
	ac.ProtocolVersion = binary.BigEndian.Uint16(payload[0:2])
	ac.CalledAETitle = trimAETitle(payload[4:20])
	ac.CallingAETitle = trimAETitle(payload[20:36])

	items := payload[68:]
	for len(items) >= 4 {
		itemType := items[0]
		itemLen := binary.BigEndian.Uint16(items[2:4])
		if len(items) < int(4+itemLen) {
			return ac, fmt.Errorf("pdu: truncated item type 0x%02x", itemType)
		}
		body := items[4 : 4+itemLen]
		switch itemType {
		case ItemApplicationContext:
			ac.ApplicationContextName = string(body)
		case ItemPresentationContextAC:
			if len(body) < 4 {
				return ac, fmt.Errorf("pdu: presentation-context-ac too short")
			}
			pc := PresentationContextAC{ID: body[0], Result: body[2]}
			sub := body[4:]
			for len(sub) >= 4 {
				subType := sub[0]
				subLen := binary.BigEndian.Uint16(sub[2:4])
				if len(sub) < int(4+subLen) {
					break
				}
				if subType == ItemTransferSyntax {
					pc.TransferSyntax = string(sub[4 : 4+subLen])
				}
				sub = sub[4+subLen:]
			}
			ac.PresentationContexts = append(ac.PresentationContexts, pc)
		case ItemUserInformation:
			maxPDU, implClass, implVer := decodeUserInformation(body)
			ac.MaxPDULength = maxPDU
			ac.ImplementationClassUID = implClass
			ac.ImplementationVersion = implVer
		}
		items = items[4+itemLen:]
	}
	return ac, nil
}

// EncodeAssociateRJ serializes an A-ASSOCIATE-RJ PDU payload.
func EncodeAssociateRJ(rj AssociateRJ) []byte {
	return []byte{0, rj.Result, rj.Source, rj.Reason}
}

// DecodeAssociateRJ parses an A-ASSOCIATE-RJ PDU payload.
func DecodeAssociateRJ(payload []byte) (AssociateRJ, error) {
	if len(payload) < 4 {
		return AssociateRJ{}, fmt.Errorf("pdu: associate-rj too short")
	}
	return AssociateRJ{Result: payload[1], Source: payload[2], Reason: payload[3]}, nil
}

// EncodeAbort serializes an A-ABORT PDU payload.
func EncodeAbort(a Abort) []byte {
	return []byte{0, 0, a.Source, a.Reason}
}

// DecodeAbort parses an A-ABORT PDU payload.
func DecodeAbort(payload []byte) (Abort, error) {
	if len(payload) < 4 {
		return Abort{}, fmt.Errorf("pdu: abort too short")
	}
	return Abort{Source: payload[2], Reason: payload[3]}, nil
}

// EncodeReleaseRQ/RP serialize the (empty except for reserved bytes)
// A-RELEASE-RQ/RP PDU payloads.
func EncodeReleaseRQ() []byte { return make([]byte, 4) }
func EncodeReleaseRP() []byte { return make([]byte, 4) }

// EncodePDataTF frames one or more presentation-data-values into a
// P-DATA-TF PDU payload. Each value is (presentation-context-id,
// is-command, is-last, data).
type PresentationDataValue struct {
	PresentationContextID byte
	Command                bool
	Last                    bool
	Data                    []byte
}

func EncodePDataTF(values []PresentationDataValue) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		var item bytes.Buffer
		item.WriteByte(v.PresentationContextID)
		flags := byte(0)
		if v.Command {
			flags |= 0x01
		}
		if v.Last {
			flags |= 0x02
		}
		item.WriteByte(flags)
		item.Write(v.Data)

		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(item.Len()))
		buf.Write(l[:])
		buf.Write(item.Bytes())
	}
	return buf.Bytes()
}

// DecodePDataTF parses a P-DATA-TF PDU payload into its presentation
// data values.
func DecodePDataTF(payload []byte) ([]PresentationDataValue, error) {
	var values []PresentationDataValue
	for len(payload) >= 4 {
		itemLen := binary.BigEndian.Uint32(payload[0:4])
		if len(payload) < int(4+itemLen) || itemLen < 2 {
			return nil, fmt.Errorf("pdu: truncated presentation-data-value item")
		}
		body := payload[4 : 4+itemLen]
		pcID := body[0]
		flags := body[1]
		values = append(values, PresentationDataValue{
			PresentationContextID: pcID,
			Command:                flags&0x01 != 0,
			Last:                    flags&0x02 != 0,
			Data:                    body[2:],
		})
		payload = payload[4+itemLen:]
	}
	return values, nil
}
