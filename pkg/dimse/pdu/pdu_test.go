package pdu

import (
	"bytes"
	"testing"
)

func TestAssociateRQRoundTrip(t *testing.T) {
	rq := AssociateRQ{
		CalledAETitle:  "CALLED_AE",
		CallingAETitle: "CALLING_AE",
		PresentationContexts: []PresentationContextRQ{
			{ID: 1, AbstractSyntax: "1.2.840.10008.1.1", TransferSyntaxes: []string{"1.2.840.10008.1.2", "1.2.840.10008.1.2.1"}},
		},
		MaxPDULength:           16384,
		ImplementationClassUID: "1.2.3.4",
		ImplementationVersion:  "TESTVER",
	}

	encoded := EncodeAssociateRQ(rq)
	decoded, err := DecodeAssociateRQ(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.CalledAETitle != rq.CalledAETitle {
		t.Errorf("CalledAETitle = %q, want %q", decoded.CalledAETitle, rq.CalledAETitle)
	}
	if decoded.CallingAETitle != rq.CallingAETitle {
		t.Errorf("CallingAETitle = %q, want %q", decoded.CallingAETitle, rq.CallingAETitle)
	}
	if decoded.ApplicationContextName != DefaultApplicationContextName {
		t.Errorf("ApplicationContextName = %q, want default %q", decoded.ApplicationContextName, DefaultApplicationContextName)
	}
	if len(decoded.PresentationContexts) != 1 {
		t.Fatalf("expected 1 presentation context, got %d", len(decoded.PresentationContexts))
	}
	pc := decoded.PresentationContexts[0]
	if pc.ID != 1 || pc.AbstractSyntax != "1.2.840.10008.1.1" {
		t.Errorf("unexpected presentation context: %+v", pc)
	}
	if len(pc.TransferSyntaxes) != 2 {
		t.Fatalf("expected 2 transfer syntaxes, got %d", len(pc.TransferSyntaxes))
	}
	if decoded.MaxPDULength != 16384 {
		t.Errorf("MaxPDULength = %d, want 16384", decoded.MaxPDULength)
	}
	if decoded.ImplementationClassUID != "1.2.3.4" {
		t.Errorf("ImplementationClassUID = %q, want %q", decoded.ImplementationClassUID, "1.2.3.4")
	}
}

func TestAssociateACRoundTrip(t *testing.T) {
	ac := AssociateAC{
		CalledAETitle:  "CALLED_AE",
		CallingAETitle: "CALLING_AE",
		PresentationContexts: []PresentationContextAC{
			{ID: 1, Result: 0, TransferSyntax: "1.2.840.10008.1.2.1"},
			{ID: 3, Result: 3, TransferSyntax: ""},
		},
		MaxPDULength:           16384,
		ImplementationClassUID: "1.2.3.4",
	}

	decoded, err := DecodeAssociateAC(EncodeAssociateAC(ac))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded.PresentationContexts) != 2 {
		t.Fatalf("expected 2 presentation contexts, got %d", len(decoded.PresentationContexts))
	}
	if decoded.PresentationContexts[0].TransferSyntax != "1.2.840.10008.1.2.1" {
		t.Errorf("unexpected transfer syntax: %q", decoded.PresentationContexts[0].TransferSyntax)
	}
	if decoded.PresentationContexts[1].Result != 3 {
		t.Errorf("Result = %d, want 3", decoded.PresentationContexts[1].Result)
	}
}

func TestAssociateRJRoundTrip(t *testing.T) {
	rj := AssociateRJ{Result: 1, Source: 2, Reason: 3}
	decoded, err := DecodeAssociateRJ(EncodeAssociateRJ(rj))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != rj {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, rj)
	}
}

func TestAbortRoundTrip(t *testing.T) {
	a := Abort{Source: 2, Reason: 0}
	decoded, err := DecodeAbort(EncodeAbort(a))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != a {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, a)
	}
}

func TestPDataTFRoundTrip(t *testing.T) {
	values := []PresentationDataValue{
		{PresentationContextID: 1, Command: true, Last: true, Data: []byte{0x01, 0x02, 0x03}},
		{PresentationContextID: 1, Command: false, Last: false, Data: []byte{0xAA, 0xBB}},
	}

	decoded, err := DecodePDataTF(EncodePDataTF(values))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 values, got %d", len(decoded))
	}
	if !decoded[0].Command || !decoded[0].Last {
		t.Errorf("expected first value flags Command=true Last=true, got %+v", decoded[0])
	}
	if decoded[1].Command || decoded[1].Last {
		t.Errorf("expected second value flags Command=false Last=false, got %+v", decoded[1])
	}
	if !bytes.Equal(decoded[0].Data, values[0].Data) {
		t.Errorf("Data mismatch for value 0: got %v, want %v", decoded[0].Data, values[0].Data)
	}
	if !bytes.Equal(decoded[1].Data, values[1].Data) {
		t.Errorf("Data mismatch for value 1: got %v, want %v", decoded[1].Data, values[1].Data)
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := WriteFrame(&buf, TypePDataTF, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	typ, got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if typ != TypePDataTF {
		t.Errorf("Type = %v, want %v", typ, TypePDataTF)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
}
