package dimse

import "testing"

func TestCommandSetRoundTripUint16(t *testing.T) {
	cs := newCommandSet()
	cs.setUint16(TagCommandField, CommandFieldCEchoRQ)
	cs.setUint16(TagMessageID, 42)

	encoded := cs.encode()
	decoded, err := decodeCommandSet(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	cf, ok := decoded.getUint16(TagCommandField)
	if !ok || cf != CommandFieldCEchoRQ {
		t.Fatalf("expected command field %d, got %d (ok=%v)", CommandFieldCEchoRQ, cf, ok)
	}
	mid, ok := decoded.getUint16(TagMessageID)
	if !ok || mid != 42 {
		t.Fatalf("expected message id 42, got %d (ok=%v)", mid, ok)
	}
}

func TestCommandSetRoundTripString(t *testing.T) {
	cs := newCommandSet()
	cs.setString(TagAffectedSOPClassUID, VerificationSOPClass)

	decoded, err := decodeCommandSet(cs.encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	uid, ok := decoded.getString(TagAffectedSOPClassUID)
	if !ok || uid != VerificationSOPClass {
		t.Fatalf("expected %q, got %q (ok=%v)", VerificationSOPClass, uid, ok)
	}
}

func TestCommandSetOddLengthStringPadded(t *testing.T) {
	cs := newCommandSet()
	odd := "1.2.3" // 5 bytes, odd length
	cs.setString(TagAffectedSOPClassUID, odd)

	encoded := cs.encode()
	decoded, err := decodeCommandSet(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	uid, ok := decoded.getString(TagAffectedSOPClassUID)
	if !ok || uid != odd {
		t.Fatalf("expected trailing NUL padding stripped back to %q, got %q", odd, uid)
	}
}

func TestCommandSetPreservesInsertionOrder(t *testing.T) {
	cs := newCommandSet()
	cs.setUint16(TagCommandField, CommandFieldCFindRQ)
	cs.setString(TagAffectedSOPClassUID, StudyRootFindSOPClass)
	cs.setUint16(TagMessageID, 7)

	want := []uint32{TagCommandField, TagAffectedSOPClassUID, TagMessageID}
	if len(cs.order) != len(want) {
		t.Fatalf("expected %d tags in order, got %d", len(want), len(cs.order))
	}
	for i, tag := range want {
		if cs.order[i] != tag {
			t.Fatalf("order[%d] = 0x%08x, want 0x%08x", i, cs.order[i], tag)
		}
	}
}

func TestDecodeCommandSetTruncatedElement(t *testing.T) {
	// A well-formed 8-byte header claiming more value bytes than follow.
	data := []byte{0x00, 0x00, 0x00, 0x01, 0x04, 0x00, 0x00, 0x00}
	if _, err := decodeCommandSet(data); err == nil {
		t.Fatalf("expected error decoding truncated command element")
	}
}
