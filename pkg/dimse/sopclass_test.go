package dimse

import "testing"

func TestParseQueryModel(t *testing.T) {
	cases := []struct {
		in   string
		want QueryModel
		ok   bool
	}{
		{"W", QueryModelWorklist, true},
		{"P", QueryModelPatientRoot, true},
		{"S", QueryModelStudyRoot, true},
		{"O", QueryModelPatientStudyOnly, true},
		{"X", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseQueryModel(c.in)
		if ok != c.ok {
			t.Errorf("ParseQueryModel(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseQueryModel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestQueryModelRoundTripsThroughString(t *testing.T) {
	models := []QueryModel{QueryModelWorklist, QueryModelPatientRoot, QueryModelStudyRoot, QueryModelPatientStudyOnly}
	for _, m := range models {
		parsed, ok := ParseQueryModel(m.String())
		if !ok {
			t.Fatalf("ParseQueryModel(%q) not ok", m.String())
		}
		if parsed != m {
			t.Fatalf("round-trip mismatch: %v -> %q -> %v", m, m.String(), parsed)
		}
	}
}

func TestMoveSOPClassUIDHasNoWorklistModel(t *testing.T) {
	if _, ok := MoveSOPClassUID(QueryModelWorklist); ok {
		t.Errorf("expected no C-MOVE SOP class for the worklist model")
	}
}

func TestGetSOPClassUIDHasNoWorklistModel(t *testing.T) {
	if _, ok := GetSOPClassUID(QueryModelWorklist); ok {
		t.Errorf("expected no C-GET SOP class for the worklist model")
	}
}

func TestFindSOPClassUIDCoversEveryModel(t *testing.T) {
	for _, m := range []QueryModel{QueryModelWorklist, QueryModelPatientRoot, QueryModelStudyRoot, QueryModelPatientStudyOnly} {
		if _, ok := FindSOPClassUID(m); !ok {
			t.Errorf("expected a C-FIND SOP class for model %v", m)
		}
	}
}
