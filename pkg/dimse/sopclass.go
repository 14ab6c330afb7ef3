package dimse

// SOP Class and transfer syntax UIDs, and the DIMSE command-field and
// status-code vocabularies. Values are DICOM standard constants (PS3.6
// Annex A, PS3.7 Annex C), not implementation-specific; reproduced
// from the same tables yasushi-saito-go-netdicom/sopclass and
// giesekow-go-netdicom/dimse carry.

// QueryModel identifies a Query/Retrieve information model.
type QueryModel int

const (
	QueryModelWorklist QueryModel = iota
	QueryModelPatientRoot
	QueryModelStudyRoot
	QueryModelPatientStudyOnly
)

func (q QueryModel) String() string {
	switch q {
	case QueryModelWorklist:
		return "W"
	case QueryModelPatientRoot:
		return "P"
	case QueryModelStudyRoot:
		return "S"
	case QueryModelPatientStudyOnly:
		return "O"
	default:
		return "?"
	}
}

// ParseQueryModel maps the single-letter model codes spec'd for the
// SCU helpers onto QueryModel. Unknown letters report ok=false so
// callers can surface ErrInvalidConfiguration.
func ParseQueryModel(s string) (QueryModel, bool) {
	switch s {
	case "W":
		return QueryModelWorklist, true
	case "P":
		return QueryModelPatientRoot, true
	case "S":
		return QueryModelStudyRoot, true
	case "O":
		return QueryModelPatientStudyOnly, true
	default:
		return 0, false
	}
}

const (
	VerificationSOPClass = "1.2.840.10008.1.1"

	PatientRootFindSOPClass           = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootMoveSOPClass           = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootGetSOPClass            = "1.2.840.10008.5.1.4.1.2.1.3"
	StudyRootFindSOPClass             = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootMoveSOPClass             = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootGetSOPClass              = "1.2.840.10008.5.1.4.1.2.2.3"
	PatientStudyOnlyFindSOPClass      = "1.2.840.10008.5.1.4.1.2.3.1"
	PatientStudyOnlyMoveSOPClass      = "1.2.840.10008.5.1.4.1.2.3.2"
	PatientStudyOnlyGetSOPClass       = "1.2.840.10008.5.1.4.1.2.3.3"
	ModalityWorklistFindSOPClass      = "1.2.840.10008.5.1.4.31"
)

// FindSOPClassUID returns the C-FIND SOP class UID for a query model.
// Worklist only supports Find/Get per spec.
func FindSOPClassUID(q QueryModel) (string, bool) {
	switch q {
	case QueryModelWorklist:
		return ModalityWorklistFindSOPClass, true
	case QueryModelPatientRoot:
		return PatientRootFindSOPClass, true
	case QueryModelStudyRoot:
		return StudyRootFindSOPClass, true
	case QueryModelPatientStudyOnly:
		return PatientStudyOnlyFindSOPClass, true
	default:
		return "", false
	}
}

// MoveSOPClassUID returns the C-MOVE SOP class UID for a query model.
// Worklist has no move model.
func MoveSOPClassUID(q QueryModel) (string, bool) {
	switch q {
	case QueryModelPatientRoot:
		return PatientRootMoveSOPClass, true
	case QueryModelStudyRoot:
		return StudyRootMoveSOPClass, true
	case QueryModelPatientStudyOnly:
		return PatientStudyOnlyMoveSOPClass, true
	default:
		return "", false
	}
}

// GetSOPClassUID returns the C-GET SOP class UID for a query model.
func GetSOPClassUID(q QueryModel) (string, bool) {
	switch q {
	case QueryModelWorklist:
		// PS3.4 does not define a worklist C-GET model; callers that
		// need C-GET/worklist get invalid-argument from the helper.
		return "", false
	case QueryModelPatientRoot:
		return PatientRootGetSOPClass, true
	case QueryModelStudyRoot:
		return StudyRootGetSOPClass, true
	case QueryModelPatientStudyOnly:
		return PatientStudyOnlyGetSOPClass, true
	default:
		return "", false
	}
}

// Transfer syntax UIDs.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
	JPEGBaseline           = "1.2.840.10008.1.2.4.50"
	JPEGLosslessSV1        = "1.2.840.10008.1.2.4.70"
	JPEG2000Lossless       = "1.2.840.10008.1.2.4.90"
	JPEG2000               = "1.2.840.10008.1.2.4.91"
	RLELossless            = "1.2.840.10008.1.2.5"
)

// DefaultTransferSyntaxes is the standard baseline offering, preferred
// (acceptor-ordered) explicit syntaxes first, implicit last as the
// universal fallback.
var DefaultTransferSyntaxes = []string{
	ExplicitVRLittleEndian,
	ImplicitVRLittleEndian,
}

// DIMSE command field values, P3.7 Annex E.
const (
	CommandFieldCStoreRQ  uint16 = 0x0001
	CommandFieldCStoreRSP uint16 = 0x8001
	CommandFieldCGetRQ    uint16 = 0x0010
	CommandFieldCGetRSP   uint16 = 0x8010
	CommandFieldCFindRQ   uint16 = 0x0020
	CommandFieldCFindRSP  uint16 = 0x8020
	CommandFieldCMoveRQ   uint16 = 0x0021
	CommandFieldCMoveRSP  uint16 = 0x8021
	CommandFieldCEchoRQ   uint16 = 0x0030
	CommandFieldCEchoRSP  uint16 = 0x8030
	CommandFieldCCancelRQ uint16 = 0x0FFF
)

// DIMSE status codes, P3.7 Annex C.
const (
	StatusSuccess                     uint16 = 0x0000
	StatusPending                     uint16 = 0xFF00
	StatusCancel                      uint16 = 0xFE00
	StatusCannotUnderstand            uint16 = 0xC000
	StatusOutOfResources              uint16 = 0xA700
	StatusMoveDestinationUnknown      uint16 = 0xA801
	StatusDataSetDoesNotMatchSOPClass uint16 = 0xA900
	StatusSOPClassNotSupported        uint16 = 0x0112
	StatusUnrecognizedOperation       uint16 = 0x0211
)

// commandSet tags used by this engine to populate DIMSEMessage.CommandSet
// (group 0000 elements, P3.7 E.1). Kept as uint32 group<<16|element keys
// so the supervisor can route without depending on a VR codec.
const (
	TagCommandGroupLength          uint32 = 0x00000000
	TagAffectedSOPClassUID         uint32 = 0x00000002
	TagCommandField                uint32 = 0x00000100
	TagMessageID                   uint32 = 0x00000110
	TagMessageIDBeingRespondedTo   uint32 = 0x00000120
	TagPriority                    uint32 = 0x00000700
	TagCommandDataSetType          uint32 = 0x00000800
	TagStatus                      uint32 = 0x00000900
	TagAffectedSOPInstanceUID      uint32 = 0x00001000
	TagMoveDestination             uint32 = 0x00000600
	TagNumberOfRemainingSuboperations uint32 = 0x00001020
	TagNumberOfCompletedSuboperations uint32 = 0x00001021
	TagNumberOfFailedSuboperations    uint32 = 0x00001022
	TagNumberOfWarningSuboperations   uint32 = 0x00001023
)
