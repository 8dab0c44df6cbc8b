package externalapi

// PushResult is the outcome of pushing a block into the chain
type PushResult int

// PushResult values. Negative results are failures.
const (
	PushResultErrOrphan    PushResult = -2
	PushResultErrInvalid   PushResult = -1
	PushResultOKKnown      PushResult = 0
	PushResultOKExtended   PushResult = 1
	PushResultOKRebranched PushResult = 2
	PushResultOKForked     PushResult = 3
)

var pushResultStrings = map[PushResult]string{
	PushResultErrOrphan:    "ERR_ORPHAN",
	PushResultErrInvalid:   "ERR_INVALID",
	PushResultOKKnown:      "OK_KNOWN",
	PushResultOKExtended:   "OK_EXTENDED",
	PushResultOKRebranched: "OK_REBRANCHED",
	PushResultOKForked:     "OK_FORKED",
}

func (r PushResult) String() string {
	if s, ok := pushResultStrings[r]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsOK returns whether the block was known or stored
func (r PushResult) IsOK() bool {
	return r >= 0
}
