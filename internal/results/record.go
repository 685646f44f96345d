package results

// Status is the classification of one ResultRecord.
type Status int

const (
	StatusFailed Status = iota
	StatusPassedWithWarning
	StatusPassed
)

// String returns the status string used in reports and by tools.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusPassedWithWarning:
		return "passed-with-warning"
	default:
		return "failed"
	}
}

// Label returns the human readable label shown in rendered ledgers.
func (s Status) Label() string {
	switch s {
	case StatusPassed:
		return "Test Passed"
	case StatusPassedWithWarning:
		return "Test Passed with Warnings"
	default:
		return "Test Failed"
	}
}

// Record compares an expected against a received count for one named check.
type Record struct {
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Received int    `json:"received"`
	Warning  bool   `json:"warning"`
}

// Passed reports whether both counts are non-zero and equal.
func (r Record) Passed() bool {
	return r.Expected != 0 && r.Received != 0 && r.Expected == r.Received
}

// Status classifies the record.
func (r Record) Status() Status {
	switch {
	case !r.Passed():
		return StatusFailed
	case r.Warning:
		return StatusPassedWithWarning
	default:
		return StatusPassed
	}
}
