package results

import (
	"fmt"
	"sync"
)

// Ledger accumulates the results, informational notes and errors of one
// test case run. Entries are only ever appended. A Ledger is safe for
// concurrent use.
type Ledger struct {
	name string

	mu      sync.Mutex
	records []Record
	infos   []string
	errors  []string
}

// NewLedger creates an empty ledger for the named test case.
func NewLedger(name string) *Ledger {
	return &Ledger{name: name}
}

// Name returns the test case name.
func (l *Ledger) Name() string {
	return l.name
}

// AddResult appends a record.
func (l *Ledger) AddResult(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

// AddInfo appends an informational note rendered as "name: value".
func (l *Ledger) AddInfo(name, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf("%s: %s", name, value))
}

// AddError appends an error note rendered as "name: occurrence - message".
func (l *Ledger) AddError(name, occurrence string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf("%s: %s - %v", name, occurrence, err))
}

// Records returns a copy of the records in append order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// Infos returns a copy of the informational notes in append order.
func (l *Ledger) Infos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.infos...)
}

// Errors returns a copy of the error notes in append order.
func (l *Ledger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// Summary counts the ledger's records by status.
type Summary struct {
	Name     string `json:"name"`
	Passed   int    `json:"passed"`
	Warnings int    `json:"warnings"`
	Failed   int    `json:"failed"`
	Errors   int    `json:"errors"`
}

// OK reports whether nothing failed and no error was recorded.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errors == 0
}

// Summary returns the record counts of the ledger.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{Name: l.name, Errors: len(l.errors)}
	for _, r := range l.records {
		switch r.Status() {
		case StatusPassed:
			s.Passed++
		case StatusPassedWithWarning:
			s.Warnings++
		default:
			s.Failed++
		}
	}
	return s
}

// Failed reports whether any record failed or any error was recorded.
func (l *Ledger) Failed() bool {
	return !l.Summary().OK()
}
