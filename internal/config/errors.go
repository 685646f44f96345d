package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ErrorKind classifies a ConfigurationError.
type ErrorKind string

const (
	KindIO         ErrorKind = "io"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
)

// ConfigurationError is a problem with the configuration file or with one of
// its values.
type ConfigurationError struct {
	FilePath    string
	FileName    string
	Kind        ErrorKind
	Field       string
	Message     string
	Suggestions []string
	Cause       error
}

func (ce ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("[" + string(ce.Kind) + "] ")
	if ce.FileName != "" {
		b.WriteString(ce.FileName + ": ")
	}
	if ce.Field != "" {
		b.WriteString(ce.Field + " ")
	}
	b.WriteString(ce.Message)
	if ce.Cause != nil {
		fmt.Fprintf(&b, ": %v", ce.Cause)
	}
	return b.String()
}

func (ce ConfigurationError) Unwrap() error {
	return ce.Cause
}

// describe renders the error over several indented lines for the CLI report.
func (ce ConfigurationError) describe() string {
	var b strings.Builder
	subject := ce.Field
	if subject == "" {
		subject = ce.FilePath
	}
	fmt.Fprintf(&b, "  %s: %s", subject, ce.Message)
	if ce.Cause != nil {
		fmt.Fprintf(&b, "\n      cause: %v", ce.Cause)
	}
	for _, s := range ce.Suggestions {
		fmt.Fprintf(&b, "\n      hint: %s", s)
	}
	return b.String()
}

// ConfigurationErrorCollection gathers every validation failure of one
// configuration so they can be reported together.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError
}

func (cec ConfigurationErrorCollection) Error() string {
	switch len(cec.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return cec.Errors[0].Error()
	default:
		return fmt.Sprintf("%d configuration errors: %s (and %d more)",
			len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
	}
}

func (cec *ConfigurationErrorCollection) HasErrors() bool { return len(cec.Errors) > 0 }

func (cec *ConfigurationErrorCollection) Count() int { return len(cec.Errors) }

// AddField records a validation failure for one configuration key.
func (cec *ConfigurationErrorCollection) AddField(field, message string, suggestions ...string) {
	cec.Errors = append(cec.Errors, ConfigurationError{
		Kind:        KindValidation,
		Field:       field,
		Message:     message,
		Suggestions: suggestions,
	})
}

// Report lists every error on its own line, hints indented below.
func (cec *ConfigurationErrorCollection) Report() string {
	lines := make([]string, 0, len(cec.Errors)+1)
	lines = append(lines, fmt.Sprintf("%d configuration problem(s):", len(cec.Errors)))
	for _, err := range cec.Errors {
		lines = append(lines, err.describe())
	}
	return strings.Join(lines, "\n")
}

// NewConfigurationError creates a configuration error for a file.
func NewConfigurationError(filePath string, kind ErrorKind, message string, cause error) ConfigurationError {
	return ConfigurationError{
		FilePath: filePath,
		FileName: filepath.Base(filePath),
		Kind:     kind,
		Message:  message,
		Cause:    cause,
	}
}
