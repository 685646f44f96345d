package job

import (
	"encoding/json"
	"fmt"
	"os"
)

// SelectionType tells whether a selection's values are fixed by the author
// or resolved against the engine at run time.
type SelectionType string

const (
	SelectionStatic  SelectionType = "static"
	SelectionDynamic SelectionType = "dynamic"
)

// Selection narrows field Name to Values.
type Selection struct {
	Type   SelectionType `json:"type"`
	Name   string        `json:"name"`
	Values []string      `json:"values,omitempty"`
}

// Connection points a report at an engine app.
type Connection struct {
	App string `json:"app"`
}

// Template is the report template and its selections.
type Template struct {
	FileName     string      `json:"fileName"`
	OutputFormat string      `json:"outputFormat,omitempty"`
	Selections   []Selection `json:"selections,omitempty"`
}

// Report is one report definition of a task.
type Report struct {
	Name        string       `json:"name"`
	Connections []Connection `json:"connections,omitempty"`
	Template    Template     `json:"template"`
}

// Task groups reports that share connections.
type Task struct {
	Connections []Connection `json:"connections,omitempty"`
	Reports     []Report     `json:"reports"`
}

// Description is a job description. Raw keeps the original document so
// fields the harness does not model are submitted unchanged.
type Description struct {
	Name  string          `json:"-"`
	Raw   json.RawMessage `json:"-"`
	Tasks []Task          `json:"tasks"`
}

// Parse decodes a job description.
func Parse(name string, data []byte) (*Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid job description %s: %w", name, err)
	}
	d.Name = name
	d.Raw = append(json.RawMessage(nil), data...)
	return &d, nil
}

// Load reads and parses the job description at path.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job description: %w", err)
	}
	return Parse(path, data)
}

// ReportCount is the number of report definitions under all tasks.
func (d *Description) ReportCount() int {
	n := 0
	for _, t := range d.Tasks {
		n += len(t.Reports)
	}
	return n
}

// WithUploadRef returns the raw description with "uploadGuids" set to ref.
func (d *Description) WithUploadRef(ref string) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(d.Raw, &doc); err != nil {
		return nil, fmt.Errorf("job description is not an object: %w", err)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	guids, err := json.Marshal([]string{ref})
	if err != nil {
		return nil, err
	}
	doc["uploadGuids"] = guids
	return json.Marshal(doc)
}

// app returns the first app of the report, falling back to its task's.
func (r Report) app(task Task) string {
	for _, c := range r.Connections {
		if c.App != "" {
			return c.App
		}
	}
	for _, c := range task.Connections {
		if c.App != "" {
			return c.App
		}
	}
	return ""
}

// dynamic returns the report's dynamic selection, if any.
func (r Report) dynamic() (Selection, bool) {
	for _, s := range r.Template.Selections {
		if s.Type == SelectionDynamic {
			return s, true
		}
	}
	return Selection{}, false
}
