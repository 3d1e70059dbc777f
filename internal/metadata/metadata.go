// Package metadata writes the XML run log kept next to tool outputs: who
// ran the tool, where, when, with which parameters, and what it produced.
package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/timeutil"
)

const (
	metadataType    = "SFR Processing"
	metadataVersion = "0.3"
	scriptVersion   = "0.3"
)

// Message levels.
const (
	Info    = "Info"
	Warning = "Warning"
	Error   = "Error"
)

// Run status values.
const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"
)

// Writer collects runs and writes them to a metadata document.
type Writer struct {
	Tool       string
	Version    string
	ComputerID string
	Operator   string

	clock timeutil.Clock
	mu    sync.Mutex
	runs  []*Run
}

// NewWriter creates a writer. An empty operator is replaced by the current
// OS user.
func NewWriter(tool, version, operator string, clock timeutil.Clock) *Writer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	if operator == "" {
		if u, err := user.Current(); err == nil {
			operator = u.Username
		} else {
			operator = "USERNAME not found"
		}
	}
	return &Writer{Tool: tool, Version: version, ComputerID: host, Operator: operator, clock: clock}
}

// Run is one tool invocation. Its methods are safe for concurrent use.
type Run struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	start      time.Time
	stop       time.Time
	status     string
	parameters []nameValue
	outputs    []nameValue
	messages   []message
	results    []nameValue
}

// Start begins a new run stamped with the current time.
func (w *Writer) Start() *Run {
	return &Run{clock: w.clock, start: w.clock.Now()}
}

// Finish stamps the stop time and records the run with the given status.
func (w *Writer) Finish(r *Run, status string) {
	r.mu.Lock()
	r.stop = r.clock.Now()
	r.status = status
	r.mu.Unlock()

	w.mu.Lock()
	w.runs = append(w.runs, r)
	w.mu.Unlock()
}

// Runs returns the finished runs.
func (w *Writer) Runs() []*Run {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Run(nil), w.runs...)
}

func (r *Run) AddParameter(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parameters = append(r.parameters, nameValue{Name: name, Value: fmt.Sprint(value)})
}

func (r *Run) AddOutput(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, nameValue{Name: name, Value: path})
}

func (r *Run) AddMessage(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message{Level: level, Text: text})
}

// AddResult records a named result. The name becomes an element name, so
// it must be a valid XML name.
func (r *Run) AddResult(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, nameValue{Name: name, Value: fmt.Sprint(value)})
}

// Messages returns the messages at the given level.
func (r *Run) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.messages {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}
	return out
}

// Duration is the processing time of a finished run.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop.Sub(r.start)
}

type nameValue struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

type message struct {
	Level string `xml:"Level,attr"`
	Text  string `xml:",chardata"`
}

type result struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type runXML struct {
	Status     string      `xml:"status,attr"`
	TimeStart  string      `xml:"TimeStart"`
	TimeStop   string      `xml:"TimeStop"`
	Total      string      `xml:"TotalProcessingTime"`
	Parameters []nameValue `xml:"Parameters>Parameter"`
	Outputs    []nameValue `xml:"Outputs>Output"`
	Messages   []message   `xml:"Messages>Message"`
	Results    struct {
		Items []result `xml:",any"`
	} `xml:"Results"`
}

type document struct {
	XMLName         xml.Name `xml:"Metadata"`
	Type            string   `xml:"type,attr"`
	MetadataVersion string   `xml:"metadata_version,attr"`
	ScriptVersion   string   `xml:"script_version,attr"`
	Tool            struct {
		Name    string `xml:"Name"`
		Version string `xml:"Version"`
	} `xml:"Tool"`
	Processing struct {
		ComputerID string   `xml:"ComputerID"`
		Operator   string   `xml:"Operator"`
		Runs       []runXML `xml:"Runs>Run"`
	} `xml:"Processing"`
}

func (w *Writer) document() document {
	doc := document{Type: metadataType, MetadataVersion: metadataVersion, ScriptVersion: scriptVersion}
	doc.Tool.Name = w.Tool
	doc.Tool.Version = w.Version
	doc.Processing.ComputerID = w.ComputerID
	doc.Processing.Operator = w.Operator
	for _, r := range w.Runs() {
		r.mu.Lock()
		rx := runXML{
			Status:     r.status,
			TimeStart:  timeutil.Format(r.start),
			TimeStop:   timeutil.Format(r.stop),
			Total:      timeutil.FormatDuration(r.stop.Sub(r.start)),
			Parameters: append([]nameValue(nil), r.parameters...),
			Outputs:    append([]nameValue(nil), r.outputs...),
			Messages:   append([]message(nil), r.messages...),
		}
		for _, res := range r.results {
			rx.Results.Items = append(rx.Results.Items, result{XMLName: xml.Name{Local: res.Name}, Value: res.Value})
		}
		r.mu.Unlock()
		doc.Processing.Runs = append(doc.Processing.Runs, rx)
	}
	return doc
}

// Write saves every finished run as indented XML.
func (w *Writer) Write(fsys fsutil.FileSystem, path string) error {
	data, err := xml.MarshalIndent(w.document(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := fsys.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
