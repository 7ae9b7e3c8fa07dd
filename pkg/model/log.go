package model

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

// LogDocument is the YAML form of an event log.
type LogDocument struct {
	Version string       `yaml:"version"`
	Name    string       `yaml:"name,omitempty"`
	Traces  []TraceEntry `yaml:"traces"`
}

// TraceEntry is one variant. A missing count means one occurrence.
type TraceEntry struct {
	Labels []string `yaml:"labels,flow"`
	Count  int      `yaml:"count,omitempty"`
}

// DecodeLog reads an event-log document.
func DecodeLog(r io.Reader) (*LogDocument, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	var doc LogDocument
	if err := decode(data, logSchema, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadLog reads the event-log document at path. It also returns the
// document name.
func LoadLog(path string) (*trace.EventLog, string, error) {
	var (
		log  *trace.EventLog
		name string
	)
	err := readFile(path, func(data []byte) error {
		var doc LogDocument
		if err := decode(data, logSchema, &doc); err != nil {
			return err
		}
		l, err := doc.EventLog()
		log, name = l, doc.Name
		return err
	})
	return log, name, err
}

// EventLog builds the log. Entries with the same labels accumulate.
func (d *LogDocument) EventLog() (*trace.EventLog, error) {
	log := trace.NewEventLog()
	for i, e := range d.Traces {
		count := e.Count
		if count == 0 {
			count = 1
		}
		if err := log.Add(trace.Normalized(e.Labels...), count); err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
	}
	return log, nil
}

// NewLogDocument describes log as a document in variant order.
func NewLogDocument(name string, log *trace.EventLog) *LogDocument {
	doc := &LogDocument{Version: CurrentVersion, Name: name, Traces: []TraceEntry{}}
	for t, n := range log.Variants() {
		doc.Traces = append(doc.Traces, TraceEntry{Labels: t.Labels(), Count: n})
	}
	return doc
}

// EncodeLog writes log as a YAML document.
func EncodeLog(w io.Writer, name string, log *trace.EventLog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewLogDocument(name, log)); err != nil {
		return fmt.Errorf("model: encode log: %w", err)
	}
	return enc.Close()
}
