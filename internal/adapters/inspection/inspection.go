// Package inspection keeps a human-readable trace of every planned group:
// the records that went in, the events they were read as and the actions
// that came out. Traces are written as a multi-document YAML stream.
package inspection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/internal/domain/events"
	"github.com/okian/dealsync/internal/domain/ignored"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/domain/timeline"
	"github.com/okian/dealsync/pkg/logger"
	"gopkg.in/yaml.v3"
)

// RecordRow is the abbreviated form of an input record.
type RecordRow struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"`
	Date    string `yaml:"date"`
	Type    string `yaml:"type,omitempty"`
	Tier    int    `yaml:"tier"`
	Hosting string `yaml:"hosting"`
	Amount  string `yaml:"amount,omitempty"`
}

// EventRow is the abbreviated form of an event.
type EventRow struct {
	Kind    string   `yaml:"kind"`
	Date    string   `yaml:"date"`
	Records []string `yaml:"records,flow"`
	Tier    int      `yaml:"tier,omitempty"`
	Amount  string   `yaml:"amount,omitempty"`
}

// ActionRow is the abbreviated form of a planned action.
type ActionRow struct {
	Kind    string   `yaml:"kind"`
	Deal    string   `yaml:"deal,omitempty"`
	Trigger string   `yaml:"trigger"`
	Date    string   `yaml:"date"`
	Stage   string   `yaml:"stage"`
	Amount  string   `yaml:"amount"`
	Changes []string `yaml:"changes,flow,omitempty"`
}

// IgnoredRow is one excluded record.
type IgnoredRow struct {
	ID      string `yaml:"id"`
	Reason  string `yaml:"reason"`
	Details string `yaml:"details,omitempty"`
	Amount  string `yaml:"amount"`
}

// Trace is everything known about one group after planning.
type Trace struct {
	GroupID string       `yaml:"group"`
	Records []RecordRow  `yaml:"records"`
	Events  []EventRow   `yaml:"events"`
	Actions []ActionRow  `yaml:"actions"`
	Ignored []IgnoredRow `yaml:"ignored,omitempty"`
	Error   string       `yaml:"error,omitempty"`
}

// Logger collects traces. Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	traces  []Trace
	ignored [][]IgnoredRow
	log     logger.Logger
}

// New creates an empty inspection logger.
func New(opts ...Option) *Logger {
	l := &Logger{}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Named("inspection")
	}
	return l
}

// Record appends the trace of one group with its records in timeline order.
// err is the planning failure, if any.
func (l *Logger) Record(ctx context.Context, a *model.Arena, group string, set model.RelatedLicenseSet,
	evs []events.Event, acts []actions.Action, ig *ignored.List, err error) {
	t := Trace{GroupID: group}
	for _, e := range timeline.Build(a, set) {
		if !e.Derived() {
			t.Records = append(t.Records, AbbrRecord(a, e.Record()))
		}
	}
	for _, e := range evs {
		t.Events = append(t.Events, AbbrEvent(a, e))
	}
	for _, act := range acts {
		t.Actions = append(t.Actions, AbbrAction(act))
	}
	t.Ignored = abbrIgnored(ig.Entries())
	if err != nil {
		t.Error = err.Error()
	}

	l.mu.Lock()
	l.traces = append(l.traces, t)
	l.mu.Unlock()

	l.log.Debug(ctx, "group traced",
		logger.String("group", group),
		logger.Int("events", len(t.Events)),
		logger.Int("actions", len(t.Actions)))
}

// SaveIgnored keeps the batch's ignored lists, one per group in merge order.
func (l *Logger) SaveIgnored(lists [][]ignored.Entry) {
	rows := make([][]IgnoredRow, 0, len(lists))
	for _, entries := range lists {
		rows = append(rows, abbrIgnored(entries))
	}
	l.mu.Lock()
	l.ignored = rows
	l.mu.Unlock()
}

// Traces returns a copy of the recorded traces.
func (l *Logger) Traces() []Trace {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trace(nil), l.traces...)
}

// WriteTo writes one YAML document per trace followed by the saved ignored
// lists, if any.
func (l *Logger) WriteTo(w io.Writer) (int64, error) {
	l.mu.Lock()
	traces := append([]Trace(nil), l.traces...)
	saved := l.ignored
	l.mu.Unlock()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for i := range traces {
		if err := enc.Encode(&traces[i]); err != nil {
			return 0, fmt.Errorf("encode trace %s: %w", traces[i].GroupID, err)
		}
	}
	if len(saved) > 0 {
		doc := struct {
			Ignored [][]IgnoredRow `yaml:"ignored"`
		}{saved}
		if err := enc.Encode(&doc); err != nil {
			return 0, fmt.Errorf("encode ignored lists: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("close yaml encoder: %w", err)
	}
	return buf.WriteTo(w)
}

// WriteFile writes the trace stream to path.
func (l *Logger) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create inspection file: %w", err)
	}
	if _, err := l.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close inspection file: %w", err)
	}
	return nil
}

// AbbrRecord renders an input record.
func AbbrRecord(a *model.Arena, ref model.RecordRef) RecordRow {
	if ref.Kind == model.KindTransaction {
		t := a.Transaction(model.TransactionID(ref.Index))
		return RecordRow{
			ID:      t.SourceID,
			Kind:    ref.Kind.String(),
			Date:    t.SaleDate.Format(time.DateOnly),
			Type:    t.SaleType.String(),
			Tier:    t.Tier,
			Hosting: t.Hosting.String(),
			Amount:  t.VendorAmount.StringFixed(2),
		}
	}
	lic := a.License(model.LicenseID(ref.Index))
	row := RecordRow{
		ID:      lic.SourceID,
		Kind:    ref.Kind.String(),
		Date:    lic.MaintenanceStart.Format(time.DateOnly),
		Tier:    lic.Tier,
		Hosting: lic.Hosting.String(),
	}
	switch {
	case lic.Evaluation:
		row.Type = "evaluation"
	case lic.Sandbox:
		row.Type = "sandbox"
	}
	return row
}

// AbbrEvent renders an event with its trigger records named by source id.
func AbbrEvent(a *model.Arena, e events.Event) EventRow {
	row := EventRow{
		Kind: e.Kind.String(),
		Date: e.Date.Format(time.DateOnly),
		Tier: e.Tier,
	}
	for _, ref := range e.Records {
		row.Records = append(row.Records, a.SourceID(ref))
	}
	if len(row.Records) == 0 {
		row.Records = []string{a.License(e.License).SourceID}
	}
	if !e.Amount.IsZero() {
		row.Amount = e.Amount.StringFixed(2)
	}
	return row
}

// AbbrAction renders an action.
func AbbrAction(act actions.Action) ActionRow {
	return ActionRow{
		Kind:    act.Kind.String(),
		Deal:    string(act.Deal),
		Trigger: act.Trigger.String(),
		Date:    act.Date.Format(time.DateOnly),
		Stage:   string(act.Properties.Stage),
		Amount:  act.Properties.Amount.StringFixed(2),
		Changes: act.Changes,
	}
}

func abbrIgnored(entries []ignored.Entry) []IgnoredRow {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]IgnoredRow, len(entries))
	for i, e := range entries {
		rows[i] = IgnoredRow{ID: e.SourceID, Reason: e.Reason, Details: e.Details, Amount: e.Amount.StringFixed(2)}
	}
	return rows
}
