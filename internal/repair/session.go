package repair

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
)

// Schema is the validation contract a session checks edits against.
type Schema interface {
	Validate(instance any) error
	Template() string
}

// Outcome is the terminal result of a session. Saved is false on cancel; a
// saved outcome carries the text as written, the parsed record even when
// Check is not OK, and a nil Record when the text did not parse.
type Outcome struct {
	Saved  bool
	Text   string
	Record domain.Record
	Check  domain.Check
}

// Session holds the text under repair and its latest validation result.
type Session struct {
	schema Schema

	mu     sync.Mutex
	text   string
	record domain.Record
	check  domain.Check
}

// Draft renders candidate as editable text, or the schema template when
// there is no candidate.
func Draft(schema Schema, candidate domain.Record) string {
	if candidate != nil {
		if raw, err := candidate.Encode(); err == nil {
			return string(raw)
		}
	}
	return schema.Template()
}

// NewSession starts a session from draft.
func NewSession(schema Schema, draft string) *Session {
	s := &Session{schema: schema}
	s.Update(draft)
	return s
}

// Update replaces the current text and re-validates it. It is safe to call
// from an editor's watcher goroutine.
func (s *Session) Update(text string) domain.Check {
	record, check := s.evaluate(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.record = record
	s.check = check
	return check
}

// Text returns the current text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Check returns the latest validation result.
func (s *Session) Check() domain.Check {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check
}

// Save ends the session with the current record, valid or not.
func (s *Session) Save() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Outcome{Saved: true, Text: s.text, Record: s.record, Check: s.check}
}

// Cancel ends the session without a record.
func (s *Session) Cancel() Outcome {
	return Outcome{}
}

func (s *Session) evaluate(text string) (domain.Record, domain.Check) {
	record, err := domain.DecodeRecord([]byte(text))
	if err != nil {
		return nil, domain.Check{Status: domain.StatusParseInvalid, Err: err}
	}
	if err := s.schema.Validate(record); err != nil {
		return record, domain.Check{Status: domain.StatusInvalid, Err: err}
	}
	return record, domain.Check{Status: domain.StatusValid}
}

// Repairer runs repair sessions through an interactive editor.
type Repairer struct {
	editor ports.Editor
	logger *slog.Logger
}

// NewRepairer wires the editor used to present records.
func NewRepairer(editor ports.Editor, logger *slog.Logger) *Repairer {
	return &Repairer{editor: editor, logger: logger}
}

// Repair lets the operator correct draft (see Draft). Every edit is
// re-validated against schema while the editor is open.
func (r *Repairer) Repair(ctx context.Context, draft string, schema Schema) (Outcome, error) {
	if r.editor == nil {
		return Outcome{}, fmt.Errorf("repair editor is not configured")
	}

	session := NewSession(schema, draft)
	r.debug("repair session opened", "status", session.Check().Status.String())

	text, ok, err := r.editor.Edit(ctx, session.Text(), session.Update)
	if err != nil {
		return Outcome{}, fmt.Errorf("edit record: %w", err)
	}
	if !ok {
		r.debug("repair session cancelled")
		return session.Cancel(), nil
	}

	session.Update(text)
	out := session.Save()
	r.debug("repair session saved", "status", out.Check.Status.String())
	return out, nil
}

func (r *Repairer) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
