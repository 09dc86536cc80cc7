package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
	"IssueTriage/internal/repair"
	"IssueTriage/internal/schema"
)

// RecordRepairer runs the human-in-the-loop correction of one record.
type RecordRepairer interface {
	Repair(ctx context.Context, draft string, s repair.Schema) (repair.Outcome, error)
}

// Recorder observes pipeline outcomes (metrics).
type Recorder interface {
	PostOutcome(outcome domain.PostOutcome)
	Validation(ok bool)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.PostSource
	Store      ports.RecordStore
	Classifier *Classifier
	Schema     repair.Schema
	Repairer   RecordRepairer
	Operator   ports.Operator
	Notifier   ports.Notifier
	Recorder   Recorder
	Logger     *slog.Logger

	Categories         []string
	DiscussionMaxChars int
	// RepairEnabled allows asking the operator to fix invalid records.
	RepairEnabled bool
}

// Pipeline implements the classify-validate-repair-commit workflow.
type Pipeline struct {
	source     ports.PostSource
	store      ports.RecordStore
	classifier *Classifier
	schema     repair.Schema
	repairer   RecordRepairer
	operator   ports.Operator
	notifier   ports.Notifier
	recorder   Recorder
	logger     *slog.Logger

	categories         []string
	discussionMaxChars int
	repairEnabled      bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Pipeline{
		source:             deps.Source,
		store:              deps.Store,
		classifier:         deps.Classifier,
		schema:             deps.Schema,
		repairer:           deps.Repairer,
		operator:           deps.Operator,
		notifier:           deps.Notifier,
		recorder:           recorder,
		logger:             logger,
		categories:         deps.Categories,
		discussionMaxChars: deps.DiscussionMaxChars,
		repairEnabled:      deps.RepairEnabled,
	}
}

// Report lists post numbers by terminal state for one run.
type Report struct {
	Committed []int
	Repaired  []int
	Dropped   []int
	Skipped   []int
}

func (r *Report) add(num int, outcome domain.PostOutcome) {
	switch outcome {
	case domain.OutcomeCommitted:
		r.Committed = append(r.Committed, num)
	case domain.OutcomeRepaired:
		r.Repaired = append(r.Repaired, num)
	case domain.OutcomeDropped:
		r.Dropped = append(r.Dropped, num)
	case domain.OutcomeSkipped:
		r.Skipped = append(r.Skipped, num)
	}
}

// Empty reports whether the run touched no post.
func (r Report) Empty() bool {
	return len(r.Committed)+len(r.Repaired)+len(r.Dropped)+len(r.Skipped) == 0
}

// Digest renders the report as a short Markdown message.
func (r Report) Digest() string {
	var b strings.Builder
	b.WriteString("*Triage run*\n")
	fmt.Fprintf(&b, "Committed: %s\n", formatNums(r.Committed))
	fmt.Fprintf(&b, "Repaired: %s\n", formatNums(r.Repaired))
	fmt.Fprintf(&b, "Dropped: %s\n", formatNums(r.Dropped))
	return b.String()
}

func formatNums(nums []int) string {
	if len(nums) == 0 {
		return "-"
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = fmt.Sprintf("#%d", n)
	}
	return strings.Join(parts, ", ")
}

// Run processes every open post that has no stored record yet. Each post is
// committed or dropped before the next one starts.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report
	if p.source == nil || p.store == nil {
		return report, fmt.Errorf("pipeline requires a source and a store")
	}
	if p.classifier == nil || p.schema == nil {
		return report, fmt.Errorf("pipeline requires a classifier and a schema")
	}

	logger := p.logger.With("run_id", uuid.NewString())

	known, err := p.store.Known(ctx)
	if err != nil {
		return report, fmt.Errorf("load processed: %w", err)
	}
	logger.Info("run started", "known", len(known), "categories", p.categories)

	req := domain.FetchRequest{
		Categories:         p.categories,
		Ignore:             known,
		DiscussionMaxChars: p.discussionMaxChars,
	}
	for post, err := range p.source.Fetch(ctx, req) {
		if err != nil {
			return report, fmt.Errorf("fetch posts: %w", err)
		}
		if _, done := known[post.Num]; done {
			continue
		}

		outcome, err := p.process(ctx, logger.With("num", post.Num), post)
		if err != nil {
			return report, err
		}
		report.add(post.Num, outcome)
		p.recorder.PostOutcome(outcome)
	}

	logger.Info("run finished",
		"committed", len(report.Committed),
		"repaired", len(report.Repaired),
		"dropped", len(report.Dropped),
		"skipped", len(report.Skipped),
	)

	if p.notifier == nil || report.Empty() {
		return report, nil
	}
	if err := p.notifier.PublishDigest(ctx, report.Digest()); err != nil {
		return report, fmt.Errorf("publish digest: %w", err)
	}
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, post domain.Post) (domain.PostOutcome, error) {
	logger.Debug("classify post", "title", post.Title, "category", post.Category)

	record, err := p.classifier.Classify(ctx, post)
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &decodeErr):
		logger.Warn("model answer is not valid JSON", "error", err)
		return p.recover(ctx, logger, post, nil, err)
	case err != nil:
		return "", err
	}

	if err := p.validate(record); err != nil {
		if !isViolation(err) {
			return "", fmt.Errorf("validate #%d: %w", post.Num, err)
		}
		logger.Warn("classification does not match schema", "error", err)
		return p.recover(ctx, logger, post, record, err)
	}

	return p.commit(ctx, logger, post.Num, record, domain.OutcomeCommitted)
}

// recover drives the Invalid state: ask, repair, re-validate, until the
// record is committed or the operator gives up. Each editing round starts
// from the text saved in the previous one.
func (p *Pipeline) recover(ctx context.Context, logger *slog.Logger, post domain.Post, candidate domain.Record, cause error) (domain.PostOutcome, error) {
	var draft string
	for {
		if !p.repairEnabled || p.operator == nil || p.repairer == nil {
			logger.Error("post dropped, repair disabled", "error", describe(cause))
			return domain.OutcomeDropped, nil
		}

		question := fmt.Sprintf("#%d %q could not be classified:\n%s\nEdit the record manually?", post.Num, post.Title, describe(cause))
		ok, err := p.operator.Confirm(ctx, question)
		if err != nil {
			return "", fmt.Errorf("confirm repair of #%d: %w", post.Num, err)
		}
		if !ok {
			logger.Error("post abandoned by operator", "error", describe(cause))
			return domain.OutcomeDropped, nil
		}

		if draft == "" {
			draft = repair.Draft(p.schema, candidate)
		}
		out, err := p.repairer.Repair(ctx, draft, p.schema)
		if err != nil {
			return "", fmt.Errorf("repair #%d: %w", post.Num, err)
		}
		if !out.Saved {
			logger.Error("repair cancelled, post dropped", "error", describe(cause))
			return domain.OutcomeDropped, nil
		}

		draft = out.Text
		cause = out.Check.Err
		if out.Record != nil {
			err := p.validate(out.Record)
			if err == nil {
				logger.Info("record repaired by operator")
				return p.commit(ctx, logger, post.Num, out.Record, domain.OutcomeRepaired)
			}
			cause = err
		}
		logger.Warn("saved record is still invalid", "error", describe(cause))
	}
}

func (p *Pipeline) validate(record domain.Record) error {
	err := p.schema.Validate(record)
	p.recorder.Validation(err == nil)
	return err
}

func (p *Pipeline) commit(ctx context.Context, logger *slog.Logger, num int, record domain.Record, outcome domain.PostOutcome) (domain.PostOutcome, error) {
	// the schema is the authority on shape; the typed view is for logging only
	cls, clsErr := record.Classification()
	if clsErr != nil {
		logger.Warn("record has no typed view", "error", clsErr)
	}

	err := p.store.Put(ctx, num, record.WithNum(num))
	if errors.Is(err, domain.ErrAlreadyExists) {
		logger.Debug("record already stored, keeping first write")
		return domain.OutcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("store #%d: %w", num, err)
	}
	logger.Info("record saved", "type", cls.Type, "mcp", len(cls.MCP))
	return outcome, nil
}

func isViolation(err error) bool {
	var v *schema.Violation
	return errors.As(err, &v)
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	if s, ok := err.(interface{ Summary() string }); ok {
		return s.Summary()
	}
	var v *schema.Violation
	if errors.As(err, &v) {
		return v.Summary()
	}
	return err.Error()
}

type noopRecorder struct{}

func (noopRecorder) PostOutcome(domain.PostOutcome) {}
func (noopRecorder) Validation(bool)                {}
