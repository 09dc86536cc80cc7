package ports

import (
	"context"
	"iter"
	"time"

	"IssueTriage/internal/domain"
)

// PostSource streams open posts from the repository, skipping ignored numbers.
type PostSource interface {
	Fetch(ctx context.Context, req domain.FetchRequest) iter.Seq2[domain.Post, error]
}

// Completer sends a system instruction and user content to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// RecordStore persists classification records write-once by post number.
type RecordStore interface {
	Exists(ctx context.Context, num int) (bool, error)
	Put(ctx context.Context, num int, record domain.Record) error
	Get(ctx context.Context, num int) (domain.Record, error)
	Known(ctx context.Context) (map[int]struct{}, error)
}

// Editor lets an operator edit text. onChange is called after every edit with
// the current text; ok is false when the operator cancels.
type Editor interface {
	Edit(ctx context.Context, initial string, onChange func(string) domain.Check) (text string, ok bool, err error)
}

// Operator answers yes/no questions during a run.
type Operator interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
