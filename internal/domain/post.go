package domain

// Feed categories understood by the source.
const (
	CategoryIssues      = "issues"
	CategoryDiscussions = "discussions"
)

// Post is a normalized issue or discussion fetched from the repository.
type Post struct {
	Title    string
	Num      int
	Text     string
	Category string
}

// PostOutcome enumerates the terminal states of a post inside one run.
type PostOutcome string

const (
	OutcomeCommitted PostOutcome = "committed"
	OutcomeRepaired  PostOutcome = "repaired"
	OutcomeDropped   PostOutcome = "dropped"
	OutcomeSkipped   PostOutcome = "skipped"
)

// FetchRequest selects which posts a source yields.
type FetchRequest struct {
	Categories []string
	// Ignore holds post numbers that were already processed.
	Ignore map[int]struct{}
	// DiscussionMaxChars caps discussion text in runes; 0 keeps it whole.
	DiscussionMaxChars int
}
