package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Violation describes why an instance does not conform to a schema. Paths
// are JSON Pointers into the instance and into the schema respectively.
type Violation struct {
	Message    string
	Path       string
	SchemaPath string
	Rule       string
	RuleValue  any
	Instance   any
	// Others counts further violations found in the same instance.
	Others int
}

func (v *Violation) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", displayPointer(v.Path), v.Message)
}

// Summary renders the violation as a compact block for logs and the repair
// status line.
func (v *Violation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "message: %s\n", v.Message)
	fmt.Fprintf(&b, "path: %s\n", displayPointer(v.Path))
	fmt.Fprintf(&b, "schema path: %s\n", displayPointer(v.SchemaPath))
	fmt.Fprintf(&b, "rule: %s\n", v.Rule)
	fmt.Fprintf(&b, "rule value: %s\n", compactJSON(v.RuleValue))
	fmt.Fprintf(&b, "instance: %s", compactJSON(v.Instance))
	if v.Others > 0 {
		fmt.Fprintf(&b, "\n(+%d more)", v.Others)
	}
	return b.String()
}

// ResolveError reports a schema or sub-schema reference that could not be
// loaded. It is never returned for a non-conforming instance.
type ResolveError struct {
	Ref string
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve schema reference %q: %v", e.Ref, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func displayPointer(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
