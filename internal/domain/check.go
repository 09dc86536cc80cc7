package domain

// ValidationStatus is the live state of a record being edited.
type ValidationStatus int

const (
	StatusValid ValidationStatus = iota
	StatusInvalid
	StatusParseInvalid
)

func (s ValidationStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusParseInvalid:
		return "parse error"
	default:
		return "unknown"
	}
}

// Check is the outcome of validating the current text of a record.
type Check struct {
	Status ValidationStatus
	Err    error
}

// OK reports whether the text parsed and conformed to the schema.
func (c Check) OK() bool { return c.Status == StatusValid && c.Err == nil }

// Summary renders a one-block description suitable for a status line.
func (c Check) Summary() string {
	if c.Err == nil {
		return c.Status.String()
	}
	if s, ok := c.Err.(interface{ Summary() string }); ok {
		return c.Status.String() + "\n" + s.Summary()
	}
	return c.Status.String() + ": " + c.Err.Error()
}
