package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"IssueTriage/internal/ports"
)

// Operator asks yes/no questions on a terminal. The default answer is no.
type Operator struct {
	in  *bufio.Reader
	out io.Writer
}

var _ ports.Operator = (*Operator)(nil)

// NewOperator reads answers from in and writes questions to out.
func NewOperator(in io.Reader, out io.Writer) *Operator {
	return &Operator{in: bufio.NewReader(in), out: out}
}

// Confirm prints question and waits for y/N. EOF counts as no.
func (o *Operator) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(o.out, "%s [y/N]: ", question)

		line, err := o.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		fmt.Fprintln(o.out, "please answer y or n")
	}
}
