package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
)

const fallbackEditor = "vi"

// Editor opens records in the operator's text editor. While the editor runs
// every write to the file is validated and the status is printed to out.
type Editor struct {
	command []string
	in      *bufio.Reader
	out     io.Writer
	logger  *slog.Logger

	// launch runs the editor on path and blocks until it exits.
	launch func(ctx context.Context, path string) error

	mu sync.Mutex // serializes status output
}

var _ ports.Editor = (*Editor)(nil)

// NewEditor resolves the editor command from command, $VISUAL, $EDITOR, then
// vi. Prompts are read from in and written to out.
func NewEditor(command string, in io.Reader, out io.Writer, logger *slog.Logger) *Editor {
	e := &Editor{
		command: resolveCommand(command),
		in:      bufio.NewReader(in),
		out:     out,
		logger:  logger,
	}
	e.launch = e.runCommand
	return e
}

func resolveCommand(command string) []string {
	for _, candidate := range []string{command, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			return fields
		}
	}
	return []string{fallbackEditor}
}

// Edit writes initial to a temp file and lets the operator edit it until
// they save or cancel.
func (e *Editor) Edit(ctx context.Context, initial string, onChange func(string) domain.Check) (string, bool, error) {
	dir, err := os.MkdirTemp("", "issuetriage-*")
	if err != nil {
		return "", false, fmt.Errorf("create edit dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "record.json")
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		return "", false, fmt.Errorf("write edit file: %w", err)
	}

	w, err := e.watch(dir, path, initial, onChange)
	if err != nil {
		return "", false, err
	}
	defer w.stop()

	for {
		w.rearm()
		if err := e.launch(ctx, path); err != nil {
			return "", false, fmt.Errorf("run editor: %w", err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("read edit file: %w", err)
		}
		text := string(raw)
		w.report(text, true)

		choice, err := e.choose(ctx)
		if err != nil {
			return "", false, err
		}
		switch choice {
		case "s":
			return text, true, nil
		case "c":
			return "", false, nil
		}
	}
}

// choose asks until the operator picks save, edit or cancel. End of input
// cancels; an empty or unknown answer asks again.
func (e *Editor) choose(ctx context.Context) (string, error) {
	for {
		answer, err := e.ask(ctx, "[s]ave / [e]dit again / [c]ancel: ")
		if errors.Is(err, io.EOF) {
			return "c", nil
		}
		if err != nil {
			return "", err
		}
		switch answer {
		case "s", "save":
			return "s", nil
		case "e", "edit":
			return "e", nil
		case "c", "cancel":
			return "c", nil
		}
	}
}

func (e *Editor) runCommand(ctx context.Context, path string) error {
	args := append(append([]string(nil), e.command[1:]...), path)
	cmd := exec.CommandContext(ctx, e.command[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	e.debug("launch editor", "command", e.command[0], "path", path)
	return cmd.Run()
}

func (e *Editor) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.printf("%s", prompt)
	line, err := e.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", io.EOF
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func (e *Editor) status(check domain.Check) {
	e.printf("status: %s\n", check.Summary())
}

func (e *Editor) printf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

// fileWatch re-validates the edit file whenever its content changes. A text
// is reported at most once per editor launch.
type fileWatch struct {
	watcher  *fsnotify.Watcher
	done     chan struct{}
	onChange func(string) domain.Check
	status   func(domain.Check)

	mu      sync.Mutex
	last    string
	printed bool
}

func (e *Editor) watch(dir, path, initial string, onChange func(string) domain.Check) (*fileWatch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// editors often replace the file by rename, so watch the directory
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	fw := &fileWatch{
		watcher:  watcher,
		done:     make(chan struct{}),
		onChange: onChange,
		status:   e.status,
		last:     initial,
	}
	go func() {
		defer close(fw.done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				raw, err := os.ReadFile(path)
				// an empty read is usually a truncate in the middle of a save
				if err != nil || len(raw) == 0 {
					continue
				}
				fw.report(string(raw), false)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.debug("watch error", "error", err)
			}
		}
	}()
	return fw, nil
}

// report validates text and prints its status unless it was already shown.
// With force set an unchanged text is still reported once per launch.
func (fw *fileWatch) report(text string, force bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if text == fw.last && (fw.printed || !force) {
		return
	}
	fw.last = text
	fw.printed = true
	fw.status(fw.onChange(text))
}

func (fw *fileWatch) rearm() {
	fw.mu.Lock()
	fw.printed = false
	fw.mu.Unlock()
}

func (fw *fileWatch) stop() {
	_ = fw.watcher.Close()
	<-fw.done
}

func (e *Editor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
