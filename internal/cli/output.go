package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // one or more scripts failed
	ExitCommandError = 2 // bad configuration or arguments
)

// ExitError is an error carrying the exit code of the process.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that aren't an
// ExitError give ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ScriptResult is the outcome of running one script.
type ScriptResult struct {
	Script string `json:"script"`
	Status string `json:"status"` // "ok" | "fail"
	Error  string `json:"error,omitempty"`
}

// RunReport is the JSON document written by the run command.
type RunReport struct {
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Results []ScriptResult `json:"results"`
}

// OutputFormatter writes results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Report writes the outcome of a run.
func (f *OutputFormatter) Report(r RunReport) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	for _, res := range r.Results {
		if res.Status == "ok" {
			fmt.Fprintf(f.Writer, "ok\t%s\n", res.Script)
			continue
		}
		fmt.Fprintf(f.Writer, "FAIL\t%s\n", res.Script)
		f.VerboseLog("%s: %s", res.Script, res.Error)
	}
	fmt.Fprintf(f.Writer, "%d passed, %d failed\n", r.Passed, r.Failed)
	return nil
}

// VerboseLog writes a diagnostic line if verbose output is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
