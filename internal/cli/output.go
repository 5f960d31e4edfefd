package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sharedstore/internal/database"
)

// Process exit codes.
const (
	ExitSuccess          = 0
	ExitFailure          = 1 // timeout, save or query failure
	ExitCommandError     = 2 // bad flags, unknown entity, bad config or schema
	ExitStoreUnavailable = database.ExitStoreUnavailable
)

// ExitError is returned by a failed command after its error has been
// written. main exits with ExitCode.
type ExitError struct {
	ExitCode int
	Code     string // E0xx error code, also in the written response
	Message  string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for a command error. Errors that
// are not ExitErrors map to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return ExitFailure
}

// Response is the JSON envelope written for every command.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command. Details carries the underlying
// cause, such as the engine's open error when the store is unavailable.
type ResponseError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ExitCode int    `json:"exit_code"`
	Details  string `json:"details,omitempty"`
}

// Formatter writes command results as text or JSON.
type Formatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool // text mode prints error details
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *Formatter {
	return &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
}

// Success writes a result. Text output uses the value's String method.
func (f *Formatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail writes the error and returns an ExitError carrying both codes.
func (f *Formatter) Fail(exitCode int, code, message string, err error) error {
	body := &ResponseError{Code: code, Message: message, ExitCode: exitCode}
	if err != nil {
		body.Details = err.Error()
	}

	var outErr error
	if f.Format == "json" {
		outErr = json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: body})
	} else {
		_, outErr = fmt.Fprintf(f.Writer, "error [%s]: %s\n", code, message)
		if outErr == nil && f.Verbose && body.Details != "" {
			_, outErr = fmt.Fprintf(f.Writer, "  %s\n", body.Details)
		}
	}
	if outErr != nil {
		return outErr
	}
	return &ExitError{ExitCode: exitCode, Code: code, Message: message, Err: err}
}
