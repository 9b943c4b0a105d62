package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Case or validation failures
	ExitCommandError = 2 // Command error (bad manifest, missing files, etc.)
)

// Error codes carried in JSON responses.
const (
	ErrCodeConfig     = "E_CONFIG"     // configuration cannot be loaded
	ErrCodeManifest   = "E_MANIFEST"   // manifest cannot be compiled or built
	ErrCodeSource     = "E_SOURCE"     // data sources cannot be resolved or loaded
	ErrCodeLedger     = "E_LEDGER"     // run ledger cannot be opened or queried
	ErrCodeRunFailed  = "E_RUN_FAILED" // one or more cases failed or were skipped
	ErrCodeValidation = "E_VALIDATION" // validation found broken cases
)

// ExitError is an error with a specific process exit code. Commands return
// one instead of calling os.Exit so tests can observe the code.
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

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Non-ExitError errors map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command emits in json format.
// The shape is identical across commands so callers can parse it blind.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries error details inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON emits a response envelope, indented for human eyes.
func writeJSON(w io.Writer, resp CLIResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// jsonOK wraps a success payload in the envelope.
func jsonOK(w io.Writer, data any) error {
	return writeJSON(w, CLIResponse{Status: "ok", Data: data})
}

// jsonFail wraps a failure payload in the envelope. Data may still be set;
// a run that fails cases has both results and an error.
func jsonFail(w io.Writer, data any, code, message string) error {
	return writeJSON(w, CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	})
}

// failJSON renders a command error as an envelope when the format is json,
// so machine consumers always get parseable output, then returns err
// unchanged for the exit code. Text mode leaves rendering to the caller of
// Run, which prints the error on stderr.
func failJSON(opts *RootOptions, cmd *cobra.Command, code string, err error) error {
	if opts.Format == "json" {
		_ = writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	}
	return err
}
