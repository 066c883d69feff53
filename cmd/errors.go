package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/spf13/viper"
)

// Exit statuses, so scripts can branch on the kind of failure.
const (
	exitFailure   = 1 // unexpected or unclassified
	exitUsage     = 2 // bad input or missing configuration
	exitRejected  = 3 // server refused: closed, forbidden, conflict, stale id
	exitTransport = 4 // server unreachable or too slow; nothing changed
)

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, config.ErrMissingBaseURL) || errors.Is(err, config.ErrMissingProject) {
		return exitUsage
	}
	var te *task.Error
	if !errors.As(err, &te) {
		return exitFailure
	}
	switch te.Code {
	case task.CodeValidation:
		return exitUsage
	case task.CodeSprintClosed, task.CodeForbidden, task.CodeConflict, task.CodeNotFound:
		return exitRejected
	case task.CodeNetwork, task.CodeTimeout:
		return exitTransport
	}
	return exitFailure
}

// HandleFatalError reports err and exits with its status.
func HandleFatalError(err error) {
	reportError(os.Stderr, err)
	os.Exit(exitCode(err))
}

type errorReport struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	} `json:"error"`
}

// reportError writes err for a person, or as JSON with --json. --verbose
// adds the full error chain.
func reportError(w io.Writer, err error) {
	verbose := viper.GetBool("verbose")
	if viper.GetBool("json") {
		var r errorReport
		r.Error.Code = string(task.CodeOf(err))
		r.Error.Message = userMessage(err)
		if verbose {
			r.Error.Detail = err.Error()
		}
		out, _ := json.Marshal(r)
		fmt.Fprintln(w, string(out))
		return
	}
	if verbose {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Error: "+userMessage(err))
}

// LogError logs an error without printing to stderr if verbose mode is off.
func LogError(msg string, err error) {
	if viper.GetBool("verbose") {
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s: %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
		}
	}
}

// userMessage turns a command error into the line shown without --verbose.
func userMessage(err error) string {
	var te *task.Error
	if !errors.As(err, &te) {
		return err.Error()
	}
	switch te.Code {
	case task.CodeNetwork:
		return "the planner server could not be reached; nothing was changed. Use --verbose for details."
	case task.CodeTimeout:
		return "the planner server did not answer in time; nothing was changed."
	case task.CodeSprintClosed:
		return "the sprint or week is closed; nothing can change."
	case task.CodeForbidden:
		return "your role is not allowed to do that. " + te.Message
	case task.CodeNotFound:
		return te.Message + " (run 'planwing board' to see current ids)"
	}
	return err.Error()
}
