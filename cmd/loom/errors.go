package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/loomlab/loom/pkg/errors"
)

// cliError pairs an error with a hint shown below the message.
type cliError struct {
	err  error
	hint string
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

func newConfigError(err error, path string) *cliError {
	hint := "check your configuration file syntax"
	if path != "" {
		hint = fmt.Sprintf("check %s for syntax errors", path)
	}
	return &cliError{err: err, hint: hint}
}

func newProviderError(provider string) *cliError {
	return &cliError{
		err:  errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown llm provider %q", provider), nil),
		hint: "supported providers: ollama; openai and anthropic adapters live in providers/",
	}
}

// fatal prints err and exits non-zero. LoomError codes are surfaced;
// hints are printed on their own line in text mode.
func fatal(err error, jsonOut bool) {
	var hint string
	var ce *cliError
	if stderrors.As(err, &ce) {
		hint = ce.hint
	}

	code := "UNKNOWN"
	var le *errors.LoomError
	if stderrors.As(err, &le) {
		code = string(le.Code)
	}

	if jsonOut {
		payload := map[string]any{"code": code, "message": err.Error()}
		if hint != "" {
			payload["hint"] = hint
		}
		raw, _ := json.Marshal(map[string]any{"error": payload})
		fmt.Fprintln(os.Stderr, string(raw))
	} else {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", code, err)
		if hint != "" {
			fmt.Fprintf(os.Stderr, "  Hint: %s\n", hint)
		}
	}
	os.Exit(1)
}
