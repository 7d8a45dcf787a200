// Package renderer invokes the external rendering engine and normalizes
// its outcome.
//
// One call, one engine process: the client snapshots dirty documents to
// temporary files, runs the engine command, decodes the single JSON
// response from stdout, and cleans up every snapshot on all exit paths.
// Transport failures (launch failure, non-zero exit, malformed payload)
// come back as a *TransportError; an engine-level template failure is a
// successful call whose response carries Error. The client never retries:
// the preview session's next trigger is the retry mechanism.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
	"github.com/johnmschoonover/tmplview/internal/protocol"
)

// maxReportedOutput bounds how much raw engine output is carried inside a
// TransportError for diagnosis.
const maxReportedOutput = 2048

// TransportError reports that the engine process itself failed: it could
// not be launched, exited non-zero, or produced output that is not a
// RenderResponse. It is distinct from a template-level failure, which is
// reported inside a decoded response.
type TransportError struct {
	Stage  string // "launch", "exit", or "decode"
	Err    error
	Output string
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("render engine %s failure: %v", e.Stage, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client runs the rendering engine.
type Client struct {
	command []string
	store   *document.Store
	logger  logging.Logger
}

// NewClient creates a client that invokes command (argv prefix; the
// template and context flags are appended per call) and snapshots dirty
// content through store.
func NewClient(command []string, store *document.Store, logger logging.Logger) *Client {
	return &Client{
		command: command,
		store:   store,
		logger:  logger.WithComponent("renderer"),
	}
}

// Render renders templatePath against the optional contextPath and
// returns the decoded engine response. The response, not the error,
// carries template-level failures; a non-nil error is always a transport
// failure or a snapshot I/O failure.
func (c *Client) Render(ctx context.Context, templatePath, contextPath string) (*protocol.RenderResponse, error) {
	if len(c.command) == 0 {
		return nil, &TransportError{Stage: "launch", Err: fmt.Errorf("no engine command configured")}
	}

	templateArg, cleanupTemplate, err := c.store.Snapshot(templatePath)
	defer cleanupTemplate()
	if err != nil {
		return nil, err
	}

	contextArg := ""
	if contextPath != "" {
		var cleanupContext func()
		contextArg, cleanupContext, err = c.store.Snapshot(contextPath)
		defer cleanupContext()
		if err != nil {
			return nil, err
		}
	}

	args := append(append([]string(nil), c.command[1:]...), "--template", templateArg)
	if contextArg != "" {
		args = append(args, "--context", contextArg)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("invoking engine", "template", templatePath, "context", contextPath)

	if err := cmd.Run(); err != nil {
		if _, isExit := err.(*exec.ExitError); isExit {
			return nil, &TransportError{
				Stage:  "exit",
				Err:    err,
				Output: truncate(strings.TrimSpace(stderr.String() + stdout.String())),
			}
		}
		return nil, &TransportError{Stage: "launch", Err: err}
	}

	var resp protocol.RenderResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, &TransportError{
			Stage:  "decode",
			Err:    err,
			Output: truncate(stdout.String()),
		}
	}

	return &resp, nil
}

func truncate(s string) string {
	if len(s) <= maxReportedOutput {
		return s
	}
	return s[:maxReportedOutput] + "... (truncated)"
}
