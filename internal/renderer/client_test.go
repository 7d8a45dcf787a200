package renderer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
)

// stubEngine writes an executable shell script standing in for the
// engine process.
func stubEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub engine scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestClient(t *testing.T, script string) (*Client, *document.Store) {
	t.Helper()
	store := document.NewStore()
	return NewClient([]string{stubEngine(t, script)}, store, logging.NewNop()), store
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRender_DecodesResponse(t *testing.T) {
	client, _ := newTestClient(t, `printf '{"rendered":"hi","durationMs":3}'`)
	templatePath := writeTemplate(t, "hello")

	resp, err := client.Render(context.Background(), templatePath, "")

	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Rendered)
	assert.Equal(t, int64(3), resp.DurationMs)
	assert.Empty(t, resp.Error)
}

func TestRender_EngineLevelErrorIsNotTransportFailure(t *testing.T) {
	client, _ := newTestClient(t,
		`printf '{"error":"parse error","diagnostics":[{"message":"template: page.tmpl:2: unexpected EOF","severity":"error"}],"durationMs":1}'`)
	templatePath := writeTemplate(t, "{{")

	resp, err := client.Render(context.Background(), templatePath, "")

	require.NoError(t, err, "exit 0 with error set is an engine-level failure, not transport")
	assert.Equal(t, "parse error", resp.Error)
	require.Len(t, resp.Diagnostics, 1)
}

func TestRender_NonZeroExitIsTransportFailure(t *testing.T) {
	client, _ := newTestClient(t, `echo "engine blew up" >&2; exit 3`)
	templatePath := writeTemplate(t, "hello")

	resp, err := client.Render(context.Background(), templatePath, "")

	require.Error(t, err)
	assert.Nil(t, resp)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "exit", transportErr.Stage)
	assert.Contains(t, transportErr.Output, "engine blew up")
}

func TestRender_LaunchFailure(t *testing.T) {
	store := document.NewStore()
	client := NewClient([]string{filepath.Join(t.TempDir(), "no-such-engine")}, store, logging.NewNop())
	templatePath := writeTemplate(t, "hello")

	_, err := client.Render(context.Background(), templatePath, "")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "launch", transportErr.Stage)
}

func TestRender_MalformedPayloadCarriesRawOutput(t *testing.T) {
	client, _ := newTestClient(t, `printf 'this is not json'`)
	templatePath := writeTemplate(t, "hello")

	_, err := client.Render(context.Background(), templatePath, "")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "decode", transportErr.Stage)
	assert.Contains(t, transportErr.Output, "this is not json")
}

func TestRender_DirtyTemplateIsSnapshottedAndCleanedUp(t *testing.T) {
	captured := filepath.Join(t.TempDir(), "captured")
	argsFile := filepath.Join(t.TempDir(), "args")
	client, store := newTestClient(t,
		`printf '%s\n' "$@" > `+argsFile+`
cp "$2" `+captured+`
printf '{"rendered":"ok","durationMs":1}'`)

	templatePath := writeTemplate(t, "on disk")
	store.SetOverlay(templatePath, []byte("dirty buffer"))

	resp, err := client.Render(context.Background(), templatePath, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Rendered)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(args)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "--template", lines[0])
	snapshotPath := lines[1]
	assert.NotEqual(t, templatePath, snapshotPath, "dirty content must go through a snapshot")

	content, err := os.ReadFile(captured)
	require.NoError(t, err)
	assert.Equal(t, "dirty buffer", string(content))

	_, err = os.Stat(snapshotPath)
	assert.True(t, os.IsNotExist(err), "snapshot must be removed after the render")
}

func TestRender_ContextFlagOnlyWhenContextBound(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	client, _ := newTestClient(t,
		`printf '%s\n' "$@" > `+argsFile+`
printf '{"rendered":"ok","durationMs":1}'`)
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "page.tmpl")
	contextPath := filepath.Join(dir, "page.tmpl.json")
	require.NoError(t, os.WriteFile(templatePath, []byte("t"), 0o644))
	require.NoError(t, os.WriteFile(contextPath, []byte("{}"), 0o644))

	_, err := client.Render(context.Background(), templatePath, contextPath)
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(args)), "\n")
	assert.Equal(t, []string{"--template", templatePath, "--context", contextPath}, lines)
}

func TestRender_NoCommandConfigured(t *testing.T) {
	client := NewClient(nil, document.NewStore(), logging.NewNop())

	_, err := client.Render(context.Background(), writeTemplate(t, "x"), "")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "launch", transportErr.Stage)
}
