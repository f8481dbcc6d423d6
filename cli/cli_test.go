package cli

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/petal-labs/ghostmcp/config"
)

const testAdminKey = "6489c2f1e6a1b2001d3b1c2a:0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

// newTestRoot creates a fresh command tree so tests share no flag state.
func newTestRoot() *cobra.Command {
	return NewRootCmd("test")
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// isolateEnv clears every ghostmcp variable and hides any real config file.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvURL, config.EnvAdminAPIKey, config.EnvContentAPIKey, config.EnvAPIVersion,
		config.EnvWindowMS, config.EnvMaxRequests, config.EnvConcurrency, config.EnvRequestTimeout,
		config.EnvAuditDB, config.EnvHealthSchedule, config.EnvOTLPEndpoint,
	} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v (%T) is not an ExitError", err, err)
	}
	return exitErr.Code
}

// fakeGhost answers the admin endpoints the CLI tests touch.
func fakeGhost(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Ghost ") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"message":"Authorization failed","type":"UnauthorizedError"}]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ghost/api/admin/posts/":
			_, _ = io.WriteString(w, `{
				"posts": [
					{"id": "1", "title": "Test Post 1", "slug": "test-post-1", "status": "published"},
					{"id": "2", "title": "Test Post 2", "slug": "test-post-2", "status": "draft"}
				],
				"meta": {"pagination": {"page": 1, "limit": 15, "pages": 1, "total": 2, "next": null, "prev": null}}
			}`)
		case "/ghost/api/admin/site/":
			_, _ = io.WriteString(w, `{"site": {"title": "Test Site", "url": "https://example.com", "version": "5.80"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"message":"Resource not found.","type":"NotFoundError"}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(), "--version")
	if err != nil {
		t.Fatalf("--version error = %v", err)
	}
	if stdout != "ghostmcp version test\n" {
		t.Fatalf("version output = %q", stdout)
	}
}

func TestLoggingFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "verbose and quiet", args: []string{"--verbose", "--quiet", "tools", "list"}},
		{name: "unknown log format", args: []string{"--log-format", "xml", "tools", "list"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(newTestRoot(), tt.args...)
			if got := exitCode(t, err); got != exitUsage {
				t.Fatalf("exit code = %d, want %d (err = %v)", got, exitUsage, err)
			}
		})
	}
}

func TestToolsList(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(), "--no-color", "tools", "list")
	if err != nil {
		t.Fatalf("tools list error = %v", err)
	}
	for _, want := range []string{"NAME", "ghost_posts_list", "ghost_posts_create", "ghost_tags_list", "ghost_site_info"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("tools list output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = executeCommand(newTestRoot(), "--no-color", "tools", "list", "tags")
	if err != nil {
		t.Fatalf("tools list tags error = %v", err)
	}
	if !strings.Contains(stdout, "ghost_tags_create") || strings.Contains(stdout, "ghost_posts_list") {
		t.Fatalf("filtered output = %s", stdout)
	}
}

func TestToolsDescribe(t *testing.T) {
	stdout, _, err := executeCommand(newTestRoot(), "tools", "describe", "ghost_posts_create")
	if err != nil {
		t.Fatalf("tools describe error = %v", err)
	}
	for _, want := range []string{`"name": "ghost_posts_create"`, `"additionalProperties": false`, `"title"`} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("describe output missing %q:\n%s", want, stdout)
		}
	}

	_, _, err = executeCommand(newTestRoot(), "tools", "describe", "ghost_nope")
	if got := exitCode(t, err); got != exitUsage {
		t.Fatalf("unknown tool exit code = %d, want %d", got, exitUsage)
	}
}

func TestServeRequiresConfig(t *testing.T) {
	isolateEnv(t)

	_, _, err := executeCommand(newTestRoot(), "serve")
	if got := exitCode(t, err); got != exitConfig {
		t.Fatalf("exit code = %d, want %d (err = %v)", got, exitConfig, err)
	}
	if !errors.Is(err, config.ErrMissingConfig) {
		t.Fatalf("error %v does not wrap config.ErrMissingConfig", err)
	}
	for _, key := range []string{config.EnvURL, config.EnvAdminAPIKey} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	_, _, err := executeCommand(newTestRoot(), "serve", "--transport", "websocket")
	if got := exitCode(t, err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestServeStdioExitsOnClosedInput(t *testing.T) {
	isolateEnv(t)
	srv := fakeGhost(t)
	t.Setenv(config.EnvURL, srv.URL)
	t.Setenv(config.EnvAdminAPIKey, testAdminKey)
	t.Setenv(config.EnvHealthSchedule, "off")

	_, _, err := executeCommand(newTestRoot(), "serve")
	if err != nil {
		t.Fatalf("serve with empty stdin error = %v", err)
	}
}

func TestConfigCheckAndShow(t *testing.T) {
	isolateEnv(t)
	srv := fakeGhost(t)
	path := writeTestFile(t, "ghostmcp.yaml", "ghost:\n  url: "+srv.URL+"/\n  admin_api_key: "+testAdminKey+"\nrate_limit:\n  concurrency: 2\n")

	stdout, _, err := executeCommand(newTestRoot(), "--config", path, "config", "check", "--ping")
	if err != nil {
		t.Fatalf("config check error = %v", err)
	}
	if !strings.Contains(stdout, "Configuration OK ("+path+")") || !strings.Contains(stdout, `Reached "Test Site" (Ghost 5.80)`) {
		t.Fatalf("config check output = %q", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(), "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(stdout, "6489c2f1e6a1b2001d3b1c2a:****") || strings.Contains(stdout, "0f1e2d3c") {
		t.Fatalf("config show did not mask the admin key:\n%s", stdout)
	}
	if !strings.Contains(stdout, "concurrency: 2") {
		t.Fatalf("config show output = %s", stdout)
	}
}

func TestConfigCheckMissing(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvURL, "https://example.com")

	_, _, err := executeCommand(newTestRoot(), "config", "check")
	if got := exitCode(t, err); got != exitConfig {
		t.Fatalf("exit code = %d, want %d", got, exitConfig)
	}
	if !strings.Contains(err.Error(), config.EnvAdminAPIKey) || strings.Contains(err.Error(), config.EnvURL+",") {
		t.Fatalf("error = %v", err)
	}
}

func TestToolsCallWritesAudit(t *testing.T) {
	isolateEnv(t)
	srv := fakeGhost(t)
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	t.Setenv(config.EnvURL, srv.URL)
	t.Setenv(config.EnvAdminAPIKey, testAdminKey)
	t.Setenv(config.EnvAuditDB, dbPath)

	stdout, _, err := executeCommand(newTestRoot(), "tools", "call", "ghost_posts_list", "--args", `{"limit": 5}`)
	if err != nil {
		t.Fatalf("tools call error = %v", err)
	}
	if !strings.Contains(stdout, "Found 2 posts (total: 2)") || !strings.Contains(stdout, "Test Post 2") {
		t.Fatalf("tools call output = %q", stdout)
	}

	_, stderr, err := executeCommand(newTestRoot(), "tools", "call", "ghost_posts_get", "--args", `{"slug": "missing"}`)
	if got := exitCode(t, err); got != exitRuntime {
		t.Fatalf("failed call exit code = %d, want %d", got, exitRuntime)
	}
	if !strings.Contains(stderr, "Error: Resource not found: Resource not found.") {
		t.Fatalf("failed call stderr = %q", stderr)
	}

	stdout, _, err = executeCommand(newTestRoot(), "--no-color", "audit", "list", "--db", dbPath)
	if err != nil {
		t.Fatalf("audit list error = %v", err)
	}
	if !strings.Contains(stdout, "ghost_posts_list") || !strings.Contains(stdout, "ghost_posts_get") {
		t.Fatalf("audit list output = %s", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(), "audit", "list", "--errors", "--json")
	if err != nil {
		t.Fatalf("audit list --errors error = %v", err)
	}
	if !strings.Contains(stdout, `"tool": "ghost_posts_get"`) || strings.Contains(stdout, `"tool": "ghost_posts_list"`) {
		t.Fatalf("audit list --errors output = %s", stdout)
	}

	stdout, _, err = executeCommand(newTestRoot(), "audit", "prune", "--db", dbPath, "--older-than", "1h")
	if err != nil {
		t.Fatalf("audit prune error = %v", err)
	}
	if stdout != "Pruned 0 audit record(s)\n" {
		t.Fatalf("audit prune output = %q", stdout)
	}
}

func TestToolsCallRejectsBadArgs(t *testing.T) {
	_, _, err := executeCommand(newTestRoot(), "tools", "call", "ghost_posts_list", "--args", `[1, 2]`)
	if got := exitCode(t, err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}
