package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/petal-labs/ghostmcp/ghost"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestRegistry(t *testing.T, gw *fakeGateway, opts ...func(*Config)) *Registry {
	t.Helper()
	cfg := Config{
		Modules: []Module{
			NewPosts(gw, func() time.Time { return fixedNow }),
			NewResources(gw),
			NewSite(gw),
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID:  func() string { return "inv-1" },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func sampleValue(spec ArgSpec) any {
	switch spec.Type {
	case TypeString:
		if len(spec.Enum) > 0 {
			return spec.Enum[0]
		}
		if spec.Format == "date-time" {
			return "2026-01-02T03:04:05Z"
		}
		return "sample"
	case TypeNumber, TypeInteger:
		return float64(1)
	case TypeBoolean:
		return true
	case TypeArray:
		return []any{"sample"}
	case TypeObject:
		return map[string]any{"key": "value"}
	}
	return nil
}

func TestEveryAdvertisedArgumentIsDecoded(t *testing.T) {
	gw := newFakeGateway()
	for _, module := range Modules(gw) {
		for _, tl := range module.Tools() {
			def := tl.Definition
			t.Run(def.Name, func(t *testing.T) {
				args := make(map[string]any, len(def.Arguments))
				for name, spec := range def.Arguments {
					args[name] = sampleValue(spec)
				}
				reader := NewArgReader(args)
				_ = tl.decode(reader)
				if err := reader.Err(); err != nil {
					t.Fatalf("decode error = %v", err)
				}
				seen := reader.Seen()
				for _, name := range def.ArgumentNames() {
					if !slices.Contains(seen, name) {
						t.Fatalf("argument %q is advertised but never read (seen %v)", name, seen)
					}
				}
			})
		}
	}
}

func TestDefinitionsAreUniqueAndValid(t *testing.T) {
	reg := newTestRegistry(t, newFakeGateway())
	defs := reg.Definitions()
	if len(defs) == 0 {
		t.Fatal("no definitions registered")
	}
	for _, want := range []string{
		"ghost_posts_list", "ghost_posts_get", "ghost_posts_create", "ghost_posts_update",
		"ghost_posts_delete", "ghost_posts_publish", "ghost_posts_unpublish", "ghost_posts_search",
		"ghost_posts_bulk_update", "ghost_posts_bulk_delete",
		"ghost_pages_update", "ghost_tags_list", "ghost_members_get", "ghost_tiers_archive",
		"ghost_newsletters_archive", "ghost_users_me", "ghost_webhooks_create",
		"ghost_site_info", "ghost_settings_update", "ghost_themes_activate",
	} {
		if _, ok := reg.Definition(want); !ok {
			t.Fatalf("definition %q not registered", want)
		}
	}

	schema := mustDefinition(t, reg, "ghost_posts_create").InputSchema()
	if schema["additionalProperties"] != false {
		t.Fatalf("additionalProperties = %v, want false", schema["additionalProperties"])
	}
	props := schema["properties"].(map[string]ArgSpec)
	if got := props["status"].Enum; !slices.Equal(got, []string{"draft", "published", "scheduled"}) {
		t.Fatalf("status enum = %v", got)
	}
	if got := props["visibility"].Enum; !slices.Equal(got, []string{"public", "members", "paid", "tiers"}) {
		t.Fatalf("visibility enum = %v", got)
	}
	if got := schema["required"]; !slices.Equal(got.([]string), []string{"title"}) {
		t.Fatalf("required = %v, want [title]", got)
	}
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	gw := newFakeGateway()
	_, err := NewRegistry(Config{Modules: []Module{NewSite(gw), NewSite(gw)}})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("NewRegistry() error = %v, want duplicate name error", err)
	}
}

func TestCallUnknownTool(t *testing.T) {
	gw := newFakeGateway()
	reg := newTestRegistry(t, gw)

	res := reg.Call(context.Background(), "ghost_nope", nil)
	if !res.IsError || res.Text != "Error: Unknown tool: ghost_nope" {
		t.Fatalf("Call() = %+v", res)
	}
}

func TestCallRejectsUnknownArgument(t *testing.T) {
	gw := newFakeGateway()
	reg := newTestRegistry(t, gw)

	res := reg.Call(context.Background(), "ghost_posts_delete", map[string]any{"id": "1", "force": true})
	if !res.IsError || res.Text != "Error: Unknown argument: force" {
		t.Fatalf("Call() = %+v", res)
	}
	if gw.total() != 0 {
		t.Fatalf("backend calls = %d, want 0", gw.total())
	}
}

func TestCallRejectsValueOutsideEnum(t *testing.T) {
	gw := newFakeGateway()
	reg := newTestRegistry(t, gw)

	res := reg.Call(context.Background(), "ghost_posts_create", map[string]any{
		"title":  "T",
		"html":   "<p>x</p>",
		"status": "archived",
	})
	if !res.IsError || !strings.Contains(res.Text, "must be one of draft, published, scheduled") {
		t.Fatalf("Call() = %+v", res)
	}
	if gw.total() != 0 {
		t.Fatalf("backend calls = %d, want 0", gw.total())
	}
}

func TestCallReportsTypeErrorBeforeMissingLookup(t *testing.T) {
	gw := newFakeGateway()
	reg := newTestRegistry(t, gw)

	res := reg.Call(context.Background(), "ghost_posts_get", map[string]any{"id": 42})
	if !res.IsError || res.Text != "Error: Invalid value for id: expected a string" {
		t.Fatalf("Call() = %+v", res)
	}
	if gw.total() != 0 {
		t.Fatalf("backend calls = %d, want 0", gw.total())
	}
}

func TestCallTimeoutIsServerError(t *testing.T) {
	gw := newFakeGateway()
	gw.block = true
	reg := newTestRegistry(t, gw, func(cfg *Config) { cfg.Timeout = 10 * time.Millisecond })

	res := reg.Call(context.Background(), "ghost_posts_publish", map[string]any{"id": "p1"})
	want := "Error: Server error: request timed out. Please try again later."
	if !res.IsError || res.Text != want {
		t.Fatalf("Call() = %+v, want %q", res, want)
	}
}

func TestCallNotifiesObserver(t *testing.T) {
	gw := newFakeGateway()
	gw.post = &ghost.Post{ID: "p1", Status: ghost.StatusPublished}

	var got []Invocation
	reg := newTestRegistry(t, gw, func(cfg *Config) {
		cfg.Observer = Observers{nil, ObserverFunc(func(inv Invocation) { got = append(got, inv) })}
	})

	reg.Call(context.Background(), "ghost_posts_publish", map[string]any{"id": "p1"})
	reg.Call(context.Background(), "ghost_site_info", nil)

	if len(got) != 2 {
		t.Fatalf("observed %d invocations, want 2", len(got))
	}
	if got[0].ID != "inv-1" || got[0].Tool != "ghost_posts_publish" {
		t.Fatalf("first invocation = %+v", got[0])
	}
	if !got[0].IsError || got[0].ErrorKind != KindLocalValidation || got[0].Summary != "Error: Post is already published" {
		t.Fatalf("first invocation = %+v, want local validation failure", got[0])
	}
	if got[1].IsError || got[1].Summary != "Site information retrieved successfully" {
		t.Fatalf("second invocation = %+v", got[1])
	}
}

func TestErrorTextPrefixes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ghost.Error{Kind: ghost.KindBadRequest, Message: "bad"}, "Invalid request: bad"},
		{&ghost.Error{Kind: ghost.KindUnauthorized, Message: "key"}, "Authentication failed: key"},
		{&ghost.Error{Kind: ghost.KindForbidden, Message: "nope"}, "Permission denied: nope"},
		{&ghost.Error{Kind: ghost.KindNotFound, Message: "Post not found"}, "Resource not found: Post not found"},
		{&ghost.Error{Kind: ghost.KindConflict, Message: "Saving failed! Someone else is editing this post."}, "Conflict: Saving failed! Someone else is editing this post."},
		{&ghost.Error{Kind: ghost.KindValidation, Message: "title too long"}, "Validation error: title too long"},
		{&ghost.Error{Kind: ghost.KindRateLimited, RetryAfter: 30}, "Rate limit exceeded. Please try again in 30 seconds."},
		{&ghost.Error{Kind: ghost.KindServerError, Message: "Internal error."}, "Server error: Internal error. Please try again later."},
		{&ghost.Error{Kind: ghost.KindUnknown, Message: "teapot"}, "Ghost API error: teapot"},
		{fmt.Errorf("wrap: %w", &ValidationError{Message: "Missing required field: id"}), "Missing required field: id"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := ErrorText(tt.err); got != tt.want {
			t.Fatalf("ErrorText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func mustDefinition(t *testing.T, reg *Registry, name string) Definition {
	t.Helper()
	def, ok := reg.Definition(name)
	if !ok {
		t.Fatalf("definition %q not found", name)
	}
	return def
}
