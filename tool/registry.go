package tool

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds one tool call, including queue wait.
const DefaultTimeout = 30 * time.Second

// Request is a decoded, typed tool request. The set of implementations is
// closed to this package.
type Request interface {
	validate() error
}

// Tool binds a definition to its decoder and executor.
type Tool struct {
	Definition Definition
	decode     func(*ArgReader) Request
	run        func(context.Context, Request) (string, error)
}

func newTool[R Request](def Definition, decode func(*ArgReader) R, run func(context.Context, R) (string, error)) Tool {
	return Tool{
		Definition: def,
		decode: func(r *ArgReader) Request {
			return decode(r)
		},
		run: func(ctx context.Context, req Request) (string, error) {
			return run(ctx, req.(R))
		},
	}
}

// Module is a group of related tools.
type Module interface {
	Tools() []Tool
}

// Modules returns every tool module backed by gateway.
func Modules(gateway Gateway) []Module {
	return []Module{
		NewPosts(gateway, nil),
		NewResources(gateway),
		NewSite(gateway),
	}
}

// Result is the outcome of one call as shown to the caller.
type Result struct {
	Text    string
	IsError bool
}

// Config configures a Registry.
type Config struct {
	Modules []Module
	// Timeout bounds each call.
	// Default: 30s
	Timeout  time.Duration
	Observer Observer
	Logger   *slog.Logger
	NewID    func() string
	Now      func() time.Time
}

// Registry holds every tool and dispatches calls. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	tools    map[string]Tool
	order    []string
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// NewRegistry validates and indexes every module's tools.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Registry{
		tools:    make(map[string]Tool),
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	for _, module := range cfg.Modules {
		if module == nil {
			continue
		}
		for _, t := range module.Tools() {
			if err := validateDefinition(t.Definition); err != nil {
				return nil, err
			}
			if t.decode == nil || t.run == nil {
				return nil, fmt.Errorf("tool: %s has no handler", t.Definition.Name)
			}
			if _, exists := r.tools[t.Definition.Name]; exists {
				return nil, fmt.Errorf("tool: duplicate tool name %q", t.Definition.Name)
			}
			r.tools[t.Definition.Name] = t
			r.order = append(r.order, t.Definition.Name)
		}
	}
	return r, nil
}

// Definitions returns every tool definition in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Definition returns the named tool's definition.
func (r *Registry) Definition(name string) (Definition, bool) {
	t, ok := r.tools[name]
	return t.Definition, ok
}

// Names returns every tool name in sorted order.
func (r *Registry) Names() []string {
	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// Call runs the dispatch pipeline for one invocation. Failures are reported
// in the result, never as a Go error.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) Result {
	inv := Invocation{
		ID:        r.newID(),
		Tool:      name,
		StartedAt: r.now(),
	}

	text, err := r.dispatch(ctx, name, args)
	inv.Duration = r.now().Sub(inv.StartedAt)

	var result Result
	if err != nil {
		result = Result{Text: "Error: " + ErrorText(err), IsError: true}
		inv.IsError = true
		inv.ErrorKind = ErrorKind(err)
	} else {
		result = Result{Text: text}
	}
	inv.Summary, _, _ = strings.Cut(result.Text, "\n")

	level := slog.LevelInfo
	if inv.IsError {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "tool call",
		"tool", name,
		"invocation_id", inv.ID,
		"duration_ms", inv.Duration.Milliseconds(),
		"error_kind", inv.ErrorKind,
	)
	r.observer.ObserveInvocation(inv)
	return result
}

func (r *Registry) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	for _, key := range sortedKeys(args) {
		if _, known := t.Definition.Arguments[key]; !known {
			return "", invalidf(key, "Unknown argument: %s", key)
		}
	}
	if err := checkEnums(t.Definition, args); err != nil {
		return "", err
	}

	reader := NewArgReader(args)
	req := t.decode(reader)
	if err := reader.Err(); err != nil {
		return "", err
	}
	if err := req.validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return t.run(ctx, req)
}

// checkEnums rejects string values outside an argument's enum. Empty strings
// and non-string values are left to the decoder.
func checkEnums(def Definition, args map[string]any) error {
	for _, key := range sortedKeys(args) {
		spec := def.Arguments[key]
		if len(spec.Enum) == 0 {
			continue
		}
		value, ok := args[key].(string)
		if !ok || value == "" {
			continue
		}
		if !slices.Contains(spec.Enum, value) {
			return invalidf(key, "Invalid value for %s: must be one of %s", key, strings.Join(spec.Enum, ", "))
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// requireOneOf enforces that exactly one of the named values is set.
func requireOneOf(fields []string, values ...*string) error {
	provided := 0
	for _, v := range values {
		if v != nil {
			provided++
		}
	}
	switch {
	case provided == 0:
		return invalidf(fields[0], "One of %s is required", strings.Join(fields, ", "))
	case provided > 1:
		return invalidf(fields[0], "Only one of %s should be provided", strings.Join(fields, ", "))
	}
	return nil
}
