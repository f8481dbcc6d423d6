package ghost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Site is the public identity of a Ghost site.
type Site struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Icon        string `json:"icon,omitempty"`
	AccentColor string `json:"accent_color,omitempty"`
	Locale      string `json:"locale,omitempty"`
	URL         string `json:"url"`
	Version     string `json:"version"`
}

// Setting is one key/value pair of the Admin settings collection.
type Setting struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Site fetches site metadata.
func (c *Client) Site(ctx context.Context) (*Site, error) {
	var out struct {
		Site Site `json:"site"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		api:    adminAPI,
		path:   "site",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out.Site, nil
}

// Ping checks that the backend is reachable and the credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Site(ctx)
	return err
}

// Settings returns the site settings. The Content API returns an object keyed
// by setting name; the Admin API returns a list of key/value pairs.
func (c *Client) Settings(ctx context.Context) (any, error) {
	var raw map[string]json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		api:    c.readAPI(),
		path:   "settings",
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	var settings any
	if payload, ok := raw["settings"]; ok {
		if err := json.Unmarshal(payload, &settings); err != nil {
			return nil, transportError(err)
		}
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

// EditSettings writes settings through the Admin API.
func (c *Client) EditSettings(ctx context.Context, settings []Setting) ([]Setting, error) {
	if len(settings) == 0 {
		return nil, errors.New("ghost: no settings to update")
	}
	var out struct {
		Settings []Setting `json:"settings"`
	}
	err := c.do(ctx, request{
		method: http.MethodPut,
		api:    adminAPI,
		path:   "settings",
		body:   map[string]any{"settings": settings},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// ActivateTheme switches the active theme.
func (c *Client) ActivateTheme(ctx context.Context, name string) (Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("ghost: theme name is required")
	}
	var raw map[string]json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPut,
		api:    adminAPI,
		path:   "themes/" + url.PathEscape(name) + "/activate",
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	return firstEntity(raw, Resource{Name: "themes", Label: "Theme"})
}

// DeleteTheme removes an installed, inactive theme.
func (c *Client) DeleteTheme(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("ghost: theme name is required")
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		api:    adminAPI,
		path:   "themes/" + url.PathEscape(name),
	})
}
