package tool

import (
	"context"
	"slices"
	"strings"

	"github.com/petal-labs/ghostmcp/ghost"
)

// Site provides site, settings, and theme tools.
type Site struct {
	gateway SiteGateway
}

// NewSite builds the site module.
func NewSite(gateway SiteGateway) *Site {
	return &Site{gateway: gateway}
}

// Tools returns the site-level tools.
func (s *Site) Tools() []Tool {
	return []Tool{
		newTool(Definition{
			Name:        "ghost_site_info",
			Description: "Get basic information about the Ghost site (title, URL, version)",
			Arguments:   map[string]ArgSpec{},
		}, decodeNoArgs, s.info),
		newTool(Definition{
			Name:        "ghost_settings_get",
			Description: "Get the site settings",
			Arguments:   map[string]ArgSpec{},
		}, decodeNoArgs, s.settings),
		newTool(Definition{
			Name:        "ghost_settings_update",
			Description: "Update site settings",
			Arguments: map[string]ArgSpec{
				"settings": {
					Type:        TypeObject,
					Description: `Settings to change, keyed by setting name (e.g., {"title": "My blog"})`,
					Required:    true,
				},
			},
		}, decodeSettingsUpdate, s.updateSettings),
		newTool(Definition{
			Name:        "ghost_themes_activate",
			Description: "Activate an installed theme",
			Arguments: map[string]ArgSpec{
				"name": requiredStr("Theme name (required)"),
			},
		}, decodeThemeName, s.activateTheme),
		newTool(Definition{
			Name:        "ghost_themes_delete",
			Description: "Delete an installed theme that is not active",
			Arguments: map[string]ArgSpec{
				"name": requiredStr("Theme name (required)"),
			},
		}, decodeThemeName, s.deleteTheme),
	}
}

type noArgsRequest struct{}

func (noArgsRequest) validate() error { return nil }

func decodeNoArgs(*ArgReader) noArgsRequest { return noArgsRequest{} }

func (s *Site) info(ctx context.Context, _ noArgsRequest) (string, error) {
	site, err := s.gateway.Site(ctx)
	if err != nil {
		return "", err
	}
	return formatResponse("Site information retrieved successfully", site)
}

func (s *Site) settings(ctx context.Context, _ noArgsRequest) (string, error) {
	settings, err := s.gateway.Settings(ctx)
	if err != nil {
		return "", err
	}
	return formatResponse("Settings retrieved successfully", settings)
}

type settingsUpdateRequest struct {
	settings map[string]any
}

func (r settingsUpdateRequest) validate() error {
	if r.settings == nil {
		return missingField("settings")
	}
	if len(r.settings) == 0 {
		return invalidf("settings", "At least one setting is required")
	}
	return nil
}

func decodeSettingsUpdate(r *ArgReader) settingsUpdateRequest {
	return settingsUpdateRequest{settings: r.Object("settings")}
}

func (s *Site) updateSettings(ctx context.Context, req settingsUpdateRequest) (string, error) {
	keys := make([]string, 0, len(req.settings))
	for key := range req.settings {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	settings := make([]ghost.Setting, 0, len(keys))
	for _, key := range keys {
		settings = append(settings, ghost.Setting{Key: key, Value: req.settings[key]})
	}
	updated, err := s.gateway.EditSettings(ctx, settings)
	if err != nil {
		return "", err
	}
	return formatResponse("Settings updated successfully", map[string]any{"settings": updated})
}

type themeRequest struct {
	name *string
}

func (r themeRequest) validate() error {
	if r.name == nil || strings.TrimSpace(*r.name) == "" {
		return missingField("name")
	}
	return nil
}

func decodeThemeName(r *ArgReader) themeRequest {
	return themeRequest{name: r.String("name")}
}

func (s *Site) activateTheme(ctx context.Context, req themeRequest) (string, error) {
	theme, err := s.gateway.ActivateTheme(ctx, *req.name)
	if err != nil {
		return "", err
	}
	return formatResponse("Theme activated successfully", theme)
}

func (s *Site) deleteTheme(ctx context.Context, req themeRequest) (string, error) {
	if err := s.gateway.DeleteTheme(ctx, *req.name); err != nil {
		return "", err
	}
	return "Theme deleted successfully", nil
}
