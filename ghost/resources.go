package ghost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Entity is the pass-through shape of a secondary resource.
type Entity map[string]any

// Resource describes one Admin API collection.
type Resource struct {
	// Name is both the URL segment and the response envelope key.
	Name string
	// Label names a single item in messages, e.g. "Tag".
	Label string
	// PublicRead routes browse and read through the Content API when a
	// content key is configured.
	PublicRead bool
	// EmailByFilter resolves email lookups with a filtered browse because the
	// collection has no email read endpoint.
	EmailByFilter bool
}

var (
	Pages       = Resource{Name: "pages", Label: "Page"}
	Tags        = Resource{Name: "tags", Label: "Tag", PublicRead: true}
	Members     = Resource{Name: "members", Label: "Member", EmailByFilter: true}
	Tiers       = Resource{Name: "tiers", Label: "Tier"}
	Newsletters = Resource{Name: "newsletters", Label: "Newsletter"}
	Users       = Resource{Name: "users", Label: "User"}
	Webhooks    = Resource{Name: "webhooks", Label: "Webhook"}
)

// EntityList is one page of a secondary resource.
type EntityList struct {
	Items []Entity
	Meta  Meta
}

// Envelope returns the list keyed the way Ghost returns it.
func (l EntityList) Envelope(r Resource) map[string]any {
	items := l.Items
	if items == nil {
		items = []Entity{}
	}
	return map[string]any{
		r.Name: items,
		"meta": l.Meta,
	}
}

func (c *Client) apiFor(r Resource) api {
	if r.PublicRead {
		return c.readAPI()
	}
	return adminAPI
}

func decodeEntities(raw map[string]json.RawMessage, key string) ([]Entity, error) {
	payload, ok := raw[key]
	if !ok {
		return []Entity{}, nil
	}
	var items []Entity
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("ghost: decode %s: %w", key, err)
	}
	if items == nil {
		items = []Entity{}
	}
	return items, nil
}

// Browse lists a secondary resource.
func (c *Client) Browse(ctx context.Context, r Resource, params BrowseParams) (*EntityList, error) {
	var raw map[string]json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		api:    c.apiFor(r),
		path:   r.Name,
		query:  params.values(),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeEntities(raw, r.Name)
	if err != nil {
		return nil, transportError(err)
	}
	out := &EntityList{Items: items}
	if meta, ok := raw["meta"]; ok {
		if err := json.Unmarshal(meta, &out.Meta); err != nil {
			return nil, transportError(fmt.Errorf("ghost: decode %s meta: %w", r.Name, err))
		}
	}
	return out, nil
}

// Read fetches a single item of a secondary resource.
func (c *Client) Read(ctx context.Context, r Resource, lookup Lookup, params ReadParams) (Entity, error) {
	if lookup.Field == "email" && r.EmailByFilter {
		return c.readByFilter(ctx, r, fmt.Sprintf("email:'%s'", strings.ReplaceAll(lookup.Value, "'", `\'`)), params)
	}

	path, err := lookup.path(r.Name)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	err = c.do(ctx, request{
		method: http.MethodGet,
		api:    c.apiFor(r),
		path:   path,
		query:  params.values(),
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	return firstEntity(raw, r)
}

func (c *Client) readByFilter(ctx context.Context, r Resource, filter string, params ReadParams) (Entity, error) {
	list, err := c.Browse(ctx, r, BrowseParams{
		Limit:   1,
		Filter:  filter,
		Include: params.Include,
		Fields:  params.Fields,
		Formats: params.Formats,
	})
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, notFound(r.Label)
	}
	return list.Items[0], nil
}

func firstEntity(raw map[string]json.RawMessage, r Resource) (Entity, error) {
	items, err := decodeEntities(raw, r.Name)
	if err != nil {
		return nil, transportError(err)
	}
	if len(items) == 0 {
		return nil, notFound(r.Label)
	}
	return items[0], nil
}

// Add creates an item of a secondary resource.
func (c *Client) Add(ctx context.Context, r Resource, e Entity) (Entity, error) {
	return c.writeEntity(ctx, http.MethodPost, r, r.Name, e)
}

// Edit updates an item of a secondary resource.
func (c *Client) Edit(ctx context.Context, r Resource, id string, e Entity) (Entity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("ghost: %s id is required", strings.ToLower(r.Label))
	}
	return c.writeEntity(ctx, http.MethodPut, r, r.Name+"/"+url.PathEscape(id), e)
}

func (c *Client) writeEntity(ctx context.Context, method string, r Resource, path string, e Entity) (Entity, error) {
	if e == nil {
		e = Entity{}
	}
	var raw map[string]json.RawMessage
	err := c.do(ctx, request{
		method: method,
		api:    adminAPI,
		path:   path,
		body:   map[string]any{r.Name: []Entity{e}},
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeEntities(raw, r.Name)
	if err != nil {
		return nil, transportError(err)
	}
	if len(items) == 0 {
		return nil, &Error{Kind: KindUnknown, Message: "backend returned no " + strings.ToLower(r.Label)}
	}
	return items[0], nil
}

// Delete permanently removes an item of a secondary resource.
func (c *Client) Delete(ctx context.Context, r Resource, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("ghost: id is required")
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		api:    adminAPI,
		path:   r.Name + "/" + url.PathEscape(id),
	})
}
