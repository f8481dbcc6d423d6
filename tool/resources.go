package tool

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/petal-labs/ghostmcp/ghost"
)

type verb string

const (
	verbList    verb = "list"
	verbGet     verb = "get"
	verbCreate  verb = "create"
	verbUpdate  verb = "update"
	verbDelete  verb = "delete"
	verbArchive verb = "archive"
	verbMe      verb = "me"
)

// resourceSpec declares the pass-through tools of one secondary entity.
type resourceSpec struct {
	resource ghost.Resource
	fields   map[string]ArgSpec
	// required are the fields create cannot do without.
	required []string
	// lookups are the identifying fields accepted by get, in order.
	lookups []string
	verbs   []verb
	// versioned updates read the entity first and carry its updated_at.
	versioned bool
	// markup converts an html field to a mobiledoc document.
	markup  bool
	archive ghost.Entity
}

func (s resourceSpec) name(v verb) string {
	return "ghost_" + s.resource.Name + "_" + string(v)
}

func (s resourceSpec) label() string {
	return s.resource.Label
}

// Resources provides pass-through CRUD tools for secondary entities.
type Resources struct {
	gateway ResourceGateway
	specs   []resourceSpec
}

// NewResources builds the secondary entity module.
func NewResources(gateway ResourceGateway) *Resources {
	return &Resources{gateway: gateway, specs: defaultResourceSpecs()}
}

// Tools returns every secondary entity tool.
func (m *Resources) Tools() []Tool {
	var tools []Tool
	for _, spec := range m.specs {
		for _, v := range spec.verbs {
			tools = append(tools, m.tool(spec, v))
		}
	}
	return tools
}

func (m *Resources) tool(spec resourceSpec, v verb) Tool {
	plural := strings.ToLower(spec.resource.Name)
	single := strings.ToLower(spec.label())
	switch v {
	case verbList:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("List %s with optional filters", plural),
			Arguments: map[string]ArgSpec{
				"limit":   num(fmt.Sprintf("Number of %s to return (default: 15, max: 100)", plural)),
				"page":    num("Page number for pagination"),
				"filter":  str("Ghost filter string"),
				"order":   str(`Sort order (e.g., "created_at desc")`),
				"include": str("Include related data"),
				"fields":  str("Limit fields returned"),
			},
		}, decodeResourceList, func(ctx context.Context, req resourceListRequest) (string, error) {
			return m.list(ctx, spec, req)
		})
	case verbGet:
		args := map[string]ArgSpec{
			"include": str("Include related data"),
			"fields":  str("Limit fields returned"),
		}
		for _, lookup := range spec.lookups {
			args[lookup] = str(fmt.Sprintf("%s %s", spec.label(), lookup))
		}
		if len(spec.lookups) == 1 {
			args[spec.lookups[0]] = requiredStr(fmt.Sprintf("%s %s (required)", spec.label(), spec.lookups[0]))
		}
		if spec.markup {
			args["formats"] = str(`Include content formats (e.g., "html,mobiledoc")`)
		}
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("Get a single %s by %s", single, strings.Join(spec.lookups, " or ")),
			Arguments:   args,
		}, func(r *ArgReader) resourceGetRequest {
			return decodeResourceGet(r, spec)
		}, func(ctx context.Context, req resourceGetRequest) (string, error) {
			return m.get(ctx, spec, req)
		})
	case verbCreate:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("Create a new %s", single),
			Arguments:   spec.writeArguments(false),
		}, func(r *ArgReader) resourceWriteRequest {
			return decodeResourceWrite(r, spec, false)
		}, func(ctx context.Context, req resourceWriteRequest) (string, error) {
			return m.create(ctx, spec, req)
		})
	case verbUpdate:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("Update an existing %s", single),
			Arguments:   spec.writeArguments(true),
		}, func(r *ArgReader) resourceWriteRequest {
			return decodeResourceWrite(r, spec, true)
		}, func(ctx context.Context, req resourceWriteRequest) (string, error) {
			return m.update(ctx, spec, req)
		})
	case verbDelete:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("Delete a %s permanently", single),
			Arguments: map[string]ArgSpec{
				"id": requiredStr(fmt.Sprintf("%s ID to delete (required)", spec.label())),
			},
		}, decodeResourceID, func(ctx context.Context, req resourceIDRequest) (string, error) {
			if err := m.gateway.Delete(ctx, spec.resource, *req.id); err != nil {
				return "", err
			}
			return spec.label() + " deleted successfully", nil
		})
	case verbArchive:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: fmt.Sprintf("Archive a %s", single),
			Arguments: map[string]ArgSpec{
				"id": requiredStr(fmt.Sprintf("%s ID to archive (required)", spec.label())),
			},
		}, decodeResourceID, func(ctx context.Context, req resourceIDRequest) (string, error) {
			entity, err := m.gateway.Edit(ctx, spec.resource, *req.id, maps.Clone(spec.archive))
			if err != nil {
				return "", err
			}
			return formatResponse(spec.label()+" archived successfully", entity)
		})
	case verbMe:
		return newTool(Definition{
			Name:        spec.name(v),
			Description: "Get the user that owns the configured API key",
			Arguments: map[string]ArgSpec{
				"include": str("Include related data"),
			},
		}, decodeResourceMe, func(ctx context.Context, req resourceMeRequest) (string, error) {
			entity, err := m.gateway.Read(ctx, spec.resource, ghost.ByID("me"), ghost.ReadParams{Include: req.include})
			if err != nil {
				return "", err
			}
			return formatResponse(spec.label()+" retrieved successfully", entity)
		})
	default:
		panic(fmt.Sprintf("tool: unsupported verb %q for %s", v, spec.resource.Name))
	}
}

func (s resourceSpec) writeArguments(update bool) map[string]ArgSpec {
	args := make(map[string]ArgSpec, len(s.fields)+2)
	for name, spec := range s.fields {
		spec.Required = !update && slices.Contains(s.required, name)
		args[name] = spec
	}
	if update {
		args["id"] = requiredStr(fmt.Sprintf("%s ID to update (required)", s.label()))
		if s.versioned {
			args["updated_at"] = str("Version token from the last read (for conflict detection); defaults to the current value")
		}
	}
	return args
}

type resourceListRequest struct {
	listPostsRequest
}

func decodeResourceList(r *ArgReader) resourceListRequest {
	return resourceListRequest{listPostsRequest: decodeListPosts(r)}
}

func (m *Resources) list(ctx context.Context, spec resourceSpec, req resourceListRequest) (string, error) {
	list, err := m.gateway.Browse(ctx, spec.resource, req.params)
	if err != nil {
		return "", err
	}
	return formatResponse(
		fmt.Sprintf("Found %d %s (total: %d)", len(list.Items), spec.resource.Name, list.Meta.Pagination.Total),
		list.Envelope(spec.resource),
	)
}

type resourceGetRequest struct {
	lookupFields []string
	values       []*string
	params       ghost.ReadParams
}

func (r resourceGetRequest) validate() error {
	if len(r.lookupFields) == 1 {
		if r.values[0] == nil {
			return missingField(r.lookupFields[0])
		}
		return nil
	}
	return requireOneOf(r.lookupFields, r.values...)
}

func (r resourceGetRequest) lookup() ghost.Lookup {
	for i, v := range r.values {
		if v != nil {
			return ghost.Lookup{Field: r.lookupFields[i], Value: *v}
		}
	}
	return ghost.Lookup{}
}

func decodeResourceGet(r *ArgReader, spec resourceSpec) resourceGetRequest {
	req := resourceGetRequest{lookupFields: spec.lookups}
	for _, field := range spec.lookups {
		req.values = append(req.values, r.Identifier(field))
	}
	req.params = ghost.ReadParams{
		Include: r.CSV("include"),
		Fields:  r.CSV("fields"),
	}
	if spec.markup {
		req.params.Formats = r.CSV("formats")
	}
	return req
}

func (m *Resources) get(ctx context.Context, spec resourceSpec, req resourceGetRequest) (string, error) {
	entity, err := m.gateway.Read(ctx, spec.resource, req.lookup(), req.params)
	if err != nil {
		return "", err
	}
	return formatResponse(spec.label()+" retrieved successfully", entity)
}

type resourceWriteRequest struct {
	update    bool
	id        *string
	updatedAt *string
	entity    ghost.Entity
	required  []string
	markup    bool
}

func (r resourceWriteRequest) validate() error {
	if r.update {
		if r.id == nil {
			return missingField("id")
		}
		return nil
	}
	for _, field := range r.required {
		if _, ok := r.entity[field]; !ok {
			return missingField(field)
		}
	}
	return nil
}

func decodeResourceWrite(r *ArgReader, spec resourceSpec, update bool) resourceWriteRequest {
	req := resourceWriteRequest{
		update:   update,
		entity:   decodeEntity(r, spec.fields),
		required: spec.required,
		markup:   spec.markup,
	}
	if update {
		req.id = r.Identifier("id")
		if spec.versioned {
			req.updatedAt = r.NonEmptyString("updated_at")
		}
	}
	return req
}

// payload returns a copy of the entity with markup converted when needed.
func (r resourceWriteRequest) payload() (ghost.Entity, error) {
	out := maps.Clone(r.entity)
	if !r.markup {
		return out, nil
	}
	html, hasHTML := out["html"].(string)
	delete(out, "html")
	if _, hasDoc := out["mobiledoc"]; hasDoc || !hasHTML || html == "" {
		return out, nil
	}
	doc, err := htmlToMobiledoc(html)
	if err != nil {
		return nil, err
	}
	out["mobiledoc"] = doc
	return out, nil
}

func (m *Resources) create(ctx context.Context, spec resourceSpec, req resourceWriteRequest) (string, error) {
	payload, err := req.payload()
	if err != nil {
		return "", err
	}
	entity, err := m.gateway.Add(ctx, spec.resource, payload)
	if err != nil {
		return "", err
	}
	return formatResponse(spec.label()+" created successfully", entity)
}

func (m *Resources) update(ctx context.Context, spec resourceSpec, req resourceWriteRequest) (string, error) {
	payload, err := req.payload()
	if err != nil {
		return "", err
	}
	if spec.versioned {
		current, err := m.gateway.Read(ctx, spec.resource, ghost.ByID(*req.id), ghost.ReadParams{})
		if err != nil {
			return "", err
		}
		if req.updatedAt != nil {
			payload["updated_at"] = *req.updatedAt
		} else {
			payload["updated_at"] = current["updated_at"]
		}
	}
	entity, err := m.gateway.Edit(ctx, spec.resource, *req.id, payload)
	if err != nil {
		return "", err
	}
	return formatResponse(spec.label()+" updated successfully", entity)
}

type resourceIDRequest struct {
	id *string
}

func (r resourceIDRequest) validate() error {
	if r.id == nil {
		return missingField("id")
	}
	return nil
}

func decodeResourceID(r *ArgReader) resourceIDRequest {
	return resourceIDRequest{id: r.Identifier("id")}
}

type resourceMeRequest struct {
	include string
}

func (resourceMeRequest) validate() error { return nil }

func decodeResourceMe(r *ArgReader) resourceMeRequest {
	return resourceMeRequest{include: r.CSV("include")}
}

// decodeEntity reads every declared field that is present, typed by its spec.
func decodeEntity(r *ArgReader, fields map[string]ArgSpec) ghost.Entity {
	entity := ghost.Entity{}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		spec := fields[name]
		var value any
		switch spec.Type {
		case TypeString:
			if spec.Format == "date-time" {
				if v := r.Date(name); v != nil {
					value = *v
				}
			} else if v := r.String(name); v != nil {
				value = *v
			}
		case TypeNumber, TypeInteger:
			if v := r.Int(name); v != nil {
				value = *v
			}
		case TypeBoolean:
			if v := r.Bool(name); v != nil {
				value = *v
			}
		case TypeArray:
			if v := r.List(name); v != nil {
				value = *v
			}
		case TypeObject:
			if v := r.Object(name); v != nil {
				value = v
			}
		}
		if value != nil {
			entity[name] = value
		}
	}
	return entity
}

func defaultResourceSpecs() []resourceSpec {
	seo := map[string]ArgSpec{
		"meta_title":          str("SEO meta title"),
		"meta_description":    str("SEO meta description"),
		"og_image":            str("Open Graph image URL"),
		"og_title":            str("Open Graph title"),
		"og_description":      str("Open Graph description"),
		"twitter_image":       str("Twitter card image URL"),
		"twitter_title":       str("Twitter card title"),
		"twitter_description": str("Twitter card description"),
		"codeinjection_head":  str("Code injection for <head>"),
		"codeinjection_foot":  str("Code injection for footer"),
		"canonical_url":       str("Canonical URL for SEO"),
	}
	withSEO := func(fields map[string]ArgSpec) map[string]ArgSpec {
		out := maps.Clone(seo)
		maps.Copy(out, fields)
		return out
	}

	return []resourceSpec{
		{
			resource: ghost.Pages,
			fields: withSEO(map[string]ArgSpec{
				"title":           str("Page title"),
				"slug":            str("URL slug for the page"),
				"mobiledoc":       str("Page content in Mobiledoc format (JSON string)"),
				"html":            str("Page content in HTML (alternative to mobiledoc)"),
				"status":          enumStr("Page status", postStatuses...),
				"visibility":      enumStr("Page visibility", postVisibilities...),
				"featured":        boolean("Whether the page is featured"),
				"tags":            list("Array of tag names, slugs, or {name, slug} objects"),
				"authors":         list("Array of author emails or {email} objects"),
				"published_at":    dateStr("Publication date (ISO 8601 format)"),
				"custom_excerpt":  str("Custom excerpt"),
				"feature_image":   str("Feature image URL"),
				"custom_template": str("Custom template name"),
			}),
			required:  []string{"title"},
			lookups:   []string{"id", "slug"},
			verbs:     []verb{verbList, verbGet, verbCreate, verbUpdate, verbDelete},
			versioned: true,
			markup:    true,
		},
		{
			resource: ghost.Tags,
			fields: withSEO(map[string]ArgSpec{
				"name":          str("Tag name"),
				"slug":          str("URL slug for the tag"),
				"description":   str("Tag description"),
				"feature_image": str("Feature image URL"),
				"visibility":    enumStr("Tag visibility", "public", "internal"),
				"accent_color":  str("Accent color as a hex value"),
			}),
			required: []string{"name"},
			lookups:  []string{"id", "slug"},
			verbs:    []verb{verbList, verbGet, verbCreate, verbUpdate, verbDelete},
		},
		{
			resource: ghost.Members,
			fields: map[string]ArgSpec{
				"email":       str("Member email address"),
				"name":        str("Member name"),
				"note":        str("Internal note about the member"),
				"labels":      list("Array of label names or {name} objects"),
				"newsletters": list("Array of newsletter {id} objects the member is subscribed to"),
				"subscribed":  boolean("Whether the member receives newsletters"),
			},
			required: []string{"email"},
			lookups:  []string{"id", "email"},
			verbs:    []verb{verbList, verbGet, verbCreate, verbUpdate, verbDelete},
		},
		{
			resource: ghost.Tiers,
			fields: map[string]ArgSpec{
				"name":             str("Tier name"),
				"description":      str("Tier description"),
				"visibility":       enumStr("Tier visibility", "public", "none"),
				"welcome_page_url": str("Page shown after signup"),
				"monthly_price":    num("Monthly price in the smallest currency unit"),
				"yearly_price":     num("Yearly price in the smallest currency unit"),
				"currency":         str("Three-letter currency code"),
				"benefits":         list("Array of benefit descriptions"),
				"trial_days":       num("Free trial length in days"),
			},
			required: []string{"name"},
			lookups:  []string{"id"},
			verbs:    []verb{verbList, verbGet, verbCreate, verbUpdate, verbArchive},
			archive:  ghost.Entity{"active": false},
		},
		{
			resource: ghost.Newsletters,
			fields: map[string]ArgSpec{
				"name":                str("Newsletter name"),
				"description":         str("Newsletter description"),
				"sender_name":         str("Sender name"),
				"sender_email":        str("Sender email address"),
				"sender_reply_to":     enumStr("Reply-to address", "newsletter", "support"),
				"status":              enumStr("Newsletter status", "active", "archived"),
				"subscribe_on_signup": boolean("Subscribe new members automatically"),
				"visibility":          enumStr("Newsletter visibility", "members", "paid"),
				"sort_order":          num("Display order"),
			},
			required: []string{"name"},
			lookups:  []string{"id"},
			verbs:    []verb{verbList, verbGet, verbCreate, verbUpdate, verbArchive},
			archive:  ghost.Entity{"status": "archived"},
		},
		{
			resource: ghost.Users,
			fields: map[string]ArgSpec{
				"name":             str("Display name"),
				"slug":             str("URL slug"),
				"email":            str("Email address"),
				"bio":              str("Biography"),
				"website":          str("Website URL"),
				"location":         str("Location"),
				"facebook":         str("Facebook username"),
				"twitter":          str("Twitter handle"),
				"profile_image":    str("Profile image URL"),
				"cover_image":      str("Cover image URL"),
				"meta_title":       str("SEO meta title"),
				"meta_description": str("SEO meta description"),
			},
			lookups: []string{"id", "slug", "email"},
			verbs:   []verb{verbList, verbGet, verbMe, verbUpdate},
		},
		{
			resource: ghost.Webhooks,
			fields: map[string]ArgSpec{
				"event":          str(`Event that triggers the webhook (e.g., "post.published")`),
				"target_url":     str("URL that receives the webhook payload"),
				"name":           str("Webhook name"),
				"secret":         str("Secret used to sign payloads"),
				"api_version":    str("API version of the payload"),
				"integration_id": str("Integration that owns the webhook"),
			},
			required: []string{"event", "target_url"},
			verbs:    []verb{verbCreate, verbUpdate, verbDelete},
		},
	}
}
