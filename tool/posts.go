package tool

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/petal-labs/ghostmcp/ghost"
)

var (
	postStatuses     = []string{ghost.StatusDraft, ghost.StatusPublished, ghost.StatusScheduled}
	postVisibilities = []string{"public", "members", "paid", "tiers"}
)

// Posts provides the ghost_posts_* tools.
type Posts struct {
	gateway PostGateway
	now     func() time.Time
}

// NewPosts builds the post module. now defaults to time.Now.
func NewPosts(gateway PostGateway, now func() time.Time) *Posts {
	if now == nil {
		now = time.Now
	}
	return &Posts{gateway: gateway, now: now}
}

// Tools returns the post tools in advertised order.
func (p *Posts) Tools() []Tool {
	return []Tool{
		newTool(Definition{
			Name:        "ghost_posts_list",
			Description: "List posts with optional filters. Returns posts with metadata.",
			Arguments: map[string]ArgSpec{
				"limit":   num("Number of posts to return (default: 15, max: 100)"),
				"page":    num("Page number for pagination"),
				"filter":  str(`Ghost filter string (e.g., "status:published", "tag:getting-started")`),
				"order":   str(`Sort order (e.g., "published_at desc", "title asc")`),
				"include": str(`Include related data (e.g., "tags,authors,count.posts")`),
				"fields":  str(`Limit fields returned (e.g., "title,slug,published_at")`),
				"formats": str(`Include post content formats (e.g., "html,mobiledoc")`),
			},
		}, decodeListPosts, p.list),
		newTool(Definition{
			Name:        "ghost_posts_get",
			Description: "Get a single post by ID or slug",
			Arguments: map[string]ArgSpec{
				"id":      str("Post ID"),
				"slug":    str("Post slug (URL-safe version of title)"),
				"include": str(`Include related data (e.g., "tags,authors")`),
				"fields":  str("Limit fields returned"),
				"formats": str(`Include content formats (e.g., "html,mobiledoc")`),
			},
		}, decodeGetPost, p.get),
		newTool(Definition{
			Name:        "ghost_posts_create",
			Description: "Create a new post",
			Arguments:   postWriteArguments(false),
		}, decodeCreatePost, p.create),
		newTool(Definition{
			Name:        "ghost_posts_update",
			Description: "Update an existing post",
			Arguments:   postWriteArguments(true),
		}, decodeUpdatePost, p.update),
		newTool(Definition{
			Name:        "ghost_posts_delete",
			Description: "Delete a post permanently",
			Arguments: map[string]ArgSpec{
				"id": requiredStr("Post ID to delete (required)"),
			},
		}, decodeDeletePost, p.delete),
		newTool(Definition{
			Name:        "ghost_posts_publish",
			Description: "Publish a draft post",
			Arguments: map[string]ArgSpec{
				"id":            requiredStr("Post ID to publish (required)"),
				"published_at":  dateStr("Publication date (optional, defaults to now)"),
				"send_email":    boolean("Send email to subscribers"),
				"email_segment": str(`Email segment filter (e.g., "status:free")`),
				"newsletter":    str("Slug of the newsletter to send the post with"),
			},
		}, decodePublishPost, p.publish),
		newTool(Definition{
			Name:        "ghost_posts_unpublish",
			Description: "Unpublish a published post (convert to draft)",
			Arguments: map[string]ArgSpec{
				"id": requiredStr("Post ID to unpublish (required)"),
			},
		}, decodeUnpublishPost, p.unpublish),
		newTool(Definition{
			Name:        "ghost_posts_search",
			Description: "Search posts by query string",
			Arguments: map[string]ArgSpec{
				"query":   requiredStr("Search query (required)"),
				"limit":   num("Number of results to return"),
				"include": str("Include related data"),
			},
		}, decodeSearchPosts, p.search),
		newTool(Definition{
			Name:        "ghost_posts_bulk_update",
			Description: "Bulk update multiple posts",
			Arguments: map[string]ArgSpec{
				"filter": requiredStr(`Filter to select posts (required, e.g., "status:draft")`),
				"data": {
					Type:        TypeObject,
					Description: "Data to update on matching posts (required)",
					Required:    true,
					Properties: map[string]ArgSpec{
						"status":     {Type: TypeString},
						"featured":   {Type: TypeBoolean},
						"visibility": {Type: TypeString},
						"tags":       {Type: TypeArray},
					},
				},
			},
		}, decodeBulkUpdate, p.bulkUpdate),
		newTool(Definition{
			Name:        "ghost_posts_bulk_delete",
			Description: "Bulk delete multiple posts (use with caution)",
			Arguments: map[string]ArgSpec{
				"filter":  requiredStr("Filter to select posts to delete (required)"),
				"confirm": boolean("Confirmation required (must be true)"),
			},
		}, decodeBulkDelete, p.bulkDelete),
	}
}

func postWriteArguments(update bool) map[string]ArgSpec {
	args := map[string]ArgSpec{
		"title":               str("Post title"),
		"mobiledoc":           str("Post content in Mobiledoc format (JSON string)"),
		"html":                str("Post content in HTML (alternative to mobiledoc)"),
		"status":              enumStr(`Post status: "draft" (default), "published", or "scheduled"`, postStatuses...),
		"slug":                str("URL slug for the post (auto-generated from title if not provided)"),
		"featured":            boolean("Whether post is featured (default: false)"),
		"tags":                list("Array of tag names, slugs, or {name, slug} objects"),
		"authors":             list("Array of author emails or {email} objects"),
		"meta_title":          str("SEO meta title"),
		"meta_description":    str("SEO meta description"),
		"og_title":            str("Open Graph title"),
		"og_description":      str("Open Graph description"),
		"og_image":            str("Open Graph image URL"),
		"twitter_title":       str("Twitter card title"),
		"twitter_description": str("Twitter card description"),
		"twitter_image":       str("Twitter card image URL"),
		"feature_image":       str("Feature image URL"),
		"published_at":        dateStr("Publication date (ISO 8601 format)"),
		"custom_excerpt":      str("Custom post excerpt"),
		"codeinjection_head":  str("Code injection for post <head>"),
		"codeinjection_foot":  str("Code injection for post footer"),
		"custom_template":     str("Custom template name"),
		"canonical_url":       str("Canonical URL for SEO"),
		"visibility":          enumStr(`Post visibility: "public", "members", "paid", or "tiers"`, postVisibilities...),
		"tiers":               list(`Array of tier IDs when visibility is "tiers"`),
		"email_only":          boolean("Whether post is email-only"),
	}
	if update {
		args["id"] = requiredStr("Post ID to update (required)")
		args["updated_at"] = str("Version token from the last read (for conflict detection); defaults to the current value")
		args["tags"] = list("New array of tags (replaces existing)")
		args["authors"] = list("New array of authors (replaces existing)")
	} else {
		args["title"] = requiredStr("Post title (required)")
	}
	return args
}

type listPostsRequest struct {
	params ghost.BrowseParams
	limit  *int
	page   *int
}

func (r listPostsRequest) validate() error {
	if r.limit != nil && (*r.limit < 1 || *r.limit > 100) {
		return invalidf("limit", "limit must be between 1 and 100")
	}
	if r.page != nil && *r.page < 1 {
		return invalidf("page", "page must be 1 or greater")
	}
	return nil
}

func decodeListPosts(r *ArgReader) listPostsRequest {
	req := listPostsRequest{limit: r.Int("limit"), page: r.Int("page")}
	req.params = ghost.BrowseParams{
		Limit:   derefInt(req.limit),
		Page:    derefInt(req.page),
		Filter:  deref(r.Filter("filter")),
		Order:   deref(r.String("order")),
		Include: r.CSV("include"),
		Fields:  r.CSV("fields"),
		Formats: r.CSV("formats"),
	}
	return req
}

func (p *Posts) list(ctx context.Context, req listPostsRequest) (string, error) {
	list, err := p.gateway.BrowsePosts(ctx, req.params)
	if err != nil {
		return "", err
	}
	return formatResponse(fmt.Sprintf("Found %d posts (total: %d)", len(list.Posts), list.Meta.Pagination.Total), list)
}

type getPostRequest struct {
	id     *string
	slug   *string
	params ghost.ReadParams
}

func (r getPostRequest) validate() error {
	return requireOneOf([]string{"id", "slug"}, r.id, r.slug)
}

func (r getPostRequest) lookup() ghost.Lookup {
	if r.id != nil {
		return ghost.ByID(*r.id)
	}
	return ghost.BySlug(*r.slug)
}

func decodeGetPost(r *ArgReader) getPostRequest {
	return getPostRequest{
		id:   r.Identifier("id"),
		slug: r.Identifier("slug"),
		params: ghost.ReadParams{
			Include: r.CSV("include"),
			Fields:  r.CSV("fields"),
			Formats: r.CSV("formats"),
		},
	}
}

func (p *Posts) get(ctx context.Context, req getPostRequest) (string, error) {
	post, err := p.gateway.ReadPost(ctx, req.lookup(), req.params)
	if err != nil {
		return "", err
	}
	return formatResponse("Post retrieved successfully", post)
}

// postFields are the writable post fields shared by create and update.
type postFields struct {
	title              *string
	slug               *string
	mobiledoc          *string
	html               *string
	status             *string
	visibility         *string
	featured           *bool
	emailOnly          *bool
	publishedAt        *string
	tags               *[]any
	authors            *[]any
	tiers              *[]any
	customExcerpt      *string
	featureImage       *string
	codeinjectionHead  *string
	codeinjectionFoot  *string
	customTemplate     *string
	canonicalURL       *string
	metaTitle          *string
	metaDescription    *string
	ogImage            *string
	ogTitle            *string
	ogDescription      *string
	twitterImage       *string
	twitterTitle       *string
	twitterDescription *string
}

func decodePostFields(r *ArgReader) postFields {
	return postFields{
		title:              r.String("title"),
		slug:               r.String("slug"),
		mobiledoc:          r.NonEmptyString("mobiledoc"),
		html:               r.NonEmptyString("html"),
		status:             r.String("status"),
		visibility:         r.String("visibility"),
		featured:           r.Bool("featured"),
		emailOnly:          r.Bool("email_only"),
		publishedAt:        r.Date("published_at"),
		tags:               r.List("tags"),
		authors:            r.List("authors"),
		tiers:              r.List("tiers"),
		customExcerpt:      r.String("custom_excerpt"),
		featureImage:       r.String("feature_image"),
		codeinjectionHead:  r.String("codeinjection_head"),
		codeinjectionFoot:  r.String("codeinjection_foot"),
		customTemplate:     r.String("custom_template"),
		canonicalURL:       r.String("canonical_url"),
		metaTitle:          r.String("meta_title"),
		metaDescription:    r.String("meta_description"),
		ogImage:            r.String("og_image"),
		ogTitle:            r.String("og_title"),
		ogDescription:      r.String("og_description"),
		twitterImage:       r.String("twitter_image"),
		twitterTitle:       r.String("twitter_title"),
		twitterDescription: r.String("twitter_description"),
	}
}

// input shapes the fields into the backend write payload. An explicit
// mobiledoc document wins over markup.
func (f postFields) input() (ghost.PostInput, error) {
	in := ghost.PostInput{
		Title:              f.title,
		Slug:               f.slug,
		Status:             f.status,
		Visibility:         f.visibility,
		Featured:           f.featured,
		EmailOnly:          f.emailOnly,
		PublishedAt:        f.publishedAt,
		Tags:               f.tags,
		Authors:            f.authors,
		Tiers:              f.tiers,
		CustomExcerpt:      f.customExcerpt,
		FeatureImage:       f.featureImage,
		CodeinjectionHead:  f.codeinjectionHead,
		CodeinjectionFoot:  f.codeinjectionFoot,
		CustomTemplate:     f.customTemplate,
		CanonicalURL:       f.canonicalURL,
		MetaTitle:          f.metaTitle,
		MetaDescription:    f.metaDescription,
		OGImage:            f.ogImage,
		OGTitle:            f.ogTitle,
		OGDescription:      f.ogDescription,
		TwitterImage:       f.twitterImage,
		TwitterTitle:       f.twitterTitle,
		TwitterDescription: f.twitterDescription,
	}
	switch {
	case f.mobiledoc != nil:
		in.Mobiledoc = f.mobiledoc
	case f.html != nil:
		doc, err := htmlToMobiledoc(*f.html)
		if err != nil {
			return ghost.PostInput{}, err
		}
		in.Mobiledoc = &doc
	}
	return in, nil
}

type createPostRequest struct {
	fields postFields
}

func (r createPostRequest) validate() error {
	if r.fields.title == nil {
		return missingField("title")
	}
	if r.fields.mobiledoc == nil && r.fields.html == nil {
		return invalidf("mobiledoc", "Either mobiledoc or html content is required")
	}
	return nil
}

func decodeCreatePost(r *ArgReader) createPostRequest {
	return createPostRequest{fields: decodePostFields(r)}
}

func (p *Posts) create(ctx context.Context, req createPostRequest) (string, error) {
	fields := req.fields
	fields.status = orDefault(fields.status, ghost.StatusDraft)
	fields.visibility = orDefault(fields.visibility, "public")
	if fields.featured == nil {
		featured := false
		fields.featured = &featured
	}
	fields.slug = nonEmpty(fields.slug)
	if *fields.visibility != "tiers" {
		fields.tiers = nil
	}

	in, err := fields.input()
	if err != nil {
		return "", err
	}
	post, err := p.gateway.AddPost(ctx, in)
	if err != nil {
		return "", err
	}
	return formatResponse("Post created successfully", post)
}

type updatePostRequest struct {
	id        *string
	updatedAt *string
	fields    postFields
}

func (r updatePostRequest) validate() error {
	if r.id == nil {
		return missingField("id")
	}
	return nil
}

func decodeUpdatePost(r *ArgReader) updatePostRequest {
	return updatePostRequest{
		id:        r.Identifier("id"),
		updatedAt: r.NonEmptyString("updated_at"),
		fields:    decodePostFields(r),
	}
}

func (p *Posts) update(ctx context.Context, req updatePostRequest) (string, error) {
	current, err := p.gateway.ReadPost(ctx, ghost.ByID(*req.id), ghost.ReadParams{})
	if err != nil {
		return "", err
	}

	in, err := req.fields.input()
	if err != nil {
		return "", err
	}
	in.UpdatedAt = versionToken(req.updatedAt, current)

	post, err := p.gateway.EditPost(ctx, *req.id, in, ghost.EditOptions{})
	if err != nil {
		return "", err
	}
	return formatResponse("Post updated successfully", post)
}

type deletePostRequest struct {
	id *string
}

func (r deletePostRequest) validate() error {
	if r.id == nil {
		return missingField("id")
	}
	return nil
}

func decodeDeletePost(r *ArgReader) deletePostRequest {
	return deletePostRequest{id: r.Identifier("id")}
}

func (p *Posts) delete(ctx context.Context, req deletePostRequest) (string, error) {
	if err := p.gateway.DeletePost(ctx, *req.id); err != nil {
		return "", err
	}
	return "Post deleted successfully", nil
}

type searchPostsRequest struct {
	query   *string
	limit   *int
	include string
}

func (r searchPostsRequest) validate() error {
	if r.query == nil || strings.TrimSpace(*r.query) == "" {
		return missingField("query")
	}
	if r.limit != nil && (*r.limit < 1 || *r.limit > 100) {
		return invalidf("limit", "limit must be between 1 and 100")
	}
	return nil
}

func decodeSearchPosts(r *ArgReader) searchPostsRequest {
	return searchPostsRequest{
		query:   r.String("query"),
		limit:   r.Int("limit"),
		include: r.CSV("include"),
	}
}

func (p *Posts) search(ctx context.Context, req searchPostsRequest) (string, error) {
	query := strings.TrimSpace(*req.query)
	list, err := p.gateway.SearchPosts(ctx, query, ghost.BrowseParams{
		Limit:   derefInt(req.limit),
		Include: req.include,
	})
	if err != nil {
		return "", err
	}
	return formatResponse(fmt.Sprintf("Found %d posts matching %q", len(list.Posts), query), list)
}

type bulkUpdateRequest struct {
	filter  *string
	data    any
	hasData bool
}

func (r bulkUpdateRequest) validate() error {
	if r.filter == nil || *r.filter == "" {
		return missingField("filter")
	}
	if !r.hasData {
		return missingField("data")
	}
	if _, ok := r.data.(map[string]any); !ok {
		return invalidf("data", "Update data must be an object")
	}
	return nil
}

func decodeBulkUpdate(r *ArgReader) bulkUpdateRequest {
	data, ok := r.raw("data")
	return bulkUpdateRequest{filter: r.Filter("filter"), data: data, hasData: ok}
}

func (p *Posts) bulkUpdate(ctx context.Context, req bulkUpdateRequest) (string, error) {
	data := maps.Clone(req.data.(map[string]any))
	stats, err := p.gateway.BulkEditPosts(ctx, *req.filter, data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Bulk update completed: %d successful, %d failed", stats.Successful, stats.Unsuccessful), nil
}

type bulkDeleteRequest struct {
	filter    *string
	confirmed bool
}

func (r bulkDeleteRequest) validate() error {
	if r.filter == nil || *r.filter == "" {
		return missingField("filter")
	}
	if !r.confirmed {
		return invalidf("confirm", "Confirmation required for bulk delete. Set confirm: true")
	}
	return nil
}

func decodeBulkDelete(r *ArgReader) bulkDeleteRequest {
	confirm, _ := r.raw("confirm")
	return bulkDeleteRequest{
		filter:    r.Filter("filter"),
		confirmed: confirm == true,
	}
}

func (p *Posts) bulkDelete(ctx context.Context, req bulkDeleteRequest) (string, error) {
	stats, err := p.gateway.BulkDeletePosts(ctx, *req.filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Bulk delete completed: %d posts deleted, %d failed", stats.Successful, stats.Unsuccessful), nil
}

// versionToken prefers the caller's token over the freshly read one.
func versionToken(explicit *string, current *ghost.Post) *string {
	if explicit != nil {
		return explicit
	}
	token := current.UpdatedAt
	return &token
}

func orDefault(value *string, fallback string) *string {
	if value == nil || *value == "" {
		return &fallback
	}
	return value
}

func nonEmpty(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}
