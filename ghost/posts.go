package ghost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Post statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
)

// Post is the read shape of a Ghost post.
type Post struct {
	ID                  string  `json:"id"`
	UUID                string  `json:"uuid,omitempty"`
	Title               string  `json:"title"`
	Slug                string  `json:"slug"`
	Mobiledoc           *string `json:"mobiledoc,omitempty"`
	HTML                *string `json:"html,omitempty"`
	CommentID           string  `json:"comment_id,omitempty"`
	Status              string  `json:"status"`
	Visibility          string  `json:"visibility,omitempty"`
	Featured            bool    `json:"featured"`
	EmailOnly           bool    `json:"email_only,omitempty"`
	CreatedAt           string  `json:"created_at,omitempty"`
	UpdatedAt           string  `json:"updated_at,omitempty"`
	PublishedAt         *string `json:"published_at"`
	URL                 string  `json:"url,omitempty"`
	Excerpt             string  `json:"excerpt,omitempty"`
	CustomExcerpt       *string `json:"custom_excerpt,omitempty"`
	ReadingTime         int     `json:"reading_time,omitempty"`
	FeatureImage        *string `json:"feature_image,omitempty"`
	FeatureImageAlt     *string `json:"feature_image_alt,omitempty"`
	FeatureImageCaption *string `json:"feature_image_caption,omitempty"`
	CodeinjectionHead   *string `json:"codeinjection_head,omitempty"`
	CodeinjectionFoot   *string `json:"codeinjection_foot,omitempty"`
	CustomTemplate      *string `json:"custom_template,omitempty"`
	CanonicalURL        *string `json:"canonical_url,omitempty"`
	MetaTitle           *string `json:"meta_title,omitempty"`
	MetaDescription     *string `json:"meta_description,omitempty"`
	OGImage             *string `json:"og_image,omitempty"`
	OGTitle             *string `json:"og_title,omitempty"`
	OGDescription       *string `json:"og_description,omitempty"`
	TwitterImage        *string `json:"twitter_image,omitempty"`
	TwitterTitle        *string `json:"twitter_title,omitempty"`
	TwitterDescription  *string `json:"twitter_description,omitempty"`
	Tags                []any   `json:"tags,omitempty"`
	Authors             []any   `json:"authors,omitempty"`
	Tiers               []any   `json:"tiers,omitempty"`
	PrimaryTag          any     `json:"primary_tag,omitempty"`
	PrimaryAuthor       any     `json:"primary_author,omitempty"`
}

// Pagination is Ghost's browse metadata.
type Pagination struct {
	Page  int `json:"page"`
	Limit any `json:"limit"`
	Pages int `json:"pages"`
	Total int `json:"total"`
	Next  any `json:"next"`
	Prev  any `json:"prev"`
}

// Meta wraps pagination metadata.
type Meta struct {
	Pagination Pagination `json:"pagination"`
}

// PostList is one page of posts.
type PostList struct {
	Posts []Post `json:"posts"`
	Meta  Meta   `json:"meta"`
}

// PostInput is the write shape of a post. Nil fields are not sent.
type PostInput struct {
	Title              *string `json:"title,omitempty"`
	Slug               *string `json:"slug,omitempty"`
	Mobiledoc          *string `json:"mobiledoc,omitempty"`
	Status             *string `json:"status,omitempty"`
	Visibility         *string `json:"visibility,omitempty"`
	Featured           *bool   `json:"featured,omitempty"`
	EmailOnly          *bool   `json:"email_only,omitempty"`
	PublishedAt        *string `json:"published_at,omitempty"`
	UpdatedAt          *string `json:"updated_at,omitempty"`
	Tags               *[]any  `json:"tags,omitempty"`
	Authors            *[]any  `json:"authors,omitempty"`
	Tiers              *[]any  `json:"tiers,omitempty"`
	CustomExcerpt      *string `json:"custom_excerpt,omitempty"`
	FeatureImage       *string `json:"feature_image,omitempty"`
	CodeinjectionHead  *string `json:"codeinjection_head,omitempty"`
	CodeinjectionFoot  *string `json:"codeinjection_foot,omitempty"`
	CustomTemplate     *string `json:"custom_template,omitempty"`
	CanonicalURL       *string `json:"canonical_url,omitempty"`
	MetaTitle          *string `json:"meta_title,omitempty"`
	MetaDescription    *string `json:"meta_description,omitempty"`
	OGImage            *string `json:"og_image,omitempty"`
	OGTitle            *string `json:"og_title,omitempty"`
	OGDescription      *string `json:"og_description,omitempty"`
	TwitterImage       *string `json:"twitter_image,omitempty"`
	TwitterTitle       *string `json:"twitter_title,omitempty"`
	TwitterDescription *string `json:"twitter_description,omitempty"`

	SendEmailWhenPublished *bool   `json:"send_email_when_published,omitempty"`
	EmailSegment           *string `json:"email_segment,omitempty"`
}

// Lookup addresses a single entity by one identifying field.
type Lookup struct {
	Field string
	Value string
}

// ByID looks an entity up by id.
func ByID(id string) Lookup { return Lookup{Field: "id", Value: id} }

// BySlug looks an entity up by slug.
func BySlug(slug string) Lookup { return Lookup{Field: "slug", Value: slug} }

// ByEmail looks an entity up by email.
func ByEmail(email string) Lookup { return Lookup{Field: "email", Value: email} }

func (l Lookup) path(resource string) (string, error) {
	value := strings.TrimSpace(l.Value)
	if value == "" {
		return "", fmt.Errorf("ghost: %s lookup value is empty", l.Field)
	}
	escaped := url.PathEscape(value)
	switch l.Field {
	case "", "id":
		return resource + "/" + escaped, nil
	case "slug":
		return resource + "/slug/" + escaped, nil
	case "email":
		return resource + "/email/" + escaped, nil
	default:
		return "", fmt.Errorf("ghost: unsupported lookup field %q", l.Field)
	}
}

// BrowseParams are the query parameters of a browse call.
type BrowseParams struct {
	Limit   int
	Page    int
	Filter  string
	Order   string
	Include string
	Fields  string
	Formats string
}

func (p BrowseParams) values() url.Values {
	v := url.Values{}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	v.Set("filter", p.Filter)
	v.Set("order", p.Order)
	v.Set("include", p.Include)
	v.Set("fields", p.Fields)
	v.Set("formats", p.Formats)
	return v
}

// ReadParams are the query parameters of a read call.
type ReadParams struct {
	Include string
	Fields  string
	Formats string
}

func (p ReadParams) values() url.Values {
	v := url.Values{}
	v.Set("include", p.Include)
	v.Set("fields", p.Fields)
	v.Set("formats", p.Formats)
	return v
}

// EditOptions carry query parameters of a post edit.
type EditOptions struct {
	// Newsletter is the newsletter slug to email when the edit publishes.
	Newsletter string
}

// BulkStats reports the outcome of a bulk operation.
type BulkStats struct {
	Successful   int `json:"successful"`
	Unsuccessful int `json:"unsuccessful"`
}

type bulkResponse struct {
	Bulk struct {
		Meta struct {
			Stats BulkStats `json:"stats"`
		} `json:"meta"`
	} `json:"bulk"`
}

type postsEnvelope struct {
	Posts []Post `json:"posts"`
}

type postInputEnvelope struct {
	Posts []PostInput `json:"posts"`
}

// BrowsePosts lists posts. Drafts are included, so the Admin API is used.
func (c *Client) BrowsePosts(ctx context.Context, params BrowseParams) (*PostList, error) {
	var out PostList
	err := c.do(ctx, request{
		method: http.MethodGet,
		api:    adminAPI,
		path:   "posts",
		query:  params.values(),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if out.Posts == nil {
		out.Posts = []Post{}
	}
	return &out, nil
}

// ReadPost fetches one post by id or slug.
func (c *Client) ReadPost(ctx context.Context, lookup Lookup, params ReadParams) (*Post, error) {
	path, err := lookup.path("posts")
	if err != nil {
		return nil, err
	}
	var out postsEnvelope
	err = c.do(ctx, request{
		method: http.MethodGet,
		api:    adminAPI,
		path:   path,
		query:  params.values(),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Posts) == 0 {
		return nil, notFound("Post")
	}
	return &out.Posts[0], nil
}

// AddPost creates a post.
func (c *Client) AddPost(ctx context.Context, in PostInput) (*Post, error) {
	return c.writePost(ctx, http.MethodPost, "posts", nil, in)
}

// EditPost updates a post. in.UpdatedAt must carry the version token.
func (c *Client) EditPost(ctx context.Context, id string, in PostInput, opts EditOptions) (*Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("ghost: post id is required")
	}
	query := url.Values{}
	query.Set("newsletter", strings.TrimSpace(opts.Newsletter))
	return c.writePost(ctx, http.MethodPut, "posts/"+url.PathEscape(id), query, in)
}

func (c *Client) writePost(ctx context.Context, method, path string, query url.Values, in PostInput) (*Post, error) {
	var out postsEnvelope
	err := c.do(ctx, request{
		method: method,
		api:    adminAPI,
		path:   path,
		query:  query,
		body:   postInputEnvelope{Posts: []PostInput{in}},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Posts) == 0 {
		return nil, &Error{Kind: KindUnknown, Message: "backend returned no post"}
	}
	return &out.Posts[0], nil
}

// DeletePost permanently deletes a post.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("ghost: post id is required")
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		api:    adminAPI,
		path:   "posts/" + url.PathEscape(id),
	})
}

// SearchFilter builds the NQL filter matching query against title or slug.
func SearchFilter(query string) string {
	escaped := strings.ReplaceAll(query, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("title:~'%s',slug:~'%s'", escaped, escaped)
}

// SearchPosts is a browse filtered by SearchFilter(query).
func (c *Client) SearchPosts(ctx context.Context, query string, params BrowseParams) (*PostList, error) {
	params.Filter = SearchFilter(query)
	return c.BrowsePosts(ctx, params)
}

// BulkEditPosts applies data to every post matching filter.
func (c *Client) BulkEditPosts(ctx context.Context, filter string, data map[string]any) (BulkStats, error) {
	query := url.Values{}
	query.Set("filter", filter)
	body := map[string]any{
		"bulk": map[string]any{
			"action": "updatePosts",
			"meta": map[string]any{
				"filter": filter,
				"data":   data,
			},
		},
	}
	var out bulkResponse
	err := c.do(ctx, request{
		method: http.MethodPut,
		api:    adminAPI,
		path:   "posts/bulk",
		query:  query,
		body:   body,
		out:    &out,
	})
	if err != nil {
		return BulkStats{}, err
	}
	return out.Bulk.Meta.Stats, nil
}

// BulkDeletePosts deletes every post matching filter.
func (c *Client) BulkDeletePosts(ctx context.Context, filter string) (BulkStats, error) {
	query := url.Values{}
	query.Set("filter", filter)
	var out bulkResponse
	err := c.do(ctx, request{
		method: http.MethodDelete,
		api:    adminAPI,
		path:   "posts",
		query:  query,
		out:    &out,
	})
	if err != nil {
		return BulkStats{}, err
	}
	return out.Bulk.Meta.Stats, nil
}
