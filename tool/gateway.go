package tool

import (
	"context"

	"github.com/petal-labs/ghostmcp/ghost"
)

// PostGateway is the backend surface used by the post tools.
type PostGateway interface {
	BrowsePosts(ctx context.Context, params ghost.BrowseParams) (*ghost.PostList, error)
	ReadPost(ctx context.Context, lookup ghost.Lookup, params ghost.ReadParams) (*ghost.Post, error)
	AddPost(ctx context.Context, in ghost.PostInput) (*ghost.Post, error)
	EditPost(ctx context.Context, id string, in ghost.PostInput, opts ghost.EditOptions) (*ghost.Post, error)
	DeletePost(ctx context.Context, id string) error
	SearchPosts(ctx context.Context, query string, params ghost.BrowseParams) (*ghost.PostList, error)
	BulkEditPosts(ctx context.Context, filter string, data map[string]any) (ghost.BulkStats, error)
	BulkDeletePosts(ctx context.Context, filter string) (ghost.BulkStats, error)
}

// ResourceGateway is the backend surface used by secondary entity tools.
type ResourceGateway interface {
	Browse(ctx context.Context, r ghost.Resource, params ghost.BrowseParams) (*ghost.EntityList, error)
	Read(ctx context.Context, r ghost.Resource, lookup ghost.Lookup, params ghost.ReadParams) (ghost.Entity, error)
	Add(ctx context.Context, r ghost.Resource, e ghost.Entity) (ghost.Entity, error)
	Edit(ctx context.Context, r ghost.Resource, id string, e ghost.Entity) (ghost.Entity, error)
	Delete(ctx context.Context, r ghost.Resource, id string) error
}

// SiteGateway is the backend surface used by site-level tools.
type SiteGateway interface {
	Site(ctx context.Context) (*ghost.Site, error)
	Settings(ctx context.Context) (any, error)
	EditSettings(ctx context.Context, settings []ghost.Setting) ([]ghost.Setting, error)
	ActivateTheme(ctx context.Context, name string) (ghost.Entity, error)
	DeleteTheme(ctx context.Context, name string) error
}

// Gateway is the full backend surface.
type Gateway interface {
	PostGateway
	ResourceGateway
	SiteGateway
}

var _ Gateway = (*ghost.Client)(nil)
