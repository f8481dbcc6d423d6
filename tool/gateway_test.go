package tool

import (
	"context"
	"sync"

	"github.com/petal-labs/ghostmcp/ghost"
)

type editCall struct {
	id   string
	in   ghost.PostInput
	opts ghost.EditOptions
}

type entityCall struct {
	resource string
	id       string
	entity   ghost.Entity
	lookup   ghost.Lookup
}

// fakeGateway records every backend call and serves canned responses.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	post     *ghost.Post
	list     *ghost.PostList
	readErr  error
	writeErr error
	stats    ghost.BulkStats

	added       []ghost.PostInput
	edits       []editCall
	reads       []ghost.Lookup
	searchQuery string
	bulkFilter  string
	bulkData    map[string]any

	entity     ghost.Entity
	entityList *ghost.EntityList
	entityOps  []entityCall
	settings   []ghost.Setting

	block bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: map[string]int{}}
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeGateway) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeGateway) BrowsePosts(ctx context.Context, params ghost.BrowseParams) (*ghost.PostList, error) {
	f.record("BrowsePosts")
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.list, nil
}

func (f *fakeGateway) ReadPost(ctx context.Context, lookup ghost.Lookup, params ghost.ReadParams) (*ghost.Post, error) {
	f.record("ReadPost")
	f.mu.Lock()
	f.reads = append(f.reads, lookup)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.readErr != nil {
		return nil, f.readErr
	}
	post := *f.post
	return &post, nil
}

func (f *fakeGateway) AddPost(ctx context.Context, in ghost.PostInput) (*ghost.Post, error) {
	f.record("AddPost")
	f.mu.Lock()
	f.added = append(f.added, in)
	f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &ghost.Post{ID: "new", Title: deref(in.Title), Status: deref(in.Status)}, nil
}

func (f *fakeGateway) EditPost(ctx context.Context, id string, in ghost.PostInput, opts ghost.EditOptions) (*ghost.Post, error) {
	f.record("EditPost")
	f.mu.Lock()
	f.edits = append(f.edits, editCall{id: id, in: in, opts: opts})
	f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &ghost.Post{ID: id, Status: deref(in.Status), UpdatedAt: "2026-02-02T00:00:00.000Z"}, nil
}

func (f *fakeGateway) DeletePost(ctx context.Context, id string) error {
	f.record("DeletePost")
	return f.writeErr
}

func (f *fakeGateway) SearchPosts(ctx context.Context, query string, params ghost.BrowseParams) (*ghost.PostList, error) {
	f.record("SearchPosts")
	f.searchQuery = query
	return f.list, f.readErr
}

func (f *fakeGateway) BulkEditPosts(ctx context.Context, filter string, data map[string]any) (ghost.BulkStats, error) {
	f.record("BulkEditPosts")
	f.bulkFilter = filter
	f.bulkData = data
	return f.stats, f.writeErr
}

func (f *fakeGateway) BulkDeletePosts(ctx context.Context, filter string) (ghost.BulkStats, error) {
	f.record("BulkDeletePosts")
	f.bulkFilter = filter
	return f.stats, f.writeErr
}

func (f *fakeGateway) Browse(ctx context.Context, r ghost.Resource, params ghost.BrowseParams) (*ghost.EntityList, error) {
	f.record("Browse")
	return f.entityList, f.readErr
}

func (f *fakeGateway) Read(ctx context.Context, r ghost.Resource, lookup ghost.Lookup, params ghost.ReadParams) (ghost.Entity, error) {
	f.record("Read")
	f.mu.Lock()
	f.entityOps = append(f.entityOps, entityCall{resource: r.Name, lookup: lookup})
	f.mu.Unlock()
	return f.entity, f.readErr
}

func (f *fakeGateway) Add(ctx context.Context, r ghost.Resource, e ghost.Entity) (ghost.Entity, error) {
	f.record("Add")
	f.mu.Lock()
	f.entityOps = append(f.entityOps, entityCall{resource: r.Name, entity: e})
	f.mu.Unlock()
	return e, f.writeErr
}

func (f *fakeGateway) Edit(ctx context.Context, r ghost.Resource, id string, e ghost.Entity) (ghost.Entity, error) {
	f.record("Edit")
	f.mu.Lock()
	f.entityOps = append(f.entityOps, entityCall{resource: r.Name, id: id, entity: e})
	f.mu.Unlock()
	return e, f.writeErr
}

func (f *fakeGateway) Delete(ctx context.Context, r ghost.Resource, id string) error {
	f.record("Delete")
	return f.writeErr
}

func (f *fakeGateway) Site(ctx context.Context) (*ghost.Site, error) {
	f.record("Site")
	return &ghost.Site{Title: "Unit Test", URL: "https://unit.test", Version: "5.0"}, f.readErr
}

func (f *fakeGateway) Settings(ctx context.Context) (any, error) {
	f.record("Settings")
	return map[string]any{"title": "Unit Test"}, f.readErr
}

func (f *fakeGateway) EditSettings(ctx context.Context, settings []ghost.Setting) ([]ghost.Setting, error) {
	f.record("EditSettings")
	f.settings = settings
	return settings, f.writeErr
}

func (f *fakeGateway) ActivateTheme(ctx context.Context, name string) (ghost.Entity, error) {
	f.record("ActivateTheme")
	return ghost.Entity{"name": name, "active": true}, f.writeErr
}

func (f *fakeGateway) DeleteTheme(ctx context.Context, name string) error {
	f.record("DeleteTheme")
	return f.writeErr
}

var _ Gateway = (*fakeGateway)(nil)
