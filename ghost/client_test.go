package ghost

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/petal-labs/ghostmcp/queue"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		URL:           srv.URL,
		AdminAPIKey:   testAdminKey,
		ContentAPIKey: "content-key",
		HTTPClient:    srv.Client(),
		Queue:         queue.New(queue.Config{Concurrency: 2}),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []Config{
		{AdminAPIKey: testAdminKey},
		{URL: "ftp://example.com", AdminAPIKey: testAdminKey},
		{URL: "https://example.com"},
		{URL: "https://example.com", AdminAPIKey: "broken"},
	}
	for _, cfg := range tests {
		if _, err := NewClient(cfg); err == nil {
			t.Fatalf("NewClient(%+v) error = nil, want error", cfg)
		}
	}
}

func TestBrowsePostsUsesAdminAPI(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/ghost/api/admin/posts/" {
			t.Errorf("path = %s, want /ghost/api/admin/posts/", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Ghost ") {
			t.Errorf("Authorization = %q, want Ghost token", r.Header.Get("Authorization"))
		}
		if got := r.Header.Get("Accept-Version"); got != DefaultAPIVersion {
			t.Errorf("Accept-Version = %q, want %q", got, DefaultAPIVersion)
		}
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("filter") != "status:draft" {
			t.Errorf("query = %v, want limit=5 filter=status:draft", q)
		}
		if q.Has("order") || q.Has("key") {
			t.Errorf("query = %v, want empty params omitted and no content key", q)
		}
		_, _ = io.WriteString(w, `{"posts":[{"id":"1","title":"First"},{"id":"2","title":"Second"}],"meta":{"pagination":{"page":1,"limit":5,"pages":1,"total":2}}}`)
	})

	list, err := client.BrowsePosts(context.Background(), BrowseParams{Limit: 5, Filter: "status:draft"})
	if err != nil {
		t.Fatalf("BrowsePosts() error = %v", err)
	}
	if len(list.Posts) != 2 || list.Posts[1].Title != "Second" {
		t.Fatalf("posts = %+v, want two posts", list.Posts)
	}
	if list.Meta.Pagination.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Meta.Pagination.Total)
	}
}

func TestReadPostBySlugAndMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ghost/api/admin/posts/slug/hello-world/":
			_, _ = io.WriteString(w, `{"posts":[{"id":"1","slug":"hello-world","status":"draft","updated_at":"2026-01-01T00:00:00.000Z"}]}`)
		default:
			_, _ = io.WriteString(w, `{"posts":[]}`)
		}
	})

	post, err := client.ReadPost(context.Background(), BySlug("hello-world"), ReadParams{})
	if err != nil {
		t.Fatalf("ReadPost() error = %v", err)
	}
	if post.ID != "1" || post.UpdatedAt == "" {
		t.Fatalf("post = %+v", post)
	}

	_, err = client.ReadPost(context.Background(), ByID("missing"), ReadParams{})
	if KindOf(err) != KindNotFound {
		t.Fatalf("ReadPost(missing) error = %v, want NotFound", err)
	}
}

func TestClientClassifiesBackendErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"errors":[{"message":"Too many requests"}]}`)
	})

	_, err := client.BrowsePosts(context.Background(), BrowseParams{})
	ghostErr, ok := ErrorFrom(err)
	if !ok {
		t.Fatalf("error = %v, want *Error", err)
	}
	if ghostErr.Kind != KindRateLimited || ghostErr.RetryAfter != 30 {
		t.Fatalf("error = %+v, want RateLimited(30)", ghostErr)
	}
}

func TestClientTransportFailureIsServerError(t *testing.T) {
	client, err := NewClient(Config{
		URL:         "https://ghost.unit-test.local",
		AdminAPIKey: testAdminKey,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = client.DeletePost(context.Background(), "1")
	if KindOf(err) != KindServerError {
		t.Fatalf("DeletePost() error = %v, want ServerError", err)
	}
}

func TestTagsReadThroughContentAPI(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ghost/api/content/tags/" {
			t.Errorf("path = %s, want content tags path", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "content-key" {
			t.Errorf("key = %q, want content-key", r.URL.Query().Get("key"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("content request carried an Authorization header")
		}
		_, _ = io.WriteString(w, `{"tags":[{"id":"t1","name":"News"}],"meta":{"pagination":{"page":1,"limit":15,"pages":1,"total":1}}}`)
	})

	list, err := client.Browse(context.Background(), Tags, BrowseParams{})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if len(list.Items) != 1 || list.Items[0]["name"] != "News" {
		t.Fatalf("items = %+v", list.Items)
	}
}

func TestMemberEmailLookupUsesFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ghost/api/admin/members/" {
			t.Errorf("path = %s, want members browse", r.URL.Path)
		}
		if got := r.URL.Query().Get("filter"); got != "email:'jo@example.com'" {
			t.Errorf("filter = %q", got)
		}
		_, _ = io.WriteString(w, `{"members":[{"id":"m1","email":"jo@example.com"}]}`)
	})

	member, err := client.Read(context.Background(), Members, ByEmail("jo@example.com"), ReadParams{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if member["id"] != "m1" {
		t.Fatalf("member = %+v", member)
	}
}

func TestEditPostSendsTokenAndNewsletter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/ghost/api/admin/posts/p1/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("newsletter"); got != "weekly" {
			t.Errorf("newsletter = %q, want weekly", got)
		}
		var body struct {
			Posts []map[string]any `json:"posts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Posts) != 1 || body.Posts[0]["updated_at"] != "2026-01-01T00:00:00.000Z" {
			t.Errorf("body = %+v, want version token", body.Posts)
		}
		if _, ok := body.Posts[0]["title"]; ok {
			t.Errorf("unset title was sent")
		}
		_, _ = io.WriteString(w, `{"posts":[{"id":"p1","status":"published"}]}`)
	})

	status := StatusPublished
	token := "2026-01-01T00:00:00.000Z"
	post, err := client.EditPost(context.Background(), "p1", PostInput{Status: &status, UpdatedAt: &token}, EditOptions{Newsletter: "weekly"})
	if err != nil {
		t.Fatalf("EditPost() error = %v", err)
	}
	if post.Status != StatusPublished {
		t.Fatalf("status = %q", post.Status)
	}
}

func TestEditEntityWrapsBodyWithoutQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/ghost/api/admin/tags/t1/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		var body struct {
			Tags []map[string]any `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Tags) != 1 || body.Tags[0]["name"] != "News" {
			t.Errorf("body = %+v", body.Tags)
		}
		_, _ = io.WriteString(w, `{"tags":[{"id":"t1","name":"News"}]}`)
	})

	tag, err := client.Edit(context.Background(), Tags, " t1 ", Entity{"name": "News"})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if tag["id"] != "t1" {
		t.Fatalf("tag = %+v", tag)
	}
}

func TestBulkEditPostsShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/ghost/api/admin/posts/bulk/" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("filter"); got != "status:draft" {
			t.Errorf("filter = %q", got)
		}
		var body struct {
			Bulk struct {
				Action string `json:"action"`
				Meta   struct {
					Filter string         `json:"filter"`
					Data   map[string]any `json:"data"`
				} `json:"meta"`
			} `json:"bulk"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Bulk.Action != "updatePosts" || body.Bulk.Meta.Data["featured"] != true {
			t.Errorf("body = %+v", body)
		}
		_, _ = io.WriteString(w, `{"bulk":{"meta":{"stats":{"successful":3,"unsuccessful":1}}}}`)
	})

	stats, err := client.BulkEditPosts(context.Background(), "status:draft", map[string]any{"featured": true})
	if err != nil {
		t.Fatalf("BulkEditPosts() error = %v", err)
	}
	if stats.Successful != 3 || stats.Unsuccessful != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSearchFilterEscapesQuotes(t *testing.T) {
	got := SearchFilter("it's")
	want := `title:~'it\'s',slug:~'it\'s'`
	if got != want {
		t.Fatalf("SearchFilter() = %q, want %q", got, want)
	}
}

func TestRequestsGoThroughQueue(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"site":{"title":"T","url":"https://x","version":"5.0"}}`)
	})

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { done <- client.Ping(context.Background()) }()
	}
	<-entered
	<-entered

	deadline := time.Now().Add(2 * time.Second)
	for client.Queue().Stats().Pending != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stats = %+v, want one pending request behind the concurrency cap", client.Queue().Stats())
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
}
