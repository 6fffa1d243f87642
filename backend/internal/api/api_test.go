package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/graphstore/badgerstore"
	"socialgraph/backend/internal/social"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []collab.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note collab.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return true
}

func (r *recordingNotifier) messages(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Username == username {
			out = append(out, n.Message)
		}
	}
	return out
}

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	auth     *collab.JWTAuthenticator
	notes    *recordingNotifier
	searcher *collab.MemorySearcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := badgerstore.Open(badgerstore.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	auth, err := collab.NewJWTAuthenticator("api-test-secret-with-enough-bytes", time.Hour)
	require.NoError(t, err)

	s := &testServer{
		t:        t,
		router:   gin.New(),
		auth:     auth,
		notes:    &recordingNotifier{},
		searcher: collab.NewMemorySearcher(),
	}
	s.router.Use(CORS())
	NewHandler(Deps{
		Engine:   social.NewEngine(store, social.DefaultOptions()),
		Auth:     auth,
		Notifier: s.notes,
		Searcher: s.searcher,
	}).Register(s.router)
	return s
}

func (s *testServer) token(id collab.Identity) string {
	s.t.Helper()
	token, err := s.auth.Issue(id)
	require.NoError(s.t, err)
	return token
}

// do sends a request as username; an empty username is anonymous.
func (s *testServer) do(method, path, username string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(collab.Identity{ID: "id-" + username, Username: username}))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) profiles(usernames ...string) {
	s.t.Helper()
	for _, u := range usernames {
		w := s.do(http.MethodPost, "/api/profiles", u, gin.H{"rname": u})
		require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	}
}

func (s *testServer) post(username, content, hashtag string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/posts", username, gin.H{"content": content, "hashtag": hashtag})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		OK     bool   `json:"ok"`
		PostID string `json:"postId"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(s.t, resp.OK)
	return resp.PostID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertOK(t *testing.T, w *httptest.ResponseRecorder, code int, ok bool) {
	t.Helper()
	assert.Equal(t, code, w.Code)
	assert.Equal(t, map[string]any{"ok": ok}, decode[map[string]any](t, w))
}

func postIDs(posts []social.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.PostID
	}
	return out
}

func TestCreatePost(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob")

	postID := s.post("alice", "hello @bob and @bob again", "Go!")

	w := s.do(http.MethodGet, "/api/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	post := decode[social.Post](t, w)
	assert.Equal(t, "go", post.Hashtag)
	assert.Equal(t, "alice", post.Author.Username)
	// the author's own view and click
	assert.Equal(t, social.PostCounts{Views: 1, Clicks: 1}, post.Counts)

	assert.Equal(t, []string{"@alice mentioned you in a post"}, s.notes.messages("bob"))
}

func TestCreatePost_RemovesIndexedBodyOnFailure(t *testing.T) {
	s := newTestServer(t)

	// carol is authenticated but has no profile
	w := s.do(http.MethodPost, "/api/posts", "carol", gin.H{"content": "orphan body", "hashtag": "x"})
	assertOK(t, w, http.StatusNotFound, false)

	hits, err := s.searcher.Search(context.Background(), "orphan", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCreatePost_RejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")

	assertOK(t, s.do(http.MethodPost, "/api/posts", "alice", gin.H{"content": "hi"}), http.StatusBadRequest, false)
	assertOK(t, s.do(http.MethodPost, "/api/posts", "alice", gin.H{"content": "hi", "hashtag": "!!"}), http.StatusBadRequest, false)
}

func TestMutationsRequireSignIn(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")
	postID := s.post("alice", "hello", "x")

	assertOK(t, s.do(http.MethodPost, "/api/posts/"+postID+"/like", "", nil), http.StatusUnauthorized, false)

	req, err := http.NewRequest(http.MethodPost, "/api/posts/"+postID+"/like", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assertOK(t, w, http.StatusUnauthorized, false)
}

func TestFailuresCollapse(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")

	assertOK(t, s.do(http.MethodGet, "/api/profiles/ghost", "", nil), http.StatusNotFound, false)
	assertOK(t, s.do(http.MethodPost, "/api/profiles/ghost/follow", "alice", nil), http.StatusNotFound, false)
	assertOK(t, s.do(http.MethodPost, "/api/profiles/alice/follow", "alice", nil), http.StatusBadRequest, false)

	w := s.do(http.MethodGet, "/api/profiles/ghost/posts", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestFollow_Notifies(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob")

	assertOK(t, s.do(http.MethodPost, "/api/profiles/alice/follow", "bob", nil), http.StatusOK, true)
	assert.Equal(t, []string{"@bob started following you"}, s.notes.messages("alice"))

	w := s.do(http.MethodGet, "/api/me/relationship/alice", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"following": true, "blocked": false}`, w.Body.String())

	profile := decode[social.Profile](t, s.do(http.MethodGet, "/api/profiles/alice", "bob", nil))
	assert.Equal(t, 1, profile.Followers)
	assert.True(t, profile.IsFollowing)

	// unfollowing does not notify
	assertOK(t, s.do(http.MethodDelete, "/api/profiles/alice/follow", "bob", nil), http.StatusOK, true)
	assert.Len(t, s.notes.messages("alice"), 1)
}

func TestComments_Notify(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob", "carol")
	postID := s.post("alice", "photo", "x")

	w := s.do(http.MethodPost, "/api/posts/"+postID+"/comments", "bob", gin.H{"comment": "nice @carol"})
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := decode[map[string]any](t, w)["commentId"].(string)

	assert.Equal(t, []string{"@bob mentioned you in a comment"}, s.notes.messages("carol"))
	assert.Equal(t, []string{"@bob commented on your post"}, s.notes.messages("alice"))

	assertOK(t, s.do(http.MethodPost, "/api/comments/"+commentID+"/like", "alice", nil), http.StatusOK, true)
	assert.Equal(t, []string{"@alice liked your comment"}, s.notes.messages("bob"))

	comments := decode[[]social.Comment](t, s.do(http.MethodGet, "/api/posts/"+postID+"/comments", "", nil))
	require.Len(t, comments, 1)
	assert.Equal(t, "nice @carol", comments[0].Text)
	assert.Equal(t, 1, comments[0].Likes)

	// only the comment owner may delete it
	assertOK(t, s.do(http.MethodDelete, "/api/comments/"+commentID, "alice", nil), http.StatusForbidden, false)
	assertOK(t, s.do(http.MethodDelete, "/api/comments/"+commentID, "bob", nil), http.StatusOK, true)
}

func TestHashtagFeed_RecordsServedViews(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob")
	postID := s.post("alice", "hello", "go")

	posts := decode[[]social.Post](t, s.do(http.MethodGet, "/api/hashtags/go/posts?page=0&size=5", "bob", nil))
	assert.Equal(t, []string{postID}, postIDs(posts))

	post := decode[social.Post](t, s.do(http.MethodGet, "/api/posts/"+postID, "", nil))
	assert.Equal(t, 2, post.Counts.Views)
	assert.Equal(t, 1, post.Counts.Clicks)

	newest := decode[[]social.Post](t, s.do(http.MethodGet, "/api/hashtags/go/posts?sort=newest", "", nil))
	assert.Equal(t, []string{postID}, postIDs(newest))
}

func TestSearch_HydratesAndFiltersBlocked(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob")
	graphPost := s.post("alice", "graph databases are fun", "x")
	s.post("alice", "cooking pasta", "y")

	posts := decode[[]social.Post](t, s.do(http.MethodGet, "/api/search?q=graph", "bob", nil))
	assert.Equal(t, []string{graphPost}, postIDs(posts))

	assertOK(t, s.do(http.MethodPost, "/api/profiles/alice/block", "bob", nil), http.StatusOK, true)
	w := s.do(http.MethodGet, "/api/search?q=graph", "bob", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/search", "", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDeletePost_RemovesIndexedBody(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice", "bob")
	postID := s.post("alice", "ephemeral words", "x")

	assertOK(t, s.do(http.MethodDelete, "/api/posts/"+postID, "bob", nil), http.StatusForbidden, false)
	assertOK(t, s.do(http.MethodDelete, "/api/posts/"+postID, "alice", nil), http.StatusOK, true)

	hits, err := s.searcher.Search(context.Background(), "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assertOK(t, s.do(http.MethodGet, "/api/posts/"+postID, "", nil), http.StatusNotFound, false)
}

func TestSetVerified_RequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")

	assertOK(t, s.do(http.MethodPut, "/api/profiles/alice/verified", "alice", gin.H{"value": true}), http.StatusForbidden, false)

	req, err := http.NewRequest(http.MethodPut, "/api/profiles/alice/verified", bytes.NewBufferString(`{"value": true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(collab.Identity{ID: "root", AuthType: adminAuthType, Username: "root"}))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assertOK(t, w, http.StatusOK, true)

	profile := decode[social.Profile](t, s.do(http.MethodGet, "/api/profiles/alice", "", nil))
	assert.True(t, profile.IsVerified)
}

func TestPinHashtag(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")

	assertOK(t, s.do(http.MethodPost, "/api/hashtags/GoLang/pin", "alice", nil), http.StatusOK, true)
	pinned := decode[[]social.Hashtag](t, s.do(http.MethodGet, "/api/me/pinned", "alice", nil))
	require.Len(t, pinned, 1)
	assert.Equal(t, "golang", pinned[0].Hashtag)

	popular := decode[[]social.Hashtag](t, s.do(http.MethodGet, "/api/hashtags/popular", "", nil))
	require.Len(t, popular, 1)
	assert.Equal(t, 1, popular[0].PinnedBy)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodOptions, "/api/feed", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol"}, mentions("hey @bob, @carol and @bob!"))
	assert.Empty(t, mentions("no mentions, mail@"))
}

func TestHugePageNumberIsEmpty(t *testing.T) {
	s := newTestServer(t)
	s.profiles("alice")
	s.post("alice", "hello", "x")

	w := s.do(http.MethodGet, "/api/posts/top?page=9223372036854775807&size=2", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
