package social

import (
	"context"
	"sort"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/internal/metrics"
)

// ============================================================================
// Hydration
// ============================================================================

// postRow is a hydrated post plus the node ids ranking needs.
type postRow struct {
	id     graphstore.NodeID
	author graphstore.NodeID
	post   Post
}

// loadPosts hydrates posts with derived counters, author and hashtag.
// Missing ids are skipped; order follows ids.
func loadPosts(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) ([]postRow, error) {
	if len(ids) == 0 {
		return []postRow{}, nil
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	ids = make([]graphstore.NodeID, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind == graphstore.KindPost {
			ids = append(ids, n.ID)
		}
	}

	counters := map[graphstore.Label]map[graphstore.NodeID]int{}
	for _, label := range []graphstore.Label{
		graphstore.PostLikes, graphstore.PostComments, graphstore.PostViews, graphstore.PostClickedOn,
	} {
		c, err := tx.Counts(ctx, label, ids...)
		if err != nil {
			return nil, err
		}
		counters[label] = c
	}

	rows := make([]postRow, 0, len(ids))
	var authorIDs []graphstore.NodeID
	for _, n := range nodes {
		if n.Kind != graphstore.KindPost {
			continue
		}
		author, err := firstOut(ctx, tx, n.ID, graphstore.PostUsername)
		if err != nil {
			return nil, err
		}
		hashtag := ""
		if tag, err := firstOut(ctx, tx, n.ID, graphstore.PostHashtag); err != nil {
			return nil, err
		} else if tag != "" {
			keys, err := keysOf(ctx, tx, []graphstore.NodeID{tag})
			if err != nil {
				return nil, err
			}
			if len(keys) == 1 {
				hashtag = keys[0]
			}
		}
		if author != "" {
			authorIDs = append(authorIDs, author)
		}
		rows = append(rows, postRow{
			id:     n.ID,
			author: author,
			post: Post{
				PostID:    n.Key,
				Hashtag:   hashtag,
				Timestamp: n.Int(graphstore.PropTimestamp),
				Counts: PostCounts{
					Likes:    counters[graphstore.PostLikes][n.ID],
					Comments: counters[graphstore.PostComments][n.ID],
					Views:    counters[graphstore.PostViews][n.ID],
					Clicks:   counters[graphstore.PostClickedOn][n.ID],
				},
			},
		})
	}

	authors, err := loadAuthors(ctx, tx, authorIDs)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].post.Author = authors[rows[i].author]
	}
	return rows, nil
}

func loadAuthors(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) (map[graphstore.NodeID]Author, error) {
	out := make(map[graphstore.NodeID]Author, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		out[n.ID] = authorOf(n)
	}
	return out, nil
}

func authorOf(n graphstore.Node) Author {
	return Author{
		Username:       n.Key,
		Name:           n.String(graphstore.PropRealName),
		ProfilePicture: n.String(graphstore.PropProfilePicture),
		IsVerified:     n.Bool(graphstore.PropIsVerified),
	}
}

// ============================================================================
// Viewer Context
// ============================================================================

// viewer holds the caller's exclusion sets. A nil viewer is anonymous.
type viewer struct {
	id        graphstore.NodeID
	username  string
	viewed    map[graphstore.NodeID]struct{}
	clicked   map[graphstore.NodeID]int
	blocked   map[graphstore.NodeID]struct{}
	following map[graphstore.NodeID]struct{}
	liked     map[graphstore.NodeID]struct{}
}

// loadViewer resolves username and its exclusion sets. An empty username
// is anonymous; an unknown one is NotFound.
func loadViewer(ctx context.Context, tx graphstore.Txn, username string) (*viewer, error) {
	if username == "" {
		return nil, nil
	}
	id, err := resolveProfile(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	v := &viewer{id: id, username: username, clicked: map[graphstore.NodeID]int{}}

	sets := []struct {
		label graphstore.Label
		dst   *map[graphstore.NodeID]struct{}
	}{
		{graphstore.ProfileViewed, &v.viewed},
		{graphstore.ProfileBlockedUsers, &v.blocked},
		{graphstore.ProfileFollowing, &v.following},
		{graphstore.ProfileLikes, &v.liked},
	}
	for _, s := range sets {
		ns, err := tx.Out(ctx, id, s.label)
		if err != nil {
			return nil, err
		}
		*s.dst = graphstore.Set(ns)
	}

	clicks, err := tx.Out(ctx, id, graphstore.ProfileClickedOn)
	if err != nil {
		return nil, err
	}
	for _, c := range clicks {
		v.clicked[c.ID] = c.Facet
	}
	return v, nil
}

// blocks reports whether the viewer blocked author.
func (v *viewer) blocks(author graphstore.NodeID) bool {
	if v == nil {
		return false
	}
	_, ok := v.blocked[author]
	return ok
}

func (v *viewer) hasViewed(post graphstore.NodeID) bool {
	if v == nil {
		return false
	}
	_, ok := v.viewed[post]
	return ok
}

func (v *viewer) markLiked(rows []postRow) {
	if v == nil {
		return
	}
	for i := range rows {
		_, rows[i].post.Liked = v.liked[rows[i].id]
	}
}

// filterPosts drops posts by blocked authors and, when unseen is set, posts
// the viewer already viewed.
func filterPosts(rows []postRow, v *viewer, unseen bool) []postRow {
	if v == nil {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if v.blocks(r.author) || (unseen && v.hasViewed(r.id)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ============================================================================
// Ordering
// ============================================================================

func (e *Engine) scorePosts(rows []postRow) {
	for i := range rows {
		rows[i].post.Score = e.opts.Weights.Score(rows[i].post.Counts)
	}
}

// sortByScore orders by score, then newest, then postId.
func sortByScore(rows []postRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].post, rows[j].post
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.PostID < b.PostID
	})
}

// sortByNewest orders by timestamp, then postId.
func sortByNewest(rows []postRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].post, rows[j].post
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.PostID < b.PostID
	})
}

func postsOf(rows []postRow) []Post {
	out := make([]Post, len(rows))
	for i, r := range rows {
		out[i] = r.post
	}
	return out
}

// ============================================================================
// Backfill
// ============================================================================

// backfill appends fallback items not already present until limit is
// reached and records how many were added under flow.
func backfill[T any](flow string, primary, fallback []T, limit int, key func(T) string) []T {
	if primary == nil {
		primary = []T{}
	}
	if len(primary) >= limit {
		return primary
	}
	seen := make(map[string]struct{}, len(primary))
	for _, p := range primary {
		seen[key(p)] = struct{}{}
	}
	added := 0
	for _, f := range fallback {
		if len(primary) >= limit {
			break
		}
		k := key(f)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		primary = append(primary, f)
		added++
	}
	metrics.RecordBackfill(flow, added)
	return primary
}

func postKey(p Post) string { return p.PostID }
