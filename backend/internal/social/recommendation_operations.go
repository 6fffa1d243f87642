package social

import (
	"context"
	"sort"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Hashtags
// ============================================================================

// RecommendHashtags suggests hashtags the caller has not pinned: hashtags of
// posts the caller clicked and hashtags pinned by profiles sharing a pin.
// Every suggestion weighs 1, so they are ordered by text. A short page is
// topped up with the most pinned hashtags. Anonymous callers get the most
// pinned hashtags directly.
func (e *Engine) RecommendHashtags(ctx context.Context, username string, page Page) ([]Hashtag, error) {
	offset, limit := e.window(page)
	var out []Hashtag
	err := e.view(ctx, "recommend_hashtags", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, username)
		if err != nil {
			return err
		}
		var pinned map[graphstore.NodeID]struct{}
		if v != nil {
			related, pins, err := relatedHashtags(ctx, tx, v)
			if err != nil {
				return err
			}
			pinned = pins
			tags, err := e.loadHashtags(ctx, tx, related)
			if err != nil {
				return err
			}
			for i := range tags {
				tags[i].Score = 1
			}
			sort.Slice(tags, func(i, j int) bool { return tags[i].Hashtag < tags[j].Hashtag })
			out = slice(tags, offset, limit)
			if len(out) >= limit {
				return nil
			}
		}
		popular, err := e.mostPinned(ctx, tx)
		if err != nil {
			return err
		}
		fallback := make([]Hashtag, 0, len(popular))
		for _, p := range popular {
			if _, mine := pinned[p.id]; !mine {
				fallback = append(fallback, p.tag)
			}
		}
		out = backfill("hashtags", out, slice(fallback, offset, limit), limit,
			func(h Hashtag) string { return h.Hashtag })
		return nil
	})
	return out, err
}

// relatedHashtags returns candidate hashtag ids and the caller's pins.
func relatedHashtags(ctx context.Context, tx graphstore.Txn, v *viewer) ([]graphstore.NodeID, map[graphstore.NodeID]struct{}, error) {
	pins, err := tx.Out(ctx, v.id, graphstore.ProfilePinnedHashtags)
	if err != nil {
		return nil, nil, err
	}
	pinned := graphstore.Set(pins)
	seen := map[graphstore.NodeID]struct{}{}
	var related []graphstore.NodeID
	add := func(tag graphstore.NodeID) {
		if _, mine := pinned[tag]; mine {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		related = append(related, tag)
	}

	for post := range v.clicked {
		tag, err := firstOut(ctx, tx, post, graphstore.PostHashtag)
		if err != nil {
			return nil, nil, err
		}
		if tag != "" {
			add(tag)
		}
	}
	for _, pin := range pins {
		co, err := tx.In(ctx, pin.ID, graphstore.ProfilePinnedHashtags)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range co {
			if p.ID == v.id {
				continue
			}
			theirs, err := tx.Out(ctx, p.ID, graphstore.ProfilePinnedHashtags)
			if err != nil {
				return nil, nil, err
			}
			for _, t := range theirs {
				add(t.ID)
			}
		}
	}
	return related, pinned, nil
}

// GetMostPinnedHashtags ranks hashtags by weighted pin and post counts.
func (e *Engine) GetMostPinnedHashtags(ctx context.Context, page Page) ([]Hashtag, error) {
	offset, limit := e.window(page)
	var out []Hashtag
	err := e.view(ctx, "get_most_pinned_hashtags", func(ctx context.Context, tx graphstore.Txn) error {
		popular, err := e.mostPinned(ctx, tx)
		if err != nil {
			return err
		}
		top := slice(popular, offset, limit)
		out = make([]Hashtag, len(top))
		for i, p := range top {
			out[i] = p.tag
		}
		return nil
	})
	return out, err
}

type rankedHashtag struct {
	id  graphstore.NodeID
	tag Hashtag
}

func (e *Engine) mostPinned(ctx context.Context, tx graphstore.Txn) ([]rankedHashtag, error) {
	ids, err := tx.Scan(ctx, graphstore.KindHashtag)
	if err != nil {
		return nil, err
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	tags, err := e.hashtagRows(ctx, tx, nodes)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		tags[i].tag.Score = e.opts.HashtagWeights.Score(tags[i].tag.PinnedBy, tags[i].tag.Posts)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].tag.Score != tags[j].tag.Score {
			return tags[i].tag.Score > tags[j].tag.Score
		}
		return tags[i].tag.Hashtag < tags[j].tag.Hashtag
	})
	return tags, nil
}

func (e *Engine) loadHashtags(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) ([]Hashtag, error) {
	if len(ids) == 0 {
		return []Hashtag{}, nil
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	rows, err := e.hashtagRows(ctx, tx, nodes)
	if err != nil {
		return nil, err
	}
	out := make([]Hashtag, len(rows))
	for i, r := range rows {
		out[i] = r.tag
	}
	return out, nil
}

func (e *Engine) hashtagRows(ctx context.Context, tx graphstore.Txn, nodes []graphstore.Node) ([]rankedHashtag, error) {
	ids := make([]graphstore.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	pins, err := tx.Counts(ctx, graphstore.HashtagPinnedBy, ids...)
	if err != nil {
		return nil, err
	}
	posts, err := tx.Counts(ctx, graphstore.HashtagPosts, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]rankedHashtag, len(nodes))
	for i, n := range nodes {
		out[i] = rankedHashtag{id: n.ID, tag: Hashtag{
			Hashtag:  n.Key,
			PinnedBy: pins[n.ID],
			Posts:    posts[n.ID],
		}}
	}
	return out, nil
}

// ============================================================================
// Profiles
// ============================================================================

// RecommendFriends suggests profiles followed by the profiles the caller
// follows, scored by how many of them follow each candidate. The caller,
// profiles the caller already follows and blocked profiles are excluded. A
// short page is topped up with the most followed profiles.
func (e *Engine) RecommendFriends(ctx context.Context, username string, page Page) ([]ProfileSummary, error) {
	offset, limit := e.window(page)
	var out []ProfileSummary
	err := e.view(ctx, "recommend_friends", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, username)
		if err != nil {
			return err
		}
		if v == nil {
			return apperrors.NewInvalidInput("username", "must not be empty")
		}

		mutual := map[graphstore.NodeID]int{}
		for friend := range v.following {
			theirs, err := tx.Out(ctx, friend, graphstore.ProfileFollowing)
			if err != nil {
				return err
			}
			for _, c := range theirs {
				if _, already := v.following[c.ID]; already || c.ID == v.id || v.blocks(c.ID) {
					continue
				}
				mutual[c.ID]++
			}
		}
		ids := make([]graphstore.NodeID, 0, len(mutual))
		for id := range mutual {
			ids = append(ids, id)
		}
		suggestions, err := loadSummaries(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range suggestions {
			suggestions[i].summary.Score = float64(mutual[suggestions[i].id])
		}
		sortSummaries(suggestions)
		out = summariesOf(slice(suggestions, offset, limit))
		if len(out) >= limit {
			return nil
		}

		popular, err := e.mostFollowed(ctx, tx, v)
		if err != nil {
			return err
		}
		out = backfill("friends", out, summariesOf(slice(popular, offset, limit)), limit,
			func(p ProfileSummary) string { return p.Username })
		return nil
	})
	return out, err
}

// GetMostFollowed ranks profiles by follower count. With a viewer, the viewer
// and blocked profiles are excluded.
func (e *Engine) GetMostFollowed(ctx context.Context, viewerName string, page Page) ([]ProfileSummary, error) {
	offset, limit := e.window(page)
	var out []ProfileSummary
	err := e.view(ctx, "get_most_followed", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		popular, err := e.mostFollowed(ctx, tx, v)
		if err != nil {
			return err
		}
		out = summariesOf(slice(popular, offset, limit))
		return nil
	})
	return out, err
}

func (e *Engine) mostFollowed(ctx context.Context, tx graphstore.Txn, v *viewer) ([]summaryRow, error) {
	ids, err := tx.Scan(ctx, graphstore.KindProfile)
	if err != nil {
		return nil, err
	}
	if v != nil {
		kept := ids[:0:0]
		for _, id := range ids {
			if id != v.id && !v.blocks(id) {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	rows, err := loadSummaries(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].summary.Score = float64(rows[i].summary.Followers)
	}
	sortSummaries(rows)
	return rows, nil
}

type summaryRow struct {
	id      graphstore.NodeID
	summary ProfileSummary
}

func loadSummaries(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) ([]summaryRow, error) {
	if len(ids) == 0 {
		return []summaryRow{}, nil
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	followers, err := tx.Counts(ctx, graphstore.ProfileFollowers, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]summaryRow, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, summaryRow{id: n.ID, summary: ProfileSummary{
			Author:    authorOf(n),
			Followers: followers[n.ID],
		}})
	}
	return out, nil
}

// sortSummaries orders by score, then username.
func sortSummaries(rows []summaryRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].summary, rows[j].summary
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Username < b.Username
	})
}

func summariesOf(rows []summaryRow) []ProfileSummary {
	out := make([]ProfileSummary, len(rows))
	for i, r := range rows {
		out[i] = r.summary
	}
	return out
}
