package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// resolve maps a business key to its node id with one exact-index read.
func resolve(ctx context.Context, tx graphstore.Txn, kind graphstore.Kind, key string) (graphstore.NodeID, error) {
	if key == "" {
		return "", apperrors.NewNotFound(strings.ToLower(string(kind)), key)
	}
	id, err := tx.Lookup(ctx, kind, key)
	if errors.Is(err, graphstore.ErrNotFound) {
		return "", apperrors.NewNotFound(strings.ToLower(string(kind)), key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s %q: %w", kind, key, err)
	}
	return id, nil
}

func resolveProfile(ctx context.Context, tx graphstore.Txn, username string) (graphstore.NodeID, error) {
	return resolve(ctx, tx, graphstore.KindProfile, username)
}

func resolvePost(ctx context.Context, tx graphstore.Txn, postID string) (graphstore.NodeID, error) {
	return resolve(ctx, tx, graphstore.KindPost, postID)
}

func resolveComment(ctx context.Context, tx graphstore.Txn, commentID string) (graphstore.NodeID, error) {
	return resolve(ctx, tx, graphstore.KindComment, commentID)
}

func resolveHashtag(ctx context.Context, tx graphstore.Txn, text string) (graphstore.NodeID, error) {
	return resolve(ctx, tx, graphstore.KindHashtag, text)
}

// resolveOrCreateHashtag finds the hashtag or creates it through the unique
// index. Losing the creation race surfaces as a conflict so the whole
// transaction is retried and then finds the winner's node.
func resolveOrCreateHashtag(ctx context.Context, tx graphstore.Txn, text string) (graphstore.NodeID, error) {
	id, err := tx.Lookup(ctx, graphstore.KindHashtag, text)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, graphstore.ErrNotFound) {
		return "", fmt.Errorf("failed to resolve hashtag %q: %w", text, err)
	}
	id, err = tx.CreateNode(ctx, graphstore.KindHashtag, text, nil)
	if errors.Is(err, graphstore.ErrKeyExists) {
		return "", fmt.Errorf("%w: hashtag %q created concurrently", graphstore.ErrConflict, text)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create hashtag %q: %w", text, err)
	}
	return id, nil
}

// NormalizeHashtag lower-cases text and keeps ASCII letters and digits.
func NormalizeHashtag(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keysOf hydrates ids and returns their business keys in input order.
func keysOf(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) ([]string, error) {
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out, nil
}

// firstOut returns the single target of a one-valued edge such as a post's
// author, or "" when the edge is missing.
func firstOut(ctx context.Context, tx graphstore.Txn, id graphstore.NodeID, label graphstore.Label) (graphstore.NodeID, error) {
	ns, err := tx.Out(ctx, id, label)
	if err != nil {
		return "", err
	}
	if len(ns) == 0 {
		return "", nil
	}
	return ns[0].ID, nil
}
