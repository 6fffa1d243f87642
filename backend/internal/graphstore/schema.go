package graphstore

import "fmt"

// Kind is a node type.
type Kind string

const (
	KindProfile Kind = "Profile"
	KindPost    Kind = "Post"
	KindComment Kind = "Comment"
	KindHashtag Kind = "Hashtag"
)

// Kinds lists every node kind.
var Kinds = []Kind{KindProfile, KindPost, KindComment, KindHashtag}

// Label is a directed edge name, written Kind.predicate.
type Label string

const (
	ProfileFollowing      Label = "Profile.following"
	ProfileFollowers      Label = "Profile.followers"
	ProfileBlockedUsers   Label = "Profile.blockedUsers"
	ProfilePinnedHashtags Label = "Profile.pinnedHashtags"
	ProfilePosts          Label = "Profile.posts"
	ProfileComments       Label = "Profile.comments"
	ProfileLikes          Label = "Profile.likes"
	ProfileLikedComments  Label = "Profile.likedComments"
	ProfileViewed         Label = "Profile.viewed"
	ProfileClickedOn      Label = "Profile.clickedOn"
	ProfileFollowRequests Label = "Profile.followRequests"

	PostHashtag   Label = "Post.hashtag"
	PostComments  Label = "Post.comments"
	PostUsername  Label = "Post.username"
	PostLikes     Label = "Post.likes"
	PostViews     Label = "Post.views"
	PostClickedOn Label = "Post.clickedOn"

	CommentUsername Label = "Comment.username"
	CommentPost     Label = "Comment.post"
	CommentLikes    Label = "Comment.likes"

	HashtagPosts    Label = "Hashtag.posts"
	HashtagPinnedBy Label = "Hashtag.pinnedBy"
)

// Labels lists every edge label; backends declare reverse indexes and
// counts on all of them.
var Labels = []Label{
	ProfileFollowing, ProfileFollowers, ProfileBlockedUsers, ProfilePinnedHashtags,
	ProfilePosts, ProfileComments, ProfileLikes, ProfileLikedComments,
	ProfileViewed, ProfileClickedOn, ProfileFollowRequests,
	PostHashtag, PostComments, PostUsername, PostLikes, PostViews, PostClickedOn,
	CommentUsername, CommentPost, CommentLikes,
	HashtagPosts, HashtagPinnedBy,
}

// PropType is the scalar type of a node attribute.
type PropType int

const (
	PropString PropType = iota
	PropBool
	PropInt
)

// PropSpec describes one node attribute.
type PropSpec struct {
	Name string
	Type PropType
}

// KindSpec describes a node kind: its unique key attribute and the rest.
type KindSpec struct {
	Kind  Kind
	Key   string
	Props []PropSpec
}

// Profile attributes
const (
	PropUsername          = "username"
	PropRealName          = "rname"
	PropProfilePicture    = "profilePicture"
	PropBackgroundPicture = "backgroundPicture"
	PropAccent            = "accent"
	PropIsVerified        = "isVerified"
	PropIsBanned          = "isBanned"
	PropIsPrivate         = "isPrivate"
)

// Post, Comment and Hashtag attributes
const (
	PropPostID    = "postId"
	PropTimestamp = "timestamp"
	PropCommentID = "commentId"
	PropComment   = "comment"
	PropHashtag   = "hashtag"
)

var kindSpecs = map[Kind]KindSpec{
	KindProfile: {
		Kind: KindProfile,
		Key:  PropUsername,
		Props: []PropSpec{
			{PropRealName, PropString},
			{PropProfilePicture, PropString},
			{PropBackgroundPicture, PropString},
			{PropAccent, PropString},
			{PropIsVerified, PropBool},
			{PropIsBanned, PropBool},
			{PropIsPrivate, PropBool},
		},
	},
	KindPost: {
		Kind:  KindPost,
		Key:   PropPostID,
		Props: []PropSpec{{PropTimestamp, PropInt}},
	},
	KindComment: {
		Kind:  KindComment,
		Key:   PropCommentID,
		Props: []PropSpec{{PropComment, PropString}, {PropTimestamp, PropInt}},
	},
	KindHashtag: {
		Kind: KindHashtag,
		Key:  PropHashtag,
	},
}

// Spec returns the schema entry for kind.
func Spec(kind Kind) KindSpec {
	spec, ok := kindSpecs[kind]
	if !ok {
		panic(fmt.Sprintf("graphstore: unknown kind %q", kind))
	}
	return spec
}

// PropType returns the declared type of an attribute, including the key.
func (s KindSpec) PropType(name string) (PropType, bool) {
	if name == s.Key {
		return PropString, true
	}
	for _, p := range s.Props {
		if p.Name == name {
			return p.Type, true
		}
	}
	return 0, false
}

// Predicate is the fully qualified attribute name, e.g. Profile.username.
func Predicate(kind Kind, name string) string {
	return string(kind) + "." + name
}

// Normalize coerces decoded attribute values (JSON numbers, driver ints) to
// the declared types and drops undeclared attributes.
func (s KindSpec) Normalize(props Props) Props {
	out := make(Props, len(props))
	for name, v := range props {
		t, ok := s.PropType(name)
		if !ok || v == nil {
			continue
		}
		switch t {
		case PropString:
			if str, ok := v.(string); ok {
				out[name] = str
			}
		case PropBool:
			switch b := v.(type) {
			case bool:
				out[name] = b
			case string:
				out[name] = b == "true"
			}
		case PropInt:
			switch n := v.(type) {
			case int64:
				out[name] = n
			case int:
				out[name] = int64(n)
			case float64:
				out[name] = int64(n)
			}
		}
	}
	return out
}

// EdgePair is a relationship stored as a forward edge plus, when Reverse is
// set, its semantic inverse. Both sides are written in one mutation.
type EdgePair struct {
	Name    string
	From    Kind
	To      Kind
	Forward Label
	Reverse Label
}

// Edges builds the statements for the pair between from and to.
func (p EdgePair) Edges(from, to NodeID, facet int) []Edge {
	edges := []Edge{{From: from, Label: p.Forward, To: to, Facet: facet}}
	if p.Reverse != "" {
		edges = append(edges, Edge{From: to, Label: p.Reverse, To: from, Facet: facet})
	}
	return edges
}

var (
	PairFollow        = EdgePair{"follow", KindProfile, KindProfile, ProfileFollowing, ProfileFollowers}
	PairLikePost      = EdgePair{"like-post", KindProfile, KindPost, ProfileLikes, PostLikes}
	PairLikeComment   = EdgePair{"like-comment", KindProfile, KindComment, ProfileLikes, CommentLikes}
	PairLikedComment  = EdgePair{"liked-comment", KindProfile, KindComment, ProfileLikedComments, CommentLikes}
	PairView          = EdgePair{"view", KindProfile, KindPost, ProfileViewed, PostViews}
	PairClick         = EdgePair{"click", KindProfile, KindPost, ProfileClickedOn, PostClickedOn}
	PairPinHashtag    = EdgePair{"pin-hashtag", KindProfile, KindHashtag, ProfilePinnedHashtags, HashtagPinnedBy}
	PairBlock         = EdgePair{"block", KindProfile, KindProfile, ProfileBlockedUsers, ""}
	PairFollowRequest = EdgePair{"follow-request", KindProfile, KindProfile, ProfileFollowRequests, ""}
	PairAuthorPost    = EdgePair{"author-post", KindProfile, KindPost, ProfilePosts, PostUsername}
	PairPostHashtag   = EdgePair{"post-hashtag", KindPost, KindHashtag, PostHashtag, HashtagPosts}
	PairPostComment   = EdgePair{"post-comment", KindPost, KindComment, PostComments, CommentPost}
	PairAuthorComment = EdgePair{"author-comment", KindComment, KindProfile, CommentUsername, ProfileComments}
)

// Pairs lists every relationship definition.
var Pairs = []EdgePair{
	PairFollow, PairLikePost, PairLikeComment, PairLikedComment, PairView, PairClick,
	PairPinHashtag, PairBlock, PairFollowRequest, PairAuthorPost, PairPostHashtag,
	PairPostComment, PairAuthorComment,
}

// Siblings returns pairs that share p's reverse label from a different
// forward label and the same endpoint kinds. Removing p must keep the
// reverse edge while a sibling forward edge still exists.
func (p EdgePair) Siblings() []EdgePair {
	if p.Reverse == "" {
		return nil
	}
	var out []EdgePair
	for _, q := range Pairs {
		if q.Reverse == p.Reverse && q.Forward != p.Forward && q.From == p.From && q.To == p.To {
			out = append(out, q)
		}
	}
	return out
}
