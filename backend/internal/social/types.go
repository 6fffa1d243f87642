package social

// ============================================================================
// Inputs
// ============================================================================

// Page is a zero-based page request. Size is clamped to the configured
// maximum; zero or negative sizes use the default.
type Page struct {
	Num  int
	Size int
}

// ProfileInput carries the attributes of a new profile.
type ProfileInput struct {
	Username          string
	Name              string
	ProfilePicture    string
	BackgroundPicture string
	Accent            string
}

// ProfileEdit carries profile changes. Empty fields are left untouched.
type ProfileEdit struct {
	Name              string
	ProfilePicture    string
	BackgroundPicture string
	Accent            string
}

// ============================================================================
// Results
// ============================================================================

// PostCounts are the derived engagement counters of a post.
type PostCounts struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Views    int `json:"views"`
	Clicks   int `json:"clicks"`
}

// Author is the public summary of a post or comment owner.
type Author struct {
	Username       string `json:"username"`
	Name           string `json:"rname"`
	ProfilePicture string `json:"profilePicture"`
	IsVerified     bool   `json:"isVerified"`
}

// Post is a hydrated post.
type Post struct {
	PostID    string     `json:"postId"`
	Hashtag   string     `json:"hashtag"`
	Timestamp int64      `json:"timestamp"`
	Author    Author     `json:"user"`
	Counts    PostCounts `json:"counts"`
	Score     float64    `json:"score,omitempty"`
	// Liked is set only by viewer-aware reads.
	Liked bool `json:"isLiked,omitempty"`
}

// Comment is a hydrated comment.
type Comment struct {
	CommentID string `json:"commentId"`
	PostID    string `json:"postId"`
	Text      string `json:"comment"`
	Timestamp int64  `json:"timestamp"`
	Likes     int    `json:"likes"`
	Author    Author `json:"user"`
}

// Profile is a hydrated profile.
type Profile struct {
	Author
	BackgroundPicture string `json:"backgroundPicture"`
	Accent            string `json:"accent"`
	IsBanned          bool   `json:"isBanned"`
	IsPrivate         bool   `json:"isPrivate"`
	Followers         int    `json:"followers"`
	Following         int    `json:"following"`
	// IsFollowing reports whether the viewer follows this profile.
	IsFollowing bool `json:"isFollowing"`
}

// ProfileSummary is a ranked profile. Score is the mutual-connection count
// for friend suggestions and the follower count otherwise.
type ProfileSummary struct {
	Author
	Followers int     `json:"followers"`
	Score     float64 `json:"score"`
}

// Hashtag is a ranked hashtag.
type Hashtag struct {
	Hashtag  string  `json:"hashtag"`
	PinnedBy int     `json:"pcount"`
	Posts    int     `json:"posts"`
	Score    float64 `json:"score"`
}
