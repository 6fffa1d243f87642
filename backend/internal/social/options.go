package social

import (
	"time"

	"socialgraph/backend/pkg/config"
)

// Weights are the coefficients of the composite post score.
type Weights struct {
	Views    float64
	Likes    float64
	Comments float64
	Clicks   float64
}

// Score combines a post's counters.
func (w Weights) Score(c PostCounts) float64 {
	return w.Views*float64(c.Views) + w.Likes*float64(c.Likes) +
		w.Comments*float64(c.Comments) + w.Clicks*float64(c.Clicks)
}

// HashtagWeights score hashtags by how many profiles pinned them and how many
// posts they hold.
type HashtagWeights struct {
	Pins  float64
	Posts float64
}

func (w HashtagWeights) Score(pins, posts int) float64 {
	return w.Pins*float64(pins) + w.Posts*float64(posts)
}

// Options tune the engine.
type Options struct {
	Weights        Weights
	HashtagWeights HashtagWeights

	DefaultPageSize int
	MaxPageSize     int

	// TxnTimeout bounds every operation, retries included.
	TxnTimeout time.Duration
	// SimilarUserLimit caps the co-clicking users kept by collaborative
	// filtering before candidate scoring.
	SimilarUserLimit int
	// CascadeProfileDelete also deletes the profile's posts and comments.
	CascadeProfileDelete bool
	// ServedViewWorkers bounds concurrent view writes in ServePosts.
	ServedViewWorkers int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Weights:           Weights{Views: 0.1, Likes: 0.1, Comments: 0.1, Clicks: 0.1},
		HashtagWeights:    HashtagWeights{Pins: 0.5, Posts: 0.5},
		DefaultPageSize:   5,
		MaxPageSize:       50,
		TxnTimeout:        5 * time.Second,
		SimilarUserLimit:  30,
		ServedViewWorkers: 4,
	}
}

// OptionsFromConfig maps loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Weights: Weights{
			Views:    cfg.ScoreWeightViews,
			Likes:    cfg.ScoreWeightLikes,
			Comments: cfg.ScoreWeightComments,
			Clicks:   cfg.ScoreWeightClicks,
		},
		HashtagWeights: HashtagWeights{
			Pins:  cfg.HashtagWeightPins,
			Posts: cfg.HashtagWeightPosts,
		},
		DefaultPageSize:      cfg.DefaultPageSize,
		MaxPageSize:          cfg.MaxPageSize,
		TxnTimeout:           cfg.TxnTimeout,
		SimilarUserLimit:     cfg.SimilarUserLimit,
		CascadeProfileDelete: cfg.CascadeProfileDelete,
		ServedViewWorkers:    cfg.ServedViewWorkers,
	}
}

// withDefaults fills zero values so a partially built Options still works.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Weights == (Weights{}) {
		o.Weights = d.Weights
	}
	if o.HashtagWeights == (HashtagWeights{}) {
		o.HashtagWeights = d.HashtagWeights
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = d.MaxPageSize
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = d.DefaultPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	if o.TxnTimeout <= 0 {
		o.TxnTimeout = d.TxnTimeout
	}
	if o.SimilarUserLimit <= 0 {
		o.SimilarUserLimit = d.SimilarUserLimit
	}
	if o.ServedViewWorkers <= 0 {
		o.ServedViewWorkers = d.ServedViewWorkers
	}
	return o
}
