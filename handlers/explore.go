package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"onechurch/feed"
	"onechurch/models"
)

// Explore mixes the latest posts and tweets: post, tweet, post, tweet.
func (h *Handler) Explore(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		posts  []*models.Post
		tweets []*models.Tweet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = h.store.ListPosts(gctx, models.PostQuery{Limit: feed.ExploreLimit})
		return err
	})
	g.Go(func() error {
		var err error
		tweets, err = h.store.ListTweets(gctx, models.TweetQuery{Limit: feed.ExploreLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		abort(c, storeError(err, "Feed not found"))
		return
	}

	postViews, err := h.renderPosts(ctx, c, posts)
	if err != nil {
		abort(c, storeError(err, "Feed not found"))
		return
	}
	tweetViews, err := h.renderTweets(ctx, c, tweets)
	if err != nil {
		abort(c, storeError(err, "Feed not found"))
		return
	}

	a := make([]interface{}, 0, len(postViews))
	for _, v := range postViews {
		v.Type = "post"
		a = append(a, v)
	}
	b := make([]interface{}, 0, len(tweetViews))
	for _, v := range tweetViews {
		v.Type = "tweet"
		b = append(b, v)
	}
	c.JSON(http.StatusOK, gin.H{"feed": feed.Interleave(a, b)})
}
