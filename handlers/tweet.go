package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/apperr"
	"onechurch/feed"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/store"
	"onechurch/websocket"
)

const (
	defaultTweetLimit = 50
	maxTweetLimit     = 100
)

type CreateTweetRequest struct {
	Content string         `json:"content" form:"content" binding:"required,max=280"`
	Media   []models.Media `json:"media" form:"-"`
}

type UpdateTweetRequest struct {
	Content string `json:"content" binding:"required,max=280"`
}

type TweetCommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

func (h *Handler) CreateTweet(c *gin.Context) {
	var req CreateTweetRequest
	if !bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		abort(c, apperr.BadRequest("Content is required"))
		return
	}
	for _, m := range req.Media {
		if m.URL == "" || !m.Type.Valid() {
			abort(c, apperr.BadRequest("Invalid media item"))
			return
		}
	}

	url, size, ok, err := h.uploadImage(c, "image", "onechurch/tweets")
	if err != nil {
		abort(c, err)
		return
	}
	if ok {
		req.Media = append(req.Media, models.Media{URL: url, Type: models.MediaImage, Size: size})
	}
	if req.Media == nil {
		req.Media = []models.Media{}
	}

	actor := middleware.CurrentActor(c)
	now := time.Now()
	tweet := &models.Tweet{
		Content:   content,
		Media:     req.Media,
		Author:    actor.Ref(),
		Comments:  []models.TweetComment{},
		Retweets:  []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreateTweet(ctx, tweet); err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}

	view := tweetView{Tweet: tweet, Author: models.Summarize(actor.Ref(), actor), Comments: []tweetCommentView{}}
	h.emit(websocket.FeedRoom, websocket.EventNewTweet, view)
	c.JSON(http.StatusCreated, gin.H{"tweet": view, "message": "Tweet created successfully"})
}

// ListTweets returns the newest tweets, optionally by one author.
func (h *Handler) ListTweets(c *gin.Context) {
	author, ok := queryID(c, "userId")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTweetLimit)))
	if err != nil || limit < 1 {
		limit = defaultTweetLimit
	}
	if limit > maxTweetLimit {
		limit = maxTweetLimit
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	tweets, err := h.store.ListTweets(ctx, models.TweetQuery{AuthorID: author, Limit: limit})
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	views, err := h.renderTweets(ctx, c, tweets)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweets": views})
}

// TrendingTags tallies hashtags over the latest tweets.
func (h *Handler) TrendingTags(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	tweets, err := h.store.ListTweets(ctx, models.TweetQuery{Limit: feed.TrendingScan})
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	texts := make([]string, 0, len(tweets))
	for _, t := range tweets {
		texts = append(texts, t.Content)
	}
	c.JSON(http.StatusOK, gin.H{"trending": feed.TrendingHashtags(texts, feed.TrendingLimit)})
}

func (h *Handler) UpdateTweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	var req UpdateTweetRequest
	if !bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		abort(c, apperr.BadRequest("Content is required"))
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	tweet, err := h.store.GetTweet(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	if tweet.Author.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to edit this tweet"))
		return
	}

	updated, err := h.store.UpdateTweetContent(ctx, id, content)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	view, err := h.renderTweet(ctx, c, updated)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tweet": view, "message": "Tweet updated successfully"})
}

func (h *Handler) DeleteTweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	tweet, err := h.store.GetTweet(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	if tweet.Author.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to delete this tweet"))
		return
	}
	if err := h.store.DeleteTweet(ctx, id); err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tweet deleted successfully"})
}

func (h *Handler) LikeTweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	liked, count, err := h.store.ToggleLike(ctx, models.SubjectTweet, id, ref)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}

	h.emit(websocket.FeedRoom, websocket.EventTweetLiked, gin.H{"tweetId": id.Hex(), "likeCount": count})
	message := "Unliked"
	if liked {
		message = "Liked"
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "likeCount": count, "message": message})
}

// CommentOnTweet appends an embedded comment to the tweet.
func (h *Handler) CommentOnTweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	var req TweetCommentRequest
	if !bind(c, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		abort(c, apperr.BadRequest("Comment text is required"))
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	comment := models.TweetComment{
		ID:        primitive.NewObjectID(),
		User:      actor.Ref(),
		Text:      text,
		CreatedAt: time.Now(),
	}
	tweet, err := h.store.AddTweetComment(ctx, id, comment)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}

	view := tweetCommentView{TweetComment: comment, User: models.Summarize(actor.Ref(), actor)}
	h.emit(websocket.FeedRoom, websocket.EventNewComment, gin.H{
		"contentType": models.ContentTweet,
		"contentId":   id.Hex(),
		"comment":     view,
	})
	c.JSON(http.StatusCreated, gin.H{"comment": view, "commentCount": len(tweet.Comments)})
}

// DeleteTweetComment is allowed to the comment's author and the tweet's author.
func (h *Handler) DeleteTweetComment(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	commentID, ok := pathID(c, "commentId", "comment")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	tweet, err := h.store.GetTweet(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	comment := tweet.FindComment(commentID)
	if comment == nil {
		abort(c, apperr.NotFound("Comment not found"))
		return
	}
	if comment.User.ID != actor.ID && tweet.Author.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to delete this comment"))
		return
	}

	updated, err := h.store.RemoveTweetComment(ctx, id, commentID)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully", "commentCount": len(updated.Comments)})
}

// Retweet creates a retweet of the original; retweeting a retweet targets
// the tweet it points at.
func (h *Handler) Retweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	original, err := h.store.GetTweet(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	if original.IsRetweet && original.OriginalTweet != nil {
		if original, err = h.store.GetTweet(ctx, *original.OriginalTweet); err != nil {
			abort(c, storeError(err, "Original tweet not found"))
			return
		}
	}

	existing, err := h.store.ListTweets(ctx, models.TweetQuery{AuthorID: &actor.ID, OriginalTweet: &original.ID, Limit: 1})
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	if len(existing) > 0 {
		abort(c, apperr.Conflict("You already retweeted this tweet"))
		return
	}

	now := time.Now()
	originalID := original.ID
	retweet := &models.Tweet{
		Content:       original.Content,
		Media:         original.Media,
		Author:        actor.Ref(),
		Comments:      []models.TweetComment{},
		Retweets:      []primitive.ObjectID{},
		OriginalTweet: &originalID,
		IsRetweet:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if retweet.Media == nil {
		retweet.Media = []models.Media{}
	}
	if err := h.store.CreateTweet(ctx, retweet); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			abort(c, apperr.Conflict("You already retweeted this tweet"))
			return
		}
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	if err := h.store.AddRetweet(ctx, originalID, retweet.ID); err != nil {
		abort(c, storeError(err, "Original tweet not found"))
		return
	}

	view := tweetView{Tweet: retweet, Author: models.Summarize(actor.Ref(), actor), Comments: []tweetCommentView{}}
	h.emit(websocket.FeedRoom, websocket.EventNewRetweet, gin.H{
		"originalTweetId": originalID.Hex(),
		"tweet":           view,
	})
	c.JSON(http.StatusCreated, gin.H{"tweet": view, "message": "Retweeted successfully"})
}

func (h *Handler) ShareTweet(c *gin.Context) {
	id, ok := pathID(c, "id", "tweet")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	shares, err := h.store.IncCounter(ctx, models.SubjectTweet, id, models.CounterShares, 1)
	if err != nil {
		abort(c, storeError(err, "Tweet not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
