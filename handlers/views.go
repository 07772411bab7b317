package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/models"
)

// The views below embed the stored document and replace its ActorRef with a
// populated summary. The outer field wins during JSON encoding.

type postView struct {
	*models.Post
	PostedBy models.ActorSummary `json:"postedBy"`
	Liked    bool                `json:"liked"`
	Type     string              `json:"type,omitempty"`
}

type tweetCommentView struct {
	models.TweetComment
	User models.ActorSummary `json:"user"`
}

type tweetView struct {
	*models.Tweet
	Author   models.ActorSummary `json:"author"`
	Comments []tweetCommentView  `json:"comments"`
	Liked    bool                `json:"liked"`
	Type     string              `json:"type,omitempty"`
}

type commentView struct {
	*models.Comment
	CommentedBy models.ActorSummary `json:"commentedBy"`
	Liked       bool                `json:"liked"`
}

type storyView struct {
	*models.Story
	PostedBy  models.ActorSummary `json:"postedBy"`
	ViewCount int                 `json:"viewCount"`
	Liked     bool                `json:"liked"`
}

func (h *Handler) renderPosts(ctx context.Context, c *gin.Context, posts []*models.Post) ([]postView, error) {
	refs := make([]models.ActorRef, 0, len(posts))
	ids := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		refs = append(refs, p.PostedBy)
		ids = append(ids, p.ID)
	}
	people, err := h.loadAuthors(ctx, refs)
	if err != nil {
		return nil, err
	}
	liked, err := h.likedSet(ctx, c, models.SubjectPost, ids)
	if err != nil {
		return nil, err
	}
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, postView{Post: p, PostedBy: people.summary(p.PostedBy), Liked: liked[p.ID]})
	}
	return out, nil
}

func (h *Handler) renderPost(ctx context.Context, c *gin.Context, p *models.Post) (postView, error) {
	views, err := h.renderPosts(ctx, c, []*models.Post{p})
	if err != nil {
		return postView{}, err
	}
	return views[0], nil
}

func (h *Handler) renderTweets(ctx context.Context, c *gin.Context, tweets []*models.Tweet) ([]tweetView, error) {
	var refs []models.ActorRef
	ids := make([]primitive.ObjectID, 0, len(tweets))
	for _, t := range tweets {
		refs = append(refs, t.Author)
		for _, cm := range t.Comments {
			refs = append(refs, cm.User)
		}
		ids = append(ids, t.ID)
	}
	people, err := h.loadAuthors(ctx, refs)
	if err != nil {
		return nil, err
	}
	liked, err := h.likedSet(ctx, c, models.SubjectTweet, ids)
	if err != nil {
		return nil, err
	}
	out := make([]tweetView, 0, len(tweets))
	for _, t := range tweets {
		comments := make([]tweetCommentView, 0, len(t.Comments))
		for _, cm := range t.Comments {
			comments = append(comments, tweetCommentView{TweetComment: cm, User: people.summary(cm.User)})
		}
		out = append(out, tweetView{
			Tweet:    t,
			Author:   people.summary(t.Author),
			Comments: comments,
			Liked:    liked[t.ID],
		})
	}
	return out, nil
}

func (h *Handler) renderTweet(ctx context.Context, c *gin.Context, t *models.Tweet) (tweetView, error) {
	views, err := h.renderTweets(ctx, c, []*models.Tweet{t})
	if err != nil {
		return tweetView{}, err
	}
	return views[0], nil
}

func (h *Handler) renderComments(ctx context.Context, c *gin.Context, comments []*models.Comment) ([]commentView, error) {
	refs := make([]models.ActorRef, 0, len(comments))
	ids := make([]primitive.ObjectID, 0, len(comments))
	for _, cm := range comments {
		refs = append(refs, cm.CommentedBy)
		ids = append(ids, cm.ID)
	}
	people, err := h.loadAuthors(ctx, refs)
	if err != nil {
		return nil, err
	}
	liked, err := h.likedSet(ctx, c, models.SubjectComment, ids)
	if err != nil {
		return nil, err
	}
	out := make([]commentView, 0, len(comments))
	for _, cm := range comments {
		out = append(out, commentView{Comment: cm, CommentedBy: people.summary(cm.CommentedBy), Liked: liked[cm.ID]})
	}
	return out, nil
}

func (h *Handler) renderStories(ctx context.Context, c *gin.Context, stories []*models.Story) ([]storyView, error) {
	refs := make([]models.ActorRef, 0, len(stories))
	ids := make([]primitive.ObjectID, 0, len(stories))
	for _, s := range stories {
		refs = append(refs, s.PostedBy)
		ids = append(ids, s.ID)
	}
	people, err := h.loadAuthors(ctx, refs)
	if err != nil {
		return nil, err
	}
	liked, err := h.likedSet(ctx, c, models.SubjectStory, ids)
	if err != nil {
		return nil, err
	}
	out := make([]storyView, 0, len(stories))
	for _, s := range stories {
		out = append(out, storyView{
			Story:     s,
			PostedBy:  people.summary(s.PostedBy),
			ViewCount: len(s.Views),
			Liked:     liked[s.ID],
		})
	}
	return out, nil
}
