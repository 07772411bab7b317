package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"onechurch/apperr"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/websocket"
)

type CreatePostRequest struct {
	Title string         `json:"title" form:"title" binding:"max=200"`
	Body  string         `json:"body" form:"body" binding:"max=5000"`
	Media []models.Media `json:"media" form:"-"`
}

type UpdatePostRequest struct {
	Title *string `json:"title" binding:"omitempty,max=200"`
	Body  *string `json:"body" binding:"omitempty,max=5000"`
}

type ReportRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CreatePost accepts JSON or a multipart form with an optional image field.
func (h *Handler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if !bind(c, &req) {
		return
	}
	for _, m := range req.Media {
		if m.URL == "" || !m.Type.Valid() {
			abort(c, apperr.BadRequest("Invalid media item"))
			return
		}
	}

	url, size, ok, err := h.uploadImage(c, "image", "onechurch/posts")
	if err != nil {
		abort(c, err)
		return
	}
	if ok {
		req.Media = append(req.Media, models.Media{URL: url, Type: models.MediaImage, Size: size})
	}

	body := strings.TrimSpace(req.Body)
	if body == "" && len(req.Media) == 0 {
		abort(c, apperr.BadRequest("Post content cannot be empty"))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}
	if req.Media == nil {
		req.Media = []models.Media{}
	}

	actor := middleware.CurrentActor(c)
	now := time.Now()
	post := &models.Post{
		Title:     title,
		Body:      body,
		Media:     req.Media,
		MediaType: models.MediaTypeOf(req.Media),
		PostedBy:  actor.Ref(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreatePost(ctx, post); err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}

	view := postView{Post: post, PostedBy: models.Summarize(actor.Ref(), actor)}
	h.emit(websocket.FeedRoom, websocket.EventNewPost, view)
	c.JSON(http.StatusCreated, gin.H{"post": view})
}

// ListPosts pages through posts, optionally by one author.
func (h *Handler) ListPosts(c *gin.Context) {
	author, ok := queryID(c, "userId")
	if !ok {
		return
	}
	if author == nil {
		if author, ok = queryID(c, "ministerId"); !ok {
			return
		}
	}
	page, limit := paging(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.store.ListPosts(ctx, models.PostQuery{
		AuthorID: author,
		Skip:     (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	views, err := h.renderPosts(ctx, c, posts)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "page": page, "limit": limit})
}

func (h *Handler) LikePost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	liked, count, err := h.store.ToggleLike(ctx, models.SubjectPost, id, ref)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}

	h.emit(websocket.FeedRoom, websocket.EventPostLiked, gin.H{"postId": id.Hex(), "likeCount": count})
	c.JSON(http.StatusOK, gin.H{"success": true, "liked": liked, "likeCount": count})
}

func (h *Handler) ReportPost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	var req ReportRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		abort(c, apperr.BadRequest("Reason is required"))
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	report := &models.Report{
		PostID:    id,
		Reporter:  ref,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateReport(ctx, report); err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post reported successfully"})
}

// UpdatePost edits title or body; only the author may do so.
func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	var req UpdatePostRequest
	if !bind(c, &req) {
		return
	}
	if req.Title == nil && req.Body == nil {
		abort(c, apperr.BadRequest("Nothing to update"))
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.store.GetPost(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	if post.PostedBy.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to edit this post"))
		return
	}

	updated, err := h.store.UpdatePost(ctx, id, models.PostUpdate{Title: req.Title, Body: req.Body})
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	view, err := h.renderPost(ctx, c, updated)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": view, "message": "Post updated successfully"})
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.store.GetPost(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	if post.PostedBy.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to delete this post"))
		return
	}
	if err := h.store.DeletePost(ctx, id); err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
