package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"onechurch/apperr"
	"onechurch/middleware"
	"onechurch/store"
)

func (h *Handler) SavePost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.SavePost(ctx, actor.ID, id); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			abort(c, apperr.Conflict("Post already saved"))
			return
		}
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post saved"})
}

func (h *Handler) UnsavePost(c *gin.Context) {
	id, ok := pathID(c, "id", "post")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.UnsavePost(ctx, actor.ID, id); err != nil {
		abort(c, storeError(err, "Post is not saved"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post removed from saved"})
}

// ListSavedPosts returns the caller's bookmarks, most recently saved first.
func (h *Handler) ListSavedPosts(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.store.ListSavedPosts(ctx, actor.ID)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	views, err := h.renderPosts(ctx, c, posts)
	if err != nil {
		abort(c, storeError(err, "Post not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}
