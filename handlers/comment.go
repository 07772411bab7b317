package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/apperr"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/store"
	"onechurch/websocket"
)

type CreateCommentRequest struct {
	ContentID     string `json:"contentId" binding:"required"`
	ContentType   string `json:"contentType" binding:"required,oneof=post tweet"`
	Body          string `json:"body" binding:"required,max=1000"`
	ParentComment string `json:"parentComment"`
}

// contentExists checks the comment target and maps a miss to 404.
func (h *Handler) contentExists(ctx context.Context, ct models.ContentType, id primitive.ObjectID) error {
	var err error
	switch ct {
	case models.ContentPost:
		_, err = h.store.GetPost(ctx, id)
	case models.ContentTweet:
		_, err = h.store.GetTweet(ctx, id)
	default:
		return apperr.BadRequest("Invalid content type")
	}
	if err != nil {
		return storeError(err, "Content not found")
	}
	return nil
}

func (h *Handler) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if !bind(c, &req) {
		return
	}
	contentID, err := primitive.ObjectIDFromHex(req.ContentID)
	if err != nil {
		abort(c, apperr.BadRequest("Invalid content id"))
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		abort(c, apperr.BadRequest("Comment body is required"))
		return
	}
	ct := models.ContentType(req.ContentType)
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.contentExists(ctx, ct, contentID); err != nil {
		abort(c, err)
		return
	}

	var parentID *primitive.ObjectID
	if req.ParentComment != "" {
		id, err := primitive.ObjectIDFromHex(req.ParentComment)
		if err != nil {
			abort(c, apperr.BadRequest("Invalid parent comment id"))
			return
		}
		parent, err := h.store.GetComment(ctx, id)
		if err != nil {
			abort(c, storeError(err, "Parent comment not found"))
			return
		}
		if parent.ParentComment != nil {
			abort(c, apperr.BadRequest("Replies can only be added to top level comments"))
			return
		}
		if parent.ContentID != contentID || parent.ContentType != ct {
			abort(c, apperr.BadRequest("Parent comment belongs to different content"))
			return
		}
		parentID = &id
	}

	now := time.Now()
	comment := &models.Comment{
		Body:          body,
		ContentID:     contentID,
		ContentType:   ct,
		CommentedBy:   actor.Ref(),
		ParentComment: parentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.store.CreateComment(ctx, comment); err != nil {
		abort(c, storeError(err, "Content not found"))
		return
	}
	if _, err := h.store.IncCounter(ctx, models.SubjectType(ct), contentID, models.CounterComments, 1); err != nil {
		abort(c, storeError(err, "Content not found"))
		return
	}
	if parentID != nil {
		if _, err := h.store.IncCounter(ctx, models.SubjectComment, *parentID, models.CounterReplies, 1); err != nil {
			abort(c, storeError(err, "Parent comment not found"))
			return
		}
	}

	view := commentView{Comment: comment, CommentedBy: models.Summarize(actor.Ref(), actor)}
	h.emit(websocket.FeedRoom, websocket.EventNewComment, gin.H{
		"contentType": ct,
		"contentId":   contentID.Hex(),
		"comment":     view,
	})
	c.JSON(http.StatusCreated, gin.H{"comment": view})
}

// ListComments returns the top level comments of a post or tweet. The route
// shares its first segment with /comments/:id/replies, so the content type
// arrives as the id parameter.
func (h *Handler) ListComments(c *gin.Context) {
	ct := models.ContentType(c.Param("id"))
	if !ct.Valid() {
		abort(c, apperr.BadRequest("Invalid content type"))
		return
	}
	contentID, ok := pathID(c, "contentId", "content")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	comments, err := h.store.ListComments(ctx, models.CommentQuery{ContentType: ct, ContentID: contentID})
	if err != nil {
		abort(c, storeError(err, "Content not found"))
		return
	}
	views, err := h.renderComments(ctx, c, comments)
	if err != nil {
		abort(c, storeError(err, "Content not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": views})
}

func (h *Handler) ListReplies(c *gin.Context) {
	id, ok := pathID(c, "id", "comment")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	parent, err := h.store.GetComment(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	replies, err := h.store.ListComments(ctx, models.CommentQuery{
		ContentType: parent.ContentType,
		ContentID:   parent.ContentID,
		Parent:      &id,
	})
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	views, err := h.renderComments(ctx, c, replies)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": views})
}

func (h *Handler) LikeComment(c *gin.Context) {
	id, ok := pathID(c, "id", "comment")
	if !ok {
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	liked, count, err := h.store.ToggleLike(ctx, models.SubjectComment, id, ref)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "likeCount": count})
}

// DeleteComment removes the caller's comment with its replies and moves the
// content's commentCount down by the number of removed documents.
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id", "comment")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	comment, err := h.store.GetComment(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	if comment.CommentedBy.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to delete this comment"))
		return
	}

	removed, err := h.store.DeleteComment(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Comment not found"))
		return
	}
	_, err = h.store.IncCounter(ctx, models.SubjectType(comment.ContentType), comment.ContentID, models.CounterComments, -removed)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn.Printf("Failed to decrement commentCount on %s %s: %v", comment.ContentType, comment.ContentID.Hex(), err)
	}
	if comment.ParentComment != nil {
		_, err = h.store.IncCounter(ctx, models.SubjectComment, *comment.ParentComment, models.CounterReplies, -1)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Warn.Printf("Failed to decrement replyCount on %s: %v", comment.ParentComment.Hex(), err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully", "removed": removed})
}
