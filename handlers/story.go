package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"onechurch/apperr"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/websocket"
)

type CreateStoryRequest struct {
	MediaURL  string  `json:"mediaUrl" form:"mediaUrl"`
	MediaType string  `json:"mediaType" form:"mediaType"`
	Duration  float64 `json:"duration" form:"duration" binding:"min=0,max=60"`
}

// CreateStory is mounted behind MinisterOnly. The media comes from mediaUrl
// and mediaType or from a multipart image field.
func (h *Handler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if !bind(c, &req) {
		return
	}

	url, _, ok, err := h.uploadImage(c, "image", "onechurch/stories")
	if err != nil {
		abort(c, err)
		return
	}
	media := models.StoryMedia{URL: req.MediaURL, Type: models.MediaKind(req.MediaType), Duration: req.Duration}
	if ok {
		media.URL, media.Type = url, models.MediaImage
	}
	if media.URL == "" || (media.Type != models.MediaImage && media.Type != models.MediaVideo) {
		abort(c, apperr.BadRequest("Media URL and type are required"))
		return
	}
	if media.Duration == 0 {
		media.Duration = models.DefaultStoryDuration
	}

	actor := middleware.CurrentActor(c)
	now := time.Now()
	story := &models.Story{
		Media:     media,
		PostedBy:  actor.Ref(),
		ExpiresAt: now.Add(models.StoryLifetime),
		Views:     []models.StoryView{},
		CreatedAt: now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreateStory(ctx, story); err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}

	view := storyView{Story: story, PostedBy: models.Summarize(actor.Ref(), actor)}
	h.emit(websocket.FeedRoom, websocket.EventNewStory, view)
	c.JSON(http.StatusCreated, gin.H{"story": view, "message": "Story created successfully"})
}

// ListStories returns the stories that have not expired, newest first.
func (h *Handler) ListStories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stories, err := h.store.ListActiveStories(ctx, time.Now())
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	views, err := h.renderStories(ctx, c, stories)
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": views})
}

func (h *Handler) GetStory(c *gin.Context) {
	id, ok := pathID(c, "id", "story")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	story, err := h.store.GetStory(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	if !story.Active(time.Now()) {
		abort(c, apperr.NotFound("Story not found"))
		return
	}
	views, err := h.renderStories(ctx, c, []*models.Story{story})
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"story": views[0]})
}

func (h *Handler) ViewStory(c *gin.Context) {
	id, ok := pathID(c, "id", "story")
	if !ok {
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	added, err := h.store.RecordStoryView(ctx, id, ref, time.Now())
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "counted": added, "message": "Story view recorded"})
}

// ReactToStory toggles the caller's like on the story.
func (h *Handler) ReactToStory(c *gin.Context) {
	id, ok := pathID(c, "id", "story")
	if !ok {
		return
	}
	_, ref := currentRef(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	liked, count, err := h.store.ToggleLike(ctx, models.SubjectStory, id, ref)
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "liked": liked, "likes": count})
}

func (h *Handler) DeleteStory(c *gin.Context) {
	id, ok := pathID(c, "id", "story")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	story, err := h.store.GetStory(ctx, id)
	if err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	if story.PostedBy.ID != actor.ID {
		abort(c, apperr.Forbidden("You are not authorized to delete this story"))
		return
	}
	if err := h.store.DeleteStory(ctx, id); err != nil {
		abort(c, storeError(err, "Story not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Story deleted successfully"})
}
