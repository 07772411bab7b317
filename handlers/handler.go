// Package handlers implements the REST endpoints. Every handler reports
// failures through c.Error and leaves the response body to
// middleware.ErrorHandler.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/apperr"
	"onechurch/config"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/push"
	"onechurch/store"
	"onechurch/upload"
	"onechurch/websocket"
)

const (
	requestTimeout = 10 * time.Second
	uploadTimeout  = 30 * time.Second

	defaultPageSize = 10
	maxPageSize     = 50
)

type Handler struct {
	store    store.Store
	events   websocket.Broadcaster
	uploader upload.Uploader
	notifier push.Notifier
	tokens   *middleware.Tokens
	cfg      *config.Config
}

// Deps are the collaborators a Handler needs. Uploader and Notifier default
// to their disabled implementations.
type Deps struct {
	Store    store.Store
	Events   websocket.Broadcaster
	Uploader upload.Uploader
	Notifier push.Notifier
	Tokens   *middleware.Tokens
	Config   *config.Config
}

func New(d Deps) *Handler {
	h := &Handler{
		store:    d.Store,
		events:   d.Events,
		uploader: d.Uploader,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		cfg:      d.Config,
	}
	if h.uploader == nil {
		h.uploader = upload.Disabled{}
	}
	if h.notifier == nil {
		h.notifier = push.Disabled{}
	}
	return h
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// bind decodes the body with gin's binder, which picks JSON or form by
// Content-Type. Field rule failures pass through for the per-field messages;
// anything else the binder rejects is a malformed body.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBind(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			err = apperr.Wrap(err, http.StatusBadRequest, "Invalid request body")
		}
		abort(c, err)
		return false
	}
	return true
}

// pathID parses the named route parameter as an ObjectID.
func pathID(c *gin.Context, param, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abort(c, apperr.BadRequest("Invalid "+what+" id"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryID parses an optional ObjectID query parameter.
func queryID(c *gin.Context, key string) (*primitive.ObjectID, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		abort(c, apperr.BadRequest("Invalid "+key))
		return nil, false
	}
	return &id, true
}

// paging reads page and limit, falling back to the defaults for missing or
// malformed values.
func paging(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// storeError maps the store sentinels to client errors and wraps anything
// else as a 500.
func storeError(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(err, http.StatusGatewayTimeout, "Request timed out")
	}
	return apperr.Internal(err, "Database error")
}

func currentRef(c *gin.Context) (*models.Actor, models.ActorRef) {
	actor := middleware.CurrentActor(c)
	if actor == nil {
		return nil, models.ActorRef{}
	}
	return actor, actor.Ref()
}

func (h *Handler) emit(room, event string, payload interface{}) {
	if h.events == nil {
		return
	}
	h.events.Emit(room, event, payload)
}

// findActor looks id up as a User first and then as a Minister.
func (h *Handler) findActor(ctx context.Context, id primitive.ObjectID) (*models.Actor, error) {
	for _, kind := range []models.ActorKind{models.KindUser, models.KindMinister} {
		a, err := h.store.GetActor(ctx, kind, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrNotFound
}

type authors map[primitive.ObjectID]*models.Actor

func (a authors) summary(ref models.ActorRef) models.ActorSummary {
	return models.Summarize(ref, a[ref.ID])
}

func (h *Handler) loadAuthors(ctx context.Context, refs []models.ActorRef) (authors, error) {
	if len(refs) == 0 {
		return authors{}, nil
	}
	found, err := h.store.GetActors(ctx, refs)
	if err != nil {
		return nil, err
	}
	return authors(found), nil
}

// likedSet reports which ids the current actor likes; it is empty for
// anonymous callers.
func (h *Handler) likedSet(ctx context.Context, c *gin.Context, subject models.SubjectType, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	actor := middleware.CurrentActor(c)
	if actor == nil || len(ids) == 0 {
		return map[primitive.ObjectID]bool{}, nil
	}
	return h.store.LikedBy(ctx, subject, ids, actor.ID)
}

// uploadImage stores the multipart file under field when one was sent. ok is
// false when the request carried no such file.
func (h *Handler) uploadImage(c *gin.Context, field, folder string) (url string, size int64, ok bool, err error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, apperr.Wrap(err, http.StatusBadRequest, "Invalid upload")
	}

	switch err := upload.Check(header); {
	case errors.Is(err, upload.ErrTooLarge):
		return "", 0, false, apperr.TooLarge("Image must be 4MB or smaller")
	case errors.Is(err, upload.ErrNotImage):
		return "", 0, false, apperr.BadRequest("Only image uploads are allowed")
	}

	file, err := header.Open()
	if err != nil {
		return "", 0, false, apperr.Internal(err, "Failed to read upload")
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
	defer cancel()

	url, err = h.uploader.Upload(ctx, file, upload.Options{Folder: folder})
	if errors.Is(err, upload.ErrDisabled) {
		return "", 0, false, apperr.Wrap(err, http.StatusServiceUnavailable, "Image uploads are not configured")
	}
	if err != nil {
		logger.Error.Printf("Upload to %s failed: %v", folder, err)
		return "", 0, false, apperr.Internal(err, "Failed to upload image")
	}
	return url, header.Size, true, nil
}
