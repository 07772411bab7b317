package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"onechurch/middleware"
	"onechurch/models"
)

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *Handler) VAPIDPublicKey(c *gin.Context) {
	key := h.notifier.PublicKey()
	c.JSON(http.StatusOK, gin.H{"publicKey": key, "enabled": key != ""})
}

// Subscribe stores the browser's push endpoint, replacing any earlier one.
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if !bind(c, &req) {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	sub := &models.PushSubscription{
		ActorID:  actor.ID,
		Endpoint: req.Endpoint,
		Keys:     models.PushKeys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth},
	}
	if err := h.store.SavePushSubscription(ctx, sub); err != nil {
		abort(c, storeError(err, "Subscription not found"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subscription saved"})
}
