package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"onechurch/apperr"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/store"
)

const recommendedMinisters = 5

type MinisterRegisterRequest struct {
	FullName     string `json:"fullName" binding:"required,min=2,max=100"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	MinisterType string `json:"ministerType" binding:"max=50"`
	Bio          string `json:"bio" binding:"max=500"`
	Location     string `json:"location" binding:"max=100"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// startSession issues an access and refresh token pair, stores the refresh
// token on the minister and sets both cookies.
func (h *Handler) startSession(ctx context.Context, c *gin.Context, m *models.Actor) (string, string, error) {
	access, err := h.tokens.IssueAccess(m)
	if err != nil {
		return "", "", apperr.Internal(err, "Failed to generate access token")
	}
	refresh, err := h.tokens.IssueRefresh(m)
	if err != nil {
		return "", "", apperr.Internal(err, "Failed to generate refresh token")
	}
	if err := h.store.SetRefreshToken(ctx, models.KindMinister, m.ID, refresh); err != nil {
		return "", "", storeError(err, "Minister not found")
	}
	h.setCookie(c, middleware.AccessCookie, access, h.tokens.AccessTTL())
	h.setCookie(c, middleware.RefreshCookie, refresh, h.tokens.RefreshTTL())
	return access, refresh, nil
}

func (h *Handler) RegisterMinister(c *gin.Context) {
	var req MinisterRegisterRequest
	if !bind(c, &req) {
		return
	}

	minister, err := newActor(models.KindMinister, req.FullName, req.Email, req.Password)
	if err != nil {
		abort(c, err)
		return
	}
	if req.MinisterType != "" {
		minister.MinisterType = req.MinisterType
	}
	minister.Bio = req.Bio
	minister.Location = req.Location

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreateActor(ctx, minister); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			abort(c, apperr.Conflict("Minister already exists with this email"))
			return
		}
		abort(c, storeError(err, "Minister not found"))
		return
	}

	access, _, err := h.startSession(ctx, c, minister)
	if err != nil {
		abort(c, err)
		return
	}

	logger.Info.Printf("Registered minister %s", minister.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Minister registered successfully",
		"minister":    minister,
		"accessToken": access,
	})
}

func (h *Handler) LoginMinister(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	minister, err := h.store.FindActorByEmail(ctx, models.KindMinister, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		abort(c, storeError(err, "Minister does not exist with this email"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(minister.PasswordHash), []byte(req.Password)); err != nil {
		abort(c, apperr.Unauthorized("Incorrect password"))
		return
	}

	access, _, err := h.startSession(ctx, c, minister)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Login successful",
		"minister":    minister,
		"accessToken": access,
	})
}

// LogoutMinister drops the stored refresh token and clears both cookies.
func (h *Handler) LogoutMinister(c *gin.Context) {
	if actor := middleware.CurrentActor(c); actor != nil && actor.Kind == models.KindMinister {
		ctx, cancel := requestContext(c)
		defer cancel()
		if err := h.store.SetRefreshToken(ctx, models.KindMinister, actor.ID, ""); err != nil {
			abort(c, storeError(err, "Minister not found"))
			return
		}
	}
	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, middleware.RefreshCookie)
	c.JSON(http.StatusOK, gin.H{"message": "Minister logged out successfully"})
}

// RefreshToken exchanges the stored refresh token for a new pair. The old
// refresh token stops working.
func (h *Handler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshCookie)
	if token == "" {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		abort(c, apperr.Unauthorized("Refresh token is required"))
		return
	}

	claims, err := h.tokens.ParseRefresh(token)
	if err != nil {
		abort(c, apperr.Wrap(err, http.StatusUnauthorized, "Invalid refresh token"))
		return
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		abort(c, apperr.Unauthorized("Invalid refresh token"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	minister, err := h.store.GetActor(ctx, models.KindMinister, id)
	if errors.Is(err, store.ErrNotFound) {
		abort(c, apperr.Unauthorized("Invalid refresh token"))
		return
	}
	if err != nil {
		abort(c, storeError(err, "Minister not found"))
		return
	}
	if minister.RefreshToken != token {
		abort(c, apperr.Unauthorized("Refresh token is expired or used"))
		return
	}

	access, refresh, err := h.startSession(ctx, c, minister)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Access token refreshed",
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *Handler) ListMinisters(c *gin.Context) {
	h.listMinisters(c, models.ActorQuery{})
}

// RecommendedMinisters returns the most followed ministers.
func (h *Handler) RecommendedMinisters(c *gin.Context) {
	h.listMinisters(c, models.ActorQuery{SortByFollowers: true, Limit: recommendedMinisters})
}

func (h *Handler) listMinisters(c *gin.Context, q models.ActorQuery) {
	ctx, cancel := requestContext(c)
	defer cancel()

	ministers, err := h.store.ListActors(ctx, models.KindMinister, q)
	if err != nil {
		abort(c, storeError(err, "Minister not found"))
		return
	}
	if ministers == nil {
		ministers = []*models.Actor{}
	}
	c.JSON(http.StatusOK, gin.H{"ministers": ministers})
}

func (h *Handler) MyMinisterProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"minister": middleware.CurrentActor(c)})
}

func (h *Handler) GetMinister(c *gin.Context) {
	id, ok := pathID(c, "id", "minister")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	minister, err := h.store.GetActor(ctx, models.KindMinister, id)
	if err != nil {
		abort(c, storeError(err, "Minister not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"minister": minister})
}
