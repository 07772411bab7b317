package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"onechurch/apperr"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/store"
	"onechurch/websocket"
)

const passwordCost = 10

type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ProfileRequest carries the editable profile fields; omitted fields keep
// their value.
type ProfileRequest struct {
	FullName     *string `json:"fullName" binding:"omitempty,min=2,max=100"`
	Bio          *string `json:"bio" binding:"omitempty,max=500"`
	Location     *string `json:"location" binding:"omitempty,max=100"`
	MinisterType *string `json:"ministerType" binding:"omitempty,max=50"`
}

func newActor(kind models.ActorKind, fullName, email, password string) (*models.Actor, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to hash password")
	}
	now := time.Now()
	a := &models.Actor{
		Kind:         kind,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		Role:         string(models.KindUser),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if kind == models.KindMinister {
		a.Role = string(models.KindMinister)
		a.MinisterType = "church"
	}
	return a, nil
}

func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.cfg.IsProduction(), true)
}

func (h *Handler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", h.cfg.IsProduction(), true)
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}

	user, err := newActor(models.KindUser, req.FullName, req.Email, req.Password)
	if err != nil {
		abort(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.CreateActor(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			abort(c, apperr.Conflict("User with this email already exists"))
			return
		}
		abort(c, storeError(err, "User not found"))
		return
	}

	logger.Info.Printf("Registered user %s", user.ID.Hex())
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (h *Handler) LoginUser(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.store.FindActorByEmail(ctx, models.KindUser, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		abort(c, apperr.Unauthorized("Invalid password"))
		return
	}

	token, err := h.tokens.IssueAccess(user)
	if err != nil {
		abort(c, apperr.Internal(err, "Failed to generate token"))
		return
	}
	h.setCookie(c, middleware.AccessCookie, token, h.tokens.AccessTTL())

	c.JSON(http.StatusOK, gin.H{
		"message":     "User logged in successfully",
		"user":        user,
		"accessToken": token,
	})
}

func (h *Handler) LogoutUser(c *gin.Context) {
	h.clearCookie(c, middleware.AccessCookie)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentActor(c)})
}

// GetProfile looks the id up among users and then ministers.
func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := pathID(c, "id", "user")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.findActor(ctx, id)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	resp := gin.H{"profile": profile, "kind": profile.Kind}
	if viewer := middleware.CurrentActor(c); viewer != nil && viewer.ID != profile.ID {
		following, err := h.store.IsFollowing(ctx, viewer.ID, profile.ID)
		if err != nil {
			abort(c, storeError(err, "User not found"))
			return
		}
		resp["isFollowing"] = following
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProfile edits the caller's own profile, whichever kind it is.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !bind(c, &req) {
		return
	}
	actor := middleware.CurrentActor(c)

	update := models.ActorUpdate{FullName: req.FullName, Bio: req.Bio, Location: req.Location}
	if actor.Kind == models.KindMinister {
		update.MinisterType = req.MinisterType
	}
	if update.Empty() {
		abort(c, apperr.BadRequest("Nothing to update"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.store.UpdateActor(ctx, actor.Kind, actor.ID, update)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		string(updated.Kind): updated,
		"message":            "Profile updated successfully",
	})
}

// UpdateProfilePicture replaces profilePic from the multipart image field.
func (h *Handler) UpdateProfilePicture(c *gin.Context) {
	h.updatePicture(c, "onechurch/profiles", func(url string) models.ActorUpdate {
		return models.ActorUpdate{ProfilePic: &url}
	}, "profilePic")
}

func (h *Handler) UpdateBannerPicture(c *gin.Context) {
	h.updatePicture(c, "onechurch/banners", func(url string) models.ActorUpdate {
		return models.ActorUpdate{BannerPic: &url}
	}, "bannerPic")
}

func (h *Handler) updatePicture(c *gin.Context, folder string, update func(string) models.ActorUpdate, field string) {
	actor := middleware.CurrentActor(c)

	url, _, ok, err := h.uploadImage(c, "image", folder)
	if err != nil {
		abort(c, err)
		return
	}
	if !ok {
		abort(c, apperr.BadRequest("Image file is required"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	updated, err := h.store.UpdateActor(ctx, actor.Kind, actor.ID, update(url))
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		string(updated.Kind): updated,
		field:                url,
		"message":            "Picture updated successfully",
	})
}

func (h *Handler) Follow(c *gin.Context) {
	targetID, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	if actor.ID == targetID {
		abort(c, apperr.BadRequest("You cannot follow yourself"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	target, err := h.findActor(ctx, targetID)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	if err := h.store.Follow(ctx, actor.Ref(), target.Ref()); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			abort(c, apperr.Conflict("You already follow this account"))
			return
		}
		abort(c, storeError(err, "User not found"))
		return
	}

	updated, err := h.store.GetActor(ctx, target.Kind, target.ID)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	h.emit(websocket.UserRoom(target.ID.Hex()), websocket.EventNewFollow, gin.H{
		"followerId": actor.ID.Hex(),
		"follower":   models.Summarize(actor.Ref(), actor),
	})
	h.notifier.NotifyNewFollower(target.ID, actor)

	c.JSON(http.StatusOK, gin.H{
		"message":       "Followed successfully",
		"followerCount": updated.FollowerCount,
	})
}

func (h *Handler) Unfollow(c *gin.Context) {
	targetID, ok := pathID(c, "id", "user")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	target, err := h.findActor(ctx, targetID)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	if err := h.store.Unfollow(ctx, actor.Ref(), target.Ref()); err != nil {
		abort(c, storeError(err, "You do not follow this account"))
		return
	}

	updated, err := h.store.GetActor(ctx, target.Kind, target.ID)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	h.emit(websocket.UserRoom(target.ID.Hex()), websocket.EventUnfollowed, gin.H{
		"followerId": actor.ID.Hex(),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":       "Unfollowed successfully",
		"followerCount": updated.FollowerCount,
	})
}

func (h *Handler) ListFollowers(c *gin.Context) {
	h.listEdges(c, "followers", h.store.ListFollowers)
}

func (h *Handler) ListFollowing(c *gin.Context) {
	h.listEdges(c, "following", h.store.ListFollowing)
}

func (h *Handler) listEdges(c *gin.Context, key string, list func(ctx context.Context, id primitive.ObjectID) ([]models.ActorRef, error)) {
	id, ok := pathID(c, "id", "user")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	refs, err := list(ctx, id)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}
	people, err := h.loadAuthors(ctx, refs)
	if err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}

	out := make([]models.ActorSummary, 0, len(refs))
	for _, ref := range refs {
		out = append(out, people.summary(ref))
	}
	c.JSON(http.StatusOK, gin.H{key: out, "count": len(out)})
}

// Amen records today's prayer for the caller and returns the streak.
func (h *Handler) Amen(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	now := time.Now()

	streak, counted := models.NextPrayerStreak(actor.PrayerStreak, actor.LastAmenDate, now)
	if !counted {
		c.JSON(http.StatusOK, gin.H{
			"message":      "You've already prayed today!",
			"prayerStreak": streak,
		})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.SetPrayerStreak(ctx, actor.Kind, actor.ID, streak, now); err != nil {
		abort(c, storeError(err, "User not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Amen recorded!",
		"prayerStreak": streak,
	})
}
