package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"onechurch/config"
	"onechurch/handlers"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/routes"
	"onechurch/store/memory"
	"onechurch/upload"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) Emit(room, event string, payload interface{}) {
	m.Called(room, event, payload)
}

type mockUploader struct{ mock.Mock }

func (m *mockUploader) Upload(ctx context.Context, file io.Reader, opts upload.Options) (string, error) {
	args := m.Called(ctx, file, opts)
	return args.String(0), args.Error(1)
}

type fixture struct {
	t        *testing.T
	store    *memory.MemoryStorage
	events   *mockEvents
	uploader *mockUploader
	tokens   *middleware.Tokens
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.AccessTokenSecret = "access-secret"
	cfg.Auth.RefreshTokenSecret = "refresh-secret"

	s := memory.New()
	events := &mockEvents{}
	events.On("Emit", mock.Anything, mock.Anything, mock.Anything).Return()
	uploader := &mockUploader{}
	tokens := middleware.NewTokens(cfg)

	h := handlers.New(handlers.Deps{
		Store:    s,
		Events:   events,
		Uploader: uploader,
		Tokens:   tokens,
		Config:   cfg,
	})
	router := routes.SetupRouter(routes.Options{
		Config:  cfg,
		Handler: h,
		Auth:    middleware.NewAuthenticator(tokens, s),
		Limiter: middleware.NewIPRateLimiter(1000, time.Minute),
	})
	return &fixture{t: t, store: s, events: events, uploader: uploader, tokens: tokens, router: router}
}

// actor creates an account directly in the store and returns a bearer token for it.
func (f *fixture) actor(kind models.ActorKind, name string) (*models.Actor, string) {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(f.t, err)
	a := &models.Actor{
		Kind:         kind,
		Email:        strings.ToLower(name) + "@onechurch.test",
		PasswordHash: string(hash),
		FullName:     name,
		Role:         string(kind),
		CreatedAt:    time.Now(),
	}
	require.NoError(f.t, f.store.CreateActor(context.Background(), a))
	token, err := f.tokens.IssueAccess(a)
	require.NoError(f.t, err)
	return a, token
}

func (f *fixture) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (f *fixture) createPost(token, body string) string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/v1/posts", gin.H{"body": body}, token)
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Post struct {
			ID string `json:"id"`
		} `json:"post"`
	}
	decode(f.t, w, &resp)
	return resp.Post.ID
}

func (f *fixture) createTweet(token, content string) string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/v1/tweets", gin.H{"content": content}, token)
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Tweet struct {
			ID string `json:"id"`
		} `json:"tweet"`
	}
	decode(f.t, w, &resp)
	return resp.Tweet.ID
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	creds := gin.H{"fullName": "Ada Obi", "email": "Ada@Example.com", "password": "secret123"}

	w := f.do(http.MethodPost, "/api/v1/users/register", creds, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)

	w = f.do(http.MethodPost, "/api/v1/users/register", creds, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/api/v1/users/login", gin.H{"email": "ada@example.com", "password": "wrong-one"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/users/login", gin.H{"email": "nobody@example.com", "password": "secret123"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/v1/users/login", gin.H{"email": "ada@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	decode(t, w, &login)
	require.NotEmpty(t, login.AccessToken)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AccessCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada Obi")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/users/me", nil, "").Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/users/register", gin.H{"fullName": "A", "password": "123"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env envelope
	decode(t, w, &env)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Len(t, env.Errors, 3)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	f := newFixture(t)
	_, token := f.actor(models.KindUser, "Ada")

	send := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	cases := []struct {
		path string
		body string
	}{
		{"/api/v1/posts", `{`},
		{"/api/v1/posts", `{"body": 5}`},
		{"/api/v1/posts", ``},
		{"/api/v1/comments", `{"contentId": 7, "contentType": "post", "body": "hi"}`},
		{"/api/v1/users/register", `not json`},
	}
	for _, tc := range cases {
		w := send(tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, w.Code, "%s %q: %s", tc.path, tc.body, w.Body.String())
		var env envelope
		decode(t, w, &env)
		assert.False(t, env.Success)
		assert.Equal(t, "Invalid request body", env.Message)
	}
}

func TestMinisterSessionAndRefresh(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/ministers/register", gin.H{
		"fullName": "Pastor Joy", "email": "joy@church.org", "password": "secret123", "bio": "Shepherd",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "refreshToken")

	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.RefreshCookie {
			refresh = c
		}
	}
	require.NotNil(t, refresh)

	exchange := func(token string) *httptest.ResponseRecorder {
		return f.do(http.MethodPost, "/api/v1/ministers/refresh-token", gin.H{"refreshToken": token}, "")
	}

	w = exchange(refresh.Value)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rotated struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decode(t, w, &rotated)
	assert.NotEqual(t, refresh.Value, rotated.RefreshToken)

	assert.Equal(t, http.StatusUnauthorized, exchange(refresh.Value).Code)

	w = f.do(http.MethodGet, "/api/v1/ministers/profile/me", nil, rotated.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ministerType":"church"`)

	_, userToken := f.actor(models.KindUser, "Ben")
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/ministers/profile/me", nil, userToken).Code)
}

func TestLikeToggleRestoresCount(t *testing.T) {
	f := newFixture(t)
	_, token := f.actor(models.KindUser, "Ada")
	id := f.createPost(token, "Morning devotion")

	type likeResp struct {
		Liked     bool `json:"liked"`
		LikeCount int  `json:"likeCount"`
	}
	var first, second likeResp

	w := f.do(http.MethodPost, "/api/v1/posts/"+id+"/like", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &first)
	assert.True(t, first.Liked)
	assert.Equal(t, 1, first.LikeCount)

	w = f.do(http.MethodGet, "/api/v1/posts", nil, token)
	assert.Contains(t, w.Body.String(), `"liked":true`)

	w = f.do(http.MethodPost, "/api/v1/posts/"+id+"/like", nil, token)
	decode(t, w, &second)
	assert.False(t, second.Liked)
	assert.Equal(t, 0, second.LikeCount)

	w = f.do(http.MethodGet, "/api/v1/posts", nil, token)
	assert.Contains(t, w.Body.String(), `"liked":false`)
	assert.Contains(t, w.Body.String(), `"likeCount":0`)

	f.events.AssertCalled(t, "Emit", "feed", "post-liked", gin.H{"postId": id, "likeCount": 0})
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/v1/posts/"+strings.Repeat("a", 24)+"/like", nil, token).Code)
}

func TestFollowUnfollowRestoresCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, token := f.actor(models.KindUser, "Ada")
	minister, _ := f.actor(models.KindMinister, "Joy")
	path := "/api/v1/users/" + minister.ID.Hex() + "/follow"

	w := f.do(http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.events.AssertCalled(t, "Emit", "user:"+minister.ID.Hex(), "new-follower", mock.Anything)

	m, err := f.store.GetActor(ctx, models.KindMinister, minister.ID)
	require.NoError(t, err)
	u, err := f.store.GetActor(ctx, models.KindUser, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.FollowerCount)
	assert.Equal(t, 1, u.FollowingCount)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, path, nil, token).Code)

	w = f.do(http.MethodGet, "/api/v1/users/"+minister.ID.Hex()+"/followers", nil, "")
	assert.Contains(t, w.Body.String(), `"count":1`)

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, nil, token).Code)
	f.events.AssertCalled(t, "Emit", "user:"+minister.ID.Hex(), "unfollowed", gin.H{"followerId": user.ID.Hex()})

	m, _ = f.store.GetActor(ctx, models.KindMinister, minister.ID)
	u, _ = f.store.GetActor(ctx, models.KindUser, user.ID)
	assert.Equal(t, 0, m.FollowerCount)
	assert.Equal(t, 0, u.FollowingCount)

	self := "/api/v1/users/" + user.ID.Hex() + "/follow"
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, self, nil, token).Code)
}

func TestDeletePostRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, owner := f.actor(models.KindUser, "Ada")
	_, other := f.actor(models.KindUser, "Ben")
	id := f.createPost(owner, "Keep me")

	w := f.do(http.MethodDelete, "/api/v1/posts/"+id, nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, f.do(http.MethodGet, "/api/v1/posts", nil, "").Body.String(), id)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPut, "/api/v1/posts/"+id, gin.H{"body": "hijack"}, other).Code)

	w = f.do(http.MethodPut, "/api/v1/posts/"+id, gin.H{"body": "Edited"}, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"body":"Edited"`)

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/posts/"+id, nil, owner).Code)
	assert.NotContains(t, f.do(http.MethodGet, "/api/v1/posts", nil, "").Body.String(), id)
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	_, token := f.actor(models.KindMinister, "Joy")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/posts", gin.H{"body": "   "}, token).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/posts", gin.H{"body": "hi"}, "").Code)

	w := f.do(http.MethodPost, "/api/v1/posts", gin.H{
		"media": []gin.H{{"url": "https://cdn.test/v.mp4", "type": "video"}},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"mediaType":"video"`)
	assert.Contains(t, w.Body.String(), `"title":"Untitled"`)
	f.events.AssertCalled(t, "Emit", "feed", "new-post", mock.Anything)
}

func multipartImage(t *testing.T, fields map[string]string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreatePostWithImage(t *testing.T) {
	f := newFixture(t)
	_, token := f.actor(models.KindUser, "Ada")
	f.uploader.On("Upload", mock.Anything, mock.Anything, upload.Options{Folder: "onechurch/posts"}).
		Return("https://res.cloudinary.com/demo/photo.png", nil).Once()

	send := func(contentType string) *httptest.ResponseRecorder {
		body, ct := multipartImage(t, map[string]string{"body": "Sunday"}, contentType, []byte("\x89PNG fake"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	w := send("image/png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://res.cloudinary.com/demo/photo.png")
	assert.Contains(t, w.Body.String(), `"mediaType":"image"`)

	assert.Equal(t, http.StatusBadRequest, send("text/plain").Code)
	f.uploader.AssertExpectations(t)
}

func TestTrendingHashtags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author, _ := f.actor(models.KindUser, "Ada")
	base := time.Now().Add(-time.Hour)

	contents := make([]string, 0, 100)
	for i := 0; i < 5; i++ {
		contents = append(contents, "Walk by #faith")
	}
	for i := 0; i < 3; i++ {
		contents = append(contents, "Hold on to #Hope")
	}
	for len(contents) < 100 {
		contents = append(contents, "ordinary day")
	}
	for i, content := range contents {
		require.NoError(t, f.store.CreateTweet(ctx, &models.Tweet{
			Content:   content,
			Author:    author.Ref(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	w := f.do(http.MethodGet, "/api/v1/tweets/trending", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Trending []struct {
			Tag   string `json:"tag"`
			Count int    `json:"count"`
		} `json:"trending"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Trending, 2)
	assert.Equal(t, "#faith", resp.Trending[0].Tag)
	assert.Equal(t, 5, resp.Trending[0].Count)
	assert.Equal(t, "#hope", resp.Trending[1].Tag)
	assert.Equal(t, 3, resp.Trending[1].Count)
}

func TestCommentCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.actor(models.KindUser, "Ada")
	_, other := f.actor(models.KindUser, "Ben")
	postID := f.createPost(token, "Discuss")

	comment := func(body, parent, tok string) *httptest.ResponseRecorder {
		req := gin.H{"contentId": postID, "contentType": "post", "body": body}
		if parent != "" {
			req["parentComment"] = parent
		}
		return f.do(http.MethodPost, "/api/v1/comments", req, tok)
	}
	commentCount := func() int {
		p, err := f.store.GetPost(ctx, mustID(t, postID))
		require.NoError(t, err)
		return p.CommentCount
	}

	w := comment("Amen", "", token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Comment struct {
			ID string `json:"id"`
		} `json:"comment"`
	}
	decode(t, w, &created)
	assert.Equal(t, 1, commentCount())
	f.events.AssertCalled(t, "Emit", "feed", "new-comment", mock.Anything)

	w = comment("Agreed", created.Comment.ID, other)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply struct {
		Comment struct {
			ID string `json:"id"`
		} `json:"comment"`
	}
	decode(t, w, &reply)
	assert.Equal(t, 2, commentCount())

	parent, err := f.store.GetComment(ctx, mustID(t, created.Comment.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, parent.ReplyCount)

	assert.Equal(t, http.StatusBadRequest, comment("Nested", reply.Comment.ID, token).Code)

	w = f.do(http.MethodGet, "/api/v1/comments/post/"+postID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Amen")
	assert.NotContains(t, w.Body.String(), "Agreed")

	w = f.do(http.MethodGet, "/api/v1/comments/"+created.Comment.ID+"/replies", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Agreed")

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/comments/"+created.Comment.ID, nil, other).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/comments/"+created.Comment.ID, nil, token).Code)
	assert.Equal(t, 0, commentCount())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/comments/story/"+postID, nil, "").Code)
	w = f.do(http.MethodPost, "/api/v1/comments", gin.H{"contentId": strings.Repeat("b", 24), "contentType": "tweet", "body": "?"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodPost, "/api/v1/comments", gin.H{"contentId": postID, "contentType": "video", "body": "?"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileLookup(t *testing.T) {
	f := newFixture(t)
	minister, _ := f.actor(models.KindMinister, "Joy")
	require.NoError(t, f.store.SetRefreshToken(context.Background(), models.KindMinister, minister.ID, "stored-refresh"))

	w := f.do(http.MethodGet, "/api/v1/users/"+minister.ID.Hex()+"/profile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"minister"`)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "stored-refresh")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/users/"+strings.Repeat("c", 24)+"/profile", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/users/nope/profile", nil, "").Code)
}

func TestPrayerStreak(t *testing.T) {
	f := newFixture(t)
	user, token := f.actor(models.KindUser, "Ada")

	type amen struct {
		Message      string `json:"message"`
		PrayerStreak int    `json:"prayerStreak"`
	}
	pray := func() amen {
		w := f.do(http.MethodPost, "/api/v1/users/amen", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		var a amen
		decode(t, w, &a)
		return a
	}

	assert.Equal(t, 1, pray().PrayerStreak)
	again := pray()
	assert.Equal(t, 1, again.PrayerStreak)
	assert.Equal(t, "You've already prayed today!", again.Message)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, f.store.SetPrayerStreak(context.Background(), models.KindUser, user.ID, 3, yesterday))
	assert.Equal(t, 4, pray().PrayerStreak)

	lastWeek := time.Now().UTC().AddDate(0, 0, -7)
	require.NoError(t, f.store.SetPrayerStreak(context.Background(), models.KindUser, user.ID, 9, lastWeek))
	assert.Equal(t, 1, pray().PrayerStreak)
}

func TestStories(t *testing.T) {
	f := newFixture(t)
	_, userToken := f.actor(models.KindUser, "Ada")
	_, ministerToken := f.actor(models.KindMinister, "Joy")
	story := gin.H{"mediaUrl": "https://cdn.test/s.jpg", "mediaType": "image"}

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/stories", story, userToken).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/stories", gin.H{"mediaType": "image"}, ministerToken).Code)

	w := f.do(http.MethodPost, "/api/v1/stories", story, ministerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Story struct {
			ID    string `json:"id"`
			Media struct {
				Duration float64 `json:"duration"`
			} `json:"media"`
		} `json:"story"`
	}
	decode(t, w, &created)
	assert.Equal(t, float64(models.DefaultStoryDuration), created.Story.Media.Duration)
	f.events.AssertCalled(t, "Emit", "feed", "new-story", mock.Anything)

	view := func() bool {
		w := f.do(http.MethodPost, "/api/v1/stories/"+created.Story.ID+"/view", nil, userToken)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Counted bool `json:"counted"`
		}
		decode(t, w, &resp)
		return resp.Counted
	}
	assert.True(t, view())
	assert.False(t, view())

	w = f.do(http.MethodPost, "/api/v1/stories/"+created.Story.ID+"/react", nil, userToken)
	assert.Contains(t, w.Body.String(), `"likes":1`)

	w = f.do(http.MethodGet, "/api/v1/stories", nil, "")
	assert.Contains(t, w.Body.String(), `"viewCount":1`)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/stories/"+created.Story.ID, nil, userToken).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/stories/"+created.Story.ID, nil, ministerToken).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/stories/"+created.Story.ID, nil, "").Code)
}

func TestExploreInterleaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author, _ := f.actor(models.KindMinister, "Joy")
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.store.CreatePost(ctx, &models.Post{Body: "post", PostedBy: author.Ref(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.CreateTweet(ctx, &models.Tweet{Content: "tweet", Author: author.Ref(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	w := f.do(http.MethodGet, "/api/v1/explore", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Feed []struct {
			Type string `json:"type"`
		} `json:"feed"`
	}
	decode(t, w, &resp)
	types := make([]string, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		types = append(types, item.Type)
	}
	assert.Equal(t, []string{"post", "tweet", "post", "tweet", "tweet"}, types)
}

func TestSearchIsLiteral(t *testing.T) {
	f := newFixture(t)
	f.actor(models.KindMinister, "Grace(Church)")
	f.actor(models.KindUser, "Gracey")

	type results struct {
		Results []struct {
			FullName string `json:"fullName"`
		} `json:"results"`
	}
	search := func(query string) results {
		w := f.do(http.MethodGet, "/api/v1/search?"+query, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var r results
		decode(t, w, &r)
		return r
	}

	r := search("q=(church)")
	require.Len(t, r.Results, 1)
	assert.Equal(t, "Grace(Church)", r.Results[0].FullName)

	assert.Empty(t, search("q=.%2A").Results)
	assert.Empty(t, search("q=").Results)

	r = search("q=grace&type=users")
	require.Len(t, r.Results, 1)
	assert.Equal(t, "Gracey", r.Results[0].FullName)
}

func TestRetweetOnce(t *testing.T) {
	f := newFixture(t)
	_, author := f.actor(models.KindUser, "Ada")
	_, fan := f.actor(models.KindUser, "Ben")
	id := f.createTweet(author, "Grace upon grace")

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/tweets/"+id+"/retweet", nil, fan).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/tweets/"+id+"/retweet", nil, fan).Code)
	f.events.AssertCalled(t, "Emit", "feed", "new-retweet", mock.Anything)

	tweet, err := f.store.GetTweet(context.Background(), mustID(t, id))
	require.NoError(t, err)
	assert.Len(t, tweet.Retweets, 1)

	w := f.do(http.MethodPost, "/api/v1/tweets/"+id+"/share", nil, fan)
	assert.Contains(t, w.Body.String(), `"shares":1`)
}

func TestConcurrentRetweetsCreateOne(t *testing.T) {
	f := newFixture(t)
	_, author := f.actor(models.KindUser, "Ada")
	_, fan := f.actor(models.KindUser, "Ben")
	id := f.createTweet(author, "Grace upon grace")

	codes := make(chan int, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- f.do(http.MethodPost, "/api/v1/tweets/"+id+"/retweet", nil, fan).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for code := range codes {
		counts[code]++
	}
	assert.Equal(t, 1, counts[http.StatusCreated])
	assert.Equal(t, 7, counts[http.StatusConflict])

	tweet, err := f.store.GetTweet(context.Background(), mustID(t, id))
	require.NoError(t, err)
	assert.Len(t, tweet.Retweets, 1)
}

func TestTweetComments(t *testing.T) {
	f := newFixture(t)
	_, author := f.actor(models.KindUser, "Ada")
	_, commenter := f.actor(models.KindUser, "Ben")
	_, stranger := f.actor(models.KindUser, "Cal")
	id := f.createTweet(author, "Thoughts?")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/tweets/"+id+"/comment", gin.H{"text": ""}, commenter).Code)

	w := f.do(http.MethodPost, "/api/v1/tweets/"+id+"/comment", gin.H{"text": "Praise"}, commenter)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Comment struct {
			ID string `json:"id"`
		} `json:"comment"`
	}
	decode(t, w, &resp)
	f.events.AssertCalled(t, "Emit", "feed", "new-comment", mock.Anything)

	path := "/api/v1/tweets/" + id + "/comment/" + resp.Comment.ID
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, path, nil, stranger).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, path, nil, author).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, nil, author).Code)

	long := strings.Repeat("x", 281)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/tweets", gin.H{"content": long}, author).Code)
}

func TestSavedPosts(t *testing.T) {
	f := newFixture(t)
	_, token := f.actor(models.KindUser, "Ada")
	id := f.createPost(token, "Bookmark me")

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/posts/"+id+"/save", nil, token).Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/posts/"+id+"/save", nil, token).Code)
	assert.Contains(t, f.do(http.MethodGet, "/api/v1/posts/saved", nil, token).Body.String(), id)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/v1/posts/"+id+"/save", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/posts/"+id+"/save", nil, token).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/posts/"+id+"/report", gin.H{}, token).Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/posts/"+id+"/report", gin.H{"reason": "spam"}, token).Code)
}

func TestPushSubscribe(t *testing.T) {
	f := newFixture(t)
	user, token := f.actor(models.KindUser, "Ada")

	w := f.do(http.MethodGet, "/api/v1/push/vapid-public-key", nil, "")
	assert.Contains(t, w.Body.String(), `"enabled":false`)

	sub := gin.H{"endpoint": "https://push.example.com/abc", "keys": gin.H{"p256dh": "key", "auth": "auth"}}
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/push/subscribe", sub, token).Code)

	saved, err := f.store.GetPushSubscription(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://push.example.com/abc", saved.Endpoint)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/push/subscribe", gin.H{"endpoint": "nope"}, token).Code)
}

func TestHealthAndNoRoute(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}
