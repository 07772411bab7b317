package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/database"
	"onechurch/models"
	"onechurch/store"
)

func startMongo(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := database.Connect(ctx, "mongodb://"+host+":"+port.Port())
	require.NoError(t, err)

	s, err := New(ctx, client, "onechurch_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func TestMongoStorage(t *testing.T) {
	s := startMongo(t)
	ctx := context.Background()

	user := &models.Actor{Kind: models.KindUser, Email: "u@x.io", FullName: "Grace Hopper", CreatedAt: time.Now()}
	minister := &models.Actor{Kind: models.KindMinister, Email: "m@x.io", FullName: "Pastor Ade", CreatedAt: time.Now()}
	require.NoError(t, s.CreateActor(ctx, user))
	require.NoError(t, s.CreateActor(ctx, minister))

	t.Run("duplicate email", func(t *testing.T) {
		err := s.CreateActor(ctx, &models.Actor{Kind: models.KindUser, Email: "u@x.io"})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("search escapes regex", func(t *testing.T) {
		found, err := s.ListActors(ctx, models.KindUser, models.ActorQuery{Search: "grace"})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = s.ListActors(ctx, models.KindUser, models.ActorQuery{Search: ".*"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("follow keeps counters in step", func(t *testing.T) {
		require.NoError(t, s.Follow(ctx, user.Ref(), minister.Ref()))
		assert.ErrorIs(t, s.Follow(ctx, user.Ref(), minister.Ref()), store.ErrDuplicate)

		m, err := s.GetActor(ctx, models.KindMinister, minister.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, m.FollowerCount)

		require.NoError(t, s.Unfollow(ctx, user.Ref(), minister.Ref()))
		assert.ErrorIs(t, s.Unfollow(ctx, user.Ref(), minister.Ref()), store.ErrNotFound)

		m, err = s.GetActor(ctx, models.KindMinister, minister.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, m.FollowerCount)
	})

	t.Run("concurrent likes count once each", func(t *testing.T) {
		p := &models.Post{Title: "t", PostedBy: minister.Ref(), CreatedAt: time.Now()}
		require.NoError(t, s.CreatePost(ctx, p))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ref := models.ActorRef{ID: primitive.NewObjectID(), Kind: models.KindUser}
				_, _, err := s.ToggleLike(ctx, models.SubjectPost, p.ID, ref)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.LikeCount)

		liked, n, err := s.ToggleLike(ctx, models.SubjectPost, p.ID, user.Ref())
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, 11, n)
		liked, n, err = s.ToggleLike(ctx, models.SubjectPost, p.ID, user.Ref())
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Equal(t, 10, n)
	})

	t.Run("one retweet per author", func(t *testing.T) {
		original := &models.Tweet{Content: "hello", Author: minister.Ref(), CreatedAt: time.Now()}
		require.NoError(t, s.CreateTweet(ctx, original))

		retweet := func() error {
			return s.CreateTweet(ctx, &models.Tweet{
				Content:       original.Content,
				Author:        user.Ref(),
				OriginalTweet: &original.ID,
				IsRetweet:     true,
				CreatedAt:     time.Now(),
			})
		}
		require.NoError(t, retweet())
		assert.ErrorIs(t, retweet(), store.ErrDuplicate)

		// plain tweets by the same author are not constrained
		require.NoError(t, s.CreateTweet(ctx, &models.Tweet{Content: "again", Author: user.Ref(), CreatedAt: time.Now()}))
		require.NoError(t, s.CreateTweet(ctx, &models.Tweet{Content: "and again", Author: user.Ref(), CreatedAt: time.Now()}))
	})

	t.Run("delete post cascades", func(t *testing.T) {
		p := &models.Post{Title: "gone", PostedBy: user.Ref(), CreatedAt: time.Now()}
		require.NoError(t, s.CreatePost(ctx, p))
		c := &models.Comment{Body: "hi", ContentID: p.ID, ContentType: models.ContentPost, CommentedBy: user.Ref(), CreatedAt: time.Now()}
		require.NoError(t, s.CreateComment(ctx, c))
		require.NoError(t, s.SavePost(ctx, user.ID, p.ID))

		require.NoError(t, s.DeletePost(ctx, p.ID))

		_, err := s.GetComment(ctx, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		saved, err := s.ListSavedPosts(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, saved)
	})

	t.Run("comment replies", func(t *testing.T) {
		contentID := primitive.NewObjectID()
		top := &models.Comment{Body: "top", ContentID: contentID, ContentType: models.ContentTweet, CommentedBy: user.Ref(), CreatedAt: time.Now()}
		require.NoError(t, s.CreateComment(ctx, top))
		reply := &models.Comment{Body: "re", ContentID: contentID, ContentType: models.ContentTweet,
			CommentedBy: user.Ref(), ParentComment: &top.ID, CreatedAt: time.Now()}
		require.NoError(t, s.CreateComment(ctx, reply))

		tops, err := s.ListComments(ctx, models.CommentQuery{ContentType: models.ContentTweet, ContentID: contentID})
		require.NoError(t, err)
		assert.Len(t, tops, 1)

		n, err := s.DeleteComment(ctx, top.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("story views once", func(t *testing.T) {
		now := time.Now()
		st := &models.Story{PostedBy: minister.Ref(), CreatedAt: now, ExpiresAt: now.Add(models.StoryLifetime)}
		require.NoError(t, s.CreateStory(ctx, st))

		added, err := s.RecordStoryView(ctx, st.ID, user.Ref(), now)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.RecordStoryView(ctx, st.ID, user.Ref(), now)
		require.NoError(t, err)
		assert.False(t, added)

		_, err = s.RecordStoryView(ctx, primitive.NewObjectID(), user.Ref(), now)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("push subscription upsert", func(t *testing.T) {
		sub := &models.PushSubscription{ActorID: user.ID, Endpoint: "https://push/1"}
		require.NoError(t, s.SavePushSubscription(ctx, sub))
		first := sub.ID

		sub2 := &models.PushSubscription{ActorID: user.ID, Endpoint: "https://push/2"}
		require.NoError(t, s.SavePushSubscription(ctx, sub2))
		assert.Equal(t, first, sub2.ID)

		got, err := s.GetPushSubscription(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://push/2", got.Endpoint)
	})
}
