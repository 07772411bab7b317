// Package store defines the persistence boundary used by the HTTP handlers.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type ActorStore interface {
	// CreateActor inserts a into the collection for a.Kind. Duplicate email
	// returns ErrDuplicate.
	CreateActor(ctx context.Context, a *models.Actor) error
	GetActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID) (*models.Actor, error)
	GetActors(ctx context.Context, refs []models.ActorRef) (map[primitive.ObjectID]*models.Actor, error)
	FindActorByEmail(ctx context.Context, kind models.ActorKind, email string) (*models.Actor, error)
	UpdateActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, u models.ActorUpdate) (*models.Actor, error)
	ListActors(ctx context.Context, kind models.ActorKind, q models.ActorQuery) ([]*models.Actor, error)
	SetPrayerStreak(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, streak int, at time.Time) error
	SetRefreshToken(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, token string) error
}

type FollowStore interface {
	// Follow inserts the edge and bumps both counters. An existing edge
	// returns ErrDuplicate and leaves the counters alone.
	Follow(ctx context.Context, follower, target models.ActorRef) error
	// Unfollow removes the edge and decrements both counters. A missing edge
	// returns ErrNotFound.
	Unfollow(ctx context.Context, follower, target models.ActorRef) error
	IsFollowing(ctx context.Context, follower, target primitive.ObjectID) (bool, error)
	ListFollowers(ctx context.Context, target primitive.ObjectID) ([]models.ActorRef, error)
	ListFollowing(ctx context.Context, follower primitive.ObjectID) ([]models.ActorRef, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	ListPosts(ctx context.Context, q models.PostQuery) ([]*models.Post, error)
	UpdatePost(ctx context.Context, id primitive.ObjectID, u models.PostUpdate) (*models.Post, error)
	// DeletePost also removes the post's comments, likes and saves.
	DeletePost(ctx context.Context, id primitive.ObjectID) error

	SavePost(ctx context.Context, actorID, postID primitive.ObjectID) error
	UnsavePost(ctx context.Context, actorID, postID primitive.ObjectID) error
	ListSavedPosts(ctx context.Context, actorID primitive.ObjectID) ([]*models.Post, error)
	CreateReport(ctx context.Context, r *models.Report) error
}

type TweetStore interface {
	// CreateTweet returns ErrDuplicate for a second retweet of the same
	// original by the same author.
	CreateTweet(ctx context.Context, t *models.Tweet) error
	GetTweet(ctx context.Context, id primitive.ObjectID) (*models.Tweet, error)
	ListTweets(ctx context.Context, q models.TweetQuery) ([]*models.Tweet, error)
	UpdateTweetContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Tweet, error)
	// DeleteTweet also removes the tweet's comments and likes.
	DeleteTweet(ctx context.Context, id primitive.ObjectID) error
	AddTweetComment(ctx context.Context, id primitive.ObjectID, c models.TweetComment) (*models.Tweet, error)
	RemoveTweetComment(ctx context.Context, id, commentID primitive.ObjectID) (*models.Tweet, error)
	AddRetweet(ctx context.Context, originalID, retweetID primitive.ObjectID) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	ListComments(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error)
	// DeleteComment removes the comment and its direct replies and reports
	// how many documents were removed.
	DeleteComment(ctx context.Context, id primitive.ObjectID) (int, error)
}

type StoryStore interface {
	CreateStory(ctx context.Context, s *models.Story) error
	GetStory(ctx context.Context, id primitive.ObjectID) (*models.Story, error)
	ListActiveStories(ctx context.Context, now time.Time) ([]*models.Story, error)
	// RecordStoryView appends viewer once; it reports whether a view was added.
	RecordStoryView(ctx context.Context, id primitive.ObjectID, viewer models.ActorRef, at time.Time) (bool, error)
	DeleteStory(ctx context.Context, id primitive.ObjectID) error
}

type EngagementStore interface {
	// ToggleLike adds the like when absent and removes it when present,
	// returning the new state and the subject's likeCount.
	ToggleLike(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, actor models.ActorRef) (liked bool, count int, err error)
	LikedBy(ctx context.Context, subject models.SubjectType, ids []primitive.ObjectID, actorID primitive.ObjectID) (map[primitive.ObjectID]bool, error)
	// IncCounter adds delta to a denormalized counter and returns the new value.
	IncCounter(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, c models.Counter, delta int) (int, error)
}

type PushStore interface {
	SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error
	GetPushSubscription(ctx context.Context, actorID primitive.ObjectID) (*models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, actorID primitive.ObjectID) error
}

type Store interface {
	ActorStore
	FollowStore
	PostStore
	TweetStore
	CommentStore
	StoryStore
	EngagementStore
	PushStore
	Close(ctx context.Context) error
}
