package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"onechurch/logger"
)

// Collection names.
const (
	Users         = "users"
	Ministers     = "ministers"
	Follows       = "follows"
	Posts         = "posts"
	SavedPosts    = "saved_posts"
	Reports       = "reports"
	Tweets        = "tweets"
	Comments      = "comments"
	Stories       = "stories"
	Likes         = "likes"
	PushSubs      = "push_subscriptions"
	connectTries  = 3
	retryInterval = 2 * time.Second
)

// Connect dials MongoDB and pings it, retrying a few times before giving up.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	var lastErr error
	for i := 1; i <= connectTries; i++ {
		client, err := connectOnce(ctx, uri)
		if err == nil {
			logger.Info.Println("✅ MongoDB connected successfully")
			return client, nil
		}
		lastErr = err
		logger.Warn.Printf("❌ MongoDB connection attempt %d failed: %v", i, err)
		if i == connectTries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	return nil, errors.Wrap(lastErr, "connect mongo")
}

func connectOnce(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func Disconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "disconnect mongo")
	}

	logger.Info.Println("Disconnected from MongoDB")
	return nil
}

func unique(keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
}

func plain(keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys}
}

// oneRetweet allows a single retweet of a tweet per author.
var oneRetweet = mongo.IndexModel{
	Keys: bson.D{{Key: "author.id", Value: 1}, {Key: "originalTweet", Value: 1}},
	Options: options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"isRetweet": true}),
}

var indexes = map[string][]mongo.IndexModel{
	Users:     {unique(bson.D{{Key: "email", Value: 1}})},
	Ministers: {unique(bson.D{{Key: "email", Value: 1}}), plain(bson.D{{Key: "followerCount", Value: -1}})},
	Follows: {
		unique(bson.D{{Key: "follower.id", Value: 1}, {Key: "target.id", Value: 1}}),
		plain(bson.D{{Key: "target.id", Value: 1}}),
	},
	Posts:      {plain(bson.D{{Key: "createdAt", Value: -1}}), plain(bson.D{{Key: "postedBy.id", Value: 1}})},
	SavedPosts: {unique(bson.D{{Key: "actorId", Value: 1}, {Key: "postId", Value: 1}})},
	Tweets:     {plain(bson.D{{Key: "createdAt", Value: -1}}), plain(bson.D{{Key: "author.id", Value: 1}}), oneRetweet},
	Comments: {
		plain(bson.D{{Key: "contentType", Value: 1}, {Key: "contentId", Value: 1}, {Key: "createdAt", Value: -1}}),
		plain(bson.D{{Key: "parentComment", Value: 1}}),
	},
	Stories: {plain(bson.D{{Key: "expiresAt", Value: 1}})},
	Likes: {
		unique(bson.D{{Key: "subjectType", Value: 1}, {Key: "subjectId", Value: 1}, {Key: "actor.id", Value: 1}}),
	},
	PushSubs: {unique(bson.D{{Key: "actorId", Value: 1}})},
}

// EnsureIndexes creates the indexes the store depends on. The unique ones
// back the like, follow, save and retweet toggles.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, specs := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			return errors.Wrapf(err, "create indexes on %s", coll)
		}
	}
	return nil
}
