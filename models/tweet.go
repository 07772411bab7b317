package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxTweetLength = 280

type TweetComment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      ActorRef           `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Tweet struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Content       string               `bson:"content" json:"content"`
	Media         []Media              `bson:"media" json:"media"`
	Author        ActorRef             `bson:"author" json:"author"`
	LikeCount     int                  `bson:"likeCount" json:"likeCount"`
	Comments      []TweetComment       `bson:"comments" json:"comments"`
	CommentCount  int                  `bson:"commentCount" json:"commentCount"`
	Retweets      []primitive.ObjectID `bson:"retweets" json:"retweets"`
	OriginalTweet *primitive.ObjectID  `bson:"originalTweet,omitempty" json:"originalTweet,omitempty"`
	IsRetweet     bool                 `bson:"isRetweet" json:"isRetweet"`
	Shares        int                  `bson:"shares" json:"shares"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// FindComment returns the embedded comment with id, or nil.
func (t *Tweet) FindComment(id primitive.ObjectID) *TweetComment {
	for i := range t.Comments {
		if t.Comments[i].ID == id {
			return &t.Comments[i]
		}
	}
	return nil
}

type TweetQuery struct {
	AuthorID      *primitive.ObjectID
	OriginalTweet *primitive.ObjectID
	Limit         int
}
