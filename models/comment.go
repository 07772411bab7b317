package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentType string

const (
	ContentPost  ContentType = "post"
	ContentTweet ContentType = "tweet"
)

func (c ContentType) Valid() bool { return c == ContentPost || c == ContentTweet }

const MaxCommentLength = 1000

type Comment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Body          string              `bson:"body" json:"body"`
	ContentID     primitive.ObjectID  `bson:"contentId" json:"contentId"`
	ContentType   ContentType         `bson:"contentType" json:"contentType"`
	CommentedBy   ActorRef            `bson:"commentedBy" json:"commentedBy"`
	ParentComment *primitive.ObjectID `bson:"parentComment" json:"parentComment"`
	LikeCount     int                 `bson:"likeCount" json:"likeCount"`
	ReplyCount    int                 `bson:"replyCount" json:"replyCount"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CommentQuery selects top level comments of a content item, or the replies
// of Parent when it is set.
type CommentQuery struct {
	ContentType ContentType
	ContentID   primitive.ObjectID
	Parent      *primitive.ObjectID
}
