package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubjectType names a likeable collection.
type SubjectType string

const (
	SubjectPost    SubjectType = "post"
	SubjectTweet   SubjectType = "tweet"
	SubjectComment SubjectType = "comment"
	SubjectStory   SubjectType = "story"
)

// Like is unique per (SubjectType, SubjectID, Actor.ID).
type Like struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SubjectType SubjectType        `bson:"subjectType" json:"subjectType"`
	SubjectID   primitive.ObjectID `bson:"subjectId" json:"subjectId"`
	Actor       ActorRef           `bson:"actor" json:"actor"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Counter names a denormalized counter field that IncCounter may touch.
type Counter string

const (
	CounterComments Counter = "commentCount"
	CounterReplies  Counter = "replyCount"
	CounterShares   Counter = "shares"
)
