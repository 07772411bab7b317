package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StoryLifetime        = 24 * time.Hour
	DefaultStoryDuration = 5
)

type StoryMedia struct {
	URL      string    `bson:"url" json:"url"`
	Type     MediaKind `bson:"type" json:"type"`
	Duration float64   `bson:"duration" json:"duration"`
}

type StoryView struct {
	User     ActorRef  `bson:"user" json:"user"`
	ViewedAt time.Time `bson:"viewedAt" json:"viewedAt"`
}

type Story struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Media     StoryMedia         `bson:"media" json:"media"`
	PostedBy  ActorRef           `bson:"postedBy" json:"postedBy"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	Views     []StoryView        `bson:"views" json:"views"`
	LikeCount int                `bson:"likeCount" json:"likeCount"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

func (s *Story) Active(now time.Time) bool { return s.ExpiresAt.After(now) }
