package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo || k == MediaDocument
}

type Media struct {
	URL       string    `bson:"url" json:"url"`
	Type      MediaKind `bson:"type" json:"type"`
	Thumbnail string    `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Duration  float64   `bson:"duration,omitempty" json:"duration,omitempty"`
	Size      int64     `bson:"size,omitempty" json:"size,omitempty"`
}

// MediaTypeOf summarizes a media list as none, image, video or mixed.
func MediaTypeOf(media []Media) string {
	if len(media) == 0 {
		return "none"
	}
	var images, videos int
	for _, m := range media {
		switch m.Type {
		case MediaImage:
			images++
		case MediaVideo:
			videos++
		}
	}
	switch {
	case images == len(media):
		return "image"
	case videos == len(media):
		return "video"
	default:
		return "mixed"
	}
}

type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Body         string             `bson:"body" json:"body"`
	Media        []Media            `bson:"media" json:"media"`
	MediaType    string             `bson:"mediaType" json:"mediaType"`
	PostedBy     ActorRef           `bson:"postedBy" json:"postedBy"`
	LikeCount    int                `bson:"likeCount" json:"likeCount"`
	CommentCount int                `bson:"commentCount" json:"commentCount"`
	ShareCount   int                `bson:"shareCount" json:"shareCount"`
	ViewCount    int                `bson:"viewCount" json:"viewCount"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type PostQuery struct {
	AuthorID *primitive.ObjectID
	Skip     int
	Limit    int
}

type PostUpdate struct {
	Title *string
	Body  *string
}

// SavedPost records that an actor bookmarked a post.
type SavedPost struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID   primitive.ObjectID `bson:"actorId" json:"actorId"`
	PostID    primitive.ObjectID `bson:"postId" json:"postId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Report struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"postId" json:"postId"`
	Reporter  ActorRef           `bson:"reporter" json:"reporter"`
	Reason    string             `bson:"reason" json:"reason"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
