package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActorKind string

const (
	KindUser     ActorKind = "user"
	KindMinister ActorKind = "minister"
)

func (k ActorKind) Valid() bool { return k == KindUser || k == KindMinister }

// ActorRef points at either a User or a Minister.
type ActorRef struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Kind ActorKind          `bson:"kind" json:"kind"`
}

func (r ActorRef) IsZero() bool { return r.ID.IsZero() }

// Actor is the document shape shared by the users and ministers collections.
// Minister-only fields stay empty for users.
type Actor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind         ActorKind          `bson:"kind" json:"kind"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	RefreshToken string             `bson:"refreshToken,omitempty" json:"-"`
	FullName     string             `bson:"fullName" json:"fullName"`
	Role         string             `bson:"role" json:"role"`
	ProfilePic   string             `bson:"profilePic" json:"profilePic"`
	BannerPic    string             `bson:"bannerPic" json:"bannerPic"`
	Bio          string             `bson:"bio" json:"bio"`
	Location     string             `bson:"location" json:"location"`

	MinisterType string `bson:"ministerType,omitempty" json:"ministerType,omitempty"`
	IsVerified   bool   `bson:"isVerified" json:"isVerified"`

	PrayerStreak int        `bson:"prayerStreak" json:"prayerStreak"`
	LastAmenDate *time.Time `bson:"lastAmenDate,omitempty" json:"lastAmenDate,omitempty"`

	FollowerCount  int `bson:"followerCount" json:"followerCount"`
	FollowingCount int `bson:"followingCount" json:"followingCount"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a *Actor) Ref() ActorRef { return ActorRef{ID: a.ID, Kind: a.Kind} }

// ActorUpdate holds the editable profile fields. Nil means unchanged.
type ActorUpdate struct {
	FullName     *string
	Bio          *string
	Location     *string
	MinisterType *string
	ProfilePic   *string
	BannerPic    *string
}

func (u ActorUpdate) Empty() bool {
	return u.FullName == nil && u.Bio == nil && u.Location == nil &&
		u.MinisterType == nil && u.ProfilePic == nil && u.BannerPic == nil
}

// Apply copies the set fields onto a.
func (u ActorUpdate) Apply(a *Actor) {
	if u.FullName != nil {
		a.FullName = *u.FullName
	}
	if u.Bio != nil {
		a.Bio = *u.Bio
	}
	if u.Location != nil {
		a.Location = *u.Location
	}
	if u.MinisterType != nil {
		a.MinisterType = *u.MinisterType
	}
	if u.ProfilePic != nil {
		a.ProfilePic = *u.ProfilePic
	}
	if u.BannerPic != nil {
		a.BannerPic = *u.BannerPic
	}
}

// ActorQuery filters ListActors. Search matches fullName or email as a
// case-insensitive substring.
type ActorQuery struct {
	Search          string
	SortByFollowers bool
	Limit           int
}

const FallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

// ActorSummary is the populated author shape embedded in content responses.
type ActorSummary struct {
	ID           string    `json:"id"`
	Kind         ActorKind `json:"kind"`
	FullName     string    `json:"fullName"`
	ProfilePic   string    `json:"profilePic"`
	MinisterType string    `json:"ministerType,omitempty"`
	IsVerified   bool      `json:"isVerified"`
}

// Summarize returns the summary for a, or a placeholder for ref when a is nil.
func Summarize(ref ActorRef, a *Actor) ActorSummary {
	if a == nil {
		return ActorSummary{
			ID:         ref.ID.Hex(),
			Kind:       ref.Kind,
			FullName:   "Unknown User",
			ProfilePic: FallbackAvatar,
		}
	}
	pic := a.ProfilePic
	if pic == "" {
		pic = FallbackAvatar
	}
	return ActorSummary{
		ID:           a.ID.Hex(),
		Kind:         a.Kind,
		FullName:     a.FullName,
		ProfilePic:   pic,
		MinisterType: a.MinisterType,
		IsVerified:   a.IsVerified,
	}
}

// Follow is one follower -> target edge.
type Follow struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Follower  ActorRef           `bson:"follower" json:"follower"`
	Target    ActorRef           `bson:"target" json:"target"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
