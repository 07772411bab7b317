package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type PushKeys struct {
	P256dh string `bson:"p256dh" json:"p256dh"`
	Auth   string `bson:"auth" json:"auth"`
}

// PushSubscription is the browser push endpoint saved for an actor.
type PushSubscription struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID  primitive.ObjectID `bson:"actorId" json:"actorId"`
	Endpoint string             `bson:"endpoint" json:"endpoint"`
	Keys     PushKeys           `bson:"keys" json:"keys"`
}
