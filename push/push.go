// Package push sends browser web-push notifications to actors who saved a
// subscription.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/logger"
	"onechurch/models"
	"onechurch/store"
)

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
}

type Notifier interface {
	// PublicKey is the VAPID public key browsers subscribe with; empty when
	// push is disabled.
	PublicKey() string
	// NotifyNewFollower tells target in the background that follower
	// started following them.
	NotifyNewFollower(target primitive.ObjectID, follower *models.Actor)
}

type WebPush struct {
	subs       store.PushStore
	publicKey  string
	privateKey string
	subject    string
	client     *http.Client
}

var _ Notifier = (*WebPush)(nil)

func NewWebPush(subs store.PushStore, publicKey, privateKey, subject string) *WebPush {
	return &WebPush{
		subs:       subs,
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    subject,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebPush) PublicKey() string { return w.publicKey }

func (w *WebPush) NotifyNewFollower(target primitive.ObjectID, follower *models.Actor) {
	msg := Message{
		Title: "New follower",
		Body:  follower.FullName + " started following you",
		Icon:  follower.ProfilePic,
		URL:   "/profile/" + follower.ID.Hex(),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error.Printf("Panic in push notification: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := w.Send(ctx, target, msg); err != nil {
			logger.Warn.Printf("Failed to send push notification to %s: %v", target.Hex(), err)
		}
	}()
}

// Send delivers msg to the actor's subscription. A missing subscription is
// not an error. A 404 or 410 from the push service removes the stale one.
func (w *WebPush) Send(ctx context.Context, actorID primitive.ObjectID, msg Message) error {
	sub, err := w.subs.GetPushSubscription(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(notificationPayload(msg))
	if err != nil {
		return errors.Wrap(err, "marshal push payload")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.subject,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             30,
	})
	if err != nil {
		return errors.Wrap(err, "send push")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		logger.Info.Printf("Push subscription expired for %s, deleting", actorID.Hex())
		return w.subs.DeletePushSubscription(ctx, actorID)
	case resp.StatusCode >= 400:
		return errors.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}

// notificationPayload shapes the payload the service worker expects.
func notificationPayload(msg Message) map[string]interface{} {
	return map[string]interface{}{
		"title": msg.Title,
		"body":  msg.Body,
		"icon":  msg.Icon,
		"data": map[string]interface{}{
			"url":       msg.URL,
			"timestamp": time.Now().Unix(),
		},
	}
}

// Disabled is the Notifier used when no VAPID keys are configured.
type Disabled struct{}

func (Disabled) PublicKey() string { return "" }

func (Disabled) NotifyNewFollower(primitive.ObjectID, *models.Actor) {}
