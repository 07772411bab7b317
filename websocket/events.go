package websocket

// Server to client events.
const (
	EventConnected  = "connected"
	EventJoined     = "joined"
	EventPong       = "pong"
	EventError      = "error"
	EventNewPost    = "new-post"
	EventNewTweet   = "new-tweet"
	EventNewStory   = "new-story"
	EventPostLiked  = "post-liked"
	EventTweetLiked = "tweet-liked"
	EventNewComment = "new-comment"
	EventNewRetweet = "new-retweet"
	EventNewFollow  = "new-follower"
	EventUnfollowed = "unfollowed"
)

// Client to server messages.
const (
	MsgJoin      = "join"
	MsgJoinFeed  = "join-feed"
	MsgLeaveFeed = "leave-feed"
	MsgPing      = "ping"
)

const FeedRoom = "feed"

// UserRoom is the private room of one actor.
func UserRoom(actorID string) string { return "user:" + actorID }

// Frame is the JSON shape of every websocket message.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster delivers an event to everyone in room.
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}
