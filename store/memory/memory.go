package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onechurch/models"
	"onechurch/store"
)

type pair [2]primitive.ObjectID

type likeKey struct {
	subject models.SubjectType
	id      primitive.ObjectID
	actor   primitive.ObjectID
}

// MemoryStorage keeps everything in maps behind one RWMutex.
type MemoryStorage struct {
	mu sync.RWMutex

	actors   map[models.ActorKind]map[primitive.ObjectID]*models.Actor
	follows  map[pair]*models.Follow
	posts    map[primitive.ObjectID]*models.Post
	saved    map[pair]*models.SavedPost
	reports  []*models.Report
	tweets   map[primitive.ObjectID]*models.Tweet
	comments map[primitive.ObjectID]*models.Comment
	stories  map[primitive.ObjectID]*models.Story
	likes    map[likeKey]*models.Like
	push     map[primitive.ObjectID]*models.PushSubscription
}

var _ store.Store = (*MemoryStorage)(nil)

func New() *MemoryStorage {
	return &MemoryStorage{
		actors: map[models.ActorKind]map[primitive.ObjectID]*models.Actor{
			models.KindUser:     {},
			models.KindMinister: {},
		},
		follows:  make(map[pair]*models.Follow),
		posts:    make(map[primitive.ObjectID]*models.Post),
		saved:    make(map[pair]*models.SavedPost),
		tweets:   make(map[primitive.ObjectID]*models.Tweet),
		comments: make(map[primitive.ObjectID]*models.Comment),
		stories:  make(map[primitive.ObjectID]*models.Story),
		likes:    make(map[likeKey]*models.Like),
		push:     make(map[primitive.ObjectID]*models.PushSubscription),
	}
}

func (s *MemoryStorage) Close(ctx context.Context) error { return nil }

// ---- actors

func (s *MemoryStorage) collection(kind models.ActorKind) (map[primitive.ObjectID]*models.Actor, error) {
	coll, ok := s.actors[kind]
	if !ok {
		return nil, errors.Errorf("unknown actor kind %q", kind)
	}
	return coll, nil
}

func (s *MemoryStorage) CreateActor(ctx context.Context, a *models.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(a.Kind)
	if err != nil {
		return err
	}
	for _, existing := range coll {
		if existing.Email == a.Email {
			return store.ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	cp := *a
	coll[a.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID) (*models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	a, ok := coll[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStorage) GetActors(ctx context.Context, refs []models.ActorRef) (map[primitive.ObjectID]*models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.Actor, len(refs))
	for _, ref := range refs {
		coll, ok := s.actors[ref.Kind]
		if !ok {
			continue
		}
		if a, ok := coll[ref.ID]; ok {
			cp := *a
			out[ref.ID] = &cp
		}
	}
	return out, nil
}

func (s *MemoryStorage) FindActorByEmail(ctx context.Context, kind models.ActorKind, email string) (*models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	for _, a := range coll {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStorage) UpdateActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, u models.ActorUpdate) (*models.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	a, ok := coll[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Apply(a)
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (s *MemoryStorage) ListActors(ctx context.Context, kind models.ActorKind, q models.ActorQuery) ([]*models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q.Search)
	var out []*models.Actor
	for _, a := range coll {
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.FullName), needle) &&
			!strings.Contains(strings.ToLower(a.Email), needle) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.SortByFollowers && out[i].FollowerCount != out[j].FollowerCount {
			return out[i].FollowerCount > out[j].FollowerCount
		}
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return limit(out, q.Limit), nil
}

func (s *MemoryStorage) SetPrayerStreak(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, streak int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(kind)
	if err != nil {
		return err
	}
	a, ok := coll[id]
	if !ok {
		return store.ErrNotFound
	}
	a.PrayerStreak = streak
	a.LastAmenDate = &at
	return nil
}

func (s *MemoryStorage) SetRefreshToken(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(kind)
	if err != nil {
		return err
	}
	a, ok := coll[id]
	if !ok {
		return store.ErrNotFound
	}
	a.RefreshToken = token
	return nil
}

// ---- follows

func (s *MemoryStorage) Follow(ctx context.Context, follower, target models.ActorRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{follower.ID, target.ID}
	if _, ok := s.follows[key]; ok {
		return store.ErrDuplicate
	}
	f, errF := s.collection(follower.Kind)
	t, errT := s.collection(target.Kind)
	if errF != nil || errT != nil {
		return store.ErrNotFound
	}
	fa, ok1 := f[follower.ID]
	ta, ok2 := t[target.ID]
	if !ok1 || !ok2 {
		return store.ErrNotFound
	}
	s.follows[key] = &models.Follow{
		ID:        primitive.NewObjectID(),
		Follower:  follower,
		Target:    target,
		CreatedAt: time.Now(),
	}
	fa.FollowingCount++
	ta.FollowerCount++
	return nil
}

func (s *MemoryStorage) Unfollow(ctx context.Context, follower, target models.ActorRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{follower.ID, target.ID}
	edge, ok := s.follows[key]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.follows, key)
	if a, ok := s.actors[edge.Follower.Kind][edge.Follower.ID]; ok && a.FollowingCount > 0 {
		a.FollowingCount--
	}
	if a, ok := s.actors[edge.Target.Kind][edge.Target.ID]; ok && a.FollowerCount > 0 {
		a.FollowerCount--
	}
	return nil
}

func (s *MemoryStorage) IsFollowing(ctx context.Context, follower, target primitive.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[pair{follower, target}]
	return ok, nil
}

func (s *MemoryStorage) ListFollowers(ctx context.Context, target primitive.ObjectID) ([]models.ActorRef, error) {
	return s.edges(func(f *models.Follow) (models.ActorRef, bool) { return f.Follower, f.Target.ID == target }), nil
}

func (s *MemoryStorage) ListFollowing(ctx context.Context, follower primitive.ObjectID) ([]models.ActorRef, error) {
	return s.edges(func(f *models.Follow) (models.ActorRef, bool) { return f.Target, f.Follower.ID == follower }), nil
}

func (s *MemoryStorage) edges(match func(*models.Follow) (models.ActorRef, bool)) []models.ActorRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Follow
	for _, f := range s.follows {
		if _, ok := match(f); ok {
			matched = append(matched, f)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return newer(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	out := make([]models.ActorRef, 0, len(matched))
	for _, f := range matched {
		ref, _ := match(f)
		out = append(out, ref)
	}
	return out
}

// ---- posts

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Media = append([]models.Media(nil), p.Media...)
	return &cp
}

func (s *MemoryStorage) CreatePost(ctx context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.posts[p.ID] = clonePost(p)
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clonePost(p), nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, q models.PostQuery) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Post
	for _, p := range s.posts {
		if q.AuthorID != nil && p.PostedBy.ID != *q.AuthorID {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	if q.Skip > 0 {
		if q.Skip >= len(out) {
			return nil, nil
		}
		out = out[q.Skip:]
	}
	return limit(out, q.Limit), nil
}

func (s *MemoryStorage) UpdatePost(ctx context.Context, id primitive.ObjectID, u models.PostUpdate) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Body != nil {
		p.Body = *u.Body
	}
	p.UpdatedAt = time.Now()
	return clonePost(p), nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.posts, id)
	s.dropLikes(models.SubjectPost, id)
	s.dropContentComments(models.ContentPost, id)
	for k, sp := range s.saved {
		if sp.PostID == id {
			delete(s.saved, k)
		}
	}
	return nil
}

func (s *MemoryStorage) SavePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return store.ErrNotFound
	}
	key := pair{actorID, postID}
	if _, ok := s.saved[key]; ok {
		return store.ErrDuplicate
	}
	s.saved[key] = &models.SavedPost{
		ID:        primitive.NewObjectID(),
		ActorID:   actorID,
		PostID:    postID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStorage) UnsavePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{actorID, postID}
	if _, ok := s.saved[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.saved, key)
	return nil
}

func (s *MemoryStorage) ListSavedPosts(ctx context.Context, actorID primitive.ObjectID) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var saves []*models.SavedPost
	for _, sp := range s.saved {
		if sp.ActorID == actorID {
			saves = append(saves, sp)
		}
	}
	sort.Slice(saves, func(i, j int) bool {
		return newer(saves[i].CreatedAt, saves[j].CreatedAt, saves[i].ID, saves[j].ID)
	})
	out := make([]*models.Post, 0, len(saves))
	for _, sp := range saves {
		if p, ok := s.posts[sp.PostID]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (s *MemoryStorage) CreateReport(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[r.PostID]; !ok {
		return store.ErrNotFound
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	cp := *r
	s.reports = append(s.reports, &cp)
	return nil
}

// ---- tweets

func cloneTweet(t *models.Tweet) *models.Tweet {
	cp := *t
	cp.Media = append([]models.Media(nil), t.Media...)
	cp.Comments = append([]models.TweetComment(nil), t.Comments...)
	cp.Retweets = append([]primitive.ObjectID(nil), t.Retweets...)
	if t.OriginalTweet != nil {
		orig := *t.OriginalTweet
		cp.OriginalTweet = &orig
	}
	return &cp
}

func (s *MemoryStorage) CreateTweet(ctx context.Context, t *models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.IsRetweet && t.OriginalTweet != nil {
		for _, existing := range s.tweets {
			if existing.IsRetweet && existing.Author.ID == t.Author.ID &&
				existing.OriginalTweet != nil && *existing.OriginalTweet == *t.OriginalTweet {
				return store.ErrDuplicate
			}
		}
	}
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	s.tweets[t.ID] = cloneTweet(t)
	return nil
}

func (s *MemoryStorage) GetTweet(ctx context.Context, id primitive.ObjectID) (*models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tweets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTweet(t), nil
}

func (s *MemoryStorage) ListTweets(ctx context.Context, q models.TweetQuery) ([]*models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Tweet
	for _, t := range s.tweets {
		if q.AuthorID != nil && t.Author.ID != *q.AuthorID {
			continue
		}
		if q.OriginalTweet != nil && (t.OriginalTweet == nil || *t.OriginalTweet != *q.OriginalTweet) {
			continue
		}
		out = append(out, cloneTweet(t))
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return limit(out, q.Limit), nil
}

func (s *MemoryStorage) UpdateTweetContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tweets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Content = content
	t.UpdatedAt = time.Now()
	return cloneTweet(t), nil
}

func (s *MemoryStorage) DeleteTweet(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tweets[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.tweets, id)
	if t.OriginalTweet != nil {
		if orig, ok := s.tweets[*t.OriginalTweet]; ok {
			orig.Retweets = removeID(orig.Retweets, id)
		}
	}
	s.dropLikes(models.SubjectTweet, id)
	s.dropContentComments(models.ContentTweet, id)
	return nil
}

func (s *MemoryStorage) AddTweetComment(ctx context.Context, id primitive.ObjectID, c models.TweetComment) (*models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tweets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Comments = append(t.Comments, c)
	return cloneTweet(t), nil
}

func (s *MemoryStorage) RemoveTweetComment(ctx context.Context, id, commentID primitive.ObjectID) (*models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tweets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for i, c := range t.Comments {
		if c.ID == commentID {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			return cloneTweet(t), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStorage) AddRetweet(ctx context.Context, originalID, retweetID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tweets[originalID]
	if !ok {
		return store.ErrNotFound
	}
	t.Retweets = append(t.Retweets, retweetID)
	return nil
}

// ---- comments

func cloneComment(c *models.Comment) *models.Comment {
	cp := *c
	if c.ParentComment != nil {
		p := *c.ParentComment
		cp.ParentComment = &p
	}
	return &cp
}

func (s *MemoryStorage) CreateComment(ctx context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.comments[c.ID] = cloneComment(c)
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneComment(c), nil
}

// ListComments returns top level comments newest first, or replies oldest first.
func (s *MemoryStorage) ListComments(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Comment
	for _, c := range s.comments {
		if q.Parent != nil {
			if c.ParentComment == nil || *c.ParentComment != *q.Parent {
				continue
			}
		} else if c.ParentComment != nil || c.ContentType != q.ContentType || c.ContentID != q.ContentID {
			continue
		}
		out = append(out, cloneComment(c))
	}
	sort.Slice(out, func(i, j int) bool {
		n := newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
		if q.Parent != nil {
			return !n
		}
		return n
	})
	return out, nil
}

func (s *MemoryStorage) DeleteComment(ctx context.Context, id primitive.ObjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return 0, store.ErrNotFound
	}
	removed := 0
	for cid, c := range s.comments {
		if cid == id || (c.ParentComment != nil && *c.ParentComment == id) {
			delete(s.comments, cid)
			s.dropLikes(models.SubjectComment, cid)
			removed++
		}
	}
	return removed, nil
}

// ---- stories

func cloneStory(st *models.Story) *models.Story {
	cp := *st
	cp.Views = append([]models.StoryView(nil), st.Views...)
	return &cp
}

func (s *MemoryStorage) CreateStory(ctx context.Context, st *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID.IsZero() {
		st.ID = primitive.NewObjectID()
	}
	s.stories[st.ID] = cloneStory(st)
	return nil
}

func (s *MemoryStorage) GetStory(ctx context.Context, id primitive.ObjectID) (*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneStory(st), nil
}

func (s *MemoryStorage) ListActiveStories(ctx context.Context, now time.Time) ([]*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Story
	for _, st := range s.stories {
		if st.Active(now) {
			out = append(out, cloneStory(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStorage) RecordStoryView(ctx context.Context, id primitive.ObjectID, viewer models.ActorRef, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stories[id]
	if !ok {
		return false, store.ErrNotFound
	}
	for _, v := range st.Views {
		if v.User.ID == viewer.ID {
			return false, nil
		}
	}
	st.Views = append(st.Views, models.StoryView{User: viewer, ViewedAt: at})
	return true, nil
}

func (s *MemoryStorage) DeleteStory(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.stories, id)
	s.dropLikes(models.SubjectStory, id)
	return nil
}

// ---- likes and counters

// likeCounter returns a pointer to the subject's likeCount.
func (s *MemoryStorage) likeCounter(subject models.SubjectType, id primitive.ObjectID) (*int, error) {
	switch subject {
	case models.SubjectPost:
		if p, ok := s.posts[id]; ok {
			return &p.LikeCount, nil
		}
	case models.SubjectTweet:
		if t, ok := s.tweets[id]; ok {
			return &t.LikeCount, nil
		}
	case models.SubjectComment:
		if c, ok := s.comments[id]; ok {
			return &c.LikeCount, nil
		}
	case models.SubjectStory:
		if st, ok := s.stories[id]; ok {
			return &st.LikeCount, nil
		}
	default:
		return nil, errors.Errorf("unknown subject %q", subject)
	}
	return nil, store.ErrNotFound
}

func (s *MemoryStorage) ToggleLike(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, actor models.ActorRef) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, err := s.likeCounter(subject, id)
	if err != nil {
		return false, 0, err
	}
	key := likeKey{subject, id, actor.ID}
	if _, ok := s.likes[key]; ok {
		delete(s.likes, key)
		if *counter > 0 {
			*counter--
		}
		return false, *counter, nil
	}
	s.likes[key] = &models.Like{
		ID:          primitive.NewObjectID(),
		SubjectType: subject,
		SubjectID:   id,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
	*counter++
	return true, *counter, nil
}

func (s *MemoryStorage) LikedBy(ctx context.Context, subject models.SubjectType, ids []primitive.ObjectID, actorID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]bool)
	for _, id := range ids {
		if _, ok := s.likes[likeKey{subject, id, actorID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *MemoryStorage) IncCounter(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, c models.Counter, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var field *int
	switch {
	case subject == models.SubjectPost && c == models.CounterComments:
		if p, ok := s.posts[id]; ok {
			field = &p.CommentCount
		}
	case subject == models.SubjectTweet && c == models.CounterComments:
		if t, ok := s.tweets[id]; ok {
			field = &t.CommentCount
		}
	case subject == models.SubjectTweet && c == models.CounterShares:
		if t, ok := s.tweets[id]; ok {
			field = &t.Shares
		}
	case subject == models.SubjectComment && c == models.CounterReplies:
		if cm, ok := s.comments[id]; ok {
			field = &cm.ReplyCount
		}
	default:
		return 0, errors.Errorf("counter %s not supported on %s", c, subject)
	}
	if field == nil {
		return 0, store.ErrNotFound
	}
	*field += delta
	return *field, nil
}

// ---- push

func (s *MemoryStorage) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.push[sub.ActorID]; ok {
		sub.ID = existing.ID
	} else if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	cp := *sub
	s.push[sub.ActorID] = &cp
	return nil
}

func (s *MemoryStorage) GetPushSubscription(ctx context.Context, actorID primitive.ObjectID) (*models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.push[actorID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStorage) DeletePushSubscription(ctx context.Context, actorID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.push, actorID)
	return nil
}

// ---- helpers, callers hold s.mu

func (s *MemoryStorage) dropLikes(subject models.SubjectType, id primitive.ObjectID) {
	for k := range s.likes {
		if k.subject == subject && k.id == id {
			delete(s.likes, k)
		}
	}
}

func (s *MemoryStorage) dropContentComments(ct models.ContentType, id primitive.ObjectID) {
	for cid, c := range s.comments {
		if c.ContentType == ct && c.ContentID == id {
			delete(s.comments, cid)
			s.dropLikes(models.SubjectComment, cid)
		}
	}
}

func newer(a, b time.Time, aID, bID primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.Hex() > bID.Hex()
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
