// Package mongodb implements store.Store on MongoDB. Like, follow and save
// toggles rely on the unique indexes created by database.EnsureIndexes;
// counters only move when the matching insert or delete succeeded.
package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"onechurch/database"
	"onechurch/models"
	"onechurch/store"
)

type Storage struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Storage)(nil)

// New wraps an already connected client and ensures indexes on dbName.
func New(ctx context.Context, client *mongo.Client, dbName string) (*Storage, error) {
	db := client.Database(dbName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Storage{client: client, db: db}, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return database.Disconnect(s.client)
}

func (s *Storage) c(name string) *mongo.Collection { return s.db.Collection(name) }

func actorCollection(kind models.ActorKind) (string, error) {
	switch kind {
	case models.KindUser:
		return database.Users, nil
	case models.KindMinister:
		return database.Ministers, nil
	}
	return "", errors.Errorf("unknown actor kind %q", kind)
}

func subjectCollection(subject models.SubjectType) (string, error) {
	switch subject {
	case models.SubjectPost:
		return database.Posts, nil
	case models.SubjectTweet:
		return database.Tweets, nil
	case models.SubjectComment:
		return database.Comments, nil
	case models.SubjectStory:
		return database.Stories, nil
	}
	return "", errors.Errorf("unknown subject %q", subject)
}

// notFound maps the driver's empty result to store.ErrNotFound.
func notFound(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return errors.Wrap(err, op)
}

var newest = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "find %s", coll.Name())
	}
	var out []*T
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", coll.Name())
	}
	return out, nil
}

func exists(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrapf(err, "count %s", coll.Name())
	}
	return n > 0, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// inc adds delta to field and returns the new value. With floor set a
// decrement never takes the field below zero.
func inc(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, field string, delta int, floor bool) (int, error) {
	filter := bson.M{"_id": id}
	if floor && delta < 0 {
		filter[field] = bson.M{"$gte": -delta}
	}
	proj := bson.M{field: 1}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(proj)

	var doc bson.M
	err := coll.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{field: delta}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) && floor && delta < 0 {
		err = coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(proj)).Decode(&doc)
	}
	if err != nil {
		return 0, notFound(err, "inc "+field)
	}
	return toInt(doc[field]), nil
}

// ---- actors

func (s *Storage) CreateActor(ctx context.Context, a *models.Actor) error {
	name, err := actorCollection(a.Kind)
	if err != nil {
		return err
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, err := s.c(name).InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return errors.Wrap(err, "insert actor")
	}
	return nil
}

func (s *Storage) GetActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID) (*models.Actor, error) {
	name, err := actorCollection(kind)
	if err != nil {
		return nil, err
	}
	var a models.Actor
	if err := s.c(name).FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, notFound(err, "find actor")
	}
	a.Kind = kind
	return &a, nil
}

func (s *Storage) GetActors(ctx context.Context, refs []models.ActorRef) (map[primitive.ObjectID]*models.Actor, error) {
	byKind := map[models.ActorKind][]primitive.ObjectID{}
	for _, r := range refs {
		byKind[r.Kind] = append(byKind[r.Kind], r.ID)
	}
	out := make(map[primitive.ObjectID]*models.Actor, len(refs))
	for kind, ids := range byKind {
		name, err := actorCollection(kind)
		if err != nil {
			continue
		}
		actors, err := findAll[models.Actor](ctx, s.c(name), bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		for _, a := range actors {
			a.Kind = kind
			out[a.ID] = a
		}
	}
	return out, nil
}

func (s *Storage) FindActorByEmail(ctx context.Context, kind models.ActorKind, email string) (*models.Actor, error) {
	name, err := actorCollection(kind)
	if err != nil {
		return nil, err
	}
	var a models.Actor
	if err := s.c(name).FindOne(ctx, bson.M{"email": email}).Decode(&a); err != nil {
		return nil, notFound(err, "find actor by email")
	}
	a.Kind = kind
	return &a, nil
}

func (s *Storage) UpdateActor(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, u models.ActorUpdate) (*models.Actor, error) {
	name, err := actorCollection(kind)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now()}
	for field, v := range map[string]*string{
		"fullName":     u.FullName,
		"bio":          u.Bio,
		"location":     u.Location,
		"ministerType": u.MinisterType,
		"profilePic":   u.ProfilePic,
		"bannerPic":    u.BannerPic,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	var a models.Actor
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c(name).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&a); err != nil {
		return nil, notFound(err, "update actor")
	}
	a.Kind = kind
	return &a, nil
}

func (s *Storage) ListActors(ctx context.Context, kind models.ActorKind, q models.ActorQuery) ([]*models.Actor, error) {
	name, err := actorCollection(kind)
	if err != nil {
		return nil, err
	}
	filter := bson.M{}
	if q.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{bson.M{"fullName": rx}, bson.M{"email": rx}}
	}
	opts := options.Find().SetSort(newest)
	if q.SortByFollowers {
		opts.SetSort(bson.D{{Key: "followerCount", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	actors, err := findAll[models.Actor](ctx, s.c(name), filter, opts)
	if err != nil {
		return nil, err
	}
	for _, a := range actors {
		a.Kind = kind
	}
	return actors, nil
}

func (s *Storage) updateActorFields(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, set bson.M) error {
	name, err := actorCollection(kind)
	if err != nil {
		return err
	}
	res, err := s.c(name).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "update actor")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Storage) SetPrayerStreak(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, streak int, at time.Time) error {
	return s.updateActorFields(ctx, kind, id, bson.M{"prayerStreak": streak, "lastAmenDate": at})
}

func (s *Storage) SetRefreshToken(ctx context.Context, kind models.ActorKind, id primitive.ObjectID, token string) error {
	return s.updateActorFields(ctx, kind, id, bson.M{"refreshToken": token})
}

// ---- follows

func (s *Storage) Follow(ctx context.Context, follower, target models.ActorRef) error {
	fc, err := actorCollection(follower.Kind)
	if err != nil {
		return store.ErrNotFound
	}
	tc, err := actorCollection(target.Kind)
	if err != nil {
		return store.ErrNotFound
	}
	for _, check := range []struct {
		coll string
		id   primitive.ObjectID
	}{{fc, follower.ID}, {tc, target.ID}} {
		ok, err := exists(ctx, s.c(check.coll), check.id)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
	}

	edge := models.Follow{
		ID:        primitive.NewObjectID(),
		Follower:  follower,
		Target:    target,
		CreatedAt: time.Now(),
	}
	if _, err := s.c(database.Follows).InsertOne(ctx, edge); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return errors.Wrap(err, "insert follow")
	}
	if _, err := inc(ctx, s.c(fc), follower.ID, "followingCount", 1, false); err != nil {
		return err
	}
	_, err = inc(ctx, s.c(tc), target.ID, "followerCount", 1, false)
	return err
}

func (s *Storage) Unfollow(ctx context.Context, follower, target models.ActorRef) error {
	var edge models.Follow
	filter := bson.M{"follower.id": follower.ID, "target.id": target.ID}
	if err := s.c(database.Follows).FindOneAndDelete(ctx, filter).Decode(&edge); err != nil {
		return notFound(err, "delete follow")
	}
	if fc, err := actorCollection(edge.Follower.Kind); err == nil {
		if _, err := inc(ctx, s.c(fc), edge.Follower.ID, "followingCount", -1, true); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if tc, err := actorCollection(edge.Target.Kind); err == nil {
		if _, err := inc(ctx, s.c(tc), edge.Target.ID, "followerCount", -1, true); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Storage) IsFollowing(ctx context.Context, follower, target primitive.ObjectID) (bool, error) {
	n, err := s.c(database.Follows).CountDocuments(ctx, bson.M{"follower.id": follower, "target.id": target})
	if err != nil {
		return false, errors.Wrap(err, "count follows")
	}
	return n > 0, nil
}

func (s *Storage) ListFollowers(ctx context.Context, target primitive.ObjectID) ([]models.ActorRef, error) {
	edges, err := findAll[models.Follow](ctx, s.c(database.Follows), bson.M{"target.id": target}, options.Find().SetSort(newest))
	if err != nil {
		return nil, err
	}
	out := make([]models.ActorRef, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Follower)
	}
	return out, nil
}

func (s *Storage) ListFollowing(ctx context.Context, follower primitive.ObjectID) ([]models.ActorRef, error) {
	edges, err := findAll[models.Follow](ctx, s.c(database.Follows), bson.M{"follower.id": follower}, options.Find().SetSort(newest))
	if err != nil {
		return nil, err
	}
	out := make([]models.ActorRef, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out, nil
}

// ---- posts

func (s *Storage) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Media == nil {
		p.Media = []models.Media{}
	}
	if _, err := s.c(database.Posts).InsertOne(ctx, p); err != nil {
		return errors.Wrap(err, "insert post")
	}
	return nil
}

func (s *Storage) GetPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := s.c(database.Posts).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err, "find post")
	}
	return &p, nil
}

func (s *Storage) ListPosts(ctx context.Context, q models.PostQuery) ([]*models.Post, error) {
	filter := bson.M{}
	if q.AuthorID != nil {
		filter["postedBy.id"] = *q.AuthorID
	}
	opts := options.Find().SetSort(newest)
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return findAll[models.Post](ctx, s.c(database.Posts), filter, opts)
}

func (s *Storage) UpdatePost(ctx context.Context, id primitive.ObjectID, u models.PostUpdate) (*models.Post, error) {
	set := bson.M{"updatedAt": time.Now()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Body != nil {
		set["body"] = *u.Body
	}
	var p models.Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c(database.Posts).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, notFound(err, "update post")
	}
	return &p, nil
}

func (s *Storage) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c(database.Posts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete post")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	if err := s.dropLikes(ctx, models.SubjectPost, id); err != nil {
		return err
	}
	if err := s.dropContentComments(ctx, models.ContentPost, id); err != nil {
		return err
	}
	if _, err := s.c(database.SavedPosts).DeleteMany(ctx, bson.M{"postId": id}); err != nil {
		return errors.Wrap(err, "delete saves")
	}
	return nil
}

func (s *Storage) SavePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	ok, err := exists(ctx, s.c(database.Posts), postID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	save := models.SavedPost{
		ID:        primitive.NewObjectID(),
		ActorID:   actorID,
		PostID:    postID,
		CreatedAt: time.Now(),
	}
	if _, err := s.c(database.SavedPosts).InsertOne(ctx, save); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return errors.Wrap(err, "insert save")
	}
	return nil
}

func (s *Storage) UnsavePost(ctx context.Context, actorID, postID primitive.ObjectID) error {
	res, err := s.c(database.SavedPosts).DeleteOne(ctx, bson.M{"actorId": actorID, "postId": postID})
	if err != nil {
		return errors.Wrap(err, "delete save")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Storage) ListSavedPosts(ctx context.Context, actorID primitive.ObjectID) ([]*models.Post, error) {
	saves, err := findAll[models.SavedPost](ctx, s.c(database.SavedPosts), bson.M{"actorId": actorID}, options.Find().SetSort(newest))
	if err != nil {
		return nil, err
	}
	if len(saves) == 0 {
		return []*models.Post{}, nil
	}
	ids := make([]primitive.ObjectID, len(saves))
	for i, sp := range saves {
		ids[i] = sp.PostID
	}
	posts, err := findAll[models.Post](ctx, s.c(database.Posts), bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	out := make([]*models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Storage) CreateReport(ctx context.Context, r *models.Report) error {
	ok, err := exists(ctx, s.c(database.Posts), r.PostID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, err := s.c(database.Reports).InsertOne(ctx, r); err != nil {
		return errors.Wrap(err, "insert report")
	}
	return nil
}

// ---- tweets

func (s *Storage) CreateTweet(ctx context.Context, t *models.Tweet) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if t.Media == nil {
		t.Media = []models.Media{}
	}
	if t.Comments == nil {
		t.Comments = []models.TweetComment{}
	}
	if t.Retweets == nil {
		t.Retweets = []primitive.ObjectID{}
	}
	if _, err := s.c(database.Tweets).InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return errors.Wrap(err, "insert tweet")
	}
	return nil
}

func (s *Storage) GetTweet(ctx context.Context, id primitive.ObjectID) (*models.Tweet, error) {
	var t models.Tweet
	if err := s.c(database.Tweets).FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, notFound(err, "find tweet")
	}
	return &t, nil
}

func (s *Storage) ListTweets(ctx context.Context, q models.TweetQuery) ([]*models.Tweet, error) {
	filter := bson.M{}
	if q.AuthorID != nil {
		filter["author.id"] = *q.AuthorID
	}
	if q.OriginalTweet != nil {
		filter["originalTweet"] = *q.OriginalTweet
	}
	opts := options.Find().SetSort(newest)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return findAll[models.Tweet](ctx, s.c(database.Tweets), filter, opts)
}

func (s *Storage) updateTweet(ctx context.Context, filter, update bson.M) (*models.Tweet, error) {
	var t models.Tweet
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c(database.Tweets).FindOneAndUpdate(ctx, filter, update, opts).Decode(&t); err != nil {
		return nil, notFound(err, "update tweet")
	}
	return &t, nil
}

func (s *Storage) UpdateTweetContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Tweet, error) {
	return s.updateTweet(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now()}})
}

func (s *Storage) DeleteTweet(ctx context.Context, id primitive.ObjectID) error {
	var t models.Tweet
	if err := s.c(database.Tweets).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return notFound(err, "delete tweet")
	}
	if t.OriginalTweet != nil {
		if _, err := s.c(database.Tweets).UpdateOne(ctx,
			bson.M{"_id": *t.OriginalTweet},
			bson.M{"$pull": bson.M{"retweets": id}}); err != nil {
			return errors.Wrap(err, "pull retweet")
		}
	}
	if err := s.dropLikes(ctx, models.SubjectTweet, id); err != nil {
		return err
	}
	return s.dropContentComments(ctx, models.ContentTweet, id)
}

func (s *Storage) AddTweetComment(ctx context.Context, id primitive.ObjectID, c models.TweetComment) (*models.Tweet, error) {
	return s.updateTweet(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"comments": c}})
}

func (s *Storage) RemoveTweetComment(ctx context.Context, id, commentID primitive.ObjectID) (*models.Tweet, error) {
	return s.updateTweet(ctx,
		bson.M{"_id": id, "comments._id": commentID},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}})
}

func (s *Storage) AddRetweet(ctx context.Context, originalID, retweetID primitive.ObjectID) error {
	res, err := s.c(database.Tweets).UpdateOne(ctx, bson.M{"_id": originalID}, bson.M{"$push": bson.M{"retweets": retweetID}})
	if err != nil {
		return errors.Wrap(err, "push retweet")
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- comments

func (s *Storage) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, err := s.c(database.Comments).InsertOne(ctx, c); err != nil {
		return errors.Wrap(err, "insert comment")
	}
	return nil
}

func (s *Storage) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	if err := s.c(database.Comments).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err, "find comment")
	}
	return &c, nil
}

func (s *Storage) ListComments(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	if q.Parent != nil {
		return findAll[models.Comment](ctx, s.c(database.Comments),
			bson.M{"parentComment": *q.Parent},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	}
	return findAll[models.Comment](ctx, s.c(database.Comments),
		bson.M{"contentType": q.ContentType, "contentId": q.ContentID, "parentComment": nil},
		options.Find().SetSort(newest))
}

func (s *Storage) DeleteComment(ctx context.Context, id primitive.ObjectID) (int, error) {
	res, err := s.c(database.Comments).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, errors.Wrap(err, "delete comment")
	}
	if res.DeletedCount == 0 {
		return 0, store.ErrNotFound
	}
	replyIDs, err := s.commentIDs(ctx, bson.M{"parentComment": id})
	if err != nil {
		return 0, err
	}
	if len(replyIDs) > 0 {
		if _, err := s.c(database.Comments).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": replyIDs}}); err != nil {
			return 0, errors.Wrap(err, "delete replies")
		}
	}
	all := append(replyIDs, id)
	if _, err := s.c(database.Likes).DeleteMany(ctx, bson.M{
		"subjectType": models.SubjectComment,
		"subjectId":   bson.M{"$in": all},
	}); err != nil {
		return 0, errors.Wrap(err, "delete comment likes")
	}
	return len(all), nil
}

func (s *Storage) commentIDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := s.c(database.Comments).Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find comment ids")
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode comment ids")
	}
	ids := make([]primitive.ObjectID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// ---- stories

func (s *Storage) CreateStory(ctx context.Context, st *models.Story) error {
	if st.ID.IsZero() {
		st.ID = primitive.NewObjectID()
	}
	if st.Views == nil {
		st.Views = []models.StoryView{}
	}
	if _, err := s.c(database.Stories).InsertOne(ctx, st); err != nil {
		return errors.Wrap(err, "insert story")
	}
	return nil
}

func (s *Storage) GetStory(ctx context.Context, id primitive.ObjectID) (*models.Story, error) {
	var st models.Story
	if err := s.c(database.Stories).FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		return nil, notFound(err, "find story")
	}
	return &st, nil
}

func (s *Storage) ListActiveStories(ctx context.Context, now time.Time) ([]*models.Story, error) {
	return findAll[models.Story](ctx, s.c(database.Stories),
		bson.M{"expiresAt": bson.M{"$gt": now}},
		options.Find().SetSort(newest))
}

func (s *Storage) RecordStoryView(ctx context.Context, id primitive.ObjectID, viewer models.ActorRef, at time.Time) (bool, error) {
	res, err := s.c(database.Stories).UpdateOne(ctx,
		bson.M{"_id": id, "views.user.id": bson.M{"$ne": viewer.ID}},
		bson.M{"$push": bson.M{"views": models.StoryView{User: viewer, ViewedAt: at}}})
	if err != nil {
		return false, errors.Wrap(err, "record story view")
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	ok, err := exists(ctx, s.c(database.Stories), id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Storage) DeleteStory(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c(database.Stories).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete story")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return s.dropLikes(ctx, models.SubjectStory, id)
}

// ---- likes and counters

func (s *Storage) ToggleLike(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, actor models.ActorRef) (bool, int, error) {
	name, err := subjectCollection(subject)
	if err != nil {
		return false, 0, err
	}
	coll := s.c(name)
	ok, err := exists(ctx, coll, id)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, store.ErrNotFound
	}

	likes := s.c(database.Likes)
	key := bson.M{"subjectType": subject, "subjectId": id, "actor.id": actor.ID}
	res, err := likes.DeleteOne(ctx, key)
	if err != nil {
		return false, 0, errors.Wrap(err, "delete like")
	}
	if res.DeletedCount > 0 {
		n, err := inc(ctx, coll, id, "likeCount", -1, true)
		return false, n, err
	}

	like := models.Like{
		ID:          primitive.NewObjectID(),
		SubjectType: subject,
		SubjectID:   id,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
	if _, err := likes.InsertOne(ctx, like); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return false, 0, errors.Wrap(err, "insert like")
		}
		// a concurrent request from the same actor won the insert
		n, err := inc(ctx, coll, id, "likeCount", 0, false)
		return true, n, err
	}
	n, err := inc(ctx, coll, id, "likeCount", 1, false)
	return true, n, err
}

func (s *Storage) LikedBy(ctx context.Context, subject models.SubjectType, ids []primitive.ObjectID, actorID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool)
	if len(ids) == 0 {
		return out, nil
	}
	likes, err := findAll[models.Like](ctx, s.c(database.Likes), bson.M{
		"subjectType": subject,
		"subjectId":   bson.M{"$in": ids},
		"actor.id":    actorID,
	})
	if err != nil {
		return nil, err
	}
	for _, l := range likes {
		out[l.SubjectID] = true
	}
	return out, nil
}

func (s *Storage) IncCounter(ctx context.Context, subject models.SubjectType, id primitive.ObjectID, c models.Counter, delta int) (int, error) {
	var coll string
	switch {
	case subject == models.SubjectPost && c == models.CounterComments:
		coll = database.Posts
	case subject == models.SubjectTweet && (c == models.CounterComments || c == models.CounterShares):
		coll = database.Tweets
	case subject == models.SubjectComment && c == models.CounterReplies:
		coll = database.Comments
	default:
		return 0, errors.Errorf("counter %s not supported on %s", c, subject)
	}
	return inc(ctx, s.c(coll), id, string(c), delta, false)
}

// ---- push

func (s *Storage) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$set":         bson.M{"endpoint": sub.Endpoint, "keys": sub.Keys},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	if err := s.c(database.PushSubs).FindOneAndUpdate(ctx, bson.M{"actorId": sub.ActorID}, update, opts).Decode(sub); err != nil {
		return errors.Wrap(err, "save push subscription")
	}
	return nil
}

func (s *Storage) GetPushSubscription(ctx context.Context, actorID primitive.ObjectID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	if err := s.c(database.PushSubs).FindOne(ctx, bson.M{"actorId": actorID}).Decode(&sub); err != nil {
		return nil, notFound(err, "find push subscription")
	}
	return &sub, nil
}

func (s *Storage) DeletePushSubscription(ctx context.Context, actorID primitive.ObjectID) error {
	if _, err := s.c(database.PushSubs).DeleteOne(ctx, bson.M{"actorId": actorID}); err != nil {
		return errors.Wrap(err, "delete push subscription")
	}
	return nil
}

// ---- cascade helpers

func (s *Storage) dropLikes(ctx context.Context, subject models.SubjectType, id primitive.ObjectID) error {
	if _, err := s.c(database.Likes).DeleteMany(ctx, bson.M{"subjectType": subject, "subjectId": id}); err != nil {
		return errors.Wrapf(err, "delete %s likes", subject)
	}
	return nil
}

func (s *Storage) dropContentComments(ctx context.Context, ct models.ContentType, id primitive.ObjectID) error {
	ids, err := s.commentIDs(ctx, bson.M{"contentType": ct, "contentId": id})
	if err != nil || len(ids) == 0 {
		return err
	}
	if _, err := s.c(database.Likes).DeleteMany(ctx, bson.M{
		"subjectType": models.SubjectComment,
		"subjectId":   bson.M{"$in": ids},
	}); err != nil {
		return errors.Wrap(err, "delete comment likes")
	}
	if _, err := s.c(database.Comments).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return errors.Wrap(err, "delete comments")
	}
	return nil
}
