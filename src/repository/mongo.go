package repository

import (
	"context"
	"strings"

	app "catalogserv/src/app"
	cfg "catalogserv/src/configuration"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection        = "users"
	collectionsCollection  = "collections"
	itemsCollection        = "items"
	customFieldsCollection = "customfields"
)

type (
	MongoStore struct {
		client       *mongo.Client
		db           *mongo.Database
		transactions bool
	}

	mongoUsers       struct{ c *mongo.Collection }
	mongoCollections struct{ c *mongo.Collection }
	mongoItems       struct{ c *mongo.Collection }
	mongoFields      struct{ c *mongo.Collection }
)

var _ Store = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, config cfg.MongoProperties) (*MongoStore, error) {
	opts := options.Client().ApplyURI(config.URL)
	if config.Timeout > 0 {
		opts.SetTimeout(config.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "NewMongoStore: connect failed")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "NewMongoStore: ping failed")
	}
	log.WithFields(log.Fields{"database": config.Database, "transactions": config.Transactions}).Info("connected to mongo")
	return &MongoStore{
		client:       client,
		db:           client.Database(config.Database),
		transactions: config.Transactions,
	}, nil
}

func (s *MongoStore) Users() UserRepository {
	return mongoUsers{s.db.Collection(usersCollection)}
}

func (s *MongoStore) Collections() CollectionRepository {
	return mongoCollections{s.db.Collection(collectionsCollection)}
}

func (s *MongoStore) Items() ItemRepository {
	return mongoItems{s.db.Collection(itemsCollection)}
}

func (s *MongoStore) CustomFields() CustomFieldRepository {
	return mongoFields{s.db.Collection(customFieldsCollection)}
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// WithTransaction runs fn in a multi-document transaction. Standalone servers
// do not support transactions; MONGO_TRANSACTIONS=false runs fn without one.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "MongoStore.WithTransaction: start session failed")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "githubId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "facebookId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		collectionsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "topic", Value: "text"},
			}},
		},
		itemsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "collection", Value: 1}}},
			{Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "topic", Value: "text"},
				{Key: "tags", Value: "text"},
			}},
		},
		customFieldsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "collection", Value: 1}}},
		},
	}
	for name, models := range indexes {
		created, err := s.db.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return errors.Wrapf(err, "MongoStore.EnsureIndexes: %s failed", name)
		}
		log.WithFields(log.Fields{"collection": name, "indexes": created}).Debug("indexes ensured")
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return app.NotFound(format, args...)
	}
	return err
}

// duplicateKeyIndex names the unique index a duplicate-key error collided on,
// as reported in "E11000 ... index: email_1 dup key: ...".
func duplicateKeyIndex(err error) string {
	var messages []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			messages = append(messages, e.Message)
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		messages = append(messages, ce.Message)
	}
	for _, m := range messages {
		if _, rest, ok := strings.Cut(m, " index: "); ok {
			name, _, _ := strings.Cut(rest, " ")
			return name
		}
	}
	return ""
}

// userConflict reports which unique user attribute a write collided on.
func userConflict(err error, email string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	index := duplicateKeyIndex(err)
	for _, provider := range []app.Provider{app.ProviderGoogle, app.ProviderGitHub, app.ProviderFacebook} {
		field, _ := providerField(provider)
		if strings.HasPrefix(index, field) {
			return app.Conflict("%s account already linked", provider)
		}
	}
	if email == "" {
		return app.Conflict("user with this email already exists")
	}
	return app.Conflict("user with email %s already exists", email)
}

func byOwner(owner *primitive.ObjectID) bson.M {
	if owner == nil {
		return bson.M{}
	}
	return bson.M{"owner": *owner}
}

func after() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M) ([]T, error) {
	cursor, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// findMany loads the documents with the given ids in one $in query.
func findMany[T any](ctx context.Context, c *mongo.Collection, ids []primitive.ObjectID) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	return findAll[T](ctx, c, bson.M{"_id": bson.M{"$in": ids}})
}

// updateArray applies op to a single document and reports NotFound when
// nothing matched.
func updateArray(ctx context.Context, c *mongo.Collection, id primitive.ObjectID, op string, field string, value any, what string) error {
	res, err := c.UpdateByID(ctx, id, bson.M{
		op:     bson.M{field: value},
		"$set": bson.M{"updatedAt": now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return app.NotFound("%s %s not found", what, id.Hex())
	}
	return nil
}

// users

func (r mongoUsers) Create(ctx context.Context, user *app.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	ensureUserSlices(user)
	_, err := r.c.InsertOne(ctx, user)
	return userConflict(err, user.Email)
}

func (r mongoUsers) findOne(ctx context.Context, filter bson.M, format string, args ...any) (*app.User, error) {
	var u app.User
	if err := r.c.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err, format, args...)
	}
	return &u, nil
}

func (r mongoUsers) Get(ctx context.Context, id primitive.ObjectID) (*app.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "user %s not found", id.Hex())
}

func (r mongoUsers) FindByEmail(ctx context.Context, email string) (*app.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "user with email %s not found", email)
}

func (r mongoUsers) FindByProvider(ctx context.Context, provider app.Provider, subject string) (*app.User, error) {
	field, err := providerField(provider)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{field: subject}, "no user linked to %s account", provider)
}

func (r mongoUsers) LinkProvider(ctx context.Context, id primitive.ObjectID, provider app.Provider, subject string) error {
	field, err := providerField(provider)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{field: subject, "updatedAt": now()}})
	if err != nil {
		return userConflict(err, "")
	}
	if res.MatchedCount == 0 {
		return app.NotFound("user %s not found", id.Hex())
	}
	return nil
}

func (r mongoUsers) List(ctx context.Context) ([]app.User, error) {
	return findAll[app.User](ctx, r.c, bson.M{})
}

func (r mongoUsers) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.User, error) {
	return findMany[app.User](ctx, r.c, ids)
}

func userSet(patch app.UserPatch) bson.M {
	set := bson.M{"updatedAt": now()}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	return set
}

func (r mongoUsers) Update(ctx context.Context, id primitive.ObjectID, patch app.UserPatch) (*app.User, error) {
	var u app.User
	err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": userSet(patch)}, after()).Decode(&u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			email := ""
			if patch.Email != nil {
				email = *patch.Email
			}
			return nil, userConflict(err, email)
		}
		return nil, notFound(err, "user %s not found", id.Hex())
	}
	return &u, nil
}

func (r mongoUsers) UpdateMany(ctx context.Context, ids []primitive.ObjectID, patch app.UserPatch) (int64, error) {
	res, err := r.c.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, bson.M{"$set": userSet(patch)})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r mongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return app.NotFound("user %s not found", id.Hex())
	}
	return nil
}

func (r mongoUsers) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	res, err := r.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r mongoUsers) PushCollection(ctx context.Context, id, collectionID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$push", "collections", collectionID, "user")
}

func (r mongoUsers) PullCollection(ctx context.Context, id, collectionID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$pull", "collections", collectionID, "user")
}

// collections

func (r mongoCollections) Create(ctx context.Context, collection *app.Collection) error {
	if collection.ID.IsZero() {
		collection.ID = primitive.NewObjectID()
	}
	collection.CreatedAt = now()
	collection.UpdatedAt = collection.CreatedAt
	ensureCollectionSlices(collection)
	_, err := r.c.InsertOne(ctx, collection)
	return err
}

func (r mongoCollections) Get(ctx context.Context, id primitive.ObjectID) (*app.Collection, error) {
	var c app.Collection
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err, "collection %s not found", id.Hex())
	}
	return &c, nil
}

func (r mongoCollections) List(ctx context.Context, owner *primitive.ObjectID) ([]app.Collection, error) {
	return findAll[app.Collection](ctx, r.c, byOwner(owner))
}

func (r mongoCollections) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Collection, error) {
	return findMany[app.Collection](ctx, r.c, ids)
}

func (r mongoCollections) Update(ctx context.Context, id primitive.ObjectID, patch app.CollectionPatch) (*app.Collection, error) {
	set := bson.M{"updatedAt": now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Topic != nil {
		set["topic"] = *patch.Topic
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	var c app.Collection
	if err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, after()).Decode(&c); err != nil {
		return nil, notFound(err, "collection %s not found", id.Hex())
	}
	return &c, nil
}

func (r mongoCollections) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return app.NotFound("collection %s not found", id.Hex())
	}
	return nil
}

func (r mongoCollections) PushItem(ctx context.Context, id, itemID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$push", "items", itemID, "collection")
}

func (r mongoCollections) PullItem(ctx context.Context, id, itemID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$pull", "items", itemID, "collection")
}

func (r mongoCollections) PushCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$push", "customFields", fieldID, "collection")
}

func (r mongoCollections) PullCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error {
	return updateArray(ctx, r.c, id, "$pull", "customFields", fieldID, "collection")
}

func (r mongoCollections) Search(ctx context.Context, query string) ([]app.Collection, error) {
	return findAll[app.Collection](ctx, r.c, bson.M{"$text": bson.M{"$search": query}})
}

// items

func (r mongoItems) Create(ctx context.Context, item *app.Item) error {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	ensureItemSlices(item)
	_, err := r.c.InsertOne(ctx, item)
	return err
}

func (r mongoItems) Get(ctx context.Context, id primitive.ObjectID) (*app.Item, error) {
	var i app.Item
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&i); err != nil {
		return nil, notFound(err, "item %s not found", id.Hex())
	}
	return &i, nil
}

func (r mongoItems) List(ctx context.Context, owner *primitive.ObjectID) ([]app.Item, error) {
	return findAll[app.Item](ctx, r.c, byOwner(owner))
}

func (r mongoItems) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Item, error) {
	return findMany[app.Item](ctx, r.c, ids)
}

func (r mongoItems) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*app.Item, error) {
	var i app.Item
	if err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, after()).Decode(&i); err != nil {
		return nil, notFound(err, "item %s not found", id.Hex())
	}
	return &i, nil
}

func (r mongoItems) Update(ctx context.Context, id primitive.ObjectID, patch app.ItemPatch) (*app.Item, error) {
	set := bson.M{"updatedAt": now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Topic != nil {
		set["topic"] = *patch.Topic
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}
	return r.findAndUpdate(ctx, id, bson.M{"$set": set})
}

func (r mongoItems) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return app.NotFound("item %s not found", id.Hex())
	}
	return nil
}

func (r mongoItems) AddLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$addToSet": bson.M{"likes": userID},
		"$set":      bson.M{"updatedAt": now()},
	})
}

func (r mongoItems) RemoveLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$pull": bson.M{"likes": userID},
		"$set":  bson.M{"updatedAt": now()},
	})
}

func (r mongoItems) AddComment(ctx context.Context, id primitive.ObjectID, comment app.Comment) (*app.Item, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": now()},
	})
}

func (r mongoItems) RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) error {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": id, "comments._id": commentID},
		bson.M{
			"$pull": bson.M{"comments": bson.M{"_id": commentID}},
			"$set":  bson.M{"updatedAt": now()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return app.NotFound("comment %s not found", commentID.Hex())
	}
	return nil
}

func (r mongoItems) Search(ctx context.Context, query string) ([]app.Item, error) {
	return findAll[app.Item](ctx, r.c, bson.M{"$text": bson.M{"$search": query}})
}

// custom fields

func (r mongoFields) Create(ctx context.Context, field *app.CustomField) error {
	if field.ID.IsZero() {
		field.ID = primitive.NewObjectID()
	}
	field.CreatedAt = now()
	field.UpdatedAt = field.CreatedAt
	_, err := r.c.InsertOne(ctx, field)
	return err
}

func (r mongoFields) Get(ctx context.Context, id primitive.ObjectID) (*app.CustomField, error) {
	var f app.CustomField
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, notFound(err, "custom field %s not found", id.Hex())
	}
	return &f, nil
}

func (r mongoFields) List(ctx context.Context, owner *primitive.ObjectID) ([]app.CustomField, error) {
	return findAll[app.CustomField](ctx, r.c, byOwner(owner))
}

func (r mongoFields) Update(ctx context.Context, id primitive.ObjectID, patch app.CustomFieldPatch) (*app.CustomField, error) {
	set := bson.M{"updatedAt": now()}
	if patch.FieldNumber != nil {
		set["fieldNumber"] = *patch.FieldNumber
	}
	if patch.FieldName != nil {
		set["fieldName"] = *patch.FieldName
	}
	if patch.FieldType != nil {
		set["fieldType"] = *patch.FieldType
	}
	if patch.FieldChecked != nil {
		set["fieldChecked"] = *patch.FieldChecked
	}
	if patch.FieldDate != nil {
		set["fieldDate"] = *patch.FieldDate
	}
	var f app.CustomField
	if err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, after()).Decode(&f); err != nil {
		return nil, notFound(err, "custom field %s not found", id.Hex())
	}
	return &f, nil
}

func (r mongoFields) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return app.NotFound("custom field %s not found", id.Hex())
	}
	return nil
}
