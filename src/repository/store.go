package repository

import (
	"context"

	app "catalogserv/src/app"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	UserRepository interface {
		Create(ctx context.Context, user *app.User) error
		Get(ctx context.Context, id primitive.ObjectID) (*app.User, error)
		FindByEmail(ctx context.Context, email string) (*app.User, error)
		FindByProvider(ctx context.Context, provider app.Provider, subject string) (*app.User, error)
		LinkProvider(ctx context.Context, id primitive.ObjectID, provider app.Provider, subject string) error
		List(ctx context.Context) ([]app.User, error)
		// FindMany returns the users among ids that exist, in id order.
		FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.User, error)
		Update(ctx context.Context, id primitive.ObjectID, patch app.UserPatch) (*app.User, error)
		UpdateMany(ctx context.Context, ids []primitive.ObjectID, patch app.UserPatch) (int64, error)
		Delete(ctx context.Context, id primitive.ObjectID) error
		DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error)
		PushCollection(ctx context.Context, id, collectionID primitive.ObjectID) error
		PullCollection(ctx context.Context, id, collectionID primitive.ObjectID) error
	}

	CollectionRepository interface {
		Create(ctx context.Context, collection *app.Collection) error
		Get(ctx context.Context, id primitive.ObjectID) (*app.Collection, error)
		// List returns every collection, or only those of owner when it is set.
		List(ctx context.Context, owner *primitive.ObjectID) ([]app.Collection, error)
		FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Collection, error)
		Update(ctx context.Context, id primitive.ObjectID, patch app.CollectionPatch) (*app.Collection, error)
		Delete(ctx context.Context, id primitive.ObjectID) error
		PushItem(ctx context.Context, id, itemID primitive.ObjectID) error
		PullItem(ctx context.Context, id, itemID primitive.ObjectID) error
		PushCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error
		PullCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error
		Search(ctx context.Context, query string) ([]app.Collection, error)
	}

	ItemRepository interface {
		Create(ctx context.Context, item *app.Item) error
		Get(ctx context.Context, id primitive.ObjectID) (*app.Item, error)
		List(ctx context.Context, owner *primitive.ObjectID) ([]app.Item, error)
		FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Item, error)
		Update(ctx context.Context, id primitive.ObjectID, patch app.ItemPatch) (*app.Item, error)
		Delete(ctx context.Context, id primitive.ObjectID) error
		AddLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error)
		RemoveLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error)
		AddComment(ctx context.Context, id primitive.ObjectID, comment app.Comment) (*app.Item, error)
		RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) error
		Search(ctx context.Context, query string) ([]app.Item, error)
	}

	CustomFieldRepository interface {
		Create(ctx context.Context, field *app.CustomField) error
		Get(ctx context.Context, id primitive.ObjectID) (*app.CustomField, error)
		List(ctx context.Context, owner *primitive.ObjectID) ([]app.CustomField, error)
		Update(ctx context.Context, id primitive.ObjectID, patch app.CustomFieldPatch) (*app.CustomField, error)
		Delete(ctx context.Context, id primitive.ObjectID) error
	}

	// Store is the persistence boundary. Writes that touch more than one document
	// run inside WithTransaction; the repositories pick the transaction up from ctx.
	Store interface {
		Users() UserRepository
		Collections() CollectionRepository
		Items() ItemRepository
		CustomFields() CustomFieldRepository
		WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
		EnsureIndexes(ctx context.Context) error
		Close(ctx context.Context) error
	}
)

func providerField(provider app.Provider) (string, error) {
	switch provider {
	case app.ProviderGoogle:
		return "googleId", nil
	case app.ProviderGitHub:
		return "githubId", nil
	case app.ProviderFacebook:
		return "facebookId", nil
	}
	return "", app.Validation("unknown provider %q", provider)
}

func ensureUserSlices(u *app.User) {
	if u.Collections == nil {
		u.Collections = []primitive.ObjectID{}
	}
}

func ensureCollectionSlices(c *app.Collection) {
	if c.Items == nil {
		c.Items = []primitive.ObjectID{}
	}
	if c.CustomFields == nil {
		c.CustomFields = []primitive.ObjectID{}
	}
}

func ensureItemSlices(i *app.Item) {
	if i.Tags == nil {
		i.Tags = []string{}
	}
	if i.Comments == nil {
		i.Comments = []app.Comment{}
	}
	if i.Likes == nil {
		i.Likes = []primitive.ObjectID{}
	}
}
