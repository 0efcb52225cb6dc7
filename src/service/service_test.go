package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	cfg "catalogserv/src/configuration"
	db "catalogserv/src/repository"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) UploadImage(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, object, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockImageStore) DeleteImage(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

var errInjected = errors.New("injected fault")

// faultyStore swaps the collection repository and can drop the transaction
// boundary so the effect of a failure between two writes can be observed.
type faultyStore struct {
	db.Store
	collections db.CollectionRepository
	noTx        bool
}

func (f *faultyStore) Collections() db.CollectionRepository { return f.collections }

func (f *faultyStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.noTx {
		return fn(ctx)
	}
	return f.Store.WithTransaction(ctx, fn)
}

type failingPush struct {
	db.CollectionRepository
}

func (failingPush) PushItem(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return errInjected
}

type fixture struct {
	store    *db.InMemoryDB
	images   *MockImageStore
	services *Services
	alice    *app.User
	bob      *app.User
	admin    *app.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := db.NewInMemoryDB()
	tokens, err := auth.NewTokenManager(cfg.AuthProperties{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Issuer:    "catalogserv",
		TokenTTL:  time.Hour,
	})
	require.NoError(t, err)
	logger, _ := logtest.NewNullLogger()
	images := new(MockImageStore)

	f := &fixture{store: store, images: images, services: New(store, tokens, images, logger)}
	for _, u := range []**app.User{&f.alice, &f.bob, &f.admin} {
		*u = &app.User{Role: app.RoleUser, Status: app.StatusActive}
	}
	f.alice.Username, f.alice.Email = "alice", "alice@example.com"
	f.bob.Username, f.bob.Email = "bob", "bob@example.com"
	f.admin.Username, f.admin.Email, f.admin.Role = "root", "root@example.com", app.RoleAdmin
	for _, u := range []*app.User{f.alice, f.bob, f.admin} {
		require.NoError(t, store.Users().Create(ctx, u))
	}
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) collection(t *testing.T, owner *app.User) *app.Collection {
	t.Helper()
	c, err := f.services.Collections.Create(context.Background(), owner.Principal(), CollectionInput{Name: ptr("Stamps"), Topic: ptr("philately")})
	require.NoError(t, err)
	return c
}

func (f *fixture) item(t *testing.T, owner *app.User, collection *app.Collection) *app.Item {
	t.Helper()
	i, err := f.services.Items.Create(context.Background(), owner.Principal(), ItemInput{Name: ptr("Penny Black"), Collection: collection.ID})
	require.NoError(t, err)
	return i
}

func TestCollectionCreateRecordsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)

	assert.Equal(t, f.alice.ID, c.Owner)
	u, err := f.store.Users().Get(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{c.ID}, u.Collections)

	_, err = f.services.Collections.Create(ctx, f.alice.Principal(), CollectionInput{Name: ptr("  ")})
	assert.ErrorIs(t, err, app.ErrValidation)
	_, err = f.services.Collections.Create(ctx, nil, CollectionInput{Name: ptr("x")})
	assert.ErrorIs(t, err, app.ErrUnauthenticated)
}

func TestItemCreateUpdatesBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)
	item := f.item(t, f.alice, c)

	stored, err := f.store.Items().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Penny Black", stored.Name)
	assert.Equal(t, c.ID, stored.Collection)
	assert.Equal(t, f.alice.ID, stored.Owner)

	parent, err := f.store.Collections().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{item.ID}, parent.Items)
}

func TestItemCreateFaultInjection(t *testing.T) {
	t.Run("transaction rolls the item back", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		c := f.collection(t, f.alice)

		store := &faultyStore{Store: f.store, collections: failingPush{f.store.Collections()}}
		logger, _ := logtest.NewNullLogger()
		items := NewItemService(store, f.images, logger)

		_, err := items.Create(ctx, f.alice.Principal(), ItemInput{Name: ptr("Inverted Jenny"), Collection: c.ID})
		assert.ErrorIs(t, err, errInjected)

		all, err := f.store.Items().List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, all)
		parent, err := f.store.Collections().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, parent.Items)
	})

	t.Run("without a transaction the item is left orphaned", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		c := f.collection(t, f.alice)

		store := &faultyStore{Store: f.store, collections: failingPush{f.store.Collections()}, noTx: true}
		logger, _ := logtest.NewNullLogger()
		items := NewItemService(store, f.images, logger)

		_, err := items.Create(ctx, f.alice.Principal(), ItemInput{Name: ptr("Inverted Jenny"), Collection: c.ID})
		assert.ErrorIs(t, err, errInjected)

		all, err := f.store.Items().List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, all, 1)
		parent, err := f.store.Collections().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.NotContains(t, parent.Items, all[0].ID)
	})
}

func TestItemCreateRequiresOwnedCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)

	_, err := f.services.Items.Create(ctx, f.bob.Principal(), ItemInput{Name: ptr("x"), Collection: c.ID})
	assert.ErrorIs(t, err, app.ErrForbidden)

	_, err = f.services.Items.Create(ctx, f.bob.Principal(), ItemInput{Name: ptr("x"), Collection: primitive.NewObjectID()})
	assert.ErrorIs(t, err, app.ErrNotFound)

	all, err := f.store.Items().List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = f.services.Items.Create(ctx, f.admin.Principal(), ItemInput{Name: ptr("by admin"), Collection: c.ID})
	assert.NoError(t, err)
}

func TestItemOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)
	item := f.item(t, f.alice, c)

	_, err := f.services.Items.Update(ctx, f.bob.Principal(), item.ID, ItemInput{Name: ptr("stolen")})
	assert.ErrorIs(t, err, app.ErrForbidden)
	assert.ErrorIs(t, f.services.Items.Delete(ctx, f.bob.Principal(), item.ID), app.ErrForbidden)

	stored, err := f.store.Items().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Penny Black", stored.Name)

	updated, err := f.services.Items.Update(ctx, f.admin.Principal(), item.ID, ItemInput{
		Name: ptr("Penny Red"),
		Tags: &[]string{"uk", " uk ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "Penny Red", updated.Name)
	assert.Equal(t, []string{"uk"}, updated.Tags)
}

func TestItemDeletePullsFromCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)
	item := f.item(t, f.alice, c)

	require.NoError(t, f.services.Items.Delete(ctx, f.alice.Principal(), item.ID))
	parent, err := f.store.Collections().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.Items)

	assert.ErrorIs(t, f.services.Items.Delete(ctx, f.alice.Principal(), item.ID), app.ErrNotFound)
}

func TestCollectionDeleteKeepsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)
	item := f.item(t, f.alice, c)

	assert.ErrorIs(t, f.services.Collections.Delete(ctx, f.bob.Principal(), c.ID), app.ErrForbidden)
	require.NoError(t, f.services.Collections.Delete(ctx, f.alice.Principal(), c.ID))

	_, err := f.store.Collections().Get(ctx, c.ID)
	assert.ErrorIs(t, err, app.ErrNotFound)

	orphan, err := f.store.Items().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, orphan.Collection)

	u, err := f.store.Users().Get(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Collections)

	// the dangling item can still be removed by its owner
	assert.NoError(t, f.services.Items.Delete(ctx, f.alice.Principal(), item.ID))
}

func TestLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, f.alice, f.collection(t, f.alice))
	bob := f.bob.Principal()

	_, err := f.services.Items.AddLike(ctx, bob, item.ID)
	require.NoError(t, err)
	liked, err := f.services.Items.AddLike(ctx, bob, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{bob.ID}, liked.Likes)

	unliked, err := f.services.Items.RemoveLike(ctx, bob, item.ID)
	require.NoError(t, err)
	assert.NotContains(t, unliked.Likes, bob.ID)

	_, err = f.services.Items.AddLike(ctx, nil, item.ID)
	assert.ErrorIs(t, err, app.ErrUnauthenticated)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, f.alice, f.collection(t, f.alice))

	comment, err := f.services.Items.AddComment(ctx, f.bob.Principal(), item.ID, "lovely")
	require.NoError(t, err)
	_, err = f.services.Items.AddComment(ctx, f.bob.Principal(), item.ID, " ")
	assert.ErrorIs(t, err, app.ErrValidation)

	comments, err := f.services.Items.Comments(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, app.UserSummary{ID: f.bob.ID, Username: "bob"}, comments[0].Author)

	stranger := &app.Principal{ID: primitive.NewObjectID(), Role: app.RoleUser}
	assert.ErrorIs(t, f.services.Items.RemoveComment(ctx, stranger, item.ID, comment.ID), app.ErrForbidden)

	// the item owner may remove comments of others
	require.NoError(t, f.services.Items.RemoveComment(ctx, f.alice.Principal(), item.ID, comment.ID))
	assert.ErrorIs(t, f.services.Items.RemoveComment(ctx, f.alice.Principal(), item.ID, comment.ID), app.ErrNotFound)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, f.alice, f.collection(t, f.alice))

	items, err := f.services.Items.Search(ctx, "penny")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	collections, err := f.services.Collections.Search(ctx, "philately")
	require.NoError(t, err)
	assert.Len(t, collections, 1)

	_, err = f.services.Items.Search(ctx, "  ")
	assert.ErrorIs(t, err, app.ErrValidation)
}

func TestCustomFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)

	field, err := f.services.CustomFields.Create(ctx, f.alice.Principal(), CustomFieldInput{
		FieldName:   ptr("year"),
		FieldType:   ptr("number"),
		FieldNumber: ptr(1),
		Collection:  c.ID,
	})
	require.NoError(t, err)

	parent, err := f.store.Collections().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{field.ID}, parent.CustomFields)

	_, err = f.services.CustomFields.Update(ctx, f.bob.Principal(), field.ID, CustomFieldInput{FieldName: ptr("x")})
	assert.ErrorIs(t, err, app.ErrForbidden)

	updated, err := f.services.CustomFields.Update(ctx, f.alice.Principal(), field.ID, CustomFieldInput{FieldChecked: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.FieldChecked)
	assert.Equal(t, "year", updated.FieldName)

	mine, err := f.services.CustomFields.List(ctx, f.alice.Principal())
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, f.services.CustomFields.Delete(ctx, f.alice.Principal(), field.ID))
	parent, err = f.store.Collections().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.CustomFields)
}

func TestReadViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stamps := f.collection(t, f.alice)
	penny := f.item(t, f.alice, stamps)
	twopence := f.item(t, f.alice, stamps)
	_, err := f.services.Items.AddComment(ctx, f.bob.Principal(), penny.ID, "lovely")
	require.NoError(t, err)

	t.Run("collection embeds its items in stored order", func(t *testing.T) {
		view, err := f.services.Collections.View(ctx, stamps.ID)
		require.NoError(t, err)
		assert.Equal(t, app.UserSummary{ID: f.alice.ID, Username: "alice"}, view.Owner)
		require.Len(t, view.Items, 2)
		assert.Equal(t, penny.ID, view.Items[0].ID)
		assert.Equal(t, twopence.ID, view.Items[1].ID)
		assert.Equal(t, []primitive.ObjectID{penny.ID, twopence.ID}, view.Collection.Items)
	})

	t.Run("item names its owner, collection and comment authors", func(t *testing.T) {
		view, err := f.services.Items.View(ctx, penny.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", view.Owner.Username)
		assert.Equal(t, "Stamps", view.CollectionName)
		require.Len(t, view.Comments, 1)
		assert.Equal(t, "bob", view.Comments[0].Author.Username)
		assert.Equal(t, "lovely", view.Comments[0].Text)
	})

	t.Run("users carry collections with items", func(t *testing.T) {
		views, err := f.services.Users.ListViews(ctx)
		require.NoError(t, err)
		require.Len(t, views, 3)
		for _, u := range views {
			if u.ID != f.alice.ID {
				assert.Empty(t, u.Collections, u.Username)
				continue
			}
			require.Len(t, u.Collections, 1)
			assert.Equal(t, "Stamps", u.Collections[0].Name)
			assert.Len(t, u.Collections[0].Items, 2)
		}
	})

	t.Run("dangling references keep their id", func(t *testing.T) {
		require.NoError(t, f.services.Collections.Delete(ctx, f.alice.Principal(), stamps.ID))
		view, err := f.services.Items.View(ctx, penny.ID)
		require.NoError(t, err)
		assert.Equal(t, stamps.ID, view.Collection)
		assert.Empty(t, view.CollectionName)

		all, err := f.services.Items.ListAllViews(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestAdminCreatesChildrenForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, f.alice)

	item, err := f.services.Items.Create(ctx, f.admin.Principal(), ItemInput{Name: ptr("Two Penny Blue"), Collection: c.ID})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, item.Owner)
	_, err = f.services.Items.Update(ctx, f.alice.Principal(), item.ID, ItemInput{Description: ptr("1840")})
	assert.NoError(t, err)

	field, err := f.services.CustomFields.Create(ctx, f.admin.Principal(), CustomFieldInput{FieldName: ptr("year"), Collection: c.ID})
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, field.Owner)
	assert.NoError(t, f.services.CustomFields.Delete(ctx, f.alice.Principal(), field.ID))
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, f.alice, f.collection(t, f.alice))
	body := bytes.NewReader([]byte("png"))

	t.Run("stores the url", func(t *testing.T) {
		f.images.On("UploadImage", ctx, mock.MatchedBy(func(key string) bool {
			return len(key) > len("items/"+item.ID.Hex()+"/") && key[len(key)-4:] == ".png"
		}), body, int64(3), "image/png").Return("http://s3/catalog/items/a.png", nil).Once()

		updated, err := f.services.Items.UploadImage(ctx, f.alice.Principal(), item.ID, Upload{
			Filename: "photo.PNG", ContentType: "image/png", Size: 3, Body: body,
		})
		require.NoError(t, err)
		assert.Equal(t, "http://s3/catalog/items/a.png", updated.Image)
	})

	t.Run("replaces the previous image", func(t *testing.T) {
		f.images.On("UploadImage", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("http://s3/catalog/items/b.png", nil).Once()
		f.images.On("DeleteImage", ctx, "http://s3/catalog/items/a.png").Return(nil).Once()

		_, err := f.services.Items.UploadImage(ctx, f.alice.Principal(), item.ID, Upload{Filename: "b.png", Body: body})
		require.NoError(t, err)
	})

	t.Run("storage failure", func(t *testing.T) {
		f.images.On("UploadImage", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("bucket gone")).Once()

		_, err := f.services.Items.UploadImage(ctx, f.alice.Principal(), item.ID, Upload{Filename: "c.png", Body: body})
		assert.ErrorIs(t, err, app.ErrUpload)
	})

	t.Run("rejected before upload", func(t *testing.T) {
		_, err := f.services.Items.UploadImage(ctx, f.alice.Principal(), item.ID, Upload{Filename: "notes.txt", Body: body})
		assert.ErrorIs(t, err, app.ErrValidation)

		_, err = f.services.Items.UploadImage(ctx, f.bob.Principal(), item.ID, Upload{Filename: "d.png", Body: body})
		assert.ErrorIs(t, err, app.ErrForbidden)
	})

	f.images.AssertExpectations(t)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.services.Users

	carol, err := users.Register(ctx, RegisterInput{Username: "carol", Email: " Carol@Example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", carol.Email)
	assert.Equal(t, app.RoleUser, carol.Role)

	_, err = users.Register(ctx, RegisterInput{Username: "again", Email: "carol@example.com", Password: "pw"})
	assert.ErrorIs(t, err, app.ErrConflict)
	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = users.Register(ctx, RegisterInput{Email: "x@example.com"})
	assert.ErrorIs(t, err, app.ErrValidation)

	_, err = users.Register(ctx, RegisterInput{Username: "long", Email: "long@example.com", Password: strings.Repeat("x", 73)})
	assert.ErrorIs(t, err, app.ErrValidation)
	_, err = f.store.Users().FindByEmail(ctx, "long@example.com")
	assert.ErrorIs(t, err, app.ErrNotFound)

	session, err := users.Login(ctx, "carol@example.com", "pw")
	require.NoError(t, err)
	principal, err := users.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, carol.ID, principal.ID)

	_, err = users.Login(ctx, "carol@example.com", "nope")
	assert.ErrorIs(t, err, app.ErrUnauthenticated)
	_, err = users.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, app.ErrUnauthenticated)

	t.Run("blocked users", func(t *testing.T) {
		_, err := users.UpdateStatus(ctx, []primitive.ObjectID{carol.ID}, app.StatusBlocked)
		require.NoError(t, err)

		_, err = users.Authenticate(ctx, session.AccessToken)
		assert.ErrorIs(t, err, app.ErrForbidden)
		_, err = users.Login(ctx, "carol@example.com", "pw")
		assert.ErrorIs(t, err, app.ErrForbidden)
	})

	t.Run("deleted users", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, carol.ID))
		_, err := users.Authenticate(ctx, session.AccessToken)
		assert.ErrorIs(t, err, app.ErrUnauthenticated)
	})
}

func TestUpdateUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.services.Users

	_, err := users.UpdateMe(ctx, f.alice.Principal(), UpdateUserInput{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, app.ErrConflict)

	role := app.RoleAdmin
	_, err = users.UpdateMe(ctx, f.alice.Principal(), UpdateUserInput{Role: &role})
	assert.ErrorIs(t, err, app.ErrForbidden)

	_, err = users.UpdateMe(ctx, f.alice.Principal(), UpdateUserInput{Password: ptr(strings.Repeat("x", 73))})
	assert.ErrorIs(t, err, app.ErrValidation)

	me, err := users.UpdateMe(ctx, f.alice.Principal(), UpdateUserInput{Username: ptr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", me.Username)

	_, err = users.UpdateRole(ctx, []primitive.ObjectID{f.bob.ID}, app.Role("owner"))
	assert.ErrorIs(t, err, app.ErrValidation)

	n, err := users.UpdateRole(ctx, []primitive.ObjectID{f.bob.ID}, app.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	promoted, err := users.Promote(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, app.RoleAdmin, promoted.Role)

	n, err = users.DeleteMany(ctx, []primitive.ObjectID{f.alice.ID, f.bob.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLoginWithIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.services.Users

	t.Run("links by email", func(t *testing.T) {
		session, err := users.LoginWithIdentity(ctx, &app.Identity{
			Provider: app.ProviderGitHub, Subject: "7", Email: "Alice@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, f.alice.ID, session.User.ID)

		linked, err := f.store.Users().FindByProvider(ctx, app.ProviderGitHub, "7")
		require.NoError(t, err)
		assert.Equal(t, f.alice.ID, linked.ID)
	})

	t.Run("creates a new user", func(t *testing.T) {
		session, err := users.LoginWithIdentity(ctx, &app.Identity{
			Provider: app.ProviderGoogle, Subject: "g-1", Email: "dave@example.com", Username: "Dave",
		})
		require.NoError(t, err)
		assert.Equal(t, "Dave", session.User.Username)
		assert.Equal(t, app.RoleUser, session.User.Role)
		assert.NotEmpty(t, session.AccessToken)

		again, err := users.LoginWithIdentity(ctx, &app.Identity{Provider: app.ProviderGoogle, Subject: "g-1"})
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, again.User.ID)
	})

	t.Run("no email", func(t *testing.T) {
		session, err := users.LoginWithIdentity(ctx, &app.Identity{Provider: app.ProviderFacebook, Subject: "fb-9"})
		require.NoError(t, err)
		assert.Equal(t, "fb-9", session.User.FacebookID)
		assert.NotEmpty(t, session.User.Email)
	})
}
