package repository

import (
	"context"
	"errors"
	"testing"

	app "catalogserv/src/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestInMemoryDBUsers(t *testing.T) {
	ctx := context.Background()
	db := NewInMemoryDB()
	users := db.Users()

	alice := &app.User{Username: "alice", Email: "alice@example.com", Role: app.RoleUser, Status: app.StatusActive}
	require.NoError(t, users.Create(ctx, alice))
	assert.False(t, alice.ID.IsZero())
	assert.NotNil(t, alice.Collections)

	t.Run("duplicate email", func(t *testing.T) {
		err := users.Create(ctx, &app.User{Username: "other", Email: "ALICE@example.com"})
		assert.ErrorIs(t, err, app.ErrConflict)
	})

	t.Run("find by email", func(t *testing.T) {
		u, err := users.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, u.ID)

		_, err = users.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, app.ErrNotFound)
	})

	t.Run("link provider", func(t *testing.T) {
		require.NoError(t, users.LinkProvider(ctx, alice.ID, app.ProviderGitHub, "gh-1"))
		u, err := users.FindByProvider(ctx, app.ProviderGitHub, "gh-1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, u.ID)

		_, err = users.FindByProvider(ctx, app.ProviderGoogle, "gh-1")
		assert.ErrorIs(t, err, app.ErrNotFound)
	})

	t.Run("update many", func(t *testing.T) {
		bob := &app.User{Username: "bob", Email: "bob@example.com", Role: app.RoleUser, Status: app.StatusActive}
		require.NoError(t, users.Create(ctx, bob))

		blocked := app.StatusBlocked
		n, err := users.UpdateMany(ctx, []primitive.ObjectID{alice.ID, bob.ID, primitive.NewObjectID()}, app.UserPatch{Status: &blocked})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		u, err := users.Get(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, app.StatusBlocked, u.Status)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		u, err := users.Get(ctx, alice.ID)
		require.NoError(t, err)
		u.Collections = append(u.Collections, primitive.NewObjectID())

		again, err := users.Get(ctx, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, again.Collections)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, alice.ID))
		assert.ErrorIs(t, users.Delete(ctx, alice.ID), app.ErrNotFound)
	})
}

func TestInMemoryDBItems(t *testing.T) {
	ctx := context.Background()
	db := NewInMemoryDB()
	owner := primitive.NewObjectID()
	liker := primitive.NewObjectID()

	item := &app.Item{Name: "Blue Guitar", Description: "vintage", Tags: []string{"music"}, Owner: owner}
	require.NoError(t, db.Items().Create(ctx, item))

	t.Run("likes are a set", func(t *testing.T) {
		_, err := db.Items().AddLike(ctx, item.ID, liker)
		require.NoError(t, err)
		got, err := db.Items().AddLike(ctx, item.ID, liker)
		require.NoError(t, err)
		assert.Equal(t, []primitive.ObjectID{liker}, got.Likes)

		got, err = db.Items().RemoveLike(ctx, item.ID, liker)
		require.NoError(t, err)
		assert.Empty(t, got.Likes)
	})

	t.Run("comments", func(t *testing.T) {
		comment := app.Comment{ID: primitive.NewObjectID(), Author: liker, Text: "nice"}
		got, err := db.Items().AddComment(ctx, item.ID, comment)
		require.NoError(t, err)
		require.Len(t, got.Comments, 1)

		require.NoError(t, db.Items().RemoveComment(ctx, item.ID, comment.ID))
		assert.ErrorIs(t, db.Items().RemoveComment(ctx, item.ID, comment.ID), app.ErrNotFound)
	})

	t.Run("search", func(t *testing.T) {
		found, err := db.Items().Search(ctx, "guitar")
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = db.Items().Search(ctx, "MUSIC")
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = db.Items().Search(ctx, "piano")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("list by owner", func(t *testing.T) {
		other := &app.Item{Name: "Red Drum", Owner: primitive.NewObjectID()}
		require.NoError(t, db.Items().Create(ctx, other))

		all, err := db.Items().List(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := db.Items().List(ctx, &owner)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, item.ID, mine[0].ID)
	})

	t.Run("find many skips missing ids", func(t *testing.T) {
		found, err := db.Items().FindMany(ctx, []primitive.ObjectID{primitive.NewObjectID(), item.ID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, item.ID, found[0].ID)

		found, err = db.Items().FindMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestInMemoryDBTransaction(t *testing.T) {
	ctx := context.Background()
	db := NewInMemoryDB()

	collection := &app.Collection{Name: "books", Owner: primitive.NewObjectID()}
	require.NoError(t, db.Collections().Create(ctx, collection))

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		item := &app.Item{Name: "Dune", Collection: collection.ID}

		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if err := db.Items().Create(ctx, item); err != nil {
				return err
			}
			if err := db.Collections().PushItem(ctx, collection.ID, item.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = db.Items().Get(ctx, item.ID)
		assert.ErrorIs(t, err, app.ErrNotFound)
		c, err := db.Collections().Get(ctx, collection.ID)
		require.NoError(t, err)
		assert.Empty(t, c.Items)
	})

	t.Run("commit", func(t *testing.T) {
		item := &app.Item{Name: "Emma", Collection: collection.ID}
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if err := db.Items().Create(ctx, item); err != nil {
				return err
			}
			return db.Collections().PushItem(ctx, collection.ID, item.ID)
		})
		require.NoError(t, err)

		c, err := db.Collections().Get(ctx, collection.ID)
		require.NoError(t, err)
		assert.Equal(t, []primitive.ObjectID{item.ID}, c.Items)
	})

	t.Run("nested transactions join the outer one", func(t *testing.T) {
		boom := errors.New("boom")
		field := &app.CustomField{FieldName: "isbn", Collection: collection.ID}
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if err := db.WithTransaction(ctx, func(ctx context.Context) error {
				return db.CustomFields().Create(ctx, field)
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = db.CustomFields().Get(ctx, field.ID)
		assert.ErrorIs(t, err, app.ErrNotFound)
	})

	t.Run("rollback keeps concurrent writes", func(t *testing.T) {
		boom := errors.New("boom")
		item := &app.Item{Name: "Ulysses", Collection: collection.ID}
		carol := &app.User{Username: "carol", Email: "carol@example.com", Role: app.RoleUser, Status: app.StatusActive}
		other := &app.Collection{Name: "maps", Owner: primitive.NewObjectID()}

		started := make(chan struct{})
		written := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- db.WithTransaction(ctx, func(ctx context.Context) error {
				if err := db.Items().Create(ctx, item); err != nil {
					return err
				}
				if err := db.Collections().PushItem(ctx, collection.ID, item.ID); err != nil {
					return err
				}
				close(started)
				<-written
				return boom
			})
		}()

		<-started
		require.NoError(t, db.Users().Create(ctx, carol))
		require.NoError(t, db.Collections().Create(ctx, other))
		close(written)
		assert.ErrorIs(t, <-done, boom)

		_, err := db.Users().Get(ctx, carol.ID)
		assert.NoError(t, err)
		_, err = db.Collections().Get(ctx, other.ID)
		assert.NoError(t, err)
		_, err = db.Items().Get(ctx, item.ID)
		assert.ErrorIs(t, err, app.ErrNotFound)
		c, err := db.Collections().Get(ctx, collection.ID)
		require.NoError(t, err)
		assert.NotContains(t, c.Items, item.ID)
	})
}
