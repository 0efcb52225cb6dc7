package service

import (
	"context"

	app "catalogserv/src/app"
	db "catalogserv/src/repository"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// viewer resolves references with one batched lookup per referenced kind.
type viewer struct {
	store db.Store
}

func uniqueIDs(groups ...[]primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	out := []primitive.ObjectID{}
	for _, ids := range groups {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (v viewer) userNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	users, err := v.store.Users().FindMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "viewer.userNames: lookup failed")
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func summary(names map[primitive.ObjectID]string, id primitive.ObjectID) app.UserSummary {
	return app.UserSummary{ID: id, Username: names[id]}
}

func commentViews(comments []app.Comment, names map[primitive.ObjectID]string) []app.CommentView {
	out := make([]app.CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, app.CommentView{Comment: c, Author: summary(names, c.Author)})
	}
	return out
}

func (v viewer) comments(ctx context.Context, comments []app.Comment) ([]app.CommentView, error) {
	authors := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		authors = append(authors, c.Author)
	}
	names, err := v.userNames(ctx, uniqueIDs(authors))
	if err != nil {
		return nil, err
	}
	return commentViews(comments, names), nil
}

func (v viewer) items(ctx context.Context, items []app.Item) ([]app.ItemView, error) {
	var people, collectionIDs []primitive.ObjectID
	for _, i := range items {
		people = append(people, i.Owner)
		for _, c := range i.Comments {
			people = append(people, c.Author)
		}
		collectionIDs = append(collectionIDs, i.Collection)
	}
	names, err := v.userNames(ctx, uniqueIDs(people))
	if err != nil {
		return nil, err
	}
	collections, err := v.store.Collections().FindMany(ctx, uniqueIDs(collectionIDs))
	if err != nil {
		return nil, errors.Wrap(err, "viewer.items: collection lookup failed")
	}
	collectionNames := make(map[primitive.ObjectID]string, len(collections))
	for _, c := range collections {
		collectionNames[c.ID] = c.Name
	}

	out := make([]app.ItemView, 0, len(items))
	for _, i := range items {
		out = append(out, app.ItemView{
			Item:           i,
			Owner:          summary(names, i.Owner),
			CollectionName: collectionNames[i.Collection],
			Comments:       commentViews(i.Comments, names),
		})
	}
	return out, nil
}

func (v viewer) collections(ctx context.Context, collections []app.Collection) ([]app.CollectionView, error) {
	var owners, itemIDs []primitive.ObjectID
	for _, c := range collections {
		owners = append(owners, c.Owner)
		itemIDs = append(itemIDs, c.Items...)
	}
	names, err := v.userNames(ctx, uniqueIDs(owners))
	if err != nil {
		return nil, err
	}
	items, err := v.store.Items().FindMany(ctx, uniqueIDs(itemIDs))
	if err != nil {
		return nil, errors.Wrap(err, "viewer.collections: item lookup failed")
	}
	byID := make(map[primitive.ObjectID]app.Item, len(items))
	for _, i := range items {
		byID[i.ID] = i
	}

	out := make([]app.CollectionView, 0, len(collections))
	for _, c := range collections {
		view := app.CollectionView{
			Collection: c,
			Owner:      summary(names, c.Owner),
			Items:      make([]app.Item, 0, len(c.Items)),
		}
		for _, id := range c.Items {
			if i, ok := byID[id]; ok {
				view.Items = append(view.Items, i)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (v viewer) users(ctx context.Context, users []app.User) ([]app.UserView, error) {
	var collectionIDs []primitive.ObjectID
	for _, u := range users {
		collectionIDs = append(collectionIDs, u.Collections...)
	}
	collections, err := v.store.Collections().FindMany(ctx, uniqueIDs(collectionIDs))
	if err != nil {
		return nil, errors.Wrap(err, "viewer.users: collection lookup failed")
	}
	views, err := v.collections(ctx, collections)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]app.CollectionView, len(views))
	for _, c := range views {
		byID[c.ID] = c
	}

	out := make([]app.UserView, 0, len(users))
	for _, u := range users {
		view := app.UserView{User: u, Collections: make([]app.CollectionView, 0, len(u.Collections))}
		for _, id := range u.Collections {
			if c, ok := byID[id]; ok {
				view.Collections = append(view.Collections, c)
			}
		}
		out = append(out, view)
	}
	return out, nil
}
