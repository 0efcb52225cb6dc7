package service

import (
	"context"
	"errors"
	"strings"
	"time"

	app "catalogserv/src/app"
	db "catalogserv/src/repository"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	ItemService struct {
		store  db.Store
		images ImageStore
		log    logrus.FieldLogger
	}

	ItemInput struct {
		Name        *string
		Description *string
		Topic       *string
		Tags        *[]string
		// Only read on create.
		Collection primitive.ObjectID
	}
)

func NewItemService(store db.Store, images ImageStore, logger logrus.FieldLogger) *ItemService {
	return &ItemService{store: store, images: images, log: logger.WithField("service", "items")}
}

func cleanTags(tags *[]string) *[]string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(*tags))
	seen := make(map[string]bool, len(*tags))
	for _, t := range *tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return &out
}

// Create stores an item in a collection owned by p. The insert and the push
// into the collection's item list commit together or not at all.
func (s *ItemService) Create(ctx context.Context, p *app.Principal, in ItemInput) (*app.Item, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, app.Validation("name is required")
	}
	if in.Collection.IsZero() {
		return nil, app.Validation("collection is required")
	}
	item := &app.Item{
		Name:        name,
		Description: deref(in.Description),
		Topic:       strings.TrimSpace(deref(in.Topic)),
		Collection:  in.Collection,
	}
	if tags := cleanTags(in.Tags); tags != nil {
		item.Tags = *tags
	}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		collection, err := s.store.Collections().Get(ctx, in.Collection)
		if err != nil {
			return err
		}
		if err := authorizeOwner(p, collection.Owner, "collection", collection.ID); err != nil {
			return err
		}
		// Children belong to the collection owner, also when an admin adds them.
		item.Owner = collection.Owner
		if err := s.store.Items().Create(ctx, item); err != nil {
			return pkgerrors.Wrap(err, "ItemService.Create: insert failed")
		}
		return s.store.Collections().PushItem(ctx, in.Collection, item.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"item": item.ID.Hex(), "collection": item.Collection.Hex()}).Info("item created")
	return item, nil
}

func (s *ItemService) List(ctx context.Context, p *app.Principal) ([]app.Item, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Items().List(ctx, &p.ID)
}

// View returns the item with its owner, collection name and comment authors resolved.
func (s *ItemService) View(ctx context.Context, id primitive.ObjectID) (*app.ItemView, error) {
	item, err := s.store.Items().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := viewer{s.store}.items(ctx, []app.Item{*item})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ItemService) ListViews(ctx context.Context, p *app.Principal) ([]app.ItemView, error) {
	items, err := s.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return viewer{s.store}.items(ctx, items)
}

func (s *ItemService) ListAllViews(ctx context.Context) ([]app.ItemView, error) {
	items, err := s.store.Items().List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return viewer{s.store}.items(ctx, items)
}

func (s *ItemService) Search(ctx context.Context, query string) ([]app.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, app.Validation("search query is required")
	}
	return s.store.Items().Search(ctx, query)
}

func (s *ItemService) owned(ctx context.Context, p *app.Principal, id primitive.ObjectID) (*app.Item, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	item, err := s.store.Items().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(p, item.Owner, "item", id); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) Update(ctx context.Context, p *app.Principal, id primitive.ObjectID, in ItemInput) (*app.Item, error) {
	if _, err := s.owned(ctx, p, id); err != nil {
		return nil, err
	}
	patch := app.ItemPatch{
		Name:        trimmed(in.Name),
		Description: in.Description,
		Topic:       trimmed(in.Topic),
		Tags:        cleanTags(in.Tags),
	}
	if err := requireNonEmpty("name", patch.Name); err != nil {
		return nil, err
	}
	return s.store.Items().Update(ctx, id, patch)
}

// Delete removes the item and pulls it from its collection. A collection that
// is already gone is not an error.
func (s *ItemService) Delete(ctx context.Context, p *app.Principal, id primitive.ObjectID) error {
	item, err := s.owned(ctx, p, id)
	if err != nil {
		return err
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Items().Delete(ctx, id); err != nil {
			return err
		}
		err := s.store.Collections().PullItem(ctx, item.Collection, id)
		if errors.Is(err, app.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	s.log.WithField("item", id.Hex()).Info("item deleted")
	return nil
}

// AddLike records p's like once, however often it is called.
func (s *ItemService) AddLike(ctx context.Context, p *app.Principal, id primitive.ObjectID) (*app.Item, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Items().AddLike(ctx, id, p.ID)
}

func (s *ItemService) RemoveLike(ctx context.Context, p *app.Principal, id primitive.ObjectID) (*app.Item, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Items().RemoveLike(ctx, id, p.ID)
}

// Comments returns the comments of an item with their authors resolved.
func (s *ItemService) Comments(ctx context.Context, id primitive.ObjectID) ([]app.CommentView, error) {
	item, err := s.store.Items().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewer{s.store}.comments(ctx, item.Comments)
}

func (s *ItemService) AddComment(ctx context.Context, p *app.Principal, id primitive.ObjectID, text string) (*app.Comment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, app.Validation("comment text is required")
	}
	comment := app.Comment{
		ID:        primitive.NewObjectID(),
		Author:    p.ID,
		Text:      text,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.store.Items().AddComment(ctx, id, comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// RemoveComment is allowed for the comment author, the item owner and admins.
func (s *ItemService) RemoveComment(ctx context.Context, p *app.Principal, id, commentID primitive.ObjectID) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	item, err := s.store.Items().Get(ctx, id)
	if err != nil {
		return err
	}
	var comment *app.Comment
	for i := range item.Comments {
		if item.Comments[i].ID == commentID {
			comment = &item.Comments[i]
			break
		}
	}
	if comment == nil {
		return app.NotFound("comment %s not found", commentID.Hex())
	}
	if comment.Author != p.ID && !p.Owns(item.Owner) {
		return app.Forbidden("not allowed to remove comment %s", commentID.Hex())
	}
	return s.store.Items().RemoveComment(ctx, id, commentID)
}

func (s *ItemService) UploadImage(ctx context.Context, p *app.Principal, id primitive.ObjectID, upload Upload) (*app.Item, error) {
	item, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	var updated *app.Item
	err = replaceImage(ctx, s.images, s.log, "items", id, item.Image, upload, func(ctx context.Context, url string) error {
		var err error
		updated, err = s.store.Items().Update(ctx, id, app.ItemPatch{Image: &url})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
