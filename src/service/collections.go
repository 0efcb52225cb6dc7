package service

import (
	"context"
	"errors"
	"strings"

	app "catalogserv/src/app"
	db "catalogserv/src/repository"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	CollectionService struct {
		store  db.Store
		images ImageStore
		log    logrus.FieldLogger
	}

	CollectionInput struct {
		Name        *string
		Description *string
		Topic       *string
	}
)

func NewCollectionService(store db.Store, images ImageStore, logger logrus.FieldLogger) *CollectionService {
	return &CollectionService{store: store, images: images, log: logger.WithField("service", "collections")}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Create stores a collection owned by p and records it on the owner.
func (s *CollectionService) Create(ctx context.Context, p *app.Principal, in CollectionInput) (*app.Collection, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, app.Validation("name is required")
	}
	collection := &app.Collection{
		Name:        name,
		Description: deref(in.Description),
		Topic:       strings.TrimSpace(deref(in.Topic)),
		Owner:       p.ID,
	}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Collections().Create(ctx, collection); err != nil {
			return pkgerrors.Wrap(err, "CollectionService.Create: insert failed")
		}
		return s.store.Users().PushCollection(ctx, p.ID, collection.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"collection": collection.ID.Hex(), "owner": p.ID.Hex()}).Info("collection created")
	return collection, nil
}

// List returns the collections owned by p.
func (s *CollectionService) List(ctx context.Context, p *app.Principal) ([]app.Collection, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Collections().List(ctx, &p.ID)
}

// View returns the collection with its owner and items resolved.
func (s *CollectionService) View(ctx context.Context, id primitive.ObjectID) (*app.CollectionView, error) {
	collection, err := s.store.Collections().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := viewer{s.store}.collections(ctx, []app.Collection{*collection})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *CollectionService) ListAllViews(ctx context.Context) ([]app.CollectionView, error) {
	collections, err := s.store.Collections().List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return viewer{s.store}.collections(ctx, collections)
}

func (s *CollectionService) Search(ctx context.Context, query string) ([]app.Collection, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, app.Validation("search query is required")
	}
	return s.store.Collections().Search(ctx, query)
}

func (s *CollectionService) owned(ctx context.Context, p *app.Principal, id primitive.ObjectID) (*app.Collection, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	collection, err := s.store.Collections().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(p, collection.Owner, "collection", id); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *CollectionService) Update(ctx context.Context, p *app.Principal, id primitive.ObjectID, in CollectionInput) (*app.Collection, error) {
	if _, err := s.owned(ctx, p, id); err != nil {
		return nil, err
	}
	patch := app.CollectionPatch{
		Name:        trimmed(in.Name),
		Description: in.Description,
		Topic:       trimmed(in.Topic),
	}
	if err := requireNonEmpty("name", patch.Name); err != nil {
		return nil, err
	}
	return s.store.Collections().Update(ctx, id, patch)
}

// Delete removes the collection and its entry on the owner. Items of the
// collection are kept and keep pointing at it.
func (s *CollectionService) Delete(ctx context.Context, p *app.Principal, id primitive.ObjectID) error {
	collection, err := s.owned(ctx, p, id)
	if err != nil {
		return err
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Collections().Delete(ctx, id); err != nil {
			return err
		}
		err := s.store.Users().PullCollection(ctx, collection.Owner, id)
		if errors.Is(err, app.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	s.log.WithField("collection", id.Hex()).Info("collection deleted")
	return nil
}

func (s *CollectionService) UploadImage(ctx context.Context, p *app.Principal, id primitive.ObjectID, upload Upload) (*app.Collection, error) {
	collection, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	var updated *app.Collection
	err = replaceImage(ctx, s.images, s.log, "collections", id, collection.Image, upload, func(ctx context.Context, url string) error {
		var err error
		updated, err = s.store.Collections().Update(ctx, id, app.CollectionPatch{Image: &url})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
