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
	CustomFieldService struct {
		store db.Store
		log   logrus.FieldLogger
	}

	CustomFieldInput struct {
		FieldNumber  *int
		FieldName    *string
		FieldType    *string
		FieldChecked *bool
		FieldDate    *time.Time
		// Only read on create.
		Collection primitive.ObjectID
	}
)

func NewCustomFieldService(store db.Store, logger logrus.FieldLogger) *CustomFieldService {
	return &CustomFieldService{store: store, log: logger.WithField("service", "customfields")}
}

func (s *CustomFieldService) Create(ctx context.Context, p *app.Principal, in CustomFieldInput) (*app.CustomField, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(deref(in.FieldName))
	if name == "" {
		return nil, app.Validation("fieldName is required")
	}
	if in.Collection.IsZero() {
		return nil, app.Validation("collection is required")
	}
	field := &app.CustomField{
		FieldName:  name,
		FieldType:  strings.TrimSpace(deref(in.FieldType)),
		FieldDate:  in.FieldDate,
		Collection: in.Collection,
	}
	if in.FieldNumber != nil {
		field.FieldNumber = *in.FieldNumber
	}
	if in.FieldChecked != nil {
		field.FieldChecked = *in.FieldChecked
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
		field.Owner = collection.Owner
		if err := s.store.CustomFields().Create(ctx, field); err != nil {
			return pkgerrors.Wrap(err, "CustomFieldService.Create: insert failed")
		}
		return s.store.Collections().PushCustomField(ctx, in.Collection, field.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"field": field.ID.Hex(), "collection": field.Collection.Hex()}).Info("custom field created")
	return field, nil
}

func (s *CustomFieldService) Get(ctx context.Context, id primitive.ObjectID) (*app.CustomField, error) {
	return s.store.CustomFields().Get(ctx, id)
}

func (s *CustomFieldService) List(ctx context.Context, p *app.Principal) ([]app.CustomField, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.CustomFields().List(ctx, &p.ID)
}

func (s *CustomFieldService) ListAll(ctx context.Context) ([]app.CustomField, error) {
	return s.store.CustomFields().List(ctx, nil)
}

func (s *CustomFieldService) owned(ctx context.Context, p *app.Principal, id primitive.ObjectID) (*app.CustomField, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	field, err := s.store.CustomFields().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(p, field.Owner, "custom field", id); err != nil {
		return nil, err
	}
	return field, nil
}

func (s *CustomFieldService) Update(ctx context.Context, p *app.Principal, id primitive.ObjectID, in CustomFieldInput) (*app.CustomField, error) {
	if _, err := s.owned(ctx, p, id); err != nil {
		return nil, err
	}
	patch := app.CustomFieldPatch{
		FieldNumber:  in.FieldNumber,
		FieldName:    trimmed(in.FieldName),
		FieldType:    trimmed(in.FieldType),
		FieldChecked: in.FieldChecked,
		FieldDate:    in.FieldDate,
	}
	if err := requireNonEmpty("fieldName", patch.FieldName); err != nil {
		return nil, err
	}
	return s.store.CustomFields().Update(ctx, id, patch)
}

func (s *CustomFieldService) Delete(ctx context.Context, p *app.Principal, id primitive.ObjectID) error {
	field, err := s.owned(ctx, p, id)
	if err != nil {
		return err
	}
	return s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.CustomFields().Delete(ctx, id); err != nil {
			return err
		}
		err := s.store.Collections().PullCustomField(ctx, field.Collection, id)
		if errors.Is(err, app.ErrNotFound) {
			return nil
		}
		return err
	})
}
