package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	db "catalogserv/src/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// ImageStore keeps uploaded images and serves them from a public URL.
	ImageStore interface {
		UploadImage(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error)
		DeleteImage(ctx context.Context, url string) error
	}

	// Upload is a single image file taken from a multipart request.
	Upload struct {
		Filename    string
		ContentType string
		Size        int64
		Body        io.Reader
	}

	Services struct {
		Users        *UserService
		Collections  *CollectionService
		Items        *ItemService
		CustomFields *CustomFieldService
	}
)

var imageFormats = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff"}

func New(store db.Store, tokens *auth.TokenManager, images ImageStore, logger logrus.FieldLogger) *Services {
	return &Services{
		Users:        NewUserService(store, tokens, logger),
		Collections:  NewCollectionService(store, images, logger),
		Items:        NewItemService(store, images, logger),
		CustomFields: NewCustomFieldService(store, logger),
	}
}

// authorizeOwner lets the owner of a resource and admins through.
func authorizeOwner(p *app.Principal, owner primitive.ObjectID, what string, id primitive.ObjectID) error {
	if p == nil {
		return app.Unauthenticated("authentication required")
	}
	if !p.Owns(owner) {
		return app.Forbidden("not allowed to modify %s %s", what, id.Hex())
	}
	return nil
}

func requirePrincipal(p *app.Principal) error {
	if p == nil {
		return app.Unauthenticated("authentication required")
	}
	return nil
}

func imageKey(kind string, id primitive.ObjectID, filename string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	for _, f := range imageFormats {
		if ext == f {
			return fmt.Sprintf("%s/%s/%s%s", kind, id.Hex(), uuid.NewString(), ext), nil
		}
	}
	return "", app.Validation("unsupported image format %q", ext)
}

// replaceImage uploads a new image, persists its URL with save and drops the
// previous object. A failed save removes the fresh upload again.
func replaceImage(
	ctx context.Context,
	images ImageStore,
	logger logrus.FieldLogger,
	kind string,
	id primitive.ObjectID,
	previous string,
	upload Upload,
	save func(ctx context.Context, url string) error,
) error {
	if upload.Body == nil {
		return app.Validation("image file is required")
	}
	key, err := imageKey(kind, id, upload.Filename)
	if err != nil {
		return err
	}
	url, err := images.UploadImage(ctx, key, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return app.UploadFailed(err)
	}
	if err := save(ctx, url); err != nil {
		if derr := images.DeleteImage(ctx, url); derr != nil {
			logger.WithError(derr).WithField("url", url).Warn("can not remove orphaned image")
		}
		return err
	}
	if previous != "" && previous != url {
		if err := images.DeleteImage(ctx, previous); err != nil {
			logger.WithError(err).WithField("url", previous).Warn("can not remove previous image")
		}
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func requireNonEmpty(field string, value *string) error {
	if value != nil && *value == "" {
		return app.Validation("%s must not be empty", field)
	}
	return nil
}
