package server

import (
	"errors"
	"net/http"

	app "catalogserv/src/app"
	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

const imageFormField = "image"

// readUpload opens the multipart image of the request. The caller closes it.
func (a *AppHandler) readUpload(c *gin.Context) (service.Upload, func(), bool) {
	if a.maxUpload > 0 {
		if c.Request.ContentLength > a.maxUpload {
			abort(c, app.Validation("image must be at most %d bytes", a.maxUpload))
			return service.Upload{}, nil, false
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUpload)
	}
	header, err := c.FormFile(imageFormField)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abort(c, app.Validation("image must be at most %d bytes", tooLarge.Limit))
		return service.Upload{}, nil, false
	}
	if err != nil {
		abort(c, app.Validation("can not find image in request: %v", err))
		return service.Upload{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		abort(c, app.Validation("can not read image: %v", err))
		return service.Upload{}, nil, false
	}
	upload := service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() { _ = file.Close() }, true
}

func (a *AppHandler) PostItemImage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	upload, done, ok := a.readUpload(c)
	if !ok {
		return
	}
	defer done()

	item, err := a.items.UploadImage(c.Request.Context(), principal(c), id, upload)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, item)
}

func (a *AppHandler) PostCollectionImage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	upload, done, ok := a.readUpload(c)
	if !ok {
		return
	}
	defer done()

	collection, err := a.collections.UploadImage(c.Request.Context(), principal(c), id, upload)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collection)
}
