package server

import (
	"net/http"

	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

type collectionBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Topic       *string `json:"topic"`
}

func (b collectionBody) input() service.CollectionInput {
	return service.CollectionInput{Name: b.Name, Description: b.Description, Topic: b.Topic}
}

// searchQuery accepts ?title= and its shorter alias ?q=.
func searchQuery(c *gin.Context) string {
	if title := c.Query("title"); title != "" {
		return title
	}
	return c.Query("q")
}

func (a *AppHandler) GetCollections(c *gin.Context) {
	collections, err := a.collections.List(c.Request.Context(), principal(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collections)
}

func (a *AppHandler) GetAllCollections(c *gin.Context) {
	collections, err := a.collections.ListAllViews(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collections)
}

func (a *AppHandler) SearchCollections(c *gin.Context) {
	collections, err := a.collections.Search(c.Request.Context(), searchQuery(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collections)
}

func (a *AppHandler) GetCollection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	collection, err := a.collections.View(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collection)
}

func (a *AppHandler) CreateCollection(c *gin.Context) {
	var body collectionBody
	if !bind(c, &body) {
		return
	}
	collection, err := a.collections.Create(c.Request.Context(), principal(c), body.input())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusCreated, collection)
}

func (a *AppHandler) UpdateCollection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body collectionBody
	if !bind(c, &body) {
		return
	}
	collection, err := a.collections.Update(c.Request.Context(), principal(c), id, body.input())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collection)
}

func (a *AppHandler) DeleteCollection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.collections.Delete(c.Request.Context(), principal(c), id); err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": id})
}
