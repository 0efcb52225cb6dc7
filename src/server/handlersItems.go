package server

import (
	"net/http"

	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

type (
	itemBody struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Topic       *string   `json:"topic"`
		Tags        *[]string `json:"tags"`
		Collection  string    `json:"collection"`
	}

	commentBody struct {
		Text string `json:"text" binding:"required"`
	}
)

func (b itemBody) input() (service.ItemInput, error) {
	collection, err := optionalID(b.Collection)
	if err != nil {
		return service.ItemInput{}, err
	}
	return service.ItemInput{
		Name:        b.Name,
		Description: b.Description,
		Topic:       b.Topic,
		Tags:        b.Tags,
		Collection:  collection,
	}, nil
}

func (a *AppHandler) GetItems(c *gin.Context) {
	items, err := a.items.ListViews(c.Request.Context(), principal(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, items)
}

func (a *AppHandler) GetAllItems(c *gin.Context) {
	items, err := a.items.ListAllViews(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, items)
}

func (a *AppHandler) SearchItems(c *gin.Context) {
	items, err := a.items.Search(c.Request.Context(), searchQuery(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, items)
}

func (a *AppHandler) GetItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := a.items.View(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, item)
}

func (a *AppHandler) CreateItem(c *gin.Context) {
	var body itemBody
	if !bind(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		abort(c, err)
		return
	}
	item, err := a.items.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusCreated, item)
}

func (a *AppHandler) UpdateItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body itemBody
	if !bind(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		abort(c, err)
		return
	}
	item, err := a.items.Update(c.Request.Context(), principal(c), id, in)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, item)
}

func (a *AppHandler) DeleteItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.items.Delete(c.Request.Context(), principal(c), id); err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": id})
}

func (a *AppHandler) AddLike(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := a.items.AddLike(c.Request.Context(), principal(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, item)
}

func (a *AppHandler) RemoveLike(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := a.items.RemoveLike(c.Request.Context(), principal(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, item)
}

func (a *AppHandler) GetComments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	comments, err := a.items.Comments(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, comments)
}

func (a *AppHandler) AddComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body commentBody
	if !bind(c, &body) {
		return
	}
	comment, err := a.items.AddComment(c.Request.Context(), principal(c), id, body.Text)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusCreated, comment)
}

func (a *AppHandler) DeleteComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	commentID, ok := idParam(c, "commentId")
	if !ok {
		return
	}
	if err := a.items.RemoveComment(c.Request.Context(), principal(c), id, commentID); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
