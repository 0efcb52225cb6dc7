package server

import (
	"net/http"
	"time"

	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

type customFieldBody struct {
	FieldNumber  *int       `json:"fieldNumber"`
	FieldName    *string    `json:"fieldName"`
	FieldType    *string    `json:"fieldType"`
	FieldChecked *bool      `json:"fieldChecked"`
	FieldDate    *time.Time `json:"fieldDate"`
	Collection   string     `json:"collection"`
}

func (b customFieldBody) input() (service.CustomFieldInput, error) {
	collection, err := optionalID(b.Collection)
	if err != nil {
		return service.CustomFieldInput{}, err
	}
	return service.CustomFieldInput{
		FieldNumber:  b.FieldNumber,
		FieldName:    b.FieldName,
		FieldType:    b.FieldType,
		FieldChecked: b.FieldChecked,
		FieldDate:    b.FieldDate,
		Collection:   collection,
	}, nil
}

func (a *AppHandler) GetCustomFields(c *gin.Context) {
	fields, err := a.fields.List(c.Request.Context(), principal(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, fields)
}

func (a *AppHandler) GetAllCustomFields(c *gin.Context) {
	fields, err := a.fields.ListAll(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, fields)
}

func (a *AppHandler) GetCustomField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	field, err := a.fields.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, field)
}

func (a *AppHandler) CreateCustomField(c *gin.Context) {
	var body customFieldBody
	if !bind(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		abort(c, err)
		return
	}
	field, err := a.fields.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusCreated, field)
}

func (a *AppHandler) UpdateCustomField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body customFieldBody
	if !bind(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		abort(c, err)
		return
	}
	field, err := a.fields.Update(c.Request.Context(), principal(c), id, in)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, field)
}

func (a *AppHandler) DeleteCustomField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.fields.Delete(c.Request.Context(), principal(c), id); err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": id})
}
