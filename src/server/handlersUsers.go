package server

import (
	"net/http"

	app "catalogserv/src/app"
	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

type (
	userBody struct {
		Username *string     `json:"username"`
		Email    *string     `json:"email"`
		Password *string     `json:"password"`
		Role     *app.Role   `json:"role"`
		Status   *app.Status `json:"status"`
	}

	userStatusBody struct {
		IDs    []string   `json:"ids" binding:"required,min=1"`
		Status app.Status `json:"status" binding:"required"`
	}

	userRoleBody struct {
		IDs  []string `json:"ids" binding:"required,min=1"`
		Role app.Role `json:"role" binding:"required"`
	}
)

func (b userBody) input() service.UpdateUserInput {
	return service.UpdateUserInput{
		Username: b.Username,
		Email:    b.Email,
		Password: b.Password,
		Role:     b.Role,
		Status:   b.Status,
	}
}

func (a *AppHandler) GetMe(c *gin.Context) {
	user, err := a.users.Me(c.Request.Context(), principal(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

func (a *AppHandler) GetMyCollections(c *gin.Context) {
	collections, err := a.users.MyCollections(c.Request.Context(), principal(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, collections)
}

func (a *AppHandler) UpdateMe(c *gin.Context) {
	var body userBody
	if !bind(c, &body) {
		return
	}
	user, err := a.users.UpdateMe(c.Request.Context(), principal(c), body.input())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

func (a *AppHandler) GetAllUsers(c *gin.Context) {
	users, err := a.users.ListViews(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, users)
}

func (a *AppHandler) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := a.users.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

func (a *AppHandler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body userBody
	if !bind(c, &body) {
		return
	}
	user, err := a.users.Update(c.Request.Context(), id, body.input())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

func (a *AppHandler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.users.Delete(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": id})
}

func (a *AppHandler) DeleteUsers(c *gin.Context) {
	var body idsBody
	if !bind(c, &body) {
		return
	}
	ids, err := app.ParseIDs(body.IDs)
	if err != nil {
		abort(c, err)
		return
	}
	n, err := a.users.DeleteMany(c.Request.Context(), ids)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"ids": body.IDs, "deleted": n})
}

func (a *AppHandler) UpdateUserStatus(c *gin.Context) {
	var body userStatusBody
	if !bind(c, &body) {
		return
	}
	ids, err := app.ParseIDs(body.IDs)
	if err != nil {
		abort(c, err)
		return
	}
	n, err := a.users.UpdateStatus(c.Request.Context(), ids, body.Status)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"ids": body.IDs, "updated": n})
}

func (a *AppHandler) UpdateUserRole(c *gin.Context) {
	var body userRoleBody
	if !bind(c, &body) {
		return
	}
	ids, err := app.ParseIDs(body.IDs)
	if err != nil {
		abort(c, err)
		return
	}
	n, err := a.users.UpdateRole(c.Request.Context(), ids, body.Role)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"ids": body.IDs, "updated": n})
}
