package server

import (
	"net/http"
	"time"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	cfg "catalogserv/src/configuration"
	db "catalogserv/src/repository"
	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	AppHandler struct {
		users       *service.UserService
		collections *service.CollectionService
		items       *service.ItemService
		fields      *service.CustomFieldService

		providers   []auth.Provider
		states      db.StateStore
		stateTTL    time.Duration
		frontendURL string
		maxUpload   int64
		log         logrus.FieldLogger
	}

	idsBody struct {
		IDs []string `json:"ids" binding:"required,min=1"`
	}
)

func NewHandler(
	config *cfg.Properties,
	services *service.Services,
	providers []auth.Provider,
	states db.StateStore,
	logger logrus.FieldLogger,
) *AppHandler {
	return &AppHandler{
		users:       services.Users,
		collections: services.Collections,
		items:       services.Items,
		fields:      services.CustomFields,
		providers:   providers,
		states:      states,
		stateTTL:    config.Auth.StateTTL,
		frontendURL: config.Server.FrontendURL,
		maxUpload:   config.Server.MaxUpload,
		log:         logger,
	}
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (a *AppHandler) NoRoute(c *gin.Context) {
	abort(c, app.NotFound("route %s %s not found", c.Request.Method, c.Request.URL.Path))
}

func success(c *gin.Context, status int, payload any) {
	c.JSON(status, gin.H{"status": "success", "payload": payload})
}

// idParam validates a path id before anything is looked up.
func idParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := app.ParseID(c.Param(name))
	if err != nil {
		abort(c, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func bind(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		abort(c, app.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

// optionalID parses a body reference that may be missing.
func optionalID(raw string) (primitive.ObjectID, error) {
	if raw == "" {
		return primitive.NilObjectID, nil
	}
	return app.ParseID(raw)
}
