package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	app "catalogserv/src/app"
	cfg "catalogserv/src/configuration"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers every route of the service on a fresh gin engine.
func NewRouter(config *cfg.Properties, handler *AppHandler, metrics *Metrics, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestLogger(logger),
		metrics.Middleware(),
		cors.New(cors.Config{
			AllowOrigins:     config.Server.CorsOrigins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ErrorResponder(logger),
	)

	authn := Authenticate(handler.users)
	anyone := Require(app.RoleUser, app.RoleAdmin)
	admins := Require(app.RoleAdmin)

	router.GET("/health", handler.GetHealth)
	router.GET("/metrics", metrics.Handler())
	if config.Server.Pprof {
		pprof.Register(router)
	}

	users := router.Group("/users")
	users.POST("/register", handler.Register)
	users.POST("/login", handler.Login)
	for _, p := range handler.providers {
		users.GET(fmt.Sprintf("/%sLogin", p.Name()), handler.ProviderLogin(p))
		users.GET(fmt.Sprintf("/%sRedirect", p.Name()), handler.ProviderRedirect(p))
	}
	users.GET("/me", authn, anyone, handler.GetMe)
	users.PUT("/me", authn, anyone, handler.UpdateMe)
	users.GET("/me/collections", authn, anyone, handler.GetMyCollections)
	users.GET("/allUsers", authn, admins, handler.GetAllUsers)
	users.DELETE("/deleteUsers", authn, admins, handler.DeleteUsers)
	users.PUT("/updateUserStatus", authn, admins, handler.UpdateUserStatus)
	users.PUT("/updateUserRole", authn, admins, handler.UpdateUserRole)
	users.GET("/:id", authn, admins, handler.GetUser)
	users.PUT("/:id", authn, admins, handler.UpdateUser)
	users.DELETE("/:id", authn, admins, handler.DeleteUser)

	collections := router.Group("/collections")
	collections.GET("/search", handler.SearchCollections)
	collections.GET("/allCollections", authn, admins, handler.GetAllCollections)
	collections.GET("", authn, anyone, handler.GetCollections)
	collections.POST("", authn, anyone, handler.CreateCollection)
	collections.GET("/:id", authn, anyone, handler.GetCollection)
	collections.POST("/:id", authn, anyone, handler.PostCollectionImage)
	collections.PUT("/:id", authn, anyone, handler.UpdateCollection)
	collections.DELETE("/:id", authn, anyone, handler.DeleteCollection)

	items := router.Group("/items")
	items.GET("/search", handler.SearchItems)
	items.GET("/allitems", authn, admins, handler.GetAllItems)
	items.GET("", authn, anyone, handler.GetItems)
	items.POST("", authn, anyone, handler.CreateItem)
	items.GET("/:id", handler.GetItem)
	items.POST("/:id", authn, anyone, handler.PostItemImage)
	items.PUT("/:id", authn, anyone, handler.UpdateItem)
	items.DELETE("/:id", authn, anyone, handler.DeleteItem)
	items.GET("/:id/comments", handler.GetComments)
	items.POST("/:id/comments", authn, anyone, handler.AddComment)
	items.DELETE("/:id/comments/:commentId", authn, anyone, handler.DeleteComment)
	items.POST("/:id/add-like", authn, anyone, handler.AddLike)
	items.POST("/:id/remove-like", authn, anyone, handler.RemoveLike)

	fields := router.Group("/customfields")
	fields.GET("", authn, anyone, handler.GetCustomFields)
	fields.GET("/allFields", authn, admins, handler.GetAllCustomFields)
	fields.GET("/:id", authn, anyone, handler.GetCustomField)
	fields.POST("", authn, anyone, handler.CreateCustomField)
	fields.PUT("/:id", authn, anyone, handler.UpdateCustomField)
	fields.DELETE("/:id", authn, anyone, handler.DeleteCustomField)

	router.NoRoute(handler.NoRoute)
	return router
}

// RunServer serves router until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, config *cfg.Properties, router http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           router,
		ReadTimeout:       config.Server.ReadTimeout,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
	}
	errs := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http server listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}
