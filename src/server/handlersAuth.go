package server

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	"catalogserv/src/service"

	"github.com/gin-gonic/gin"
)

type (
	registerBody struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	loginBody struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
)

func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (a *AppHandler) Register(c *gin.Context) {
	var body registerBody
	if !bind(c, &body) {
		return
	}
	user, err := a.users.Register(c.Request.Context(), service.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"id": user.ID})
}

func (a *AppHandler) Login(c *gin.Context) {
	var body loginBody
	if !bind(c, &body) {
		return
	}
	session, err := a.users.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, http.StatusOK, session)
}

// ProviderLogin sends the browser to the provider with a fresh state.
func (a *AppHandler) ProviderLogin(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := randString(16)
		if err != nil {
			abort(c, err)
			return
		}
		if err := a.states.Save(c.Request.Context(), state, a.stateTTL); err != nil {
			abort(c, err)
			return
		}
		c.Redirect(http.StatusFound, p.AuthCodeURL(state))
	}
}

// ProviderRedirect finishes a provider login and hands the access token to
// the frontend as ?accessToken=.
func (a *AppHandler) ProviderRedirect(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		state, code := c.Query("state"), c.Query("code")
		if state == "" || code == "" {
			abort(c, app.Unauthenticated("state and code are required"))
			return
		}
		ok, err := a.states.Consume(ctx, state)
		if err != nil {
			abort(c, err)
			return
		}
		if !ok {
			abort(c, app.Unauthenticated("unknown or expired login state"))
			return
		}
		identity, err := p.Identify(ctx, code)
		if err != nil {
			abort(c, err)
			return
		}
		session, err := a.users.LoginWithIdentity(ctx, identity)
		if err != nil {
			abort(c, err)
			return
		}
		target, err := url.Parse(a.frontendURL)
		if err != nil {
			abort(c, err)
			return
		}
		query := target.Query()
		query.Set("accessToken", session.AccessToken)
		target.RawQuery = query.Encode()
		a.log.WithField("provider", p.Name()).WithField("user", session.User.ID.Hex()).Info("provider login")
		c.Redirect(http.StatusFound, target.String())
	}
}
