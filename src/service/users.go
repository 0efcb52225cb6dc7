package service

import (
	"context"
	"errors"
	"strings"

	app "catalogserv/src/app"
	"catalogserv/src/auth"
	db "catalogserv/src/repository"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	UserService struct {
		store  db.Store
		tokens *auth.TokenManager
		log    logrus.FieldLogger
	}

	RegisterInput struct {
		Username string
		Email    string
		Password string
	}

	// UpdateUserInput carries the changes a user may make to an account.
	// Role and Status are only honoured for admins.
	UpdateUserInput struct {
		Username *string
		Email    *string
		Password *string
		Role     *app.Role
		Status   *app.Status
	}

	// Session is what a successful login hands back to the client.
	Session struct {
		AccessToken string    `json:"accessToken"`
		User        *app.User `json:"user"`
	}
)

func NewUserService(store db.Store, tokens *auth.TokenManager, logger logrus.FieldLogger) *UserService {
	return &UserService{store: store, tokens: tokens, log: logger.WithField("service", "users")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*app.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, app.Validation("username, email and password are required")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &app.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         app.RoleUser,
		Status:       app.StatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithField("user", user.ID.Hex()).Info("user registered")
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, app.Validation("email and password are required")
	}
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, app.ErrNotFound) {
		return nil, app.Unauthenticated("credentials are not ok")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "UserService.Login: FindByEmail failed")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, app.Unauthenticated("credentials are not ok")
	}
	return s.session(user)
}

// LoginWithIdentity resolves a provider identity to a user: by provider id,
// then by email (linking the provider), then by creating a new account.
func (s *UserService) LoginWithIdentity(ctx context.Context, identity *app.Identity) (*Session, error) {
	if identity == nil || identity.Subject == "" {
		return nil, app.Unauthenticated("provider did not identify the user")
	}
	users := s.store.Users()

	user, err := users.FindByProvider(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return s.session(user)
	}
	if !errors.Is(err, app.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "UserService.LoginWithIdentity: FindByProvider failed")
	}

	email := normalizeEmail(identity.Email)
	if email != "" {
		user, err = users.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if err := users.LinkProvider(ctx, user.ID, identity.Provider, identity.Subject); err != nil {
				return nil, pkgerrors.Wrap(err, "UserService.LoginWithIdentity: LinkProvider failed")
			}
			s.log.WithFields(logrus.Fields{"user": user.ID.Hex(), "provider": identity.Provider}).Info("provider linked")
			return s.session(user)
		case !errors.Is(err, app.ErrNotFound):
			return nil, pkgerrors.Wrap(err, "UserService.LoginWithIdentity: FindByEmail failed")
		}
	} else {
		// Providers may withhold the address; the account still needs a unique one.
		email = string(identity.Provider) + "-" + identity.Subject + "@users.noreply.catalogserv"
	}

	username := strings.TrimSpace(identity.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	user = &app.User{
		Username: username,
		Email:    email,
		Role:     app.RoleUser,
		Status:   app.StatusActive,
	}
	switch identity.Provider {
	case app.ProviderGoogle:
		user.GoogleID = identity.Subject
	case app.ProviderGitHub:
		user.GitHubID = identity.Subject
	case app.ProviderFacebook:
		user.FacebookID = identity.Subject
	default:
		return nil, app.Validation("unknown provider %q", identity.Provider)
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID.Hex(), "provider": identity.Provider}).Info("user created from provider login")
	return s.session(user)
}

func (s *UserService) session(user *app.User) (*Session, error) {
	if user.Status == app.StatusBlocked {
		return nil, app.Forbidden("user is blocked")
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, User: user}, nil
}

// Authenticate turns a bearer token into the principal of a request. The user
// is reloaded so role changes, blocks and deletions apply immediately.
func (s *UserService) Authenticate(ctx context.Context, token string) (*app.Principal, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().Get(ctx, id)
	if errors.Is(err, app.ErrNotFound) {
		return nil, app.Unauthenticated("user of this token no longer exists")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "UserService.Authenticate: Get failed")
	}
	if user.Status == app.StatusBlocked {
		return nil, app.Forbidden("user is blocked")
	}
	return user.Principal(), nil
}

func (s *UserService) Me(ctx context.Context, p *app.Principal) (*app.User, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Users().Get(ctx, p.ID)
}

func (s *UserService) MyCollections(ctx context.Context, p *app.Principal) ([]app.Collection, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.store.Collections().List(ctx, &p.ID)
}

func (s *UserService) patch(in UpdateUserInput, admin bool) (app.UserPatch, error) {
	patch := app.UserPatch{Username: trimmed(in.Username)}
	if err := requireNonEmpty("username", patch.Username); err != nil {
		return patch, err
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return patch, app.Validation("email must not be empty")
		}
		patch.Email = &email
	}
	if in.Password != nil {
		if *in.Password == "" {
			return patch, app.Validation("password must not be empty")
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return patch, err
		}
		patch.PasswordHash = &hash
	}
	if in.Role != nil || in.Status != nil {
		if !admin {
			return patch, app.Forbidden("only admins may change role or status")
		}
		if in.Role != nil && !in.Role.Valid() {
			return patch, app.Validation("unknown role %q", *in.Role)
		}
		if in.Status != nil && !in.Status.Valid() {
			return patch, app.Validation("unknown status %q", *in.Status)
		}
		patch.Role, patch.Status = in.Role, in.Status
	}
	return patch, nil
}

func (s *UserService) UpdateMe(ctx context.Context, p *app.Principal, in UpdateUserInput) (*app.User, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	patch, err := s.patch(in, false)
	if err != nil {
		return nil, err
	}
	return s.store.Users().Update(ctx, p.ID, patch)
}

func (s *UserService) List(ctx context.Context) ([]app.User, error) {
	return s.store.Users().List(ctx)
}

// ListViews returns every user with their collections and those collections' items.
func (s *UserService) ListViews(ctx context.Context) ([]app.UserView, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	return viewer{s.store}.users(ctx, users)
}

func (s *UserService) Get(ctx context.Context, id primitive.ObjectID) (*app.User, error) {
	return s.store.Users().Get(ctx, id)
}

func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, in UpdateUserInput) (*app.User, error) {
	patch, err := s.patch(in, true)
	if err != nil {
		return nil, err
	}
	return s.store.Users().Update(ctx, id, patch)
}

func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user", id.Hex()).Info("user deleted")
	return nil
}

func (s *UserService) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, app.Validation("ids are required")
	}
	n, err := s.store.Users().DeleteMany(ctx, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "UserService.DeleteMany failed")
	}
	s.log.WithField("deleted", n).Info("users deleted")
	return n, nil
}

func (s *UserService) UpdateStatus(ctx context.Context, ids []primitive.ObjectID, status app.Status) (int64, error) {
	if len(ids) == 0 {
		return 0, app.Validation("ids are required")
	}
	if !status.Valid() {
		return 0, app.Validation("unknown status %q", status)
	}
	return s.store.Users().UpdateMany(ctx, ids, app.UserPatch{Status: &status})
}

func (s *UserService) UpdateRole(ctx context.Context, ids []primitive.ObjectID, role app.Role) (int64, error) {
	if len(ids) == 0 {
		return 0, app.Validation("ids are required")
	}
	if !role.Valid() {
		return 0, app.Validation("unknown role %q", role)
	}
	return s.store.Users().UpdateMany(ctx, ids, app.UserPatch{Role: &role})
}

// Promote makes the user with email an admin.
func (s *UserService) Promote(ctx context.Context, email string) (*app.User, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	role := app.RoleAdmin
	return s.store.Users().Update(ctx, user.ID, app.UserPatch{Role: &role})
}
