package auth

import (
	"strings"
	"time"

	app "catalogserv/src/app"
	cfg "catalogserv/src/configuration"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// TokenManager issues and verifies the HS256 bearer tokens handed out at login.
	TokenManager struct {
		secret []byte
		issuer string
		ttl    time.Duration
		signer jose.Signer
		now    func() time.Time
	}

	roleClaims struct {
		Role app.Role `json:"role"`
	}
)

func NewTokenManager(config cfg.AuthProperties) (*TokenManager, error) {
	secret := []byte(config.JWTSecret)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, errors.Wrap(err, "NewTokenManager: jose.NewSigner failed")
	}
	return &TokenManager{
		secret: secret,
		issuer: config.Issuer,
		ttl:    config.TokenTTL,
		signer: signer,
		now:    time.Now,
	}, nil
}

// Issue signs a token naming user as its subject.
func (m *TokenManager) Issue(user *app.User) (string, error) {
	now := m.now()
	claims := jwt.Claims{
		ID:       uuid.NewString(),
		Issuer:   m.issuer,
		Subject:  user.ID.Hex(),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.Signed(m.signer).Claims(claims).Claims(roleClaims{Role: user.Role}).CompactSerialize()
	if err != nil {
		return "", errors.Wrap(err, "TokenManager.Issue: sign failed")
	}
	return token, nil
}

// Verify checks signature, issuer and expiry and returns the user id the token
// was issued for. Every failure is reported as Unauthenticated.
func (m *TokenManager) Verify(raw string) (primitive.ObjectID, error) {
	token, err := jwt.ParseSigned(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, app.Unauthenticated("malformed token")
	}
	if len(token.Headers) != 1 || token.Headers[0].Algorithm != string(jose.HS256) {
		return primitive.NilObjectID, app.Unauthenticated("unexpected token algorithm")
	}
	var claims jwt.Claims
	if err := token.Claims(m.secret, &claims); err != nil {
		return primitive.NilObjectID, app.Unauthenticated("invalid token signature")
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Issuer: m.issuer, Time: m.now()}, 0); err != nil {
		return primitive.NilObjectID, app.Unauthenticated("token rejected: %v", err)
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, app.Unauthenticated("token subject is not a user id")
	}
	return id, nil
}
