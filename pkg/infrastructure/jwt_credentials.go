package infrastructure

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures token issuance and verification for establishing the
// actor/tenant identity that CasbinAuthorizer later authorizes against.
// Chronicle itself never challenges a caller for credentials — this is
// middleware glue for callers who front their command handlers with an API
// that does.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// ActorClaims is the identity Chronicle cares about once a token verifies:
// who is acting, and on behalf of which tenant. Everything else in the
// token is the caller's business.
type ActorClaims struct {
	ActorID  string
	TenantID string
	jwt.RegisteredClaims
}

// JWTCredentialProvider issues and verifies HMAC-signed actor tokens.
type JWTCredentialProvider struct {
	cfg JWTConfig
}

func NewJWTCredentialProvider(cfg JWTConfig) *JWTCredentialProvider {
	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}
	return &JWTCredentialProvider{cfg: cfg}
}

// Issue signs a token asserting actorID acts on behalf of tenantID.
func (p *JWTCredentialProvider) Issue(actorID, tenantID string) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		ActorID:  actorID,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.Expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(p.cfg.Secret))
}

// Verify parses and validates tokenString, returning the actor/tenant pair
// embedded in it. Only HMAC-signed tokens are accepted, guarding against the
// classic "alg: none" downgrade.
func (p *JWTCredentialProvider) Verify(tokenString string) (ActorClaims, error) {
	var claims ActorClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.cfg.Secret), nil
	})
	if err != nil {
		return ActorClaims{}, fmt.Errorf("verify actor token: %w", err)
	}
	if !token.Valid {
		return ActorClaims{}, fmt.Errorf("actor token is not valid")
	}
	return claims, nil
}
