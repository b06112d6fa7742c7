package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the strict payload schema shared by the gateway and the backend.
type Claims struct {
	UserID    string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	TokenType string `json:"typ,omitempty"`
	JTI       string `json:"jti,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a decoded token is allowed to claim about its holder.
type Identity struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      user.Role `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Decoder reads access tokens WITHOUT checking their signature. Anything it
// returns is a hint for routing decisions, never proof of identity: every
// backend call re-authenticates the token itself.
type Decoder struct {
	parser *jwt.Parser
	now    func() time.Time
}

func NewDecoder() *Decoder {
	return &Decoder{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// Decode parses the payload and validates it against the claims schema,
// failing closed: a missing subject, an unknown role, a non-access token
// type or an elapsed expiry all count as no session.
func (d *Decoder) Decode(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMalformedToken
	}

	var claims Claims
	if _, _, err := d.parser.ParseUnverified(raw, &claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if claims.UserID == "" && claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}

	role, err := user.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if claims.TokenType != "" && claims.TokenType != TokenTypeAccess {
		return Identity{}, fmt.Errorf("%w: token type %q", ErrMalformedToken, claims.TokenType)
	}

	id := Identity{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Name:    claims.Name,
		Role:    role,
		TokenID: claims.JTI,
	}
	if id.UserID == "" {
		id.UserID = claims.Subject
	}

	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
		if !d.now().Before(id.ExpiresAt) {
			return Identity{}, ErrTokenExpired
		}
	}

	return id, nil
}

// Fingerprint identifies a token for revocation and caching without keeping
// the raw value around.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
