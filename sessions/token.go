package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrInvalidToken is returned when a session token fails signature or shape checks.
var ErrInvalidToken = errors.New("invalid session token")

// TokenSigner turns a session into an opaque HMAC-signed token for cookies
// and the terminal console, and back into a session id.
// The token carries no exp claim: expiry is decided by the guard against the
// stored issue instant so an expired session can still be recognised and evicted.
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret []byte) *TokenSigner {
	return &TokenSigner{secret: secret}
}

func (ts *TokenSigner) Sign(s *Session) (string, error) {
	claims := jwt.MapClaims{
		"sid": s.ID,
		"sub": s.OperatorEmail,
		"iat": s.IssuedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", errors.Wrap(err, "[TokenSigner.Sign] failed to sign session token")
	}
	return signed, nil
}

// Parse verifies the token and returns the session id and issue instant it carries.
func (ts *TokenSigner) Parse(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, ErrInvalidToken
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", time.Time{}, errors.Wrap(ErrInvalidToken, "missing sid")
	}
	var issued time.Time
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issued = iat.Time
	}
	return sid, issued, nil
}
