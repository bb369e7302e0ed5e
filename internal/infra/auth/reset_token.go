package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"reviewhub/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const resetTokenPurpose = "password_reset"

type resetClaims struct {
	Purpose string `json:"purpose"`
	Stamp   string `json:"stp"`
	jwt.RegisteredClaims
}

// resetTokenCodec mints reset tokens bound to a user's security stamp.
// The token carries a hash of the stamp, never the stamp itself.
type resetTokenCodec struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

func (c *resetTokenCodec) issue(user *entity.User) (string, error) {
	issuedAt := c.now().UTC()
	claims := resetClaims{
		Purpose: resetTokenPurpose,
		Stamp:   stampFingerprint(user.SecurityStamp),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rand.Text(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", errors.Wrap(err, "sign reset token")
	}

	return signed, nil
}

// verify checks that token was minted for user in its current state.
func (c *resetTokenCodec) verify(user *entity.User, token string) error {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(user.ID.String()),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return errors.Wrap(err, "parse reset token")
	}
	if claims.Purpose != resetTokenPurpose {
		return errors.New("token purpose mismatch")
	}

	expected := stampFingerprint(user.SecurityStamp)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(claims.Stamp)) != 1 {
		return errors.New("token bound to stale security stamp")
	}

	return nil
}

func stampFingerprint(stamp string) string {
	sum := sha256.Sum256([]byte("reset:" + stamp))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}
