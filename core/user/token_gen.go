package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
)

// Password reset tokens have the form "<issue day, base 36>-<signature>".
// The signature covers the user's ID, password hash and last login, so a token
// stops working once the password is changed or the user logs in.

var (
	resetTokenSalt = []byte("edutrack/password-reset")
	nowFunc        = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID returns the URL-safe form of the user's ID sent along with a reset token.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(usr.ID, 10)))
}

func decodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func MakeToken(usr User, conf *core.Config) (string, error) {
	return resetToken(usr, epochDay(nowFunc()), conf.SecretKey), nil
}

func verifyToken(usr User, token string, conf *core.Config) error {
	dayPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return errInvalidToken
	}
	day, err := strconv.ParseInt(dayPart, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(resetToken(usr, day, conf.SecretKey)), []byte(token)) {
		return errInvalidToken
	}

	maxAge := int64(conf.PasswordResetTimeoutDelta / (24 * time.Hour))
	if epochDay(nowFunc())-day > maxAge {
		return errTokenExpired
	}
	return nil
}

func resetToken(usr User, day int64, secret string) string {
	key := sha256.Sum256(append(append([]byte{}, resetTokenSalt...), secret...))
	mac := hmac.New(sha256.New, key[:])
	var lastLogin string
	if !usr.LastLogin.IsZero() {
		lastLogin = usr.LastLogin.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(mac, "%d|%x|%s|%d", usr.ID, usr.PasswordHash, lastLogin, day)
	return strconv.FormatInt(day, 36) + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// epochDay is the number of whole days between the Unix epoch and t.
func epochDay(t time.Time) int64 {
	return t.Unix() / int64(24*time.Hour/time.Second)
}
