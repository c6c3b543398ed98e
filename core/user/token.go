package user

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// Claims is the payload of an access token.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"` // first issue time, kept across refreshes
	Username     string `json:"username,omitempty"`
	Role         Role   `json:"role,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
	IsTeacher    bool   `json:"is_teacher,omitempty"`
	IsParent     bool   `json:"is_parent,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"`
}

// NewClaims builds the claims identifying usr, valid for ttl.
// origIssuedAt carries the first issue time when refreshing a token.
func NewClaims(usr User, ttl time.Duration, issuer string, origIssuedAt ...int64) *Claims {
	now := time.Now().UTC()
	oriat := now.Unix()
	if len(origIssuedAt) > 0 && origIssuedAt[0] > 0 {
		oriat = origIssuedAt[0]
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(usr.ID, 10),
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Role:         usr.Role,
		IsAdmin:      usr.IsAdmin(),
		IsTeacher:    usr.IsTeacher(),
		IsParent:     usr.IsParent(),
		IsStudent:    usr.IsStudent(),
	}
}

// UserID returns the identifier of the user the token was issued to.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing token subject")
	}
	return id, nil
}

func (c *Claims) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// IssueToken signs claims with HS256.
func IssueToken(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return signed, nil
}
