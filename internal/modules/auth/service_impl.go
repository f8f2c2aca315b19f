package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

type service struct {
	key []byte
	now func() time.Time
}

// NewService creates a token service signing with an HS256 secret.
func NewService(secret string) Service {
	return &service{key: []byte(secret), now: time.Now}
}

func (s *service) Issue(c Cashier, ttl time.Duration) (string, error) {
	if c.ID == uuid.Nil {
		return "", errors.New("cashier id is required")
	}
	now := s.now()
	cl := &claims{
		Name: c.Name,
		Role: c.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   c.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *service) Verify(tokenString string) (*Cashier, error) {
	cl := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, cl, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(cl.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a cashier id", ErrInvalidToken)
	}
	return &Cashier{ID: id, Name: cl.Name, Role: cl.Role}, nil
}
