package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"asset-catalog/internal/db"
)

// DefaultSessionTTL is how long issued tokens stay valid.
const DefaultSessionTTL = 24 * time.Hour

// PasswordCost is the bcrypt cost used for admin password digests.
const PasswordCost = 12

// Accounts is the credential store the session issuer reads from.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (db.Admin, error)
	FindByID(ctx context.Context, id string) (db.Admin, error)
}

// Identity is the verified caller attached to gated requests.
type Identity struct {
	AdminID string
	Email   string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Admin     Identity
}

type sessionClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer verifies admin credentials and issues and checks signed tokens.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	accounts Accounts
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(accounts Accounts, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Issuer{
		accounts: accounts,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

var (
	dummyDigestOnce sync.Once
	dummyDigest     []byte
)

// compareDummy burns the same bcrypt work as a real comparison so unknown
// emails cannot be told apart by response time.
func compareDummy(password string) {
	dummyDigestOnce.Do(func() {
		dummyDigest, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), PasswordCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyDigest, []byte(password))
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (i *Issuer) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}

	adm, err := i.accounts.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		compareDummy(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(adm.PasswordDigest), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	return i.issue(Identity{AdminID: adm.ID, Email: adm.Email})
}

func (i *Issuer) issue(id Identity) (Session, error) {
	now := i.now()
	exp := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		ID:    id.AdminID,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AdminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: exp, Admin: id}, nil
}

// Authenticate verifies a token and returns the identity it carries. Every
// failure collapses to ErrUnauthorized.
func (i *Issuer) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}
	if claims.ID == "" || claims.Email == "" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{AdminID: claims.ID, Email: claims.Email}, nil
}
