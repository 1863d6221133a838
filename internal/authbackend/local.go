package authbackend

import (
	"context"
	"errors"
	"time"

	"pulseboard/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const localIssuer = "pulseboard-local-auth"

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
}

// RefreshSession is one issued refresh token. Refresh rotates it: the old row is
// revoked and a new one is written.
type RefreshSession struct {
	Token     string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;index"`
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

type localClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Local is a self-hosted identity provider over the users table: bcrypt password
// hashes, HS256 access tokens and rotating opaque refresh tokens.
type Local struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewLocal(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *Local {
	return &Local{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (l *Local) Migrate() error {
	return l.db.AutoMigrate(&User{}, &RefreshSession{})
}

// CreateUser registers an account, used for seeding and tests.
func (l *Local) CreateUser(ctx context.Context, email, password string) (model.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Identity{}, err
	}
	u := User{ID: uuid.New().String(), Email: email, PasswordHash: string(hash)}
	if err := l.db.WithContext(ctx).Create(&u).Error; err != nil {
		return model.Identity{}, pkgerrors.Wrap(err, "create user")
	}
	return model.Identity{ID: u.ID, Email: u.Email}, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var u User
	err := l.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return l.issue(ctx, l.db.WithContext(ctx), model.Identity{ID: u.ID, Email: u.Email})
}

func (l *Local) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out *Session
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rs RefreshSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ? AND revoked = ?", refreshToken, false).
			First(&rs).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !l.now().Before(rs.ExpiresAt) {
			return ErrInvalidToken
		}
		var u User
		if err := tx.First(&u, "id = ?", rs.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		// only the transaction that flips revoked may mint the next pair
		res := tx.Model(&RefreshSession{}).
			Where("token = ? AND revoked = ?", rs.Token, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidToken
		}
		s, err := l.issue(ctx, tx, model.Identity{ID: u.ID, Email: u.Email})
		out = s
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(ErrUnavailable, err.Error())
	}
	return out, nil
}

func (l *Local) GetUser(_ context.Context, accessToken string) (model.Identity, error) {
	claims := &localClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return l.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(l.now))
	if err != nil || !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	return model.Identity{ID: claims.UserID, Email: claims.Email}, nil
}

// SignOut revokes every refresh session of the token's owner.
func (l *Local) SignOut(ctx context.Context, accessToken string) error {
	id, err := l.GetUser(ctx, accessToken)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Model(&RefreshSession{}).
		Where("user_id = ?", id.ID).
		Update("revoked", true).Error
}

func (l *Local) issue(ctx context.Context, tx *gorm.DB, id model.Identity) (*Session, error) {
	now := l.now()
	claims := localClaims{
		UserID: id.ID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(l.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    localIssuer,
			Subject:   id.ID,
			ID:        uuid.New().String(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return nil, err
	}

	rs := RefreshSession{
		Token:     uuid.New().String(),
		UserID:    id.ID,
		ExpiresAt: now.Add(l.refreshTTL),
	}
	if err := tx.WithContext(ctx).Create(&rs).Error; err != nil {
		return nil, err
	}

	return &Session{AccessToken: access, RefreshToken: rs.Token, Identity: id}, nil
}
