// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for stored password hashes.
const bcryptCost = 12

// MinPasswordLength is enforced on every password write.
const MinPasswordLength = 10

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrBadRole            = errors.New(`role must be "admin"|"operator"`)
	ErrWeakPassword       = errors.New("password is too short")
	ErrEmailRequired      = errors.New("email is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("lautdata-dummy-password"), bcryptCost)
	return h
})

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(NormalizeEmail(email))}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create hashes password and inserts u.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return models.User{}, ErrEmailRequired
	}
	u.EmailCI = text.Fold(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	switch u.Role {
	case auth.RoleAdmin, auth.RoleOperator:
	default:
		return models.User{}, ErrBadRole
	}

	hash, err := hashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash

	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// Authenticate returns the active user matching email and password.
// Unknown emails, disabled accounts, and wrong passwords all yield
// ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Unknown emails cost one comparison too.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Status != models.StatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// TouchLogin records a successful sign-in.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": time.Now().UTC()}})
	return err
}

// EnsureAdmin makes sure an active admin with email exists. A missing
// account is created with password; an existing one is promoted to admin
// and re-activated but keeps its password.
func (s *Store) EnsureAdmin(ctx context.Context, email, password string, log *zap.Logger) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	u, err := s.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		created, err := s.Create(ctx, models.User{
			FullName: "Administrator",
			Email:    email,
			Role:     auth.RoleAdmin,
		}, password)
		if err != nil {
			return err
		}
		log.Info("created bootstrap admin", zap.String("email", created.Email))
		return nil
	case err != nil:
		return err
	}

	if u.Role == auth.RoleAdmin && u.Status == models.StatusActive {
		return nil
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"role":       auth.RoleAdmin,
		"status":     models.StatusActive,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	log.Info("promoted bootstrap admin", zap.String("email", email), zap.String("previous_role", u.Role))
	return nil
}
