package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/pkg/logger"
)

const defaultSearchLimit = 25

var log = logger.Get("UserStore")

type (
	User struct {
		ID             uuid.UUID  `db:"id" json:"id"`
		Email          string     `db:"email" json:"email"`
		Username       string     `db:"username" json:"username"`
		HashedPassword []byte     `db:"password" json:"-"`
		HashSalt       []byte     `db:"salt" json:"-"`
		CreatedAt      time.Time  `db:"created_at" json:"created_at"`
		UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
		LastLoginAt    *time.Time `db:"last_login" json:"last_login,omitempty"`
	}

	RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
		Password string `json:"password" validate:"required,min=8,max=128"`
	}

	Store struct {
		hasher *argonHasher
	}
)

func NewStore() *Store {
	return &Store{
		newArgon2IdHasher(1, 64, 64*1024, 1, 128),
	}
}

// Create inserts a new user with the given email and username. The raw password
// provided is hashed (with a random salt) before being stored. If the email
// or username is already in use, an error wrapping catalog.ErrConflict is returned.
func (store *Store) Create(db database.Queryable, email string, username string, rawPassword []byte) (*User, error) {
	hash, err := store.hasher.GenerateHash(rawPassword, []byte{})
	if err != nil {
		return nil, fmt.Errorf("provided password is invalid: %w", err)
	}

	var user User
	if err := db.Get(&user, `
		INSERT INTO users(id, email, username, password, salt, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, current_timestamp, current_timestamp, NULL)
		RETURNING *
	`, uuid.New(), strings.ToLower(email), username, hash.hash, hash.salt); err != nil {
		return nil, database.TranslateError("user", err)
	}

	log.Emit(logger.NEW, "Created user %s (%s)\n", user.Username, user.ID)
	return &user, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*User, error) {
	return store.getWhere(db, squirrel.Eq{"users.id": id})
}

func (store *Store) GetWithUsername(db database.Queryable, username string) (*User, error) {
	return store.getWhere(db, squirrel.Eq{"users.username": username})
}

// GetWithUsernameAndPassword finds a user with the matching
// username and returns it IF and ONLY IF the raw (unhashed) password
// provided is able to be hashed with the same salt as was used with
// the existing user (if any), and the hashes MATCH.
//
// Both an unknown username and a bad password result in catalog.ErrUnauthorized, so
// that callers cannot use this method to discover which usernames exist.
func (store *Store) GetWithUsernameAndPassword(db database.Queryable, username string, rawPassword []byte) (*User, error) {
	user, err := store.GetWithUsername(db, username)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, catalog.Unauthorizedf("invalid credentials for user %s", username)
		}

		return nil, err
	}

	if err := store.hasher.Compare(user.HashedPassword, user.HashSalt, rawPassword); err != nil {
		return nil, catalog.Unauthorizedf("invalid credentials for user %s", username)
	}

	return user, nil
}

// Search returns users whose username contains the query provided (case-insensitive),
// excluding the user with the ID 'exclude' (typically the user performing the search).
func (store *Store) Search(db database.Queryable, query string, exclude uuid.UUID) ([]*User, error) {
	pattern := "%" + escapeLike(query) + "%"
	sql, args, err := selectUserBuilder().
		Where(squirrel.ILike{"users.username": pattern}).
		Where(squirrel.NotEq{"users.id": exclude}).
		OrderBy("users.username").
		Limit(defaultSearchLimit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct user search query: %w", err)
	}

	var results []*User
	if err := db.Select(&results, db.Rebind(sql), args...); err != nil {
		return nil, database.TranslateError("user", err)
	}

	return results, nil
}

// LockForUpdate acquires a row-level lock on the user row for the remainder of
// the enclosing transaction. This is used to serialise mutations which span
// multiple tables for a single user. Calling this outside of a transaction is
// pointless.
func (store *Store) LockForUpdate(db database.Queryable, id uuid.UUID) error {
	var lockedID uuid.UUID
	if err := db.Get(&lockedID, `SELECT id FROM users WHERE id=$1 FOR UPDATE`, id); err != nil {
		return database.TranslateError("user", err)
	}

	return nil
}

func (store *Store) RecordLogin(db database.Queryable, userID uuid.UUID) error {
	_, err := db.Exec(`UPDATE users SET last_login=current_timestamp WHERE id = $1`, userID)
	return database.TranslateError("user", err)
}

func (store *Store) getWhere(db database.Queryable, pred any) (*User, error) {
	query, args, err := selectUserBuilder().Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select user query: %w", err)
	}

	var user User
	if err := db.Get(&user, db.Rebind(query), args...); err != nil {
		return nil, database.TranslateError("user", err)
	}

	return &user, nil
}

func selectUserBuilder() squirrel.SelectBuilder {
	return squirrel.Select("users.*").From("users")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
