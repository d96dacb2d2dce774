package user

import (
	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
)

// Follow creates the directed edge follower -> followee. Following a user
// you already follow is a no-op, indicated by a false return.
//
// NB: This query will FAIL (with catalog.ErrNotFound) if either user does not exist
func (store *Store) Follow(db database.Queryable, followerID uuid.UUID, followeeID uuid.UUID) (bool, error) {
	if followerID == followeeID {
		return false, catalog.NewValidationError("user_id", "cannot follow yourself")
	}

	res, err := db.Exec(`
		INSERT INTO follows(follower_id, followee_id, created_at)
		VALUES ($1, $2, current_timestamp)
		ON CONFLICT(follower_id, followee_id) DO NOTHING
	`, followerID, followeeID)
	if err != nil {
		return false, database.TranslateError("follow", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, database.TranslateError("follow", err)
	}

	return n == 1, nil
}

// Unfollow removes the directed edge follower -> followee. Removing an
// edge which does not exist is not an error; false is returned instead.
func (store *Store) Unfollow(db database.Queryable, followerID uuid.UUID, followeeID uuid.UUID) (bool, error) {
	res, err := db.Exec(`DELETE FROM follows WHERE follower_id=$1 AND followee_id=$2`, followerID, followeeID)
	if err != nil {
		return false, database.TranslateError("follow", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, database.TranslateError("follow", err)
	}

	return n == 1, nil
}

func (store *Store) IsFollowing(db database.Queryable, followerID uuid.UUID, followeeID uuid.UUID) (bool, error) {
	var exists bool
	if err := db.Get(&exists, `
		SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id=$1 AND followee_id=$2)
	`, followerID, followeeID); err != nil {
		return false, database.TranslateError("follow", err)
	}

	return exists, nil
}

// ListFollowing returns the users that the given user follows.
func (store *Store) ListFollowing(db database.Queryable, userID uuid.UUID) ([]*User, error) {
	return store.listUsers(db, `
		SELECT users.* FROM follows
		INNER JOIN users ON users.id = follows.followee_id
		WHERE follows.follower_id = $1
		ORDER BY users.username`, userID)
}

// ListFollowers returns the users that follow the given user.
func (store *Store) ListFollowers(db database.Queryable, userID uuid.UUID) ([]*User, error) {
	return store.listUsers(db, `
		SELECT users.* FROM follows
		INNER JOIN users ON users.id = follows.follower_id
		WHERE follows.followee_id = $1
		ORDER BY users.username`, userID)
}

// ListFriends returns the union of the users the given user is following, and the
// users following them. Users who are both (mutual follows) appear once.
func (store *Store) ListFriends(db database.Queryable, userID uuid.UUID) ([]*User, error) {
	return store.listUsers(db, `
		SELECT users.* FROM users
		WHERE users.id IN (
			SELECT followee_id FROM follows WHERE follower_id = $1
			UNION
			SELECT follower_id FROM follows WHERE followee_id = $1
		)
		ORDER BY users.username`, userID)
}

func (store *Store) listUsers(db database.Queryable, query string, args ...any) ([]*User, error) {
	results := make([]*User, 0)
	if err := db.Select(&results, query, args...); err != nil {
		return nil, database.TranslateError("user", err)
	}

	return results, nil
}
