package folder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/database"
	"github.com/hbomb79/Cinelog/internal/media"
)

// Store manages the watched and to-be-watched association tables. The
// invariant this store upholds is that a (user, media) pair is a member of
// at most one of the folders at any time.
//
// Move must be called inside a transaction in which the user row has been
// locked, otherwise two concurrent moves for the same pair could race.
type Store struct{}

func tableFor(folder catalog.Folder) string {
	switch folder {
	case catalog.WatchedFolder:
		return "watched_lists"
	case catalog.ToBeWatchedFolder:
		return "to_be_watched_lists"
	default:
		panic(fmt.Sprintf("unknown folder '%s'", folder))
	}
}

// Membership returns the folder the media is in for the given user, or
// nil if the media is not in any folder.
func (store *Store) Membership(db database.Queryable, userID uuid.UUID, mediaID uuid.UUID) (*catalog.Folder, error) {
	var folders []catalog.Folder
	if err := db.Select(&folders, `
		SELECT 'watched' FROM watched_lists WHERE user_id=$1 AND media_id=$2
		UNION ALL
		SELECT 'to_be_watched' FROM to_be_watched_lists WHERE user_id=$1 AND media_id=$2
	`, userID, mediaID); err != nil {
		return nil, database.TranslateError("folder", err)
	}

	switch len(folders) {
	case 0:
		return nil, nil
	case 1:
		return &folders[0], nil
	default:
		return nil, fmt.Errorf("media %s is in multiple folders for user %s", mediaID, userID)
	}
}

// Move places the media in the target folder for the user, removing it from the
// other folder if required. Moving media in to the folder it's already in
// performs no writes and reports catalog.MoveUnchanged.
func (store *Store) Move(db database.Queryable, userID uuid.UUID, mediaID uuid.UUID, target catalog.Folder) (catalog.MoveOutcome, error) {
	if !target.Valid() {
		return catalog.MoveUnchanged, catalog.NewValidationError("folder", fmt.Sprintf("'%s' is not one of [watched to_be_watched]", target))
	}

	current, err := store.Membership(db, userID, mediaID)
	if err != nil {
		return catalog.MoveUnchanged, err
	}

	outcome := catalog.MoveAdded
	if current != nil {
		if *current == target {
			return catalog.MoveUnchanged, nil
		}

		if err := store.Remove(db, userID, mediaID, *current); err != nil {
			return catalog.MoveUnchanged, err
		}
		outcome = catalog.MoveMoved
	}

	if _, err := db.Exec(
		fmt.Sprintf(`INSERT INTO %s(user_id, media_id, added_at) VALUES ($1, $2, current_timestamp)`, tableFor(target)),
		userID, mediaID,
	); err != nil {
		return catalog.MoveUnchanged, database.TranslateError("folder entry", err)
	}

	return outcome, nil
}

// Remove deletes the media from the given folder for the user. If the
// media is not in the folder, an error wrapping catalog.ErrNotFound is returned.
func (store *Store) Remove(db database.Queryable, userID uuid.UUID, mediaID uuid.UUID, folder catalog.Folder) error {
	res, err := db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1 AND media_id=$2`, tableFor(folder)), userID, mediaID)
	if err != nil {
		return database.TranslateError("folder entry", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return database.TranslateError("folder entry", err)
	} else if n == 0 {
		return catalog.NotFoundf("media %s is not in the %s folder", mediaID, folder)
	}

	return nil
}

// List returns the media in the folder for the user, most recently added first.
func (store *Store) List(db database.Queryable, userID uuid.UUID, folder catalog.Folder) ([]*media.Media, error) {
	results := make([]*media.Media, 0)
	if err := db.Select(&results, fmt.Sprintf(`
		SELECT medias.* FROM %[1]s
		INNER JOIN medias ON medias.id = %[1]s.media_id
		WHERE %[1]s.user_id = $1
		ORDER BY %[1]s.added_at DESC, medias.id`, tableFor(folder)), userID); err != nil {
		return nil, database.TranslateError("folder entry", err)
	}

	return results, nil
}
