package internal

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/rating"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/hbomb79/Cinelog/tests/helpers"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	code := m.Run()
	helpers.TeardownDatabases()
	os.Exit(code)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetMetadata(ctx context.Context, tmdbID int, mediaType catalog.MediaType) (*catalog.Metadata, error) {
	args := m.Called(ctx, tmdbID, mediaType)
	if md, ok := args.Get(0).(*catalog.Metadata); ok {
		return md, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockProvider) Search(ctx context.Context, query string, mediaType catalog.MediaType) ([]catalog.SearchResult, error) {
	args := m.Called(ctx, query, mediaType)
	if res, ok := args.Get(0).([]catalog.SearchResult); ok {
		return res, args.Error(1)
	}

	return nil, args.Error(1)
}

func fightClub() *catalog.Metadata {
	release := time.Date(1999, 10, 15, 0, 0, 0, 0, time.UTC)
	return &catalog.Metadata{
		TmdbID:      550,
		Type:        catalog.MovieMediaType,
		Title:       "Fight Club",
		Overview:    "An insomniac office worker...",
		ReleaseDate: &release,
		PosterPath:  "/fc.jpg",
		Genres:      []catalog.Genre{{TmdbID: 18, Name: "Drama"}, {TmdbID: 53, Name: "Thriller"}},
	}
}

func strPtr(s string) *string { return &s }

// setup provisions a fresh database and returns an orchestrator backed by it
// along with the mocked metadata provider it consults.
func setup(t *testing.T) (*storeOrchestrator, *mockProvider) {
	db := helpers.RequireDB(t)
	provider := &mockProvider{}
	t.Cleanup(func() { provider.AssertExpectations(t) })

	return NewStoreOrchestrator(db, provider), provider
}

func registerUser(t *testing.T, store *storeOrchestrator) *user.User {
	name := "user" + random.String(8, random.Lowercase)
	u, err := store.RegisterUser(name+"@example.com", name, "hunter2hunter2")
	require.NoError(t, err)

	return u
}

func TestRegisterUser(t *testing.T) {
	store, _ := setup(t)

	u, err := store.RegisterUser("alice@example.com", "alice", "correcthorse")
	require.NoError(t, err)

	byName, err := store.GetUserWithUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, []byte("correcthorse"), u.HashedPassword)

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := store.RegisterUser("other@example.com", "alice", "correcthorse")
		assert.ErrorIs(t, err, catalog.ErrConflict)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		_, err := store.RegisterUser("alice@example.com", "alice2", "correcthorse")
		assert.ErrorIs(t, err, catalog.ErrConflict)
	})

	t.Run("Invalid request", func(t *testing.T) {
		_, err := store.RegisterUser("not-an-email", "a", "short")
		var validationErr *catalog.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Len(t, validationErr.Fields, 3)
	})

	t.Run("Login", func(t *testing.T) {
		found, err := store.GetUserWithUsernameAndPassword("alice", []byte("correcthorse"))
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)

		_, err = store.GetUserWithUsernameAndPassword("alice", []byte("wrong"))
		assert.ErrorIs(t, err, catalog.ErrUnauthorized)

		_, err = store.GetUserWithUsernameAndPassword("nobody", []byte("correcthorse"))
		assert.ErrorIs(t, err, catalog.ErrUnauthorized)
	})
}

// A user rating a title the catalog has never seen results in the title being
// imported (with its genres), the rating being stored, and the title being
// placed in the users watched folder.
func TestRateMedia_FirstRatingImportsTitle(t *testing.T) {
	store, provider := setup(t)
	provider.On("GetMetadata", mock.Anything, 550, catalog.MovieMediaType).Return(fightClub(), nil).Once()

	u := registerUser(t, store)
	watchedAt := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	r, created, err := store.RateMedia(ctx, u.ID, rating.RateRequest{
		TmdbID:    550,
		MediaType: catalog.MovieMediaType,
		Score:     5,
		Review:    strPtr("Masterpiece"),
		WatchedAt: &watchedAt,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 5, r.Score)
	require.NotNil(t, r.Review)
	assert.Equal(t, "Masterpiece", *r.Review)

	m, err := store.GetMediaWithTmdbID(550, catalog.MovieMediaType)
	require.NoError(t, err)
	assert.Equal(t, r.MediaID, m.ID)
	assert.Equal(t, "Fight Club", m.Title)
	require.NotNil(t, m.LastWatchedAt)
	assert.True(t, watchedAt.Equal(*m.LastWatchedAt))

	genres, err := store.GetGenresForMedia(m.ID)
	require.NoError(t, err)
	assert.Len(t, genres, 2)

	folder, err := store.GetFolderMembership(u.ID, m.ID)
	require.NoError(t, err)
	require.NotNil(t, folder)
	assert.Equal(t, catalog.WatchedFolder, *folder)

	t.Run("Re-rating updates in place", func(t *testing.T) {
		updated, created, err := store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 550, MediaType: catalog.MovieMediaType, Score: 3})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, r.ID, updated.ID)
		assert.Equal(t, 3, updated.Score)
		require.NotNil(t, updated.Review, "nil review should keep the existing review")
		assert.Equal(t, "Masterpiece", *updated.Review)

		cleared, _, err := store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 550, MediaType: catalog.MovieMediaType, Score: 3, Review: strPtr("")})
		require.NoError(t, err)
		assert.Nil(t, cleared.Review, "empty review should clear the existing review")

		ratings, err := store.ListRatingsForMedia(m.ID)
		require.NoError(t, err)
		assert.Len(t, ratings, 1)
	})
}

func TestRateMedia_Validation(t *testing.T) {
	store, _ := setup(t)
	u := registerUser(t, store)

	_, _, err := store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 550, MediaType: catalog.MovieMediaType, Score: 6})
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, _, err = store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 550, MediaType: "podcast", Score: 3})
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestRateMedia_UnknownTitle(t *testing.T) {
	store, provider := setup(t)
	provider.On("GetMetadata", mock.Anything, 999999999, catalog.MovieMediaType).Return(nil, catalog.NotFoundf("no such title")).Once()
	u := registerUser(t, store)

	_, _, err := store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 999999999, MediaType: catalog.MovieMediaType, Score: 3})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = store.GetMediaWithTmdbID(999999999, catalog.MovieMediaType)
	assert.ErrorIs(t, err, catalog.ErrNotFound, "no media row should be written for an unknown title")
}

func TestDeleteRating(t *testing.T) {
	store, provider := setup(t)
	provider.On("GetMetadata", mock.Anything, 550, catalog.MovieMediaType).Return(fightClub(), nil).Once()
	owner, other := registerUser(t, store), registerUser(t, store)

	r, _, err := store.RateMedia(ctx, owner.ID, rating.RateRequest{TmdbID: 550, MediaType: catalog.MovieMediaType, Score: 4})
	require.NoError(t, err)

	assert.ErrorIs(t, store.DeleteRating(other.ID, r.ID), catalog.ErrUnauthorized)
	require.NoError(t, store.DeleteRating(owner.ID, r.ID))
	assert.ErrorIs(t, store.DeleteRating(owner.ID, r.ID), catalog.ErrNotFound)

	ratings, err := store.ListRatingsForUser(owner.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestUpsertMedia_Idempotent(t *testing.T) {
	store, _ := setup(t)

	first, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)

	refreshed := fightClub()
	refreshed.Overview = "Updated overview"
	second, err := store.UpsertMedia(refreshed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Updated overview", second.Overview)
	assert.Len(t, second.Genres, 2)

	genres, err := store.ListGenres()
	require.NoError(t, err)
	assert.Len(t, genres, 2, "genres should not be duplicated by a second upsert")

	t.Run("Same TMDB ID, different type", func(t *testing.T) {
		seasons := 1
		show, err := store.UpsertMedia(&catalog.Metadata{TmdbID: 550, Type: catalog.ShowMediaType, Title: "Some Show", Seasons: &seasons})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, show.ID)
	})
}

func TestUpsertMedia_Concurrent(t *testing.T) {
	store, _ := setup(t)

	const workers = 8
	ids := make([]uuid.UUID, workers)
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := store.UpsertMedia(fightClub())
			if assert.NoError(t, err) {
				ids[i] = m.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestMoveToFolder(t *testing.T) {
	store, _ := setup(t)
	u := registerUser(t, store)
	m, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)

	outcome, err := store.MoveToFolder(u.ID, m.ID, catalog.ToBeWatchedFolder)
	require.NoError(t, err)
	assert.Equal(t, catalog.MoveAdded, outcome)

	outcome, err = store.MoveToFolder(u.ID, m.ID, catalog.ToBeWatchedFolder)
	require.NoError(t, err)
	assert.Equal(t, catalog.MoveUnchanged, outcome)

	outcome, err = store.MoveToFolder(u.ID, m.ID, catalog.WatchedFolder)
	require.NoError(t, err)
	assert.Equal(t, catalog.MoveMoved, outcome)

	tbw, err := store.ListFolder(u.ID, catalog.ToBeWatchedFolder)
	require.NoError(t, err)
	assert.Empty(t, tbw, "media should be removed from the other folder")

	watched, err := store.ListFolder(u.ID, catalog.WatchedFolder)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	assert.Equal(t, m.ID, watched[0].ID)

	t.Run("Remove", func(t *testing.T) {
		assert.ErrorIs(t, store.RemoveFromFolder(u.ID, m.ID, catalog.ToBeWatchedFolder), catalog.ErrNotFound)
		require.NoError(t, store.RemoveFromFolder(u.ID, m.ID, catalog.WatchedFolder))

		folder, err := store.GetFolderMembership(u.ID, m.ID)
		require.NoError(t, err)
		assert.Nil(t, folder)
	})

	t.Run("Unknown media", func(t *testing.T) {
		_, err := store.MoveToFolder(u.ID, uuid.New(), catalog.WatchedFolder)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("Invalid folder", func(t *testing.T) {
		_, err := store.MoveToFolder(u.ID, m.ID, catalog.Folder("favourites"))
		assert.ErrorIs(t, err, catalog.ErrValidation)
	})
}

// Concurrent moves of the same pair in to opposing folders must never leave
// the media in both folders.
func TestMoveToFolder_Concurrent(t *testing.T) {
	store, _ := setup(t)
	u := registerUser(t, store)
	m, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)

	wg := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		target := catalog.WatchedFolder
		if i%2 == 0 {
			target = catalog.ToBeWatchedFolder
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.MoveToFolder(u.ID, m.ID, target)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	folder, err := store.GetFolderMembership(u.ID, m.ID)
	require.NoError(t, err, "media must be in exactly one folder")
	assert.NotNil(t, folder)
}

func TestPlaylists(t *testing.T) {
	store, _ := setup(t)
	owner, other := registerUser(t, store), registerUser(t, store)
	m, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)

	p, err := store.CreatePlaylist(owner.ID, "  Favourites  ")
	require.NoError(t, err)
	assert.Equal(t, "Favourites", p.Name)

	_, err = store.CreatePlaylist(owner.ID, "   ")
	assert.ErrorIs(t, err, catalog.ErrValidation)

	added, err := store.AddMediaToPlaylist(owner.ID, p.ID, m.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddMediaToPlaylist(owner.ID, p.ID, m.ID)
	require.NoError(t, err)
	assert.False(t, added, "adding the same media twice should be a no-op")

	full, err := store.GetPlaylist(p.ID)
	require.NoError(t, err)
	require.Len(t, full.Medias, 1)
	assert.Equal(t, m.ID, full.Medias[0].ID)

	t.Run("Ownership", func(t *testing.T) {
		_, err := store.AddMediaToPlaylist(other.ID, p.ID, m.ID)
		assert.ErrorIs(t, err, catalog.ErrUnauthorized)

		_, err = store.RenamePlaylist(other.ID, p.ID, "Mine now")
		assert.ErrorIs(t, err, catalog.ErrUnauthorized)

		assert.ErrorIs(t, store.DeletePlaylist(other.ID, p.ID), catalog.ErrUnauthorized)
	})

	t.Run("Rename", func(t *testing.T) {
		renamed, err := store.RenamePlaylist(owner.ID, p.ID, "Best Of")
		require.NoError(t, err)
		assert.Equal(t, "Best Of", renamed.Name)
	})

	t.Run("Delete keeps media", func(t *testing.T) {
		require.NoError(t, store.DeletePlaylist(owner.ID, p.ID))

		_, err := store.GetPlaylist(p.ID)
		assert.ErrorIs(t, err, catalog.ErrNotFound)

		_, err = store.GetMediaWithID(m.ID)
		assert.NoError(t, err, "deleting a playlist must not delete its media")

		playlists, err := store.ListPlaylistsForUser(owner.ID)
		require.NoError(t, err)
		assert.Empty(t, playlists)
	})
}

func TestFollows(t *testing.T) {
	store, _ := setup(t)
	alice, bob, carol := registerUser(t, store), registerUser(t, store), registerUser(t, store)

	created, err := store.Follow(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Follow(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, created, "following twice should be a no-op")

	_, err = store.Follow(alice.ID, alice.ID)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = store.Follow(alice.ID, uuid.New())
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = store.Follow(bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = store.Follow(carol.ID, alice.ID)
	require.NoError(t, err)

	following, err := store.ListFollowing(alice.ID)
	require.NoError(t, err)
	assert.Len(t, following, 1)

	isFollowing, err := store.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, isFollowing)

	isFollowing, err = store.IsFollowing(bob.ID, carol.ID)
	require.NoError(t, err)
	assert.False(t, isFollowing)

	followers, err := store.ListFollowers(alice.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	// Bob is both followed and following, but must only appear once
	friends, err := store.ListFriends(alice.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 2)

	removed, err := store.Unfollow(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Unfollow(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	t.Run("Search excludes actor", func(t *testing.T) {
		users, err := store.SearchUsers(alice.ID, "user")
		require.NoError(t, err)
		assert.Len(t, users, 2)
		for _, u := range users {
			assert.NotEqual(t, alice.ID, u.ID)
		}
	})
}

func TestImportMedia_UsesExistingRow(t *testing.T) {
	store, provider := setup(t)
	provider.On("GetMetadata", mock.Anything, 550, catalog.MovieMediaType).Return(fightClub(), nil).Once()

	first, err := store.ImportMedia(ctx, 550, catalog.MovieMediaType)
	require.NoError(t, err)

	// The provider expectation is only registered Once, so a second fetch would fail
	second, err := store.ImportMedia(ctx, 550, catalog.MovieMediaType)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

// A failure part way through rating a new title (here, when saving its genres)
// must leave no trace of the media, the rating, or the folder entry.
func TestRateMedia_RollsBackOnFailure(t *testing.T) {
	store, provider := setup(t)
	broken := fightClub()
	broken.Genres = []catalog.Genre{{TmdbID: 18, Name: "Drama"}, {TmdbID: 19, Name: "Drama"}}
	provider.On("GetMetadata", mock.Anything, 550, catalog.MovieMediaType).Return(broken, nil).Once()
	u := registerUser(t, store)

	_, _, err := store.RateMedia(ctx, u.ID, rating.RateRequest{TmdbID: 550, MediaType: catalog.MovieMediaType, Score: 4})
	require.ErrorIs(t, err, catalog.ErrConflict)

	_, err = store.GetMediaWithTmdbID(550, catalog.MovieMediaType)
	assert.ErrorIs(t, err, catalog.ErrNotFound, "media upserted before the failure should be rolled back")

	genres, err := store.ListGenres()
	require.NoError(t, err)
	assert.Empty(t, genres)

	ratings, err := store.ListRatingsForUser(u.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)

	watched, err := store.ListFolder(u.ID, catalog.WatchedFolder)
	require.NoError(t, err)
	assert.Empty(t, watched)
}

func TestAttachGenres_Idempotent(t *testing.T) {
	store, _ := setup(t)
	m, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)

	extra := []catalog.Genre{{TmdbID: 18, Name: "Drama"}, {TmdbID: 80, Name: "Crime"}}
	require.NoError(t, store.AttachGenres(m.ID, extra))
	require.NoError(t, store.AttachGenres(m.ID, extra))

	genres, err := store.GetGenresForMedia(m.ID)
	require.NoError(t, err)
	assert.Len(t, genres, 3)

	var links int
	require.NoError(t, store.db.GetSqlxDb().Get(&links, `SELECT COUNT(*) FROM media_genres WHERE media_id=$1`, m.ID))
	assert.Equal(t, 3, links, "each genre should be linked exactly once")

	assert.ErrorIs(t, store.AttachGenres(uuid.New(), extra), catalog.ErrNotFound)
}

// Reads keyed on an ID which does not exist must report not found, rather
// than an empty result.
func TestReads_UnknownIDs(t *testing.T) {
	store, _ := setup(t)
	u := registerUser(t, store)
	m, err := store.UpsertMedia(fightClub())
	require.NoError(t, err)
	unknown := uuid.New()

	reads := map[string]func() error{
		"ListRatingsForMedia":       func() error { _, err := store.ListRatingsForMedia(unknown); return err },
		"ListRatingsForUser":        func() error { _, err := store.ListRatingsForUser(unknown); return err },
		"GetRatingForMedia":         func() error { _, err := store.GetRatingForMedia(u.ID, unknown); return err },
		"ListFolder":                func() error { _, err := store.ListFolder(unknown, catalog.WatchedFolder); return err },
		"GetFolderMembership/user":  func() error { _, err := store.GetFolderMembership(unknown, m.ID); return err },
		"GetFolderMembership/media": func() error { _, err := store.GetFolderMembership(u.ID, unknown); return err },
		"ListPlaylistsForUser":      func() error { _, err := store.ListPlaylistsForUser(unknown); return err },
		"ListFollowing":             func() error { _, err := store.ListFollowing(unknown); return err },
		"ListFollowers":             func() error { _, err := store.ListFollowers(unknown); return err },
		"ListFriends":               func() error { _, err := store.ListFriends(unknown); return err },
		"IsFollowing":               func() error { _, err := store.IsFollowing(u.ID, unknown); return err },
		"GetGenresForMedia":         func() error { _, err := store.GetGenresForMedia(unknown); return err },
		"GetUserWithUsername":       func() error { _, err := store.GetUserWithUsername("nobody-" + unknown.String()); return err },
	}

	for name, read := range reads {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, read(), catalog.ErrNotFound)
		})
	}

	t.Run("Known IDs with no data", func(t *testing.T) {
		ratings, err := store.ListRatingsForMedia(m.ID)
		require.NoError(t, err)
		assert.Empty(t, ratings)

		friends, err := store.ListFriends(u.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)

		_, err = store.GetRatingForMedia(u.ID, m.ID)
		assert.ErrorIs(t, err, catalog.ErrNotFound, "an unrated media has no rating")
	})
}
