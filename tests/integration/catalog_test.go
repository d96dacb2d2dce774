package integration_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Rating a title which has never been seen imports it, and places it
// in the raters watched folder.
func TestRateMedia_ImportsAndMarksWatched(t *testing.T) {
	srv := requireCinelog(t)
	_, client := srv.newClientWithRandomUser(t)

	var created dto.Rating
	client.mustDo(http.MethodPost, "/media/movie/550/rating/", map[string]any{"score": 5, "review": "Masterpiece"}, http.StatusCreated, &created)
	assert.Equal(t, 5, created.Score)

	var updated dto.Rating
	client.mustDo(http.MethodPost, "/media/movie/550/rating/", map[string]any{"score": 4}, http.StatusOK, &updated)
	assert.Equal(t, created.ID, updated.ID)
	require.NotNil(t, updated.Review)
	assert.Equal(t, "Masterpiece", *updated.Review)

	var media dto.Media
	client.mustDo(http.MethodGet, fmt.Sprintf("/media/%s/", created.MediaID), nil, http.StatusOK, &media)
	assert.Equal(t, "Fight Club", media.Title)
	assert.Len(t, media.Genres, 1)

	var watched []dto.Media
	client.mustDo(http.MethodGet, "/folders/watched/", nil, http.StatusOK, &watched)
	require.Len(t, watched, 1)
	assert.Equal(t, media.ID, watched[0].ID)

	var ratings []dto.Rating
	client.mustDo(http.MethodGet, fmt.Sprintf("/media/%s/ratings/", media.ID), nil, http.StatusOK, &ratings)
	assert.Len(t, ratings, 1)
}

func TestRateMedia_Invalid(t *testing.T) {
	srv := requireCinelog(t)
	_, client := srv.newClientWithRandomUser(t)

	assert.Equal(t, http.StatusBadRequest, client.do(http.MethodPost, "/media/movie/550/rating/", map[string]any{"score": 9}, nil))
	assert.Equal(t, http.StatusBadRequest, client.do(http.MethodPost, "/media/podcast/550/rating/", map[string]any{"score": 3}, nil))
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodPost, "/media/movie/1/rating/", map[string]any{"score": 3}, nil))
}

func TestDeleteRating_Ownership(t *testing.T) {
	srv := requireCinelog(t)
	_, owner := srv.newClientWithRandomUser(t)
	_, other := srv.newClientWithRandomUser(t)

	var created dto.Rating
	owner.mustDo(http.MethodPost, "/media/show/1396/rating/", map[string]any{"score": 5}, http.StatusCreated, &created)

	path := fmt.Sprintf("/ratings/%s/", created.ID)
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodDelete, path, nil, nil))
	owner.mustDo(http.MethodDelete, path, nil, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNotFound, owner.do(http.MethodDelete, path, nil, nil))
}

func TestFolders_Move(t *testing.T) {
	srv := requireCinelog(t)
	_, client := srv.newClientWithRandomUser(t)

	var media dto.Media
	client.mustDo(http.MethodGet, "/media/movie/550/", nil, http.StatusOK, &media)

	var move dto.FolderMoveResponse
	client.mustDo(http.MethodPost, "/folders/to_be_watched/", map[string]any{"media_id": media.ID}, http.StatusOK, &move)
	assert.Equal(t, "added", move.Outcome)

	client.mustDo(http.MethodPost, "/folders/to_be_watched/", map[string]any{"media_id": media.ID}, http.StatusOK, &move)
	assert.Equal(t, "unchanged", move.Outcome)

	client.mustDo(http.MethodPost, "/folders/watched/", map[string]any{"media_id": media.ID}, http.StatusOK, &move)
	assert.Equal(t, "moved", move.Outcome)

	var tbw []dto.Media
	client.mustDo(http.MethodGet, "/folders/to_be_watched/", nil, http.StatusOK, &tbw)
	assert.Empty(t, tbw)

	client.mustDo(http.MethodDelete, fmt.Sprintf("/folders/watched/%s/", media.ID), nil, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodDelete, fmt.Sprintf("/folders/watched/%s/", media.ID), nil, nil))
	assert.Equal(t, http.StatusBadRequest, client.do(http.MethodGet, "/folders/favourites/", nil, nil))
}

func TestPlaylists_Lifecycle(t *testing.T) {
	srv := requireCinelog(t)
	owner, client := srv.newClientWithRandomUser(t)
	_, other := srv.newClientWithRandomUser(t)

	var media dto.Media
	client.mustDo(http.MethodGet, "/media/movie/550/", nil, http.StatusOK, &media)

	var playlist dto.Playlist
	client.mustDo(http.MethodPost, "/playlists/", map[string]any{"name": "Favourites"}, http.StatusCreated, &playlist)
	assert.Equal(t, owner.ID, playlist.UserID)

	mediaPath := fmt.Sprintf("/playlists/%s/media/", playlist.ID)
	var added dto.PlaylistMediaResponse
	client.mustDo(http.MethodPost, mediaPath, map[string]any{"media_id": media.ID}, http.StatusCreated, &added)
	assert.True(t, added.Added)
	client.mustDo(http.MethodPost, mediaPath, map[string]any{"media_id": media.ID}, http.StatusOK, &added)
	assert.False(t, added.Added)

	assert.Equal(t, http.StatusForbidden, other.do(http.MethodPost, mediaPath, map[string]any{"media_id": media.ID}, nil))
	assert.Equal(t, http.StatusForbidden, other.do(http.MethodDelete, fmt.Sprintf("/playlists/%s/", playlist.ID), nil, nil))

	var fetched dto.Playlist
	other.mustDo(http.MethodGet, fmt.Sprintf("/playlists/%s/", playlist.ID), nil, http.StatusOK, &fetched)
	require.Len(t, fetched.Medias, 1)

	var renamed dto.Playlist
	client.mustDo(http.MethodPatch, fmt.Sprintf("/playlists/%s/", playlist.ID), map[string]any{"name": "Best Of"}, http.StatusOK, &renamed)
	assert.Equal(t, "Best Of", renamed.Name)

	client.mustDo(http.MethodDelete, fmt.Sprintf("/playlists/%s/media/%s/", playlist.ID, media.ID), nil, http.StatusNoContent, nil)
	client.mustDo(http.MethodDelete, fmt.Sprintf("/playlists/%s/", playlist.ID), nil, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodGet, fmt.Sprintf("/playlists/%s/", playlist.ID), nil, nil))

	// The media outlives the playlist
	client.mustDo(http.MethodGet, fmt.Sprintf("/media/%s/", media.ID), nil, http.StatusOK, nil)
}

func TestFollows(t *testing.T) {
	srv := requireCinelog(t)
	alice, aliceClient := srv.newClientWithRandomUser(t)
	bob, bobClient := srv.newClientWithRandomUser(t)

	var follow dto.FollowResponse
	aliceClient.mustDo(http.MethodPost, fmt.Sprintf("/users/%s/follow/", bob.ID), nil, http.StatusCreated, &follow)
	assert.True(t, follow.Changed)
	aliceClient.mustDo(http.MethodPost, fmt.Sprintf("/users/%s/follow/", bob.ID), nil, http.StatusOK, &follow)
	assert.False(t, follow.Changed)

	assert.Equal(t, http.StatusBadRequest, aliceClient.do(http.MethodPost, fmt.Sprintf("/users/%s/follow/", alice.ID), nil, nil))

	bobClient.mustDo(http.MethodPost, fmt.Sprintf("/users/%s/follow/", alice.ID), nil, http.StatusCreated, nil)

	var friends []dto.PublicUser
	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/%s/friends/", alice.ID), nil, http.StatusOK, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	var followers []dto.PublicUser
	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/%s/followers/", bob.ID), nil, http.StatusOK, &followers)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	var profile dto.UserProfile
	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/%s/", bob.ID), nil, http.StatusOK, &profile)
	assert.Equal(t, bob.ID, profile.ID)
	assert.True(t, profile.Following)

	var byName dto.UserProfile
	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/by-username/%s/", profile.Username), nil, http.StatusOK, &byName)
	assert.Equal(t, bob.ID, byName.ID)
	assert.True(t, byName.Following)
	assert.Equal(t, http.StatusNotFound, aliceClient.do(http.MethodGet, "/users/by-username/nobody-"+uuid.NewString()+"/", nil, nil))

	aliceClient.mustDo(http.MethodDelete, fmt.Sprintf("/users/%s/follow/", bob.ID), nil, http.StatusOK, nil)

	var following []dto.PublicUser
	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/%s/following/", alice.ID), nil, http.StatusOK, &following)
	assert.Empty(t, following)

	aliceClient.mustDo(http.MethodGet, fmt.Sprintf("/users/%s/", bob.ID), nil, http.StatusOK, &profile)
	assert.False(t, profile.Following)

	unknown := uuid.New()
	for _, path := range []string{"/users/%s/", "/users/%s/friends/", "/users/%s/ratings/", "/users/%s/playlists/", "/users/%s/folders/watched/", "/media/%s/ratings/"} {
		assert.Equal(t, http.StatusNotFound, aliceClient.do(http.MethodGet, fmt.Sprintf(path, unknown), nil, nil), path)
	}
}

func TestSearchMedia(t *testing.T) {
	srv := requireCinelog(t)
	_, client := srv.newClientWithRandomUser(t)

	var results []map[string]any
	client.mustDo(http.MethodGet, "/media/search/?q=breaking&type=show", nil, http.StatusOK, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "Breaking Bad", results[0]["title"])

	assert.Equal(t, http.StatusBadRequest, client.do(http.MethodGet, "/media/search/", nil, nil))
}
