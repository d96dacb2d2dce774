package dto

import (
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/media"
	"github.com/hbomb79/Cinelog/internal/playlist"
	"github.com/hbomb79/Cinelog/internal/rating"
	"github.com/hbomb79/Cinelog/internal/user"
)

func UserToDto(u *user.User) User {
	return User{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt, LastLogin: u.LastLoginAt}
}

func UserToPublicDto(u *user.User) PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func UserToProfileDto(u *user.User, following bool) UserProfile {
	return UserProfile{PublicUser: UserToPublicDto(u), Following: following}
}

func UsersToPublicDtos(users []*user.User) []PublicUser {
	return util.ApplyConversion(users, UserToPublicDto)
}

func GenreToDto(g *media.Genre) Genre {
	return Genre{ID: g.ID, TmdbID: g.TmdbID, Name: g.Name}
}

func GenresToDtos(genres []*media.Genre) []Genre {
	return util.ApplyConversion(genres, GenreToDto)
}

func MediaToDto(m *media.Media) Media {
	return Media{
		ID:            m.ID,
		TmdbID:        m.TmdbID,
		Type:          string(m.Type),
		Title:         m.Title,
		Overview:      m.Overview,
		ReleaseDate:   m.ReleaseDate,
		PosterPath:    m.PosterPath,
		Seasons:       m.Seasons,
		Episodes:      m.Episodes,
		LastWatchedAt: m.LastWatchedAt,
		Genres:        GenresToDtos(m.Genres),
	}
}

func MediasToDtos(medias []*media.Media) []Media {
	return util.ApplyConversion(medias, MediaToDto)
}

func RatingToDto(r *rating.Rating) Rating {
	return Rating{
		ID:        r.ID,
		UserID:    r.UserID,
		MediaID:   r.MediaID,
		Score:     r.Score,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func DetailedRatingToDto(r *rating.DetailedRating) Rating {
	dto := RatingToDto(&r.Rating)
	dto.Username = r.Username
	dto.MediaTitle = r.MediaTitle
	return dto
}

func DetailedRatingsToDtos(ratings []*rating.DetailedRating) []Rating {
	return util.ApplyConversion(ratings, DetailedRatingToDto)
}

func PlaylistToDto(p *playlist.Playlist) Playlist {
	return Playlist{ID: p.ID, UserID: p.UserID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func PlaylistsToDtos(playlists []*playlist.Playlist) []Playlist {
	return util.ApplyConversion(playlists, PlaylistToDto)
}

func PlaylistWithMediaToDto(p *playlist.PlaylistWithMedia) Playlist {
	dto := PlaylistToDto(&p.Playlist)
	dto.Medias = MediasToDtos(p.Medias)
	return dto
}
