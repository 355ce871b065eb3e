package domain

import "strings"

// Genre is a recognized genre, identified by its display name.
type Genre string

const (
	GenreRock       Genre = "Rock"
	GenreJazz       Genre = "Jazz"
	GenreBlues      Genre = "Blues"
	GenreFunk       Genre = "Funk"
	GenreSoul       Genre = "Soul"
	GenrePop        Genre = "Pop"
	GenreHipHop     Genre = "Hip Hop"
	GenreRnB        Genre = "R&B"
	GenreElectronic Genre = "Electronic"
	GenreFolk       Genre = "Folk"
	GenreCountry    Genre = "Country"
	GenreMetal      Genre = "Metal"
	GenrePunk       Genre = "Punk"
	GenreReggae     Genre = "Reggae"
	GenreLatin      Genre = "Latin"
	GenreClassical  Genre = "Classical"
	GenreIndie      Genre = "Indie"
	GenreWorld      Genre = "World"
)

var knownGenres = []Genre{
	GenreRock, GenreJazz, GenreBlues, GenreFunk, GenreSoul, GenrePop,
	GenreHipHop, GenreRnB, GenreElectronic, GenreFolk, GenreCountry, GenreMetal,
	GenrePunk, GenreReggae, GenreLatin, GenreClassical, GenreIndie, GenreWorld,
}

var genreIndex = func() map[string]Genre {
	m := make(map[string]Genre, len(knownGenres))
	for _, g := range knownGenres {
		m[strings.ToLower(string(g))] = g
	}
	return m
}()

// ParseGenre maps a free-text token to a recognized genre, case-insensitively.
func ParseGenre(token string) (Genre, bool) {
	g, ok := genreIndex[strings.ToLower(strings.TrimSpace(token))]
	return g, ok
}

func KnownGenres() []Genre {
	return append([]Genre(nil), knownGenres...)
}
