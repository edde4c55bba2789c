package model

import "strings"

// Genre is one entry of the fixed on-demand genre vocabulary.
type Genre string

const (
	GenreAction      Genre = "ACTION"
	GenreDrama       Genre = "DRAMA"
	GenreComedy      Genre = "COMEDY"
	GenreRomance     Genre = "ROMANCE"
	GenreThriller    Genre = "THRILLER"
	GenreHorror      Genre = "HORROR"
	GenreMystery     Genre = "MYSTERY"
	GenreSF          Genre = "SF"
	GenreFantasy     Genre = "FANTASY"
	GenreCrime       Genre = "CRIME"
	GenreWar         Genre = "WAR"
	GenreMusic       Genre = "MUSIC"
	GenreAnimation   Genre = "ANIMATION"
	GenreDocumentary Genre = "DOCUMENTARY"
)

// MinGenres and MaxGenres bound a single on-demand request.
const (
	MinGenres = 1
	MaxGenres = 5
)

// GenreInfo pairs a genre with its display label.
type GenreInfo struct {
	Code  Genre  `json:"code"`
	Label string `json:"label"`
}

var genreVocabulary = []GenreInfo{
	{GenreAction, "액션"},
	{GenreDrama, "드라마"},
	{GenreComedy, "코미디"},
	{GenreRomance, "로맨스"},
	{GenreThriller, "스릴러"},
	{GenreHorror, "공포"},
	{GenreMystery, "미스터리"},
	{GenreSF, "SF"},
	{GenreFantasy, "판타지"},
	{GenreCrime, "범죄"},
	{GenreWar, "전쟁"},
	{GenreMusic, "음악"},
	{GenreAnimation, "애니메이션"},
	{GenreDocumentary, "다큐멘터리"},
}

// Genres returns the vocabulary in display order.
func Genres() []GenreInfo {
	out := make([]GenreInfo, len(genreVocabulary))
	copy(out, genreVocabulary)
	return out
}

// ParseGenre accepts either the code or the display label.
func ParseGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	for _, g := range genreVocabulary {
		if strings.EqualFold(s, string(g.Code)) || s == g.Label {
			return g.Code, true
		}
	}
	return "", false
}

// Label returns the display label, or the code when g is not in the vocabulary.
func (g Genre) Label() string {
	for _, info := range genreVocabulary {
		if info.Code == g {
			return info.Label
		}
	}
	return string(g)
}
