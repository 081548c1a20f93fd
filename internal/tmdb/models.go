package tmdb

import "strings"

const imageBaseURL = "https://image.tmdb.org/t/p/original"

// DiscoverMovie is a single entry in a discover response.
type DiscoverMovie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	GenreIDs         []int64 `json:"genre_ids"`
}

// Page models the TMDB paginated discover response.
type Page struct {
	Page         int             `json:"page"`
	Results      []DiscoverMovie `json:"results"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
}

// Genre is a TMDB genre entry on a details payload.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CrewMember is one credited crew entry.
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Credits carries the crew list from append_to_response=credits.
type Credits struct {
	Crew []CrewMember `json:"crew"`
}

// MovieDetails is the full movie payload including credits.
type MovieDetails struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	Runtime          int     `json:"runtime"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
	Genres           []Genre `json:"genres"`
	Credits          Credits `json:"credits"`
}

// Directors returns the credited directors joined with commas.
func (d *MovieDetails) Directors() string {
	var names []string
	for _, member := range d.Credits.Crew {
		if member.Job == "Director" && strings.TrimSpace(member.Name) != "" {
			names = append(names, member.Name)
		}
	}
	return strings.Join(names, ", ")
}

// GenreNames returns the genre names in payload order.
func (d *MovieDetails) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, genre := range d.Genres {
		if genre.Name != "" {
			names = append(names, genre.Name)
		}
	}
	return names
}

// ImageURL resolves a TMDB image path to a full URL. Empty paths stay empty.
func ImageURL(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return imageBaseURL + path
}
