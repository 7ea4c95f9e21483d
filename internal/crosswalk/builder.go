package crosswalk

import (
	"encoding/json"
	"strings"

	"reelshelf/internal/normalize"
	"reelshelf/internal/source"
)

// Credit is one cast/crew row after column binding.
type Credit struct {
	MovieKey  string
	PersonKey string
	Name      string
	Category  string
	Character string

	// Categorized marks rows from a source that carries a category column.
	// An empty category there is not an acting credit.
	Categorized bool
}

// Builder accumulates crosswalk rows. It is not safe for concurrent use.
type Builder struct {
	tmdbToMovie map[int64]string
	movieToTMDb map[string]int64
	genreLists  map[string][]string
	genreSeen   map[string]map[string]struct{}
	directors   map[string]string
	names       map[string]string
	people      map[string]*Person
	roleSeen    map[string]map[string]struct{}
	order       []string
	excluded    int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		tmdbToMovie: make(map[int64]string),
		movieToTMDb: make(map[string]int64),
		genreLists:  make(map[string][]string),
		genreSeen:   make(map[string]map[string]struct{}),
		directors:   make(map[string]string),
		names:       make(map[string]string),
		people:      make(map[string]*Person),
		roleSeen:    make(map[string]map[string]struct{}),
	}
}

var (
	movieKeyFields = []string{"imdb_id", "movie_imdb_id", "tconst", "movie_id", "imdbid"}

	idLinkSchema = source.Schema{
		source.Aliases("imdb", "imdb_id", "imdbid", "movie_imdb_id"),
		source.Aliases("tmdb", "tmdb_id", "tmdbid"),
	}
	genreSchema = source.Schema{
		source.Aliases("movie", movieKeyFields...),
		source.Aliases("tmdb", "tmdb_id", "tmdbid"),
		source.Aliases("genre", "genre", "genre_name", "name", "genres"),
	}
	creditSchema = source.Schema{
		source.Aliases("movie", movieKeyFields...),
		source.Aliases("tmdb", "tmdb_id", "tmdbid"),
		source.Aliases("person", "person_id", "nconst", "actor_id", "imdb_person_id", "people_id"),
		source.Aliases("name", "name", "primary_name", "primaryname", "person_name", "actor_name"),
		source.Aliases("category", "category", "job", "department", "role_type"),
		source.Aliases("character", "character", "characters", "character_name", "role"),
	}
	peopleSchema = source.Schema{
		source.Aliases("person", "person_id", "nconst", "actor_id", "id"),
		source.Aliases("name", "name", "primary_name", "primaryname", "person_name"),
	}
)

var actingCategories = map[string]struct{}{
	"actor":   {},
	"actress": {},
	"self":    {},
	"cast":    {},
	"acting":  {},
}

// AddIDLinks records TMDb/IMDb pairs from any table carrying both. Later
// duplicates overwrite earlier ones.
func (b *Builder) AddIDLinks(t *source.Table) {
	if t.Len() == 0 {
		return
	}
	bind := t.Bind(idLinkSchema)
	if bind.Has("imdb") && bind.Has("tmdb") {
		for _, r := range t.Records {
			b.AddIDLink(bind.Value(r, "tmdb"), bind.Value(r, "imdb"))
		}
	}
}

// AddIDLink records one TMDb/IMDb pair from raw cell values.
func (b *Builder) AddIDLink(tmdbValue, imdbValue any) bool {
	tmdbID, ok := normalize.Int(tmdbValue)
	if !ok || tmdbID <= 0 {
		return false
	}
	key, ok := movieKey(imdbValue)
	if !ok {
		return false
	}
	b.tmdbToMovie[tmdbID] = key
	b.movieToTMDb[key] = tmdbID
	return true
}

// AddGenres aggregates genre labels per movie. A cell may carry several
// labels separated by '|' or ','.
func (b *Builder) AddGenres(t *source.Table) {
	if t.Len() == 0 {
		return
	}
	bind := t.Bind(genreSchema)
	if !bind.Has("genre") {
		return
	}
	for _, r := range t.Records {
		key, ok := b.resolveMovie(bind.Value(r, "movie"), bind.Value(r, "tmdb"))
		if !ok {
			b.excluded++
			continue
		}
		raw, ok := normalize.Text(bind.Value(r, "genre"))
		if !ok {
			continue
		}
		for _, label := range strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' }) {
			b.AddGenre(key, label)
		}
	}
}

// AddGenre appends one label to a movie, ignoring case-insensitive repeats.
func (b *Builder) AddGenre(movieKey, label string) {
	label = strings.TrimSpace(label)
	if movieKey == "" || label == "" {
		return
	}
	seen := b.genreSeen[movieKey]
	if seen == nil {
		seen = make(map[string]struct{})
		b.genreSeen[movieKey] = seen
	}
	folded := strings.ToLower(label)
	if _, dup := seen[folded]; dup {
		return
	}
	seen[folded] = struct{}{}
	b.genreLists[movieKey] = append(b.genreLists[movieKey], label)
}

// AddPeople records person names for credit rows that carry only an id.
func (b *Builder) AddPeople(t *source.Table) {
	if t.Len() == 0 {
		return
	}
	bind := t.Bind(peopleSchema)
	if !bind.Has("person") || !bind.Has("name") {
		return
	}
	for _, r := range t.Records {
		key, ok := normalize.ActorKey(bind.Value(r, "person"))
		if !ok {
			continue
		}
		if name, ok := normalize.ClippedText(bind.Value(r, "name"), normalize.MaxName); ok {
			b.names[key] = name
		}
	}
}

// AddCredits feeds a combined cast/crew table.
func (b *Builder) AddCredits(t *source.Table) {
	if t.Len() == 0 {
		return
	}
	bind := t.Bind(creditSchema)
	for _, r := range t.Records {
		credit, ok := b.bindCredit(bind, r)
		if !ok {
			b.excluded++
			continue
		}
		b.AddCredit(credit)
	}
}

func (b *Builder) bindCredit(bind source.Binding, r source.Record) (Credit, bool) {
	key, ok := b.resolveMovie(bind.Value(r, "movie"), bind.Value(r, "tmdb"))
	if !ok {
		return Credit{}, false
	}
	person, ok := normalize.ActorKey(bind.Value(r, "person"))
	if !ok {
		return Credit{}, false
	}
	name, _ := normalize.ClippedText(bind.Value(r, "name"), normalize.MaxName)
	category, _ := normalize.Text(bind.Value(r, "category"))
	character, _ := normalize.Text(bind.Value(r, "character"))
	return Credit{
		MovieKey:    key,
		PersonKey:   person,
		Name:        name,
		Category:    category,
		Character:   character,
		Categorized: bind.Has("category"),
	}, true
}

// AddCredit records one credit. Directors feed the director map; acting
// categories feed the actor map. A credit missing its movie, person or a
// resolvable name is excluded. It reports whether the credit was used.
func (b *Builder) AddCredit(c Credit) bool {
	if c.MovieKey == "" || c.PersonKey == "" {
		b.excluded++
		return false
	}
	if c.Name != "" {
		if _, known := b.names[c.PersonKey]; !known {
			b.names[c.PersonKey] = c.Name
		}
	} else {
		c.Name = b.names[c.PersonKey]
	}
	if c.Name == "" {
		b.excluded++
		return false
	}

	category := strings.ToLower(strings.TrimSpace(c.Category))
	if category == "director" {
		if _, ok := b.directors[c.MovieKey]; !ok {
			b.directors[c.MovieKey] = c.Name
		}
		return true
	}
	if category == "" {
		if c.Categorized {
			return false
		}
	} else if _, acting := actingCategories[category]; !acting {
		return false
	}

	p, ok := b.people[c.PersonKey]
	if !ok {
		p = &Person{Key: c.PersonKey, Name: c.Name}
		b.people[c.PersonKey] = p
		b.roleSeen[c.PersonKey] = make(map[string]struct{})
		b.order = append(b.order, c.PersonKey)
	}
	if _, dup := b.roleSeen[c.PersonKey][c.MovieKey]; dup {
		return true
	}
	b.roleSeen[c.PersonKey][c.MovieKey] = struct{}{}
	p.Roles = append(p.Roles, Role{MovieKey: c.MovieKey, Role: characterName(c.Character)})
	return true
}

// Build freezes the accumulated rows. The builder must not be used afterwards.
func (b *Builder) Build() *Crosswalk {
	c := &Crosswalk{
		tmdbToMovie: b.tmdbToMovie,
		movieToTMDb: b.movieToTMDb,
		genres:      make(map[string]string, len(b.genreLists)),
		directors:   b.directors,
		people:      make(map[string]Person, len(b.people)),
		order:       b.order,
		excluded:    b.excluded,
	}
	for key, labels := range b.genreLists {
		c.genres[key] = normalize.Clip(strings.Join(labels, ", "), normalize.MaxGenre)
	}
	for key, p := range b.people {
		roles := make([]Role, len(p.Roles))
		copy(roles, p.Roles)
		c.people[key] = Person{Key: p.Key, Name: p.Name, Roles: roles}
	}
	return c
}

func (b *Builder) resolveMovie(movieValue, tmdbValue any) (string, bool) {
	if key, ok := movieKey(movieValue); ok {
		return key, true
	}
	if id, ok := normalize.Int(tmdbValue); ok {
		key, found := b.tmdbToMovie[id]
		return key, found
	}
	return "", false
}

func movieKey(v any) (string, bool) {
	if key, ok := normalize.MovieKey(v); ok {
		return key, true
	}
	return normalize.MovieKeyFromNumber(v)
}

// characterName flattens IMDb's JSON list form (["Neo"]) to its first entry.
func characterName(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err == nil {
			if len(names) == 0 {
				return ""
			}
			raw = strings.TrimSpace(names[0])
		}
	}
	return normalize.Clip(raw, normalize.MaxName)
}
