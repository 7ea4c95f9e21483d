package crosswalk

import "sort"

// Role is one acting credit.
type Role struct {
	MovieKey string
	Role     string
}

// Person is a credited actor with every acting role found this run, in
// source order.
type Person struct {
	Key   string
	Name  string
	Roles []Role
}

// Stats summarizes what went into a crosswalk.
type Stats struct {
	TMDbLinks int
	Genres    int
	Directors int
	Actors    int
	Roles     int
	Excluded  int
}

// Crosswalk is read-only after Build.
type Crosswalk struct {
	tmdbToMovie map[int64]string
	movieToTMDb map[string]int64
	genres      map[string]string
	directors   map[string]string
	people      map[string]Person
	order       []string
	excluded    int
}

// Empty returns a crosswalk with no entries.
func Empty() *Crosswalk {
	return NewBuilder().Build()
}

// MovieForTMDb resolves a TMDb id to a movie key.
func (c *Crosswalk) MovieForTMDb(id int64) (string, bool) {
	key, ok := c.tmdbToMovie[id]
	return key, ok
}

// TMDbForMovie resolves a movie key to a TMDb id.
func (c *Crosswalk) TMDbForMovie(key string) (int64, bool) {
	id, ok := c.movieToTMDb[key]
	return id, ok
}

// Genre returns the aggregated genre string of a movie.
func (c *Crosswalk) Genre(key string) (string, bool) {
	g, ok := c.genres[key]
	return g, ok
}

// Director returns the first director credited on a movie.
func (c *Crosswalk) Director(key string) (string, bool) {
	d, ok := c.directors[key]
	return d, ok
}

// Person returns the acting credits of one person.
func (c *Crosswalk) Person(key string) (Person, bool) {
	p, ok := c.people[key]
	return p, ok
}

// People returns every credited actor in first-seen order.
func (c *Crosswalk) People() []Person {
	out := make([]Person, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.people[key])
	}
	return out
}

// MovieKeys lists every movie key the crosswalk knows something about, sorted.
func (c *Crosswalk) MovieKeys() []string {
	seen := make(map[string]struct{})
	for _, key := range c.tmdbToMovie {
		seen[key] = struct{}{}
	}
	for key := range c.genres {
		seen[key] = struct{}{}
	}
	for key := range c.directors {
		seen[key] = struct{}{}
	}
	for _, p := range c.people {
		for _, r := range p.Roles {
			seen[r.MovieKey] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Stats reports entry counts.
func (c *Crosswalk) Stats() Stats {
	roles := 0
	for _, p := range c.people {
		roles += len(p.Roles)
	}
	return Stats{
		TMDbLinks: len(c.tmdbToMovie),
		Genres:    len(c.genres),
		Directors: len(c.directors),
		Actors:    len(c.people),
		Roles:     roles,
		Excluded:  c.excluded,
	}
}
