package domain

// GameStatus is the administrative availability of a catalog game.
type GameStatus string

const (
	GameStatusActive     GameStatus = "active"
	GameStatusComingSoon GameStatus = "coming_soon"
)

// Game is a catalog entry.
type Game struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	PointsPerItem int        `json:"points_per_item"`
	Status        GameStatus `json:"status"`
	Rules         []string   `json:"rules,omitempty"`
}

// Playable reports whether submissions are accepted for the game.
func (g Game) Playable() bool {
	return g.Status == GameStatusActive
}

// Catalog is the closed, ordered set of game types.
type Catalog struct {
	games []Game
	byID  map[string]int
}

// NewCatalog builds a catalog preserving the given order.
func NewCatalog(games []Game) *Catalog {
	c := &Catalog{
		games: make([]Game, len(games)),
		byID:  make(map[string]int, len(games)),
	}
	copy(c.games, games)
	for i, g := range c.games {
		c.byID[g.ID] = i
	}
	return c
}

// Lookup returns the game with the given id.
func (c *Catalog) Lookup(id string) (Game, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Game{}, false
	}
	return c.games[i], true
}

// Games returns every game in catalog order.
func (c *Catalog) Games() []Game {
	out := make([]Game, len(c.games))
	copy(out, c.games)
	return out
}

// IDs returns every game type in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.games))
	for i, g := range c.games {
		ids[i] = g.ID
	}
	return ids
}

// NormalizeCounts returns a copy of m with a zero entry for every catalog game.
func (c *Catalog) NormalizeCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(c.games)+len(m))
	for _, g := range c.games {
		out[g.ID] = 0
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}
