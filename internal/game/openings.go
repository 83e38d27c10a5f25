package game

import (
	"sort"
	"strings"
)

// Opening is one named catalog entry a fresh game can be loaded from.
type Opening struct {
	Name     string `json:"name"`
	Movetext string `json:"movetext"`
}

var openingCatalog = []Opening{
	{Name: "Italian Game", Movetext: "1. e4 e5 2. Nf3 Nc6 3. Bc4"},
	{Name: "Ruy Lopez", Movetext: "1. e4 e5 2. Nf3 Nc6 3. Bb5"},
	{Name: "Sicilian Defense", Movetext: "1. e4 c5"},
	{Name: "French Defense", Movetext: "1. e4 e6 2. d4 d5"},
	{Name: "Caro-Kann Defense", Movetext: "1. e4 c6 2. d4 d5"},
	{Name: "Queen's Gambit", Movetext: "1. d4 d5 2. c4"},
	{Name: "King's Indian Defense", Movetext: "1. d4 Nf6 2. c4 g6"},
	{Name: "London System", Movetext: "1. d4 d5 2. Bf4"},
	{Name: "English Opening", Movetext: "1. c4"},
	{Name: "Scandinavian Defense", Movetext: "1. e4 d5"},
}

// OpeningEntry resolves a catalog entry by name. Matching is forgiving:
// case, spacing and punctuation are ignored.
func OpeningEntry(name string) (Opening, bool) {
	token := normalizeOpeningToken(name)
	if token == "" {
		return Opening{}, false
	}
	for _, o := range openingCatalog {
		if normalizeOpeningToken(o.Name) == token {
			return o, true
		}
	}
	return Opening{}, false
}

// OpeningMoves resolves just the movetext of a catalog entry.
func OpeningMoves(name string) (string, bool) {
	o, ok := OpeningEntry(name)
	return o.Movetext, ok
}

// OpeningNames lists the catalog entries, sorted.
func OpeningNames() []string {
	names := make([]string, 0, len(openingCatalog))
	for _, o := range openingCatalog {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	return names
}

func normalizeOpeningToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
