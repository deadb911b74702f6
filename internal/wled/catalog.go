package wled

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Entry is one named catalog item. For effects and palettes the id is the
// position in the controller's flat list; for presets and playlists it is
// the sparse slot id from the presets file.
type Entry struct {
	ID   int
	Name string
}

// Catalogs holds the controller-reported entity lists. Each list is
// replaced wholesale on refresh; there is no incremental merge.
type Catalogs struct {
	effects   []Entry
	palettes  []Entry
	presets   []Entry
	playlists []Entry
}

// NewCatalogs creates empty catalogs.
func NewCatalogs() *Catalogs {
	return &Catalogs{}
}

// SetEffects replaces the effect catalog from the flat ordered name list.
func (c *Catalogs) SetEffects(names []string) {
	c.effects = fromOrderedNames(names)
	log.Debug().Int("count", len(c.effects)).Msg("Effect catalog replaced")
}

// SetPalettes replaces the palette catalog from the flat ordered name list.
func (c *Catalogs) SetPalettes(names []string) {
	c.palettes = fromOrderedNames(names)
	log.Debug().Int("count", len(c.palettes)).Msg("Palette catalog replaced")
}

// SetPresets replaces the preset and playlist catalogs from the id-keyed
// presets file. Records carrying a playlist object become playlist entries,
// the rest become presets, and the reserved slot "0" is discarded.
func (c *Catalogs) SetPresets(records map[string]PresetRecord) {
	var presets, playlists []Entry

	for key, rec := range records {
		id, err := strconv.Atoi(key)
		if err != nil {
			log.Warn().Str("key", key).Msg("Ignoring non-numeric preset slot")
			continue
		}
		if id == 0 {
			continue
		}

		entry := Entry{ID: id, Name: rec.Name}
		if rec.IsPlaylist() {
			playlists = append(playlists, entry)
		} else {
			presets = append(presets, entry)
		}
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].ID < playlists[j].ID })

	c.presets = presets
	c.playlists = playlists
	log.Debug().
		Int("presets", len(presets)).
		Int("playlists", len(playlists)).
		Msg("Preset catalogs replaced")
}

// Entries returns the catalog for a kind in catalog order.
func (c *Catalogs) Entries(kind Kind) []Entry {
	switch kind {
	case KindEffect:
		return c.effects
	case KindPalette:
		return c.palettes
	case KindPreset:
		return c.presets
	case KindPlaylist:
		return c.playlists
	default:
		return nil
	}
}

// Name returns the name for an id in a kind's catalog, or "" when unknown.
func (c *Catalogs) Name(kind Kind, id int) string {
	for _, entry := range c.Entries(kind) {
		if entry.ID == id {
			return entry.Name
		}
	}
	return ""
}

// NextFreePresetID returns the lowest unused slot across presets and
// playlists, which share the controller's 1-250 id space.
func (c *Catalogs) NextFreePresetID() (int, bool) {
	used := make(map[int]bool, len(c.presets)+len(c.playlists))
	for _, entry := range c.presets {
		used[entry.ID] = true
	}
	for _, entry := range c.playlists {
		used[entry.ID] = true
	}
	for id := 1; id <= 250; id++ {
		if !used[id] {
			return id, true
		}
	}
	return 0, false
}

func fromOrderedNames(names []string) []Entry {
	entries := make([]Entry, 0, len(names))
	for i, name := range names {
		entries = append(entries, Entry{ID: i, Name: name})
	}
	return entries
}
