package wled

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which catalog a token resolves against.
type Kind string

const (
	KindEffect   Kind = "effect"
	KindPalette  Kind = "palette"
	KindPreset   Kind = "preset"
	KindPlaylist Kind = "playlist"
)

// Range returns the legal numeric id range for the kind.
func (k Kind) Range() (min, max int) {
	switch k {
	case KindPreset, KindPlaylist:
		return 1, 250
	default:
		return 0, 255
	}
}

// Token is a user-supplied reference to a catalog entry: either a raw
// numeric id or a free-text name. It is parsed once at the API boundary
// and never re-inspected downstream.
type Token struct {
	numeric bool
	id      int
	name    string
}

// ParseToken classifies a raw string as numeric or named.
func ParseToken(raw string) Token {
	trimmed := strings.TrimSpace(raw)
	if id, err := strconv.Atoi(trimmed); err == nil {
		return Token{numeric: true, id: id}
	}
	return Token{name: trimmed}
}

// NumericToken wraps an already-numeric id.
func NumericToken(id int) Token {
	return Token{numeric: true, id: id}
}

// NamedToken wraps a name.
func NamedToken(name string) Token {
	return Token{name: strings.TrimSpace(name)}
}

// IsNumeric reports whether the token carries a raw id.
func (t Token) IsNumeric() bool { return t.numeric }

// String returns the token as the user supplied it.
func (t Token) String() string {
	if t.numeric {
		return strconv.Itoa(t.id)
	}
	return t.name
}

// OutOfRangeError reports a numeric token outside the kind's legal range.
type OutOfRangeError struct {
	Kind Kind
	ID   int
}

func (e *OutOfRangeError) Error() string {
	min, max := e.Kind.Range()
	return fmt.Sprintf("%s id %d out of range %d-%d", e.Kind, e.ID, min, max)
}

// NotFoundError reports a name with no catalog match. It carries the full
// catalog so callers can surface it as user guidance.
type NotFoundError struct {
	Kind    Kind
	Name    string
	Catalog []Entry
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
}

// Guidance returns the full catalog as a printable list.
func (e *NotFoundError) Guidance() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "known %ss:", e.Kind)
	for _, entry := range e.Catalog {
		fmt.Fprintf(&sb, " [%d] %s", entry.ID, entry.Name)
	}
	return sb.String()
}

// Resolve converts a token into a validated numeric id for the kind.
//
// Numeric tokens are range-checked and returned unchanged without consulting
// the catalog, so automations built against raw ids keep working regardless
// of catalog contents. Names are matched case-insensitively: exact first,
// then substring containment, first hit in catalog order. Substring ties go
// to catalog order deliberately ("Fire" against both "Fire 2012" and
// "Firefly" picks whichever the controller lists first).
func (c *Catalogs) Resolve(tok Token, kind Kind) (int, error) {
	min, max := kind.Range()

	if tok.IsNumeric() {
		if tok.id < min || tok.id > max {
			return 0, &OutOfRangeError{Kind: kind, ID: tok.id}
		}
		return tok.id, nil
	}

	entries := c.Entries(kind)
	want := strings.ToLower(tok.name)

	// An empty name would substring-match everything (and exact-match
	// unnamed slots); it can never identify an entry.
	if want == "" {
		return 0, &NotFoundError{Kind: kind, Name: tok.name, Catalog: entries}
	}

	for _, entry := range entries {
		if strings.ToLower(entry.Name) == want {
			return entry.ID, nil
		}
	}
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Name), want) {
			return entry.ID, nil
		}
	}

	return 0, &NotFoundError{Kind: kind, Name: tok.name, Catalog: entries}
}
