package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AttributeStore persists the last published attribute values.
// Values are stored as JSON blobs keyed by attribute name with version tracking.
type AttributeStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewAttributeStore creates a new attribute store.
func NewAttributeStore(db *sql.DB) *AttributeStore {
	return &AttributeStore{db: db}
}

// Get retrieves the stored value for an attribute.
// Returns found=false if the attribute has never been published.
func (s *AttributeStore) Get(name string) (value any, unit string, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var valueStr string
	var unitCol sql.NullString
	err = s.db.QueryRow(`
		SELECT value, unit FROM attribute_state WHERE name = ?
	`, name).Scan(&valueStr, &unitCol)

	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}

	if err := json.Unmarshal([]byte(valueStr), &value); err != nil {
		return nil, "", false, fmt.Errorf("failed to unmarshal attribute %q: %w", name, err)
	}
	return value, unitCol.String, true, nil
}

// Set stores an attribute value, incrementing its version.
func (s *AttributeStore) Set(name string, value any, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute %q: %w", name, err)
	}

	now := time.Now().UTC().Unix()

	_, err = s.db.Exec(`
		INSERT INTO attribute_state (name, value, unit, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			version = version + 1,
			updated_at = excluded.updated_at
	`, name, string(data), unit, now)

	if err == nil {
		log.Debug().
			Str("name", name).
			Str("value", string(data)).
			Msg("Attribute stored")
	}

	return err
}

// All returns every stored attribute keyed by name.
func (s *AttributeStore) All() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, value FROM attribute_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var name, valueStr string
		if err := rows.Scan(&name, &valueStr); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(valueStr), &value); err != nil {
			continue
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Clear removes all stored attributes.
func (s *AttributeStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM attribute_state`)
	return err
}
