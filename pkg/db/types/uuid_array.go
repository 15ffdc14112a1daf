// Package dbtypes holds column types shared by the GORM models.
package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. On SQLite the same array literal
// is stored as text, so both drivers round-trip through one format.
type UUIDArray []uuid.UUID

// Scan parses an array literal; quoting and NULL are handled by lib/pq's
// array parser.
func (a *UUIDArray) Scan(src any) error {
	if src == nil {
		*a = UUIDArray{}
		return nil
	}
	var raw pq.StringArray
	switch v := src.(type) {
	case string:
		if err := raw.Scan([]byte(v)); err != nil {
			return fmt.Errorf("uuid array: %w", err)
		}
	case []byte:
		if err := raw.Scan(v); err != nil {
			return fmt.Errorf("uuid array: %w", err)
		}
	default:
		return fmt.Errorf("uuid array: unsupported scan type %T", src)
	}

	out := make(UUIDArray, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("uuid array: element %q: %w", s, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

// Value renders {id,id}; UUIDs never need quoting.
func (a UUIDArray) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id.String())
	}
	b.WriteByte('}')
	return b.String(), nil
}
