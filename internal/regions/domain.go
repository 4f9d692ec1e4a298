package regions

import (
	"fmt"
	"time"

	"github.com/sevatrack/sevatrack/internal/authz"
)

// Region is one node in the geographic hierarchy. IDs are stable
// slugs ("kerala/ernakulam/kochi-west") so scope entries stay readable
// in assignment rows and audit logs.
type Region struct {
	ID        string      `json:"id"`
	ParentID  *string     `json:"parent_id,omitempty"`
	Name      string      `json:"name"`
	Level     authz.Level `json:"level"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ParseLevel converts a query-string value into a hierarchy level.
func ParseLevel(raw string) (authz.Level, error) {
	switch authz.Level(raw) {
	case authz.LevelState, authz.LevelDistrict, authz.LevelArea, authz.LevelUnit:
		return authz.Level(raw), nil
	}
	return "", fmt.Errorf("regions: unknown level %q", raw)
}
