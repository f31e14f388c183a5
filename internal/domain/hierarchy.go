package domain

import "strings"

// HierarchyNode is one entity in the evaluation hierarchy.
// Corresponds to hierarchy_nodes table in PostgreSQL.
type HierarchyNode struct {
	ID        string   // node identifier
	ParentID  string   // "" for a root
	SeriesIDs []string // member series; only leaf nodes carry series
}

// EntitySeparator splits composite entity ids ("site_id::item_id").
const EntitySeparator = "::"

// SplitEntityID splits "site::item" into ("site", "item").
// Returns ok=false when the id has no separator.
func SplitEntityID(entityID string) (site, item string, ok bool) {
	site, item, ok = strings.Cut(entityID, EntitySeparator)
	if !ok || site == "" || item == "" {
		return "", "", false
	}
	return site, item, true
}
