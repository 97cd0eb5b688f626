package models

import (
	"fmt"
	"strings"
	"time"
)

// RelationType classifies the link between two org units.
type RelationType string

const (
	RelationDirect   RelationType = "direct"
	RelationAdvisory RelationType = "advisory"
	RelationSupport  RelationType = "support"
	RelationCollab   RelationType = "collab"
)

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	switch t {
	case RelationDirect, RelationAdvisory, RelationSupport, RelationCollab:
		return true
	}
	return false
}

// OrgUnitRelation links a parent and child org unit over a validity window.
// EffectiveTo nil means open-ended.
type OrgUnitRelation struct {
	ID            ID              `db:"id" json:"id"`
	ParentID      ID              `db:"parent_id" json:"parent_id"`
	ChildID       ID              `db:"child_id" json:"child_id"`
	RelationType  RelationType    `db:"relation_type" json:"relation_type"`
	EffectiveFrom Date            `db:"effective_from" json:"effective_from"`
	EffectiveTo   *Date           `db:"effective_to" json:"effective_to"`
	Note          *string         `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	Parent        *OrgUnitSummary `db:"-" json:"parent,omitempty"`
	Child         *OrgUnitSummary `db:"-" json:"child,omitempty"`
}

// Key returns the natural key of the relation.
func (r OrgUnitRelation) Key() RelationKey {
	return RelationKey{ParentID: r.ParentID, ChildID: r.ChildID, RelationType: r.RelationType, EffectiveFrom: r.EffectiveFrom}
}

// RelationKey is the natural key (parent, child, type, effective_from).
type RelationKey struct {
	ParentID      ID
	ChildID       ID
	RelationType  RelationType
	EffectiveFrom Date
}

func (k RelationKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.ParentID, k.ChildID, k.RelationType, k.EffectiveFrom)
}

// ParseRelationKey parses "parent_id/child_id/relation_type/effective_from".
func ParseRelationKey(raw string) (RelationKey, error) {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) != 4 {
		return RelationKey{}, fmt.Errorf("relation key must have 4 segments, got %d", len(parts))
	}
	parentID, err := ParseID(parts[0])
	if err != nil {
		return RelationKey{}, fmt.Errorf("parent_id: %w", err)
	}
	childID, err := ParseID(parts[1])
	if err != nil {
		return RelationKey{}, fmt.Errorf("child_id: %w", err)
	}
	relType := RelationType(parts[2])
	if !relType.Valid() {
		return RelationKey{}, fmt.Errorf("unknown relation_type %q", parts[2])
	}
	from, err := ParseDate(parts[3])
	if err != nil {
		return RelationKey{}, fmt.Errorf("effective_from: %w", err)
	}
	return RelationKey{ParentID: parentID, ChildID: childID, RelationType: relType, EffectiveFrom: from}, nil
}

// RelationFilter captures list criteria.
type RelationFilter struct {
	Search       string
	ParentID     *ID
	ChildID      *ID
	RelationType RelationType
	ActiveOn     *Date
	PageQuery
}
