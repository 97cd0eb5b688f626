package models

import (
	"encoding/json"
	"time"
)

// OrgUnitStatus is the lifecycle state of an org unit.
type OrgUnitStatus string

const (
	OrgUnitStatusActive   OrgUnitStatus = "ACTIVE"
	OrgUnitStatusInactive OrgUnitStatus = "INACTIVE"
	OrgUnitStatusDraft    OrgUnitStatus = "DRAFT"
	OrgUnitStatusRejected OrgUnitStatus = "REJECTED"
)

// OrgUnit is a department, faculty, division or similar administrative entity.
type OrgUnit struct {
	ID            ID            `db:"id" json:"id"`
	Code          string        `db:"code" json:"code"`
	Name          string        `db:"name" json:"name"`
	Type          string        `db:"type" json:"type"`
	Status        OrgUnitStatus `db:"status" json:"status"`
	Description   *string       `db:"description" json:"description,omitempty"`
	ParentID      *ID           `db:"parent_id" json:"parent_id,omitempty"`
	EffectiveFrom Date          `db:"effective_from" json:"effective_from"`
	EffectiveTo   *Date         `db:"effective_to" json:"effective_to"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// OrgUnitSummary is the compact form embedded in relations and assignments.
type OrgUnitSummary struct {
	ID   ID     `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// OrgUnitNode is an org unit with its nested children.
type OrgUnitNode struct {
	OrgUnit
	Children []*OrgUnitNode `json:"children"`
}

// OrgUnitFilter captures list criteria.
type OrgUnitFilter struct {
	Search   string
	Type     string
	Status   OrgUnitStatus
	ParentID *ID
	PageQuery
}

// OrgUnitHistoryEntry is one audit record for an org unit.
type OrgUnitHistoryEntry struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    *ID             `json:"user_id,omitempty"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// BuildOrgUnitTree nests units by parent id. Units whose parent is absent become
// roots, and so does the unit that would close a parent cycle.
func BuildOrgUnitTree(units []OrgUnit) []*OrgUnitNode {
	nodes := make(map[ID]*OrgUnitNode, len(units))
	for _, u := range units {
		nodes[u.ID] = &OrgUnitNode{OrgUnit: u, Children: []*OrgUnitNode{}}
	}
	attached := make(map[ID]ID, len(units))
	closesCycle := func(child, parent ID) bool {
		for cur, ok := parent, true; ok; cur, ok = attached[cur] {
			if cur == child {
				return true
			}
		}
		return false
	}

	roots := make([]*OrgUnitNode, 0)
	for _, u := range units {
		node := nodes[u.ID]
		if u.ParentID != nil && !closesCycle(u.ID, *u.ParentID) {
			if parent, ok := nodes[*u.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				attached[u.ID] = *u.ParentID
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
