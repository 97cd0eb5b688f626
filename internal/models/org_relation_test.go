package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelationKey(t *testing.T) {
	key, err := ParseRelationKey("/1/2/direct/2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, ID(1), key.ParentID)
	assert.Equal(t, ID(2), key.ChildID)
	assert.Equal(t, RelationDirect, key.RelationType)
	assert.Equal(t, "2024-01-01", key.EffectiveFrom.String())
	assert.Equal(t, "1/2/direct/2024-01-01", key.String())
}

func TestParseRelationKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"1/2/direct",
		"x/2/direct/2024-01-01",
		"1/2/owner/2024-01-01",
		"1/2/direct/yesterday",
	}
	for _, raw := range cases {
		_, err := ParseRelationKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestBuildOrgUnitTree(t *testing.T) {
	root := ID(1)
	units := []OrgUnit{
		{ID: 1, Code: "UNI"},
		{ID: 2, Code: "FIT", ParentID: &root},
		{ID: 3, Code: "ORPHAN", ParentID: idPtr(99)},
	}
	tree := BuildOrgUnitTree(units)
	require.Len(t, tree, 2)
	assert.Equal(t, "UNI", tree[0].Code)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "FIT", tree[0].Children[0].Code)
	assert.Equal(t, "ORPHAN", tree[1].Code)
}

func TestBuildOrgUnitTreeKeepsCycleMembers(t *testing.T) {
	units := []OrgUnit{
		{ID: 1, Code: "A", ParentID: idPtr(2)},
		{ID: 2, Code: "B", ParentID: idPtr(1)},
		{ID: 3, Code: "C", ParentID: idPtr(1)},
		{ID: 4, Code: "SELF", ParentID: idPtr(4)},
	}
	tree := BuildOrgUnitTree(units)
	require.Len(t, tree, 2)
	assert.Equal(t, "B", tree[0].Code)
	require.Len(t, tree[0].Children, 1)
	a := tree[0].Children[0]
	assert.Equal(t, "A", a.Code)
	require.Len(t, a.Children, 1)
	assert.Equal(t, "C", a.Children[0].Code)
	assert.Equal(t, "SELF", tree[1].Code)
	assert.Empty(t, tree[1].Children)
}

func idPtr(v ID) *ID { return &v }
