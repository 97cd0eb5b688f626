package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateClassifiesPQErrors(t *testing.T) {
	cases := []struct {
		code       pq.ErrorCode
		constraint string
		kind       ConstraintKind
		field      string
	}{
		{"23505", "org_unit_relations_key_unique", ConstraintUnique, "key"},
		{"23503", "org_unit_relations_parent_id_fkey", ConstraintForeignKey, "parent_id"},
		{"23503", "org_unit_relations_child_id_fkey", ConstraintForeignKey, "child_id"},
		{"23514", "org_unit_relations_not_self", ConstraintCheck, "child_id"},
		{"23P01", "some_exclusion", ConstraintExclusion, ""},
	}
	for _, tc := range cases {
		err := translate("op", &pq.Error{Code: tc.code, Constraint: tc.constraint})
		var ce *ConstraintError
		require.True(t, errors.As(err, &ce), tc.constraint)
		assert.Equal(t, tc.kind, ce.Kind)
		assert.Equal(t, tc.field, ce.Field)
		assert.Equal(t, tc.constraint, ce.Constraint)
	}
}

func TestTranslateNotFoundAndPassthrough(t *testing.T) {
	assert.ErrorIs(t, translate("get", sql.ErrNoRows), ErrNotFound)
	assert.Nil(t, translate("get", nil))

	err := translate("get", errors.New("connection reset"))
	assert.EqualError(t, err, "get: connection reset")
	_, ok := AsConstraint(err, ConstraintUnique)
	assert.False(t, ok)

	err = translate("get", &pq.Error{Code: "40001"})
	_, ok = AsConstraint(err, ConstraintUnique)
	assert.False(t, ok)
}

func TestFilterBuilderNumbersArguments(t *testing.T) {
	var b filterBuilder
	b.add("(note ILIKE ? OR relation_type ILIKE ?)", "%x%")
	b.add("parent_id = ?", 3)
	assert.Equal(t, " WHERE (note ILIKE $1 OR relation_type ILIKE $1) AND parent_id = $2", b.where())
	assert.Len(t, b.args, 2)
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%it%", containsPattern("it"))
	assert.Equal(t, `%\_%`, containsPattern("_"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}
