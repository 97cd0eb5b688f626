package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

// filterBuilder accumulates WHERE conditions with positional arguments.
// Each "?" in an expression is bound to the same argument.
type filterBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *filterBuilder) add(expr string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, strings.ReplaceAll(expr, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *filterBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// orderBy resolves a caller-supplied sort key against an allow list of columns.
func orderBy(q models.PageQuery, allowed map[string]string, fallback string) string {
	column, ok := allowed[q.Sort]
	if !ok {
		column = allowed[fallback]
	}
	order := "ASC"
	if strings.EqualFold(q.Order, "desc") {
		order = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, order)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches term literally anywhere in an ILIKE operand.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func limitOffset(q models.PageQuery) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", q.Size, q.Offset())
}
