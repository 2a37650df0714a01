package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rbaliyan/mailindex/index"
)

// buildWhereClause narrows the candidate set for q. It only emits
// conditions every match must satisfy.
func buildWhereClause(q *index.Query) (string, []any) {
	var conditions []string
	var args []any

	if id, ok := q.RequiredID(); ok {
		args = append(args, id)
		conditions = append(conditions, "id = $1")
	}
	if tags := q.RequiredTags(); len(tags) > 0 {
		args = append(args, pq.Array(tags))
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), args
}
