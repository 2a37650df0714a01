package mongo

import (
	"github.com/rbaliyan/mailindex/index"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// buildFilter narrows the candidate set for q to what every match must
// satisfy. The caller applies the full query to the result.
func buildFilter(q *index.Query) bson.M {
	filter := bson.M{}
	if id, ok := q.RequiredID(); ok {
		filter["_id"] = id
	}
	if tags := q.RequiredTags(); len(tags) > 0 {
		filter["tags"] = bson.M{"$all": tags}
	}
	return filter
}
