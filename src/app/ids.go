package app

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDLength is the length of a hex encoded document id.
const IDLength = 24

// ParseID validates a path identifier before any lookup is made.
func ParseID(raw string) (primitive.ObjectID, error) {
	if len(raw) != IDLength {
		return primitive.NilObjectID, InvalidIdentifier("invalid id %q: expected %d characters", raw, IDLength)
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, InvalidIdentifier("invalid id %q", raw)
	}
	return id, nil
}

// ParseIDs validates a batch of identifiers, failing on the first bad one.
func ParseIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
