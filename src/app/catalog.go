package app

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection groups items of one owner under a common topic.
type Collection struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Description  string               `bson:"description" json:"description"`
	Topic        string               `bson:"topic" json:"topic"`
	Image        string               `bson:"image" json:"image"`
	CustomFields []primitive.ObjectID `bson:"customFields" json:"customFields"`
	Owner        primitive.ObjectID   `bson:"owner" json:"owner"`
	Items        []primitive.ObjectID `bson:"items" json:"items"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type CollectionPatch struct {
	Name        *string
	Description *string
	Topic       *string
	Image       *string
}

// Comment is embedded in its item and removed by its own id.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Item struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	Topic       string               `bson:"topic" json:"topic"`
	Image       string               `bson:"image" json:"image"`
	Tags        []string             `bson:"tags" json:"tags"`
	Comments    []Comment            `bson:"comments" json:"comments"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Owner       primitive.ObjectID   `bson:"owner" json:"owner"`
	Collection  primitive.ObjectID   `bson:"collection" json:"collection"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type ItemPatch struct {
	Name        *string
	Description *string
	Topic       *string
	Image       *string
	Tags        *[]string
}

// CustomField describes an extra attribute that items of a collection carry.
type CustomField struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FieldNumber  int                `bson:"fieldNumber" json:"fieldNumber"`
	FieldName    string             `bson:"fieldName" json:"fieldName"`
	FieldType    string             `bson:"fieldType" json:"fieldType"`
	FieldChecked bool               `bson:"fieldChecked" json:"fieldChecked"`
	FieldDate    *time.Time         `bson:"fieldDate,omitempty" json:"fieldDate,omitempty"`
	Collection   primitive.ObjectID `bson:"collection" json:"collection"`
	Owner        primitive.ObjectID `bson:"owner" json:"owner"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type CustomFieldPatch struct {
	FieldNumber  *int
	FieldName    *string
	FieldType    *string
	FieldChecked *bool
	FieldDate    *time.Time
}
