package app

import "go.mongodb.org/mongo-driver/bson/primitive"

// Read views resolve the id references of a document into the documents they
// point at. The outer fields shadow the embedded id fields of the same JSON
// name. A dangling reference keeps its id and an empty username or name.

// UserSummary is the public face of a user inside another document.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
}

type CommentView struct {
	Comment
	Author UserSummary `json:"author"`
}

type ItemView struct {
	Item
	Owner          UserSummary   `json:"owner"`
	CollectionName string        `json:"collectionName"`
	Comments       []CommentView `json:"comments"`
}

// CollectionView carries the collection's items in the stored order.
type CollectionView struct {
	Collection
	Owner UserSummary `json:"owner"`
	Items []Item      `json:"items"`
}

type UserView struct {
	User
	Collections []CollectionView `json:"collections"`
}
