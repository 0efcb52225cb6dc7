package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	app "catalogserv/src/app"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// InMemoryDB keeps every document in process memory. Transactions are
	// serialized with each other and roll back through an undo log.
	InMemoryDB struct {
		mu   sync.RWMutex
		txMu sync.Mutex

		users       map[primitive.ObjectID]app.User
		collections map[primitive.ObjectID]app.Collection
		items       map[primitive.ObjectID]app.Item
		fields      map[primitive.ObjectID]app.CustomField
	}

	memUsers       struct{ db *InMemoryDB }
	memCollections struct{ db *InMemoryDB }
	memItems       struct{ db *InMemoryDB }
	memFields      struct{ db *InMemoryDB }

	memTxKey struct{}

	memTx struct {
		undo []func()
	}
)

var _ Store = (*InMemoryDB)(nil)

func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		users:       make(map[primitive.ObjectID]app.User),
		collections: make(map[primitive.ObjectID]app.Collection),
		items:       make(map[primitive.ObjectID]app.Item),
		fields:      make(map[primitive.ObjectID]app.CustomField),
	}
}

func (db *InMemoryDB) Users() UserRepository               { return memUsers{db} }
func (db *InMemoryDB) Collections() CollectionRepository   { return memCollections{db} }
func (db *InMemoryDB) Items() ItemRepository               { return memItems{db} }
func (db *InMemoryDB) CustomFields() CustomFieldRepository { return memFields{db} }

func (db *InMemoryDB) EnsureIndexes(context.Context) error { return nil }
func (db *InMemoryDB) Close(context.Context) error         { return nil }

// WithTransaction runs fn with an undo log. On error only the documents fn
// wrote are put back, so writes committed meanwhile by other requests stay.
func (db *InMemoryDB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		db.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		db.mu.Unlock()
		return err
	}
	return nil
}

// track remembers values[id] as it is before a write inside a transaction.
// The caller holds db.mu.
func track[T any](ctx context.Context, values map[primitive.ObjectID]T, id primitive.ObjectID, clone func(T) T) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		return
	}
	prev, existed := values[id]
	if existed {
		prev = clone(prev)
	}
	tx.undo = append(tx.undo, func() {
		if existed {
			values[id] = prev
		} else {
			delete(values, id)
		}
	})
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	return append(make([]primitive.ObjectID, 0, len(ids)), ids...)
}

func cloneUser(u app.User) app.User {
	u.Collections = cloneIDs(u.Collections)
	return u
}

func cloneCollection(c app.Collection) app.Collection {
	c.Items = cloneIDs(c.Items)
	c.CustomFields = cloneIDs(c.CustomFields)
	return c
}

func cloneItem(i app.Item) app.Item {
	i.Tags = append(make([]string, 0, len(i.Tags)), i.Tags...)
	i.Comments = append(make([]app.Comment, 0, len(i.Comments)), i.Comments...)
	i.Likes = cloneIDs(i.Likes)
	return i
}

func cloneField(f app.CustomField) app.CustomField {
	if f.FieldDate != nil {
		d := *f.FieldDate
		f.FieldDate = &d
	}
	return f
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ObjectIDs start with their creation second and end with a counter, so hex
// order is insertion order.
func byID[T any](values map[primitive.ObjectID]T, keep func(T) bool, clone func(T) T) []T {
	keys := make([]primitive.ObjectID, 0, len(values))
	for k, v := range values {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hex() < keys[j].Hex() })
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, clone(values[k]))
	}
	return out
}

// inIDs keeps the values whose id is listed in ids.
func inIDs[T any](ids []primitive.ObjectID, id func(T) primitive.ObjectID) func(T) bool {
	set := make(map[primitive.ObjectID]bool, len(ids))
	for _, i := range ids {
		set[i] = true
	}
	return func(v T) bool { return set[id(v)] }
}

// matchesText mimics a $text search: any query term found in any field is a hit.
func matchesText(query string, fields ...string) bool {
	terms := strings.Fields(strings.ToLower(query))
	for _, f := range fields {
		f = strings.ToLower(f)
		for _, term := range terms {
			if strings.Contains(f, term) {
				return true
			}
		}
	}
	return false
}

// users

func (r memUsers) Create(ctx context.Context, user *app.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return app.Conflict("user with email %s already exists", user.Email)
		}
		if (user.GoogleID != "" && u.GoogleID == user.GoogleID) ||
			(user.GitHubID != "" && u.GitHubID == user.GitHubID) ||
			(user.FacebookID != "" && u.FacebookID == user.FacebookID) {
			return app.Conflict("provider account already linked")
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	ensureUserSlices(user)
	track(ctx, r.db.users, user.ID, cloneUser)
	r.db.users[user.ID] = cloneUser(*user)
	return nil
}

func (r memUsers) Get(ctx context.Context, id primitive.ObjectID) (*app.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, app.NotFound("user %s not found", id.Hex())
	}
	u = cloneUser(u)
	return &u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*app.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, app.NotFound("user with email %s not found", email)
}

func providerSubject(u app.User, provider app.Provider) string {
	switch provider {
	case app.ProviderGoogle:
		return u.GoogleID
	case app.ProviderGitHub:
		return u.GitHubID
	case app.ProviderFacebook:
		return u.FacebookID
	}
	return ""
}

func (r memUsers) FindByProvider(ctx context.Context, provider app.Provider, subject string) (*app.User, error) {
	if _, err := providerField(provider); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if subject != "" && providerSubject(u, provider) == subject {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, app.NotFound("no user linked to %s account", provider)
}

func (r memUsers) LinkProvider(ctx context.Context, id primitive.ObjectID, provider app.Provider, subject string) error {
	if _, err := providerField(provider); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return app.NotFound("user %s not found", id.Hex())
	}
	for otherID, other := range r.db.users {
		if otherID != id && providerSubject(other, provider) == subject {
			return app.Conflict("%s account already linked", provider)
		}
	}
	switch provider {
	case app.ProviderGoogle:
		u.GoogleID = subject
	case app.ProviderGitHub:
		u.GitHubID = subject
	case app.ProviderFacebook:
		u.FacebookID = subject
	}
	u.UpdatedAt = now()
	track(ctx, r.db.users, id, cloneUser)
	r.db.users[id] = u
	return nil
}

func (r memUsers) List(ctx context.Context) ([]app.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return byID(r.db.users, nil, cloneUser), nil
}

func (r memUsers) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return byID(r.db.users, inIDs(ids, func(u app.User) primitive.ObjectID { return u.ID }), cloneUser), nil
}

func applyUserPatch(u *app.User, patch app.UserPatch) {
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Status != nil {
		u.Status = *patch.Status
	}
}

func (r memUsers) Update(ctx context.Context, id primitive.ObjectID, patch app.UserPatch) (*app.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, app.NotFound("user %s not found", id.Hex())
	}
	if patch.Email != nil {
		for otherID, other := range r.db.users {
			if otherID != id && strings.EqualFold(other.Email, *patch.Email) {
				return nil, app.Conflict("user with email %s already exists", *patch.Email)
			}
		}
	}
	applyUserPatch(&u, patch)
	u.UpdatedAt = now()
	track(ctx, r.db.users, id, cloneUser)
	r.db.users[id] = u
	u = cloneUser(u)
	return &u, nil
}

func (r memUsers) UpdateMany(ctx context.Context, ids []primitive.ObjectID, patch app.UserPatch) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var matched int64
	for _, id := range ids {
		u, ok := r.db.users[id]
		if !ok {
			continue
		}
		applyUserPatch(&u, patch)
		u.UpdatedAt = now()
		track(ctx, r.db.users, id, cloneUser)
		r.db.users[id] = u
		matched++
	}
	return matched, nil
}

func (r memUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return app.NotFound("user %s not found", id.Hex())
	}
	track(ctx, r.db.users, id, cloneUser)
	delete(r.db.users, id)
	return nil
}

func (r memUsers) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := r.db.users[id]; ok {
			track(ctx, r.db.users, id, cloneUser)
			delete(r.db.users, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r memUsers) PushCollection(ctx context.Context, id, collectionID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return app.NotFound("user %s not found", id.Hex())
	}
	u.Collections = append(cloneIDs(u.Collections), collectionID)
	track(ctx, r.db.users, id, cloneUser)
	r.db.users[id] = u
	return nil
}

func (r memUsers) PullCollection(ctx context.Context, id, collectionID primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return app.NotFound("user %s not found", id.Hex())
	}
	u.Collections = removeID(cloneIDs(u.Collections), collectionID)
	track(ctx, r.db.users, id, cloneUser)
	r.db.users[id] = u
	return nil
}

// collections

func (r memCollections) Create(ctx context.Context, collection *app.Collection) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if collection.ID.IsZero() {
		collection.ID = primitive.NewObjectID()
	}
	collection.CreatedAt = now()
	collection.UpdatedAt = collection.CreatedAt
	ensureCollectionSlices(collection)
	track(ctx, r.db.collections, collection.ID, cloneCollection)
	r.db.collections[collection.ID] = cloneCollection(*collection)
	return nil
}

func (r memCollections) Get(ctx context.Context, id primitive.ObjectID) (*app.Collection, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.collections[id]
	if !ok {
		return nil, app.NotFound("collection %s not found", id.Hex())
	}
	c = cloneCollection(c)
	return &c, nil
}

func (r memCollections) List(ctx context.Context, owner *primitive.ObjectID) ([]app.Collection, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var keep func(app.Collection) bool
	if owner != nil {
		keep = func(c app.Collection) bool { return c.Owner == *owner }
	}
	return byID(r.db.collections, keep, cloneCollection), nil
}

func (r memCollections) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Collection, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return byID(r.db.collections, inIDs(ids, func(c app.Collection) primitive.ObjectID { return c.ID }), cloneCollection), nil
}

func (r memCollections) Update(ctx context.Context, id primitive.ObjectID, patch app.CollectionPatch) (*app.Collection, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.collections[id]
	if !ok {
		return nil, app.NotFound("collection %s not found", id.Hex())
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Topic != nil {
		c.Topic = *patch.Topic
	}
	if patch.Image != nil {
		c.Image = *patch.Image
	}
	c.UpdatedAt = now()
	track(ctx, r.db.collections, id, cloneCollection)
	r.db.collections[id] = c
	c = cloneCollection(c)
	return &c, nil
}

func (r memCollections) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.collections[id]; !ok {
		return app.NotFound("collection %s not found", id.Hex())
	}
	track(ctx, r.db.collections, id, cloneCollection)
	delete(r.db.collections, id)
	return nil
}

func (r memCollections) modify(ctx context.Context, id primitive.ObjectID, fn func(c *app.Collection)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.collections[id]
	if !ok {
		return app.NotFound("collection %s not found", id.Hex())
	}
	c = cloneCollection(c)
	fn(&c)
	c.UpdatedAt = now()
	track(ctx, r.db.collections, id, cloneCollection)
	r.db.collections[id] = c
	return nil
}

func (r memCollections) PushItem(ctx context.Context, id, itemID primitive.ObjectID) error {
	return r.modify(ctx, id, func(c *app.Collection) { c.Items = append(c.Items, itemID) })
}

func (r memCollections) PullItem(ctx context.Context, id, itemID primitive.ObjectID) error {
	return r.modify(ctx, id, func(c *app.Collection) { c.Items = removeID(c.Items, itemID) })
}

func (r memCollections) PushCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error {
	return r.modify(ctx, id, func(c *app.Collection) { c.CustomFields = append(c.CustomFields, fieldID) })
}

func (r memCollections) PullCustomField(ctx context.Context, id, fieldID primitive.ObjectID) error {
	return r.modify(ctx, id, func(c *app.Collection) { c.CustomFields = removeID(c.CustomFields, fieldID) })
}

func (r memCollections) Search(ctx context.Context, query string) ([]app.Collection, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return byID(r.db.collections, func(c app.Collection) bool {
		return matchesText(query, c.Name, c.Description, c.Topic)
	}, cloneCollection), nil
}

// items

func (r memItems) Create(ctx context.Context, item *app.Item) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	ensureItemSlices(item)
	track(ctx, r.db.items, item.ID, cloneItem)
	r.db.items[item.ID] = cloneItem(*item)
	return nil
}

func (r memItems) Get(ctx context.Context, id primitive.ObjectID) (*app.Item, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	i, ok := r.db.items[id]
	if !ok {
		return nil, app.NotFound("item %s not found", id.Hex())
	}
	i = cloneItem(i)
	return &i, nil
}

func (r memItems) List(ctx context.Context, owner *primitive.ObjectID) ([]app.Item, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var keep func(app.Item) bool
	if owner != nil {
		keep = func(i app.Item) bool { return i.Owner == *owner }
	}
	return byID(r.db.items, keep, cloneItem), nil
}

func (r memItems) FindMany(ctx context.Context, ids []primitive.ObjectID) ([]app.Item, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return byID(r.db.items, inIDs(ids, func(i app.Item) primitive.ObjectID { return i.ID }), cloneItem), nil
}

func (r memItems) modify(ctx context.Context, id primitive.ObjectID, fn func(i *app.Item) error) (*app.Item, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	i, ok := r.db.items[id]
	if !ok {
		return nil, app.NotFound("item %s not found", id.Hex())
	}
	i = cloneItem(i)
	if err := fn(&i); err != nil {
		return nil, err
	}
	i.UpdatedAt = now()
	track(ctx, r.db.items, id, cloneItem)
	r.db.items[id] = i
	i = cloneItem(i)
	return &i, nil
}

func (r memItems) Update(ctx context.Context, id primitive.ObjectID, patch app.ItemPatch) (*app.Item, error) {
	return r.modify(ctx, id, func(i *app.Item) error {
		if patch.Name != nil {
			i.Name = *patch.Name
		}
		if patch.Description != nil {
			i.Description = *patch.Description
		}
		if patch.Topic != nil {
			i.Topic = *patch.Topic
		}
		if patch.Image != nil {
			i.Image = *patch.Image
		}
		if patch.Tags != nil {
			i.Tags = append([]string{}, (*patch.Tags)...)
		}
		return nil
	})
}

func (r memItems) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.items[id]; !ok {
		return app.NotFound("item %s not found", id.Hex())
	}
	track(ctx, r.db.items, id, cloneItem)
	delete(r.db.items, id)
	return nil
}

func (r memItems) AddLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error) {
	return r.modify(ctx, id, func(i *app.Item) error {
		i.Likes = addID(i.Likes, userID)
		return nil
	})
}

func (r memItems) RemoveLike(ctx context.Context, id, userID primitive.ObjectID) (*app.Item, error) {
	return r.modify(ctx, id, func(i *app.Item) error {
		i.Likes = removeID(i.Likes, userID)
		return nil
	})
}

func (r memItems) AddComment(ctx context.Context, id primitive.ObjectID, comment app.Comment) (*app.Item, error) {
	return r.modify(ctx, id, func(i *app.Item) error {
		i.Comments = append(i.Comments, comment)
		return nil
	})
}

func (r memItems) RemoveComment(ctx context.Context, id, commentID primitive.ObjectID) error {
	_, err := r.modify(ctx, id, func(i *app.Item) error {
		out := i.Comments[:0]
		for _, c := range i.Comments {
			if c.ID != commentID {
				out = append(out, c)
			}
		}
		if len(out) == len(i.Comments) {
			return app.NotFound("comment %s not found", commentID.Hex())
		}
		i.Comments = out
		return nil
	})
	return err
}

func (r memItems) Search(ctx context.Context, query string) ([]app.Item, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return byID(r.db.items, func(i app.Item) bool {
		return matchesText(query, append([]string{i.Name, i.Description, i.Topic}, i.Tags...)...)
	}, cloneItem), nil
}

// custom fields

func (r memFields) Create(ctx context.Context, field *app.CustomField) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if field.ID.IsZero() {
		field.ID = primitive.NewObjectID()
	}
	field.CreatedAt = now()
	field.UpdatedAt = field.CreatedAt
	track(ctx, r.db.fields, field.ID, cloneField)
	r.db.fields[field.ID] = cloneField(*field)
	return nil
}

func (r memFields) Get(ctx context.Context, id primitive.ObjectID) (*app.CustomField, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	f, ok := r.db.fields[id]
	if !ok {
		return nil, app.NotFound("custom field %s not found", id.Hex())
	}
	f = cloneField(f)
	return &f, nil
}

func (r memFields) List(ctx context.Context, owner *primitive.ObjectID) ([]app.CustomField, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var keep func(app.CustomField) bool
	if owner != nil {
		keep = func(f app.CustomField) bool { return f.Owner == *owner }
	}
	return byID(r.db.fields, keep, cloneField), nil
}

func (r memFields) Update(ctx context.Context, id primitive.ObjectID, patch app.CustomFieldPatch) (*app.CustomField, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	f, ok := r.db.fields[id]
	if !ok {
		return nil, app.NotFound("custom field %s not found", id.Hex())
	}
	if patch.FieldNumber != nil {
		f.FieldNumber = *patch.FieldNumber
	}
	if patch.FieldName != nil {
		f.FieldName = *patch.FieldName
	}
	if patch.FieldType != nil {
		f.FieldType = *patch.FieldType
	}
	if patch.FieldChecked != nil {
		f.FieldChecked = *patch.FieldChecked
	}
	if patch.FieldDate != nil {
		d := *patch.FieldDate
		f.FieldDate = &d
	}
	f.UpdatedAt = now()
	track(ctx, r.db.fields, id, cloneField)
	r.db.fields[id] = f
	f = cloneField(f)
	return &f, nil
}

func (r memFields) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.fields[id]; !ok {
		return app.NotFound("custom field %s not found", id.Hex())
	}
	track(ctx, r.db.fields, id, cloneField)
	delete(r.db.fields, id)
	return nil
}
