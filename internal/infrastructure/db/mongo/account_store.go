package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

const collectionUsers = "users"

// AccountStore is the MongoDB CredentialStore. Deactivated accounts are
// invisible to every lookup; documents without an active field count as
// active.
type AccountStore struct {
	col *mongo.Collection
}

var _ ports.CredentialStore = (*AccountStore)(nil)

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{col: db.Collection(collectionUsers)}
}

type mongoAccount struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Username          string             `bson:"username"`
	Email             string             `bson:"email"`
	PasswordHash      string             `bson:"password_hash,omitempty"`
	Role              string             `bson:"role"`
	PasswordChangedAt *time.Time         `bson:"password_changed_at,omitempty"`
	ResetTokenHash    string             `bson:"password_reset_token,omitempty"`
	ResetExpiresAt    *time.Time         `bson:"password_reset_expires,omitempty"`
	Active            *bool              `bson:"active,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
}

func (m *mongoAccount) toDomain() *domain.Account {
	acc := &domain.Account{
		ID:             m.ID.Hex(),
		Username:       m.Username,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		Role:           domain.Role(m.Role),
		ResetTokenHash: m.ResetTokenHash,
		Active:         m.Active == nil || *m.Active,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.PasswordChangedAt != nil {
		acc.PasswordChangedAt = m.PasswordChangedAt.UTC()
	}
	if m.ResetExpiresAt != nil {
		acc.ResetExpiresAt = m.ResetExpiresAt.UTC()
	}
	return acc
}

func fromDomain(acc *domain.Account) mongoAccount {
	active := acc.Active
	doc := mongoAccount{
		Username:       acc.Username,
		Email:          acc.Email,
		PasswordHash:   acc.PasswordHash,
		Role:           string(acc.Role),
		ResetTokenHash: acc.ResetTokenHash,
		Active:         &active,
		CreatedAt:      acc.CreatedAt,
	}
	if !acc.PasswordChangedAt.IsZero() {
		t := acc.PasswordChangedAt
		doc.PasswordChangedAt = &t
	}
	if !acc.ResetExpiresAt.IsZero() {
		t := acc.ResetExpiresAt
		doc.ResetExpiresAt = &t
	}
	return doc
}

// activeFilter adds the soft-delete guard to filter.
func activeFilter(filter bson.M) bson.M {
	filter["active"] = bson.M{"$ne": false}
	return filter
}

var withoutSecret = bson.M{"password_hash": 0}

func (r *AccountStore) FindActiveByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, false)
}

func (r *AccountStore) FindActiveByIDWithSecret(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, true)
}

func (r *AccountStore) FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email}, false)
}

func (r *AccountStore) FindActiveByEmailWithSecret(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email}, true)
}

// FindActiveByResetToken matches a stored reset hash that expires after now.
func (r *AccountStore) FindActiveByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.Account, error) {
	if tokenHash == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": now},
	}, false)
}

func (r *AccountStore) findOne(ctx context.Context, filter bson.M, withSecret bool) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne()
	if !withSecret {
		opts.SetProjection(withoutSecret)
	}

	var doc mongoAccount
	if err := r.col.FindOne(ctx, activeFilter(filter), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, oops.In("account_store").Wrapf(err, "find account")
	}
	return doc.toDomain(), nil
}

// Create inserts account and returns it with its assigned ID. Email and
// username collisions surface as domain.ErrAccountExists.
func (r *AccountStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := fromDomain(account)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, oops.In("account_store").Wrapf(err, "insert account")
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, oops.In("account_store").Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid
	doc.PasswordHash = ""
	return doc.toDomain(), nil
}

// UpdateByID applies update to an active account and returns the result
// without its password hash.
func (r *AccountStore) UpdateByID(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	acc, err := r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, err
}

// ConsumeResetToken applies update only if tokenHash is still pending and
// unexpired at now. Matching and writing happen in one operation, so a
// token can be consumed at most once.
func (r *AccountStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, update domain.AccountUpdate) (*domain.Account, error) {
	if tokenHash == "" {
		return nil, domain.ErrResetTokenInvalid
	}
	acc, err := r.findOneAndUpdate(ctx, bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": now},
	}, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrResetTokenInvalid
	}
	return acc, err
}

// ClearResetToken unsets the reset fields of id if tokenHash is still the
// pending one.
func (r *AccountStore) ClearResetToken(ctx context.Context, id, tokenHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil || tokenHash == "" {
		return nil
	}
	_, err = r.findOneAndUpdate(ctx, bson.M{
		"_id":                  oid,
		"password_reset_token": tokenHash,
	}, domain.AccountUpdate{ClearReset: true})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func (r *AccountStore) findOneAndUpdate(ctx context.Context, filter bson.M, update domain.AccountUpdate) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutSecret)

	var doc mongoAccount
	err := r.col.FindOneAndUpdate(ctx, activeFilter(filter), updateDocument(update), opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, err
	case mongo.IsDuplicateKeyError(err):
		return nil, domain.ErrAccountExists
	case err != nil:
		return nil, oops.In("account_store").Wrapf(err, "update account")
	}
	return doc.toDomain(), nil
}

func updateDocument(u domain.AccountUpdate) bson.M {
	set := bson.M{}
	unset := bson.M{}

	if u.Username != nil {
		set["username"] = *u.Username
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.PasswordHash != nil {
		set["password_hash"] = *u.PasswordHash
	}
	if u.PasswordChangedAt != nil {
		set["password_changed_at"] = *u.PasswordChangedAt
	}
	if u.Active != nil {
		set["active"] = *u.Active
	}
	if u.SetReset != nil {
		set["password_reset_token"] = u.SetReset.Hash
		set["password_reset_expires"] = u.SetReset.ExpiresAt
	}
	if u.ClearReset {
		unset["password_reset_token"] = ""
		unset["password_reset_expires"] = ""
	}

	doc := bson.M{}
	if len(set) > 0 {
		doc["$set"] = set
	}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	return doc
}

// List returns one page of active accounts ordered by creation, plus the
// total number of matches.
func (r *AccountStore) List(ctx context.Context, filter ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}
	query = activeFilter(query)

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, oops.In("account_store").Wrapf(err, "count accounts")
	}

	opts := options.Find().
		SetProjection(withoutSecret).
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, oops.In("account_store").Wrapf(err, "list accounts")
	}
	defer cur.Close(ctx)

	var docs []mongoAccount
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, oops.In("account_store").Wrapf(err, "decode accounts")
	}

	items := make([]*domain.Account, 0, len(docs))
	for i := range docs {
		items = append(items, docs[i].toDomain())
	}
	return items, total, nil
}

// EnsureIndexes creates the unique identity indexes and the reset lookup
// index on the users collection.
func (r *AccountStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "password_reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
