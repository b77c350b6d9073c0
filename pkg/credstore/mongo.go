package credstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// DefaultMongoCollection is the collection used by NewMongoStoreFromDatabase.
const DefaultMongoCollection = "two_factor_credentials"

// MongoStore keeps one document per account, keyed by _id.
type MongoStore struct {
	coll *mongo.Collection
}

type mongoRecord struct {
	AccountID        string    `bson:"_id"`
	Enabled          bool      `bson:"enabled"`
	Secret           string    `bson:"secret"`
	BackupCodeHashes []string  `bson:"backup_code_hashes"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

// NewMongoStore creates a store on coll.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// NewMongoStoreFromDatabase uses DefaultMongoCollection in db.
func NewMongoStoreFromDatabase(db *mongo.Database) *MongoStore {
	return NewMongoStore(db.Collection(DefaultMongoCollection))
}

func (s *MongoStore) Get(ctx context.Context, accountID string) (*twofactor.Record, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	var doc mongoRecord
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: accountID}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return &twofactor.Record{
		Enabled:          doc.Enabled,
		Secret:           doc.Secret,
		BackupCodeHashes: doc.BackupCodeHashes,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Put(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	doc := mongoRecord{
		AccountID:        accountID,
		Enabled:          rec.Enabled,
		Secret:           rec.Secret,
		BackupCodeHashes: nonNil(rec.BackupCodeHashes),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: accountID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

// Create upserts only over a disabled or missing document. When an enabled
// document exists the filter misses and the upsert collides on _id.
func (s *MongoStore) Create(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	doc := mongoRecord{
		AccountID:        accountID,
		Enabled:          rec.Enabled,
		Secret:           rec.Secret,
		BackupCodeHashes: nonNil(rec.BackupCodeHashes),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	filter := bson.D{
		{Key: "_id", Value: accountID},
		{Key: "enabled", Value: bson.D{{Key: "$ne", Value: true}}},
	}
	_, err := s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyEnabled
		}
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

func (s *MongoStore) Clear(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: accountID}}); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

// SwapBackupCodes filters on the whole expected array, which MongoDB compares
// element by element and in order.
func (s *MongoStore) SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error) {
	if accountID == "" {
		return false, ErrMissingAccountID
	}
	filter := bson.D{
		{Key: "_id", Value: accountID},
		{Key: "enabled", Value: true},
		{Key: "backup_code_hashes", Value: nonNil(expected)},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "backup_code_hashes", Value: nonNil(next)},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}
	return res.MatchedCount == 1, nil
}
