package mongo

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const revokedTokensCollection = "revoked_tokens"

// RevocationStore keeps revoked tokens in revoked_tokens, unique on jti.
type RevocationStore struct {
	coll *mongo.Collection
}

var _ ports.RevocationStore = (*RevocationStore)(nil)

func NewRevocationStore(db *mongo.Database) *RevocationStore {
	return &RevocationStore{coll: db.Collection(revokedTokensCollection)}
}

type revokedTokenDoc struct {
	ID              string    `bson:"_id"`
	JTI             string    `bson:"jti"`
	RevokedAt       time.Time `bson:"revoked_at"`
	Reason          string    `bson:"reason"`
	RevokedByUserID string    `bson:"revoked_by_user_id,omitempty"`
	ExpiresAt       time.Time `bson:"expires_at"`
}

// Revoke records the token. A second record for the same jti is dropped.
func (s *RevocationStore) Revoke(ctx context.Context, token domain.RevokedToken) error {
	_, err := s.coll.InsertOne(ctx, revokedTokenDoc{
		ID:              token.ID,
		JTI:             token.JTI,
		RevokedAt:       token.RevokedAt,
		Reason:          string(token.Reason),
		RevokedByUserID: token.RevokedByUserID,
		ExpiresAt:       token.ExpiresAt,
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return oops.Code("REVOCATION_INSERT_FAILED").With("jti", token.JTI).Wrap(err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"jti": jti}, options.Count().SetLimit(1))
	if err != nil {
		return false, oops.Code("REVOCATION_LOOKUP_FAILED").With("jti", jti).Wrap(err)
	}
	return n > 0, nil
}

func (s *RevocationStore) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, oops.Code("REVOCATION_PRUNE_FAILED").With("before", before).Wrap(err)
	}
	return res.DeletedCount, nil
}

func (s *RevocationStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "jti", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	})
	if err != nil {
		return oops.Code("MONGO_INDEX_FAILED").With("collection", revokedTokensCollection).Wrap(err)
	}
	return nil
}
