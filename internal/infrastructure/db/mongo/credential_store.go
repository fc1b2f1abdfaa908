package mongo

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	usersCollection     = "users"
	rolesCollection     = "roles"
	userRolesCollection = "user_roles"
)

// CredentialStore persists users across the users, roles and user_roles
// collections. Inserts run in a transaction, so the server must be a replica
// set member.
type CredentialStore struct {
	client    *mongo.Client
	users     *mongo.Collection
	roles     *mongo.Collection
	userRoles *mongo.Collection
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(db *mongo.Database) *CredentialStore {
	return &CredentialStore{
		client:    db.Client(),
		users:     db.Collection(usersCollection),
		roles:     db.Collection(rolesCollection),
		userRoles: db.Collection(userRolesCollection),
	}
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	Email        string    `bson:"email"`
	EmailKey     string    `bson:"email_key,omitempty"`
	Enabled      bool      `bson:"enabled"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
	Roles        []roleDoc `bson:"roles,omitempty"`
}

type roleDoc struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

type userRoleDoc struct {
	UserID    string    `bson:"user_id"`
	RoleID    int64     `bson:"role_id"`
	CreatedAt time.Time `bson:"created_at"`
}

func toUserDoc(u domain.User) userDoc {
	return userDoc{
		ID:           u.ID(),
		Username:     u.Username(),
		PasswordHash: u.PasswordHash().Encoded(),
		Email:        u.Email(),
		EmailKey:     strings.ToLower(u.Email()),
		Enabled:      u.Enabled(),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
}

func (d userDoc) toDomain() (domain.User, error) {
	hash, err := domain.RestorePasswordHash(d.PasswordHash)
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_CORRUPT").With("user_id", d.ID).Wrap(err)
	}
	roles := make([]domain.Role, 0, len(d.Roles))
	for _, r := range d.Roles {
		roles = append(roles, domain.Role{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt})
	}
	slices.SortFunc(roles, func(a, b domain.Role) int { return cmp.Compare(a.ID, b.ID) })

	u, err := domain.NewUser(domain.UserParams{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: hash,
		Email:        d.Email,
		Enabled:      d.Enabled,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		Roles:        roles,
	})
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_CORRUPT").With("user_id", d.ID).Wrap(err)
	}
	return u, nil
}

// FindByUsername resolves the role links with two $lookup stages so the user
// and its roles arrive in one round trip.
func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.M{
			"from":         userRolesCollection,
			"localField":   "_id",
			"foreignField": "user_id",
			"as":           "links",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         rolesCollection,
			"localField":   "links.role_id",
			"foreignField": "_id",
			"as":           "roles",
		}}},
		{{Key: "$project", Value: bson.M{"links": 0}}},
	}

	cur, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
		}
		return domain.User{}, domain.ErrUserNotFound
	}
	var doc userDoc
	if err := cur.Decode(&doc); err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	if len(doc.Roles) == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return doc.toDomain()
}

// Insert writes the user and its role links in one transaction.
func (s *CredentialStore) Insert(ctx context.Context, user domain.User) (domain.InsertResult, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INSERT_FAILED").With("operation", "start session").Wrap(err)
	}
	defer session.EndSession(ctx)

	links := make([]any, 0, len(user.Roles()))
	for _, r := range user.Roles() {
		links = append(links, userRoleDoc{UserID: user.ID(), RoleID: r.ID, CreatedAt: user.CreatedAt()})
	}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.users.InsertOne(sc, toUserDoc(user)); err != nil {
			return nil, err
		}
		if _, err := s.userRoles.InsertMany(sc, links); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.AlreadyExists{}, nil
		}
		return nil, oops.Code("CREDENTIAL_INSERT_FAILED").With("user_id", user.ID()).Wrap(err)
	}
	return domain.Inserted{}, nil
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, id string, hash domain.PasswordHash, at time.Time) error {
	res, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash.Encoded(),
		"updated_at":    at,
	}})
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique indexes the store relies on and seeds the
// role reference data.
func (s *CredentialStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "email_key", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"email_key": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return oops.Code("MONGO_INDEX_FAILED").With("collection", usersCollection).Wrap(err)
	}

	_, err = s.userRoles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "role_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return oops.Code("MONGO_INDEX_FAILED").With("collection", userRolesCollection).Wrap(err)
	}

	for _, r := range []domain.Role{
		{ID: 1, Name: domain.RoleRead},
		{ID: 2, Name: domain.RoleWrite},
		{ID: 3, Name: domain.RoleAdmin},
	} {
		_, err := s.roles.UpdateByID(ctx, r.ID,
			bson.M{"$setOnInsert": bson.M{"name": r.Name, "created_at": time.Now().UTC()}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return oops.Code("MONGO_SEED_FAILED").With("role", r.Name).Wrap(err)
		}
	}
	return nil
}
