package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkadiri/kazi/core/user"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"full_name"`
	Role         string             `bson:"role"`
	StudentID    string             `bson:"student_id,omitempty"`
	PasswordHash []byte             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) *userRepository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

func (repo userRepository) doc(usr user.User) (userDoc, error) {
	d := userDoc{
		Username:     usr.Username,
		Email:        usr.Email,
		FullName:     usr.FullName,
		Role:         usr.Role,
		StudentID:    usr.StudentID,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if usr.ID != "" {
		oid, err := userOID(usr.ID)
		if err != nil {
			return userDoc{}, err
		}
		d.ID = oid
	}
	return d, nil
}

func (repo userRepository) undoc(d userDoc) user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Role:         d.Role,
		StudentID:    d.StudentID,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// userOID maps a malformed hex id to user.ErrInvalidID (normalized to a
// 400 before ever reaching the store).
func userOID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, user.ErrInvalidID
	}
	return oid, nil
}

// trapDuplicateErr maps a unique index violation to the matching domain error.
func (repo userRepository) trapDuplicateErr(err error, msg string) error {
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "email") {
			return user.ErrEmailExists
		}
		return user.ErrUsernameExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excluded ...user.User) error {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	if len(excluded) > 0 {
		ids := make([]primitive.ObjectID, 0, len(excluded))
		for _, u := range excluded {
			if oid, err := userOID(u.ID); err == nil {
				ids = append(ids, oid)
			}
		}
		filter["_id"] = bson.M{"$nin": ids}
	}

	var d userDoc
	err := repo.coll.FindOne(ctx, filter).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if d.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CountUsers(ctx context.Context) (int64, error) {
	count, err := repo.coll.CountDocuments(ctx, bson.M{})
	return count, errors.Wrap(err, "counting users")
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	d, err := repo.doc(usr)
	if err != nil {
		return user.User{}, err
	}
	d.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, d); err != nil {
		return user.User{}, repo.trapDuplicateErr(err, "inserting user")
	}
	return repo.undoc(d), nil
}

func (repo userRepository) query(ctx context.Context, filter bson.M) ([]user.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	users := make([]user.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, repo.undoc(d))
	}
	return users, nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	return repo.query(ctx, bson.M{})
}

func (repo userRepository) QueryUsersByRole(ctx context.Context, role string) ([]user.User, error) {
	return repo.query(ctx, bson.M{"role": role})
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, err := userOID(id)
	if err != nil {
		return user.User{}, err
	}
	var d userDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return repo.undoc(d), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": uname},
		bson.M{"email": uname},
	}}
	var d userDoc
	if err := repo.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	return repo.undoc(d), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	d, err := repo.doc(usr)
	if err != nil {
		return user.User{}, err
	}
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return user.User{}, repo.trapDuplicateErr(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.undoc(d), nil
}

func (repo userRepository) DeleteUserByID(ctx context.Context, id string) error {
	oid, err := userOID(id)
	if err != nil {
		return err
	}
	res, err := repo.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if res.DeletedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}
