package account

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUserNotFound = errors.New("user not found")

const RoleAdmin = "admin"

type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStore reads users for request authentication. Accounts are managed
// elsewhere; this side never writes them.
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*User, error)
}

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Email     string             `bson:"email"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Role      string             `bson:"role"`
}

type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection("users")}
}

func (s *MongoUserStore) FindByID(ctx context.Context, userID string) (*User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// password is never read
	opts := options.FindOne().SetProjection(bson.M{"email": 1, "firstName": 1, "lastName": 1, "role": 1})

	var doc userDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &User{
		ID:        doc.ID.Hex(),
		Email:     doc.Email,
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Role:      doc.Role,
	}, nil
}
