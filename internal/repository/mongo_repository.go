package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cartDocument struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	UserID     string               `bson:"user_id"`
	Items      []cartItemDocument   `bson:"items"`
	TotalItems int                  `bson:"total_items"`
	TotalPrice primitive.Decimal128 `bson:"total_price"`
	Version    int64                `bson:"version"`
	CreatedAt  time.Time            `bson:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at"`
}

type cartItemDocument struct {
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDocument

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

func (m mongoRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	now := time.Now().UTC()

	// user_id is taken from the equality filter on insert
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"items":       bson.A{},
			"total_items": 0,
			"total_price": decimal128Zero,
			"version":     int64(0),
			"created_at":  now,
			"updated_at":  now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc cartDocument
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		// two first requests raced on the unique user_id index; the other insert won
		if mongo.IsDuplicateKeyError(err) {
			return m.GetCart(ctx, userID)
		}
		return nil, fmt.Errorf("failed to get or create cart: %w", err)
	}

	return doc.toDomain()
}

func (m mongoRepository) Save(ctx context.Context, cart *domain.Cart) error {
	id, err := primitive.ObjectIDFromHex(cart.ID)
	if err != nil {
		return fmt.Errorf("invalid cart id %q: %w", cart.ID, err)
	}
	totalPrice, err := toDecimal128(cart.TotalPrice)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	filter := bson.M{"_id": id, "version": cart.Version}
	update := bson.M{
		"$set": bson.M{
			"items":       toItemDocuments(cart.Items),
			"total_items": cart.TotalItems,
			"total_price": totalPrice,
			"updated_at":  now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}

func (m mongoRepository) ListCarts(ctx context.Context, page, limit int) ([]*domain.Cart, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []cartDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode carts: %w", err)
	}

	total, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count carts: %w", err)
	}

	carts := make([]*domain.Cart, 0, len(docs))
	for _, doc := range docs {
		cart, err := doc.toDomain()
		if err != nil {
			return nil, 0, err
		}
		carts = append(carts, cart)
	}

	return carts, total, nil
}

var decimal128Zero, _ = primitive.ParseDecimal128("0")

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid total price %s: %w", d, err)
	}
	return v, nil
}

func toItemDocuments(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return docs
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	totalPrice, err := decimal.NewFromString(d.TotalPrice.String())
	if err != nil {
		return nil, fmt.Errorf("invalid stored total price for cart %s: %w", d.ID.Hex(), err)
	}

	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}

	return &domain.Cart{
		ID:         d.ID.Hex(),
		UserID:     d.UserID,
		Items:      items,
		TotalItems: d.TotalItems,
		TotalPrice: totalPrice,
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}
