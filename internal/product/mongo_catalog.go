package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// productDocument mirrors the fields of the shared products collection that the
// cart reads. The collection is owned by the catalog, so field names follow it.
type productDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	Name          string             `bson:"name"`
	Slug          string             `bson:"slug"`
	Price         float64            `bson:"price"`
	StockQuantity int                `bson:"stockQuantity"`
	Images        []imageDocument    `bson:"images"`
}

type imageDocument struct {
	URL       string `bson:"url"`
	Alt       string `bson:"alt"`
	IsPrimary bool   `bson:"isPrimary"`
}

var projection = bson.M{
	"name":          1,
	"slug":          1,
	"price":         1,
	"stockQuantity": 1,
	"images":        1,
}

type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{collection: db.Collection("products")}
}

func (c *MongoCatalog) Fetch(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	id, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, ErrProductNotFound
	}

	var doc productDocument
	err = c.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(projection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}

	snapshot := doc.toSnapshot()
	return &snapshot, nil
}

func (c *MongoCatalog) FetchMany(ctx context.Context, productIDs []string) (domain.ProductIndex, error) {
	index := domain.ProductIndex{}

	ids := make([]primitive.ObjectID, 0, len(productIDs))
	for _, productID := range productIDs {
		// malformed ids cannot match any product
		if id, err := primitive.ObjectIDFromHex(productID); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return index, nil
	}

	cursor, err := c.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	for _, doc := range docs {
		index[doc.ID.Hex()] = doc.toSnapshot()
	}
	return index, nil
}

func (d productDocument) toSnapshot() domain.ProductSnapshot {
	images := make([]domain.ProductImage, 0, len(d.Images))
	for _, img := range d.Images {
		images = append(images, domain.ProductImage{URL: img.URL, Alt: img.Alt, IsPrimary: img.IsPrimary})
	}
	return domain.ProductSnapshot{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Slug:          d.Slug,
		Price:         decimal.NewFromFloat(d.Price),
		StockQuantity: d.StockQuantity,
		Images:        images,
	}
}
