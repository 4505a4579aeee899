package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlocation "spothire/internal/domain/location"
)

type LocationRepository struct {
	col *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) *LocationRepository {
	col := db.Collection("agg_location")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "calendar_connected", Value: 1}}})
	return &LocationRepository{col: col}
}

func (r *LocationRepository) ByID(ctx context.Context, id domainlocation.LocationID) (*domainlocation.Location, error) {
	var doc locationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlocation.ErrLocationNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *LocationRepository) Save(ctx context.Context, loc *domainlocation.Location) error {
	doc := newLocationDocument(loc)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *LocationRepository) ListCalendarConnected(ctx context.Context) ([]*domainlocation.Location, error) {
	cursor, err := r.col.Find(ctx, bson.M{"calendar_connected": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainlocation.Location
	for cursor.Next(ctx) {
		var doc locationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type locationDocument struct {
	ID                   string `bson:"_id"`
	OwnerID              string `bson:"owner_id"`
	Title                string `bson:"title"`
	CalendarConnected    bool   `bson:"calendar_connected"`
	CalendarRefreshToken string `bson:"calendar_refresh_token"`
}

func newLocationDocument(loc *domainlocation.Location) locationDocument {
	return locationDocument{
		ID:                   string(loc.ID),
		OwnerID:              loc.OwnerID,
		Title:                loc.Title,
		CalendarConnected:    loc.CalendarConnected,
		CalendarRefreshToken: loc.CalendarRefreshToken,
	}
}

func (d locationDocument) toAggregate() *domainlocation.Location {
	return &domainlocation.Location{
		ID:                   domainlocation.LocationID(d.ID),
		OwnerID:              d.OwnerID,
		Title:                d.Title,
		CalendarConnected:    d.CalendarConnected,
		CalendarRefreshToken: d.CalendarRefreshToken,
	}
}
