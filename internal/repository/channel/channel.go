package channel

import (
	"context"
	"time"

	"anon_messenger/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	ChannelRepo struct {
		collection *mongo.Collection
	}
)

func NewChannelRepo(db *mongo.Database) *ChannelRepo {
	return &ChannelRepo{
		collection: db.Collection("channels"),
	}
}

// EnsureIndexes creates the TTL index that expires channel documents after
// ttl, matching the expiry of the channel's ephemeral state in the store.
func (r *ChannelRepo) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	return err
}

func (r *ChannelRepo) Create(ctx context.Context, ch *model.Channel) error {
	_, err := r.collection.InsertOne(ctx, ch)
	return err
}

func (r *ChannelRepo) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	filter := bson.M{
		"_id": id,
	}

	var ch model.Channel
	err := r.collection.FindOne(ctx, filter).Decode(&ch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &ch, nil
}

func (r *ChannelRepo) List(ctx context.Context) ([]*model.Channel, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var channels []*model.Channel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *ChannelRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
