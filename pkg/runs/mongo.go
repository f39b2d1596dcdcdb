package runs

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens the metrics database named by MONGO_URL, defaulting to
// a local voicepair database.
func ConnectMongo() (*mongo.Database, error) {
	registry := bson.NewRegistry()
	registry.RegisterTypeMapEntry(0x03, reflect.TypeOf(bson.M{}))

	mongoUrl := os.Getenv("MONGO_URL")
	if mongoUrl == "" {
		mongoUrl = "mongodb://localhost:27017/voicepair"
	}

	uri, err := url.Parse(mongoUrl)
	if err != nil {
		return nil, err
	}

	if client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoUrl).SetRegistry(registry)); err != nil {
		return nil, err
	} else {
		dbName := strings.Trim(uri.Path, "/")
		if dbName == "" {
			dbName = "voicepair"
		}
		return client.Database(dbName), nil
	}
}

func ensureIndex(db *mongo.Database, ctx context.Context, collectionName string, model mongo.IndexModel) error {
	c := db.Collection(collectionName)
	idxs := c.Indexes()

	v := model.Options.Name
	if v == nil {
		return fmt.Errorf("must provide a name for index")
	}
	expectedName := *v

	cur, err := idxs.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list indexes: %s", err)
	}

	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("unable to decode bson index document: %s", err)
		}
		if name := d["name"]; name != nil && name.(string) == expectedName {
			return nil
		}
	}

	_, err = idxs.CreateOne(ctx, model)
	return err
}

// MongoSink appends every emitted metric as a document to the metrics
// collection, tagged with a run id so separate runs stay distinguishable.
// Emission is fire-and-forget: an insert failure is logged, never fatal.
type MongoSink struct {
	col *mongo.Collection
	run string
}

func NewMongoSink(db *mongo.Database, run string) (*MongoSink, error) {
	name := "run_name_step"
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "run", Value: 1},
			{Key: "name", Value: 1},
			{Key: "step", Value: 1},
		},
		Options: options.Index().SetName(name),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureIndex(db, ctx, "metrics", model); err != nil {
		return nil, err
	}

	return &MongoSink{col: db.Collection("metrics"), run: run}, nil
}

func (s *MongoSink) Emit(name string, step int, value float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.col.InsertOne(ctx, bson.M{
		"run":   s.run,
		"name":  name,
		"step":  step,
		"value": value,
		"at":    time.Now(),
	}); err != nil {
		log.Printf("failed to record metric %s: %v", name, err)
	}
}
