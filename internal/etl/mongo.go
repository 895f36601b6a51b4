package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWarehouse keeps each table as a collection of one database.
type MongoWarehouse struct {
	DB *mongo.Database
}

func NewMongoWarehouse(db *mongo.Database) *MongoWarehouse {
	return &MongoWarehouse{DB: db}
}

func (m *MongoWarehouse) collectionExists(ctx context.Context, name string) (bool, error) {
	names, err := m.DB.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (m *MongoWarehouse) MaxTimestamp(ctx context.Context, table, column string) (time.Time, bool, error) {
	exists, err := m.collectionExists(ctx, table)
	if err != nil {
		return time.Time{}, false, err
	}
	if !exists {
		return time.Time{}, false, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}

	opts := options.FindOne().
		SetSort(bson.D{{Key: column, Value: -1}}).
		SetProjection(bson.M{column: 1})
	var doc bson.M
	err = m.DB.Collection(table).FindOne(ctx, bson.M{column: bson.M{"$ne": nil}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := utils.ConvertDateTime(doc[column])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max %s.%s: %w", table, column, err)
	}
	return ts, true, nil
}

func (m *MongoWarehouse) AppendRows(ctx context.Context, table string, schema models.Schema, rows []models.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = toDocument(schema, row)
	}
	res, err := m.DB.Collection(table).InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}
	return int64(len(res.InsertedIDs)), nil
}

// toDocument orders fields the way the schema declares them.
func toDocument(schema models.Schema, row models.Record) bson.D {
	doc := make(bson.D, 0, len(schema))
	for _, f := range schema {
		v := row[f.Name]
		if f.Type == models.TypeRecord {
			if nested, ok := asMap(v); ok {
				v = toDocument(f.Fields, models.Record(nested))
			}
		}
		doc = append(doc, bson.E{Key: f.Name, Value: v})
	}
	return doc
}

func (m *MongoWarehouse) ReplaceDeduplicated(ctx context.Context, spec MergeSpec) error {
	staging := m.DB.Collection(spec.Staging)
	cur, err := staging.Aggregate(ctx, mergePipeline(spec), options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return fmt.Errorf("merge %s: %w", spec.Table, err)
	}
	cur.Close(ctx)

	res, err := staging.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("clear %s: %w", spec.Staging, err)
	}
	logger.Debugf("Mongo merge into %s done, cleared %d staged documents", spec.Table, res.DeletedCount)
	return nil
}

// mergePipeline runs on the staging collection and replaces the target
// collection through $out with one document per identity key.
func mergePipeline(spec MergeSpec) mongo.Pipeline {
	id := bson.D{}
	for _, k := range spec.IdentityKey {
		id = append(id, bson.E{Key: k, Value: "$" + k})
	}
	order := bson.D{{Key: "_src", Value: 1}}
	if spec.OrderBy != "" {
		order = append(order, bson.E{Key: spec.OrderBy, Value: -1})
	}
	// latest insert wins among equal OrderBy values
	order = append(order, bson.E{Key: "_id", Value: -1})

	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: "_src", Value: 0}}}},
		{{Key: "$unionWith", Value: bson.D{
			{Key: "coll", Value: spec.Table},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$addFields", Value: bson.D{{Key: "_src", Value: 1}}}},
			}},
		}}},
		{{Key: "$sort", Value: order}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "_src", Value: 0}}}},
		{{Key: "$out", Value: spec.Table}},
	}
}

func (m *MongoWarehouse) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.DB.Client().Disconnect(ctx)
}
