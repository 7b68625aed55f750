package inserter

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
	"hgncmap/internal/normalizer"
)

const defaultBatchSize = 1000

// Collection is the slice of a MongoDB collection the inserter needs.
type Collection interface {
	Upsert(ctx context.Context, filter bson.D, doc any) error
	DeleteAll(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, docs []any) (int, error)
}

// Database hands out collections by name.
type Database interface {
	Collection(name string) Collection
}

// definitionDocument is the stored form of a mapping definition.
type definitionDocument struct {
	models.MappingDefinition `bson:",inline"`
	RunID                    string    `bson:"run_id"`
	PublishedAt              time.Time `bson:"published_at"`
}

// MongoInserter stores the definition in a definitions collection, keyed by
// name, and replaces the content of the collection named by mapper_data.
type MongoInserter struct {
	db          Database
	client      *mongo.Client
	logger      *logger.Logger
	definitions string
	batchSize   int
}

// NewMongoInserter connects to the configured server.
func NewMongoInserter(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) (*MongoInserter, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, failure.Transport("mongo connect", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)

		return nil, failure.Transport("mongo ping", err)
	}

	ins := NewMongoInserterWithDatabase(&mongoDatabase{db: client.Database(cfg.Database)}, cfg.DefinitionsCollection, cfg.BatchSize, log)
	ins.client = client

	return ins, nil
}

// NewMongoInserterWithDatabase creates an inserter over db (useful for testing).
func NewMongoInserterWithDatabase(db Database, definitions string, batchSize int, log *logger.Logger) *MongoInserter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	if log == nil {
		log = logger.Discard()
	}

	return &MongoInserter{
		db:          db,
		logger:      log,
		definitions: definitions,
		batchSize:   batchSize,
	}
}

// Close disconnects the client, if the inserter owns one.
func (m *MongoInserter) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}

	return m.client.Disconnect(ctx)
}

// Insert replaces the dataset's documents and then its definition, so a
// reader never sees a definition newer than the data.
func (m *MongoInserter) Insert(ctx context.Context, def models.MappingDefinition, data []models.Record) (*Result, error) {
	for i, rec := range data {
		for key := range rec {
			if !normalizer.IsSafeKey(key) {
				return nil, failure.DataQuality("insert", i, rec.Identify(def.MainKey), key, ErrUnsafeRecordKey)
			}
		}
	}

	coll := m.db.Collection(def.MapperData)

	deleted, err := coll.DeleteAll(ctx)
	if err != nil {
		return nil, failure.Transport("insert", fmt.Errorf("clear %s: %w", def.MapperData, err))
	}

	m.logger.Debug("cleared collection", "collection", def.MapperData, "deleted", deleted)

	batches := lo.Chunk(data, m.batchSize)
	inserted := 0

	for i, batch := range batches {
		docs := lo.Map(batch, func(rec models.Record, _ int) any {
			return map[string]any(rec)
		})

		n, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return nil, failure.Transport("insert", fmt.Errorf("batch %d/%d into %s: %w", i+1, len(batches), def.MapperData, err))
		}

		inserted += n
		m.logger.Debug("inserted batch", "collection", def.MapperData, "batch", i+1, "of", len(batches), "documents", n)
	}

	now := time.Now().UTC()

	doc := definitionDocument{
		MappingDefinition: def,
		RunID:             RunID(ctx),
		PublishedAt:       now,
	}

	if err := m.db.Collection(m.definitions).Upsert(ctx, bson.D{{Key: "name", Value: def.Name}}, doc); err != nil {
		return nil, failure.Transport("insert", fmt.Errorf("store definition %s: %w", def.Name, err))
	}

	return &Result{
		PublishedAt: now,
		Sink:        "mongo",
		Dataset:     def.Name,
		Location:    def.MapperData,
		Records:     inserted,
		Batches:     len(batches),
		Replaced:    deleted,
	}, nil
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Upsert(ctx context.Context, filter bson.D, doc any) error {
	_, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))

	return err
}

func (c *mongoCollection) DeleteAll(ctx context.Context) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, docs []any) (int, error) {
	res, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}

	return len(res.InsertedIDs), nil
}
