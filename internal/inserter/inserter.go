// Package inserter hands a dataset's mapper data and mapping definition to
// a sink. What the sink does with them afterwards is not its concern.
package inserter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hgncmap/internal/failure"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
)

// Publish errors.
var (
	ErrNoInserter      = errors.New("inserter is required")
	ErrUnnamedDataset  = errors.New("mapping definition has no name")
	ErrNoData          = errors.New("mapper data is empty")
	ErrUnsafeRecordKey = errors.New("record key cannot be stored")
)

var tracer = otel.Tracer("hgncmap/internal/inserter")

// Inserter stores one dataset.
type Inserter interface {
	Insert(ctx context.Context, def models.MappingDefinition, data []models.Record) (*Result, error)
}

// Source is anything exposing a dataset's two artifacts.
type Source interface {
	MapperData() []models.Record
	MapperDefinition() models.MappingDefinition
}

// Result summarizes one insert.
type Result struct {
	PublishedAt time.Time
	RunID       string
	Sink        string
	Dataset     string
	// Location is where the data ended up: a directory or a collection.
	Location string
	Records  int
	Batches  int
	Replaced int64
	Duration time.Duration
}

type runIDKey struct{}

// WithRunID attaches a run ID to ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID carried by ctx, or a fresh one.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}

	return uuid.NewString()
}

// Publish hands src to ins under a new run ID.
func Publish(ctx context.Context, ins Inserter, src Source, log *logger.Logger) (*Result, error) {
	if ins == nil {
		return nil, failure.Configuration("publish", ErrNoInserter)
	}

	if log == nil {
		log = logger.Discard()
	}

	def := src.MapperDefinition()
	data := src.MapperData()

	if def.Name == "" {
		return nil, failure.Configuration("publish", ErrUnnamedDataset)
	}

	if len(data) == 0 {
		return nil, failure.DataQuality("publish", -1, def.Name, "", ErrNoData)
	}

	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)

	ctx, span := tracer.Start(ctx, "insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("dataset", def.Name),
		attribute.Int("records", len(data)),
	)

	log = log.With("run_id", runID, "dataset", def.Name)
	log.Info("publishing", "records", len(data))

	start := time.Now()

	result, err := ins.Insert(ctx, def, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("publish failed", "error", err)

		return nil, err
	}

	result.RunID = runID
	result.Duration = time.Since(start)

	log.Info("published", "sink", result.Sink, "location", result.Location, "records", result.Records, "duration", result.Duration)

	return result, nil
}
