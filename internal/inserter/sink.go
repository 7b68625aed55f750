package inserter

import (
	"context"
	"fmt"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/logger"
)

// Sink names accepted in output.sink.
const (
	SinkFile  = "file"
	SinkMongo = "mongo"
)

// NewFromConfig builds the configured inserter. The returned close function
// releases any connection it holds.
func NewFromConfig(ctx context.Context, cfg config.OutputConfig, log *logger.Logger) (Inserter, func(context.Context) error, error) {
	switch cfg.Sink {
	case SinkFile, "":
		return NewFileInserter(cfg.Path, cfg.PrettyPrint), func(context.Context) error { return nil }, nil
	case SinkMongo:
		m, err := NewMongoInserter(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, nil, err
		}

		return m, m.Close, nil
	default:
		return nil, nil, failure.Configuration("inserter", fmt.Errorf("%w: %q", config.ErrInvalidSink, cfg.Sink))
	}
}
