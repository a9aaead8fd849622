package memgo

import (
	"log/slog"

	"github.com/hupe1980/memgo/blobstore"
	"github.com/hupe1980/memgo/codec"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/persistence"
	"github.com/hupe1980/memgo/store"
)

// DefaultRoot is the directory used for per-user blobs when no blob store
// is configured.
const DefaultRoot = "user_memory"

type options struct {
	indexType    index.Type
	indexFactory store.IndexFactory
	blobStore    blobstore.BlobStore
	root         string
	codec        codec.Codec
	compression  persistence.Compression
	autoPersist  bool
	logger       *Logger
}

// Option configures Manager behavior.
type Option func(*options)

// WithIndexType selects the nearest-neighbor backend used for newly
// created stores. Loaded stores keep the type they were saved with.
func WithIndexType(t index.Type) Option {
	return func(o *options) {
		o.indexType = t
	}
}

// WithIndexFactory overrides index construction, e.g. to tune HNSW or IVF
// parameters. If nil is passed, store.DefaultIndexFactory is used.
func WithIndexFactory(factory store.IndexFactory) Option {
	return func(o *options) {
		if factory == nil {
			factory = store.DefaultIndexFactory
		}
		o.indexFactory = factory
	}
}

// WithBlobStore configures where per-user blobs are persisted. Defaults
// to a local filesystem store rooted at the configured root directory.
//
// Example with S3:
//
//	client, _ := s3.NewClient(ctx)
//	m, _ := memgo.New(embedder, memgo.WithBlobStore(s3.NewStore(client, "my-bucket", "memgo")))
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = bs
	}
}

// WithRoot configures the local root directory for the default blob
// store. Ignored when WithBlobStore is used.
func WithRoot(root string) Option {
	return func(o *options) {
		o.root = root
	}
}

// WithCodec configures the codec used for snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression applied to snapshot payloads.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithAutoPersist controls whether every successful mutation is persisted
// immediately. Disabling it trades durability for write throughput; call
// Persist or Flush explicitly instead.
func WithAutoPersist(enabled bool) Option {
	return func(o *options) {
		o.autoPersist = enabled
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := memgo.NewJSONLogger(slog.LevelInfo)
//	m, _ := memgo.New(embedder, memgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		indexType:    index.TypeIVF,
		indexFactory: store.DefaultIndexFactory,
		root:         DefaultRoot,
		codec:        codec.Default,
		compression:  persistence.CompressionZSTD,
		autoPersist:  true,
		logger:       NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
