package llm

import (
	"context"
	"net/http"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/fastflow/nexus/internal/core/errx"
	logx "github.com/fastflow/nexus/pkg/logger"
)

// runtime is one cached model handle plus the configuration it was built
// from. Entries are write-once per config id and must never be mutated after
// creation; tool binding is copy-on-bind (see Handle).
type runtime struct {
	model model.ToolCallingChatModel
	cfg   *ModelConfig
}

// Factory resolves model handles by configuration id, creating them lazily on
// first use and sharing them across all sessions and requests.
type Factory struct {
	fetcher ConfigFetcher
	build   func(ctx context.Context, cfg *ModelConfig) (model.ToolCallingChatModel, error)

	mu       sync.RWMutex
	runtimes map[string]*runtime
}

// NewFactory creates a Factory backed by the given config fetcher.
func NewFactory(fetcher ConfigFetcher) *Factory {
	return &Factory{
		fetcher:  fetcher,
		build:    buildChatModel,
		runtimes: make(map[string]*runtime),
	}
}

// NewFactoryWithBuilder is NewFactory with a custom model constructor,
// used by tests to substitute a scripted model.
func NewFactoryWithBuilder(
	fetcher ConfigFetcher,
	build func(ctx context.Context, cfg *ModelConfig) (model.ToolCallingChatModel, error),
) *Factory {
	f := NewFactory(fetcher)
	f.build = build
	return f
}

// Handle returns the shared handle for the given model configuration id,
// creating and caching it on first use.
func (f *Factory) Handle(ctx context.Context, configID, authToken string) (*Handle, error) {
	if configID == "" {
		return nil, errx.New(nil, http.StatusBadRequest, errx.ConfigErrorMessage)
	}

	f.mu.RLock()
	rt, ok := f.runtimes[configID]
	f.mu.RUnlock()
	if ok {
		logx.Debug().Str("model_config_id", configID).Msg("Model runtime cache hit")
		return &Handle{rt: rt}, nil
	}

	cfg, err := f.fetcher.FetchModelConfig(ctx, configID, authToken)
	if err != nil {
		logx.Error().Err(err).Str("model_config_id", configID).Msg("Failed to fetch model config")
		return nil, errx.New(err, http.StatusBadRequest, errx.ConfigErrorMessage)
	}

	chatModel, err := f.build(ctx, cfg)
	if err != nil {
		return nil, errx.New(err, http.StatusBadGateway, "model initialization failed")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another request may have won the race; keep the first entry so every
	// caller shares the same handle.
	if existing, ok := f.runtimes[configID]; ok {
		return &Handle{rt: existing}, nil
	}
	rt = &runtime{model: chatModel, cfg: cfg}
	f.runtimes[configID] = rt
	logx.Info().
		Str("model_config_id", configID).
		Str("model", cfg.ModelID).
		Msg("Model runtime created and cached")
	return &Handle{rt: rt}, nil
}
