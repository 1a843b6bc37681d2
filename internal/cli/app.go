package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/foodvoice/internal/agent"
	"github.com/soyeahso/foodvoice/internal/config"
	"github.com/soyeahso/foodvoice/internal/domain"
	"github.com/soyeahso/foodvoice/internal/hooks"
	"github.com/soyeahso/foodvoice/internal/llm"
	"github.com/soyeahso/foodvoice/internal/logging"
	"github.com/soyeahso/foodvoice/internal/memory"
	"github.com/soyeahso/foodvoice/internal/order"
	"github.com/soyeahso/foodvoice/internal/places"
	"github.com/soyeahso/foodvoice/internal/planner"
	"github.com/soyeahso/foodvoice/internal/research"
	"github.com/soyeahso/foodvoice/internal/store"
	"github.com/soyeahso/foodvoice/internal/stt"
	"github.com/soyeahso/foodvoice/internal/tools"
	"github.com/soyeahso/foodvoice/internal/tts"
	"github.com/soyeahso/foodvoice/internal/voice"
)

// errNoLLM is returned by commands that need a model when none is configured.
var errNoLLM = errors.New("no LLM provider configured: set llm.apiKey or OPENAI_API_KEY / ANTHROPIC_API_KEY")

// app holds the wired collaborators shared by serve, chat and order.
type app struct {
	cfg config.Config
	log *logging.Logger

	hooks       *hooks.Manager
	db          *store.DB
	providers   []string
	client      llm.Client
	engine      *agent.Engine
	planner     *planner.Pipeline
	orders      *order.Service
	orderStore  *store.OrderStore
	transcripts *store.TranscriptStore
	dialer      *stt.Dialer
	speech      *tts.Adapter

	closers []io.Closer
}

// newApp opens the database and builds every component the config enables.
// Missing optional credentials degrade the matching feature and are logged.
func newApp(ctx context.Context, cfg config.Config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, hooks: hooks.NewManager(log)}
	if n := a.hooks.RegisterConfig(cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("shell hooks registered")
	}

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data dirs: %w", err)
	}
	db, err := store.Open(paths.DatabasePath(cfg.Store), log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)
	a.orderStore = store.NewOrderStore(db)
	a.transcripts = store.NewTranscriptStore(db)

	registry := llm.NewRegistryFromConfig(cfg.LLM, log)
	a.providers = registry.List()
	if len(a.providers) > 0 {
		a.client = agent.NewFailoverClient(registry, cfg.LLM.Model, cfg.LLM.Fallbacks, log)
	} else {
		log.Warn().Msg("no LLM providers available, conversations are disabled")
	}

	searcher, err := a.buildPlaces(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	mem, err := a.buildMemory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.client != nil {
		researchModel := cfg.Research.Model
		if researchModel == "" {
			researchModel = cfg.LLM.Model
		}
		toolReg := agent.NewToolRegistry(log)
		tools.RegisterAll(toolReg, tools.Deps{
			Places:       searcher,
			Research:     research.NewLLM(a.client, researchModel, cfg.Research.MaxTokens, log),
			Memory:       mem,
			Location:     domain.LatLng{Lat: cfg.Places.Location.Lat, Lng: cfg.Places.Location.Lng},
			RadiusMeters: cfg.Places.RadiusMeters,
			MaxResults:   cfg.Places.MaxResults,
			IncludedType: firstOr(cfg.Places.IncludedTypes, "restaurant"),
			Log:          log,
		})
		a.engine = agent.NewEngine(a.client, toolReg, agent.EngineConfig{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Prompt: agent.PromptConfig{
				Location: fmt.Sprintf("%.4f, %.4f", cfg.Places.Location.Lat, cfg.Places.Location.Lng),
			},
		}, log)
		a.planner = planner.New(a.client, cfg.LLM.Model, 0, log)
	}

	if cfg.Executor.BaseURL == "" {
		log.Warn().Msg("executor.baseUrl not set, confirmed orders will be recorded as failed")
	}
	runner := order.NewRunner(order.NewHTTPExecutor(cfg.Executor), log)
	a.orders = order.NewService(runner, a.orderStore, log)

	a.dialer = stt.NewDialer(cfg.STT, log)
	if cfg.TTS.APIKey != "" {
		a.speech = tts.NewAdapter(tts.NewElevenLabs(cfg.TTS), cfg.TTS.Timeout(), log)
	} else {
		log.Warn().Msg("tts.apiKey not set, replies will be text only")
	}

	return a, nil
}

func (a *app) buildPlaces(ctx context.Context) (places.Searcher, error) {
	var searcher places.Searcher
	g, err := places.NewGoogle(ctx, a.cfg.Places, a.log)
	if err != nil {
		if !errors.Is(err, places.ErrNotConfigured) {
			return nil, err
		}
		a.log.Warn().Err(err).Msg("restaurant search disabled")
		return places.Unconfigured{}, nil
	}
	searcher = g

	var cache places.Cache = places.NewMemoryCache()
	if a.cfg.Redis.URL != "" {
		rc, err := places.DialRedisCache(ctx, a.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, rc)
		cache = rc
		a.log.Info().Msg("using redis search cache")
	}
	return places.NewCached(searcher, cache, a.cfg.Places.CacheTTL(), a.log), nil
}

func (a *app) buildMemory(ctx context.Context) (memory.Store, error) {
	switch a.cfg.Memory.Driver {
	case "none":
		return memory.Noop{}, nil
	case "qdrant":
		emb := a.cfg.Memory.Embedding
		q, err := memory.NewQdrant(memory.QdrantConfig{
			URL:        a.cfg.Memory.Qdrant.URL,
			APIKey:     a.cfg.Memory.Qdrant.APIKey,
			Collection: a.cfg.Memory.Qdrant.Collection,
			Dimensions: emb.Dimensions,
		}, memory.NewOpenAIEmbedder(emb.APIKey, emb.Model, emb.BaseURL, emb.Dimensions), a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, q)
		if err := q.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("preparing qdrant collection: %w", err)
		}
		a.log.Info().Str("collection", a.cfg.Memory.Qdrant.Collection).Msg("using qdrant preference memory")
		return q, nil
	default:
		return store.NewPreferenceStore(a.db), nil
	}
}

// voiceDeps returns the per-session collaborators for the gateway. Engine
// stays nil without an LLM so the gateway can refuse voice sessions.
func (a *app) voiceDeps() voice.Deps {
	deps := voice.Deps{
		Open:        voice.DialerOpener(a.dialer),
		Orders:      a.orders,
		Transcripts: a.transcripts,
	}
	if a.engine != nil {
		deps.Engine = a.engine
	}
	if a.speech != nil {
		deps.Speech = a.speech
	}
	return deps
}

// Close waits for background order runs and hooks, then releases resources.
func (a *app) Close() {
	if a.orders != nil {
		a.orders.Wait()
	}
	a.hooks.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

func firstOr(list []string, def string) string {
	if len(list) > 0 && list[0] != "" {
		return list[0]
	}
	return def
}
