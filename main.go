package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	callx "github.com/superbryn/voice-agent/agent/agents/call"
	contractx "github.com/superbryn/voice-agent/agent/contract"
	"github.com/superbryn/voice-agent/agent/llm"
	statex "github.com/superbryn/voice-agent/agent/state"
	storex "github.com/superbryn/voice-agent/agent/store"
	"github.com/superbryn/voice-agent/agent/summary"
	toolx "github.com/superbryn/voice-agent/agent/tool"
	lktransport "github.com/superbryn/voice-agent/agent/transport/livekit"
	configx "github.com/superbryn/voice-agent/pkg/config"
	"github.com/superbryn/voice-agent/pkg/deepgram"
	_ "github.com/superbryn/voice-agent/pkg/logger/autoload"
	"github.com/superbryn/voice-agent/pkg/openrouter"
	"github.com/superbryn/voice-agent/pkg/qstash"
)

// AppConfig covers agent-level knobs not owned by a provider package.
type AppConfig struct {
	UseMemoryStore bool          `envconfig:"USE_MEMORY_STORE" split_words:"true" default:"false"`
	GraceDelay     time.Duration `envconfig:"GRACE_DELAY" split_words:"true" default:"2s"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")
	lkCfg := configx.MustNew[lktransport.Config]("LIVEKIT")
	dgCfg := configx.MustNew[deepgram.Config]("DEEPGRAM")
	orCfg := configx.MustNew[openrouter.Config]("OPENROUTER")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := buildStore(ctx, appCfg)

	modelClient := openrouter.NewClient(*orCfg)
	if modelClient == nil {
		log.Fatal().Msg("model API key is not configured")
	}

	runner, err := llm.New(modelClient, toolx.NewExecutor(store),
		llm.WithModel(orCfg.Model),
		llm.WithTemperature(orCfg.Temperature),
		llm.WithMaxTokens(orCfg.MaxCompletionToken),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build turn engine")
	}

	completer, err := llm.NewCompleter(modelClient, orCfg.Model, orCfg.Temperature, orCfg.MaxCompletionToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build completer")
	}
	summarizer := summary.New(completer, store)

	speech := deepgram.NewClient(*dgCfg)
	adapter, err := lktransport.New(*lkCfg, speech, speech)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build transport adapter")
	}

	if err := adapter.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to room")
	}
	adapter.MonitorTracks(ctx, 8*time.Second, time.Second)

	if err := adapter.WaitForParticipant(ctx); err != nil {
		adapter.Close()
		log.Error().Err(err).Msg("no participant joined, shutting down")
		return
	}

	state := statex.NewCallState(uuid.NewString(), time.Now())
	service, err := callx.New(state, runner, summarizer, adapter, buildPublisher(adapter),
		callx.WithGraceDelay(appCfg.GraceDelay),
		callx.WithCloseFunc(adapter.Close),
	)
	if err != nil {
		adapter.Close()
		log.Fatal().Err(err).Msg("failed to build call service")
	}

	log.Info().Str("call_id", state.CallID()).Msg("call service started")
	if err := service.Run(ctx, adapter.Events()); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("call service stopped with error")
	}
	log.Info().Str("call_id", state.CallID()).Msg("call finished")
}

func buildStore(ctx context.Context, appCfg *AppConfig) contractx.AppointmentStore {
	if appCfg.UseMemoryStore {
		log.Info().Msg("using in-memory appointment store")
		return storex.NewMemory()
	}

	dbCfg := configx.MustNew[storex.PostgresConfig]("DATABASE")
	pg := storex.NewPostgres(*dbCfg)
	if err := pg.Migrate(ctx); err != nil {
		// The store degrades to synthesized records, so a failed migration
		// is survivable for the call itself.
		log.Warn().Err(err).Msg("store migration failed, continuing with degraded persistence")
	}
	return pg
}

// buildPublisher fans events out to the room data channel and, when
// configured, to QStash for offline processing.
func buildPublisher(room contractx.Publisher) contractx.Publisher {
	sinks := []contractx.Publisher{room}

	qsCfg, err := configx.New[qstash.Config]("QSTASH")
	if err == nil {
		client, err := qstash.NewClient(*qsCfg)
		if err != nil {
			log.Warn().Err(err).Msg("qstash misconfigured, skipping event forwarding")
		} else {
			sinks = append(sinks, qstashPublisher{client: client})
		}
	}

	return callx.NewFanoutPublisher(sinks...)
}

type qstashPublisher struct {
	client *qstash.Client
}

func (p qstashPublisher) Publish(ctx context.Context, topic string, event contractx.WireEvent) error {
	return p.client.Publish(ctx, topic, event)
}
