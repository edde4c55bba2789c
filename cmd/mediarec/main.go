package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mediarec/internal/events"
	"github.com/pavelanni/mediarec/internal/handler"
	appI18n "github.com/pavelanni/mediarec/internal/i18n"
	"github.com/pavelanni/mediarec/internal/llm"
	"github.com/pavelanni/mediarec/internal/llm/prompts"
	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/recommend"
	"github.com/pavelanni/mediarec/internal/store"
	"github.com/pavelanni/mediarec/internal/supervisor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mediarec",
		Short: "Learning media recommendations powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, recommendCmd(), importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mediarec --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume session events and serve the recommendation API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "ko", "Default response language (en, ko)")
	f.StringSlice("fixtures", nil, "Fixture files to import at startup (repeatable)")
	f.Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight requests on shutdown")
	addPipelineFlags(cmd)
	addMessagingFlags(cmd)
	addCommonFlags(cmd)
	return cmd
}

func recommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Run the on-demand pipeline once and print the stored recommendations",
		RunE:  runRecommend,
	}
	f := cmd.Flags()
	f.StringP("user", "u", "", "User id (required)")
	f.StringSliceP("genres", "g", nil, "Preferred genres, 1 to 5 codes or labels (required)")
	addPipelineFlags(cmd)
	addMessagingFlags(cmd)
	addCommonFlags(cmd)

	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("genres")

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import questions, session answers and performance data from JSON fixtures",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().Bool("force", false, "Re-import files whose content changed since the last import")
	addCommonFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored recommendations as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("user", "", "Only export this user's recommendations")
	f.String("kind", "", "Only export one kind (REAL_TIME_SESSION, USER_REQUESTED)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(cmd)
	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "mediarec.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addPipelineFlags(cmd *cobra.Command) {
	def := model.DefaultConfig()
	f := cmd.Flags()
	f.String("llm-backend", string(model.BackendMock), "AI backend for both endpoints (openai, mock)")
	f.String("analysis-url", "http://localhost:11434/v1", "OpenAI-compatible base URL of the analysis endpoint")
	f.String("analysis-key", "ollama", "API key for the analysis endpoint")
	f.String("analysis-model", "llama3.2", "Analysis model name")
	f.Duration("analysis-timeout", def.Analysis.Timeout, "Per-call timeout of the analysis endpoint")
	f.String("retrieval-url", "https://api.perplexity.ai", "OpenAI-compatible base URL of the retrieval endpoint")
	f.String("retrieval-key", "", "API key for the retrieval endpoint")
	f.String("retrieval-model", "sonar", "Retrieval model name")
	f.Duration("retrieval-timeout", def.Retrieval.Timeout, "Per-call timeout of the retrieval endpoint")
	f.Float64("llm-rate", 0, "Requests per second allowed per endpoint (0 = unlimited)")
	f.IntP("workers", "w", def.Pipeline.Workers, "Concurrent pipeline runs")
	f.Int("max-incorrect-details", def.Pipeline.MaxIncorrectDetails, "Incorrect answers detailed in the analysis prompt")
	f.Int("realtime-count", def.Pipeline.RealTimeCount, "Items requested per session-triggered run")
	f.Int("ondemand-count", def.Pipeline.OnDemandCount, "Items requested per user-requested run")
}

func addMessagingFlags(cmd *cobra.Command) {
	def := model.DefaultConfig().Messaging
	f := cmd.Flags()
	f.String("transport", def.Transport, "Message transport (gochannel, nats)")
	f.String("nats-url", "nats://localhost:4222", "NATS server URL")
	f.String("inbound-topic", def.InboundTopic, "Topic carrying completed learning sessions")
	f.String("outbound-topic", def.OutboundTopic, "Topic receiving recommendation-created events")
	f.String("queue-group", def.QueueGroup, "Consumer queue group")
	f.Int("subscribers", def.Subscribers, "Concurrent subscribers on the inbound topic")
	f.String("stream", def.StreamName, "JetStream stream name")
	f.Int("max-retries", def.MaxRetries, "In-process retries before a message is redelivered")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	var h slog.Handler
	if strings.EqualFold(v.GetString("log-format"), "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h).With("service", "mediarec"))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MEDIAREC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mediarec")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mediarec")
	v.AddConfigPath("/etc/mediarec")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig overlays bound flags, environment and config file onto the defaults.
func loadConfig(v *viper.Viper) *model.Config {
	cfg := model.DefaultConfig()

	backend := model.Backend(strings.ToLower(v.GetString("llm-backend")))
	rate := v.GetFloat64("llm-rate")

	cfg.Analysis.Backend = backend
	cfg.Analysis.BaseURL = v.GetString("analysis-url")
	cfg.Analysis.APIKey = v.GetString("analysis-key")
	cfg.Analysis.Model = v.GetString("analysis-model")
	cfg.Analysis.Timeout = v.GetDuration("analysis-timeout")
	cfg.Analysis.RatePerSecond = rate

	cfg.Retrieval.Backend = backend
	cfg.Retrieval.BaseURL = v.GetString("retrieval-url")
	cfg.Retrieval.APIKey = v.GetString("retrieval-key")
	cfg.Retrieval.Model = v.GetString("retrieval-model")
	cfg.Retrieval.Timeout = v.GetDuration("retrieval-timeout")
	cfg.Retrieval.RatePerSecond = rate

	cfg.Messaging.Transport = v.GetString("transport")
	cfg.Messaging.NATSURL = v.GetString("nats-url")
	cfg.Messaging.InboundTopic = v.GetString("inbound-topic")
	cfg.Messaging.OutboundTopic = v.GetString("outbound-topic")
	cfg.Messaging.QueueGroup = v.GetString("queue-group")
	cfg.Messaging.Subscribers = v.GetInt("subscribers")
	cfg.Messaging.StreamName = v.GetString("stream")
	cfg.Messaging.MaxRetries = v.GetInt("max-retries")

	cfg.Pipeline.Workers = v.GetInt("workers")
	cfg.Pipeline.MaxIncorrectDetails = v.GetInt("max-incorrect-details")
	cfg.Pipeline.RealTimeCount = v.GetInt("realtime-count")
	cfg.Pipeline.OnDemandCount = v.GetInt("ondemand-count")

	return cfg
}

// pipeline bundles both orchestrators with the bus they publish to.
type pipeline struct {
	realTime  *recommend.RealTime
	onDemand  *recommend.OnDemand
	pool      *recommend.Pool
	emitter   *events.Emitter
	transport *events.Transport
}

// Close waits for pending publications and closes the transport.
func (p *pipeline) Close() error {
	p.emitter.Wait()
	return p.transport.Close()
}

func newPipeline(ctx context.Context, cfg *model.Config, db *store.Store) (*pipeline, error) {
	analysisGen, err := newGenerator(ctx, &cfg.Analysis)
	if err != nil {
		return nil, err
	}
	retrievalGen, err := newGenerator(ctx, &cfg.Retrieval)
	if err != nil {
		return nil, err
	}

	composer, err := prompts.NewComposer(nil, cfg.Pipeline.MaxIncorrectDetails)
	if err != nil {
		return nil, err
	}

	tr, err := events.NewTransport(ctx, cfg.Messaging, watermill.NewSlogLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", cfg.Messaging.Transport, err)
	}
	emitter := events.NewEmitter(tr.Publisher, cfg.Messaging.OutboundTopic)

	deps := recommend.Deps{
		Composer:  composer,
		Analysis:  llm.NewAnalysisClient(analysisGen, cfg.Analysis.Name),
		Retrieval: llm.NewRetrievalClient(retrievalGen, cfg.Retrieval.Name),
		Sink:      db,
		Emitter:   emitter,
	}
	return &pipeline{
		realTime:  recommend.NewRealTime(deps, db, cfg.Pipeline.RealTimeCount),
		onDemand:  recommend.NewOnDemand(deps, recommend.NewAggregator(db), cfg.Pipeline.OnDemandCount),
		pool:      recommend.NewPool(cfg.Pipeline.Workers),
		emitter:   emitter,
		transport: tr,
	}, nil
}

func newGenerator(ctx context.Context, cfg *model.EndpointConfig) (llm.Generator, error) {
	gen, err := llm.NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Name, err)
	}
	if c, ok := gen.(*llm.Client); ok {
		// An unreachable endpoint degrades runs instead of blocking startup.
		if err := c.Ping(ctx); err != nil {
			slog.Warn("LLM health check failed", "endpoint", cfg.Name, "url", cfg.BaseURL, "error", err)
		} else {
			slog.Info("LLM endpoint OK", "endpoint", cfg.Name, "url", cfg.BaseURL, "model", cfg.Model)
		}
	}
	return gen, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := loadConfig(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := importFiles(ctx, db, v.GetStringSlice("fixtures"), false); err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	p, err := newPipeline(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("failed to close transport", "error", err)
		}
	}()

	h := handler.New(p.onDemand, p.pool, db)
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	shutdownTimeout := v.GetDuration("shutdown-timeout")

	tree := supervisor.NewTree(slog.Default(), supervisor.Config{ShutdownTimeout: shutdownTimeout})
	tree.AddMessagingService(supervisor.NewConsumerService(func() (supervisor.Runner, error) {
		return events.NewConsumer(p.transport.Subscriber, p.realTime, p.pool, cfg.Messaging,
			watermill.NewSlogLogger(slog.Default()))
	}))
	tree.AddAPIService(supervisor.NewHTTPService(srv, shutdownTimeout))

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"llm_backend", cfg.Analysis.Backend,
		"analysis_model", cfg.Analysis.Model,
		"retrieval_model", cfg.Retrieval.Model,
		"transport", cfg.Messaging.Transport,
		"inbound_topic", cfg.Messaging.InboundTopic,
		"outbound_topic", cfg.Messaging.OutboundTopic,
		"workers", cfg.Pipeline.Workers,
	)

	if err := tree.Run(ctx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := loadConfig(v)
	ctx := cmd.Context()

	req := recommend.Request{UserID: v.GetString("user")}
	for _, g := range v.GetStringSlice("genres") {
		genre, ok := model.ParseGenre(g)
		if !ok {
			return fmt.Errorf("unknown genre %q", g)
		}
		req.Genres = append(req.Genres, genre)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	p, err := newPipeline(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.onDemand.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run recommendation: %w", err)
	}
	slog.Info("recommendation run finished", "stage", res.Stage, "records", len(res.Records), "dropped", res.Dropped)

	data, err := json.MarshalIndent(res.Records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importFiles(cmd.Context(), db, args, v.GetBool("force"))
}

func importFiles(ctx context.Context, db *store.Store, paths []string, force bool) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, _, err := db.LoadFixtures(ctx, path, data, force); err != nil {
			return err
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	kind := model.RecommendationKind(strings.ToUpper(v.GetString("kind")))
	if kind != "" && !kind.Valid() {
		return fmt.Errorf("unknown kind %q", kind)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportRecommendations(cmd.Context(), v.GetString("user"), kind)
	if err != nil {
		return fmt.Errorf("export recommendations: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
