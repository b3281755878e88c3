package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/searchlink/searchlink/checkpoint"
	"github.com/searchlink/searchlink/config"
	"github.com/searchlink/searchlink/elastic"
	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/metrics"
	"github.com/searchlink/searchlink/sel"
	"github.com/searchlink/searchlink/slink"
	"github.com/searchlink/searchlink/topo"
	"github.com/searchlink/searchlink/util"
)

// Constants for server configuration.
const (
	ServerReadTimeout       = 30 * time.Second
	ServerReadHeaderTimeout = 3 * time.Second
	MaxRequestSize          = humanize.MiByte
	ServerResponseTimeout   = 5 * time.Second
)

// contextKey is a type for context keys used in this package.
type contextKey string

// configContextKey is the context key for storing *config.Config.
const configContextKey contextKey = "config"

var (
	Version   = "v0.3.0" //nolint:gochecknoglobals
	Platform  = ""       //nolint:gochecknoglobals
	GitCommit = ""       //nolint:gochecknoglobals
	GitBranch = ""       //nolint:gochecknoglobals
	BuildTime = ""       //nolint:gochecknoglobals
)

func buildVersion() string {
	return Version + " " + GitCommit + " " + BuildTime
}

//nolint:gochecknoglobals
var rootCmd = &cobra.Command{
	Use:   "searchlink",
	Short: "MongoDB to search index replication tool",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
			return errors.Wrap(err, "load config")
		}

		logLevel, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			logLevel = zerolog.InfoLevel
		}

		lg := log.InitGlobals(logLevel, cfg.Log.JSON, cfg.Log.NoColor)
		ctx := lg.WithContext(context.Background())
		ctx = context.WithValue(ctx, configContextKey, cfg)
		cmd.SetContext(ctx)

		return nil
	},

	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.CalledAs() != "searchlink" || cmd.ArgsLenAtDash() != -1 {
			return nil
		}

		cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

		if cfg.Source == "" {
			return errors.New("required flag --source not set")
		}

		if cfg.Elasticsearch == "" {
			return errors.New("required flag --elasticsearch not set")
		}

		log.Ctx(cmd.Context()).Info("searchlink " + buildVersion())

		return runServer(cmd.Context(), cfg)
	},
}

//nolint:gochecknoglobals
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		info := fmt.Sprintf("Version:   %s\nPlatform:  %s\nGitCommit: "+
			"%s\nGitBranch: %s\nBuildTime: %s\nGoVersion: %s",
			Version,
			Platform,
			GitCommit,
			GitBranch,
			BuildTime,
			runtime.Version(),
		)

		cmd.Println(info)
	},
}

//nolint:gochecknoglobals
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get the status of the replication process",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return NewClient(viper.GetInt("port")).Status(cmd.Context())
	},
}

//nolint:gochecknoglobals
var pauseDumpCmd = &cobra.Command{
	Use:   "pause-dump",
	Short: "Pause all running bootstrap dumps",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return NewClient(viper.GetInt("port")).PauseDump(cmd.Context())
	},
}

//nolint:gochecknoglobals
var resumeDumpCmd = &cobra.Command{
	Use:   "resume-dump",
	Short: "Resume paused bootstrap dumps",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return NewClient(viper.GetInt("port")).ResumeDump(cmd.Context())
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output log in JSON format")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "Disable log color")

	rootCmd.PersistentFlags().Int("port", config.DefaultServerPort, "Port number")

	rootCmd.Flags().String("source", "", "MongoDB connection string for the source")
	rootCmd.Flags().String("database", "", "Source database to replicate")
	rootCmd.Flags().String("elasticsearch", "", "Search index base URL")
	rootCmd.Flags().String("mappings", "", "Path to the collection mapping file")
	rootCmd.Flags().Int("bulk-size", config.DefaultBulkSize, "Documents per bulk request")

	rootCmd.Flags().StringSlice("include-collections", nil,
		"Collections to include in the replication (e.g. users,posts)")
	rootCmd.Flags().StringSlice("exclude-collections", nil,
		"Collections to exclude from the replication")

	rootCmd.Flags().String("checkpoint-mode", config.CheckpointModeFile,
		"Resume token persistence: file or collection")
	rootCmd.Flags().String("checkpoint-dir", config.DefaultCheckpointDir,
		"Directory for checkpoint files")
	rootCmd.Flags().String("checkpoint-collection", config.DefaultCheckpointCollection,
		"MongoDB collection for resume tokens in collection mode")
	rootCmd.Flags().String("progress-file", config.DefaultProgressFile,
		"Bootstrap progress file name")

	rootCmd.Flags().Bool("reset-state", false, "")
	rootCmd.Flags().MarkHidden("reset-state") //nolint:errcheck

	rootCmd.AddCommand(
		versionCmd,
		statusCmd,
		pauseDumpCmd,
		resumeDumpCmd,
	)

	err := rootCmd.Execute()
	if err != nil {
		zerolog.Ctx(context.Background()).Fatal().Err(err).Msg("")
	}
}

// runServer starts replication and the HTTP server.
func runServer(ctx context.Context, cfg *config.Config) error {
	err := config.Validate(cfg)
	if err != nil {
		return errors.Wrap(err, "validate options")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, os.Kill)
	defer stop()

	srv, err := createServer(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "new server")
	}

	go func() {
		err := srv.manager.Run(ctx)
		if err != nil {
			log.Ctx(ctx).Error(err, "Replication")
		}
	}()

	go func() {
		<-ctx.Done()

		err := util.WithTimeout(context.Background(), config.DisconnectTimeout, srv.Close)
		if err != nil {
			log.New("server").Error(err, "Close server")
		}

		os.Exit(0)
	}()

	port := cfg.Port
	if port == 0 {
		port = config.DefaultServerPort
	}

	addr := fmt.Sprintf("localhost:%d", port)
	httpServer := http.Server{
		Addr:    addr,
		Handler: srv.Handler(),

		ReadTimeout:       ServerReadTimeout,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
	}

	log.Ctx(ctx).Info("Starting HTTP server at http://" + addr)

	return httpServer.ListenAndServe() //nolint:wrapcheck
}

// Server represents the replication server.
type Server struct {
	// Cfg holds the configuration.
	Cfg *config.Config
	// source is the MongoDB client for the source database.
	source *mongo.Client
	// manager owns the per-collection orchestrators.
	manager *slink.Manager

	// promRegistry is the Prometheus registry for metrics.
	promRegistry *prometheus.Registry
}

// createServer connects to the source and the search index and builds
// an orchestrator for every replicated collection.
func createServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	lg := log.Ctx(ctx)

	client, err := topo.Connect(ctx, cfg.Source, "searchlink")
	if err != nil {
		return nil, errors.Wrap(err, "connect to source")
	}

	defer func() {
		if err == nil {
			return
		}

		err1 := util.WithTimeout(ctx, config.DisconnectTimeout, client.Disconnect)
		if err1 != nil {
			log.Ctx(ctx).Warn("Disconnect source: " + err1.Error())
		}
	}()

	cs, _ := connstring.Parse(cfg.Source)
	lg.Infof("Connected to source: %s://%s/%s", cs.Scheme, strings.Join(cs.Hosts, ","), cfg.Database)

	mappings := map[string]slink.Mapping{}
	if cfg.Mappings != "" {
		mappings, err = elastic.LoadMappings(cfg.Mappings)
		if err != nil {
			return nil, errors.Wrap(err, "load mappings")
		}
	}

	sink, err := elastic.New(&elastic.Config{
		URL:      cfg.Elasticsearch,
		BulkSize: cfg.BulkSize,
		Mappings: mappings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create indexing sink")
	}

	colls := selectCollections(mappings, cfg)
	if len(colls) == 0 {
		return nil, errors.New("no collections selected for replication")
	}

	progress, err := checkpoint.LoadProgress(filepath.Join(cfg.Checkpoint.Dir, cfg.Checkpoint.ProgressFile))
	if err != nil {
		return nil, errors.Wrap(err, "load dump progress")
	}

	var tokens checkpoint.TokenStore
	if cfg.Checkpoint.Mode == config.CheckpointModeCollection {
		tokens = checkpoint.NewCollectionTokenStore(
			client.Database(cfg.Database).Collection(cfg.Checkpoint.Collection))
	} else {
		tokens = checkpoint.NewFileTokenStore(cfg.Checkpoint.Dir)
	}

	if cfg.ResetState {
		err = resetState(ctx, progress, tokens, colls)
		if err != nil {
			return nil, errors.Wrap(err, "reset state")
		}

		lg.Info("State has been reset")
	}

	promRegistry := prometheus.NewRegistry()
	metrics.Init(promRegistry)

	source := slink.NewMongoSource(client, cfg.Database)
	gate := slink.NewGate()
	manager := slink.NewManager(gate)

	for _, coll := range colls {
		manager.Add(slink.NewOrchestrator(coll, source, sink, progress, tokens, gate))
	}

	lg.Infof("Replicating %d collections: %s", len(colls), strings.Join(colls, ", "))

	s := &Server{
		Cfg:          cfg,
		source:       client,
		manager:      manager,
		promRegistry: promRegistry,
	}

	return s, nil
}

// selectCollections resolves the replicated collection set: every
// mapped collection plus explicitly included unmapped ones, minus the
// excluded ones.
func selectCollections(mappings map[string]slink.Mapping, cfg *config.Config) []string {
	filter := sel.MakeFilter(cfg.IncludeCollections, cfg.ExcludeCollections)

	colls := make([]string, 0, len(mappings))
	for coll := range mappings {
		if filter(coll) {
			colls = append(colls, coll)
		}
	}

	for _, coll := range cfg.IncludeCollections {
		if _, ok := mappings[coll]; !ok && filter(coll) {
			colls = append(colls, coll)
		}
	}

	sort.Strings(colls)

	return colls
}

// resetState discards all stored checkpoints so the next run starts
// from scratch.
func resetState(
	ctx context.Context,
	progress *checkpoint.Progress,
	tokens checkpoint.TokenStore,
	colls []string,
) error {
	err := progress.Reset()
	if err != nil {
		return errors.Wrap(err, "reset dump progress")
	}

	for _, coll := range colls {
		err = tokens.Clear(ctx, coll)
		if err != nil {
			return errors.Wrapf(err, "clear resume token for %q", coll)
		}
	}

	return nil
}

// Close detaches all change feeds and closes the source connection.
func (s *Server) Close(ctx context.Context) error {
	s.manager.Shutdown(ctx)

	return s.source.Disconnect(ctx) //nolint:wrapcheck
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.HandleStatus)
	mux.HandleFunc("/pause-dump", s.HandlePauseDump)
	mux.HandleFunc("/resume-dump", s.HandleResumeDump)
	mux.Handle("/metrics", s.HandleMetrics())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			log.New("http").Trace(r.Method + " " + r.URL.String())
		} else {
			log.New("http").Info(r.Method + " " + r.URL.String())
		}
		mux.ServeHTTP(w, r)
	})
}

// HandleStatus handles the /status endpoint.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)

		return
	}

	if r.ContentLength > MaxRequestSize {
		http.Error(w,
			http.StatusText(http.StatusRequestEntityTooLarge),
			http.StatusRequestEntityTooLarge)

		return
	}

	statuses := s.manager.Statuses()

	res := statusResponse{
		Ok:          true,
		DumpsPaused: s.manager.Paused(),
		Collections: statuses,
	}

	for _, st := range statuses {
		if st.LastError != "" {
			res.Ok = false
		}
	}

	writeResponse(w, res)
}

// HandlePauseDump handles the /pause-dump endpoint.
func (s *Server) HandlePauseDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)

		return
	}

	s.manager.PauseAllBootstraps()

	writeResponse(w, okResponse{Ok: true})
}

// HandleResumeDump handles the /resume-dump endpoint.
func (s *Server) HandleResumeDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w,
			http.StatusText(http.StatusMethodNotAllowed),
			http.StatusMethodNotAllowed)

		return
	}

	s.manager.ResumeAllBootstraps()

	writeResponse(w, okResponse{Ok: true})
}

func (s *Server) HandleMetrics() http.Handler {
	return promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{})
}

// writeResponse writes the response as JSON to the ResponseWriter.
func writeResponse[T any](w http.ResponseWriter, resp T) {
	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		http.Error(w,
			http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
	}
}

// statusResponse represents the response body for the /status endpoint.
type statusResponse struct {
	// Ok is false if any collection reports an error.
	Ok bool `json:"ok"`
	// DumpsPaused indicates if bootstrap dumps are paused.
	DumpsPaused bool `json:"dumpsPaused"`
	// Collections is the per-collection replication state.
	Collections []slink.Status `json:"collections"`
}

// okResponse represents the response body for state-changing endpoints.
type okResponse struct {
	// Ok indicates if the operation was successful.
	Ok bool `json:"ok"`
	// Err is the error message if the operation failed.
	Err string `json:"error,omitempty"`
}

// Client is the HTTP client for the control endpoints.
type Client struct {
	port int
}

func NewClient(port int) Client {
	return Client{port: port}
}

// Status sends a request to get the replication status.
func (c Client) Status(ctx context.Context) error {
	return doClientRequest[statusResponse](ctx, c.port, http.MethodGet, "status", nil)
}

// PauseDump sends a request to pause all bootstrap dumps.
func (c Client) PauseDump(ctx context.Context) error {
	return doClientRequest[okResponse](ctx, c.port, http.MethodPost, "pause-dump", nil)
}

// ResumeDump sends a request to resume paused bootstrap dumps.
func (c Client) ResumeDump(ctx context.Context) error {
	return doClientRequest[okResponse](ctx, c.port, http.MethodPost, "resume-dump", nil)
}

func doClientRequest[T any](ctx context.Context, port int, method, path string, body any) error {
	url := fmt.Sprintf("http://localhost:%d/%s", port, path)

	bodyData := []byte("")
	if body != nil {
		var err error
		bodyData, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyData))
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer res.Body.Close()

	var resp T

	err = json.NewDecoder(res.Body).Decode(&resp)
	if err != nil {
		return errors.Wrap(err, "decode response")
	}

	j := json.NewEncoder(os.Stdout)
	j.SetIndent("", "  ")
	err = j.Encode(resp)

	return errors.Wrap(err, "print response")
}
