package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-seqprep/internal/config"
	"github.com/example/go-seqprep/internal/encoder"
	"github.com/example/go-seqprep/internal/tokenizer"
	"github.com/example/go-seqprep/internal/vocab"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Encoder turns a batch of sentences into fixed-length id sequences.
// *encoder.Encoder satisfies it.
type Encoder interface {
	EncodeParallel(ctx context.Context, sentences []string, workers int) ([][]int64, error)
	Vocabulary() *vocab.Vocabulary
	SeqLen() int
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxBatch       int
	maxTextBytes   int
	workers        int
	encodeWorkers  int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxBatch:       256,
		maxTextBytes:   16384,
		workers:        4,
		encodeWorkers:  1,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxBatch sets the maximum number of sentences accepted by POST /encode.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// WithMaxTextBytes sets the maximum allowed length of a single sentence in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent encode requests.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithEncodeWorkers sets how many goroutines a single request may use.
func WithEncodeWorkers(n int) Option {
	return func(o *options) { o.encodeWorkers = n }
}

// WithRequestTimeout sets the per-request encoding deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	enc  Encoder
	opts options
	sem  chan struct{}
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /vocab,
// /vocab/file and POST /encode.
func NewHandler(enc Encoder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		enc:  enc,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/vocab", h.handleVocab)
	mux.HandleFunc("/vocab/file", h.handleVocabFile)
	mux.HandleFunc("/encode", h.handleEncode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type vocabResponse struct {
	Size     int `json:"size"`
	SeqLen   int `json:"seq_len"`
	PadIndex int `json:"pad_index"`
	UnkIndex int `json:"unk_index"`
}

func (h *handler) handleVocab(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vocabResponse{
		Size:     h.enc.Vocabulary().Len(),
		SeqLen:   h.enc.SeqLen(),
		PadIndex: vocab.PadIndex,
		UnkIndex: vocab.UnkIndex,
	})
}

func (h *handler) handleVocabFile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+vocab.FileName+`"`)
	if err := vocab.Write(w, h.enc.Vocabulary()); err != nil {
		h.log.ErrorContext(r.Context(), "write vocabulary", slog.String("error", err.Error()))
	}
}

type encodeRequest struct {
	Sentences []string `json:"sentences"`
}

type encodeResponse struct {
	IDs [][]int64 `json:"ids"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if len(req.Sentences) == 0 {
		writeError(w, http.StatusBadRequest, "sentences field is required")
		return
	}

	if h.opts.maxBatch > 0 && len(req.Sentences) > h.opts.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch exceeds maximum of %d sentences", h.opts.maxBatch))
		return
	}

	textBytes := 0
	for i, s := range req.Sentences {
		if len(s) > h.opts.maxTextBytes {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("sentence %d exceeds maximum size of %d bytes", i, h.opts.maxTextBytes))
			return
		}
		textBytes += len(s)
	}

	// Acquire a worker slot, honouring context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	ids, err := h.enc.EncodeParallel(ctx, req.Sentences, h.opts.encodeWorkers)
	if err == nil {
		err = ctx.Err()
	}
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "encoding timed out",
				slog.Int("batch", len(req.Sentences)),
				slog.Int("text_bytes", textBytes),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "encoding timed out")
			return
		}
		h.log.ErrorContext(r.Context(), "encoding failed",
			slog.Int("batch", len(req.Sentences)),
			slog.Int("text_bytes", textBytes),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		status := http.StatusInternalServerError
		if errors.Is(err, tokenizer.ErrMissingDependency) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "encoding complete",
		slog.Int("batch", len(req.Sentences)),
		slog.Int("text_bytes", textBytes),
		slog.Int64("duration_ms", durationMS),
		slog.Int("seq_len", h.enc.SeqLen()),
	)

	writeJSON(w, http.StatusOK, encodeResponse{IDs: ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	enc             Encoder
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// New returns a Server for cfg. A nil enc is built from cfg on Start.
func New(cfg config.Config, enc Encoder) *Server {
	return &Server{
		cfg:             cfg,
		enc:             enc,
		log:             slog.Default(),
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger used by the server and its handler.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	enc, err := s.runtimeDeps()
	if err != nil {
		return err
	}

	h := NewHandler(enc,
		WithWorkers(s.cfg.Server.Workers),
		WithEncodeWorkers(s.cfg.Encode.Workers),
		WithMaxBatch(s.cfg.Server.MaxBatch),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.log),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("serving",
		slog.String("addr", s.cfg.Server.ListenAddr),
		slog.Int("vocab_size", enc.Vocabulary().Len()),
		slog.Int("seq_len", enc.SeqLen()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func CheckHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}

// runtimeDeps loads the vocabulary and tokenizer named by the config unless
// an encoder was injected.
func (s *Server) runtimeDeps() (Encoder, error) {
	if s.enc != nil {
		return s.enc, nil
	}

	v, err := vocab.Load(s.cfg.Paths.VocabDir)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	tok, err := tokenizer.New(s.cfg.TokenizerOptions())
	if err != nil {
		return nil, fmt.Errorf("initialize tokenizer: %w", err)
	}

	enc, err := encoder.New(v, tok, s.cfg.Encode.SeqLen, encoder.WithLogger(s.log))
	if err != nil {
		return nil, fmt.Errorf("initialize encoder: %w", err)
	}

	return enc, nil
}
