package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-seqprep/internal/vocab"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Vocab     VocabConfig     `mapstructure:"vocab"`
	Encode    EncodeConfig    `mapstructure:"encode"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Server    ServerConfig    `mapstructure:"server"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	VocabDir       string `mapstructure:"vocab_dir"`
	TokenizerModel string `mapstructure:"tokenizer_model"`
}

type VocabConfig struct {
	MaxSize int `mapstructure:"max_size"`
	MinFreq int `mapstructure:"min_freq"`
}

type EncodeConfig struct {
	SeqLen  int `mapstructure:"seq_len"`
	Workers int `mapstructure:"workers"`
}

type TokenizerConfig struct {
	Kind      string `mapstructure:"kind"`
	Lowercase bool   `mapstructure:"lowercase"`
	Encoding  string `mapstructure:"encoding"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxBatch        int    `mapstructure:"max_batch"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	// EnvFile is a dotenv file to load; empty tries ./.env and ignores its absence.
	EnvFile  string
	Defaults Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VocabDir:       "artifacts",
			TokenizerModel: "",
		},
		Vocab: VocabConfig{
			MaxSize: 10000,
			MinFreq: 1,
		},
		Encode: EncodeConfig{
			SeqLen:  100,
			Workers: 1,
		},
		Tokenizer: TokenizerConfig{
			Kind:      "word",
			Lowercase: false,
			Encoding:  "cl100k_base",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxBatch:        256,
			MaxTextBytes:    16384,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// Validate rejects settings the vocabulary builder or encoder cannot use.
func (c Config) Validate() error {
	if c.Vocab.MaxSize < 2 {
		return fmt.Errorf("%w: vocab.max_size must be >= %d, got %d", vocab.ErrInvalidConfig, vocab.MinSize, c.Vocab.MaxSize)
	}
	if c.Encode.SeqLen < 1 {
		return fmt.Errorf("%w: encode.seq_len must be >= 1, got %d", vocab.ErrInvalidConfig, c.Encode.SeqLen)
	}
	return nil
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-vocab-dir", defaults.Paths.VocabDir, "Directory holding vocab.json")
	fs.String("paths-tokenizer-model", defaults.Paths.TokenizerModel, "SentencePiece model for --tokenizer-kind sentencepiece")
	fs.Int("vocab-max-size", defaults.Vocab.MaxSize, "Maximum vocabulary size including <pad> and <unk>")
	fs.Int("vocab-min-freq", defaults.Vocab.MinFreq, "Minimum corpus frequency for a token to enter the vocabulary")
	fs.Int("encode-seq-len", defaults.Encode.SeqLen, "Fixed output sequence length")
	fs.Int("encode-workers", defaults.Encode.Workers, "Concurrent encoding workers")
	fs.String("tokenizer-kind", defaults.Tokenizer.Kind, "Tokenizer backend (word|whitespace|sentencepiece|tiktoken)")
	fs.Bool("tokenizer-lowercase", defaults.Tokenizer.Lowercase, "Lowercase tokens before counting and lookup")
	fs.String("tokenizer-encoding", defaults.Tokenizer.Encoding, "tiktoken encoding name")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent encode requests")
	fs.Int("server-max-batch", defaults.Server.MaxBatch, "Max sentences per encode request")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max bytes per sentence")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("SEQPREP")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("seqprep")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.vocab_dir", c.Paths.VocabDir)
	v.SetDefault("paths.tokenizer_model", c.Paths.TokenizerModel)
	v.SetDefault("vocab.max_size", c.Vocab.MaxSize)
	v.SetDefault("vocab.min_freq", c.Vocab.MinFreq)
	v.SetDefault("encode.seq_len", c.Encode.SeqLen)
	v.SetDefault("encode.workers", c.Encode.Workers)
	v.SetDefault("tokenizer.kind", c.Tokenizer.Kind)
	v.SetDefault("tokenizer.lowercase", c.Tokenizer.Lowercase)
	v.SetDefault("tokenizer.encoding", c.Tokenizer.Encoding)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_batch", c.Server.MaxBatch)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// flagKeys maps each CLI flag to the nested config key it overrides.
var flagKeys = map[string]string{
	"paths-vocab-dir":         "paths.vocab_dir",
	"paths-tokenizer-model":   "paths.tokenizer_model",
	"vocab-max-size":          "vocab.max_size",
	"vocab-min-freq":          "vocab.min_freq",
	"encode-seq-len":          "encode.seq_len",
	"encode-workers":          "encode.workers",
	"tokenizer-kind":          "tokenizer.kind",
	"tokenizer-lowercase":     "tokenizer.lowercase",
	"tokenizer-encoding":      "tokenizer.encoding",
	"server-listen-addr":      "server.listen_addr",
	"server-workers":          "server.workers",
	"server-max-batch":        "server.max_batch",
	"server-max-text-bytes":   "server.max_text_bytes",
	"server-request-timeout":  "server.request_timeout",
	"server-shutdown-timeout": "server.shutdown_timeout",
	"log-level":               "log_level",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
