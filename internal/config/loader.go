package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultBackend = BackendREST

	// DefaultMinInterval is the rate guard applied when LLM_MIN_INTERVAL is
	// unset. "0" disables it.
	DefaultMinInterval = "100ms"
)

// LoadOptions controls where [Load] looks for settings.
type LoadOptions struct {
	// EnvFiles are dotenv files read before the environment. Missing files
	// are ignored. Empty means ".env".
	EnvFiles []string

	// LookupEnv reads a variable. Nil means [os.LookupEnv].
	LookupEnv func(key string) (string, bool)

	// FilePath overrides LLM_CONFIG_FILE.
	FilePath string
}

// Load builds a validated [Config] from the environment, dotenv files and
// the optional YAML file. Variables already set in the environment take
// precedence over dotenv values.
func Load(opts LoadOptions) (*Config, error) {
	lookup, err := envLookup(opts)
	if err != nil {
		return nil, err
	}

	cfg, errs := fromEnv(lookup)
	if opts.FilePath != "" {
		cfg.FilePath = opts.FilePath
	}
	if cfg.FilePath != "" {
		fc, err := LoadFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		cfg.File = *fc
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envLookup merges dotenv files under the real environment.
func envLookup(opts LoadOptions) (func(string) (string, bool), error) {
	base := opts.LookupEnv
	if base == nil {
		base = os.LookupEnv
	}
	files := opts.EnvFiles
	if len(files) == 0 {
		files = []string{".env"}
	}

	dotenv := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := dotenv[k]; !seen {
				dotenv[k] = v
			}
		}
	}

	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// fromEnv fills a Config from lookup and collects parse errors.
func fromEnv(lookup func(string) (string, bool)) (*Config, []error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	duration := func(key, fallback string) time.Duration {
		v := get(key, fallback)
		if v == "" {
			return 0
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a duration: %w", key, v, err))
		}
		return d
	}

	cfg := &Config{
		APIKey:  get("LLM_API_KEY", ""),
		BaseURL: get("LLM_BASE_URL", DefaultBaseURL),
		Models: Models{
			Default:  get("LLM_MODEL_DEFAULT", DefaultModel),
			Fast:     get("LLM_MODEL_FAST", ""),
			Advanced: get("LLM_MODEL_ADVANCED", ""),
			Vision:   get("LLM_MODEL_VISION", ""),
		},
		EmbeddingModel: get("LLM_EMBEDDING_MODEL", ""),
		Backend:        Backend(get("LLM_BACKEND", string(DefaultBackend))),
		MinInterval:    duration("LLM_MIN_INTERVAL", DefaultMinInterval),
		Timeout:        duration("LLM_TIMEOUT", ""),
		AppURL:         get("LLM_APP_URL", ""),
		AppTitle:       get("LLM_APP_TITLE", ""),
		LogLevel:       LogLevel(strings.ToLower(get("LLM_LOG_LEVEL", ""))),
		FilePath:       get("LLM_CONFIG_FILE", ""),
	}

	if v := get("LLM_DEBUG", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_DEBUG %q is not a boolean: %w", v, err))
		}
		cfg.Debug = b
	}
	return cfg, errs
}

// LoadFile reads the YAML file at path.
func LoadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	fc, err := DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return fc, nil
}

// DecodeFile decodes a YAML file from r, rejecting unknown keys. An empty
// document yields an empty FileConfig.
func DecodeFile(r io.Reader) (*FileConfig, error) {
	fc := &FileConfig{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return fc, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the name the user typed: the env var or YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		if name, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if _, err := cfg.PriceTable(); err != nil {
		errs = append(errs, err)
	}

	// Agent duplicate name detection
	seen := make(map[string]int, len(cfg.File.Agents))
	for i, a := range cfg.File.Agents {
		if a.Name == "" {
			continue
		}
		if prev, ok := seen[a.Name]; ok {
			errs = append(errs, fmt.Errorf("agents[%d].name %q is a duplicate of agents[%d]", i, a.Name, prev))
		}
		seen[a.Name] = i
	}

	servers := make(map[string]int, len(cfg.File.MCPServers))
	for i, s := range cfg.File.MCPServers {
		if prev, ok := servers[s.Name]; ok && s.Name != "" {
			errs = append(errs, fmt.Errorf("mcp_servers[%d].name %q is a duplicate of mcp_servers[%d]", i, s.Name, prev))
		}
		servers[s.Name] = i
	}

	if cfg.Backend == BackendSDK && cfg.Timeout == 0 {
		slog.Warn("LLM_BACKEND=sdk without LLM_TIMEOUT; requests may hang on a stalled upstream")
	}

	return errors.Join(errs...)
}

// fieldError renders a validator failure in the user's vocabulary.
func fieldError(fe validator.FieldError) error {
	name := fe.Namespace()
	// Drop the root type and the File segment, which users never type.
	name = strings.TrimPrefix(name, "Config.")
	name = strings.TrimPrefix(name, "File.")
	name = strings.TrimPrefix(name, "Models.")

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", name)
	case "url":
		return fmt.Errorf("%s %q is not a valid URL", name, fe.Value())
	case "oneof":
		return fmt.Errorf("%s %q is invalid; valid values: %s", name, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Errorf("%s must have at least %s entries", name, fe.Param())
	case "gte":
		return fmt.Errorf("%s must not be negative", name)
	}
	return fmt.Errorf("%s failed %q validation", name, fe.Tag())
}
