// Package config reads the crew settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/antgroup/datacrew/dataset"
	"github.com/antgroup/datacrew/script"
)

// Setting names. Each is read from the environment variable of the same
// name and from the lower-case key of a config file.
const (
	GoogleAPIKey   = "GOOGLE_API_KEY"
	OpenAIAPIKey   = "OPENAI_API_KEY"
	LLMBaseURL     = "LLM_BASE_URL"
	LLMModel       = "LLM_MODEL"
	LLMRate        = "LLM_RATE"
	PlotsDir       = "PLOTS_DIR"
	ScriptTimeout  = "SCRIPT_TIMEOUT"
	ScriptMaxSteps = "SCRIPT_MAX_STEPS"
	Process        = "PROCESS"
	TasksFile      = "TASKS_FILE"
	GraphFile      = "GRAPH_FILE"
	HistoryDSN     = "HISTORY_DSN"
	MCPServersFile = "MCP_SERVERS_FILE"
	HTTPAddr       = "HTTP_ADDR"
	LogFormat      = "LOG_FORMAT"
	LogLevel       = "LOG_LEVEL"
)

// DatasetEnv maps dataset names to the variables holding their paths.
var DatasetEnv = map[string]string{
	dataset.Amministrati: "AMMINISTRATI",
	dataset.Reddito:      "REDDITO",
	dataset.Pendolarismo: "PENDOLARISMO",
	dataset.Stipendi:     "STIPENDI",
}

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	LLMRate        float64
	Datasets       map[string]string
	PlotsDir       string
	ScriptTimeout  time.Duration
	ScriptMaxSteps uint64
	Process        string
	TasksFile      string
	GraphFile      string
	HistoryDSN     string
	MCPServersFile string
	HTTPAddr       string
	LogFormat      string
	LogLevel       string
}

// SetDefaults registers the default of every optional setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(key(LLMModel), "gemini-1.5-flash")
	v.SetDefault(key(LLMRate), 0)
	v.SetDefault(key(PlotsDir), "plots")
	v.SetDefault(key(ScriptTimeout), script.DefaultTimeout)
	v.SetDefault(key(ScriptMaxSteps), uint64(script.DefaultMaxSteps))
	v.SetDefault(key(Process), "sequential")
	v.SetDefault(key(HTTPAddr), ":8080")
	v.SetDefault(key(LogFormat), "text")
	v.SetDefault(key(LogLevel), "info")
}

// Load reads .env files (missing ones are ignored), binds every setting to
// its environment variable and decodes the result. It does not validate.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}
	SetDefaults(v)
	names := []string{GoogleAPIKey, OpenAIAPIKey, LLMBaseURL, LLMModel, LLMRate, PlotsDir,
		ScriptTimeout, ScriptMaxSteps, Process, TasksFile, GraphFile, HistoryDSN, MCPServersFile,
		HTTPAddr, LogFormat, LogLevel}
	for _, env := range DatasetEnv {
		names = append(names, env)
	}
	for _, env := range names {
		if err := v.BindEnv(key(env), env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	c := &Config{
		APIKey:         firstNonEmpty(v.GetString(key(GoogleAPIKey)), v.GetString(key(OpenAIAPIKey))),
		BaseURL:        v.GetString(key(LLMBaseURL)),
		Model:          v.GetString(key(LLMModel)),
		LLMRate:        v.GetFloat64(key(LLMRate)),
		Datasets:       make(map[string]string, len(DatasetEnv)),
		PlotsDir:       v.GetString(key(PlotsDir)),
		ScriptTimeout:  v.GetDuration(key(ScriptTimeout)),
		ScriptMaxSteps: v.GetUint64(key(ScriptMaxSteps)),
		Process:        strings.ToLower(v.GetString(key(Process))),
		TasksFile:      v.GetString(key(TasksFile)),
		GraphFile:      v.GetString(key(GraphFile)),
		HistoryDSN:     v.GetString(key(HistoryDSN)),
		MCPServersFile: v.GetString(key(MCPServersFile)),
		HTTPAddr:       v.GetString(key(HTTPAddr)),
		LogFormat:      strings.ToLower(v.GetString(key(LogFormat))),
		LogLevel:       strings.ToLower(v.GetString(key(LogLevel))),
	}
	for name, env := range DatasetEnv {
		c.Datasets[name] = strings.TrimSpace(v.GetString(key(env)))
	}
	return c, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.APIKey == "" {
		problems = append(problems, GoogleAPIKey+" (or "+OpenAIAPIKey+") is not set")
	}
	for _, name := range dataset.Names {
		if c.Datasets[name] == "" {
			problems = append(problems, DatasetEnv[name]+" is not set")
		}
	}
	switch c.Process {
	case "sequential", "hierarchical":
	default:
		problems = append(problems, Process+` must be "sequential" or "hierarchical", got "`+c.Process+`"`)
	}
	if c.ScriptTimeout <= 0 {
		problems = append(problems, ScriptTimeout+" must be positive")
	}
	if c.LLMRate < 0 {
		problems = append(problems, LLMRate+" must not be negative")
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Entries lists the datasets in their canonical order.
func (c *Config) Entries() []dataset.Entry {
	out := make([]dataset.Entry, 0, len(dataset.Names))
	for _, name := range dataset.Names {
		out = append(out, dataset.Entry{Name: name, Path: c.Datasets[name]})
	}
	return out
}

// Logger builds the process logger: JSON or text on w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func key(env string) string {
	return strings.ToLower(env)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
