// biquery is the BI query assistant command line.
//
// Usage:
//
//	biquery ask "What is our total revenue?"   # full agent pipeline
//	biquery metrics total_revenue --period Q1  # offline engine run
//	biquery generate --out data/sales.csv      # sample dataset
//	biquery health                             # provider health check
//	biquery version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/biquery/agents"
	"github.com/BaSui01/biquery/assistant"
	"github.com/BaSui01/biquery/config"
	"github.com/BaSui01/biquery/dataset"
	"github.com/BaSui01/biquery/llm"
	"github.com/BaSui01/biquery/llm/openai"
	"github.com/BaSui01/biquery/metrics"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(os.Args[2:])
	case "metrics":
		runMetrics(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall run timeout")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: biquery ask [flags] \"<question>\"")
		os.Exit(1)
	}
	question := strings.Join(fs.Args(), " ")

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ds, err := dataset.LoadCSV(cfg.Data.CSVPath)
	if err != nil {
		fatal(logger, "failed to load dataset", err)
	}

	a, err := assistant.New(buildProvider(cfg, logger), ds, logger, assistant.Options{
		Agent: agents.Options{
			Temperature:   float32(cfg.Agent.Temperature),
			MaxTokens:     cfg.Agent.MaxTokens,
			MaxToolRounds: cfg.Agent.MaxToolRounds,
		},
		ToolTimeout: cfg.Agent.ToolTimeout,
	})
	if err != nil {
		fatal(logger, "failed to build assistant", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := a.ProcessQuery(ctx, question)
	if err != nil {
		fatal(logger, "query failed", err)
	}
	fmt.Println(report.Format())
}

func runMetrics(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	period := fs.String("period", "all", "Time filter: Q1-Q4, month name, year, or all")
	groupBy := fs.String("group-by", "", "Grouping dimension: product, region, channel")
	limit := fs.Int("limit", 0, "Ranking size for top_* metrics")
	listAll := fs.Bool("list", false, "List available metrics")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	ds, err := dataset.LoadCSV(cfg.Data.CSVPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		os.Exit(1)
	}
	engine := metrics.NewEngine(ds)

	if *listAll {
		fmt.Println(engine.ListMetrics())
		return
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: biquery metrics [flags] <metric>")
		fmt.Fprintln(os.Stderr, engine.ListMetrics())
		os.Exit(1)
	}

	req, err := metrics.ParseRequest(fs.Arg(0), *period, *groupBy, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	result, err := engine.Calculate(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Format())
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "data/sample_sales_data.csv", "Output CSV path")
	transactions := fs.Int("transactions", 1000, "Number of transactions")
	year := fs.Int("year", 2024, "Calendar year to generate")
	seed := fs.Int64("seed", 42, "Random seed")
	fs.Parse(args)

	ds := dataset.Generate(dataset.GenerateConfig{
		Transactions: *transactions,
		Year:         *year,
		Seed:         *seed,
	})
	if err := dataset.WriteCSV(ds, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d transactions to %s\n", ds.Len(), *out)
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 10*time.Second, "Probe timeout")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	provider := buildProvider(cfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status, err := provider.HealthCheck(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Provider %s unhealthy: %v\n", provider.Name(), err)
		os.Exit(1)
	}
	fmt.Printf("Provider %s healthy (latency %s)\n", provider.Name(), status.Latency)
}

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.WithValidator(func(c *config.Config) error { return c.Validate() }).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func buildProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	base := openai.New(openai.Config{
		ProviderName:      cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger)

	retryCfg := llm.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries
	return llm.NewRetryableProvider(base, retryCfg, logger)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func fatal(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("biquery %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`biquery - BI query assistant

Usage:
  biquery ask [flags] "<question>"   Answer a business question
  biquery metrics [flags] <metric>   Calculate a metric offline
  biquery generate [flags]           Generate a sample sales dataset
  biquery health [flags]             Check LLM provider health
  biquery version                    Show version
  biquery help                       Show this help

Common flags:
  --config <path>   Config file (YAML); BIQUERY_* env vars override it`)
}
