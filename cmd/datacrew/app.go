package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/agent"
	"github.com/antgroup/datacrew/callback"
	"github.com/antgroup/datacrew/config"
	"github.com/antgroup/datacrew/crew"
	"github.com/antgroup/datacrew/dataset"
	"github.com/antgroup/datacrew/driver"
	"github.com/antgroup/datacrew/llm"
	"github.com/antgroup/datacrew/llm/openai"
	"github.com/antgroup/datacrew/metrics"
	"github.com/antgroup/datacrew/report"
	"github.com/antgroup/datacrew/script"
	"github.com/antgroup/datacrew/store"
	"github.com/antgroup/datacrew/task"
	"github.com/antgroup/datacrew/tool"
	"github.com/antgroup/datacrew/tool/executor"
	"github.com/antgroup/datacrew/tool/mcp"
	"github.com/antgroup/datacrew/utils/ratelimit"
)

// app is everything one command needs, built from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *dataset.Catalog
	recorder *metrics.Recorder
	tools    *tool.Registry
	store    *store.Store
	crew     *crew.Crew

	closers []func() error
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) scriptOptions() []script.Option {
	return []script.Option{
		script.WithSource(a.catalog),
		script.WithDataPaths(a.catalog.Paths()),
		script.WithTimeout(a.cfg.ScriptTimeout),
		script.WithMaxSteps(a.cfg.ScriptMaxSteps),
	}
}

// newTools opens the datasets and registers the executors. It needs no LLM.
func newTools(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	cat, err := dataset.NewCatalog(cfg.Entries(), dataset.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		catalog:  cat,
		recorder: metrics.New(metrics.DefaultConfig()),
		tools:    tool.NewRegistry(),
	}
	common := []executor.Option{
		executor.WithScriptOptions(a.scriptOptions()...),
		executor.WithPlotsDir(cfg.PlotsDir),
		executor.WithRecorder(a.recorder),
		executor.WithLogger(logger),
	}
	a.tools.Register(executor.AnalysisName, executor.NewAnalysisTool(common...), tool.TaskAnalysis)
	a.tools.Register(executor.PlottingName, executor.NewPlottingTool(common...), tool.TaskVisualization)

	if cfg.MCPServersFile != "" {
		data, err := os.ReadFile(cfg.MCPServersFile)
		if err != nil {
			return nil, errors.Wrap(err, "read mcp servers file")
		}
		servers, err := mcp.ParseServers(data)
		if err != nil {
			return nil, err
		}
		remote, closeFn, err := mcp.Mount(ctx, servers)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeFn)
		for _, t := range remote {
			a.tools.Register(t.Name(), t, tool.TaskAnalysis)
		}
		logger.Info("mounted mcp tools", "count", len(remote))
	}
	return a, nil
}

func newLLM(cfg *config.Config) (llm.LLM, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create llm client")
	}
	return client, nil
}

// newApp builds the full crew around client.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, client llm.LLM) (_ *app, err error) {
	a, err := newTools(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	if cfg.LLMRate > 0 {
		client = llm.WithRateLimit(client, ratelimit.NewTokenBucket(cfg.LLMRate, 1))
	}
	handler := callback.Multi(callback.NewLogHandler(logger), callback.NewMetricsHandler(a.recorder))
	common := []agent.Option{agent.WithCallback(handler), agent.WithLogger(logger)}
	datasets := a.catalog.Describe()

	frontman, err := agent.NewFrontman(client, common...)
	if err != nil {
		return nil, err
	}
	analyst, err := agent.NewAnalyst(client, datasets,
		append(common, agent.WithTools(a.tools.ForTask(tool.TaskAnalysis)))...)
	if err != nil {
		return nil, err
	}
	visualizer, err := agent.NewVisualizer(client,
		append(common, agent.WithTools(a.tools.ForTask(tool.TaskVisualization)))...)
	if err != nil {
		return nil, err
	}
	reporter, err := agent.NewReporter(client, common...)
	if err != nil {
		return nil, err
	}

	tasks, err := task.LoadFile(cfg.TasksFile)
	if err != nil {
		return nil, err
	}
	process, err := crew.ParseProcess(cfg.Process)
	if err != nil {
		return nil, err
	}
	opts := []crew.Option{
		crew.WithAgents(frontman, analyst, visualizer, reporter),
		crew.WithManager(frontman),
		crew.WithTasks(tasks),
		crew.WithProcess(process),
		crew.WithInput("datasets", datasets),
		crew.WithRenderer(report.NewRenderer(
			report.WithScriptOptions(a.scriptOptions()...),
			report.WithPlotsDir(cfg.PlotsDir),
			report.WithLogger(logger))),
		crew.WithCallback(handler),
		crew.WithRecorder(a.recorder),
		crew.WithLogger(logger),
	}
	if cfg.GraphFile != "" {
		src, err := os.ReadFile(cfg.GraphFile)
		if err != nil {
			return nil, errors.Wrap(err, "read graph file")
		}
		g, err := driver.ParseDOT(src)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crew.WithGraph(g))
	}
	if cfg.HistoryDSN != "" {
		st, err := store.Open(cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		opts = append(opts, crew.WithStore(st))
	}
	if a.crew, err = crew.New(opts...); err != nil {
		return nil, err
	}
	return a, nil
}
