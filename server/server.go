// Package server is the single page web UI of the crew.
package server

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/antgroup/datacrew/crew"
	"github.com/antgroup/datacrew/report"
	"github.com/antgroup/datacrew/store"
)

// Runner answers one query.
type Runner interface {
	Kickoff(ctx context.Context, query string) (*crew.Result, error)
}

// History reads stored runs.
type History interface {
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, limit int) ([]store.Run, error)
}

const _recentRuns = 10

type Server struct {
	echo    *echo.Echo
	runner  Runner
	history History
	metrics http.Handler
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*Server)

func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds one crew run started from the UI.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

func New(runner Runner, opts ...Option) *Server {
	s := &Server{runner: runner, logger: slog.Default(), timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error.Error())
			}
			s.logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))

	e.GET("/", s.index)
	e.POST("/query", s.query)
	e.GET("/runs", s.listRuns)
	e.GET("/runs/:id", s.getRun)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}
	s.echo = e
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) index(c echo.Context) error {
	return s.render(c, http.StatusOK, pageView{Runs: s.recent(c.Request().Context())})
}

// query runs the crew. Browsers get the page with the report; clients
// asking for JSON get the result summary.
func (s *Server) query(c echo.Context) error {
	q := strings.TrimSpace(c.FormValue("query"))
	if q == "" {
		return s.respondError(c, http.StatusBadRequest, q, crew.ErrEmptyQuery)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.timeout)
	defer cancel()
	res, err := s.runner.Kickoff(ctx, q)
	if err != nil && (res == nil || res.Report == nil) {
		s.logger.ErrorContext(ctx, "crew run failed", "query", q, "error", err.Error())
		return s.respondError(c, http.StatusInternalServerError, q, err)
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, summarize(res))
	}
	fragment, err := reportHTML(res.Report)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, pageView{
		Query:  q,
		RunID:  res.RunID,
		Status: res.Status,
		Report: fragment,
		Runs:   s.recent(ctx),
	})
}

func (s *Server) getRun(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	run, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load run").SetInternal(err)
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, run)
	}
	fragment, err := reportHTML(run.Report())
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, pageView{
		Query:  run.Query,
		RunID:  run.ID,
		Status: run.Status,
		Error:  run.Error,
		Report: fragment,
	})
}

func (s *Server) listRuns(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusOK, []store.Run{})
	}
	runs, err := s.history.List(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list runs").SetInternal(err)
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) recent(ctx context.Context) []store.Run {
	if s.history == nil {
		return nil
	}
	runs, err := s.history.List(ctx, _recentRuns)
	if err != nil {
		s.logger.WarnContext(ctx, "list runs failed", "error", err.Error())
		return nil
	}
	return runs
}

func (s *Server) respondError(c echo.Context, code int, q string, err error) error {
	if wantsJSON(c) {
		return c.JSON(code, map[string]string{"error": err.Error()})
	}
	return s.render(c, code, pageView{Query: q, Error: err.Error(), Runs: s.recent(c.Request().Context())})
}

func (s *Server) render(c echo.Context, code int, v pageView) error {
	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return errors.Wrap(err, "render page")
	}
	return c.HTMLBlob(code, buf.Bytes())
}

func reportHTML(rep *report.Report) (template.HTML, error) {
	if rep == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := rep.WriteHTML(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		c.QueryParam("format") == "json"
}

type resultSummary struct {
	RunID         string            `json:"run_id"`
	Query         string            `json:"query"`
	Status        string            `json:"status"`
	States        []string          `json:"states"`
	Errors        map[string]string `json:"errors,omitempty"`
	Analysis      string            `json:"analysis"`
	Visualization string            `json:"visualization_status,omitempty"`
	Message       string            `json:"visualization_message,omitempty"`
	ChartType     string            `json:"chart_type,omitempty"`
	ImagePath     string            `json:"image_path,omitempty"`
	Note          string            `json:"note,omitempty"`
}

func summarize(res *crew.Result) resultSummary {
	out := resultSummary{
		RunID:    res.RunID,
		Query:    res.Query,
		Status:   res.Status,
		States:   res.States,
		Errors:   res.Errors,
		Analysis: res.Analysis,
	}
	if rep := res.Report; rep != nil {
		v := rep.Visualization
		out.Visualization = string(v.Status)
		out.Message = v.Message
		out.ChartType = v.Kind
		out.Note = rep.Note
		if v.Image != nil {
			out.ImagePath = v.Image.Path
		}
	}
	return out
}
