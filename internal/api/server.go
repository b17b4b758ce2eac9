package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"godrift/domain/core"
	"godrift/internal"
	"godrift/internal/report"
	"godrift/ports"
)

// Server exposes finished batches over HTTP: raw runs and observations as
// JSON, and the validation report as JSON or rendered HTML.
type Server struct {
	router *gin.Engine
	reader ports.LedgerReaderPort
	logger *internal.Logger
}

// NewServer wires the routes over a ledger reader.
func NewServer(reader ports.LedgerReaderPort, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router: gin.Default(),
		reader: reader,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/api/batches", s.handleBatches)
	s.router.GET("/api/runs", s.handleRuns)
	s.router.GET("/api/table", s.handleTable)
	s.router.GET("/api/report", s.handleReport)
	s.router.GET("/report", s.handleReportHTML)
}

// Start runs the server on addr until it fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("serving drift API on http://%s", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBatches(c *gin.Context) {
	batches, err := s.reader.ListBatches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches, "count": len(batches)})
}

// resolveBatch picks the batch from the query string, falling back to the
// most recent one when none is given.
func (s *Server) resolveBatch(c *gin.Context) (core.BatchID, bool) {
	if q := c.Query("batch"); q != "" {
		return core.BatchID(q), true
	}
	batches, err := s.reader.ListBatches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", false
	}
	if len(batches) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batches recorded"})
		return "", false
	}
	return batches[len(batches)-1], true
}

func (s *Server) handleRuns(c *gin.Context) {
	batchID, ok := s.resolveBatch(c)
	if !ok {
		return
	}
	runs, err := s.reader.LoadRuns(c.Request.Context(), batchID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batchID, "runs": runs, "count": len(runs)})
}

func (s *Server) handleTable(c *gin.Context) {
	batchID, ok := s.resolveBatch(c)
	if !ok {
		return
	}
	observations, err := s.reader.LoadObservations(c.Request.Context(), batchID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batchID, "observations": observations, "count": len(observations)})
}

func (s *Server) handleReport(c *gin.Context) {
	batchID, ok := s.resolveBatch(c)
	if !ok {
		return
	}
	rep, err := s.reader.LoadReport(c.Request.Context(), batchID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleReportHTML(c *gin.Context) {
	batchID, ok := s.resolveBatch(c)
	if !ok {
		return
	}
	rep, err := s.reader.LoadReport(c.Request.Context(), batchID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	md := report.Markdown(rep)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	body := markdown.ToHTML([]byte(md), p, renderer)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, fmt.Sprintf(pageTemplate, body))
}

func (s *Server) renderError(c *gin.Context, err error) {
	if core.IsNotFoundError(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Drift Validation Report</title>
<style>
body { font-family: ui-monospace, monospace; max-width: 860px; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
th { background: #f4f4f4; }
code { background: #f4f4f4; padding: 1px 4px; }
</style>
</head>
<body>
%s
</body>
</html>`
