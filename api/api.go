// Package api implements the docwallet HTTP surface: the one-click
// approval page linked from document cells, the JSON decision endpoint,
// and read-only status routes. The engine owns all state transitions;
// handlers translate between HTTP and engine calls.
package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Naveen-807/Franky-Docs-sub000/config"
	"github.com/Naveen-807/Franky-Docs-sub000/engine"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/version"
)

// Server wraps the echo instance and its engine dependency.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	echo   *echo.Echo
}

// New builds the HTTP server with the standard middleware stack and all
// routes registered.
func New(cfg *config.Config, eng *engine.Engine) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(cfg.Server.RateLimit),
		)))
	}

	s := &Server{cfg: cfg, engine: eng, echo: e}

	e.GET("/health", s.handleHealth)
	e.GET("/cmd/:docID/:cmdID", s.handleApprovalPage)
	e.POST("/api/command-decision", s.handleDecision)
	e.GET("/api/status", s.handleStatus)
	e.GET("/api/docs", s.handleDocs)
	e.GET("/api/docs/:docID/commands", s.handleDocCommands)
	e.GET("/api/docs/:docID/audit", s.handleDocAudit)

	return s
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return s.echo.StartServer(srv)
}

// Shutdown drains in-flight requests up to the configured timeout.
func (s *Server) Shutdown() error {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	status := "healthy"
	code := http.StatusOK
	if !s.engine.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]string{
		"status":  status,
		"service": "docwallet",
		"version": version.Version,
	})
}

// decisionRequest binds from JSON bodies and the approval page's form
// posts alike.
type decisionRequest struct {
	DocID    string `json:"docId" form:"docId"`
	CmdID    string `json:"cmdId" form:"cmdId"`
	Decision string `json:"decision" form:"decision"`
}

type decisionResponse struct {
	CmdID  string `json:"cmdId"`
	Status string `json:"status"`
}

func (s *Server) handleDecision(c echo.Context) error {
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.DocID == "" || req.CmdID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "docId and cmdId are required")
	}

	cmd, err := s.engine.Decide(c.Request().Context(), req.DocID, req.CmdID, req.Decision)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, repo.ErrIllegalTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, decisionResponse{CmdID: cmd.CmdID, Status: string(cmd.Status)})
}

type statusResponse struct {
	Version  string         `json:"version"`
	Healthy  bool           `json:"healthy"`
	Commands map[string]int `json:"commands"`
	Ticks    interface{}    `json:"ticks"`
}

func (s *Server) handleStatus(c echo.Context) error {
	counts, err := s.engine.Store().CountCommandsByStatus()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	byName := make(map[string]int, len(counts))
	for status, n := range counts {
		byName[string(status)] = n
	}
	return c.JSON(http.StatusOK, statusResponse{
		Version:  version.Version,
		Healthy:  s.engine.Healthy(),
		Commands: byName,
		Ticks:    s.engine.TickStates(),
	})
}

type docResponse struct {
	DocID          string `json:"docId"`
	Name           string `json:"name"`
	PrimaryAddress string `json:"primaryAddress,omitempty"`
	HasSecrets     bool   `json:"hasSecrets"`
}

func (s *Server) handleDocs(c echo.Context) error {
	tracked, err := s.engine.Store().ListDocs()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]docResponse, len(tracked))
	for i, d := range tracked {
		out[i] = docResponse{
			DocID:          d.DocID,
			Name:           d.DisplayName,
			PrimaryAddress: d.PrimaryAddress,
			HasSecrets:     s.engine.Store().HasSecrets(d.DocID),
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleDocCommands(c echo.Context) error {
	docID := c.Param("docID")
	if _, err := s.engine.Store().Doc(docID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	cmds, err := s.engine.Store().ListRecentCommands(docID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cmds)
}

func (s *Server) handleDocAudit(c echo.Context) error {
	docID := c.Param("docID")
	if _, err := s.engine.Store().Doc(docID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	events, err := s.engine.Store().ListAudit(docID, 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

// approvalPage renders the one-click decision page. Kept inline: one
// template, no assets.
var approvalPage = template.Must(template.New("approval").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Command Approval</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 3rem auto; padding: 0 1rem; }
.cmd { font-family: monospace; background: #f4f4f4; padding: .75rem; border-radius: 4px; word-break: break-all; }
.status { font-weight: bold; }
.status.PENDING_APPROVAL { color: #b58900; }
.status.APPROVED, .status.EXECUTED { color: #2a7d2a; }
.status.REJECTED, .status.FAILED { color: #b02a2a; }
form { display: inline-block; margin-right: 1rem; margin-top: 1rem; }
button { font-size: 1rem; padding: .5rem 1.5rem; border-radius: 4px; border: none; cursor: pointer; }
.approve { background: #2a7d2a; color: white; }
.reject { background: #b02a2a; color: white; }
.result { margin-top: 1rem; color: #555; }
</style>
</head>
<body>
<h1>Command Approval</h1>
<p class="cmd">{{.Raw}}</p>
<p>Status: <span class="status {{.Status}}">{{.Status}}</span></p>
{{if .Decidable}}
<form method="POST" action="/api/command-decision">
<input type="hidden" name="docId" value="{{.DocID}}">
<input type="hidden" name="cmdId" value="{{.CmdID}}">
<input type="hidden" name="decision" value="APPROVED">
<button class="approve" type="submit">Approve</button>
</form>
<form method="POST" action="/api/command-decision">
<input type="hidden" name="docId" value="{{.DocID}}">
<input type="hidden" name="cmdId" value="{{.CmdID}}">
<input type="hidden" name="decision" value="REJECTED">
<button class="reject" type="submit">Reject</button>
</form>
{{else}}
<p class="result">This command is no longer awaiting a decision.</p>
{{end}}
{{if .ResultText}}<p class="result">Result: {{.ResultText}}</p>{{end}}
{{if .ErrorText}}<p class="result">Error: {{.ErrorText}}</p>{{end}}
</body>
</html>
`))

type approvalView struct {
	DocID      string
	CmdID      string
	Raw        string
	Status     string
	ResultText string
	ErrorText  string
	Decidable  bool
}

func (s *Server) handleApprovalPage(c echo.Context) error {
	docID, cmdID := c.Param("docID"), c.Param("cmdID")

	cmd, err := s.engine.Store().Command(cmdID)
	if err != nil || cmd.DocID != docID {
		return echo.NewHTTPError(http.StatusNotFound, "unknown command")
	}

	view := approvalView{
		DocID:      cmd.DocID,
		CmdID:      cmd.CmdID,
		Raw:        cmd.Raw,
		Status:     string(cmd.Status),
		ResultText: cmd.ResultText,
		ErrorText:  cmd.ErrorText,
		Decidable:  cmd.Status == repo.StatusPendingApproval,
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return approvalPage.Execute(c.Response(), view)
}
