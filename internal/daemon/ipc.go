/**
 * IPC Server.
 *
 * Line-oriented JSON over a UNIX domain socket: one Request per line, one
 * Response per line, newline-terminated. Every request gets exactly one
 * response; a malformed line ends the connection.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/errs"
)

// RequestKind discriminates an IPC Request.
type RequestKind string

const (
	ReqStatus            RequestKind = "status"
	ReqStop              RequestKind = "stop"
	ReqReload            RequestKind = "reload"
	ReqRunDiagnostic     RequestKind = "run_diagnostic"
	ReqGetResults        RequestKind = "get_results"
	ReqGetMonitoringData RequestKind = "get_monitoring_data"
	ReqPauseMonitoring   RequestKind = "pause_monitoring"
	ReqResumeMonitoring  RequestKind = "resume_monitoring"
	ReqRunAutofix        RequestKind = "run_autofix"
	ReqStartCapture      RequestKind = "start_capture"
	ReqStopCapture       RequestKind = "stop_capture"
	ReqPing              RequestKind = "ping"
)

// Request is one line of client-to-daemon IPC traffic.
type Request struct {
	Kind           RequestKind `json:"kind"`
	DiagnosticType string      `json:"diagnostic_type,omitempty"`
	Limit          int         `json:"limit,omitempty"`

	// Categories, Issues, and DryRun drive ReqRunAutofix: Issues names
	// diagnosed problems for the issue-driven planner; Categories restricts
	// the plan to fix actions in those categories when no issues are given;
	// DryRun asks the engine to report the plan without invoking the
	// provider.
	Categories []string `json:"categories,omitempty"`
	Issues     []string `json:"issues,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`

	// CaptureDevice and CaptureFilter drive ReqStartCapture.
	CaptureDevice string `json:"capture_device,omitempty"`
	CaptureFilter string `json:"capture_filter,omitempty"`
}

// ResponseKind discriminates an IPC Response.
type ResponseKind string

const (
	RespOk              ResponseKind = "ok"
	RespError           ResponseKind = "error"
	RespStatus          ResponseKind = "status"
	RespResults         ResponseKind = "results"
	RespMonitoringData  ResponseKind = "monitoring_data"
	RespAutofixResults  ResponseKind = "autofix_results"
	RespPong            ResponseKind = "pong"
)

// Response is one line of daemon-to-client IPC traffic.
type Response struct {
	Kind    ResponseKind `json:"kind"`
	Message string       `json:"message,omitempty"`

	State             string `json:"state,omitempty"`
	UptimeSecs        int64  `json:"uptime_secs,omitempty"`
	DiagnosticsRun    uint64 `json:"diagnostics_run,omitempty"`
	AlertsGenerated   uint64 `json:"alerts_generated,omitempty"`
	MonitoringActive  bool   `json:"monitoring_active,omitempty"`

	Results []string `json:"results,omitempty"`

	Data string `json:"data,omitempty"`

	FixResults []string `json:"fix_results,omitempty"`
}

// RequestHandler answers one decoded IPC Request. Implemented by Service.
type RequestHandler interface {
	Handle(req Request) Response
}

// Server listens on a UNIX domain socket and dispatches one goroutine per
// connection, each draining line-delimited JSON requests until EOF, a
// malformed line, or a write failure.
type Server struct {
	socketPath string
	handler    RequestHandler
	logger     *zap.SugaredLogger

	listener net.Listener
}

// NewServer constructs an idle Server bound to no socket yet.
func NewServer(socketPath string, handler RequestHandler, logger *zap.Logger) *Server {
	return &Server{socketPath: socketPath, handler: handler, logger: sugar(logger)}
}

// Start removes any stale socket file, ensures the parent directory exists,
// and binds a new UNIX listener.
func (s *Server) Start() error {
	if err := os.RemoveAll(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Platform, "daemon.Server.Start", "failed to remove stale socket", err)
	}
	if dir := filepath.Dir(s.socketPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.Wrap(errs.Platform, "daemon.Server.Start", "failed to create socket directory", err)
		}
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errs.Wrap(errs.Platform, "daemon.Server.Start", "failed to bind IPC socket", err)
	}
	s.listener = listener
	if s.logger != nil {
		s.logger.Infow("daemon.ipc", "msg", "listening", "socket", s.socketPath)
	}
	return nil
}

// Serve accepts connections until the listener is closed by Shutdown.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			if s.logger != nil {
				s.logger.Warnw("daemon.ipc", "error", "malformed request, closing connection", "detail", err)
			}
			return
		}
		resp := s.handler.Handle(req)
		encoded, err := json.Marshal(resp)
		if err != nil {
			if s.logger != nil {
				s.logger.Errorw("daemon.ipc", "error", err)
			}
			return
		}
		if _, err := conn.Write(append(encoded, '\n')); err != nil {
			return
		}
	}
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	os.RemoveAll(s.socketPath)
}
