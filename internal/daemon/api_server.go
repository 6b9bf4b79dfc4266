package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"shuttle/internal/api"
	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/logging"
	"shuttle/internal/services"
	"shuttle/internal/transfer"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/transfers", srv.handleTransfers)
	mux.HandleFunc("/api/transfers/", srv.handleTransferItem)
	mux.HandleFunc("/api/stats", srv.handleStats)
	mux.HandleFunc("/api/events", srv.handleEvents)
	mux.HandleFunc("/api/hosts", srv.handleHosts)
	mux.HandleFunc("/api/hosts/", srv.handleHostItem)
	mux.HandleFunc("/api/history", srv.handleHistory)

	srv.server = &http.Server{
		Handler:           withAuth(cfg.Paths.APIToken, mux),
		ReadHeaderTimeout: 5 * time.Second,
		// Long-polled /api/events responses can take minutes; the write
		// timeout stays generous so follow requests are not cut off.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the configured bind
// uses port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LockFilePath:  status.LockFilePath,
		HistoryDBPath: status.HistoryDBPath,
		Hosts:         status.Hosts,
		Sessions:      status.Sessions,
		Stats:         api.FromStats(status.Stats),
	})
}

func (s *apiServer) handleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransfers(w, r)
	case http.MethodPost:
		s.submitTransfers(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listTransfers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := transfer.Filter{
		SourceHostID: strings.TrimSpace(query.Get("source")),
		DestHostID:   strings.TrimSpace(query.Get("dest")),
		BatchID:      strings.TrimSpace(query.Get("batch")),
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := transfer.ParseStatus(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}
	records := s.daemon.transfers.List(filter)
	s.writeJSON(w, http.StatusOK, api.TransferListResponse{Transfers: api.FromRecords(records)})
}

func (s *apiServer) submitTransfers(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	files := make([]transfer.FileSpec, 0, len(req.Files))
	for _, file := range req.Files {
		files = append(files, transfer.FileSpec{Path: file.Path, Name: file.Name, Size: file.Size})
	}
	batchID, records, err := s.daemon.transfers.Submit(transfer.SubmitRequest{
		SourceHostID: req.SourceServerID,
		DestHostID:   req.DestServerID,
		Files:        files,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{
		BatchID:   batchID,
		Transfers: api.FromRecords(records),
	})
}

func (s *apiServer) handleTransferItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transfers/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "transfer not found")
		return
	}
	if action != "" {
		if action != "skip" || r.Method != http.MethodPost {
			s.writeError(w, http.StatusNotFound, "unknown transfer action")
			return
		}
		if err := s.daemon.transfers.MarkSkipped(id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		record, err := s.daemon.transfers.Get(id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TransferResponse{Transfer: api.FromRecord(record)})
		return
	}
	switch r.Method {
	case http.MethodGet:
		record, err := s.daemon.transfers.Get(id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TransferResponse{Transfer: api.FromRecord(record)})
	case http.MethodDelete:
		changed, err := s.daemon.transfers.Cancel(id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: changed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(s.daemon.transfers.Stats()))
}

// handleEvents serves the event feed. since=0 returns a synthetic snapshot
// of the whole transfer table plus the current cursor, so a subscriber can
// render state immediately and then follow live events.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	hub := s.daemon.hub
	if since == 0 && !follow {
		snapshot := events.Event{
			Sequence:  hub.LastSequence(),
			Type:      events.TypeSnapshot,
			Timestamp: time.Now().UTC(),
			Payload:   s.daemon.transfers.Snapshot(),
		}
		s.writeJSON(w, http.StatusOK, api.EventStreamResponse{
			Events: []api.Event{api.FromEvent(snapshot)},
			Next:   snapshot.Sequence,
		})
		return
	}

	evts, next, err := hub.Fetch(r.Context(), since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventStreamResponse{
		Events: api.FromEvents(evts),
		Next:   next,
	})
}

func (s *apiServer) handleHosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	all := s.daemon.registry.All()
	out := make([]api.Host, 0, len(all))
	for _, host := range all {
		out = append(out, api.FromHost(host))
	}
	s.writeJSON(w, http.StatusOK, api.HostListResponse{Hosts: out})
}

func (s *apiServer) handleHostItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/hosts/")
	hostID, action, ok := strings.Cut(rest, "/")
	if !ok || hostID == "" {
		s.writeError(w, http.StatusNotFound, "host not found")
		return
	}
	host, err := s.daemon.registry.Get(hostID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	switch action {
	case "ls":
		entries, err := s.daemon.sessions.ListDir(r.Context(), host, path)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ListDirResponse{Path: path, Entries: api.FromEntries(entries)})
	case "exists":
		exists, err := s.daemon.sessions.Exists(r.Context(), host, path)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ExistsResponse{Path: path, Exists: exists})
	default:
		s.writeError(w, http.StatusNotFound, "unknown host action")
	}
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	journal := s.daemon.journal
	if journal == nil {
		s.writeJSON(w, http.StatusOK, api.HistoryResponse{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := journal.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]api.Transfer, 0, len(records))
	for i := range records {
		out = append(out, api.FromRecord(&records[i]))
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Transfers: out})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConnection):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
