package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/file_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	ps "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/server"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes health, metrics and read-mostly admin routes over HTTP.
type Server struct {
	fs     file_service.FileService
	ls     log_service.LogService
	router chi.Router

	server *http.Server
	addr   string
}

type healthResponse struct {
	Status      string `json:"status"`
	ActiveNodes int    `json:"activeNodes"`
	TotalNodes  int    `json:"totalNodes"`
}

func NewServer(fs file_service.FileService, gatherer prometheus.Gatherer, ls log_service.LogService) *Server {
	s := &Server{fs: fs, ls: ls}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/nodes", s.listNodes)
	r.Post("/nodes/{id}/fail", s.failNode)

	r.Get("/files", s.listFiles)
	r.Post("/files/repair", s.repairAll)
	r.Route("/files/{id}", func(fr chi.Router) {
		fr.Get("/", s.fileStatus)
		fr.Delete("/", s.deleteFile)
		fr.Get("/content", s.downloadFile)
		fr.Post("/repair", s.repairFile)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.addr = lis.Addr().String()
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.ls.Error(log_service.LogEvent{
				Message:  "Admin HTTP server error",
				Metadata: map[string]any{"address": s.addr, "error": err.Error()},
			})
		}
	}()

	s.ls.Info(log_service.LogEvent{
		Message:  "Admin HTTP server started",
		Metadata: map[string]any{"address": s.addr},
	})
	return nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	nodes := s.fs.Nodes()
	resp := healthResponse{Status: "ok", TotalNodes: len(nodes)}
	for _, n := range nodes {
		if n.State == node_registry.StateActive {
			resp.ActiveNodes++
		}
	}

	status := http.StatusOK
	if resp.ActiveNodes == 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fs.Nodes())
}

func (s *Server) failNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.fs.MarkNodeFailed(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.fs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) fileStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.fs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.fs.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) repairFile(w http.ResponseWriter, r *http.Request) {
	report, err := s.fs.Repair(r.Context(), chi.URLParam(r, "id"))
	if err != nil && len(report.Unrepairable) == 0 {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = ps.HTTPStatus(ps.CodeFor(err))
	}
	writeJSON(w, status, report)
}

func (s *Server) repairAll(w http.ResponseWriter, r *http.Request) {
	reports, err := s.fs.RepairAll(r.Context())
	status := http.StatusOK
	if err != nil {
		if reports == nil {
			writeError(w, err)
			return
		}
		status = ps.HTTPStatus(ps.CodeFor(err))
	}
	writeJSON(w, status, reports)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, ps.HTTPStatus(ps.CodeFor(err)), ps.NewErrorBody(err))
}
