package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"kasikai/internal/booking"
	"kasikai/internal/csvio"
	"kasikai/internal/ingest"
	"kasikai/internal/logging"
	"kasikai/internal/roomcfg"
)

type statusResponse struct {
	Status        string      `json:"status"`
	Timestamp     string      `json:"timestamp"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	LastRun       *runSummary `json:"last_run,omitempty"`
}

type runSummary struct {
	ID             string                     `json:"id"`
	Source         string                     `json:"source"`
	Status         string                     `json:"status"`
	StartedAt      time.Time                  `json:"started_at"`
	FinishedAt     time.Time                  `json:"finished_at"`
	FilesProcessed int                        `json:"files_processed"`
	FilesFailed    int                        `json:"files_failed"`
	RowsIn         int                        `json:"rows_in"`
	RecordsWritten int                        `json:"records_written"`
	Error          string                     `json:"error,omitempty"`
	Skips          map[booking.SkipReason]int `json:"skips,omitempty"`
}

func summarizeRun(run *ingest.Run) *runSummary {
	if run == nil {
		return nil
	}
	return &runSummary{
		ID:             run.ID,
		Source:         run.Source,
		Status:         run.Status,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		FilesProcessed: run.FilesProcessed,
		FilesFailed:    run.FilesFailed,
		RowsIn:         run.RowsIn,
		RecordsWritten: run.RecordsWritten,
		Error:          run.Error,
		Skips:          run.Skips,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	indexPath := filepath.Join(s.cfg.Paths.StaticDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		http.Error(w, "index.html not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, indexPath)
}

// handleBookings serves the canonical merged table as JSON. A missing output
// file means no data has been ingested yet and yields an empty list, not an
// error.
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	table, err := csvio.ReadFile(s.cfg.OutputCSVPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeJSON(w, http.StatusOK, []map[string]string{})
			return
		}
		s.logger.Error("failed to read bookings csv", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	bookings := make([]map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		entry := make(map[string]string, len(table.Columns))
		for _, column := range table.Columns {
			if column == "" {
				continue
			}
			entry[column] = row[column]
		}
		bookings[i] = entry
	}
	s.writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cfg, _ := roomcfg.Load(s.cfg.Paths.BookingConfig, s.logger)
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statusResponse{
		Status:        "running",
		Timestamp:     time.Now().Format("2006-01-02 15:04:05"),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.history != nil {
		last, err := s.history.LastRun(r.Context())
		if err != nil {
			s.logger.Error("failed to read last run", logging.Error(err))
		} else {
			resp.LastRun = summarizeRun(last)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"runs": []runSummary{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read run history", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	summaries := make([]runSummary, len(runs))
	for i := range runs {
		summaries[i] = *summarizeRun(&runs[i])
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}
