package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kasikai/internal/csvio"
	"kasikai/internal/logging"
)

type uploadResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploaded_files"`
	FailedFiles   []string `json:"failed_files"`
	TotalUploaded int      `json:"total_uploaded"`
	TotalFailed   int      `json:"total_failed"`
}

// handleUpload accepts multipart CSV uploads into the inbox and runs the
// pipeline synchronously, so the caller learns whether processing succeeded.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	maxBytes := s.cfg.MaxUploadBytes()
	if maxBytes <= 0 {
		maxBytes = 16 * 1024 * 1024
	}
	maxFiles := s.cfg.Server.MaxFilesPerUpload
	if maxFiles <= 0 {
		maxFiles = 10
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*int64(maxFiles)+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeJSON(w, http.StatusBadRequest, uploadResponse{
			Message: "invalid multipart request",
		})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeJSON(w, http.StatusBadRequest, uploadResponse{
			Message: "no files selected",
		})
		return
	}
	if len(files) > maxFiles {
		s.writeJSON(w, http.StatusBadRequest, uploadResponse{
			Message: fmt.Sprintf("too many files (maximum %d per upload)", maxFiles),
		})
		return
	}

	if err := s.cfg.EnsureDirectories(); err != nil {
		s.logger.Error("failed to prepare inbox", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to prepare inbox")
		return
	}

	var uploaded, failed []string
	for _, header := range files {
		name, err := s.saveUpload(header, maxBytes)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %s", header.Filename, err))
			s.logger.Warn("upload rejected",
				logging.String(logging.FieldFile, header.Filename),
				logging.Error(err),
			)
			continue
		}
		uploaded = append(uploaded, name)
		s.logger.Info("file uploaded",
			logging.String(logging.FieldFile, name),
			logging.Int64("size", header.Size),
		)
	}

	message := "no files could be uploaded"
	if len(uploaded) > 0 {
		if _, err := s.ingestor.Run(r.Context(), "upload"); err != nil {
			message = fmt.Sprintf("%d file(s) uploaded but processing failed", len(uploaded))
		} else {
			message = fmt.Sprintf("%d file(s) uploaded and processed", len(uploaded))
		}
		if len(failed) > 0 {
			message = fmt.Sprintf("%s; %d file(s) rejected", message, len(failed))
		}
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success:       len(uploaded) > 0,
		Message:       message,
		UploadedFiles: uploaded,
		FailedFiles:   failed,
		TotalUploaded: len(uploaded),
		TotalFailed:   len(failed),
	})
}

// saveUpload validates and stores one uploaded file in the inbox, returning
// the stored name. An existing name gets a numeric suffix instead of being
// overwritten.
func (s *Server) saveUpload(header *multipart.FileHeader, maxBytes int64) (string, error) {
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return "", fmt.Errorf("only csv files are allowed")
	}
	if header.Size > maxBytes {
		return "", fmt.Errorf("file exceeds %d MiB limit", maxBytes/(1024*1024))
	}

	name := sanitizeFilename(header.Filename)
	path := filepath.Join(s.cfg.Paths.InboxDir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s_%d%s", stem, counter, ext)
		path = filepath.Join(s.cfg.Paths.InboxDir, name)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("file exceeds %d MiB limit", maxBytes/(1024*1024))
	}

	// Probe the content before committing, so garbage never lands in the
	// inbox where the watcher would pick it up.
	if _, err := csvio.Parse(data); err != nil {
		return "", fmt.Errorf("not a readable csv file")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return name, nil
}

// sanitizeFilename reduces an uploaded name to a safe basename. Names that
// sanitize to nothing get a timestamped fallback.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" || strings.EqualFold(cleaned, "csv") {
		return fmt.Sprintf("upload_%s.csv", time.Now().Format("20060102_150405"))
	}
	if !strings.EqualFold(filepath.Ext(cleaned), ".csv") {
		cleaned += ".csv"
	}
	return cleaned
}
