package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/54b3r/docchat-go/internal/docstore"
	"github.com/54b3r/docchat-go/internal/ingestion"
	"github.com/54b3r/docchat-go/internal/logging"
)

// handleCreateIndex handles POST /api/createIndex. It ingests every eligible
// file in the raw document directory. Chunks added before a failure stay in
// the index.
func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	src := &ingestion.DirSource{Root: s.docs.Root(), Allow: s.docs.Allowed}

	res, err := s.indexer.Ingest(r.Context(), src, func(msg string) {
		log.Debug("ingestion progress", slog.String("msg", msg))
	})
	if err != nil {
		s.metrics.ingestRunsTotal.WithLabelValues("error").Inc()
		log.Error("ingestion failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, indexResponse{
			statusResponse: statusResponse{Error: "failed to process documents: " + err.Error()},
			Documents:      res.Documents,
			Chunks:         res.Chunks,
		})
		return
	}

	s.metrics.ingestRunsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, indexResponse{
		statusResponse: statusResponse{
			Success: true,
			Message: fmt.Sprintf("indexed %d chunks from %d documents", res.Chunks, res.Documents),
		},
		Documents: res.Documents,
		Chunks:    res.Chunks,
	})
}

// handleResetIndex handles POST /api/resetIndex.
func (s *Server) handleResetIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Reset(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("index reset failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, statusResponse{Error: "failed to reset index: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "index reset"})
}

// handleUpload handles POST /api/upload. The multipart field "file" is
// validated against the allowed extensions and saved to the raw document
// directory, replacing any file with the same name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "multipart field \"file\" is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	err = s.docs.Save(header.Filename, file)
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrInvalidName),
		errors.Is(err, docstore.ErrDisallowedType),
		errors.Is(err, docstore.ErrEmpty):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Error("upload failed", slog.String("file", header.Filename), slog.Any("error", err))
		writeJSONError(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	log.Info("document uploaded", slog.String("file", header.Filename), slog.Int64("size", header.Size))
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "uploaded " + header.Filename})
}

// handleFiles handles GET /api/files.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.docs.List()
	if err != nil {
		logging.FromContext(r.Context()).Error("list documents failed", slog.Any("error", err))
		writeJSONError(w, "failed to list files", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, filesResponse{Success: true, Files: files, Count: len(files)})
}

// handleDeleteFile handles POST /api/deleteFile?fileName=<name>.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("fileName")
	if name == "" {
		writeJSONError(w, "fileName is required", http.StatusBadRequest)
		return
	}

	err := s.docs.Delete(name)
	switch {
	case err == nil:
		logging.FromContext(r.Context()).Info("document deleted", slog.String("file", name))
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "deleted " + name})
	case errors.Is(err, docstore.ErrNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, docstore.ErrInvalidName):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logging.FromContext(r.Context()).Error("delete failed", slog.String("file", name), slog.Any("error", err))
		writeJSONError(w, "failed to delete file", http.StatusInternalServerError)
	}
}
