package uploader

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"photodrop/internal/anonymize"
	"photodrop/internal/storage"
)

// Client visible error messages. Internal details never reach the client.
const (
	MsgNoFile          = "no file"
	MsgUnexpectedField = "unexpected field"
	MsgFileTooLarge    = "file too large"
	MsgUploadFailed    = "upload failed"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

type UploadResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename"`
}

// ErrorResponse is the body of every JSON error answered by the service
type ErrorResponse struct {
	Error string `json:"error"`
}

// sendJSON handles JSON response formatting consistently
func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

// HandleUpload handles POST /upload with a "photo" file and an optional "note"
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxRequestSize())

	// A body that is not multipart simply carries no file
	form, err := r.MultipartReader()
	if err != nil {
		log.Debug().Err(err).Msg("upload without multipart body")
	}

	req := &UploadRequest{
		Form:          form,
		ClientAddress: anonymize.ClientAddress(r),
		UserAgent:     r.UserAgent(),
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		h.sendError(w, err)
		return
	}

	log.Info().
		Str("filename", result.Filename).
		Int64("size", result.Size).
		Str("ip_hash", result.Record.IPHash).
		Msg("upload accepted")

	sendJSON(w, http.StatusOK, UploadResponse{
		OK:       true,
		Filename: result.Filename,
	})
}

// sendError maps ingest errors to a status and a generic message
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoFile):
		sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgNoFile})
	case errors.Is(err, ErrUnexpectedField):
		sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgUnexpectedField})
	case errors.Is(err, storage.ErrSizeExceeded):
		sendJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: MsgFileTooLarge})
	default:
		// Log the internal error but don't send it to the client
		log.Error().Err(err).Msg("upload failed")
		sendJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MsgUploadFailed})
	}
}
