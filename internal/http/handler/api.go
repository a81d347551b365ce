package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/logging"
	"captionrate/internal/rating"
	"captionrate/internal/upload"
	"captionrate/internal/vote"

	"github.com/go-chi/chi/v5"
)

// APIHandler serves the JSON API. Shapes mirror what the browser views read.
type APIHandler struct {
	Captions *caption.Service
	Decks    *rating.Registry
	Loader   *rating.Loader
	Uploads  *upload.Service
	Votes    VoteQueue
	Logger   *slog.Logger
}

// ListCaptions returns one page of captions. Query errors yield an empty page.
func (h *APIHandler) ListCaptions(w http.ResponseWriter, r *http.Request) {
	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	rows, err := h.Captions.Page(r.Context(), page)
	if errors.Is(err, caption.ErrInvalidPage) {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	from, to := caption.Range(page)
	writeJSON(w, http.StatusOK, map[string]any{
		"page":     page,
		"from":     from,
		"to":       to,
		"captions": rows,
	})
}

// Images resolves ?ids=a,b to an id→url map.
func (h *APIHandler) Images(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	urls, _ := h.Captions.ImageURLs(r.Context(), ids)
	writeJSON(w, http.StatusOK, map[string]any{"images": urls})
}

func (h *APIHandler) Deck(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	deck := h.Decks.Get(u.ID)
	h.Loader.Ensure(r.Context(), deck)
	writeJSON(w, http.StatusOK, deck.State())
}

type voteReq struct {
	CaptionID string `json:"caption_id"`
	Value     int    `json:"vote_value"`
}

// SubmitVote queues one vote and answers before it is written.
func (h *APIHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	var req voteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.CaptionID = strings.TrimSpace(req.CaptionID)
	if req.CaptionID == "" {
		http.Error(w, "caption_id required", http.StatusBadRequest)
		return
	}

	err := h.Votes.Submit(r.Context(), caption.Vote{CaptionID: req.CaptionID, ProfileID: u.ID, Value: req.Value})
	switch {
	case errors.Is(err, caption.ErrInvalidVote):
		http.Error(w, "vote_value must be 1 or -1", http.StatusBadRequest)
		return
	case errors.Is(err, vote.ErrStopped):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	advanced := h.Decks.Get(u.ID).Advance(req.CaptionID)
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "advanced": advanced})
}

func (h *APIHandler) Examples(w http.ResponseWriter, r *http.Request) {
	rows, _ := h.Captions.Examples(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"examples": rows})
}

func (h *APIHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	file, name, err := formFile(w, r, h.Uploads.MaxBytes)
	if err != nil {
		status, msg := uploadError(err)
		http.Error(w, msg, status)
		return
	}
	defer file.Close()

	img, err := h.Uploads.Upload(r.Context(), u.ID, name, file)
	if err != nil {
		status, msg := uploadError(err)
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (h *APIHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	rows, err := h.Uploads.Mine(r.Context(), u.ID)
	if err != nil {
		h.logger().Error("list uploads failed", "profile_id", u.ID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": rows})
}

func (h *APIHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if err := h.Uploads.Delete(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		status, msg := uploadError(err)
		http.Error(w, msg, status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) logger() *slog.Logger {
	return logging.OrDefault(h.Logger)
}
