package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/logging"
	"captionrate/internal/rating"
	"captionrate/internal/upload"
	"captionrate/internal/view"

	"github.com/go-chi/chi/v5"
)

// VoteQueue accepts votes without waiting for them to be written.
type VoteQueue interface {
	Submit(ctx context.Context, v caption.Vote) error
}

// PageHandler serves the server-rendered browser views.
type PageHandler struct {
	View     *view.Renderer
	Decks    *rating.Registry
	Loader   *rating.Loader
	Captions *caption.Service
	Uploads  *upload.Service
	Votes    VoteQueue
	Logger   *slog.Logger
}

var tabPaths = map[rating.Tab]string{
	rating.TabRating: "/rate",
	rating.TabTable:  "/table",
	rating.TabUpload: "/upload",
}

// Landing shows the sign-in page, or sends a signed-in user back to their last tab.
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, tabPaths[h.Decks.Get(u.ID).Tab()], http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, view.PageLanding, view.Data{})
}

func (h *PageHandler) Rate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	deck := h.Decks.Get(u.ID)
	deck.SetTab(rating.TabRating)
	h.Loader.Ensure(r.Context(), deck)

	h.render(w, r, http.StatusOK, view.PageRate, view.Data{
		Title: "Rate",
		User:  &u,
		Tab:   rating.TabRating,
		Deck:  deck.State(),
	})
}

// Vote records a swipe on the top card and moves on without waiting for the write.
func (h *PageHandler) Vote(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	captionID := r.PostForm.Get("caption_id")
	value, err := strconv.Atoi(r.PostForm.Get("value"))
	if err != nil || (value != 1 && value != -1) {
		http.Error(w, "value must be 1 or -1", http.StatusBadRequest)
		return
	}

	if h.Decks.Get(u.ID).Advance(captionID) {
		err := h.Votes.Submit(r.Context(), caption.Vote{CaptionID: captionID, ProfileID: u.ID, Value: value})
		if err != nil {
			h.logger().Warn("vote not queued", "caption_id", captionID, "error", err)
		}
	}
	http.Redirect(w, r, "/rate", http.StatusSeeOther)
}

func (h *PageHandler) More(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	deck := h.Decks.Get(u.ID)
	deck.LoadMore()
	h.Loader.Load(r.Context(), deck)
	http.Redirect(w, r, "/rate", http.StatusSeeOther)
}

func (h *PageHandler) Table(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	h.Decks.Get(u.ID).SetTab(rating.TabTable)

	// Query errors are logged by the service and render as an empty table.
	examples, _ := h.Captions.Examples(r.Context())

	h.render(w, r, http.StatusOK, view.PageTable, view.Data{
		Title:    "Examples",
		User:     &u,
		Tab:      rating.TabTable,
		Examples: examples,
	})
}

var notices = map[string]string{
	"uploaded": "Upload complete.",
	"deleted":  "Upload deleted.",
}

func (h *PageHandler) UploadForm(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	h.renderUpload(w, r, u, http.StatusOK, "", notices[r.URL.Query().Get("status")])
}

func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	file, name, err := formFile(w, r, h.Uploads.MaxBytes)
	if err == nil {
		defer file.Close()
		_, err = h.Uploads.Upload(r.Context(), u.ID, name, file)
	}
	if err != nil {
		status, msg := uploadError(err)
		h.renderUpload(w, r, u, status, "Upload failed: "+msg, "")
		return
	}
	http.Redirect(w, r, "/upload?status=uploaded", http.StatusSeeOther)
}

func (h *PageHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	if err := h.Uploads.Delete(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		status, msg := uploadError(err)
		h.renderUpload(w, r, u, status, "Delete failed: "+msg, "")
		return
	}
	http.Redirect(w, r, "/upload?status=deleted", http.StatusSeeOther)
}

func (h *PageHandler) renderUpload(w http.ResponseWriter, r *http.Request, u auth.User, status int, alert, notice string) {
	h.Decks.Get(u.ID).SetTab(rating.TabUpload)

	mine, err := h.Uploads.Mine(r.Context(), u.ID)
	if err != nil {
		h.logger().Error("list uploads failed", "profile_id", u.ID, "error", err)
	}
	h.render(w, r, status, view.PageUpload, view.Data{
		Title:    "Upload",
		User:     &u,
		Tab:      rating.TabUpload,
		Alert:    alert,
		Notice:   notice,
		Uploads:  mine,
		MaxBytes: h.Uploads.MaxBytes,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data view.Data) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.View.Render(w, page, data); err != nil {
		h.logger().Error("render failed", "page", page, "path", r.URL.Path, "error", err)
	}
}

func (h *PageHandler) logger() *slog.Logger {
	return logging.OrDefault(h.Logger)
}

// uploadError maps upload failures to a status and a message fit for an alert.
func uploadError(err error) (int, string) {
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "choose an image to upload"
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file is too large"
	case errors.Is(err, upload.ErrNotImage):
		return http.StatusUnsupportedMediaType, "only PNG, JPEG and GIF images are accepted"
	case errors.Is(err, upload.ErrForbidden):
		return http.StatusForbidden, "that upload is not yours"
	case errors.Is(err, upload.ErrNotFound):
		return http.StatusNotFound, "upload not found"
	default:
		return http.StatusInternalServerError, "storage error, try again"
	}
}
