package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"captionrate/internal/auth"
	"captionrate/internal/logging"
	"captionrate/internal/rating"

	"github.com/gorilla/websocket"
)

// Identities is the part of auth.Google the callback needs.
type Identities interface {
	AuthCodeURL() (string, error)
	Exchange(ctx context.Context, state, code string) (auth.Identity, error)
}

type AuthHandler struct {
	Google   Identities
	Profiles *auth.Profiles
	JWT      *auth.JWT
	Hub      *auth.Hub
	Decks    *rating.Registry
	Secure   bool
	Logger   *slog.Logger
}

func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		http.Error(w, "google sign-in not configured", http.StatusServiceUnavailable)
		return
	}
	url, err := h.Google.AuthCodeURL()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		http.Error(w, "google sign-in not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	if q.Get("error") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	id, err := h.Google.Exchange(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		h.logger().Warn("google sign-in failed", "error", err)
		if errors.Is(err, auth.ErrStateMismatch) {
			http.Error(w, "sign-in expired, try again", http.StatusBadRequest)
			return
		}
		http.Error(w, "sign-in failed", http.StatusUnauthorized)
		return
	}

	p, err := h.Profiles.Upsert(r.Context(), id)
	if err != nil {
		h.logger().Error("profile upsert failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	u := auth.User{ID: p.ID, Email: p.Email}
	token, err := h.JWT.Sign(u)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	auth.SetSessionCookie(w, token, h.JWT.TTL(), h.Secure)
	h.Hub.Publish(u.ID, auth.Event{Type: auth.EventSignedIn, User: &u})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Session answers the "who am I" call. Signed-out is a normal answer, not an error.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"signed_in": false, "user": nil}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		resp["signed_in"] = true
		resp["user"] = u
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.Secure)
	if u, ok := auth.UserFromContext(r.Context()); ok {
		h.Decks.Drop(u.ID)
		h.Hub.Publish(u.ID, auth.Event{Type: auth.EventSignedOut, User: &u})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams session changes for the signed-in profile over a websocket.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := h.Hub.Subscribe(u.ID)
	defer sub.Unsubscribe()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger().Debug("session events socket closed", "profile_id", u.ID, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
			if ev.Type == auth.EventSignedOut {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AuthHandler) logger() *slog.Logger {
	return logging.OrDefault(h.Logger)
}
