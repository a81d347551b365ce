package http

import (
	"log/slog"
	"net/http"
	"strings"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/config"
	"captionrate/internal/http/handler"
	mw "captionrate/internal/http/middleware"
	"captionrate/internal/metrics"
	"captionrate/internal/objstore"
	"captionrate/internal/rating"
	"captionrate/internal/upload"
	"captionrate/internal/view"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Deps are the long-lived pieces main builds once.
type Deps struct {
	DB      *gorm.DB
	JWT     *auth.JWT
	Google  *auth.Google // nil when Google sign-in is not configured
	Hub     *auth.Hub
	Decks   *rating.Registry
	Bucket  objstore.Bucket
	Votes   handler.VoteQueue
	View    *view.Renderer
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(mw.CORSOptions{
			Origins:     cfg.CORSAllowedOrigins,
			Credentials: cfg.CORSAllowCredentials,
			MaxAge:      cfg.CORSMaxAge,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	if local, ok := d.Bucket.(*objstore.Local); ok {
		r.Get("/objects/*", objectFiles(local.Root))
	}

	captions := &caption.Service{DB: d.DB, Logger: d.Logger, Metrics: d.Metrics}
	uploads := &upload.Service{
		DB:       d.DB,
		Bucket:   d.Bucket,
		MaxBytes: cfg.UploadMaxBytes,
		Logger:   d.Logger,
		Metrics:  d.Metrics,
	}
	loader := &rating.Loader{Source: captions, Logger: d.Logger}

	ah := &handler.AuthHandler{
		Profiles: &auth.Profiles{DB: d.DB},
		JWT:      d.JWT,
		Hub:      d.Hub,
		Decks:    d.Decks,
		Secure:   strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		Logger:   d.Logger,
	}
	if d.Google != nil {
		ah.Google = d.Google
	}

	pages := &handler.PageHandler{
		View:     d.View,
		Decks:    d.Decks,
		Loader:   loader,
		Captions: captions,
		Uploads:  uploads,
		Votes:    d.Votes,
		Logger:   d.Logger,
	}
	api := &handler.APIHandler{
		Captions: captions,
		Decks:    d.Decks,
		Loader:   loader,
		Uploads:  uploads,
		Votes:    d.Votes,
		Logger:   d.Logger,
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.LoadSession(d.JWT))

		r.Get("/", pages.Landing)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", ah.GoogleStart)
			r.Get("/callback", ah.Callback)
			r.Get("/session", ah.Session)
			r.Post("/signout", ah.SignOut)
			r.With(auth.RequireAuth).Get("/events", ah.Events)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireView)

			r.Get("/rate", pages.Rate)
			r.Post("/rate/vote", pages.Vote)
			r.Post("/rate/more", pages.More)
			r.Get("/table", pages.Table)
			r.Get("/upload", pages.UploadForm)
			r.Post("/upload", pages.Upload)
			r.Post("/upload/{id}/delete", pages.DeleteUpload)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Get("/captions", api.ListCaptions)
			r.Get("/images", api.Images)
			r.Get("/deck", api.Deck)
			r.Post("/votes", api.SubmitVote)
			r.Get("/caption-examples", api.Examples)

			r.Post("/uploads", api.CreateUpload)
			r.Get("/uploads", api.ListUploads)
			r.Delete("/uploads/{id}", api.DeleteUpload)
		})
	})

	return r
}

// objectFiles serves stored objects from the local bucket without directory listings.
func objectFiles(root string) http.HandlerFunc {
	files := http.StripPrefix("/objects/", http.FileServer(http.Dir(root)))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	}
}
