// Package server is the reference REST backend the quill client talks to.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/bilyardvmetro/quill/internal/logger"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/pubsub"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	maxCommentLen = 2000
	maxImageBytes = 3 << 20
	maxBioLen     = 50
)

type Options struct {
	Repo        repo.Repo
	Bus         pubsub.Bus[model.Comment]
	Log         zerolog.Logger
	PageSize    int
	TokenTTL    time.Duration
	CORSOrigins string
	// Now is the clock used for timestamps and token expiry.
	Now func() time.Time
}

type Server struct {
	repo     repo.Repo
	bus      pubsub.Bus[model.Comment]
	log      zerolog.Logger
	pageSize int
	tokenTTL time.Duration
	cors     string
	now      func() time.Time
}

func New(o Options) *Server {
	s := &Server{
		repo:     o.Repo,
		bus:      o.Bus,
		log:      o.Log,
		pageSize: o.PageSize,
		tokenTTL: o.TokenTTL,
		cors:     o.CORSOrigins,
		now:      o.Now,
	}
	if s.bus == nil {
		s.bus = pubsub.NewMemoryBus[model.Comment]()
	}
	if s.pageSize <= 0 {
		s.pageSize = 20
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 8 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler mounts every route under /api.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.withUser)

	api.Handle("/auth/signup", s.handle(s.signup)).Methods(http.MethodPost)
	api.Handle("/auth/login", s.handle(s.login)).Methods(http.MethodPost)

	api.Handle("/posts", s.handle(s.listPosts)).Methods(http.MethodGet)
	api.Handle("/posts", s.handle(s.createPost)).Methods(http.MethodPost)
	api.Handle("/posts/{id}", s.handle(s.getPost)).Methods(http.MethodGet)
	api.Handle("/posts/{id}", s.handle(s.updatePost)).Methods(http.MethodPut)
	api.Handle("/post/{id}", s.handle(s.deletePost)).Methods(http.MethodDelete)

	api.Handle("/comments/{postId}", s.handle(s.listComments)).Methods(http.MethodGet)
	api.Handle("/comments/{postId}", s.handle(s.addComment)).Methods(http.MethodPost)
	api.Handle("/comments/{id}", s.handle(s.deleteComment)).Methods(http.MethodDelete)

	api.Handle("/likes", s.handle(s.toggleLike)).Methods(http.MethodPost)

	api.Handle("/categories", s.handle(s.listCategories)).Methods(http.MethodGet)
	api.Handle("/categories", s.handle(s.addCategory)).Methods(http.MethodPost)
	api.Handle("/categories/{id}", s.handle(s.renameCategory)).Methods(http.MethodPut)
	api.Handle("/categories/{id}", s.handle(s.deleteCategory)).Methods(http.MethodDelete)

	api.Handle("/reports", s.handle(s.listReports)).Methods(http.MethodGet)
	api.Handle("/reports/{postId}", s.handle(s.reportPost)).Methods(http.MethodPost)
	api.Handle("/reports/{postId}", s.handle(s.dismissReports)).Methods(http.MethodDelete)

	api.Handle("/users", s.handle(s.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.handle(s.getUser)).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.handle(s.updateUser)).Methods(http.MethodPut)

	api.HandleFunc("/ws/comments/{postId}", s.streamComments).Methods(http.MethodGet)

	r.Use(corsMiddleware(s.cors))
	// preflight requests never match a method-restricted route
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return logger.HTTPHooks(s.log, r)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle writes the error a handler returns as a JSON body whose status
// follows the error's class.
func (s *Server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status := statusOf(err)
		l := logctx.From(r.Context(), s.log)
		if status >= http.StatusInternalServerError {
			l.Error().Err(err).Msg("request failed")
		} else {
			l.Debug().Err(err).Int("status", status).Msg("request rejected")
		}
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			msg = "internal error"
		}
		writeJSON(w, status, map[string]string{"message": msg, "code": apperr.Code(err)})
	})
}

func statusOf(err error) int {
	switch apperr.Code(err) {
	case apperr.CodeAuthRequired:
		return http.StatusUnauthorized
	case apperr.CodeBadRequest:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("", "malformed request body")
	}
	return model.Validate(v)
}

func corsMiddleware(origins string) mux.MiddlewareFunc {
	allowed := map[string]struct{}{}
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; ok || len(allowed) == 0 {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }
