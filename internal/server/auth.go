package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey struct{}

var userKey ctxKey

// withUser resolves the bearer token and puts the user into the request
// context. Requests without a valid token go through as guests.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.repo.UserByToken(r.Context(), token, s.now())
		if err != nil {
			if !isNotFound(err) {
				l := logctx.From(r.Context(), s.log)
				l.Warn().Err(err).Msg("token lookup failed")
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// userFrom returns the authenticated user or nil for guests.
func userFrom(ctx context.Context) *model.User {
	if v := ctx.Value(userKey); v != nil {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func requireUser(r *http.Request) (*model.User, error) {
	u := userFrom(r.Context())
	if u == nil {
		return nil, apperr.ErrAuthRequired
	}
	return u, nil
}

func requireAdmin(r *http.Request) (*model.User, error) {
	u, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleAdmin {
		return nil, apperr.ErrForbidden
	}
	return u, nil
}

// ownerOrAdmin allows authorID itself and admins.
func ownerOrAdmin(u *model.User, authorID string) error {
	if u.Role == model.RoleAdmin || (authorID != "" && u.ID == authorID) {
		return nil
	}
	return apperr.ErrForbidden
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) error {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	rec := &repo.UserRecord{}
	rec.ID = uuid.NewString()
	rec.Name = strings.TrimSpace(req.Name)
	rec.Email = strings.TrimSpace(req.Email)
	rec.Role = model.RoleUser
	rec.PasswordHash = hash
	if err := s.repo.CreateUser(r.Context(), rec); err != nil {
		return err
	}

	sess, err := s.issue(r.Context(), &rec.User)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, sess)
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	rec, err := s.repo.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if isNotFound(err) {
			return errBadCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(req.Password)) != nil {
		return errBadCredentials
	}

	sess, err := s.issue(r.Context(), &rec.User)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sess)
	return nil
}

var errBadCredentials = apperr.Validation("", "invalid email or password")

func (s *Server) issue(ctx context.Context, u *model.User) (*model.Session, error) {
	token := uuid.NewString()
	expires := s.now().Add(s.tokenTTL)
	if err := s.repo.SaveToken(ctx, token, u.ID, expires); err != nil {
		return nil, err
	}
	return &model.Session{Token: token, ID: u.ID, Name: u.Name, Role: u.Role, ExpiresAt: expires}, nil
}
