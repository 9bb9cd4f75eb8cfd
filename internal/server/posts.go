package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	categoryID := ""
	if label := strings.TrimSpace(q.Get("category")); label != "" && !strings.EqualFold(label, "all") {
		c, err := s.repo.CategoryByLabel(r.Context(), label)
		if err != nil {
			if isNotFound(err) {
				writeJSON(w, http.StatusOK, []any{})
				return nil
			}
			return err
		}
		categoryID = c.ID
	}

	posts, err := s.repo.ListPosts(r.Context(), categoryID, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, posts)
	return nil
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) error {
	p, err := s.repo.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

type postUpdate struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	id := mux.Vars(r)["id"]

	var upd postUpdate
	if err := decode(r, &upd); err != nil {
		return err
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if t == "" {
			return apperr.Validation("title", "title cannot be empty")
		}
		upd.Title = &t
	}

	current, err := s.repo.GetPost(r.Context(), id)
	if err != nil {
		return err
	}
	if err := ownerOrAdmin(u, current.AuthorID()); err != nil {
		return err
	}

	p, err := s.repo.UpdatePost(r.Context(), id, upd.Title, upd.Description)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	id := mux.Vars(r)["id"]

	current, err := s.repo.GetPost(r.Context(), id)
	if err != nil {
		return err
	}
	if err := ownerOrAdmin(u, current.AuthorID()); err != nil {
		return err
	}
	if err := s.repo.DeletePost(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
	return nil
}

// createPost accepts the multipart form the client uploads. Image bytes are
// checked and dropped; only their generated names are kept.
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, 16*maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Validation("images", "upload too large")
		}
		return apperr.Validation("", "malformed form")
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	category := strings.TrimSpace(r.FormValue("category"))
	if title == "" || description == "" || category == "" {
		return apperr.Validation("", "title, description and category are required")
	}

	categoryID := category
	if c, err := s.repo.CategoryByLabel(r.Context(), category); err == nil {
		categoryID = c.ID
	}

	var images []string
	for _, fh := range r.MultipartForm.File["images"] {
		if fh.Size > maxImageBytes {
			return apperr.Validation("images", fmt.Sprintf("%s must be under 3MB", fh.Filename))
		}
		images = append(images, "uploads/"+uuid.NewString()+"-"+filepath.Base(fh.Filename))
	}

	p, err := s.repo.CreatePost(r.Context(), repo.PostRecord{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		UserID:      u.ID,
		CategoryID:  categoryID,
		Images:      images,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		if isNotFound(err) {
			return apperr.Validation("category", "unknown category")
		}
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}
