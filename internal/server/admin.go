package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) error {
	cats, err := s.repo.ListCategories(r.Context())
	if err != nil {
		return err
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
	return nil
}

type categoryInput struct {
	Label string `json:"label" validate:"required,max=40"`
}

func (in *categoryInput) clean() error {
	in.Label = strings.TrimSpace(in.Label)
	if in.Label == "" {
		return apperr.Validation("label", "label is required")
	}
	if strings.EqualFold(in.Label, "all") {
		return apperr.Validation("label", "label is reserved")
	}
	return nil
}

func (s *Server) addCategory(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireAdmin(r); err != nil {
		return err
	}
	var in categoryInput
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := in.clean(); err != nil {
		return err
	}
	c := model.Category{ID: uuid.NewString(), Label: in.Label}
	if err := s.repo.CreateCategory(r.Context(), c); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (s *Server) renameCategory(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireAdmin(r); err != nil {
		return err
	}
	var in categoryInput
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := in.clean(); err != nil {
		return err
	}
	c, err := s.repo.RenameCategory(r.Context(), mux.Vars(r)["id"], in.Label)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireAdmin(r); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
	return nil
}

type reportInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) reportPost(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	var in reportInput
	if err := decode(r, &in); err != nil {
		return err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Not performative"
	}

	already, err := s.repo.AddReport(r.Context(), mux.Vars(r)["postId"], u.ID, reason)
	if err != nil {
		return err
	}
	ack := model.ReportAck{AlreadyReported: already, Message: "Post reported"}
	status := http.StatusCreated
	if already {
		ack.Message = "You already reported this post"
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
	return nil
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireAdmin(r); err != nil {
		return err
	}
	reports, err := s.repo.ListReports(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, reports)
	return nil
}

func (s *Server) dismissReports(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireAdmin(r); err != nil {
		return err
	}
	if err := s.repo.DismissReports(r.Context(), mux.Vars(r)["postId"]); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reports dismissed"})
	return nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) error {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		return err
	}
	viewer := userFrom(r.Context())
	for i := range users {
		if viewer == nil || (viewer.ID != users[i].ID && viewer.Role != model.RoleAdmin) {
			users[i].Email = ""
		}
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
	return nil
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	u, err := s.repo.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	if viewer := userFrom(r.Context()); viewer == nil || (viewer.ID != u.ID && viewer.Role != model.RoleAdmin) {
		u.Email = ""
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}

type userUpdate struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=50"`
	Bio  *string `json:"bio"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) error {
	me, err := requireUser(r)
	if err != nil {
		return err
	}
	id := mux.Vars(r)["id"]
	if me.ID != id {
		return apperr.ErrForbidden
	}

	var in userUpdate
	if err := decode(r, &in); err != nil {
		return err
	}
	if in.Bio != nil && utf8.RuneCountInString(*in.Bio) > maxBioLen {
		return apperr.Validation("bio", "bio cannot exceed 50 characters")
	}

	u, err := s.repo.UpdateUser(r.Context(), id, in.Name, in.Bio)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}
