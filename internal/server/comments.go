package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func commentTopic(postID string) string { return "comments:" + postID }

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) error {
	sort, ok := model.ParseCommentSort(r.URL.Query().Get("sortBy"))
	if !ok {
		sort = model.CommentsRecent
	}
	comments, err := s.repo.ListComments(r.Context(), mux.Vars(r)["postId"], sort)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, comments)
	return nil
}

type commentInput struct {
	Content string `json:"content"`
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	var in commentInput
	if err := decode(r, &in); err != nil {
		return err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return apperr.Validation("content", "comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return apperr.Validation("content", "comment too long")
	}

	c, err := s.repo.CreateComment(r.Context(), repo.CommentRecord{
		ID:        uuid.NewString(),
		PostID:    mux.Vars(r)["postId"],
		UserID:    u.ID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}

	s.bus.Publish(commentTopic(c.Post), *c)
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	id := mux.Vars(r)["id"]

	c, err := s.repo.GetComment(r.Context(), id)
	if err != nil {
		return err
	}
	authorID := ""
	if c.User != nil {
		authorID = c.User.ID
	}
	if err := ownerOrAdmin(u, authorID); err != nil {
		return err
	}
	if err := s.repo.DeleteComment(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted"})
	return nil
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}
	var target model.Target
	if err := decode(r, &target); err != nil {
		return err
	}
	liked, count, err := s.repo.ToggleLike(r.Context(), u.ID, target)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, model.LikeResult{Liked: liked, LikeCount: &count})
	return nil
}
