package interact

import (
	"context"
	"fmt"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
)

func (e *Engine) requireAdmin() (*model.Session, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		notify.Error(e.notifier, "Admins only")
		return nil, apperr.ErrForbidden
	}
	return sess, nil
}

// FlaggedPosts lists reported posts grouped with their report counts.
func (e *Engine) FlaggedPosts(ctx context.Context) ([]model.Report, error) {
	sess, err := e.requireAdmin()
	if err != nil {
		return nil, err
	}
	reports, err := e.api.ListReports(ctx, sess.Token)
	if err != nil {
		return nil, e.fail("Failed to load flagged posts", fmt.Errorf("list reports: %w", err))
	}
	return reports, nil
}

func (e *Engine) DismissReports(ctx context.Context, postID string) error {
	sess, err := e.requireAdmin()
	if err != nil {
		return err
	}
	if err := e.api.DismissReports(ctx, sess.Token, postID); err != nil {
		return e.fail("Failed to dismiss reports", fmt.Errorf("dismiss reports of %s: %w", postID, err))
	}
	notify.Success(e.notifier, "Reports dismissed")
	return nil
}
