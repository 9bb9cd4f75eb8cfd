package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bilyardvmetro/quill/internal/detail"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/fatih/color"
)

var errPostNotFound = errors.New("post not found")

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

func printf(out io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(out, format, args...)
}

func likedWord(liked bool) string {
	if liked {
		return "liked"
	}
	return "unliked"
}

func author(u *model.UserRef) string {
	if u == nil || u.Name == "" {
		return "unknown"
	}
	return u.Name
}

func categoryLabel(c *model.CategoryRef) string {
	if c == nil {
		return "uncategorized"
	}
	return c.Label
}

// renderPosts marks the posts viewerID liked. An empty viewerID marks none.
func renderPosts(out io.Writer, posts []model.Post, viewerID string) {
	if len(posts) == 0 {
		printf(out, "no posts\n")
		return
	}
	for _, p := range posts {
		mark := ""
		if viewerID != "" && p.LikedBy(viewerID) {
			mark = "♥ "
		}
		_, _ = bold.Fprintf(out, "%s%s\n", mark, p.Title)
		_, _ = faint.Fprintf(out, "  %s · %s · %s · %d likes · %d comments\n",
			p.ID, author(p.User), categoryLabel(p.Category), len(p.Likes), int(p.Comments))
	}
}

func renderComment(out io.Writer, c model.Comment) {
	printf(out, "  %s: %s", author(c.User), c.Content)
	_, _ = faint.Fprintf(out, "  (%s, %d likes)\n", c.ID, len(c.Likes))
}

func renderDetail(out io.Writer, snap detail.Snapshot) {
	if snap.State == detail.NotFound || snap.Post == nil {
		printf(out, "Post not found\n")
		return
	}
	p := snap.Post
	_, _ = bold.Fprintf(out, "%s\n", p.Title)
	_, _ = faint.Fprintf(out, "by %s in %s · %d likes\n", author(p.User), categoryLabel(p.Category), len(p.Likes))
	if p.Description != "" {
		printf(out, "\n%s\n", p.Description)
	}
	if len(p.Images) > 0 {
		printf(out, "images: %s\n", strings.Join(p.Images, ", "))
	}
	printf(out, "\n%d comments\n", len(snap.Comments))
	for _, c := range snap.Comments {
		renderComment(out, c)
	}
}

func renderProfile(out io.Writer, u model.User, posts []model.Post, viewerID string) {
	_, _ = bold.Fprintf(out, "%s\n", u.Name)
	if u.Bio != "" {
		printf(out, "%s\n", u.Bio)
	}
	printf(out, "\n")
	renderPosts(out, posts, viewerID)
}
