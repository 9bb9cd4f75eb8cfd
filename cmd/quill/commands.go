package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/bilyardvmetro/quill/internal/detail"
	"github.com/bilyardvmetro/quill/internal/interact"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/thread"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":        cmdLogin,
	"signup":       cmdSignup,
	"logout":       cmdLogout,
	"whoami":       cmdWhoami,
	"feed":         cmdFeed,
	"top":          cmdTop,
	"show":         cmdShow,
	"watch":        cmdWatch,
	"like":         cmdLike,
	"like-comment": cmdLikeComment,
	"comment":      cmdComment,
	"uncomment":    cmdUncomment,
	"title":        cmdTitle,
	"rm":           cmdRemove,
	"report":       cmdReport,
	"reports":      cmdReports,
	"dismiss":      cmdDismiss,
	"new":          cmdNew,
	"categories":   cmdCategories,
	"profile":      cmdProfile,
	"bio":          cmdBio,
}

func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string, minArgs int, what string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usage("%s: %v", fs.Name(), err)
	}
	if fs.NArg() < minArgs {
		return nil, usage("%s: expected %s", fs.Name(), what)
	}
	return fs.Args(), nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("QUILL_PASSWORD"), "account password")
	if _, err := parse(fs, args, 0, ""); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		notify.Error(a.notifier, "Please fill in all fields")
		return usage("login: -email and -password are required")
	}

	sess, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		notify.Error(a.notifier, "Invalid email or password")
		return err
	}
	if _, err := a.jar.Save(*sess); err != nil {
		return err
	}
	notify.Success(a.notifier, "Logged in successfully!")
	return nil
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "signup")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("QUILL_PASSWORD"), "account password")
	if _, err := parse(fs, args, 0, ""); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		notify.Error(a.notifier, "Please fill in all fields")
		return usage("signup: -name, -email and -password are required")
	}
	if !strings.Contains(*email, "@") {
		notify.Error(a.notifier, "Please use a valid email address")
		return usage("signup: invalid email")
	}

	sess, err := a.client.Signup(ctx, *name, *email, *password)
	if err != nil {
		notify.Error(a.notifier, "Signup failed")
		return err
	}
	if _, err := a.jar.Save(*sess); err != nil {
		return err
	}
	notify.Success(a.notifier, "Account created successfully!")
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := a.jar.Clear(); err != nil {
		return err
	}
	notify.Info(a.notifier, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	sess := a.jar.Current()
	if sess == nil {
		printf(a.out, "not logged in\n")
		return nil
	}
	printf(a.out, "%s (%s) %s, session until %s\n", sess.Name, sess.Role, sess.ID, sess.ExpiresAt.Local().Format("15:04"))
	return nil
}

func cmdFeed(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "feed")
	category := fs.String("category", model.AllCategories, "category label or All")
	modeFlag := fs.String("mode", string(model.SortPopularity), "popularity or recency")
	if _, err := parse(fs, args, 0, ""); err != nil {
		return err
	}
	mode, ok := model.ParseSortMode(*modeFlag)
	if !ok {
		return usage("feed: unknown mode %q", *modeFlag)
	}

	posts, err := a.feed.Sync(ctx, *category, mode)
	if err != nil {
		return err
	}
	renderPosts(a.out, posts, a.viewerID())
	return nil
}

func cmdTop(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "top")
	n := fs.Int("n", 5, "number of categories")
	if _, err := parse(fs, args, 0, ""); err != nil {
		return err
	}
	top, err := a.feed.TopCategories(ctx, *n)
	if err != nil {
		return err
	}
	for i, c := range top {
		printf(a.out, "%2d. %-20s %d posts\n", i+1, c.Label, c.Count)
	}
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "show")
	sortFlag := fs.String("sort", string(model.CommentsRecent), "recent or likes")
	rest, err := parse(fs, args, 1, "<postId>")
	if err != nil {
		return err
	}
	sort, ok := model.ParseCommentSort(*sortFlag)
	if !ok {
		return usage("show: unknown sort %q", *sortFlag)
	}

	v := a.view(rest[0])
	defer v.Close()
	v.Thread().SetSort(sort)
	snap := v.Open(ctx)
	renderDetail(a.out, snap)
	if snap.State == detail.NotFound {
		return errPostNotFound
	}
	return nil
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "watch"), args, 1, "<postId>")
	if err != nil {
		return err
	}
	v := a.view(rest[0])
	defer v.Close()

	snap := v.Open(ctx)
	renderDetail(a.out, snap)
	if snap.Post == nil {
		return errPostNotFound
	}
	notify.Info(a.notifier, "Following new comments, press Ctrl+C to stop")

	return v.Follow(ctx, streamer{a: a})
}

func cmdLike(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "like"), args, 1, "<postId>")
	if err != nil {
		return err
	}
	v := a.view(rest[0])
	defer v.Close()
	if snap := v.Open(ctx); snap.Post == nil {
		return errPostNotFound
	}
	liked, err := v.LikePost(ctx)
	if err != nil {
		return err
	}
	snap := v.Snapshot()
	printf(a.out, "%s %q (%d likes)\n", likedWord(liked), snap.Post.Title, len(snap.Post.Likes))
	return nil
}

func cmdLikeComment(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "like-comment"), args, 2, "<postId> <commentId>")
	if err != nil {
		return err
	}
	th := thread.New(rest[0], model.CommentsRecent)
	out, err := a.engine.ToggleLike(ctx, model.CommentTarget(rest[1]), th)
	if err != nil {
		return err
	}
	c, ok := th.Get(rest[1])
	if !ok {
		printf(a.out, "%s comment %s\n", likedWord(out.Liked), rest[1])
		return nil
	}
	printf(a.out, "%s comment %s (%d likes)\n", likedWord(out.Liked), c.ID, len(c.Likes))
	return nil
}

func cmdComment(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "comment"), args, 2, "<postId> <text>")
	if err != nil {
		return err
	}
	th := thread.New(rest[0], model.CommentsRecent)
	c, err := a.engine.AddComment(ctx, th, strings.Join(rest[1:], " "))
	if err != nil {
		return err
	}
	renderComment(a.out, *c)
	return nil
}

func cmdUncomment(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "uncomment"), args, 2, "<postId> <commentId>")
	if err != nil {
		return err
	}
	return a.engine.DeleteComment(ctx, thread.New(rest[0], ""), rest[1])
}

func cmdTitle(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "title"), args, 2, "<postId> <title>")
	if err != nil {
		return err
	}
	_, err = a.engine.EditTitle(ctx, rest[0], strings.Join(rest[1:], " "))
	return err
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "rm"), args, 1, "<postId>")
	if err != nil {
		return err
	}
	return a.engine.DeletePost(ctx, rest[0])
}

func cmdReport(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "report")
	reason := fs.String("reason", interact.DefaultReportReason, "why the post is reported")
	rest, err := parse(fs, args, 1, "<postId>")
	if err != nil {
		return err
	}
	_, err = a.engine.ReportPost(ctx, rest[0], *reason)
	return err
}

func cmdReports(ctx context.Context, a *app, args []string) error {
	reports, err := a.engine.FlaggedPosts(ctx)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		printf(a.out, "no reported posts\n")
		return nil
	}
	for _, r := range reports {
		printf(a.out, "%s  %q  %d reports: %s\n", r.Post.ID, r.Post.Title, r.Count, strings.Join(r.Reasons, "; "))
	}
	return nil
}

func cmdDismiss(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "dismiss"), args, 1, "<postId>")
	if err != nil {
		return err
	}
	return a.engine.DismissReports(ctx, rest[0])
}

func cmdNew(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "new")
	title := fs.String("title", "", "post title")
	desc := fs.String("desc", "", "post description")
	category := fs.String("category", "", "category label or id")
	images, err := parse(fs, args, 0, "")
	if err != nil {
		return err
	}

	d := interact.Draft{Title: *title, Description: *desc, Category: *category}
	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			notify.Error(a.notifier, "Failed to read "+path)
			return err
		}
		d.Images = append(d.Images, interact.Attachment{Name: filepath.Base(path), Data: data})
	}

	p, err := a.engine.CreatePost(ctx, d)
	if err != nil {
		return err
	}
	printf(a.out, "%s\n", p.ID)
	return nil
}

func cmdCategories(ctx context.Context, a *app, args []string) error {
	cats, err := a.client.ListCategories(ctx)
	if err != nil {
		notify.Error(a.notifier, "Failed to load categories")
		return err
	}
	for _, c := range cats {
		printf(a.out, "%s  %s\n", c.ID, c.Label)
	}
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "profile"), args, 1, "<userId>")
	if err != nil {
		return err
	}
	u, err := a.client.GetUser(ctx, rest[0])
	if err != nil {
		notify.Error(a.notifier, "Failed to load user")
		return err
	}
	posts, err := a.feed.ByAuthor(ctx, u.ID)
	if err != nil {
		return err
	}
	renderProfile(a.out, *u, posts, a.viewerID())
	return nil
}

func cmdBio(ctx context.Context, a *app, args []string) error {
	rest, err := parse(newFlags(a, "bio"), args, 1, "<text>")
	if err != nil {
		return err
	}
	_, err = a.engine.UpdateBio(ctx, strings.Join(rest, " "))
	return err
}

type streamer struct{ a *app }

func (s streamer) StreamComments(ctx context.Context, postID string, fn func(model.Comment)) error {
	err := s.a.client.StreamComments(ctx, postID, func(c model.Comment) {
		renderComment(s.a.out, c)
		fn(c)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
