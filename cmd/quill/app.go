package main

import (
	"fmt"
	"io"

	"github.com/bilyardvmetro/quill/internal/api"
	"github.com/bilyardvmetro/quill/internal/config"
	"github.com/bilyardvmetro/quill/internal/detail"
	"github.com/bilyardvmetro/quill/internal/feed"
	"github.com/bilyardvmetro/quill/internal/interact"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/session"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/rs/zerolog"
)

// app wires the client core for a single CLI invocation.
type app struct {
	out      io.Writer
	log      zerolog.Logger
	client   *api.Client
	jar      *session.Jar
	posts    *store.PostStore
	notifier notify.Notifier
	feed     *feed.Synchronizer
	engine   *interact.Engine
}

func newApp(cfg *config.Config, out io.Writer, log zerolog.Logger) (*app, error) {
	jar, err := session.OpenJar(cfg.Client.SessionDir, cfg.Client.SessionTTL)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.Client.APIURL, api.WithTimeout(cfg.Client.Timeout), api.WithLogger(log))
	posts := store.NewPostStore()
	n := notify.Multi{notify.NewConsole(out), notify.NewLog(log)}

	return &app{
		out:      out,
		log:      log,
		client:   client,
		jar:      jar,
		posts:    posts,
		notifier: n,
		feed:     feed.NewSynchronizer(client, posts, n, log),
		engine:   interact.NewEngine(client, posts, jar, n, log),
	}, nil
}

func (a *app) Close() {
	if err := a.jar.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close session jar")
	}
}

func (a *app) viewerID() string {
	if sess := a.jar.Current(); sess != nil {
		return sess.ID
	}
	return ""
}

func (a *app) view(postID string) *detail.View {
	return detail.New(postID, detail.Deps{
		Source:   a.client,
		Posts:    a.posts,
		Engine:   a.engine,
		Sessions: a.jar,
		Notifier: a.notifier,
		Log:      a.log,
	})
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsage(err error) bool {
	_, ok := err.(usageError)
	return ok
}
