package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bilyardvmetro/quill/internal/config"
	"github.com/bilyardvmetro/quill/internal/logger"
)

const cliVersion = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	os.Exit(run(ctx, cfg, os.Args[1:], os.Stdout))
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) int {
	if len(args) < 1 {
		printHelp(out)
		return 1
	}

	cmd := strings.ToLower(args[0])
	switch cmd {
	case "help":
		printHelp(out)
		return 0
	case "version":
		fmt.Fprintf(out, "quill version %s\n", cliVersion)
		return 0
	}

	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(out, "Unknown command: %s\n\n", args[0])
		printHelp(out)
		return 1
	}

	a, err := newApp(cfg, out, logger.Log)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := handler(ctx, a, args[1:]); err != nil {
		a.log.Debug().Err(err).Str("command", cmd).Msg("command failed")
		if isUsage(err) {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `Usage: quill <command> [options]
Commands:
  help                                     Display this help message.
  version                                  Show version information.
  login    -email <e> -password <p>        Sign in and keep the session for 8 hours.
  signup   -name <n> -email <e> -password <p>
                                           Create an account and sign in.
  logout                                   Forget the stored session.
  whoami                                   Show the signed-in user.
  feed     [-category All] [-mode popularity|recency]
                                           List the first page of posts.
  top      [-n 5]                          Show the busiest categories.
  show     [-sort recent|likes] <postId>   Show a post with its comments.
  watch    <postId>                        Show a post and follow new comments.
  like     <postId>                        Like or unlike a post.
  like-comment <postId> <commentId>        Like or unlike a comment.
  comment  <postId> <text>                 Add a comment.
  uncomment <postId> <commentId>           Delete a comment.
  title    <postId> <title>                Rename a post.
  rm       <postId>                        Delete a post.
  report   [-reason <r>] <postId>          Report a post.
  reports                                  List reported posts (admin).
  dismiss  <postId>                        Dismiss the reports of a post (admin).
  new      -title <t> -desc <d> -category <c> [image ...]
                                           Create a post.
  categories                               List categories.
  profile  <userId>                        Show a user and their posts.
  bio      <text>                          Update your bio.
`
	fmt.Fprintln(out, helpText)
}
