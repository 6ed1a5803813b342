// Command drafts inspects and cleans up the on-disk draft store. Drafts are
// never expired automatically, so abandoned ones are removed from here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"staylist/internal/adapters/observability"
	"staylist/internal/shared"
	"staylist/internal/storage/drafts"
)

const usage = `usage: drafts [-db path] <command> [args]

commands:
  list                     all drafts, newest first
  show <user>              print one draft as JSON
  clear <user>             delete one draft
  prune -older-than <dur>  delete drafts not saved within dur (e.g. 720h)
`

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "staylist-drafts")

	fs := flag.NewFlagSet("drafts", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DraftsPath, "SQLite draft store (defaults to DRAFTS_PATH)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if *dbPath == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	store, err := drafts.NewSQLite(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("open draft store")
	}
	os.Exit(execute(context.Background(), store, fs.Args(), os.Stdout, os.Stderr))
}

// execute runs one command and closes the store before returning the exit code.
func execute(ctx context.Context, store *drafts.SQLite, args []string, stdout, stderr io.Writer) int {
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close draft store")
		}
	}()
	if err := run(ctx, store, args, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, store *drafts.SQLite, args []string, out io.Writer) error {
	switch args[0] {
	case "list":
		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USER\tTITLE\tCATEGORY\tSTEP\tLAST SAVED")
		for _, d := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.UserID, d.Title, d.Category, d.Step, d.LastSaved.Format(time.RFC3339))
		}
		return tw.Flush()

	case "show":
		if len(args) != 2 {
			return fmt.Errorf("show needs a user id")
		}
		rec, ok, err := store.Load(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no draft for %s", args[1])
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)

	case "clear":
		if len(args) != 2 {
			return fmt.Errorf("clear needs a user id")
		}
		if err := store.Clear(ctx, args[1]); err != nil {
			return err
		}
		log.Info().Str("user", args[1]).Msg("draft cleared")
		return nil

	case "prune":
		pf := flag.NewFlagSet("prune", flag.ContinueOnError)
		olderThan := pf.Duration("older-than", 30*24*time.Hour, "age cutoff")
		if err := pf.Parse(args[1:]); err != nil {
			return err
		}
		if *olderThan <= 0 {
			return fmt.Errorf("-older-than must be positive")
		}
		n, err := store.ClearOlderThan(ctx, time.Now().Add(-*olderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d draft(s)\n", n)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}
