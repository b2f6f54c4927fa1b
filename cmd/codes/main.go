// codes is the operator CLI for activation codes. It also runs the session
// retention cleanup, so it can be scheduled from cron.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/codegen"
	"github.com/openclaw/account-server-go/internal/config"
	"github.com/openclaw/account-server-go/internal/database"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/jobs"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/service"
)

const usage = `usage: codes <command> [flags]

commands:
  issue       -kind <kind> -count <n>   create unused codes
  distribute  -kind <kind> -count <n>   hand out unused codes
  invalidate  <code>...                 revoke codes
  stats       [-kind <kind>]            count codes per status
  cleanup     [-retention <duration>]   delete stale sessions
`

var errUsage = errors.New("invalid usage")

type app struct {
	activation *service.ActivationService
	sessions   *service.SessionService
	retention  time.Duration
	out        io.Writer
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(false); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	a := newApp(db, cfg.GracePeriod(), cfg.SessionRetention(), os.Stdout)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newApp(db *database.DB, grace, retention time.Duration, out io.Writer) *app {
	codeRepo := repository.NewActivationCodeRepository(db.DB)
	accountRepo := repository.NewAccountRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)

	return &app{
		activation: service.NewActivationService(db, codeRepo, codegen.NewRandom(), grace),
		sessions:   service.NewSessionService(db, sessionRepo, accountRepo),
		retention:  retention,
		out:        out,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "issue":
		return a.batch(ctx, args[1:], a.activation.IssueBatch)
	case "distribute":
		return a.batch(ctx, args[1:], a.activation.Distribute)
	case "invalidate":
		return a.invalidate(ctx, args[1:])
	case "stats":
		return a.stats(ctx, args[1:])
	case "cleanup":
		return a.cleanup(ctx, args[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

type batchFunc func(ctx context.Context, kind model.CodeKind, count int) ([]model.ActivationCode, error)

// batch prints one code per line, or the full records with -json.
func (a *app) batch(ctx context.Context, args []string, fn batchFunc) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kindFlag := fs.String("kind", "", "code kind: day, month, year or permanent")
	count := fs.Int("count", 0, "number of codes")
	asJSON := fs.Bool("json", false, "print full records as JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	kind, err := model.ParseCodeKind(*kindFlag)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	codes, err := fn(ctx, kind, *count)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(codes)
	}
	for _, c := range codes {
		fmt.Fprintln(a.out, c.Code)
	}
	return nil
}

// invalidate keeps going past failures and reports how many there were.
func (a *app) invalidate(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return fmt.Errorf("%w: invalidate needs at least one code", errUsage)
	}

	failed := 0
	for _, code := range codes {
		c, _, err := a.activation.Invalidate(ctx, code)
		if err != nil {
			failed++
			fmt.Fprintf(a.out, "%s\terror\t%s\n", code, errorMessage(err))
			continue
		}
		fmt.Fprintf(a.out, "%s\t%s\n", c.Code, c.Status)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d codes could not be invalidated", failed, len(codes))
	}
	return nil
}

func (a *app) stats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kindFlag := fs.String("kind", "", "code kind; all kinds when empty")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	kinds := model.AllCodeKinds
	if *kindFlag != "" {
		kind, err := model.ParseCodeKind(*kindFlag)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		kinds = []model.CodeKind{kind}
	}

	for _, kind := range kinds {
		counts, err := a.activation.Stats(ctx, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s", kind)
		for _, status := range model.AllCodeStatuses {
			fmt.Fprintf(a.out, "\t%s=%d", status, counts[status])
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *app) cleanup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	retention := fs.Duration("retention", a.retention, "keep stale sessions this long")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	job := jobs.NewCleanupJob(a.sessions, *retention, 0)
	deleted, err := job.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}
	fmt.Fprintf(a.out, "deleted %d sessions\n", deleted)
	return nil
}

func errorMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}
	return err.Error()
}
