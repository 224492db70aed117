package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/cmd"
)

var (
	// version is set during build time.
	version = "dev"
	// commit is set during build time.
	commit = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cmd.SetVersion(version, commit)

	err := cmd.Execute(ctx)
	stop()

	code := cmd.ExitCode(err)
	var verr *cmd.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(os.Stderr, verr.Error())
	case err != nil:
		log.Error().Err(err).Int("exit_code", code).Msg("Application exiting")
	}
	os.Exit(code)
}
