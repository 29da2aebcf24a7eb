package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/database"
	"golang.org/x/term"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	var opts struct {
		Username  string `short:"u" long:"username" default:"admin" description:"The user whose password gets reset"`
		Temporary bool   `short:"t" long:"temporary" description:"Require a password change on next login"`
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	password := prompt("New password: ")
	if password != prompt("Confirm password: ") {
		fmt.Fprintln(os.Stderr, "passwords don't match")
		os.Exit(1)
	}

	svc := auth.NewService(db, cfg.JWTSecret, cfg.TokenExpiry)
	user, err := svc.ResetPassword(ctx, opts.Username, password, opts.Temporary)
	if err != nil {
		log.Err(err).Fatal("reset password error")
	}

	fmt.Printf("Password reset for %s (id %d, role %s). The account is active.\n", user.Username, user.ID, user.Role)
}

func prompt(label string) string {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
		os.Exit(1)
	}
	return string(b)
}
