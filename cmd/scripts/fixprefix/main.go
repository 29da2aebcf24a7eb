package main

import (
	"context"
	"fmt"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/books"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/database"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	var opts struct {
		From  string `short:"f" long:"from" default:"TLC" description:"The prefix to replace"`
		To    string `short:"t" long:"to" description:"The new prefix (defaults to storage_prefix from config)"`
		Apply bool   `long:"apply" description:"Write the changes instead of printing them"`
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}
	if opts.To == "" {
		opts.To = cfg.StoragePrefix
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	changes, err := books.NewService(db).RewriteStoragePrefix(ctx, books.RewriteStoragePrefixOptions{
		From:  opts.From,
		To:    opts.To,
		Apply: opts.Apply,
	})
	if err != nil {
		log.Err(err).Fatal("rewrite error")
	}

	for _, c := range changes {
		fmt.Printf("%-12s %s -> %s\n", c.AccessionNumber, c.From, c.To)
	}
	if !opts.Apply {
		fmt.Printf("%d book(s) would change. Re-run with --apply to write them.\n", len(changes))
		return
	}
	fmt.Printf("%d book(s) updated.\n", len(changes))
}
