package config

import (
	"flag"
	"os"
	"time"

	"github.com/ourchat/ourchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string    document store driver: memory|postgres
//	-dsn string  Postgres connection string
//	-b string    blob store driver: memory|s3
//	-t int       session token lifetime in minutes
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-dsn", "-b", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.StoreDriver, "d", cfg.StoreDriver, "document store driver (memory|postgres)")
	fs.StringVar(&cfg.StoreDSN, "dsn", cfg.StoreDSN, "postgres connection string")
	fs.StringVar(&cfg.BlobDriver, "b", cfg.BlobDriver, "blob store driver (memory|s3)")
	tokenTTL := fs.Int("t", int(cfg.TokenTTL.Minutes()), "session token lifetime (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TokenTTL = time.Duration(*tokenTTL) * time.Minute
}
