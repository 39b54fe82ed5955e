// Command seed creates the system user and the initial admin and trainee
// accounts. Existing usernames are left untouched, so it is safe to re-run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/EmpoweredVote/memoboard/internal/db"
	"github.com/EmpoweredVote/memoboard/internal/seeds"
	"github.com/EmpoweredVote/memoboard/internal/store/gormstore"
)

// CLI flags
var (
	dsn     = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	dryRun  = flag.Bool("dry-run", false, "Validate the SEED_* variables only; no DB writes")
	verbose = flag.Bool("v", false, "Log SQL statements")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	users, err := seeds.LoadSeedUsers(os.Getenv)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Loaded %d seed users\n", len(users))

	if *dryRun {
		for _, u := range users {
			fmt.Printf("  would ensure %s (%s)\n", u.Username, u.Role)
		}
		fmt.Println("Dry run complete. No changes made.")
		return
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	gdb, err := db.Connect(ctx, *dsn, log, *verbose)
	if err != nil {
		fatalf("connect: %v", err)
	}

	s := gormstore.New(gdb)
	if err := s.Init(); err != nil {
		fatalf("migrate: %v", err)
	}

	created, err := seeds.SeedUsers(ctx, s, users, os.Stdout)
	if err != nil {
		fatalf("seed: %v", err)
	}
	fmt.Printf("Done: %d created, %d already present\n", created, len(users)+1-created)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
