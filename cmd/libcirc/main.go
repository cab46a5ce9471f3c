// Command libcirc runs operational tasks against the circulation engine:
// seeding the admin account, printing dashboard stats and listing loans
// that are due soon or overdue.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"libcirc/internal/accessgate"
	"libcirc/internal/config"
	"libcirc/internal/notify"
	"libcirc/internal/reports"
	"libcirc/internal/util"
	"libcirc/pkg/store"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "seed-admin":
		runSeedAdmin(cfg, st)
	case "stats":
		runStats(st)
	case "due-soon":
		runDueSoon(st, flag.Args()[1:])
	case "overdue":
		runOverdue(st)
	case "most-borrowed":
		runMostBorrowed(st, flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: libcirc [-config path] <command>

commands:
  seed-admin              create the default admin account if missing
  stats                   print dashboard counts
  due-soon [-within N]    list open loans due within N days (default 3)
  overdue                 list open loans past their due date
  most-borrowed [-top N]  list the N most borrowed books (default 10)
`)
}

func runSeedAdmin(cfg config.FileConfig, st store.Store) {
	gate, err := accessgate.New(accessgate.Config{Store: st})
	if err != nil {
		log.Fatalf("failed to init access gate: %v", err)
	}
	if err := gate.EnsureDefaultAdmin(cfg.DefaultAdminUsername, cfg.DefaultAdminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
}

func runStats(st store.Store) {
	svc, err := reports.New(reports.Config{Store: st})
	if err != nil {
		log.Fatalf("failed to init reports: %v", err)
	}
	stats, err := svc.Dashboard()
	if err != nil {
		log.Fatalf("failed to gather stats: %v", err)
	}
	printJSON(stats)
}

func runDueSoon(st store.Store, args []string) {
	fs := flag.NewFlagSet("due-soon", flag.ExitOnError)
	within := fs.Int("within", 3, "days ahead to include")
	fs.Parse(args)

	svc, err := notify.New(notify.Config{Store: st})
	if err != nil {
		log.Fatalf("failed to init notify: %v", err)
	}
	details, err := svc.DueSoon(*within)
	if err != nil {
		log.Fatalf("failed to list due-soon loans: %v", err)
	}
	printJSON(details)
}

func runOverdue(st store.Store) {
	svc, err := notify.New(notify.Config{Store: st})
	if err != nil {
		log.Fatalf("failed to init notify: %v", err)
	}
	details, err := svc.Overdue()
	if err != nil {
		log.Fatalf("failed to list overdue loans: %v", err)
	}
	printJSON(details)
}

func runMostBorrowed(st store.Store, args []string) {
	fs := flag.NewFlagSet("most-borrowed", flag.ExitOnError)
	top := fs.Int("top", 10, "number of books to list")
	fs.Parse(args)

	svc, err := reports.New(reports.Config{Store: st})
	if err != nil {
		log.Fatalf("failed to init reports: %v", err)
	}
	rows, err := svc.MostBorrowed(*top)
	if err != nil {
		log.Fatalf("failed to list most borrowed: %v", err)
	}
	printJSON(rows)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}
