package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"gramfuzz/internal/config"
	"gramfuzz/internal/db"
	"gramfuzz/internal/runner"
	"gramfuzz/internal/uploader"
	"gramfuzz/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	iterations := flag.Int("n", -1, "number of statements to generate (overrides config)")
	printSQL := flag.Bool("print", false, "print generated statements to stdout")
	flag.Parse()

	log.SetOutput(os.Stdout)
	if *printSQL {
		log.SetOutput(os.Stderr)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *iterations >= 0 {
		cfg.Iterations = *iterations
	}
	util.SetVerbose(cfg.Logging.Verbose)
	if closer, err := util.TeeLogFile(cfg.Logging.LogFile); err != nil {
		util.Warnf("log file disabled: %v", err)
	} else if closer != nil {
		defer util.CloseWithErr(closer, "log file")
	}
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exec *db.DB
	if cfg.DB.Enabled {
		if err := db.EnsureDatabase(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.Database); err != nil {
			fail("failed to create database: %v", err)
		}
		exec, err = db.Open(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			fail("failed to connect to db: %v", err)
		}
		defer util.CloseWithErr(exec, "db")
	}
	up, err := uploader.New(cfg.Storage)
	if err != nil {
		util.Warnf("uploader disabled: %v", err)
		up = uploader.NoopUploader{}
	}
	r, err := runner.New(cfg, exec, up)
	if err != nil {
		fail("failed to build runner: %v", err)
	}
	if *printSQL {
		r.Output = os.Stdout
	}
	if err := r.Run(ctx); err != nil {
		fail("run failed: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
