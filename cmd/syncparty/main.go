package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sync-party/internal/config"
	"sync-party/internal/handlers"
	httpapi "sync-party/internal/http"
	"sync-party/internal/logging"
	"sync-party/internal/repos"
	"sync-party/internal/services"

	_ "modernc.org/sqlite"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		log.Errorf("open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(db, cfg.MigrationsDir); err != nil {
		log.Errorf("migrations: %v", err)
		os.Exit(1)
	}

	sessions := services.NewSessionService(repos.NewSessionRepo(db))
	library := services.NewLibraryService(repos.NewTrackRepo(db))
	r := httpapi.NewRouter(log, handlers.NewSyncHandler(sessions), handlers.NewLibraryHandler(library))

	addr := ":" + cfg.Port
	log.Infof("sync-party listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Errorf("http server: %v", err)
		os.Exit(1)
	}
}

func runMigrations(db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		if err := applySQLFile(db, filepath.Join(dir, f)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

func applySQLFile(db *sql.DB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	var sb strings.Builder
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	_, err = db.Exec(sb.String())
	return err
}
