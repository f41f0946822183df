package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"coscribe/pkg/files"
	"coscribe/pkg/model/gemini"
	"coscribe/pkg/runner"
	"coscribe/pkg/server"
	"coscribe/pkg/store/sqlite"
)

func main() {
	// Setup logger.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	// Config.
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		slog.Error("GEMINI_API_KEY environment variable not set")
		os.Exit(1)
	}
	addr := os.Getenv("COSCRIBE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx := context.Background()

	// Initialize store.
	dbPath := os.Getenv("COSCRIBE_DB")
	if dbPath == "" {
		wd, _ := os.Getwd()
		dbPath = filepath.Join(wd, "data", "coscribe.db")
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	st, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize file storage.
	filesDir := os.Getenv("COSCRIBE_FILES_DIR")
	if filesDir == "" {
		filesDir = filepath.Join(filepath.Dir(dbPath), "files")
	}
	fs, err := files.New(filesDir, "http://localhost"+addr+"/api/files")
	if err != nil {
		slog.Error("Failed to initialize file storage", "error", err)
		os.Exit(1)
	}

	// Initialize model provider.
	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		slog.Error("Failed to initialize Gemini provider", "error", err)
		os.Exit(1)
	}

	stores := runner.Stores{
		Documents: st,
		Memories:  st,
		Threads:   st,
		Configs:   st,
		Skills:    st,
		Templates: st,
		Avatars:   st,
		Layouts:   st,
	}

	// Initialize run controller.
	r := runner.New(stores, fs, provider)

	// Start server.
	srv := server.New(stores, st, fs, provider, r)
	slog.Info("Listening", "addr", addr)
	if err := srv.Start(addr); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
