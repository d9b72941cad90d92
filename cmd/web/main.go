package main

import (
	"embed"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"reportlab/internal/app"
)

// Embedded single-page UI.
//go:embed static
var staticFiles embed.FS

func main() {
	// Optional .env for local development; env vars win regardless.
	godotenv.Load()

	var frontendFS fs.FS
	if sub, err := fs.Sub(staticFiles, "static"); err == nil {
		frontendFS = sub
	} else {
		slog.Warn("frontend embedding failed", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(frontendFS)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
