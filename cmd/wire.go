package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	statusadapter "github.com/voicevault/voicevault/internal/adapters/render/status"
	filestore "github.com/voicevault/voicevault/internal/adapters/store/file"
	"github.com/voicevault/voicevault/internal/ports"
)

type app struct {
	store    ports.SlotStore
	renderer func([]statusadapter.SlotView, statusadapter.RenderOptions) (string, error)
	now      func() time.Time
}

func wireApp() (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevelFromEnv(),
	}))

	store, err := filestore.NewStore(viper.New(), ports.SystemClock{}, logger)
	if err != nil {
		return nil, fmt.Errorf("wire slot store: %w", err)
	}

	return &app{
		store:    store,
		renderer: statusadapter.Render,
		now:      time.Now,
	}, nil
}

func logLevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("VV_LOG")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
