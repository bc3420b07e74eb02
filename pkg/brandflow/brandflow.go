package brandflow

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/brandflow-io/brandflow/internal/config"
	"github.com/brandflow-io/brandflow/internal/controllers"
	"github.com/brandflow-io/brandflow/internal/engine"
	"github.com/brandflow-io/brandflow/pkg/brandflow/core"
)

// NewEngine creates a workflow engine using the real clock and the
// configured retention window for completed instances.
func NewEngine() *engine.Engine {
	config.LoadEnv()
	retention := config.GetSystemSettingDuration(config.ENGINE_RETENTION)
	eng := engine.NewEngine(core.NewRealClock(), retention)
	eng.SetActionTimeout(config.GetSystemSettingDuration(config.ENGINE_ACTION_TIMEOUT))
	return eng
}

// Start boots the background scheduler and the HTTP API over the given
// engine. Definitions, action handlers and event listeners are expected to
// be registered by the caller before invocation. This call blocks until the
// HTTP server stops.
func Start(eng *engine.Engine, mux *http.ServeMux) error {
	escalationEvery := config.GetSystemSettingDuration(config.ENGINE_ESCALATION_INTERVAL)
	cleanupEvery := config.GetSystemSettingDuration(config.ENGINE_CLEANUP_INTERVAL)

	scheduler, err := engine.NewScheduler(eng, escalationEvery, cleanupEvery)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if mux == nil {
		mux = http.NewServeMux()
	}
	controllers.NewDefinitionsController(eng).RegisterRoutes(mux)
	controllers.NewWorkflowsController(eng).RegisterRoutes(mux)
	controllers.NewTasksController(eng).RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// SetupLogger installs the default tinted slog handler.
func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
