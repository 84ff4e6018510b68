package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/consult"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the consultation queue HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		engine, err := initConsultEngine()
		if err != nil {
			return err
		}
		queue := consult.NewQueue(engine)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newQueueRouter(ctx, queue),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newQueueRouter exposes the consultation queue over HTTP. ctx bounds the
// lifetime of the queue consumer.
func newQueueRouter(ctx context.Context, queue *consult.Queue) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/queue", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, queue.Snapshot())
	})

	r.Post("/queue/files", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Paths []string `json:"paths"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Paths) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths is required"})
			return
		}

		items := make([]any, 0, len(body.Paths))
		for _, path := range body.Paths {
			item, err := queue.Enqueue(path)
			if err != nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"enqueued": items})
	})

	r.Delete("/queue/files/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := queue.Remove(chi.URLParam(req, "id")); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/queue/files/{id}/prioritize", func(w http.ResponseWriter, req *http.Request) {
		if err := queue.Prioritize(chi.URLParam(req, "id")); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/queue/start", func(w http.ResponseWriter, _ *http.Request) {
		queue.Start(ctx)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	})

	r.Post("/queue/pause", func(w http.ResponseWriter, _ *http.Request) {
		queue.Pause()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "paused"})
	})

	r.Post("/queue/resume", func(w http.ResponseWriter, _ *http.Request) {
		queue.Resume(ctx)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "resumed"})
	})

	r.Post("/queue/cancel", func(w http.ResponseWriter, _ *http.Request) {
		if err := queue.CancelCurrent(); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	})

	r.Post("/queue/reset", func(w http.ResponseWriter, _ *http.Request) {
		queue.Reset()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
