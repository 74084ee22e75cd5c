package debugreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"liveconnect/internal/logging"
)

const shutdownTimeout = 5 * time.Second

type handleSummary struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Drivable bool   `json:"drivable"`
}

// Handler serves the registry:
//
//	GET  /debug/handles
//	GET  /debug/handles/{name}
//	POST /debug/handles/{name}/connect
//	POST /debug/handles/{name}/disconnect
func (r *Registry) Handler(logger *logging.Logger) http.Handler {
	if logger == nil {
		panic("debugreg.Registry.Handler: logger must not be nil")
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /debug/handles", func(w http.ResponseWriter, _ *http.Request) {
		names := r.Names()
		items := make([]handleSummary, 0, len(names))
		for _, name := range names {
			value, ok := r.Lookup(name)
			if !ok {
				continue
			}
			_, drivable := value.(Driver)
			items = append(items, handleSummary{Name: name, Type: typeName(value), Drivable: drivable})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	mux.HandleFunc("GET /debug/handles/{name}", func(w http.ResponseWriter, req *http.Request) {
		value, ok := r.Lookup(req.PathValue("name"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()})
			return
		}
		if snap, ok := value.(Snapshotter); ok {
			writeJSON(w, http.StatusOK, snap.DebugSnapshot())
			return
		}
		writeJSON(w, http.StatusOK, value)
	})

	drive := func(action string) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			name := req.PathValue("name")
			value, ok := r.Lookup(name)
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrNotFound.Error()})
				return
			}
			driver, ok := value.(Driver)
			if !ok {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "handle cannot be driven"})
				return
			}
			logger.Info("debug endpoint driving handle", logging.Field("name", name), logging.Field("action", action))
			switch action {
			case "connect":
				driver.Connect()
			case "disconnect":
				driver.Disconnect()
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}
	mux.HandleFunc("POST /debug/handles/{name}/connect", drive("connect"))
	mux.HandleFunc("POST /debug/handles/{name}/disconnect", drive("disconnect"))

	return mux
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *logging.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, listener, handler, logger)
}

func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler, logger *logging.Logger) error {
	if logger == nil {
		panic("debugreg.ServeListener: logger must not be nil")
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("debug endpoint listening", logging.Field("addr", listener.Addr().String()))
		errs <- server.Serve(listener)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("debug endpoint shutdown failed", logging.Field("error", err))
			return err
		}
		logger.Debug("debug endpoint stopped")
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

func typeName(value any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", value), "*")
}
