package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patabrava/nality-sub002/internal/model"
	"github.com/patabrava/nality-sub002/internal/pending"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the onboarding HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		srv := &http.Server{
			Handler: newRouter(e, cfg.Server.AllowedOrigins, cfg.Pipeline.ConvertOnAnswer),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilDone(ctx, srv, ln)
	},
}

// shutdownGrace bounds how long in-flight requests get to drain.
const shutdownGrace = 15 * time.Second

// serveUntilDone serves on ln until ctx is canceled, then drains in-flight
// requests before returning.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server serve")
	}
	if err := <-shutdownDone; err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the onboarding API. convertOnAnswer triggers an async
// conversion run after every recorded answer.
func newRouter(e *env, allowedOrigins []string, convertOnAnswer bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/onboarding", func(r chi.Router) {
		r.Post("/answers", handleCreateAnswer(e, convertOnAnswer))
		r.Post("/convert", handleConvert(e))
		r.Post("/pending", handleIssuePending(e))
		r.Post("/finalize", handleFinalize(e))
	})

	return r
}

func handleCreateAnswer(e *env, convertOnAnswer bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UserID        string `json:"userId"`
			QuestionTopic string `json:"questionTopic"`
			AnswerText    string `json:"answerText"`
			Convert       bool   `json:"convert"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.UserID == "" || body.QuestionTopic == "" {
			writeError(w, http.StatusBadRequest, "userId and questionTopic are required")
			return
		}

		created, err := e.Store.CreateAnswer(req.Context(), model.OnboardingAnswer{
			UserID:        body.UserID,
			QuestionTopic: body.QuestionTopic,
			AnswerText:    body.AnswerText,
		})
		if err != nil {
			zap.L().Error("create answer failed", zap.String("user_id", body.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not record answer")
			return
		}

		if convertOnAnswer || body.Convert {
			go func() {
				ctx, cancel := contextWithConversionDeadline()
				defer cancel()
				if _, err := e.Converter.Convert(ctx, body.UserID); err != nil {
					zap.L().Error("async conversion failed",
						zap.String("user_id", body.UserID),
						zap.Error(err),
					)
				}
			}()
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func handleConvert(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		result, err := e.Converter.Convert(req.Context(), body.UserID)
		if err != nil {
			zap.L().Error("conversion failed", zap.String("user_id", body.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "conversion failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleIssuePending(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var payload model.PendingPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := e.Pending.Issue(req.Context(), payload)
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":  "invalid payload",
					"fields": ve.Fields,
				})
				return
			}
			zap.L().Error("issue pending failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not issue pending registration")
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func handleFinalize(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UserID            string               `json:"userId"`
			UserEmail         string               `json:"userEmail"`
			PendingToken      string               `json:"pendingToken"`
			AddressPreference string               `json:"addressPreference"`
			Payload           *model.PendingPayload `json:"payload"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := e.Pending.Finalize(req.Context(), pending.FinalizeRequest{
			UserID:            body.UserID,
			UserEmail:         body.UserEmail,
			PendingToken:      body.PendingToken,
			AddressPreference: model.FormOfAddress(body.AddressPreference),
			Direct:            body.Payload,
		})
		if err != nil {
			writeFinalizeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// writeFinalizeError maps the token-lifecycle errors to distinct statuses
// so the front end can show the right message.
func writeFinalizeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pending.ErrTokenInvalid):
		writeError(w, http.StatusBadRequest, "pending token invalid or already used")
	case errors.Is(err, pending.ErrTokenExpired):
		writeError(w, http.StatusGone, "pending token expired")
	case errors.Is(err, pending.ErrAccountMismatch):
		writeError(w, http.StatusForbidden, "pending token belongs to a different account")
	case errors.Is(err, pending.ErrPayloadInvalid):
		writeError(w, http.StatusUnprocessableEntity, "stored payload invalid")
	case errors.Is(err, pending.ErrAddressPreferenceRequired):
		writeError(w, http.StatusBadRequest, "address preference required")
	default:
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid payload",
				"fields": ve.Fields,
			})
			return
		}
		zap.L().Error("finalize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "finalize failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// contextWithConversionDeadline bounds async conversions kicked off from
// the answers endpoint. Detached from the request context so the run
// outlives the response.
func contextWithConversionDeadline() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}
