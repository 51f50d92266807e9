package logging

import (
	"io"
	"os"
	"time"

	"github.com/aimerfeng/TierLink/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "tierlink").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// LogQuotaDecision logs the outcome of a quota check
func LogQuotaDecision(userID, apiID string, allowed bool, reason string) {
	event := log.Debug()
	if !allowed {
		event = log.Info()
	}
	event.
		Str("user_id", userID).
		Str("api_id", apiID).
		Bool("allowed", allowed).
		Str("reason", reason).
		Msg("Quota decision")
}

// LogAdjustment logs a dynamic limit adjustment applied to a tier
func LogAdjustment(apiID, tier string, monthlyDelta, dailyDelta int64) {
	log.Info().
		Str("api_id", apiID).
		Str("tier", tier).
		Int64("monthly_delta", monthlyDelta).
		Int64("daily_delta", dailyDelta).
		Msg("Dynamic limit adjustment")
}

// LogSessionRevocation logs a session revocation attempt
func LogSessionRevocation(userID string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Session revocation failed")
		return
	}
	log.Info().Str("user_id", userID).Msg("Sessions revoked")
}

// SanitizeForLog removes sensitive data from strings for logging
func SanitizeForLog(data string, maxLen int) string {
	if len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}
