//nolint:varnamelen
package echo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/api/ws"
	"go.pilab.hu/presence/domain"
	"go.pilab.hu/presence/mongodb"
	"go.pilab.hu/presence/services"
)

// DailyUserRecorder records an identity as seen today. The presence tracker
// implements it.
type DailyUserRecorder interface {
	RecordDailyUser(identity string)
}

// StatsAPI holds the read-side HTTP surface: active-client queries, status
// snapshots, usage averages, daily stats and the feedback endpoints.
type StatsAPI struct {
	stats     *services.StatsService
	feedback  *services.FeedbackService
	recorder  DailyUserRecorder
	wsHandler *ws.Handler
}

// NewStatsAPI initializes the stats API.
func NewStatsAPI(
	stats *services.StatsService,
	feedback *services.FeedbackService,
	recorder DailyUserRecorder,
	wsHandler *ws.Handler,
) *StatsAPI {
	return &StatsAPI{
		stats:     stats,
		feedback:  feedback,
		recorder:  recorder,
		wsHandler: wsHandler,
	}
}

// RegisterRoutes registers the stats and feedback routes.
func (a *StatsAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/active-clients", a.ActiveClientsHandler)
	e.GET("/status/active-clients", a.StatusHandler)
	e.GET("/status/clientid-counts", a.ClientIDCountsHandler)
	e.GET("/status/usage-average", a.UsageAverageHandler)
	e.GET("/status/daily-stats", a.DailyStatsHandler)

	e.POST("/api/feedback", a.SubmitFeedbackHandler)
	e.GET("/api/feedback", a.ListFeedbackHandler)

	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if a.wsHandler != nil {
		e.GET("/ws", a.wsHandler.Serve)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ActiveClientsHandler returns the instant active-connection count. The
// response is sent first; the visit counters and the optional clientId
// daily-unique record are persisted afterwards on a fire-and-forget basis so
// a slow store can never delay the reader.
func (a *StatsAPI) ActiveClientsHandler(c echo.Context) error {
	err := c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"activeClients": a.stats.ActiveConnections(),
		"timestamp":     timestamp(),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.stats.RecordVisit(ctx)
	}()
	if clientID := c.QueryParam("clientId"); clientID != "" && a.recorder != nil {
		a.recorder.RecordDailyUser(clientID)
	}
	return err
}

// StatusHandler returns the status snapshot: live counts plus today's and
// all-time unique-user counts.
func (a *StatsAPI) StatusHandler(c echo.Context) error {
	snapshot := a.stats.StatusSnapshot(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{
		"success":                 true,
		"activeConnections":       snapshot.ActiveConnections,
		"distinctActiveClientIds": snapshot.DistinctActiveClientIDs,
		"dailyUniqueToday":        snapshot.DailyUniqueToday,
		"totalEverUsers":          snapshot.TotalEverUsers,
		"timestamp":               timestamp(),
	})
}

// ClientIDCountsHandler returns the per-identity live-connection counts.
func (a *StatsAPI) ClientIDCountsHandler(c echo.Context) error {
	counts := a.stats.PerIdentityActiveCounts()
	return c.JSON(http.StatusOK, map[string]any{
		"success":                true,
		"counts":                 counts,
		"totalDistinctClientIds": len(counts),
		"timestamp":              timestamp(),
	})
}

// UsageAverageHandler aggregates session durations. Query parameters:
// period (all|day, default all) and clientId.
func (a *StatsAPI) UsageAverageHandler(c echo.Context) error {
	scope := domain.SessionScopeAll
	if c.QueryParam("period") == string(domain.SessionScopeToday) {
		scope = domain.SessionScopeToday
	}
	clientID := c.QueryParam("clientId")

	stats, err := a.stats.AverageSessionDuration(c.Request().Context(), scope, clientID)
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			return c.JSON(http.StatusOK, map[string]any{
				"success": false,
				"message": "DB not available",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to aggregate session durations",
		})
	}

	avgHours := stats.AverageMs / float64(time.Hour.Milliseconds())
	return c.JSON(http.StatusOK, map[string]any{
		"success":             true,
		"averageMs":           stats.AverageMs,
		"averageMinutes":      stats.AverageMs / float64(time.Minute.Milliseconds()),
		"averageHours":        avgHours,
		"averageHoursRounded": math.Round(avgHours*100) / 100,
		"totalDurationMs":     stats.TotalMs,
		"totalHours":          float64(stats.TotalMs) / float64(time.Hour.Milliseconds()),
		"sessionsCount":       stats.Count,
		"timestamp":           timestamp(),
	})
}

// DailyStatsHandler returns per-day unique-visitor and visit counts, most
// recent day first, bounded by the limit parameter (default 30).
func (a *StatsAPI) DailyStatsHandler(c echo.Context) error {
	limit := services.DefaultDailyStatsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"message": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	stats, err := a.stats.DailyStats(c.Request().Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			return c.JSON(http.StatusOK, map[string]any{
				"success": false,
				"message": "DB not available",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to compute daily stats",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"data":      stats,
		"timestamp": timestamp(),
	})
}

// SubmitFeedbackHandler stores a feedback submission. Accepts both payload
// shapes; anything else is a 400.
func (a *StatsAPI) SubmitFeedbackHandler(c echo.Context) error {
	var sub services.FeedbackSubmission
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Malformed feedback payload",
		})
	}

	fb, err := a.feedback.Submit(c.Request().Context(), &sub)
	if err != nil {
		if errors.Is(err, services.ErrInvalidFeedback) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"message": err.Error(),
			})
		}
		log.Error().Err(err).Msg("Failed to store feedback")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to store feedback",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Feedback saved",
		"data":    fb,
	})
}

// ListFeedbackHandler returns recent feedback submissions.
func (a *StatsAPI) ListFeedbackHandler(c echo.Context) error {
	items, count, err := a.feedback.List(c.Request().Context(), 0)
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			return c.JSON(http.StatusOK, map[string]any{
				"success": false,
				"message": "DB not available",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to list feedback",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
		"count":   count,
	})
}

// HealthHandler reports process liveness and store reachability.
func (a *StatsAPI) HealthHandler(c echo.Context) error {
	status := map[string]any{
		"status":    "ok",
		"timestamp": timestamp(),
	}
	if err := mongodb.Ping(c.Request().Context()); err != nil {
		status["mongo"] = "unavailable"
	} else {
		status["mongo"] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}
