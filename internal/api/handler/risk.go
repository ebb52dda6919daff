package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/api/middleware"
	"github.com/airwaycast/airwaycast/internal/api/models"
	"github.com/airwaycast/airwaycast/internal/api/response"
	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/pipeline"
)

// Runner runs the prediction pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// queryFieldNames maps RiskQuery fields to query parameters.
var queryFieldNames = map[string]string{
	"UserIDs": "user_id",
	"Start":   "start",
	"Days":    "days",
}

// RiskConfig configures a RiskHandler.
type RiskConfig struct {
	Runner Runner
	// MaxUsers and MaxDays tighten the hard limits of RiskQuery.
	MaxUsers int
	MaxDays  int
	Logger   zerolog.Logger
}

// RiskHandler serves risk forecasts.
type RiskHandler struct {
	runner   Runner
	validate *validator.Validate
	maxUsers int
	maxDays  int
	logger   zerolog.Logger
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(cfg RiskConfig) *RiskHandler {
	return &RiskHandler{
		runner:   cfg.Runner,
		validate: validator.New(),
		maxUsers: cfg.MaxUsers,
		maxDays:  cfg.MaxDays,
		logger:   cfg.Logger.With().Str("component", "api.risk").Logger(),
	}
}

// GetRisk handles GET /v1/risk. Callers without the read-all scope may only
// request their own forecast.
func (h *RiskHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := parseRiskQuery(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrs)
		return
	}

	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}
	if id := unreadableUser(claims, q.UserIDs); id != "" {
		h.logger.Debug().Str("caller", claims.UserID).Str("requested", id).Msg("forecast access denied")
		response.Forbidden(w, r, "token may only read its own forecast")
		return
	}

	h.serve(w, r, q, false)
}

// GetMyRisk handles GET /v1/me/risk.
func (h *RiskHandler) GetMyRisk(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	q, fieldErrs := parseRiskQuery(r)
	q.UserIDs = []string{userID}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrs)
		return
	}

	h.serve(w, r, q, true)
}

func (h *RiskHandler) serve(w http.ResponseWriter, r *http.Request, q models.RiskQuery, self bool) {
	if fieldErrs := h.check(q); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrs)
		return
	}

	var start time.Time
	if q.Start != "" {
		// Format already validated.
		start, _ = calendar.Parse(q.Start)
	}

	res, err := h.runner.Run(r.Context(), pipeline.Request{
		UserIDs:   q.UserIDs,
		Start:     start,
		Days:      q.Days,
		SkipCache: q.Refresh,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if self && len(res.Unknown) > 0 {
		response.NotFound(w, r, "no profile for the authenticated user")
		return
	}

	response.JSON(w, r, http.StatusOK, toForecast(res, start, q.Days))
}

func (h *RiskHandler) check(q models.RiskQuery) []models.FieldError {
	if err := h.validate.Struct(q); err != nil {
		return response.FieldErrors(err, queryFieldNames)
	}
	var errs []models.FieldError
	if h.maxUsers > 0 && len(q.UserIDs) > h.maxUsers {
		errs = append(errs, models.FieldError{Field: "user_id", Message: "must be at most " + strconv.Itoa(h.maxUsers), Code: "MAX"})
	}
	if h.maxDays > 0 && q.Days > h.maxDays {
		errs = append(errs, models.FieldError{Field: "days", Message: "must be at most " + strconv.Itoa(h.maxDays), Code: "LTE"})
	}
	return errs
}

func (h *RiskHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, pipeline.ErrStoreUnavailable):
		h.logger.Error().Err(err).Msg("user store unavailable")
		response.ServiceUnavailable(w, r, "user data is temporarily unavailable")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		h.logger.Error().Err(err).Msg("risk pipeline failed")
		response.InternalError(w, r, "could not compute forecast")
	}
}

// parseRiskQuery reads user_id (repeated or comma separated), start, days and
// refresh. Syntax errors are reported here; bounds are checked by validation.
func parseRiskQuery(r *http.Request) (models.RiskQuery, []models.FieldError) {
	values := r.URL.Query()
	q := models.RiskQuery{Start: values.Get("start")}
	var errs []models.FieldError

	for _, raw := range values["user_id"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.UserIDs = append(q.UserIDs, id)
			}
		}
	}

	if v := values.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			errs = append(errs, models.FieldError{Field: "days", Message: "must be a positive integer", Code: "INVALID"})
		}
		q.Days = days
	}

	if v := values.Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, models.FieldError{Field: "refresh", Message: "must be a boolean", Code: "INVALID"})
		}
		q.Refresh = refresh
	}

	return q, errs
}

func toForecast(res *pipeline.Result, start time.Time, days int) models.RiskForecast {
	out := models.RiskForecast{
		Days:  days,
		Items: make([]models.RiskDay, 0, len(res.Records)),
		Meta: models.RiskForecastMeta{
			Cached:         res.Cached,
			UnknownUsers:   res.Unknown,
			FallbackUsers:  res.Fallback,
			MissingColumns: res.MissingColumns,
			Stored:         !res.StoreFailed,
		},
	}
	for _, rec := range res.Records {
		out.Items = append(out.Items, models.RiskDay{
			UserID:     rec.UserID,
			Date:       calendar.Format(rec.Date),
			Risk:       rec.Risk,
			Confidence: rec.Confidence,
			Model:      string(rec.Scorer),
			UpdatedAt:  models.Timestamp(rec.UpdatedAt),
		})
	}

	switch {
	case len(res.Records) > 0:
		out.Start = calendar.Format(res.Records[0].Date)
	case !start.IsZero():
		out.Start = calendar.Format(start)
	}
	if out.Days == 0 {
		out.Days = distinctDates(res)
	}
	return out
}

func distinctDates(res *pipeline.Result) int {
	seen := make(map[time.Time]bool)
	for _, rec := range res.Records {
		seen[rec.Date] = true
	}
	return len(seen)
}
