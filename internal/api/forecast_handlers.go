package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridcast/gridcast/internal/completion"
	"github.com/gridcast/gridcast/internal/forecaster"
	"github.com/gridcast/gridcast/internal/geo"
	"github.com/gridcast/gridcast/internal/models"
)

// OutcomeHeader reports the pipeline outcome on every forecast response.
const OutcomeHeader = "X-Forecast-Outcome"

// WeatherSource resolves a place name to hourly weather records.
type WeatherSource interface {
	WeatherForLocation(ctx context.Context, location string) (geo.Coordinates, []models.Record, error)
}

// ForecastHandler serves the forecast endpoints.
type ForecastHandler struct {
	forecaster       *forecaster.Forecaster
	weather          WeatherSource
	unparsableStatus int
	requestTimeout   time.Duration
	logger           *slog.Logger
}

// NewForecastHandler creates a forecast handler. weather may be nil, in which
// case the location endpoint is not served.
func NewForecastHandler(f *forecaster.Forecaster, weather WeatherSource, unparsableStatus int, requestTimeout time.Duration, logger *slog.Logger) *ForecastHandler {
	if unparsableStatus == 0 {
		unparsableStatus = http.StatusUnprocessableEntity
	}
	return &ForecastHandler{
		forecaster:       f,
		weather:          weather,
		unparsableStatus: unparsableStatus,
		requestTimeout:   requestTimeout,
		logger:           logger,
	}
}

// Forecast handles POST /forecast/{kind}
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	kind := models.ForecastKind(r.PathValue("kind"))
	if _, ok := h.forecaster.Registry().Lookup(kind); !ok {
		writeError(w, h.logger, http.StatusNotFound, "Unknown forecast kind")
		return
	}

	body, err := decodeObject(w, r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	h.run(w, r, kind, body)
}

// ForecastWeatherForLocation handles POST /forecast/weather/location
func (h *ForecastHandler) ForecastWeatherForLocation(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("request_id", RequestIDFromContext(r.Context()))

	body, err := decodeObject(w, r)
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	location, err := requiredString(body, "location")
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	at, records, err := h.weather.WeatherForLocation(ctx, location)
	switch {
	case errors.Is(err, geo.ErrLocationNotFound):
		writeError(w, logger, http.StatusNotFound, "Could not find location.")
		return
	case errors.Is(err, geo.ErrNoWeatherData):
		writeError(w, logger, http.StatusBadGateway, "No weather data returned.")
		return
	case err != nil:
		logger.Error("weather lookup failed", "location", location, "error", err)
		writeError(w, logger, http.StatusBadGateway, "Geocoding service unavailable")
		return
	}

	logger.Info("weather fetched for location",
		"location", location,
		"lat", at.Latitude,
		"lon", at.Longitude,
		"hours", len(records))

	encoded, err := json.Marshal(records)
	if err != nil {
		logger.Error("failed to encode weather records", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.runWithContext(ctx, w, r, models.KindWeather, map[string]json.RawMessage{
		"regional_weather_data": encoded,
	})
}

func (h *ForecastHandler) run(w http.ResponseWriter, r *http.Request, kind models.ForecastKind, body map[string]json.RawMessage) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	h.runWithContext(ctx, w, r, kind, body)
}

func (h *ForecastHandler) runWithContext(ctx context.Context, w http.ResponseWriter, r *http.Request, kind models.ForecastKind, body map[string]json.RawMessage) {
	requestID := RequestIDFromContext(r.Context())

	result, err := h.forecaster.Run(ctx, kind, requestID, body)
	if err != nil {
		h.writeForecastError(w, requestID, err)
		return
	}

	w.Header().Set(OutcomeHeader, string(result.Outcome))

	status := http.StatusOK
	if result.Outcome == models.OutcomeUnparsable {
		status = h.unparsableStatus
	}

	writeRaw(w, h.logger, status, result.Body)
}

func (h *ForecastHandler) writeForecastError(w http.ResponseWriter, requestID string, err error) {
	logger := h.logger.With("request_id", requestID)

	var validationErr *forecaster.ValidationError
	var upstreamErr *completion.UpstreamError

	switch {
	case errors.Is(err, forecaster.ErrUnknownKind):
		writeError(w, logger, http.StatusNotFound, "Unknown forecast kind")
	case errors.As(err, &validationErr):
		writeError(w, logger, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &upstreamErr) && upstreamErr.Timeout():
		writeError(w, logger, http.StatusGatewayTimeout, "Upstream completion service timed out")
	case errors.Is(err, completion.ErrUpstream):
		writeError(w, logger, http.StatusBadGateway, "Upstream completion service unavailable")
	default:
		logger.Error("forecast failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (h *ForecastHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.requestTimeout)
}
