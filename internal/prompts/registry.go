package prompts

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/models"
)

// Registry maps each forecast kind to its prompt spec. It is built once at
// start-up and is read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	specs map[models.ForecastKind]models.PromptSpec
	order []models.ForecastKind
}

// NewRegistry validates the given specs and indexes them by kind. Kinds are
// listed in the order they were supplied.
func NewRegistry(specs ...models.PromptSpec) (*Registry, error) {
	r := &Registry{
		specs: make(map[models.ForecastKind]models.PromptSpec, len(specs)),
		order: make([]models.ForecastKind, 0, len(specs)),
	}

	for _, spec := range specs {
		if spec.Kind == "" {
			return nil, fmt.Errorf("prompt spec without kind")
		}
		if _, dup := r.specs[spec.Kind]; dup {
			return nil, fmt.Errorf("duplicate prompt spec for kind %q", spec.Kind)
		}
		if spec.InputKey == "" {
			return nil, fmt.Errorf("prompt spec %q: input key is required", spec.Kind)
		}
		if spec.ForecastKey == "" {
			return nil, fmt.Errorf("prompt spec %q: forecast key is required", spec.Kind)
		}
		if spec.Template == "" {
			return nil, fmt.Errorf("prompt spec %q: template is required", spec.Kind)
		}
		if spec.UsesRecords() && spec.SampleCap <= 0 {
			return nil, fmt.Errorf("prompt spec %q: sample cap must be positive", spec.Kind)
		}

		r.specs[spec.Kind] = spec
		r.order = append(r.order, spec.Kind)
	}

	return r, nil
}

// DefaultRegistry returns the registry of built-in forecast kinds. It panics if
// a built-in spec is malformed, which can only happen through a code change.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultSpecs()...)
	if err != nil {
		panic(fmt.Sprintf("prompts: invalid built-in registry: %v", err))
	}
	return r
}

// Lookup returns the spec registered for kind.
func (r *Registry) Lookup(kind models.ForecastKind) (models.PromptSpec, bool) {
	spec, ok := r.specs[kind]
	return spec, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []models.ForecastKind {
	out := make([]models.ForecastKind, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns every registered spec in registration order.
func (r *Registry) Specs() []models.PromptSpec {
	out := make([]models.PromptSpec, 0, len(r.order))
	for _, kind := range r.order {
		out = append(out, r.specs[kind])
	}
	return out
}

func defaultSpecs() []models.PromptSpec {
	return []models.PromptSpec{
		{
			Kind:         models.KindGrid,
			Description:  "7-day daily demand forecast per substation from historical load",
			SystemPrompt: "Only respond with valid JSON.",
			Template:     gridTemplate,
			InputKey:     "historical_grid_data",
			SampleCap:    20,
			ForecastKey:  "forecast",
			ResultKeys:   []string{"forecast", "summary"},
		},
		{
			Kind:           models.KindEvents,
			Description:    "Baseline versus post-event demand for scheduled maintenance and grid events",
			SystemPrompt:   "Only return valid JSON.",
			Template:       eventsTemplate,
			InputKey:       "grid_event_schedule",
			SampleCap:      10,
			RequiredFields: []string{"event_id", "substation_id", "event_type", "start_datetime", "end_datetime"},
			ForecastKey:    "adjusted_forecast",
			ResultKeys:     []string{"adjusted_forecast", "summary"},
		},
		{
			Kind:         models.KindWeather,
			Description:  "72-hour hourly electricity and gas demand adjusted for regional weather",
			SystemPrompt: "Return valid structured JSON only.",
			Template:     weatherTemplate,
			InputKey:     "regional_weather_data",
			SampleCap:    24,
			ForecastKey:  "weather_adjusted_forecast",
			ResultKeys:   []string{"weather_adjusted_forecast", "summary"},
		},
		{
			Kind:         models.KindCommunity,
			Description:  "Percentage demand change driven by economic and community events",
			SystemPrompt: "Return only clean JSON.",
			Template:     communityTemplate,
			InputKey:     "community_events",
			SampleCap:    10,
			ForecastKey:  "forecast",
			ResultKeys:   []string{"forecast", "summary"},
		},
		{
			Kind:         models.KindBillHistory,
			Description:  "Monthly usage and bill projection from a customer's billing history",
			SystemPrompt: "Only respond with valid JSON.",
			Template:     billHistoryTemplate,
			InputKey:     "bill_history",
			SampleCap:    12,
			ForecastKey:  "forecast",
			ResultKeys:   []string{"forecast", "summary"},
		},
		{
			Kind:         models.KindNoData,
			Description:  "Typical demand profile for a location when no historical data is available",
			SystemPrompt: "Only respond with valid JSON.",
			Template:     noDataTemplate,
			InputKey:     "location",
			ContextFields: []models.ContextField{
				{Name: "location", Required: true},
				{Name: "season", Default: "summer"},
				{Name: "day_type", Default: "weekday"},
			},
			ForecastKey: "forecast",
			ResultKeys:  []string{"forecast", "summary"},
		},
	}
}

const gridTemplate = `You are an expert grid operations forecaster assisting a utility company.

Based on the historical substation demand data provided below, generate a 7-day electricity demand forecast for each substation. Analyze recent patterns and fluctuations across substations.

Input format ({{.Count}} records):
{{.Records}}

Output Requirements:
1. Return a 7-day daily forecast for each substation in an array.
2. Each entry must include:
   - "date" (YYYY-MM-DD format),
   - "substation_id" (as in the input),
   - "expected_demand" (numeric, MW).
3. Return this data in a JSON array under key "forecast" that can be directly converted to a table.
4. Also include a "summary" key with insights for grid managers:
   - Mention substations with high or unstable demand.
   - Speculate likely causes (e.g., heatwave, urban events).
   - Provide recommended operator actions.

Respond ONLY in the following JSON structure:
{
  "forecast": [
    {"date": "2025-06-01", "substation_id": "Substation_A", "expected_demand": 145.8}
  ],
  "summary": "Substation B shows rising demand likely due to sustained heat. Prepare rerouting strategies and transformer load management."
}

Return a single JSON object and nothing else.`

const eventsTemplate = `You are a smart grid AI.

Based on these maintenance and grid events ({{.Count}} records):
{{.Records}}

Simulate their impact on daily electricity demand per substation.
Compare each day's original forecast against the adjusted forecast, emitting one "Baseline" entry and one "After_Event" entry per substation and day.

Return in this format:
{
  "adjusted_forecast": [
    {"date": "2025-06-02", "substation_id": "Substation_A", "type": "Baseline", "demand": 120.5},
    {"date": "2025-06-02", "substation_id": "Substation_A", "type": "After_Event", "demand": 104.8}
  ],
  "summary": "Summarize how demand shifts due to maintenance."
}

Return a single JSON object and nothing else.`

const weatherTemplate = `You are forecasting 72-hour demand using this weather data ({{.Count}} hourly readings):
{{.Records}}

Forecast hourly electricity and gas demand.
Each entry must include "datetime", "electricity_demand" and "gas_demand".
Also include a "summary" key with insights for grid managers:
   - Mention regions with high or unstable demand.
   - Speculate likely causes (e.g., heatwave, cold snap).
   - Provide recommended operator actions.

Format:
{
  "weather_adjusted_forecast": [
    {"datetime": "2025-06-01T00:00", "electricity_demand": 132.4, "gas_demand": 41.2}
  ],
  "summary": "..."
}

Return a single JSON object and nothing else.`

const communityTemplate = `You are an expert energy forecaster for utility grid operations.

Based on the following economic/community events, forecast how electricity and gas demand will change (in percentage) over the next 7 days.

Event Format ({{.Count}} records):
{{.Records}}

Instructions:
1. Predict % change in electricity and gas demand for each event, region, and day.
2. Highlight spikes or drops caused by events.
3. Provide a short strategic summary for grid operators.

Respond in this JSON format:
{
  "forecast": [
    {"date": "2025-06-27", "location": "Phoenix", "electricity_change_pct": 35.0, "gas_change_pct": 10.0}
  ],
  "summary": "Phoenix expects a 35% spike in electricity demand due to a tech expo and local marathon. Operators should ensure backup supply and increase evening monitoring."
}

Return a single JSON object and nothing else.`

const billHistoryTemplate = `You are an energy analyst helping a utility customer understand upcoming bills.

Based on the monthly billing history below ({{.Count}} records), project usage and cost for the next 6 months. Account for seasonality visible in the history.

Billing history:
{{.Records}}

Each forecast entry must include:
   - "month" (YYYY-MM format),
   - "expected_usage_kwh" (numeric),
   - "expected_bill" (numeric, in the billing currency of the input).

Respond ONLY in the following JSON structure:
{
  "forecast": [
    {"month": "2025-07", "expected_usage_kwh": 912.0, "expected_bill": 134.75}
  ],
  "summary": "Usage peaks in July and August with air conditioning load. Consider a budget billing plan."
}

Return a single JSON object and nothing else.`

const noDataTemplate = `You are an expert utility demand forecaster. No historical data is available for this request.

Location: {{index .Context "location"}}
Season: {{index .Context "season"}}
Day type: {{index .Context "day_type"}}

Estimate a typical 7-day daily electricity demand profile for this location using climate, population and seasonal norms.

Each forecast entry must include:
   - "date" (YYYY-MM-DD format),
   - "expected_demand" (numeric, MW).

Respond ONLY in the following JSON structure:
{
  "forecast": [
    {"date": "2025-06-01", "expected_demand": 310.5}
  ],
  "summary": "Explain the main drivers behind the estimated profile."
}

Return a single JSON object and nothing else.`
