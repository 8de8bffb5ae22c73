package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gridcast/gridcast/internal/models"
)

func makeRecords(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{"substation_id": fmt.Sprintf("Substation_%d", i), "load": i}
	}
	return records
}

func TestBoundIsPrefixOfMinLength(t *testing.T) {
	for _, size := range []int{0, 1, 5, 20, 21, 50} {
		for _, limit := range []int{-1, 0, 1, 10, 20, 24} {
			records := makeRecords(size)
			got := Bound(records, limit)

			want := size
			if limit < want {
				want = limit
			}
			if want < 0 {
				want = 0
			}

			if len(got) != want {
				t.Fatalf("Bound(%d records, %d) returned %d records, want %d", size, limit, len(got), want)
			}
			for i := range got {
				if got[i]["substation_id"] != records[i]["substation_id"] {
					t.Fatalf("Bound(%d, %d) element %d out of order", size, limit, i)
				}
			}
		}
	}
}

func TestBoundDoesNotAliasInput(t *testing.T) {
	records := makeRecords(5)
	got := Bound(records, 3)
	got = append(got, models.Record{"substation_id": "extra"})

	if records[3]["substation_id"] != "Substation_3" {
		t.Fatalf("appending to bounded sample modified the input: %v", records[3])
	}
	if len(records) != 5 {
		t.Fatalf("input length changed to %d", len(records))
	}
	_ = got
}

func TestDefaultRegistryKinds(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		kind        models.ForecastKind
		inputKey    string
		sampleCap   int
		forecastKey string
	}{
		{models.KindGrid, "historical_grid_data", 20, "forecast"},
		{models.KindEvents, "grid_event_schedule", 10, "adjusted_forecast"},
		{models.KindWeather, "regional_weather_data", 24, "weather_adjusted_forecast"},
		{models.KindCommunity, "community_events", 10, "forecast"},
		{models.KindBillHistory, "bill_history", 12, "forecast"},
		{models.KindNoData, "location", 0, "forecast"},
	}

	if got := len(reg.Kinds()); got != len(tests) {
		t.Fatalf("expected %d kinds, got %d", len(tests), got)
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			spec, ok := reg.Lookup(tt.kind)
			if !ok {
				t.Fatalf("kind %q not registered", tt.kind)
			}
			if spec.InputKey != tt.inputKey {
				t.Errorf("input key = %q, want %q", spec.InputKey, tt.inputKey)
			}
			if spec.SampleCap != tt.sampleCap {
				t.Errorf("sample cap = %d, want %d", spec.SampleCap, tt.sampleCap)
			}
			if spec.ForecastKey != tt.forecastKey {
				t.Errorf("forecast key = %q, want %q", spec.ForecastKey, tt.forecastKey)
			}
		})
	}

	if _, ok := reg.Lookup("solar"); ok {
		t.Error("unexpected spec for unknown kind")
	}
}

func TestNewRegistryRejectsInvalidSpecs(t *testing.T) {
	valid := models.PromptSpec{Kind: "x", InputKey: "k", ForecastKey: "f", Template: "t", SampleCap: 1}

	tests := map[string][]models.PromptSpec{
		"missing kind":      {{InputKey: "k", ForecastKey: "f", Template: "t", SampleCap: 1}},
		"duplicate":         {valid, valid},
		"missing input key": {{Kind: "x", ForecastKey: "f", Template: "t", SampleCap: 1}},
		"missing template":  {{Kind: "x", InputKey: "k", ForecastKey: "f", SampleCap: 1}},
		"zero cap":          {{Kind: "x", InputKey: "k", ForecastKey: "f", Template: "t"}},
	}

	for name, specs := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRegistry(specs...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildEmbedsBoundedSampleAsJSON(t *testing.T) {
	reg := DefaultRegistry()
	builder, err := NewBuilder(reg)
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}

	spec, _ := reg.Lookup(models.KindGrid)
	req := models.ForecastRequest{Kind: models.KindGrid, Records: makeRecords(30)}

	prompt, err := builder.Build(spec, req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if prompt.System != "Only respond with valid JSON." {
		t.Errorf("unexpected system prompt %q", prompt.System)
	}
	if prompt.SampleSize != 20 {
		t.Errorf("expected sample of 20, got %d", prompt.SampleSize)
	}
	if !strings.Contains(prompt.User, `{"load":19,"substation_id":"Substation_19"}`) {
		t.Error("expected the 20th record in the prompt")
	}
	if strings.Contains(prompt.User, "Substation_20") {
		t.Error("prompt contains a record beyond the sample cap")
	}
	if !strings.Contains(prompt.User, `"forecast"`) || !strings.Contains(prompt.User, `"expected_demand"`) {
		t.Error("prompt is missing the expected output shape")
	}
	if len(req.Records) != 30 {
		t.Error("Build modified the request records")
	}
}

func TestBuildRendersContextFields(t *testing.T) {
	reg := DefaultRegistry()
	builder, err := NewBuilder(reg)
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}

	spec, _ := reg.Lookup(models.KindNoData)
	prompt, err := builder.Build(spec, models.ForecastRequest{
		Kind:    models.KindNoData,
		Context: map[string]string{"location": "Phoenix, AZ", "season": "winter", "day_type": "weekend"},
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	for _, want := range []string{"Location: Phoenix, AZ", "Season: winter", "Day type: weekend"} {
		if !strings.Contains(prompt.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if prompt.SampleSize != 0 {
		t.Errorf("expected no records, got %d", prompt.SampleSize)
	}
}

func TestBuildUnknownKind(t *testing.T) {
	builder, err := NewBuilder(DefaultRegistry())
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}

	_, err = builder.Build(models.PromptSpec{Kind: "solar"}, models.ForecastRequest{})
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}
