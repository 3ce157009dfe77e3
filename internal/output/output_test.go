package output_test

import (
	"strings"
	"testing"

	"weather-widget/internal/output"
)

func TestParseFormat(t *testing.T) {
	f, err := output.ParseFormat("", output.FormatHTML, output.FormatJSON)
	if err != nil || f != output.FormatHTML {
		t.Fatalf("expected default html, got %q err=%v", f, err)
	}
	f, err = output.ParseFormat(" YAML ", output.FormatJSON, output.FormatYAML)
	if err != nil || f != output.FormatYAML {
		t.Fatalf("expected yaml, got %q err=%v", f, err)
	}
	if _, err := output.ParseFormat("html", output.FormatJSON, output.FormatYAML); err == nil {
		t.Fatal("expected html to be rejected")
	}
}

func TestRenderPayload(t *testing.T) {
	payload := map[string]any{"lat": 29.4241, "lon": -98.4936}

	jsonPayload, err := output.RenderPayload(payload, output.FormatJSON)
	if err != nil {
		t.Fatalf("render json failed: %v", err)
	}
	if !strings.Contains(jsonPayload, "\"lat\": 29.4241") {
		t.Fatalf("expected lat in json, got %s", jsonPayload)
	}

	yamlPayload, err := output.RenderPayload(payload, output.FormatYAML)
	if err != nil {
		t.Fatalf("render yaml failed: %v", err)
	}
	if !strings.Contains(yamlPayload, "lon: -98.4936") {
		t.Fatalf("expected lon in yaml, got %s", yamlPayload)
	}

	if _, err := output.RenderPayload(payload, output.FormatHTML); err == nil {
		t.Fatal("expected html payload rendering to fail")
	}
}
