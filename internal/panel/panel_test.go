package panel

import (
	"context"
	"strings"
	"testing"
	"time"

	"weather-widget/internal/models"
)

func day(dt int64, lo, hi float64, icon string) models.ForecastDay {
	return models.ForecastDay{
		Dt:        dt,
		Temp:      models.Temperature{Min: lo, Max: hi},
		Weather:   []models.Condition{{Icon: icon}},
		Humidity:  40,
		WindSpeed: 5,
		Pressure:  1015,
	}
}

func TestRenderSingleDayScenario(t *testing.T) {
	r := NewRenderer(5, "https://openweathermap.org/img/w/", "imperial")
	resp := models.ForecastResponse{Lat: 29.4241, Lon: -98.4936, Daily: []models.ForecastDay{day(1700000000, 50, 70, "01d")}}

	html, err := r.Fragment(resp)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := string(html)
	if n := strings.Count(out, `<article class="weather-panel">`); n != 1 {
		t.Fatalf("expected 1 panel, got %d:\n%s", n, out)
	}
	for _, want := range []string{
		"<h3>11/14/2023</h3>",
		"50° / 70°",
		`<img src="https://openweathermap.org/img/w/01d.png" alt="icon">`,
		"Humidity: 40%",
		"Wind: 5mph",
		"Pressure: 1015mbar",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderCapsAtMaxDaysInOrder(t *testing.T) {
	r := NewRenderer(5, "", "imperial")
	for _, n := range []int{0, 1, 3, 5, 8} {
		var daily []models.ForecastDay
		for i := 0; i < n; i++ {
			daily = append(daily, day(1700000000+int64(i)*86400, float64(i), float64(100+i), "01d"))
		}
		html, err := r.Fragment(models.ForecastResponse{Daily: daily})
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		out := string(html)
		want := min(n, 5)
		if got := strings.Count(out, `class="weather-panel"`); got != want {
			t.Fatalf("n=%d: expected %d panels, got %d", n, want, got)
		}
		last := -1
		for i := 0; i < want; i++ {
			idx := strings.Index(out, "<p>"+formatNumber(float64(i))+"° / ")
			if idx <= last {
				t.Fatalf("n=%d: panel %d out of order", n, i)
			}
			last = idx
		}
	}
}

func TestRenderEmptyAndMissingDaily(t *testing.T) {
	r := NewRenderer(5, "", "imperial")
	html, err := r.Fragment(models.ForecastResponse{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if html != "" {
		t.Fatalf("expected empty panel, got %q", html)
	}
}

func TestRenderOmitsIconWithoutWeather(t *testing.T) {
	r := NewRenderer(5, "https://icons.test/", "metric")
	d := day(1700000000, 10.5, 21.25, "")
	d.Weather = nil
	html, err := r.Fragment(models.ForecastResponse{Daily: []models.ForecastDay{d}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := string(html)
	if strings.Contains(out, "<img") {
		t.Fatalf("expected no icon, got:\n%s", out)
	}
	if !strings.Contains(out, "10.5° / 21.25°") || !strings.Contains(out, "Wind: 5m/s") {
		t.Fatalf("unexpected metric rendering:\n%s", out)
	}
}

func TestRenderEscapesIcon(t *testing.T) {
	r := NewRenderer(5, "https://icons.test/", "imperial")
	d := day(1700000000, 1, 2, `"><script>alert(1)</script>`)
	html, err := r.Fragment(models.ForecastResponse{Daily: []models.ForecastDay{d}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("icon code was not escaped:\n%s", html)
	}
}

func TestFormatDateUsesOffset(t *testing.T) {
	// 2023-11-15 03:00 UTC is still Nov 14 in Chicago.
	dt := time.Date(2023, 11, 15, 3, 0, 0, 0, time.UTC).Unix()
	if got := FormatDate(dt, time.FixedZone("", -6*3600)); got != "11/14/2023" {
		t.Fatalf("expected 11/14/2023, got %s", got)
	}
	if got := FormatDate(dt, nil); got != "11/15/2023" {
		t.Fatalf("expected 11/15/2023, got %s", got)
	}
}

func TestBufferReplace(t *testing.T) {
	var b Buffer
	_ = b.Replace(context.Background(), "<p>a</p>")
	_ = b.Replace(context.Background(), "<p>b</p>")
	if b.HTML() != "<p>b</p>" || b.Replaced() != 2 {
		t.Fatalf("unexpected buffer state %q/%d", b.HTML(), b.Replaced())
	}
}
