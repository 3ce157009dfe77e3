package owm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"weather-widget/internal/models"
)

var sanAntonio = models.Coordinate{Lat: 29.4241, Lon: -98.4936}

func TestBuildURLMergesCoordinate(t *testing.T) {
	raw, err := BuildURL("https://api.openweathermap.org/data/2.5/onecall", Options{
		APIKey:  "secret",
		Units:   "imperial",
		Exclude: []string{"minutely", "hourly"},
	}, sanAntonio)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "api.openweathermap.org" || u.Path != "/data/2.5/onecall" {
		t.Fatalf("unexpected base %s", raw)
	}
	want := map[string]string{
		"lat":     "29.4241",
		"lon":     "-98.4936",
		"appid":   "secret",
		"units":   "imperial",
		"exclude": "minutely,hourly",
	}
	for k, v := range want {
		if got := u.Query().Get(k); got != v {
			t.Fatalf("expected %s=%q, got %q", k, v, got)
		}
	}
}

func TestForecastIssuesOneRequest(t *testing.T) {
	var hits atomic.Int32
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"lat":29.42,"lon":-98.49,"timezone_offset":-21600,"daily":[
			{"dt":1700000000,"temp":{"min":50,"max":70},"weather":[{"icon":"01d"}],"humidity":40,"wind_speed":5,"pressure":1015}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{APIKey: "k", Units: "imperial", Exclude: []string{"minutely", "hourly"}})
	resp, err := c.Forecast(context.Background(), sanAntonio)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", hits.Load())
	}
	if gotQuery.Get("lat") != "29.4241" || gotQuery.Get("lon") != "-98.4936" {
		t.Fatalf("unexpected coordinate query %v", gotQuery)
	}
	if len(resp.Daily) != 1 || resp.Daily[0].Temp.Max != 70 || resp.Daily[0].Icon() != "01d" {
		t.Fatalf("unexpected decoded response %+v", resp)
	}
	if resp.TimezoneOffset != -21600 {
		t.Fatalf("expected timezone offset, got %d", resp.TimezoneOffset)
	}
}

func TestForecastMissingDailyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"lat":1,"lon":2}`)
	}))
	defer srv.Close()

	resp, err := New(srv.URL, Options{APIKey: "k"}).Forecast(context.Background(), sanAntonio)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(resp.Daily) != 0 {
		t.Fatalf("expected no daily entries, got %d", len(resp.Daily))
	}
}

func TestForecastStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"cod":401,"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, Options{APIKey: "bad"}).Forecast(context.Background(), sanAntonio)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusUnauthorized || !strings.Contains(se.Body, "Invalid API key") {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestForecastNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>gateway</html>")
	}))
	defer srv.Close()

	_, err := New(srv.URL, Options{APIKey: "k"}).Forecast(context.Background(), sanAntonio)
	if err == nil || !strings.Contains(err.Error(), "decoding forecast") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestForecastWithoutKeyUsesSampleData(t *testing.T) {
	c := New("http://127.0.0.1:1/unreachable", Options{})
	resp, err := c.Forecast(context.Background(), sanAntonio)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(resp.Daily) != 8 {
		t.Fatalf("expected 8 sample days, got %d", len(resp.Daily))
	}
	if resp.Lat != sanAntonio.Lat || resp.Lon != sanAntonio.Lon {
		t.Fatalf("sample data should echo coordinate, got %v,%v", resp.Lat, resp.Lon)
	}
}
