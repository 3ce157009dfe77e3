package panel

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"strconv"
	"sync"
	"time"

	"weather-widget/internal/models"
)

const DefaultMaxDays = 5

var panelTemplate = template.Must(template.New("panel").Parse(
	`{{range .}}<article class="weather-panel">
    <h3>{{.Date}}</h3>
    <p>{{.Min}}° / {{.Max}}°</p>
{{- if .IconURL}}
    <img src="{{.IconURL}}" alt="icon">
{{- end}}
    <p class="extra-info">Humidity: {{.Humidity}}%</p>
    <p class="extra-info">Wind: {{.Wind}}{{.WindUnit}}</p>
    <p class="extra-info">Pressure: {{.Pressure}}mbar</p>
</article>
{{end}}`))

// view is the template-facing shape of one forecast day.
type view struct {
	Date     string
	Min      string
	Max      string
	IconURL  string
	Humidity string
	Wind     string
	WindUnit string
	Pressure string
}

// Renderer turns a forecast response into weather-panel markup.
type Renderer struct {
	MaxDays  int
	IconBase string
	Units    string
}

func NewRenderer(maxDays int, iconBase, units string) *Renderer {
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	return &Renderer{MaxDays: maxDays, IconBase: iconBase, Units: units}
}

// Days returns the leading entries of resp.Daily that get a panel.
func (r *Renderer) Days(resp models.ForecastResponse) []models.ForecastDay {
	n := r.MaxDays
	if n <= 0 {
		n = DefaultMaxDays
	}
	if len(resp.Daily) < n {
		n = len(resp.Daily)
	}
	return resp.Daily[:n]
}

func (r *Renderer) Render(w io.Writer, resp models.ForecastResponse) error {
	days := r.Days(resp)
	if len(days) == 0 {
		return nil
	}
	loc := time.FixedZone(resp.Timezone, resp.TimezoneOffset)
	views := make([]view, len(days))
	for i, d := range days {
		views[i] = r.view(d, loc)
	}
	return panelTemplate.Execute(w, views)
}

// Fragment renders the whole panel set into memory.
func (r *Renderer) Fragment(resp models.ForecastResponse) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, resp); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (r *Renderer) view(d models.ForecastDay, loc *time.Location) view {
	v := view{
		Date:     FormatDate(d.Dt, loc),
		Min:      formatNumber(d.Temp.Min),
		Max:      formatNumber(d.Temp.Max),
		Humidity: formatNumber(d.Humidity),
		Wind:     formatNumber(d.WindSpeed),
		WindUnit: windUnit(r.Units),
		Pressure: formatNumber(d.Pressure),
	}
	if icon := d.Icon(); icon != "" {
		v.IconURL = r.IconBase + icon + ".png"
	}
	return v
}

// FormatDate renders epoch seconds as M/D/YYYY in loc.
func FormatDate(dt int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(dt, 0).In(loc).Format("1/2/2006")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func windUnit(units string) string {
	if units == "imperial" || units == "" {
		return "mph"
	}
	return "m/s"
}

// Container is the element whose content a render replaces.
type Container interface {
	Replace(ctx context.Context, html template.HTML) error
}

// Buffer is an in-memory Container.
type Buffer struct {
	mu       sync.Mutex
	html     template.HTML
	replaced int
}

func (b *Buffer) Replace(_ context.Context, html template.HTML) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.html = html
	b.replaced++
	return nil
}

func (b *Buffer) HTML() template.HTML {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.html
}

// Replaced reports how many times the content was swapped.
func (b *Buffer) Replaced() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replaced
}
