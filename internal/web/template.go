package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/vacuum-controller/internal/display"
	"github.com/sweeney/vacuum-controller/internal/status"
)

// panelBarHeight is the outer height in pixels of the mirrored battery bar.
const panelBarHeight = 40

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"volts": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"barFill": func(pct int) int {
		return display.BarFill(pct, panelBarHeight)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>{{.Title}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.bar { display: inline-block; width: 120px; height: 12px; border: 1px solid #333; vertical-align: middle; }
.bar span { display: block; height: 100%; background: #3a3; }
.bar.low span { background: #c33; }
.panel { display: flex; gap: 1em; align-items: flex-start; background: #000; color: #fff; padding: 8px; }
.panel pre { margin: 0; }
.cell { width: 16px; height: 38px; border: 1px solid #fff; position: relative; }
.cell span { position: absolute; bottom: 0; left: 0; right: 0; background: #fff; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>

<h2>Battery</h2>
<table>
<tr><th>Voltage</th><td id="voltage">{{if and .Ready (not .VoltageMissing)}}{{volts .Voltage}} V{{else}}-{{end}}</td></tr>
<tr><th>Charge</th><td id="percent">{{if and .Ready (not .VoltageMissing)}}<span class="bar{{if lt .Percent 20}} low{{end}}"><span style="width: {{.Percent}}%"></span></span> {{.Percent}}%{{else}}-{{end}}</td></tr>
</table>

<h2>Motor</h2>
<table>
<tr><th>Power</th><td id="motor" class="{{if .Enabled}}on{{else}}off{{end}}">{{if .Enabled}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Level.Label}}</td></tr>
<tr><th>Duty</th><td id="duty">{{.Duty}}%</td></tr>
<tr><th>Last gesture</th><td>{{if .LastGestureAt.IsZero}}none{{else}}{{.LastGesture}} at {{.LastGestureAt.UTC.Format "15:04:05"}}{{end}}</td></tr>
</table>

<h2>Panel</h2>
{{if .FrameAt.IsZero}}<p id="panel">-</p>{{else}}<div class="panel" id="panel">
<pre>{{range .Frame.Lines}}{{.}}
{{end}}</pre>
<div class="cell"><span style="height: {{barFill .Frame.Percent}}px"></span></div>
</div>{{end}}

<h2>Gestures</h2>
<table>
<tr><th>Short</th><td>{{.Counts.Short}}</td></tr>
<tr><th>Long</th><td>{{.Counts.Long}}</td></tr>
<tr><th>Ignored</th><td>{{.Counts.Ignored}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Cells</th><td>{{.Config.Cells}}S</td></tr>
<tr><th>Duty table</th><td>{{range $i, $d := .Config.Duty}}{{if $i}} / {{end}}{{$d}}%{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/history.json">History</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Title  string
		Uptime time.Duration
	}{
		Snapshot: snap,
		Title:    display.Title,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
