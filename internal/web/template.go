package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/equilibrium/internal/status"
)

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
	"stateClass": func(s string) string {
		switch s {
		case "ON", "INCREASING", "DECREASING":
			return "on"
		case "OFF", "IDLE":
			return "off"
		}
		return "unknown"
	},
	"since": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Equilibrium</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 30%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Equilibrium</h1>

<h2>Controllers</h2>
<table>
<tr><th>ID</th><th>Kind</th><th>State</th><th>Reading</th><th>Last change</th><th>Errors</th></tr>
{{range .Controllers}}<tr>
<td>{{.ID}}</td><td>{{.Kind}}</td>
<td class="{{stateClass .Value.String}}">{{.Value.String}}</td>
<td>{{.Reading}}</td>
<td>{{since .LastChange}}</td>
<td{{if .LastError}} class="error" title="{{.LastError}}"{{end}}>{{.InputErrors}}</td>
</tr>{{end}}
</table>

<h2>Emitter</h2>
<table>
<tr><th>Endpoint</th><td>{{if .Config.Endpoint}}{{.Config.Endpoint}}{{else}}none{{end}}</td></tr>
{{if .HasConnection}}<tr><th>Broker</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}disconnected{{end}}</td></tr>{{end}}
<tr><th>Dropped batches</th><td>{{.PublishFailures}}</td></tr>
{{if .LastPublishError}}<tr><th>Last error</th><td class="error">{{.LastPublishError}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Last tick</th><td>{{since .LastTick}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Keep-alive</th><td>{{if eq .Config.KeepAliveMs 0}}disabled{{else}}{{.Config.KeepAliveMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
