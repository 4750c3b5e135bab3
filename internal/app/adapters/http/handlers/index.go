package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>hyperion</title>
<style>
  body { font-family: sans-serif; margin: 2em; background: #18181b; color: #efeff1; }
  .up { color: #00c853; }
  .down { color: #ff5252; }
  td, th { padding: 0.2em 1em; text-align: left; }
</style>
</head>
<body>
<h1>hyperion</h1>
<p>uptime {{.Uptime}} • relay clients {{.RelayClients}}</p>
<h2>Feeds</h2>
<table>
<tr><th>feed</th><th>state</th><th>session</th><th>queue</th></tr>
{{range .Feeds}}<tr><td>{{.Name}}</td><td class="{{if .Connected}}up{{else}}down{{end}}">{{if .Connected}}connected{{else}}down{{end}}</td><td>{{.SessionID}}</td><td>{{.QueueDepth}}</td></tr>
{{end}}</table>
<h2>Channels</h2>
<ul>
{{range .Channels}}<li>{{.Login}}{{if .IsMod}} (mod){{end}}</li>
{{else}}<li>none</li>
{{end}}</ul>
</body>
</html>`))

type indexFeed struct {
	Name string
	feedStatus
}

func (h *Handlers) IndexHandler(c *gin.Context) {
	res := h.health()

	feeds := make([]indexFeed, 0, len(res.Feeds))
	for _, name := range h.feedNames() {
		feeds = append(feeds, indexFeed{Name: name, feedStatus: res.Feeds[name]})
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := indexTemplate.Execute(c.Writer, gin.H{
		"Uptime":       res.Uptime,
		"RelayClients": res.RelayClients,
		"Feeds":        feeds,
		"Channels":     h.channels.Channels(),
	}); err != nil {
		h.log.Error("Failed to render index", err)
	}
}
