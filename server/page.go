package server

import (
	"html/template"

	"github.com/antgroup/datacrew/store"
)

type pageView struct {
	Query  string
	Error  string
	RunID  string
	Status string
	Report template.HTML
	Runs   []store.Run
}

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Data Analysis Crew</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
input[type=text] { width: 75%; padding: .4em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: .2em .5em; }
.error { color: #a00; }
.info { color: #555; }
img { max-width: 100%; }
</style>
</head>
<body>
<h1>Data Analysis Crew</h1>
<form method="post" action="/query">
<input type="text" name="query" value="{{.Query}}" placeholder="Enter your data analysis query" autofocus>
<button type="submit">Ask</button>
</form>
{{- if .Error}}
<p class="error">{{.Error}}</p>{{end}}
{{- if .RunID}}
<p class="info">Run {{.RunID}}: {{.Status}}</p>{{end}}
{{- if .Report}}
{{.Report}}{{end}}
{{- if .Runs}}
<h2>Recent runs</h2>
<ul>
{{range .Runs}}<li><a href="/runs/{{.ID}}">{{.Query}}</a> <small>{{.Status}} {{.CreatedAt.Format "2006-01-02 15:04"}}</small></li>
{{end}}</ul>{{end}}
</body>
</html>
`))
