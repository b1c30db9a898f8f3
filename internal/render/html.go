package render

import (
	"html/template"
	"io"

	"github.com/aryannaik/printrun-vault/internal/backend"
)

var resultsTmpl = template.Must(template.New("results").Parse(`{{if not .Rows -}}
<div class="empty">{{.Empty}}</div>
{{- else -}}
<div class="resultTitle">{{.Meta.DisplayName}}</div>
{{with .Facets}}<div class="resultMeta">{{.}}</div>{{end}}
{{with .Meta.CMURL}}<a class="resultLink" href="{{.}}" target="_blank" rel="noopener">View on Card Market</a>{{end}}
<table>
  <thead>
    <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{- end}}
  </tbody>
</table>
{{- end}}
`))

var messageTmpl = template.Must(template.New("message").Parse(`<div class="empty">{{.}}</div>
`))

type resultsView struct {
	Meta    backend.ProductMeta
	Facets  string
	Columns []string
	Rows    [][]string
	Empty   string
}

// HTML writes the rows as an HTML fragment. Backend text is escaped.
func HTML(w io.Writer, res *backend.Rows) error {
	view := resultsView{Empty: EmptyRows}
	if res != nil && len(res.Rows) > 0 {
		view.Meta = res.Meta
		view.Facets = metaLine(res.Meta)
		view.Columns = columns(res.Rows)
		subsets := len(view.Columns) == 5
		for _, r := range res.Rows {
			view.Rows = append(view.Rows, cells(r, subsets))
		}
	}
	return resultsTmpl.Execute(w, view)
}

// Message writes a single status line ("Loading…", errors) as an HTML fragment.
func Message(w io.Writer, msg string) error {
	return messageTmpl.Execute(w, msg)
}
