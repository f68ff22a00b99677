// Package components renders the HTML pages of the web interface.
package components

import (
	"context"
	"embed"
	"encoding/xml"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/rubiojr/fedsearch/cmd/web/components/types"
	"github.com/rubiojr/fedsearch/pkg/render"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	indexPage    = parsePage("index.html")
	resultsPage  = parsePage("results.html")
	settingsPage = parsePage("settings.html")
)

func parsePage(name string) *template.Template {
	return template.Must(template.New("layout.html").
		Funcs(render.GetTemplateFuncs()).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

func page(t *template.Template, data types.PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.ExecuteTemplate(w, "layout.html", data)
	})
}

// Index is the search form.
func Index(data types.PageData) templ.Component {
	return page(indexPage, data)
}

// Results is the search form followed by one page of results.
func Results(data types.PageData) templ.Component {
	return page(resultsPage, data)
}

// Settings is the option and mount editor.
func Settings(data types.PageData) templ.Component {
	return page(settingsPage, data)
}

type openSearchURL struct {
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
}

type openSearchDescription struct {
	XMLName       xml.Name      `xml:"http://a9.com/-/spec/opensearch/1.1/ OpenSearchDescription"`
	ShortName     string        `xml:"ShortName"`
	Description   string        `xml:"Description"`
	InputEncoding string        `xml:"InputEncoding"`
	URL           openSearchURL `xml:"Url"`
}

// OpenSearch is the OpenSearch description of the server reachable at
// base.
func OpenSearch(base string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		return enc.Encode(openSearchDescription{
			ShortName:     "fedsearch",
			Description:   "Full-text search across local indexes",
			InputEncoding: "UTF-8",
			URL:           openSearchURL{Type: "text/html", Template: SearchURL(base)},
		})
	})
}
