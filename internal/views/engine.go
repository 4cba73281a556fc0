package views

import (
	"embed"
	"io/fs"
	"net/http"

	html "github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Layout is the template every page is embedded in.
const Layout = "layout"

// NewEngine returns the html template engine over the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}
