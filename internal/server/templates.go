package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/result.html
var resultPageTemplateHTML string

var resultPageTemplate = template.Must(template.New("result").Parse(resultPageTemplateHTML))

// ResultPageData is rendered at the end of a callback
type ResultPageData struct {
	Title       string
	Message     string
	MessageType string // "success" or "error"
}
