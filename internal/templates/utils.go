package templates

import (
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateFuncMap returns all helper functions for saved query templates.
func TemplateFuncMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["jqlQuote"] = jqlQuote
	fm["jqlList"] = jqlList
	fm["dig"] = templateDig
	return fm
}
