package tmpl

import (
	"bytes"
	"fmt"
	"text/template"

	"auftrag.chapter42.de/dispatch/internal/data"
)

// PrepareTemplates parst die URL-Templates aller Webhook-Endpunkte einmalig.
func PrepareTemplates(cfg *data.DispatchConfig) error {
	for i := range cfg.Webhooks.Endpoints {
		ep := &cfg.Webhooks.Endpoints[i] // Pointer nötig, um Änderungen zu speichern

		tpl, err := template.New(ep.Name).Option("missingkey=error").Parse(ep.URL)
		if err != nil {
			return fmt.Errorf("error in url template [%s]: %w", ep.Name, err)
		}
		ep.ParsedURLTpl = tpl
	}
	return nil
}

func RenderEndpoint(tpl *template.Template, event data.Event) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, event); err != nil {
		return "", err
	}
	return buf.String(), nil
}
