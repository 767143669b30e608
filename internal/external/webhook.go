package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"auftrag.chapter42.de/dispatch/internal/tmpl"
	"go.uber.org/zap"
)

const DefaultUserAgent = "Auftrag-Dispatch/1.0"

// HTTPDoer ist der Teil von *http.Client, den die Zustellung braucht.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostEvent schickt ein Event als JSON an den Endpunkt. Jeder Status außerhalb
// von 2xx gilt als Fehler.
func PostEvent(ctx context.Context, client HTTPDoer, endpoint *data.EndpointConfig, event data.Event, userAgent string) error {
	targetURL, err := urlBuilder(endpoint, event)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("fehler beim Serialisieren des Events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("fehler beim Erstellen der POST-Anfrage: %w", err)
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Event-Type", string(event.Type))
	req.Header.Set("X-Event-ID", event.ID)

	if endpoint.AuthProvider != nil {
		if err := endpoint.AuthProvider.Apply(req); err != nil {
			logger.Log.Warn("Fehler beim Erzeugen der Auth-Header:", zap.String("endpoint", endpoint.Name), zap.Error(err))
			return err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logger.Log.Debug("Webhook-Antwort:", zap.String("status", resp.Status), zap.String("body", string(bodyBytes)))
	return fmt.Errorf("webhook %s antwortete mit Status: %s, Body: %s", endpoint.Name, resp.Status, string(bodyBytes))
}

func urlBuilder(endpoint *data.EndpointConfig, event data.Event) (string, error) {
	if endpoint.ParsedURLTpl == nil {
		if endpoint.URL == "" {
			return "", fmt.Errorf("webhook %s hat keine URL", endpoint.Name)
		}
		return endpoint.URL, nil
	}

	target, err := tmpl.RenderEndpoint(endpoint.ParsedURLTpl, event)
	if err != nil {
		logger.Log.Warn("Fehler beim Rendern des Endpunktes:", zap.String("endpoint", endpoint.Name), zap.Error(err))
		return "", err
	}
	return target, nil
}
