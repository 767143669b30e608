package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"go.uber.org/zap"
)

const DefaultFileName string = "pending_deliveries.json"

// SavePendingDeliveries schreibt offene Zustellungen in die Datei. Ohne offene
// Zustellungen wird eine vorhandene Datei entfernt.
func SavePendingDeliveries(path string, deliveries []data.Delivery) error {
	if path == "" {
		path = DefaultFileName
	}
	if len(deliveries) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	content, err := json.MarshalIndent(deliveries, "", "  ")
	if err != nil {
		return fmt.Errorf("fehler beim Serialisieren der offenen Zustellungen: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("fehler beim Speichern der offenen Zustellungen in %s: %w", path, err)
	}

	logger.Log.Info("Offene Zustellungen in Datei gespeichert:", zap.String("filename", path), zap.Int("count", len(deliveries)))
	return nil
}

// RestorePendingDeliveries liest die gesicherten Zustellungen und löscht die Datei.
// Eine fehlende Datei ergibt eine leere Liste.
func RestorePendingDeliveries(path string) ([]data.Delivery, error) {
	if path == "" {
		path = DefaultFileName
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("fehler beim Lesen der offenen Zustellungen aus %s: %w", path, err)
	}

	var deliveries []data.Delivery
	if err := json.Unmarshal(content, &deliveries); err != nil {
		return nil, fmt.Errorf("fehler beim Deserialisieren der offenen Zustellungen aus %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil {
		logger.Log.Warn("Sicherungsdatei konnte nicht entfernt werden:", zap.String("filename", path), zap.Error(err))
	}

	logger.Log.Info("Offene Zustellungen aus Datei wiederhergestellt:", zap.String("filename", path), zap.Int("count", len(deliveries)))
	return deliveries, nil
}
