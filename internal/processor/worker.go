package processor

import (
	"context"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/external"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"auftrag.chapter42.de/dispatch/internal/timebackoff"
	"go.uber.org/zap"
)

// Start startet den Workerpool. Mehrfacher Aufruf ist wirkungslos.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	workers := max(d.cfg.Workers, 1)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logger.Log.Info("Webhook-Worker gestartet:", zap.Int("workers", workers), zap.Int("endpoints", len(d.endpoints)))
}

// Stop beendet die Worker. Laufende Zustellungen werden abgebrochen, sobald ctx
// abläuft; was übrig bleibt, liefert danach Pending.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.backlog = nil
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Log.Warn("Webhook-Worker nicht rechtzeitig fertig, breche ab")
		d.cancel()
		<-done
	}
	d.cancel()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for delivery := range d.queue {
		if d.ctx.Err() != nil {
			// Abgebrochen: Rest bleibt in pending und wird gesichert
			continue
		}
		d.deliver(delivery)
		d.refill()
	}
}

func (d *Dispatcher) deliver(delivery data.Delivery) {
	ep, ok := d.endpoints[delivery.Endpoint]
	if !ok {
		logger.Log.Warn("Unbekannter Webhook, Zustellung verworfen:", zap.String("endpoint", delivery.Endpoint), zap.String("id", delivery.ID))
		d.forget(delivery.ID)
		return
	}

	for {
		delivery.Attempts++

		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
		if d.cfg.Timeout <= 0 {
			ctx, cancel = context.WithCancel(d.ctx)
		}
		err := external.PostEvent(ctx, d.client, ep, delivery.Event, d.cfg.UserAgent)
		cancel()

		if err == nil {
			logger.Log.Info("Webhook erfolgreich zugestellt:", zap.String("endpoint", ep.Name), zap.String("type", string(delivery.Event.Type)), zap.String("event_id", delivery.Event.ID), zap.Int("attempts", delivery.Attempts))
			d.forget(delivery.ID)
			return
		}

		if d.ctx.Err() != nil {
			// Herunterfahren: Versuch zählt nicht
			delivery.Attempts--
			d.remember(delivery)
			return
		}

		if delivery.Attempts >= d.cfg.MaxAttempts {
			logger.Log.Error("Webhook-Zustellung fehlgeschlagen, verworfen:", zap.String("endpoint", ep.Name), zap.String("type", string(delivery.Event.Type)), zap.String("event_id", delivery.Event.ID), zap.Int("attempts", delivery.Attempts), zap.Error(err))
			d.forget(delivery.ID)
			return
		}

		wait := timebackoff.Delay(delivery.Attempts-1, d.cfg.MaxBackoff)
		logger.Log.Warn("Webhook-Zustellung fehlgeschlagen, neuer Versuch:", zap.String("endpoint", ep.Name), zap.String("event_id", delivery.Event.ID), zap.Int("attempts", delivery.Attempts), zap.Duration("wait", wait), zap.Error(err))
		d.remember(delivery)

		if !d.sleep(d.ctx, wait) {
			d.remember(delivery)
			return
		}
	}
}
