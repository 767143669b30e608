package processor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/external"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher verteilt Events an die konfigurierten Webhooks. Zustellungen laufen
// asynchron über eine begrenzte Queue; Fehler werden nur protokolliert.
type Dispatcher struct {
	cfg       *data.WebhookConfig
	client    external.HTTPDoer
	endpoints map[string]*data.EndpointConfig
	queue     chan data.Delivery

	mu      sync.Mutex
	pending map[string]data.Delivery
	backlog []data.Delivery
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep ist in Tests austauschbar
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewDispatcher(cfg *data.WebhookConfig, client external.HTTPDoer) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	endpoints := make(map[string]*data.EndpointConfig, len(cfg.Endpoints))
	for i := range cfg.Endpoints {
		endpoints[cfg.Endpoints[i].Name] = &cfg.Endpoints[i]
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:       cfg,
		client:    client,
		endpoints: endpoints,
		queue:     make(chan data.Delivery, queueSize),
		pending:   map[string]data.Delivery{},
		ctx:       ctx,
		cancel:    cancel,
		sleep:     sleepCtx,
	}
}

// Publish erzeugt für jeden passenden Endpunkt eine Zustellung und liefert
// die Anzahl der eingereihten Zustellungen.
func (d *Dispatcher) Publish(event data.Event) int {
	targets := slice.Filter(d.cfg.Endpoints, func(_ int, ep data.EndpointConfig) bool {
		return ep.Subscribes(event.Type)
	})
	if len(targets) == 0 {
		logger.Log.Debug("Kein Webhook für Event abonniert:", zap.String("type", string(event.Type)))
		return 0
	}

	queued := 0
	for _, ep := range targets {
		delivery := data.Delivery{
			ID:        uuid.NewString(),
			Endpoint:  ep.Name,
			Event:     event,
			CreatedAt: time.Now(),
		}
		if d.Enqueue(delivery) {
			queued++
		}
	}
	return queued
}

// Enqueue reiht eine Zustellung ein. Bei voller Queue wird sie verworfen.
func (d *Dispatcher) Enqueue(delivery data.Delivery) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		// Nach dem Stopp nur noch merken, damit sie gesichert werden kann
		d.pending[delivery.ID] = delivery
		return false
	}

	select {
	case d.queue <- delivery:
		d.pending[delivery.ID] = delivery
		logger.Log.Debug("Zustellung eingereiht:", zap.String("id", delivery.ID), zap.String("endpoint", delivery.Endpoint), zap.String("type", string(delivery.Event.Type)))
		return true
	default:
		logger.Log.Error("Webhook-Queue voll, Zustellung verworfen:", zap.String("endpoint", delivery.Endpoint), zap.String("type", string(delivery.Event.Type)), zap.String("event_id", delivery.Event.ID))
		return false
	}
}

// Restore übernimmt gesicherte Zustellungen. Was nicht in die Queue passt,
// wartet im Backlog und rückt nach, sobald die Worker Platz schaffen. Alle
// Zustellungen gelten bis zur Erledigung als offen.
func (d *Dispatcher) Restore(deliveries []data.Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, delivery := range deliveries {
		d.pending[delivery.ID] = delivery
		if !d.stopped {
			d.backlog = append(d.backlog, delivery)
		}
	}
	d.refillLocked()
}

func (d *Dispatcher) refill() {
	d.mu.Lock()
	d.refillLocked()
	d.mu.Unlock()
}

func (d *Dispatcher) refillLocked() {
	for len(d.backlog) > 0 && !d.stopped {
		select {
		case d.queue <- d.backlog[0]:
			d.backlog = d.backlog[1:]
		default:
			return
		}
	}
}

// Pending liefert alle noch nicht erledigten Zustellungen.
func (d *Dispatcher) Pending() []data.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]data.Delivery, 0, len(d.pending))
	for _, del := range d.pending {
		out = append(out, del)
	}
	return out
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) remember(delivery data.Delivery) {
	d.mu.Lock()
	d.pending[delivery.ID] = delivery
	d.mu.Unlock()
}

func sleepCtx(ctx context.Context, wait time.Duration) bool {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
