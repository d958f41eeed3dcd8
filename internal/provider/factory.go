package provider

// #region imports
import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/roastr-ai/roast-engine/internal/logging"
	"github.com/roastr-ai/roast-engine/internal/route"
)

// #endregion

// #region factory

type cacheKey struct {
	mode string
	plan string
}

// Factory lazily builds and caches one Client per (mode, plan).
// Concurrent misses for the same key may both build; the last write wins.
type Factory struct {
	table   *route.Table
	dialer  Dialer
	offline bool
	log     *logrus.Entry

	mu    sync.RWMutex
	cache map[cacheKey]*Client
}

// NewFactory creates a factory. offline forces the mock transport; a nil
// dialer has no credentials.
func NewFactory(table *route.Table, dialer Dialer, offline bool, log *logrus.Entry) *Factory {
	if table == nil {
		table = route.DefaultTable()
	}
	if dialer == nil {
		dialer = SDKDialer{}
	}
	return &Factory{
		table:   table,
		dialer:  dialer,
		offline: offline,
		log:     logging.OrDiscard(log),
		cache:   make(map[cacheKey]*Client),
	}
}

// Table returns the route table the factory resolves against.
func (f *Factory) Table() *route.Table { return f.table }

// #endregion

// #region get-client

// GetClient returns the cached client for (mode, plan), building it on a miss.
// Unknown modes share the default slot.
func (f *Factory) GetClient(mode, plan string) (*Client, error) {
	key := f.key(mode, plan)

	f.mu.RLock()
	c, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := f.build(key)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[key] = c
	f.mu.Unlock()
	return c, nil
}

func (f *Factory) key(mode, plan string) cacheKey {
	m := route.Normalize(mode)
	if !f.table.Exists(m) {
		m = route.ModeDefault
	}
	if plan == "" {
		plan = "default"
	}
	return cacheKey{mode: m, plan: plan}
}

// #endregion

// #region build

// build selects the transport for a cache miss. The configured route is
// never modified; a downgrade produces a new effective route for this client.
func (f *Factory) build(key cacheKey) (*Client, error) {
	configured := f.table.Route(key.mode)
	effective := configured
	downgraded := false

	gateway := f.dialer.GatewayConfigured()
	if configured.Specialized() && !f.dialer.HasCredentials(configured.Provider) && !gateway {
		effective = configured.Downgraded()
		downgraded = true
	}

	direct := func() (Transport, error) { return f.dialer.Direct(route.DefaultProvider) }

	var (
		t   Transport
		err error
	)
	switch {
	case f.offline:
		t = f.dialer.Mock()
	case effective.Specialized() && !gateway:
		t, err = f.dialer.Direct(effective.Provider)
	case gateway:
		t, err = f.dialer.Gateway(effective)
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"event": "gateway_unavailable",
				"mode":  key.mode,
			}).WithError(err).Warn("gateway construction failed, using direct client")
			if effective.Specialized() {
				effective = effective.Downgraded()
				downgraded = true
			}
			t, err = direct()
		}
	default:
		t, err = direct()
	}
	if err != nil {
		return nil, fmt.Errorf("build client %s/%s: %w", key.mode, key.plan, err)
	}

	f.log.WithFields(logrus.Fields{
		"event":      "client_created",
		"mode":       key.mode,
		"plan":       key.plan,
		"provider":   t.Provider(),
		"model":      effective.Model,
		"kind":       t.Kind(),
		"downgraded": downgraded,
	}).Info("provider client created")

	return &Client{
		mode:      key.mode,
		plan:      key.plan,
		route:     effective,
		transport: t,
		table:     f.table,
		direct:    direct,
		log:       f.log,
	}, nil
}

// #endregion

// #region cache-ops

// Clear drops every cached client.
func (f *Factory) Clear() {
	f.mu.Lock()
	f.cache = make(map[cacheKey]*Client)
	f.mu.Unlock()
}

// Len returns the number of cached clients.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// #endregion
