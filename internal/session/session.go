// Package session holds the operator's working state: the cached catalog,
// the merged service table and the notices produced while building it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/salon-margin/internal/avec"
	"github.com/Simplici0/salon-margin/internal/catalog"
	"github.com/Simplici0/salon-margin/internal/ledger"
	"github.com/Simplici0/salon-margin/internal/pricing"
	"github.com/Simplici0/salon-margin/internal/settings"
)

// DefaultTTL is how long a fetched catalog is reused.
const DefaultTTL = time.Hour

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrNegativeCost    = errors.New("costs must be greater than or equal to 0")
)

// Fetcher is the remote catalog source.
type Fetcher interface {
	Fetch(ctx context.Context) avec.Result
}

// Level grades a notice for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a non-blocking message for the operator.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type catalogKey struct{}

// Session is safe for concurrent use; every operation runs under one lock.
type Session struct {
	mu       sync.Mutex
	fetcher  Fetcher
	ledger   *ledger.Store
	cache    *expirable.LRU[catalogKey, []catalog.ServiceRecord]
	log      zerolog.Logger
	services []catalog.EnrichedService
	notices  []Notice
	loaded   bool
}

func New(fetcher Fetcher, store *ledger.Store, ttl time.Duration, log zerolog.Logger) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		fetcher:  fetcher,
		ledger:   store,
		cache:    expirable.NewLRU[catalogKey, []catalog.ServiceRecord](1, nil, ttl),
		log:      log.With().Str("component", "session").Logger(),
		services: []catalog.EnrichedService{},
	}
}

// Services returns the current table. It is rebuilt when the cached catalog
// is missing or expired, so partial fetches are retried on the next call.
func (s *Session) Services(ctx context.Context) ([]catalog.EnrichedService, []Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureFresh(ctx)
	return s.snapshot()
}

// Load rebuilds the table, reusing the cached catalog while it is fresh.
func (s *Session) Load(ctx context.Context) ([]catalog.EnrichedService, []Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(ctx)
	return s.snapshot()
}

// Refresh drops the cached catalog and rebuilds the table from a new fetch.
func (s *Session) Refresh(ctx context.Context) ([]catalog.EnrichedService, []Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	s.load(ctx)
	return s.snapshot()
}

// ensureFresh rebuilds the table unless it was built from a catalog that is
// still cached. Peek reports expired entries as missing.
func (s *Session) ensureFresh(ctx context.Context) {
	if s.loaded {
		if _, ok := s.cache.Peek(catalogKey{}); ok {
			return
		}
	}
	s.load(ctx)
}

func (s *Session) load(ctx context.Context) {
	s.notices = nil

	records, ok := s.catalog(ctx)
	if !ok {
		// Previous table stays on display.
		s.loaded = true
		return
	}

	costs := s.ledger.Load()
	switch costs.Status {
	case ledger.StatusRecreate:
		s.notify(LevelWarning, fmt.Sprintf("Arquivo de custos recriado por incompatibilidade: %v", costs.Cause))
	case ledger.StatusMissing:
		s.log.Debug().Str("path", s.ledger.Path()).Msg("no cost file yet")
	}

	s.services = catalog.Merge(records, costs.Table)
	s.loaded = true
	s.log.Info().Int("services", len(s.services)).Int("overrides", len(costs.Table)).Msg("service table rebuilt")
}

// catalog returns normalized records from cache or a new fetch. It reports
// false when the fetched batch failed validation.
func (s *Session) catalog(ctx context.Context) ([]catalog.ServiceRecord, bool) {
	if cached, ok := s.cache.Get(catalogKey{}); ok {
		return cached, true
	}

	res := s.fetcher.Fetch(ctx)
	if res.Err != nil {
		s.notify(LevelWarning, fmt.Sprintf("Erro ao carregar dados da API, exibindo %d serviços: %v", len(res.Records), res.Err))
	}

	records, err := catalog.Normalize(res.Records)
	if err != nil {
		s.log.Error().Err(err).Msg("catalog failed validation")
		s.notify(LevelError, fmt.Sprintf("Dados inválidos recebidos da API: %v", err))
		return nil, false
	}

	if res.Complete() {
		s.cache.Add(catalogKey{}, records)
	}
	return records, true
}

// UpdateCosts stores new costs for one service and applies them to the
// current table. The whole ledger is rewritten, including rows for services
// that are no longer listed.
func (s *Session) UpdateCosts(ctx context.Context, id string, product, laundering decimal.Decimal) (catalog.EnrichedService, error) {
	if product.IsNegative() || laundering.IsNegative() {
		return catalog.EnrichedService{}, ErrNegativeCost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureFresh(ctx)

	idx := -1
	for i := range s.services {
		if s.services[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return catalog.EnrichedService{}, ErrServiceNotFound
	}

	costs := s.ledger.Load()
	costs.Table.Set(id, ledger.Override{ProductCost: product, LaunderingCost: laundering})
	if err := s.ledger.Save(costs.Table); err != nil {
		return catalog.EnrichedService{}, fmt.Errorf("save costs: %w", err)
	}

	s.services[idx].ProductCost = product
	s.services[idx].LaunderingCost = laundering
	s.log.Info().Str("service_id", id).Str("product_cost", product.String()).Str("laundering_cost", laundering.String()).Msg("costs saved")
	return s.services[idx], nil
}

// Selection picks the service a simulation starts from and optionally
// overrides any of its inputs.
type Selection struct {
	ServiceID         string
	ServiceName       string
	Price             *decimal.Decimal
	CommissionPercent *decimal.Decimal
	TaxPercent        *decimal.Decimal
	CardFeePercent    *decimal.Decimal
	ProductCost       *decimal.Decimal
}

// Inputs builds simulation inputs: price and product+laundering cost come from
// the selected service, rates and fixed overhead from rates, and any field set
// in sel wins. With no service selected the service defaults are zero.
func (s *Session) Inputs(ctx context.Context, sel Selection, rates settings.Rates) (pricing.Inputs, error) {
	in := pricing.Inputs{
		CommissionPercent: rates.CommissionPercent,
		TaxPercent:        rates.TaxPercent,
		CardFeePercent:    rates.CardFeePercent,
		FixedOverhead:     rates.FixedOverhead,
	}

	if sel.ServiceID != "" || sel.ServiceName != "" {
		svc, err := s.find(ctx, sel)
		if err != nil {
			return pricing.Inputs{}, err
		}
		if svc.Price.Valid {
			in.Price = svc.Price.Decimal
		}
		in.ProductCost = svc.VariableCost()
	}

	override(&in.Price, sel.Price)
	override(&in.CommissionPercent, sel.CommissionPercent)
	override(&in.TaxPercent, sel.TaxPercent)
	override(&in.CardFeePercent, sel.CardFeePercent)
	override(&in.ProductCost, sel.ProductCost)
	return in, nil
}

func (s *Session) find(ctx context.Context, sel Selection) (catalog.EnrichedService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureFresh(ctx)

	if sel.ServiceID != "" {
		if svc, ok := catalog.Find(s.services, sel.ServiceID); ok {
			return svc, nil
		}
		return catalog.EnrichedService{}, ErrServiceNotFound
	}
	if svc, ok := catalog.FindByName(s.services, sel.ServiceName); ok {
		return svc, nil
	}
	return catalog.EnrichedService{}, ErrServiceNotFound
}

func override(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func (s *Session) notify(level Level, msg string) {
	s.notices = append(s.notices, Notice{Level: level, Message: msg})
}

func (s *Session) snapshot() ([]catalog.EnrichedService, []Notice) {
	services := make([]catalog.EnrichedService, len(s.services))
	copy(services, s.services)
	notices := make([]Notice, len(s.notices))
	copy(notices, s.notices)
	return services, notices
}
