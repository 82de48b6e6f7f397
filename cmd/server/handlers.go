package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/salon-margin/internal/catalog"
	"github.com/Simplici0/salon-margin/internal/export"
	"github.com/Simplici0/salon-margin/internal/pricing"
	"github.com/Simplici0/salon-margin/internal/session"
	"github.com/Simplici0/salon-margin/internal/settings"
)

type server struct {
	session  *session.Session
	settings *settings.Repository
	validate *validator.Validate
	log      zerolog.Logger
}

func newServer(sess *session.Session, rates *settings.Repository, logger zerolog.Logger) *server {
	return &server{
		session:  sess,
		settings: rates,
		validate: newValidator(),
		log:      logger,
	}
}

// newValidator lets numeric tags such as gte and lte apply to decimal fields.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/services", s.handleServicesList)
	r.Post("/services/refresh", s.handleServicesRefresh)
	r.Get("/services/export.xlsx", s.handleServicesExport)
	r.Put("/services/{id}/costs", s.handleServiceCostsUpdate)
	r.Get("/settings", s.handleSettingsGet)
	r.Put("/settings", s.handleSettingsUpdate)
	r.Post("/simulations", s.handleSimulate)
	r.Post("/simulations/text", s.handleSimulateText)
	return r
}

type serviceView struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Duration       int                 `json:"duration"`
	Price          decimal.NullDecimal `json:"price"`
	Category       string              `json:"category"`
	ProductCost    decimal.Decimal     `json:"product_cost"`
	LaunderingCost decimal.Decimal     `json:"laundering_cost"`
}

type servicesResponse struct {
	Services []serviceView     `json:"services"`
	Notices  []session.Notice `json:"notices"`
}

type costsRequest struct {
	ProductCost    *decimal.Decimal `json:"product_cost" validate:"required,gte=0"`
	LaunderingCost *decimal.Decimal `json:"laundering_cost" validate:"required,gte=0"`
}

type ratesView struct {
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	TaxPercent        decimal.Decimal `json:"tax_percent"`
	CardFeePercent    decimal.Decimal `json:"card_fee_percent"`
	FixedOverhead     decimal.Decimal `json:"fixed_overhead"`
	Currency          string          `json:"currency"`
}

type ratesRequest struct {
	CommissionPercent *decimal.Decimal `json:"commission_percent" validate:"required,gte=0,lte=100"`
	TaxPercent        *decimal.Decimal `json:"tax_percent" validate:"required,gte=0,lte=100"`
	CardFeePercent    *decimal.Decimal `json:"card_fee_percent" validate:"required,gte=0,lte=100"`
	FixedOverhead     *decimal.Decimal `json:"fixed_overhead" validate:"required,gte=0"`
	Currency          string           `json:"currency" validate:"omitempty,len=3,alpha"`
}

type simulationRequest struct {
	ServiceID         string           `json:"service_id"`
	ServiceName       string           `json:"service_name"`
	Price             *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	CommissionPercent *decimal.Decimal `json:"commission_percent" validate:"omitempty,gte=0,lte=100"`
	TaxPercent        *decimal.Decimal `json:"tax_percent" validate:"omitempty,gte=0,lte=100"`
	CardFeePercent    *decimal.Decimal `json:"card_fee_percent" validate:"omitempty,gte=0,lte=100"`
	ProductCost       *decimal.Decimal `json:"product_cost" validate:"omitempty,gte=0"`
}

type lineView struct {
	Label          string          `json:"label"`
	Amount         decimal.Decimal `json:"amount"`
	PercentOfPrice decimal.Decimal `json:"percent_of_price"`
}

type barView struct {
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
	Loss     bool            `json:"loss"`
}

type simulationResponse struct {
	Price             decimal.Decimal `json:"price"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	TaxPercent        decimal.Decimal `json:"tax_percent"`
	CardFeePercent    decimal.Decimal `json:"card_fee_percent"`
	ProductCost       decimal.Decimal `json:"product_cost"`
	FixedOverhead     decimal.Decimal `json:"fixed_overhead"`
	Commission        decimal.Decimal `json:"commission"`
	Tax               decimal.Decimal `json:"tax"`
	CardFee           decimal.Decimal `json:"card_fee"`
	VariableCosts     decimal.Decimal `json:"variable_costs"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	MarginPercent     decimal.Decimal `json:"margin_percent"`
	Currency          string          `json:"currency"`
	Lines             []lineView      `json:"lines"`
	Chart             []barView       `json:"chart"`
}

func (s *server) handleServicesList(w http.ResponseWriter, r *http.Request) {
	services, notices := s.session.Services(r.Context())
	writeJSON(w, http.StatusOK, newServicesResponse(services, notices))
}

func (s *server) handleServicesRefresh(w http.ResponseWriter, r *http.Request) {
	services, notices := s.session.Refresh(r.Context())
	writeJSON(w, http.StatusOK, newServicesResponse(services, notices))
}

func (s *server) handleServicesExport(w http.ResponseWriter, r *http.Request) {
	services, _ := s.session.Services(r.Context())

	var buf bytes.Buffer
	if err := export.WriteServices(&buf, services); err != nil {
		s.log.Error().Err(err).Msg("export services")
		writeError(w, http.StatusInternalServerError, "failed to export services")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=servicos.xlsx")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleServiceCostsUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	var req costsRequest
	if !s.decode(w, r, &req) {
		return
	}

	updated, err := s.session.UpdateCosts(r.Context(), id, *req.ProductCost, *req.LaunderingCost)
	switch {
	case errors.Is(err, session.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service not found")
		return
	case errors.Is(err, session.ErrNegativeCost):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error().Err(err).Str("service_id", id).Msg("update costs")
		writeError(w, http.StatusInternalServerError, "failed to save costs")
		return
	}

	writeJSON(w, http.StatusOK, newServiceView(updated))
}

func (s *server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	rates, err := s.settings.Get(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load rate config")
		writeError(w, http.StatusInternalServerError, "failed to load rate config")
		return
	}
	writeJSON(w, http.StatusOK, newRatesView(rates))
}

func (s *server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if !s.decode(w, r, &req) {
		return
	}

	current, err := s.settings.Get(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load rate config")
		writeError(w, http.StatusInternalServerError, "failed to load rate config")
		return
	}

	rates := settings.Rates{
		CommissionPercent: *req.CommissionPercent,
		TaxPercent:        *req.TaxPercent,
		CardFeePercent:    *req.CardFeePercent,
		FixedOverhead:     *req.FixedOverhead,
		Currency:          current.Currency,
	}
	if req.Currency != "" {
		rates.Currency = strings.ToUpper(req.Currency)
	}

	if err := s.settings.Update(r.Context(), rates); err != nil {
		s.log.Error().Err(err).Msg("update rate config")
		writeError(w, http.StatusInternalServerError, "failed to save rate config")
		return
	}
	writeJSON(w, http.StatusOK, newRatesView(rates))
}

func (s *server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	result, rates, ok := s.simulate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSimulationResponse(result, rates.Currency))
}

func (s *server) handleSimulateText(w http.ResponseWriter, r *http.Request) {
	result, rates, ok := s.simulate(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(formatStatement(result, rates.Currency)))
}

func (s *server) simulate(w http.ResponseWriter, r *http.Request) (pricing.Result, settings.Rates, bool) {
	var req simulationRequest
	if !s.decode(w, r, &req) {
		return pricing.Result{}, settings.Rates{}, false
	}

	rates, err := s.settings.Get(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load rate config")
		writeError(w, http.StatusInternalServerError, "failed to load rate config")
		return pricing.Result{}, settings.Rates{}, false
	}

	in, err := s.session.Inputs(r.Context(), session.Selection{
		ServiceID:         req.ServiceID,
		ServiceName:       req.ServiceName,
		Price:             req.Price,
		CommissionPercent: req.CommissionPercent,
		TaxPercent:        req.TaxPercent,
		CardFeePercent:    req.CardFeePercent,
		ProductCost:       req.ProductCost,
	}, rates)
	if errors.Is(err, session.ErrServiceNotFound) {
		writeError(w, http.StatusNotFound, "service not found")
		return pricing.Result{}, settings.Rates{}, false
	}
	if err != nil {
		s.log.Error().Err(err).Msg("build simulation inputs")
		writeError(w, http.StatusInternalServerError, "failed to build simulation")
		return pricing.Result{}, settings.Rates{}, false
	}

	return pricing.Calculate(in), rates, true
}

// decode reads a JSON body into dst and validates it, answering 400 on
// failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s out of range (%s %s)", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		latency := time.Since(start)
		event := s.log.Info()
		if latency > 2*time.Second {
			event = s.log.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", latency).
			Msg("request")
	})
}

func formatStatement(result pricing.Result, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resultado: %s %s (%s%%)\n\n", result.Totals.NetProfit.StringFixed(2), currency, result.Totals.MarginPercent.StringFixed(1))
	b.WriteString("Extrato:\n")
	for _, line := range result.Lines() {
		fmt.Fprintf(&b, "- %s: %s (%s%%)\n", line.Label, line.Amount.StringFixed(2), line.PercentOfPrice.StringFixed(1))
	}
	return b.String()
}

func newServicesResponse(services []catalog.EnrichedService, notices []session.Notice) servicesResponse {
	views := make([]serviceView, 0, len(services))
	for _, svc := range services {
		views = append(views, newServiceView(svc))
	}
	if notices == nil {
		notices = []session.Notice{}
	}
	return servicesResponse{Services: views, Notices: notices}
}

func newServiceView(svc catalog.EnrichedService) serviceView {
	return serviceView{
		ID:             svc.ID,
		Name:           svc.Name,
		Duration:       svc.Duration,
		Price:          svc.Price,
		Category:       svc.Category,
		ProductCost:    svc.ProductCost,
		LaunderingCost: svc.LaunderingCost,
	}
}

func newRatesView(rc settings.Rates) ratesView {
	return ratesView{
		CommissionPercent: rc.CommissionPercent,
		TaxPercent:        rc.TaxPercent,
		CardFeePercent:    rc.CardFeePercent,
		FixedOverhead:     rc.FixedOverhead,
		Currency:          rc.Currency,
	}
}

func newSimulationResponse(result pricing.Result, currency string) simulationResponse {
	resp := simulationResponse{
		Price:             result.Inputs.Price,
		CommissionPercent: result.Inputs.CommissionPercent,
		TaxPercent:        result.Inputs.TaxPercent,
		CardFeePercent:    result.Inputs.CardFeePercent,
		ProductCost:       result.Inputs.ProductCost,
		FixedOverhead:     result.Inputs.FixedOverhead,
		Commission:        result.Breakdown.Commission,
		Tax:               result.Breakdown.Tax,
		CardFee:           result.Breakdown.CardFee,
		VariableCosts:     result.Totals.VariableCosts,
		GrossProfit:       result.Totals.GrossProfit,
		NetProfit:         result.Totals.NetProfit,
		MarginPercent:     result.Totals.MarginPercent,
		Currency:          currency,
	}
	for _, l := range result.Lines() {
		resp.Lines = append(resp.Lines, lineView{Label: l.Label, Amount: l.Amount, PercentOfPrice: l.PercentOfPrice})
	}
	for _, b := range result.Chart() {
		resp.Chart = append(resp.Chart, barView{Category: b.Category, Value: b.Value, Loss: b.Loss})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
