package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-resolver/internal/invalidation"
	"price-resolver/internal/metrics"
	"price-resolver/internal/pricing"
	"price-resolver/internal/resolver"
)

// DateFormat is the wire format for request and response timestamps.
const DateFormat = "2006-01-02-15.04.05"

// API bundles the handlers with their collaborators.
type API struct {
	resolver *resolver.Resolver
	queue    *invalidation.Queue
	metrics  metrics.Recorder
	logger   zerolog.Logger
}

// NewAPI constructs the handler set.
func NewAPI(res *resolver.Resolver, queue *invalidation.Queue, recorder metrics.Recorder, logger zerolog.Logger) *API {
	return &API{
		resolver: res,
		queue:    queue,
		metrics:  recorder,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// priceResponse mirrors the resolved rule on the wire.
type priceResponse struct {
	BrandID   int64           `json:"brandId"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	PriceList int32           `json:"priceList"`
	ProductID int64           `json:"productId"`
	Priority  int32           `json:"priority"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
}

func toPriceResponse(rule pricing.PriceRule) priceResponse {
	return priceResponse{
		BrandID:   rule.BrandID,
		StartDate: rule.StartDate.Format(DateFormat),
		EndDate:   rule.EndDate.Format(DateFormat),
		PriceList: rule.PriceList,
		ProductID: rule.ProductID,
		Priority:  rule.Priority,
		Price:     rule.Amount,
		Currency:  rule.Currency,
	}
}

// getPriceHandler serves GET /v1/prices.
func (a *API) getPriceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()

	date, err := parseDateParam(q.Get("date"))
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	productID, err := parsePositiveParam(q.Get("productId"), "productId")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}
	brandID, err := parsePositiveParam(q.Get("brandId"), "brandId")
	if err != nil {
		a.badRequest(w, r, err)
		return
	}

	rule, err := a.resolver.Resolve(r.Context(), date, productID, brandID)
	if err != nil {
		writeError(w, statusFromError(err), messageFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPriceResponse(rule))
}

// publishRequest is the payload accepted by the event injection endpoint.
type publishRequest struct {
	ProductID int64  `json:"productId"`
	BrandID   int64  `json:"brandId"`
	Date      string `json:"date"`
}

// publishHandler serves POST /v1/internal/publish, simulating the external
// system announcing a price change.
func (a *API) publishHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req publishRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProductID <= 0 || req.BrandID <= 0 {
		writeError(w, http.StatusBadRequest, "productId and brandId must be positive")
		return
	}

	ev := invalidation.NewEvent(req.ProductID, req.BrandID, date)
	if !a.queue.Enqueue(ev) {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}

	a.logger.Info().Stringer("event_id", ev.EventID).Int64("product_id", ev.ProductID).Msg("price update event accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":   "accepted",
		"event_id": ev.EventID.String(),
	})
}

// badRequest rejects invalid caller input with one bad_request event.
func (a *API) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	a.metrics.Record(r.Context(), metrics.OperationPriceDetail, metrics.OutcomeBadRequest)
	writeError(w, http.StatusBadRequest, messageFromError(err))
}

// healthHandler serves a liveness probe.
func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errRequiredParam("date")
	}
	t, err := time.Parse(DateFormat, raw)
	if err != nil {
		return time.Time{}, errInvalidParam("date")
	}
	return t.UTC(), nil
}

func parsePositiveParam(raw, name string) (int64, error) {
	if raw == "" {
		return 0, errRequiredParam(name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errInvalidParam(name)
	}
	return v, nil
}
