/*
handlers.go - HTTP API handlers for the extra-staff balance service

PURPOSE:
  Exposes balance records, week reports and extra-staff requests via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  extras services.

ENDPOINTS:
  Health:
    GET    /api/health                       Database reachability

  Settings:
    GET    /api/rules                        Effective engine rules
    GET    /api/settings/daily-rate          Current global daily rate
    PUT    /api/settings/daily-rate          Change the global daily rate

  Balances:
    POST   /api/balances/preview             Compute without storing
    GET    /api/balances?sector=             List records with balances
    POST   /api/balances                     Create a record (snapshots the rate)
    GET    /api/balances/overlaps            Overlapping records per sector
    GET    /api/balances/{id}                One record
    GET    /api/balances/{id}/weeks          Week reports inside the record
    PUT    /api/balances/{id}                Replace a record's inputs

  Weeks:
    GET    /api/sectors/{sector}/weeks/{date} Week report of one sector
    GET    /api/weeks/{date}                  Week reports of every covered sector

  Requests:
    GET    /api/requests?sector=&status=&from=&to=
    POST   /api/requests                     Create (auto-approve or wait)
    POST   /api/requests/preview             Decision without storing
    GET    /api/requests/{id}
    POST   /api/requests/{id}/approve|reject|cancel

REQUEST FLOW:
  1. Decode JSON body
  2. Validate shape (validator tags on the DTO)
  3. Call the service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Record or request not found
  - 409: Overlapping period, illegal status change
  - 503: Sector-week lock busy, retry
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Actor names (created_by, approved_by) are trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/factory"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AdminStore is the slice of the store the handlers touch directly:
// health checks and the demo scenario reset.
type AdminStore interface {
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Records  *extras.RecordService
	Requests *extras.RequestService
	Store    AdminStore
	Logger   *slog.Logger

	// Today anchors demo scenarios. Defaults to generic.Today.
	Today func() generic.TimePoint

	rules    *factory.RulesFactory
	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the given services.
func NewHandler(records *extras.RecordService, requests *extras.RequestService, store AdminStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Records:  records,
		Requests: requests,
		Store:    store,
		Logger:   logger,
		Today:    generic.Today,
		rules:    factory.NewRulesFactory(),
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Error("health check failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetRules returns the rules the engine runs with.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.ToJSON(h.Records.Rules()))
}

// GetDailyRate returns the rate new records will snapshot.
func (h *Handler) GetDailyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Records.DailyRate(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to get daily rate", err)
		return
	}
	writeJSON(w, http.StatusOK, DailyRateDTO{DailyRate: saldo.FormatMoney(rate)})
}

// SetDailyRate changes the global rate. Stored records keep their snapshot.
func (h *Handler) SetDailyRate(w http.ResponseWriter, r *http.Request) {
	var req DailyRateDTO
	if !h.decode(w, r, &req) {
		return
	}
	rate, err := decimal.NewFromString(req.DailyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid daily_rate", err)
		return
	}
	if err := h.Records.SetDailyRate(r.Context(), rate); err != nil {
		h.writeServiceError(w, r, "Failed to set daily rate", err)
		return
	}
	writeJSON(w, http.StatusOK, DailyRateDTO{DailyRate: saldo.FormatMoney(rate)})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// PreviewBalance computes a balance at the current rate without storing it.
func (h *Handler) PreviewBalance(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeBalanceInput(w, r)
	if !ok {
		return
	}
	result, err := h.Records.Preview(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResultDTO(result))
}

// ListBalances returns records with their balances, optionally for one sector.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Records.List(r.Context(), r.URL.Query().Get("sector"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list balance records", err)
		return
	}
	dtos := make([]RecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBalance stores a new balance record.
func (h *Handler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeBalanceInput(w, r)
	if !ok {
		return
	}
	rec, err := h.Records.Save(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, "Failed to save balance record", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(*rec))
}

// GetBalance returns one record.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get balance record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// UpdateBalance replaces the inputs of a record.
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeBalanceInput(w, r)
	if !ok {
		return
	}
	rec, err := h.Records.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update balance record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// GetBalanceWeeks returns the week reports of every full week inside a record.
func (h *Handler) GetBalanceWeeks(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Records.RecordWeeks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to build week reports", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekReportDTOs(reports))
}

// ListOverlaps returns records of one sector whose periods intersect.
func (h *Handler) ListOverlaps(w http.ResponseWriter, r *http.Request) {
	overlaps, err := h.Records.Overlaps(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to check overlaps", err)
		return
	}
	dtos := make([]OverlapDTO, len(overlaps))
	for i, o := range overlaps {
		dtos[i] = toOverlapDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeBalanceInput(w http.ResponseWriter, r *http.Request) (saldo.BalancePeriodInput, bool) {
	var req BalanceInputDTO
	if !h.decode(w, r, &req) {
		return saldo.BalancePeriodInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		h.writeServiceError(w, r, "Invalid balance input", err)
		return saldo.BalancePeriodInput{}, false
	}
	return input, true
}

// =============================================================================
// WEEK HANDLERS
// =============================================================================

// GetSectorWeek returns the week report of a sector for the week containing
// {date}.
func (h *Handler) GetSectorWeek(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	report, err := h.Records.WeekReport(r.Context(), chi.URLParam(r, "sector"), date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build week report", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekReportDTO(report))
}

// ListWeek returns week reports for every sector with a record covering the
// week containing {date}.
func (h *Handler) ListWeek(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	reports, err := h.Records.WeekReports(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build week reports", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekReportDTOs(reports))
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return generic.TimePoint{}, false
	}
	return date, true
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns requests filtered by sector, status (comma separated)
// and a from/to range on work days.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := saldo.RequestFilter{Sector: q.Get("sector")}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := saldo.Status(strings.ToUpper(strings.TrimSpace(s)))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "Unknown status "+s, nil)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	for key, dst := range map[string]**generic.TimePoint{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		date, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+key+" date (use YYYY-MM-DD)", err)
			return
		}
		*dst = &date
	}
	if filter.From != nil && filter.To != nil {
		if _, err := generic.NewPeriod(*filter.From, *filter.To); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from/to range", err)
			return
		}
	}

	reqs, err := h.Requests.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRequest stores a new request. It is approved straight away when the
// week's balance covers it, otherwise it waits for a manager.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeNewRequest(w, r)
	if !ok {
		return
	}
	req, decision, err := h.Requests.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateRequestResponse{
		Request:  toRequestDTO(*req),
		Decision: toDecisionDTO(decision),
	})
}

// PreviewRequest returns the decision a request would get right now.
func (h *Handler) PreviewRequest(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeNewRequest(w, r)
	if !ok {
		return
	}
	decision, err := h.Requests.Preview(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to evaluate request", err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(decision))
}

// GetRequest returns one request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ApproveRequest approves a pending request on behalf of a manager.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body ApproveRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.Requests.Approve(r.Context(), chi.URLParam(r, "id"), body.ApprovedBy)
	if err != nil {
		h.writeServiceError(w, r, "Failed to approve request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// RejectRequest rejects a pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.Requests.Reject(r.Context(), chi.URLParam(r, "id"), body.RejectedBy, body.Reason)
	if err != nil {
		h.writeServiceError(w, r, "Failed to reject request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// CancelRequest withdraws a pending or approved request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var body CancelRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.Requests.Cancel(r.Context(), chi.URLParam(r, "id"), body.CancelledBy)
	if err != nil {
		h.writeServiceError(w, r, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

func (h *Handler) decodeNewRequest(w http.ResponseWriter, r *http.Request) (extras.NewRequest, bool) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return extras.NewRequest{}, false
	}
	in, err := req.toNewRequest()
	if err != nil {
		h.writeServiceError(w, r, "Invalid request", err)
		return extras.NewRequest{}, false
	}
	return in, true
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads the JSON body into dst and validates it. An empty body decodes
// as an empty object. On failure the response has been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_failed",
			Details: details,
		})
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "oneof":
		return "must be one of " + fe.Param()
	case "numeric":
		return "must be a number"
	}
	return "failed on " + fe.Tag()
}

// writeServiceError maps service errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var vErr *saldo.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Code:    "validation_failed",
			Details: map[string]string{vErr.Field: vErr.Error()},
		})
	case extras.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case extras.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case extras.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case extras.IsUnavailable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.Logger.Error(message,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
