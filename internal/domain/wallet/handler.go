package wallet

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebook/carebook-api/internal/middleware"
	"github.com/carebook/carebook-api/internal/pkg/response"
	"github.com/carebook/carebook-api/internal/pkg/validator"
)

// PendingEarningsProvider reports money earned but not yet credited.
type PendingEarningsProvider interface {
	TotalPending(ctx context.Context, doctorID uuid.UUID) (int64, error)
}

type Handler struct {
	svc      *Service
	earnings PendingEarningsProvider
}

func NewHandler(svc *Service, earnings PendingEarningsProvider) *Handler {
	return &Handler{svc: svc, earnings: earnings}
}

type summaryResponse struct {
	Wallet                 *Wallet `json:"wallet"`
	UpcomingEarnings       int64   `json:"upcoming_earnings"`
	AvailableForWithdrawal int64   `json:"available_for_withdrawal"`
}

// Summary returns the doctor's wallet together with projected and
// withdrawable amounts.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())
	if doctorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetWallet(r.Context(), doctorID)
	if err != nil {
		response.InternalError(w)
		return
	}

	pending, err := h.earnings.TotalPending(r.Context(), doctorID)
	if err != nil {
		response.InternalError(w)
		return
	}

	available, err := h.svc.AvailableForWithdrawal(r.Context(), doctorID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, summaryResponse{
		Wallet:                 wallet,
		UpcomingEarnings:       pending,
		AvailableForWithdrawal: available,
	})
}

// Transactions lists the authenticated user's ledger history.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.svc.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}

// SearchTransactions is the admin-facing filtered ledger view.
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SearchFilters{}

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		filters.UserID = &id
	}
	if v := q.Get("type"); v != "" {
		t := TransactionType(v)
		filters.Type = &t
	}
	if v := q.Get("status"); v != "" {
		st := TransactionStatus(v)
		filters.Status = &st
	}
	if v := q.Get("reference_type"); v != "" {
		rt := ReferenceType(v)
		filters.ReferenceType = &rt
	}
	if v := q.Get("reference_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid reference_id")
			return
		}
		filters.ReferenceID = &id
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "invalid date_from, expected RFC3339")
			return
		}
		filters.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "invalid date_to, expected RFC3339")
			return
		}
		filters.DateTo = &t
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))

	transactions, err := h.svc.SearchTransactions(r.Context(), filters)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}

type commissionRequest struct {
	Rate int `json:"rate" validate:"gte=0,lte=100"`
}

// SetCommission updates a doctor's platform commission rate (admin only).
func (h *Handler) SetCommission(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid doctor id")
		return
	}

	var req commissionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.SetCommissionRate(r.Context(), doctorID, req.Rate); err != nil {
		if errors.Is(err, ErrInvalidCommissionRate) {
			response.BadRequest(w, "commission rate must be between 0 and 100")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"doctor_id": doctorID, "rate": req.Rate})
}

// Routes mounts the doctor/patient-facing wallet endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(middleware.RequireDoctor()).Get("/", h.Summary)
	r.Get("/transactions", h.Transactions)
	return r
}

// AdminRoutes mounts the admin-facing ledger endpoints.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Get("/transactions", h.SearchTransactions)
	r.Patch("/doctors/{id}/commission", h.SetCommission)
	return r
}
