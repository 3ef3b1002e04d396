package withdrawal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebook/carebook-api/internal/domain/wallet"
	"github.com/carebook/carebook-api/internal/middleware"
	"github.com/carebook/carebook-api/internal/pkg/response"
	"github.com/carebook/carebook-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "withdrawal not found")
	case errors.Is(err, ErrBelowMinimum):
		response.BadRequest(w, "amount below minimum withdrawal")
	case errors.Is(err, ErrCreditNotClaimable), errors.Is(err, ErrCreditAlreadyClaimed):
		response.Conflict(w, "one or more credits are not claimable")
	case errors.Is(err, ErrStateConflict):
		response.Conflict(w, "withdrawal is not in the required state")
	case errors.Is(err, ErrWrongHospital):
		response.Forbidden(w, "withdrawal belongs to another hospital")
	case errors.Is(err, ErrInvalidOrExpiredOTP):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_OTP", "invalid or expired one-time code")
	case errors.Is(err, wallet.ErrInsufficientBalance):
		response.Conflict(w, "insufficient wallet balance")
	default:
		response.InternalError(w)
	}
}

type createRequest struct {
	TransactionIDs []uuid.UUID `json:"transaction_ids" validate:"required,min=1,dive,required"`
	Method         string      `json:"method" validate:"required,payment_method"`
}

// Create opens a withdrawal over the doctor's chosen credit rows.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())
	hospitalID := middleware.GetHospitalID(r.Context())
	if doctorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	created, err := h.svc.Create(r.Context(), doctorID, hospitalID, req.TransactionIDs, req.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, created)
}

// List returns the doctor's withdrawal history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())
	if doctorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	withdrawals, err := h.svc.ListByDoctor(r.Context(), doctorID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"withdrawals": withdrawals})
}

// Get returns one withdrawal, visible to its doctor, its hospital or an admin.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	wd, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	switch middleware.GetRole(ctx) {
	case middleware.RoleAdmin:
	case middleware.RoleDoctor:
		if wd.DoctorID != middleware.GetUserID(ctx) {
			response.Forbidden(w, "not your withdrawal")
			return
		}
	case middleware.RoleHospitalAdmin:
		if wd.HospitalID != middleware.GetHospitalID(ctx) {
			response.Forbidden(w, "not your hospital's withdrawal")
			return
		}
	default:
		response.Forbidden(w, "insufficient permissions")
		return
	}

	response.OK(w, wd)
}

// VerifyReceipt is the doctor's final confirmation.
func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	wd, err := h.svc.VerifyReceipt(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, wd)
}

// Approve is the platform admin's sign-off on a pending withdrawal.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	wd, err := h.svc.Approve(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, wd)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Reject terminates a pending withdrawal with a mandatory reason.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	var req rejectRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	wd, err := h.svc.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, wd)
}

// Queue returns withdrawals in one state for the admin review queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusPending
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	withdrawals, err := h.svc.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"withdrawals": withdrawals})
}

// HospitalList returns the authenticated hospital's withdrawal queue.
func (h *Handler) HospitalList(w http.ResponseWriter, r *http.Request) {
	hospitalID := middleware.GetHospitalID(r.Context())
	if hospitalID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	withdrawals, err := h.svc.ListByHospital(r.Context(), hospitalID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"withdrawals": withdrawals})
}

type hospitalTransferRequest struct {
	HospitalID       uuid.UUID `json:"hospital_id" validate:"required"`
	PaymentReference string    `json:"payment_reference" validate:"required"`
	PaymentProof     string    `json:"payment_proof"`
}

// RecordHospitalTransfer records the platform admin's bank transfer to the
// hospital. The body names the hospital that was paid as a cross-check
// against the withdrawal.
func (h *Handler) RecordHospitalTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	var req hospitalTransferRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	wd, err := h.svc.RecordHospitalTransfer(r.Context(), id, req.HospitalID, req.PaymentReference, req.PaymentProof)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, wd)
}

// GenerateOTP issues a fresh handoff code for the in-person payout.
func (h *Handler) GenerateOTP(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	expiresAt, err := h.svc.GenerateOTP(r.Context(), id, middleware.GetHospitalID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{"expires_at": expiresAt})
}

type doctorPaymentRequest struct {
	Code             string `json:"code" validate:"required,len=6,numeric"`
	PaymentReference string `json:"payment_reference" validate:"required"`
	PaymentProof     string `json:"payment_proof"`
}

// RecordDoctorPayment submits the doctor's code to prove the cash handoff,
// with the payout reference and the settling hospital user stamped on the
// withdrawal.
func (h *Handler) RecordDoctorPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	var req doctorPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	ctx := r.Context()
	wd, err := h.svc.RecordDoctorPayment(ctx, id, middleware.GetHospitalID(ctx), middleware.GetUserID(ctx), req.Code, req.PaymentReference, req.PaymentProof)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, wd)
}

// Routes mounts the doctor-facing withdrawal endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireDoctor())
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/{id}/verify-receipt", h.VerifyReceipt)
	})
	return r
}

// AdminRoutes mounts the platform admin review endpoints.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Get("/", h.Queue)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/hospital-transfer", h.RecordHospitalTransfer)
	return r
}

// HospitalRoutes mounts the hospital settlement endpoints.
func (h *Handler) HospitalRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireHospitalAdmin())
	r.Get("/", h.HospitalList)
	r.Post("/{id}/otp", h.GenerateOTP)
	r.Post("/{id}/doctor-payment", h.RecordDoctorPayment)
	return r
}
