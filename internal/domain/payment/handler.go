package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/domain/appointment"
	"github.com/carebook/carebook-api/internal/middleware"
	"github.com/carebook/carebook-api/internal/pkg/gateway"
	"github.com/carebook/carebook-api/internal/pkg/response"
	"github.com/carebook/carebook-api/internal/pkg/validator"
)

const signatureHeader = "X-Gateway-Signature"

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

type createRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" validate:"required"`
	Method        string    `json:"method" validate:"required,payment_method"`
}

// Create opens a pending payment for the authenticated patient.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patientID := middleware.GetUserID(r.Context())
	if patientID == uuid.Nil {
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

	p, err := h.svc.Create(r.Context(), patientID, req.AppointmentID, req.Method)
	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrNotFound), errors.Is(err, ErrNotFound):
			response.NotFound(w, "appointment not found")
		case errors.Is(err, ErrDuplicateAppointment):
			response.Conflict(w, "appointment already has a payment")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, p)
}

// Get returns one payment, visible to its patient or an admin.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "payment not found")
			return
		}
		response.InternalError(w)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if p.PatientID != userID && middleware.GetRole(r.Context()) != middleware.RoleAdmin {
		response.Forbidden(w, "not your payment")
		return
	}

	response.OK(w, p)
}

// List returns the authenticated patient's payment history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID := middleware.GetUserID(r.Context())
	if patientID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.svc.ListByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"payments": payments})
}

// RefundPreview quotes what a patient cancellation would refund right now.
func (h *Handler) RefundPreview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "payment not found")
			return
		}
		response.InternalError(w)
		return
	}
	if p.PatientID != middleware.GetUserID(r.Context()) {
		response.Forbidden(w, "not your payment")
		return
	}

	quote, err := h.svc.PreviewRefund(r.Context(), id, InitiatorPatient)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRefunded):
			response.Conflict(w, "payment already refunded")
		case errors.Is(err, ErrNotCaptured):
			response.Conflict(w, "payment is not captured")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, quote)
}

type adminRefundRequest struct {
	Initiator string `json:"initiator" validate:"required,initiator"`
	Reason    string `json:"reason" validate:"required"`
}

// AdminRefund lets an admin apply a refund directly against a payment.
func (h *Handler) AdminRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	var req adminRefundRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.svc.Refund(r.Context(), id, Initiator(req.Initiator), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "payment not found")
		case errors.Is(err, ErrAlreadyRefunded):
			response.Conflict(w, "payment already refunded")
		case errors.Is(err, ErrNotCaptured):
			response.Conflict(w, "payment is not captured")
		case errors.Is(err, ErrGateway):
			response.Error(w, http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway refund failed")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, p)
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		PaymentID        uuid.UUID `json:"payment_id"`
		GatewayPaymentID string    `json:"gateway_payment_id"`
	} `json:"data"`
}

// Webhook receives gateway callbacks. The HMAC signature over the raw body
// is verified before the payload is trusted; unknown event types are
// acknowledged so the gateway stops retrying them.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	if !gateway.VerifySignature(body, r.Header.Get(signatureHeader), h.webhookSecret) {
		response.Unauthorized(w, "invalid webhook signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	switch event.Type {
	case "payment.captured":
		if event.Data.PaymentID == uuid.Nil {
			response.BadRequest(w, "missing payment_id")
			return
		}
		if _, err := h.svc.Capture(r.Context(), event.Data.PaymentID, event.Data.GatewayPaymentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				response.NotFound(w, "payment not found")
				return
			}
			response.InternalError(w)
			return
		}
	default:
		log.Debug().Str("type", event.Type).Msg("ignoring gateway webhook event")
	}

	response.OK(w, map[string]interface{}{"received": true})
}

// Routes mounts the patient-facing payment endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/refund-preview", h.RefundPreview)
	return r
}

// AdminRoutes mounts the admin refund endpoint.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Post("/{id}/refund", h.AdminRefund)
	return r
}

// WebhookRoutes mounts the unauthenticated, signature-verified webhook.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/gateway", h.Webhook)
	return r
}
