package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/domain/earnings"
	"github.com/carebook/carebook-api/internal/domain/payment"
	"github.com/carebook/carebook-api/internal/pkg/response"
	"github.com/carebook/carebook-api/internal/pkg/validator"
)

// Handler receives appointment lifecycle events from the booking service.
// All routes are mounted behind the internal service key.
type Handler struct {
	repo     *Repository
	earnings *earnings.Service
	payments *payment.Service
}

func NewHandler(repo *Repository, earningsSvc *earnings.Service, paymentSvc *payment.Service) *Handler {
	return &Handler{repo: repo, earnings: earningsSvc, payments: paymentSvc}
}

type upsertRequest struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	PatientID   uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID    uuid.UUID `json:"doctor_id" validate:"required"`
	HospitalID  uuid.UUID `json:"hospital_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Fee         int64     `json:"fee" validate:"required,gt=0"`
}

// Upsert mirrors a booked appointment from the booking service.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	a := &Appointment{
		ID:          req.ID,
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		HospitalID:  req.HospitalID,
		ScheduledAt: req.ScheduledAt,
		Fee:         req.Fee,
	}
	if err := h.repo.Upsert(r.Context(), a); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, a)
}

// Completed handles the appointment-completed event: flip the local status
// and release the doctor's pending earning. Replays are safe end to end.
func (h *Handler) Completed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid appointment id")
		return
	}

	if _, err := h.repo.SetStatus(r.Context(), id, StatusCompleted); err != nil {
		response.InternalError(w)
		return
	}

	released, err := h.earnings.Release(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, earnings.ErrNotFound):
			// Completed without a captured payment: nothing to credit.
			response.OK(w, map[string]interface{}{"appointment_id": id, "credited": false})
			return
		case errors.Is(err, earnings.ErrAlreadyCancelled):
			response.Conflict(w, "earning was cancelled before completion")
			return
		default:
			response.InternalError(w)
			return
		}
	}

	response.OK(w, released)
}

type cancelRequest struct {
	Initiator string `json:"initiator" validate:"required,initiator"`
	Reason    string `json:"reason"`
}

// Cancelled handles the appointment-cancelled event: flip the local status
// and apply the refund policy to the appointment's payment.
func (h *Handler) Cancelled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid appointment id")
		return
	}

	var req cancelRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if _, err := h.repo.SetStatus(r.Context(), id, StatusCancelled); err != nil {
		response.InternalError(w)
		return
	}

	p, err := h.payments.ApplyCancellation(r.Context(), id, payment.Initiator(req.Initiator), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrAlreadyRefunded):
			response.Conflict(w, "payment already refunded")
		case errors.Is(err, payment.ErrGateway):
			response.Error(w, http.StatusBadGateway, "GATEWAY_ERROR", "payment gateway refund failed")
		default:
			response.InternalError(w)
		}
		return
	}
	if p == nil {
		log.Info().Str("appointment_id", id.String()).Msg("cancellation applied, no payment to settle")
		response.OK(w, map[string]interface{}{"appointment_id": id, "refunded": false})
		return
	}

	response.OK(w, p)
}

// Routes mounts the internal event endpoints. The caller wraps them with the
// internal service key middleware.
func (h *Handler) Routes(internalAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(internalAuth)
	r.Post("/", h.Upsert)
	r.Post("/{id}/completed", h.Completed)
	r.Post("/{id}/cancelled", h.Cancelled)
	return r
}
