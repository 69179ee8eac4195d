package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/request"
	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/response"
	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

type RegistrationService interface {
	Register(ctx context.Context, eventID uint, volunteer domain.User) (domain.Registration, error)
	Cancel(ctx context.Context, eventID uint, volunteerID uint) (domain.Registration, error)
	Approve(ctx context.Context, registrationID, managerID uint) (domain.Registration, error)
	Reject(ctx context.Context, registrationID, managerID uint, reason string) (domain.Registration, error)
	CompleteEvent(ctx context.Context, eventID uint) (int, error)
	GetRegistration(ctx context.Context, id uint) (domain.Registration, error)
	ListEventRegistrations(ctx context.Context, eventID uint, status domain.RegistrationStatus, offset, limit int) ([]domain.Registration, error)
	ListVolunteerRegistrations(ctx context.Context, volunteerID uint) ([]domain.Registration, error)
}

type RegistrationHandler struct {
	svc      RegistrationService
	eventSvc EventService
	uSvc     UserService
}

func NewRegistrationHandler(svc RegistrationService, eventSvc EventService, uSvc UserService) *RegistrationHandler {
	return &RegistrationHandler{
		svc:      svc,
		eventSvc: eventSvc,
		uSvc:     uSvc,
	}
}

// HandleRegister godoc
// @Summary      Register for an event
// @Description  Creates a pending registration for the caller, or reactivates a previously cancelled one.
// @Tags         registrations
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      201  {object}  domain.Registration
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id}/registrations [post]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleRegister(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registration, err := h.svc.Register(ctx.Request.Context(), eventID, user)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusCreated, registration)
}

// HandleCancelRegistration godoc
// @Summary      Cancel own registration
// @Description  Withdraws the caller's registration for the event. Approved seats cannot be given up inside the cutoff window.
// @Tags         registrations
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      200  {object}  domain.Registration
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id}/registrations [delete]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleCancelRegistration(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registration, err := h.svc.Cancel(ctx.Request.Context(), eventID, user.ID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, registration)
}

// HandleListEventRegistrations godoc
// @Summary      List registrations for an event
// @Description  Lists registrations for the event, pending first in submission order. Event managers only.
// @Tags         registrations
// @Produce      json
// @Param        id        path      int    true  "event ID"
// @Param        status    query     string false "registration status filter"
// @Param        page      query     int    false "page number"
// @Param        per_page  query     int    false "page size"
// @Success      200       {object}  response.ListRegistrationsResponse
// @Failure      401       {object}  response.Err
// @Failure      403       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /events/{id}/registrations [get]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleListEventRegistrations(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.eventSvc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	if !user.CanManageEvent(&event) {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot manage event %v", user.ID, eventID)))
		return
	}

	offset, limit := parsePagination(ctx)
	status := domain.RegistrationStatus(ctx.Query("status"))

	registrations, err := h.svc.ListEventRegistrations(ctx.Request.Context(), eventID, status, offset, limit)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, response.ListRegistrationsResponse{Registrations: registrations})
}

// HandleListMyRegistrations godoc
// @Summary      List own registrations
// @Tags         registrations
// @Produce      json
// @Success      200  {object}  response.ListRegistrationsResponse
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /registrations [get]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleListMyRegistrations(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registrations, err := h.svc.ListVolunteerRegistrations(ctx.Request.Context(), user.ID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, response.ListRegistrationsResponse{Registrations: registrations})
}

// HandleGetRegistration godoc
// @Summary      Get a registration
// @Description  Returns a registration. Visible to its volunteer and to the event's managers.
// @Tags         registrations
// @Produce      json
// @Param        id   path      int true "registration ID"
// @Success      200  {object}  domain.Registration
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /registrations/{id} [get]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleGetRegistration(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registrationID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registration, err := h.svc.GetRegistration(ctx.Request.Context(), registrationID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	if registration.VolunteerID != user.ID {
		event, err := h.eventSvc.GetEvent(ctx.Request.Context(), registration.EventID)
		if err != nil {
			response.RenderErr(ctx, response.ErrDomain(ctx, err))
			return
		}

		if !user.CanManageEvent(&event) {
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot view registration %v", user.ID, registrationID)))
			return
		}
	}

	ctx.JSON(http.StatusOK, registration)
}

// HandleApproveRegistration godoc
// @Summary      Approve a pending registration
// @Description  Grants the volunteer a seat if capacity allows. Event managers only.
// @Tags         registrations
// @Produce      json
// @Param        id   path      int true "registration ID"
// @Success      200  {object}  domain.Registration
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /registrations/{id}/approve [post]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleApproveRegistration(ctx *gin.Context) {
	user, registrationID, respErr := h.authorizeDecision(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	registration, err := h.svc.Approve(ctx.Request.Context(), registrationID, user.ID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, registration)
}

// HandleRejectRegistration godoc
// @Summary      Reject a pending registration
// @Description  Rejects a pending registration with an optional reason. Event managers only.
// @Tags         registrations
// @Accept       json
// @Produce      json
// @Param        id       path      int true "registration ID"
// @Param        request  body      request.RejectRegistrationRequest false "rejection reason"
// @Success      200      {object}  domain.Registration
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /registrations/{id}/reject [post]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleRejectRegistration(ctx *gin.Context) {
	user, registrationID, respErr := h.authorizeDecision(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.RejectRegistrationRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}

		if err := req.Validate(); err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}
	}

	registration, err := h.svc.Reject(ctx.Request.Context(), registrationID, user.ID, req.Reason)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, registration)
}

// HandleCompleteEvent godoc
// @Summary      Mark an event's participants complete
// @Description  Flips every approved registration of a closed event to completed. Event managers only.
// @Tags         registrations
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      200  {object}  response.CompleteEventResponse
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id}/complete [post]
// @Security     BearerAuth
func (h *RegistrationHandler) HandleCompleteEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.eventSvc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	if !user.CanManageEvent(&event) {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot manage event %v", user.ID, eventID)))
		return
	}

	marked, err := h.svc.CompleteEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, response.CompleteEventResponse{
		EventID:        eventID,
		MarkedComplete: marked,
	})
}

// authorizeDecision resolves the registration's event and checks the caller
// manages it.
func (h *RegistrationHandler) authorizeDecision(ctx *gin.Context) (domain.User, uint, *response.Err) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		return domain.User{}, 0, respErr
	}

	registrationID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		return domain.User{}, 0, respErr
	}

	registration, err := h.svc.GetRegistration(ctx.Request.Context(), registrationID)
	if err != nil {
		return domain.User{}, 0, response.ErrDomain(ctx, err)
	}

	event, err := h.eventSvc.GetEvent(ctx.Request.Context(), registration.EventID)
	if err != nil {
		return domain.User{}, 0, response.ErrDomain(ctx, err)
	}

	if !user.CanManageEvent(&event) {
		return domain.User{}, 0, response.ErrPermissionDenied(fmt.Errorf("user %v cannot decide registrations for event %v", user.ID, event.ID))
	}

	return user, registrationID, nil
}
