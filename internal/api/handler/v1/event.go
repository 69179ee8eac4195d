package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/request"
	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/response"
	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type EventService interface {
	CreateEvent(ctx context.Context, event domain.Event, organizer domain.User, asDraft bool) (domain.Event, error)
	GetEvent(ctx context.Context, id uint) (domain.Event, error)
	ListEvents(ctx context.Context, status domain.EventStatus, offset, limit int) ([]domain.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error)
	ApproveEvent(ctx context.Context, id, adminID uint) (domain.Event, error)
	RejectEvent(ctx context.Context, id, adminID uint, reason string) (domain.Event, error)
	SubmitEvent(ctx context.Context, id uint) (domain.Event, error)
	UpdateEvent(ctx context.Context, id uint, patch domain.EventPatch) (domain.Event, error)
}

type EventHandler struct {
	svc  EventService
	uSvc UserService
}

func NewEventHandler(svc EventService, uSvc UserService) *EventHandler {
	return &EventHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleCreateEvent godoc
// @Summary      Create an event
// @Description  Creates an event and submits it for review, or saves it as a draft.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        request  body      request.CreateEventRequest true "event details"
// @Success      201      {object}  domain.Event
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events [post]
// @Security     BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if user.Role != domain.RoleOrganizer && user.Role != domain.RoleAdmin {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot create events", user.ID)))
		return
	}

	var req request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.svc.CreateEvent(ctx.Request.Context(), domain.Event{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
	}, user, req.Draft)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

// HandleListEvents godoc
// @Summary      List events
// @Description  Lists events ordered by start time. Volunteers only see opened events; organizers can list their own with mine=true.
// @Tags         events
// @Produce      json
// @Param        status    query     string false "event status filter"
// @Param        mine      query     bool   false "only events organized by the caller"
// @Param        page      query     int    false "page number"
// @Param        per_page  query     int    false "page size"
// @Success      200       {object}  response.ListEventsResponse
// @Failure      401       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /events [get]
// @Security     BearerAuth
func (h *EventHandler) HandleListEvents(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if ctx.Query("mine") == "true" {
		events, err := h.svc.ListEventsByOrganizer(ctx.Request.Context(), user.ID)
		if err != nil {
			response.RenderErr(ctx, response.ErrDomain(ctx, err))
			return
		}

		ctx.JSON(http.StatusOK, response.ListEventsResponse{Events: events})
		return
	}

	status := domain.EventStatus(ctx.Query("status"))
	if user.Role == domain.RoleVolunteer {
		status = domain.EventStatusOpened
	}

	offset, limit := parsePagination(ctx)

	events, err := h.svc.ListEvents(ctx.Request.Context(), status, offset, limit)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, response.ListEventsResponse{Events: events})
}

// HandleGetEvent godoc
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      200  {object}  domain.Event
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id} [get]
// @Security     BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	_, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleUpdateEvent godoc
// @Summary      Update an event
// @Description  Partially updates an event. Editing an opened event demotes it to pending review. Status can be set to CLOSED or CANCELLED.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        id       path      int true "event ID"
// @Param        request  body      request.UpdateEventRequest true "fields to update"
// @Success      200      {object}  domain.Event
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{id} [patch]
// @Security     BearerAuth
func (h *EventHandler) HandleUpdateEvent(ctx *gin.Context) {
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

	var req request.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	if !user.CanManageEvent(&event) {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot manage event %v", user.ID, eventID)))
		return
	}

	updated, err := h.svc.UpdateEvent(ctx.Request.Context(), eventID, req.ToPatch())
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// HandleSubmitEvent godoc
// @Summary      Submit an event for review
// @Description  Submits a draft, or resubmits a rejected event after fixing it.
// @Tags         events
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      200  {object}  domain.Event
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id}/submit [post]
// @Security     BearerAuth
func (h *EventHandler) HandleSubmitEvent(ctx *gin.Context) {
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

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	if !user.CanManageEvent(&event) {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot manage event %v", user.ID, eventID)))
		return
	}

	submitted, err := h.svc.SubmitEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, submitted)
}

// HandleApproveEvent godoc
// @Summary      Approve a pending event
// @Description  Opens a pending event for registration. Administrators only.
// @Tags         events
// @Produce      json
// @Param        id   path      int true "event ID"
// @Success      200  {object}  domain.Event
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{id}/approve [post]
// @Security     BearerAuth
func (h *EventHandler) HandleApproveEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.CanDecideEvents() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot approve events", user.ID)))
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	event, err := h.svc.ApproveEvent(ctx.Request.Context(), eventID, user.ID)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleRejectEvent godoc
// @Summary      Reject a pending event
// @Description  Rejects a pending event with an optional reason. Administrators only.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        id       path      int true "event ID"
// @Param        request  body      request.RejectEventRequest false "rejection reason"
// @Success      200      {object}  domain.Event
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /events/{id}/reject [post]
// @Security     BearerAuth
func (h *EventHandler) HandleRejectEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.CanDecideEvents() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot reject events", user.ID)))
		return
	}

	eventID, respErr := parseIDParam(ctx, "id")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.RejectEventRequest
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

	event, err := h.svc.RejectEvent(ctx.Request.Context(), eventID, user.ID, req.Reason)
	if err != nil {
		response.RenderErr(ctx, response.ErrDomain(ctx, err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func parsePagination(ctx *gin.Context) (offset, limit int) {
	page, err := strconv.Atoi(ctx.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err = strconv.Atoi(ctx.Query("per_page"))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	return (page - 1) * limit, limit
}
