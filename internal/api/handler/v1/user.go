package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/response"
	"github.com/volunteerhub/volunteer-hub-api/internal/api/middleware"
	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
	"github.com/volunteerhub/volunteer-hub-api/internal/service"
)

type UserService interface {
	GetUser(ctx context.Context, id uint) (domain.User, error)
	GetUsersByRole(ctx context.Context, role string) ([]domain.User, error)
}

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{
		svc: svc,
	}
}

// HandleGetUser godoc
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Param        userID  path      int true "user ID"
// @Success      200     {object}  domain.User
// @Failure      400     {object}  response.Err
// @Failure      401     {object}  response.Err
// @Failure      404     {object}  response.Err
// @Failure      500     {object}  response.Err
// @Router       /users/{userID} [get]
// @Security     BearerAuth
func (h *UserHandler) HandleGetUser(ctx *gin.Context) {
	userID, respErr := parseIDParam(ctx, "userID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	user, err := h.svc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("user", "ID", userID))
			return
		}

		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleGetUser -> h.svc.GetUser -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, user)
}

// HandleListUsers godoc
// @Summary      List users by role
// @Tags         users
// @Produce      json
// @Param        role  query     string true "user role"
// @Success      200   {object}  response.ListUsersResponse
// @Failure      400   {object}  response.Err
// @Failure      401   {object}  response.Err
// @Failure      403   {object}  response.Err
// @Failure      500   {object}  response.Err
// @Router       /users [get]
// @Security     BearerAuth
func (h *UserHandler) HandleListUsers(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.svc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if user.Role != domain.RoleAdmin {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v cannot list users", user.ID)))
		return
	}

	role := ctx.Query("role")
	switch role {
	case domain.RoleVolunteer, domain.RoleOrganizer, domain.RoleAdmin:
	default:
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid role (%v)", role)))
		return
	}

	users, err := h.svc.GetUsersByRole(ctx.Request.Context(), role)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleListUsers -> h.svc.GetUsersByRole -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, response.ListUsersResponse{Users: users})
}

// getUserFromContext loads the authenticated user behind the JWT middleware.
func getUserFromContext(ctx *gin.Context, uSvc UserService) (domain.User, *response.Err) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return domain.User{}, response.ErrUnauthorized(errors.New("missing authentication"))
	}

	user, err := uSvc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return domain.User{}, response.ErrNotFound("user", "ID", userID)
		}

		return domain.User{}, response.ErrInternalServerError(fmt.Errorf("getUserFromContext -> uSvc.GetUser -> %w", err))
	}

	return user, nil
}

func parseIDParam(ctx *gin.Context, name string) (uint, *response.Err) {
	raw := ctx.Param(name)

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, response.ErrBadRequest(fmt.Errorf("invalid %v (%v)", name, raw))
	}

	return uint(id), nil
}
