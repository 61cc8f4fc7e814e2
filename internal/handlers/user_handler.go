package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type userService interface {
	List(q dto.ListUsersQuery) ([]models.User, error)
	Get(id uuid.UUID) (*models.User, error)
	Create(req *dto.CreateUserRequest) (*models.User, error)
	UpdateSelf(id uuid.UUID, req *dto.UpdateSelfRequest) (*models.User, error)
	UpdateByID(id uuid.UUID, req *dto.UpdateUserRequest) (*models.User, error)
	Approve(actorID, id uuid.UUID) (*models.User, error)
	Delete(actorID, id uuid.UUID) error
}

type UserHandler struct {
	userService userService
}

func NewUserHandler(userService userService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	user, err := h.userService.Get(userID)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.UpdateSelfRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.UpdateSelf(userID, &req)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

// List accepts ?type=admin|user and ?active=true|false.
func (h *UserHandler) List(c *fiber.Ctx) error {
	q := dto.ListUsersQuery{UserType: c.Query("type")}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "active must be true or false")
		}
		q.Active = &active
	}

	users, err := h.userService.List(q)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserListResponse(users))
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.Create(&req)
	if err != nil {
		return WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	user, err := h.userService.Get(id)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := h.userService.UpdateByID(id, &req)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) Approve(c *fiber.Ctx) error {
	actorID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	user, err := h.userService.Approve(actorID, id)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) Delete(c *fiber.Ctx) error {
	actorID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.userService.Delete(actorID, id); err != nil {
		return WriteError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "User deleted"})
}
