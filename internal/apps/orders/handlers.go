package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type orderService interface {
	Create(caller identity.Caller, in *OrderInput, uploaded []string) (*Order, error)
	Get(caller identity.Caller, id uuid.UUID) (*Order, error)
	Update(caller identity.Caller, id uuid.UUID, in *OrderInput, uploaded []string) (*Order, error)
	Delete(caller identity.Caller, id uuid.UUID) error
	List(caller identity.Caller) ([]Order, error)
	Search(caller identity.Caller, q *SearchQuery) ([]Order, error)
	Export(caller identity.Caller, q *SearchQuery) (*bytes.Buffer, string, error)
}

type imageStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Remove(publicPaths ...string)
}

type OrderHandler struct {
	service orderService
	images  imageStore
}

func NewOrderHandler(service orderService, images imageStore) *OrderHandler {
	return &OrderHandler{service: service, images: images}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	in, uploaded, err := h.readOrder(c)
	if err != nil {
		return handlers.WriteError(c, err)
	}

	order, err := h.service.Create(caller, in, uploaded)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID")
	}

	in, uploaded, err := h.readOrder(c)
	if err != nil {
		return handlers.WriteError(c, err)
	}

	order, err := h.service.Update(caller, id, in, uploaded)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID")
	}

	order, err := h.service.Get(caller, id)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID")
	}

	if err := h.service.Delete(caller, id); err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Order deleted"})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	orders, err := h.service.List(caller)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) Search(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	q, err := parseSearchQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return handlers.WriteError(c, err)
	}

	orders, err := h.service.Search(caller, q)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) Export(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	q, err := parseSearchQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return handlers.WriteError(c, err)
	}

	buf, filename, err := h.service.Export(caller, q)
	if err != nil {
		return handlers.WriteError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

// readOrder parses the request into an OrderInput and saves up to
// MaxPictures uploaded images. Files beyond the cap are ignored.
func (h *OrderHandler) readOrder(c *fiber.Ctx) (*OrderInput, []string, error) {
	values, files, err := requestValues(c)
	if err != nil {
		return nil, nil, err
	}

	in, err := parseOrderForm(values)
	if err != nil {
		return nil, nil, err
	}

	if len(files) > MaxPictures {
		files = files[:MaxPictures]
	}
	uploaded := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := h.images.Save(fh)
		if err != nil {
			h.images.Remove(uploaded...)
			if errors.Is(err, storage.ErrUnsupportedType) {
				return nil, nil, services.Validation("%s: %s", fh.Filename, err.Error())
			}
			return nil, nil, err
		}
		uploaded = append(uploaded, path)
	}
	return in, uploaded, nil
}

// requestValues collects form values from a multipart, urlencoded or JSON
// body. JSON scalars and arrays are rendered back to the strings a form
// would have carried.
func requestValues(c *fiber.Ctx) (map[string][]string, []*multipart.FileHeader, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nil, services.Validation("invalid multipart form")
		}
		return form.Value, form.File["images"], nil

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		var body map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, nil, services.Validation("invalid JSON body")
		}
		values := make(map[string][]string, len(body))
		for k, raw := range body {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				values[k] = []string{s}
				continue
			}
			if string(raw) == "null" {
				values[k] = []string{""}
				continue
			}
			values[k] = []string{string(raw)}
		}
		return values, nil, nil

	default:
		values := map[string][]string{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = append(values[string(k)], string(v))
		})
		return values, nil, nil
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}
