package orders

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type fakeOrderService struct {
	orderService
	err         error
	gotInput    *OrderInput
	gotUploaded []string
}

func (f *fakeOrderService) Create(_ identity.Caller, in *OrderInput, uploaded []string) (*Order, error) {
	f.gotInput, f.gotUploaded = in, uploaded
	if f.err != nil {
		return nil, f.err
	}
	return &Order{ID: uuid.New(), Pictures: ReconcileImages(in.Keep, uploaded)}, nil
}

func (f *fakeOrderService) Update(_ identity.Caller, id uuid.UUID, in *OrderInput, uploaded []string) (*Order, error) {
	f.gotInput, f.gotUploaded = in, uploaded
	if f.err != nil {
		return nil, f.err
	}
	return &Order{ID: id, Pictures: ReconcileImages(in.Keep, uploaded)}, nil
}

// fakeImages saves every file whose name does not end in .exe.
type fakeImages struct {
	saved   []string
	removed []string
}

func (f *fakeImages) Save(fh *multipart.FileHeader) (string, error) {
	if strings.HasSuffix(fh.Filename, ".exe") {
		return "", storage.ErrUnsupportedType
	}
	path := fmt.Sprintf("/uploads/%d.png", len(f.saved))
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeImages) Remove(paths ...string) { f.removed = append(f.removed, paths...) }

func newOrderApp(svc orderService, images imageStore) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"sub": uuid.NewString()}})
		return c.Next()
	})
	h := NewOrderHandler(svc, images)
	app.Post("/order", h.Create)
	app.Put("/order/:id", h.Update)
	return app
}

func multipartBody(t *testing.T, fields map[string]string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	for _, name := range files {
		part, err := w.CreateFormFile("images", name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("content of " + name))
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func TestCreateOrderReadsAtMostThreeFiles(t *testing.T) {
	svc := &fakeOrderService{}
	images := &fakeImages{}
	app := newOrderApp(svc, images)

	body, ct := multipartBody(t, map[string]string{
		"confinedSpaceNameOrId": "Tank 1",
		"confinedSpace":         "true",
		"pictures":              `["/uploads/old.png"]`,
	}, "a.png", "b.png", "c.png", "d.png")
	req := httptest.NewRequest("POST", "/order", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if len(images.saved) != MaxPictures {
		t.Errorf("saved %d files, want %d", len(images.saved), MaxPictures)
	}
	if !slices.Equal(svc.gotInput.Keep, []string{"/uploads/old.png"}) {
		t.Errorf("keep = %v", svc.gotInput.Keep)
	}
	if !svc.gotInput.Flags.ConfinedSpace {
		t.Error("confinedSpace flag not parsed")
	}
}

func TestCreateOrderRejectsNonImages(t *testing.T) {
	svc := &fakeOrderService{}
	images := &fakeImages{}
	app := newOrderApp(svc, images)

	body, ct := multipartBody(t, map[string]string{"confinedSpaceNameOrId": "Tank 1"}, "a.png", "b.exe")
	req := httptest.NewRequest("POST", "/order", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if svc.gotInput != nil {
		t.Error("service called despite invalid upload")
	}
	if !slices.Equal(images.removed, images.saved) {
		t.Errorf("saved %v but removed %v", images.saved, images.removed)
	}
}

func TestUpdateOrderWithoutPicturesClearsKeepList(t *testing.T) {
	svc := &fakeOrderService{}
	app := newOrderApp(svc, &fakeImages{})

	req := httptest.NewRequest("PUT", "/order/"+uuid.NewString(), strings.NewReader(`{"notes":"checked","confinedSpace":true}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(svc.gotInput.Keep) != 0 || svc.gotInput.Has("pictures") {
		t.Errorf("keep = %v", svc.gotInput.Keep)
	}
	if svc.gotInput.Text.Notes != "checked" || !svc.gotInput.Flags.ConfinedSpace {
		t.Errorf("input = %+v", svc.gotInput)
	}
}

func TestUpdateOrderMapsPermissionError(t *testing.T) {
	svc := &fakeOrderService{err: ErrNotOwner}
	app := newOrderApp(svc, &fakeImages{})

	req := httptest.NewRequest("PUT", "/order/"+uuid.NewString(), strings.NewReader(`{"pictures":["/uploads/a.png"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if !slices.Equal(svc.gotInput.Keep, []string{"/uploads/a.png"}) {
		t.Errorf("keep = %v", svc.gotInput.Keep)
	}
}

func TestCreateOrderMapsValidationFromForm(t *testing.T) {
	svc := &fakeOrderService{err: services.Validation("confinedSpaceNameOrId is required")}
	app := newOrderApp(svc, &fakeImages{})

	req := httptest.NewRequest("POST", "/order", strings.NewReader("confinedSpace=perhaps"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if svc.gotInput != nil {
		t.Error("service called despite invalid flag")
	}
}
