package locations

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// fakeLocationService implements only what each test needs; calling anything
// else panics on the nil embedded interface.
type fakeLocationService struct {
	locationService
	assignErr    error
	gotCaller    identity.Caller
	gotIDs       []uuid.UUID
	assignCalled bool
	listInactive *bool
}

func (f *fakeLocationService) AssignTechnicians(caller identity.Caller, locationID uuid.UUID, ids []uuid.UUID) (*AssignmentResponse, error) {
	f.assignCalled = true
	f.gotCaller = caller
	f.gotIDs = ids
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return &AssignmentResponse{Location: &Location{ID: locationID}, Added: ids, Removed: []uuid.UUID{}}, nil
}

func (f *fakeLocationService) List(includeInactive bool) ([]Location, error) {
	f.listInactive = &includeInactive
	return []Location{}, nil
}

func newTestApp(svc locationService, callerID uuid.UUID, isAdmin bool) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{
			"sub":      callerID.String(),
			"is_admin": isAdmin,
		}})
		return c.Next()
	})
	h := NewLocationHandler(svc)
	app.Get("/locations", h.List)
	app.Post("/locations/:id/assign-technicians", h.AssignTechnicians)
	return app
}

func postAssign(t *testing.T, app *fiber.App, locationID, body string) (int, dto.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest("POST", "/locations/"+locationID+"/assign-technicians", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var out dto.ErrorResponse
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestAssignTechniciansRejectsMalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing field", `{}`},
		{"null field", `{"technicianIds": null}`},
		{"not an array", `{"technicianIds": "abc"}`},
		{"malformed id", `{"technicianIds": ["not-a-uuid"]}`},
		{"not json", `technicianIds=1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeLocationService{}
			app := newTestApp(svc, uuid.New(), true)

			status, body := postAssign(t, app, uuid.NewString(), tt.body)
			if status != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if !body.Error || body.Message == "" {
				t.Errorf("unexpected body %+v", body)
			}
			if svc.assignCalled {
				t.Error("service must not be called for a malformed body")
			}
		})
	}
}

func TestAssignTechniciansMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"conflict is a bad request", services.AssignmentConflict("technician Tom is already assigned to location South"), fiber.StatusBadRequest},
		{"permission", services.Permission("nope"), fiber.StatusForbidden},
		{"missing location", services.NotFound("location not found"), fiber.StatusNotFound},
		{"unknown technician", services.Validation("technician x does not exist"), fiber.StatusBadRequest},
		{"store failure", errors.New("connection reset"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeLocationService{assignErr: tt.err}
			app := newTestApp(svc, uuid.New(), true)

			status, body := postAssign(t, app, uuid.NewString(), `{"technicianIds": []}`)
			if status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
			if status == fiber.StatusInternalServerError && body.Message != "Internal server error" {
				t.Errorf("server error leaked %q", body.Message)
			}
		})
	}
}

func TestAssignTechniciansPassesCaller(t *testing.T) {
	callerID := uuid.New()
	techID := uuid.New()
	svc := &fakeLocationService{}
	app := newTestApp(svc, callerID, false)

	status, _ := postAssign(t, app, uuid.NewString(), `{"technicianIds": ["`+techID.String()+`"]}`)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if svc.gotCaller.ID != callerID || svc.gotCaller.IsAdmin {
		t.Errorf("caller = %+v", svc.gotCaller)
	}
	if len(svc.gotIDs) != 1 || svc.gotIDs[0] != techID {
		t.Errorf("ids = %v", svc.gotIDs)
	}
}

func TestListIncludeInactiveIsAdminOnly(t *testing.T) {
	for _, admin := range []bool{true, false} {
		svc := &fakeLocationService{}
		app := newTestApp(svc, uuid.New(), admin)

		resp, err := app.Test(httptest.NewRequest("GET", "/locations?includeInactive=true", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if svc.listInactive == nil || *svc.listInactive != admin {
			t.Errorf("admin=%v: includeInactive = %v", admin, svc.listInactive)
		}
	}
}

func TestParseTechnicianIDsAcceptsEmptyArray(t *testing.T) {
	ids, err := parseTechnicianIDs([]byte(`{"technicianIds": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}
