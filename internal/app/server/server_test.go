package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"paycalc/internal/domain/auth"
	"paycalc/internal/platform/config"
)

const testSecret = "journey-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:            ":0",
		Environment:     "test",
		DatabaseDriver:  config.DriverSQLite,
		DatabaseURL:     filepath.Join(t.TempDir(), "payroll.db"),
		JWTSecret:       testSecret,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: time.Second,
		PayrollWorkers:  2,
		JobQueueSize:    4,
		TaxLabel:        "Income Tax (brackets)",
		RunMigrations:   true,
		RunSeed:         true,
		MetricsEnabled:  true,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(context.Background(), testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.Jobs.Start(ctx)
	t.Cleanup(func() {
		cancel()
		app.Jobs.Wait()
		app.Close()
	})
	return app
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, role+"@example.com", role, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func do(t *testing.T, app *App, method, path, tok string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var snap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap["requestsTotal"].(float64) < 2 {
		t.Fatalf("expected health checks to be counted, got %v", snap)
	}
}

func TestAuthAndRoles(t *testing.T) {
	app := newTestApp(t)

	if status, env := do(t, app, http.MethodGet, "/api/v1/salary/structures", "", nil); status != http.StatusUnauthorized || env.Error.Code != "unauthorized" {
		t.Fatalf("expected 401 without token, got %d %+v", status, env.Error)
	}
	if status, _ := do(t, app, http.MethodGet, "/api/v1/salary/structures", "not-a-token", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", status)
	}

	viewer := token(t, auth.RoleViewer)
	status, env := do(t, app, http.MethodGet, "/api/v1/salary/structures", viewer, nil)
	if status != http.StatusOK {
		t.Fatalf("expected viewer to read structures, got %d", status)
	}
	if structures := decode[[]map[string]any](t, env.Data); len(structures) != 1 {
		t.Fatalf("expected the seeded structure, got %d", len(structures))
	}

	period := map[string]string{"name": "January 2024", "startDate": "2024-01-01", "endDate": "2024-01-31", "payDate": "2024-02-01"}
	if status, env := do(t, app, http.MethodPost, "/api/v1/payroll/periods", viewer, period); status != http.StatusForbidden || env.Error.Code != "forbidden" {
		t.Fatalf("expected viewer to be forbidden, got %d", status)
	}
	if status, _ := do(t, app, http.MethodPost, "/api/v1/payroll/periods", token(t, auth.RoleAdmin), period); status != http.StatusCreated {
		t.Fatalf("expected admin to create a period, got %d", status)
	}
}

func TestPayrollJourney(t *testing.T) {
	app := newTestApp(t)
	manager := token(t, auth.RolePayrollManager)

	status, env := do(t, app, http.MethodPost, "/api/v1/payroll/periods", manager, map[string]string{
		"name": "January 2024", "startDate": "2024-01-01", "endDate": "2024-01-31", "payDate": "2024-02-01",
	})
	if status != http.StatusCreated {
		t.Fatalf("create period: expected 201, got %d %+v", status, env.Error)
	}
	period := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}](t, env.Data)
	if period.Status != "draft" {
		t.Fatalf("expected draft period, got %s", period.Status)
	}
	base := "/api/v1/payroll/periods/" + itoa(period.ID)

	status, env = do(t, app, http.MethodPost, base+"/run", manager, nil)
	if status != http.StatusOK {
		t.Fatalf("run: expected 200, got %d %+v", status, env.Error)
	}
	summary := decode[struct {
		ProcessedEntries int `json:"processedEntries"`
		Entries          []struct {
			GrossAmount float64 `json:"grossAmount"`
			NetAmount   float64 `json:"netAmount"`
			Deductions  float64 `json:"deductions"`
		} `json:"entries"`
	}](t, env.Data)
	if summary.ProcessedEntries != 2 || len(summary.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", summary)
	}
	for _, e := range summary.Entries {
		if !near(e.GrossAmount, 5600) || !near(e.Deductions, 1120) || !near(e.NetAmount, 4480) {
			t.Fatalf("unexpected entry %+v", e)
		}
	}

	status, env = do(t, app, http.MethodPost, base+"/run?async=true", manager, nil)
	if status != http.StatusAccepted {
		t.Fatalf("async run: expected 202, got %d %+v", status, env.Error)
	}
	job := decode[struct {
		ID int64 `json:"id"`
	}](t, env.Data)
	waitForJob(t, app, manager, job.ID)

	status, env = do(t, app, http.MethodGet, base+"/entries", token(t, auth.RoleViewer), nil)
	if status != http.StatusOK {
		t.Fatalf("entries: expected 200, got %d", status)
	}
	if entries := decode[[]map[string]any](t, env.Data); len(entries) != 2 {
		t.Fatalf("expected rerun to replace entries, got %d", len(entries))
	}

	if status, env = do(t, app, http.MethodPost, base+"/complete", manager, nil); status != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d %+v", status, env.Error)
	}
	if status, env = do(t, app, http.MethodPost, base+"/run", manager, nil); status != http.StatusConflict || env.Error.Code != "period_completed" {
		t.Fatalf("expected 409 for a completed period, got %d", status)
	}
	if status, _ = do(t, app, http.MethodPost, base+"/run?async=true", manager, nil); status != http.StatusConflict {
		t.Fatalf("expected async run of a completed period to be refused, got %d", status)
	}

	status, env = do(t, app, http.MethodGet, "/api/v1/audit/payroll_period/"+itoa(period.ID), manager, nil)
	if status != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", status)
	}
	events := decode[[]struct {
		Action string `json:"action"`
		Actor  string `json:"actor"`
	}](t, env.Data)
	if len(events) != 2 {
		t.Fatalf("expected create and complete events, got %+v", events)
	}
	for _, e := range events {
		if e.Actor != "payroll_manager@example.com" {
			t.Fatalf("expected actor from token, got %+v", e)
		}
	}
}

func TestCalculateEndpoints(t *testing.T) {
	app := newTestApp(t)
	viewer := token(t, auth.RoleViewer)

	status, env := do(t, app, http.MethodPost, "/api/v1/formulas/validate", viewer, map[string]string{"formula": "baseSalary * (1 +"})
	if status != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d", status)
	}
	if v := decode[struct {
		Valid bool `json:"valid"`
	}](t, env.Data); v.Valid {
		t.Fatalf("expected broken formula to be invalid")
	}

	status, env = do(t, app, http.MethodPost, "/api/v1/salary/calculate", viewer, map[string]any{
		"components": []map[string]any{
			{"id": 1, "name": "Base", "type": "fixed", "amount": 3000, "taxable": true},
			{"id": 2, "name": "Pension", "type": "deduction", "formula": "grossSalary * 0.05"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("calculate: expected 200, got %d %+v", status, env.Error)
	}
	result := decode[struct {
		GrossAmount float64 `json:"grossAmount"`
		NetAmount   float64 `json:"netAmount"`
	}](t, env.Data)
	if !near(result.GrossAmount, 3000) || !near(result.NetAmount, 2850) {
		t.Fatalf("unexpected result %+v", result)
	}

	status, env = do(t, app, http.MethodPost, "/api/v1/tax/calculate", viewer, map[string]any{"gross": 5600, "date": "2024-01-31"})
	if status != http.StatusOK {
		t.Fatalf("tax: expected 200, got %d %+v", status, env.Error)
	}
	if taxed := decode[struct {
		Tax float64 `json:"tax"`
	}](t, env.Data); !near(taxed.Tax, 770) {
		t.Fatalf("expected 770 tax on the seeded table, got %v", taxed.Tax)
	}

	status, env = do(t, app, http.MethodPost, "/api/v1/salary/calculate", viewer, map[string]any{
		"components": []map[string]any{{"id": 1, "name": "Base", "type": "fixed"}},
		"strictMissingAmount": true,
	})
	if status != http.StatusUnprocessableEntity || env.Error.Code != "incomplete_component" {
		t.Fatalf("expected strict missing amount to be rejected, got %d %+v", status, env.Error)
	}
}

func TestEmployeeEndpoints(t *testing.T) {
	app := newTestApp(t)
	manager := token(t, auth.RolePayrollManager)

	status, env := do(t, app, http.MethodPost, "/api/v1/salary/structures", manager, map[string]any{
		"name":          "Contractor",
		"effectiveDate": "2024-01-01",
		"components": []map[string]any{
			{"name": "Base", "type": "fixed", "amount": 4000, "taxable": true},
			{"name": "Pension", "type": "deduction", "formula": "grossSalary * 0.05"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create structure: expected 201, got %d %+v", status, env.Error)
	}
	structure := decode[struct {
		ID         int64 `json:"id"`
		Components []struct {
			ID int64 `json:"id"`
		} `json:"components"`
	}](t, env.Data)
	if len(structure.Components) != 2 {
		t.Fatalf("expected 2 components, got %+v", structure)
	}

	status, env = do(t, app, http.MethodPost, "/api/v1/employees", manager, map[string]any{
		"firstName": "Ada", "lastName": "Byron", "email": "ada@example.com", "department": "Engineering",
	})
	if status != http.StatusCreated {
		t.Fatalf("create employee: expected 201, got %d %+v", status, env.Error)
	}
	employee := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}](t, env.Data)
	if employee.Status != "active" {
		t.Fatalf("expected default status active, got %q", employee.Status)
	}
	base := "/api/v1/employees/" + itoa(employee.ID)

	if status, env = do(t, app, http.MethodPost, "/api/v1/employees", manager, map[string]any{"firstName": "No"}); status != http.StatusBadRequest || env.Error.Code != "validation_error" {
		t.Fatalf("expected 400 for an incomplete employee, got %d", status)
	}

	if status, env = do(t, app, http.MethodPost, base+"/assignments", manager, map[string]any{
		"structureId": structure.ID, "effectiveDate": "2024-01-01",
	}); status != http.StatusCreated {
		t.Fatalf("assign: expected 201, got %d %+v", status, env.Error)
	}
	if status, _ = do(t, app, http.MethodPost, "/api/v1/employees/999/assignments", manager, map[string]any{
		"structureId": structure.ID, "effectiveDate": "2024-01-01",
	}); status != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown employee, got %d", status)
	}

	baseComponent := itoa(structure.Components[0].ID)
	if status, env = do(t, app, http.MethodPut, base+"/overrides/"+baseComponent, manager, map[string]any{"amount": 4500}); status != http.StatusOK {
		t.Fatalf("override: expected 200, got %d %+v", status, env.Error)
	}
	if status, env = do(t, app, http.MethodPut, base+"/overrides/"+baseComponent, manager, map[string]any{"formula": "baseSalary * 2"}); status != http.StatusUnprocessableEntity || env.Error.Code != "invalid_override" {
		t.Fatalf("expected 422 for a formula on a fixed component, got %d", status)
	}
	status, env = do(t, app, http.MethodGet, base+"/overrides", manager, nil)
	if overrides := decode[[]map[string]any](t, env.Data); status != http.StatusOK || len(overrides) != 1 {
		t.Fatalf("expected one stored override, got %d %v", status, overrides)
	}

	if status, env = do(t, app, http.MethodPut, base+"/variables/performanceScore", manager, map[string]any{"value": 90}); status != http.StatusOK {
		t.Fatalf("set variable: expected 200, got %d %+v", status, env.Error)
	}
	if status, _ = do(t, app, http.MethodPut, base+"/variables/grossSalary", manager, map[string]any{"value": 1}); status != http.StatusBadRequest {
		t.Fatalf("expected engine variables to be refused, got %d", status)
	}
	if status, _ = do(t, app, http.MethodPut, base+"/variables/performanceScore", manager, map[string]any{}); status != http.StatusBadRequest {
		t.Fatalf("expected missing value to be refused, got %d", status)
	}
	status, env = do(t, app, http.MethodGet, base+"/variables", manager, nil)
	if vars := decode[map[string]float64](t, env.Data); status != http.StatusOK || vars["performanceScore"] != 90 {
		t.Fatalf("unexpected variables %d %v", status, vars)
	}

	status, env = do(t, app, http.MethodGet, "/api/v1/employees", manager, nil)
	if employees := decode[[]map[string]any](t, env.Data); status != http.StatusOK || len(employees) != 3 {
		t.Fatalf("expected 2 seeded employees plus one, got %d", len(employees))
	}
}

func waitForJob(t *testing.T, app *App, tok string, id int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, env := do(t, app, http.MethodGet, "/api/v1/payroll/jobs/"+itoa(id), tok, nil)
		if status != http.StatusOK {
			t.Fatalf("job %d: expected 200, got %d", id, status)
		}
		job := decode[struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}](t, env.Data)
		switch job.Status {
		case "completed":
			return
		case "failed":
			t.Fatalf("job %d failed: %s", id, job.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not complete", id)
}

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
