package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/api/middleware"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

type testScheduleService struct {
	createFn         func(ctx context.Context, input schedules.CreateInput) (*schedules.Result, error)
	editFn           func(ctx context.Context, id uuid.UUID, input schedules.EditInput) (*schedules.Result, error)
	cancelFn         func(ctx context.Context, id uuid.UUID, input schedules.CancelInput) (*schedules.Result, error)
	getFn            func(ctx context.Context, id uuid.UUID) (*schedules.Result, error)
	listByContactFn  func(ctx context.Context, contactID int64, includeInactive bool) (*schedules.ListResult, error)
	listRecentFn     func(ctx context.Context, params schedules.RecentParams) (*schedules.RecentResult, error)
	reportDeliveryFn func(ctx context.Context, id uuid.UUID, report schedules.DeliveryReport) (*schedules.Result, error)
}

func (s *testScheduleService) Create(ctx context.Context, input schedules.CreateInput) (*schedules.Result, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, nil
}

func (s *testScheduleService) Edit(ctx context.Context, id uuid.UUID, input schedules.EditInput) (*schedules.Result, error) {
	if s.editFn != nil {
		return s.editFn(ctx, id, input)
	}
	return nil, nil
}

func (s *testScheduleService) Cancel(ctx context.Context, id uuid.UUID, input schedules.CancelInput) (*schedules.Result, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, id, input)
	}
	return nil, nil
}

func (s *testScheduleService) Get(ctx context.Context, id uuid.UUID) (*schedules.Result, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, nil
}

func (s *testScheduleService) ListByContact(ctx context.Context, contactID int64, includeInactive bool) (*schedules.ListResult, error) {
	if s.listByContactFn != nil {
		return s.listByContactFn(ctx, contactID, includeInactive)
	}
	return &schedules.ListResult{Items: []schedules.CallerRecord{}}, nil
}

func (s *testScheduleService) ListRecent(ctx context.Context, params schedules.RecentParams) (*schedules.RecentResult, error) {
	if s.listRecentFn != nil {
		return s.listRecentFn(ctx, params)
	}
	return &schedules.RecentResult{Items: []schedules.CallerRecord{}}, nil
}

func (s *testScheduleService) ReportDelivery(ctx context.Context, id uuid.UUID, report schedules.DeliveryReport) (*schedules.Result, error) {
	if s.reportDeliveryFn != nil {
		return s.reportDeliveryFn(ctx, id, report)
	}
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload.Error.Code
}

func TestScheduleCreateMapsWidgetPayload(t *testing.T) {
	var got schedules.CreateInput
	svc := &testScheduleService{
		createFn: func(ctx context.Context, input schedules.CreateInput) (*schedules.Result, error) {
			got = input
			return &schedules.Result{Schedule: &schedules.CallerRecord{ID: uuid.NewString(), Status: enums.ScheduleStatusScheduled}}, nil
		},
	}

	body := `{
		"scheduleData": {"datetime": "2025-03-10T14:00", "message": "Hello", "hasAlert": true, "uiOnly": 1,
			"attachments": [{"name": "a.pdf", "type": "application/pdf", "content": "https://files/a.pdf"}]},
		"contact": {"id": 7, "name": "Maria"},
		"conversation": {"id": "42"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(body))
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-9"))
	rec := httptest.NewRecorder()

	ScheduleCreate(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.ScheduledAt != "2025-03-10T14:00" {
		t.Fatalf("expected datetime alias to map to scheduled_at, got %q", got.ScheduledAt)
	}
	if got.ContactID != 7 || got.ConversationID != 42 {
		t.Fatalf("unexpected refs contact=%d conversation=%d", got.ContactID, got.ConversationID)
	}
	if !got.Alert || got.Message != "Hello" || len(got.Attachments) != 1 {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.Contact["name"] != "Maria" {
		t.Fatalf("expected contact snapshot, got %v", got.Contact)
	}
	if got.RequestID != "req-9" {
		t.Fatalf("expected request id passthrough, got %q", got.RequestID)
	}
}

func TestScheduleCreatePropagatesValidation(t *testing.T) {
	svc := &testScheduleService{
		createFn: func(ctx context.Context, input schedules.CreateInput) (*schedules.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
				WithDetails(map[string]any{"fields": []string{"message"}})
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(`{"contact":{"id":7}}`))
	rec := httptest.NewRecorder()

	ScheduleCreate(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestScheduleCreateRejectsMalformedJSON(t *testing.T) {
	called := false
	svc := &testScheduleService{
		createFn: func(ctx context.Context, input schedules.CreateInput) (*schedules.Result, error) {
			called = true
			return nil, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(`{"scheduleData":`))
	rec := httptest.NewRecorder()

	ScheduleCreate(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without calling service, got %d called=%v", rec.Code, called)
	}
}

func TestScheduleListByContact(t *testing.T) {
	var gotContact int64
	var gotInactive bool
	svc := &testScheduleService{
		listByContactFn: func(ctx context.Context, contactID int64, includeInactive bool) (*schedules.ListResult, error) {
			gotContact, gotInactive = contactID, includeInactive
			return &schedules.ListResult{Items: []schedules.CallerRecord{}}, nil
		},
	}

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/schedules/7?includeInactive=true", nil), map[string]string{"contactId": "7"})
	rec := httptest.NewRecorder()
	ScheduleListByContact(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if gotContact != 7 || !gotInactive {
		t.Fatalf("unexpected args contact=%d inactive=%v", gotContact, gotInactive)
	}

	req = withURLParams(httptest.NewRequest(http.MethodGet, "/api/schedules/abc", nil), map[string]string{"contactId": "abc"})
	rec = httptest.NewRecorder()
	ScheduleListByContact(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric contact, got %d", rec.Code)
	}
}

func TestScheduleGetNotFound(t *testing.T) {
	svc := &testScheduleService{
		getFn: func(ctx context.Context, id uuid.UUID) (*schedules.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
		},
	}
	id := uuid.NewString()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/schedules/single/"+id, nil), map[string]string{"id": id})
	rec := httptest.NewRecorder()

	ScheduleGet(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestScheduleEditMapsOptionalFields(t *testing.T) {
	id := uuid.New()
	expected := uuid.New()
	var got schedules.EditInput
	svc := &testScheduleService{
		editFn: func(ctx context.Context, gotID uuid.UUID, input schedules.EditInput) (*schedules.Result, error) {
			if gotID != id {
				t.Fatalf("unexpected id %s", gotID)
			}
			got = input
			return &schedules.Result{Schedule: &schedules.CallerRecord{ID: id.String()}}, nil
		},
	}

	body := `{"scheduleData": {"message": "Hi", "alert": false}, "expectedEditId": "` + expected.String() + `"}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/schedules/"+id.String(), strings.NewReader(body)), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	ScheduleEdit(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Message == nil || *got.Message != "Hi" {
		t.Fatalf("expected message to be set")
	}
	if got.ScheduledAt != nil || got.Attachments != nil || got.ContactID != nil {
		t.Fatalf("absent fields must stay nil: %+v", got)
	}
	if got.Alert == nil || *got.Alert {
		t.Fatalf("expected explicit alert=false")
	}
	if got.ExpectedEditID == nil || *got.ExpectedEditID != expected {
		t.Fatalf("expected edit id passthrough")
	}
}

func TestScheduleEditConflict(t *testing.T) {
	id := uuid.New()
	svc := &testScheduleService{
		editFn: func(ctx context.Context, _ uuid.UUID, input schedules.EditInput) (*schedules.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "schedule was edited concurrently")
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"scheduleData":{"message":"x"}}`)), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	ScheduleEdit(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestScheduleCancelAlreadyCancelledAnswersRecord(t *testing.T) {
	id := uuid.New()
	svc := &testScheduleService{
		cancelFn: func(ctx context.Context, _ uuid.UUID, _ schedules.CancelInput) (*schedules.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot cancel a cancelled schedule").
				WithDetails(map[string]any{"status": enums.ScheduleStatusCancelled})
		},
		getFn: func(ctx context.Context, _ uuid.UUID) (*schedules.Result, error) {
			return &schedules.Result{Schedule: &schedules.CallerRecord{ID: id.String(), Status: enums.ScheduleStatusCancelled}}, nil
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	ScheduleCancel(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("expected cancelled record, got %s", rec.Body.String())
	}
}

func TestScheduleCancelSentIsStateConflict(t *testing.T) {
	id := uuid.New()
	svc := &testScheduleService{
		cancelFn: func(ctx context.Context, _ uuid.UUID, _ schedules.CancelInput) (*schedules.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot cancel a sent schedule").
				WithDetails(map[string]any{"status": enums.ScheduleStatusSent})
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	ScheduleCancel(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestScheduleCancelPassesRequestID(t *testing.T) {
	id := uuid.New()
	var got schedules.CancelInput
	svc := &testScheduleService{
		cancelFn: func(ctx context.Context, gotID uuid.UUID, input schedules.CancelInput) (*schedules.Result, error) {
			got = input
			return &schedules.Result{Schedule: &schedules.CallerRecord{ID: gotID.String(), Status: enums.ScheduleStatusCancelled}}, nil
		},
	}
	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id.String()})
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-cancel"))
	rec := httptest.NewRecorder()

	ScheduleCancel(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got.RequestID != "req-cancel" {
		t.Fatalf("expected request id passthrough, got %q", got.RequestID)
	}
}

func TestScheduleReportDeliveryValidatesStatus(t *testing.T) {
	id := uuid.New()
	var got schedules.DeliveryReport
	svc := &testScheduleService{
		reportDeliveryFn: func(ctx context.Context, _ uuid.UUID, report schedules.DeliveryReport) (*schedules.Result, error) {
			got = report
			return &schedules.Result{Schedule: &schedules.CallerRecord{ID: id.String(), Status: report.Status}}, nil
		},
	}

	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"cancelled"}`)), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()
	ScheduleReportDelivery(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-outcome status, got %d", rec.Code)
	}

	req = withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"sent","messageId":" cw-1 "}`)), map[string]string{"id": id.String()})
	rec = httptest.NewRecorder()
	ScheduleReportDelivery(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Status != enums.ScheduleStatusSent || got.MessageID != "cw-1" {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestScheduleListRecentValidatesLimit(t *testing.T) {
	var got schedules.RecentParams
	svc := &testScheduleService{
		listRecentFn: func(ctx context.Context, params schedules.RecentParams) (*schedules.RecentResult, error) {
			got = params
			return &schedules.RecentResult{Items: []schedules.CallerRecord{}}, nil
		},
	}

	rec := httptest.NewRecorder()
	ScheduleListRecent(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedules?limit=500", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ScheduleListRecent(svc, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedules?status=sent&limit=10&cursor=abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got.Status != "sent" || got.Limit != 10 || got.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestRefIDAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]struct {
		ref  map[string]any
		want int64
		ok   bool
	}{
		"number":   {map[string]any{"id": float64(7)}, 7, true},
		"string":   {map[string]any{"id": "42"}, 42, true},
		"json num": {map[string]any{"id": json.Number("9")}, 9, true},
		"fraction": {map[string]any{"id": 1.5}, 0, false},
		"missing":  {map[string]any{}, 0, false},
		"nil map":  {nil, 0, false},
	}
	for name, tc := range cases {
		got, ok := refID(tc.ref)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got (%d,%v) want (%d,%v)", name, got, ok, tc.want, tc.ok)
		}
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), ok, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"redis":"disabled"`) {
		t.Fatalf("expected redis disabled, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), down, ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get(envHeader) != "test" {
		t.Fatalf("expected env header")
	}
}

func TestServiceInfo(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	ServiceInfo(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body struct {
		Data struct {
			Name      string   `json:"name"`
			Env       string   `json:"env"`
			Endpoints []string `json:"endpoints"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Name != serviceName || body.Data.Env != "dev" || len(body.Data.Endpoints) == 0 {
		t.Fatalf("unexpected service info %+v", body.Data)
	}
}
