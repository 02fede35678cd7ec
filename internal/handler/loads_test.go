package handler_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/loadmap/api/internal/apperr"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/handler"
	"github.com/loadmap/api/internal/manifest"
	"github.com/loadmap/api/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock LoadServicer ---

type mockLoadService struct {
	previewFn func(ctx context.Context, req service.PreviewLoadRequest) (*service.LoadPreview, error)
	confirmFn func(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error)
	cancelFn  func(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error)
	gatedFn   func(ctx context.Context, actor service.Actor, orderIDs []int64, capacityKg decimal.Decimal) (*service.BatchResult, error)
	deliverFn func(ctx context.Context, actor service.Actor, req service.ConfirmDeliveryRequest) (*service.DeliveryResult, error)
}

func (m *mockLoadService) PreviewLoad(ctx context.Context, req service.PreviewLoadRequest) (*service.LoadPreview, error) {
	return m.previewFn(ctx, req)
}

func (m *mockLoadService) ConfirmLoad(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error) {
	return m.confirmFn(ctx, actor, orderIDs)
}

func (m *mockLoadService) ConfirmLoadWithinCapacity(ctx context.Context, actor service.Actor, orderIDs []int64, capacityKg decimal.Decimal) (*service.BatchResult, error) {
	return m.gatedFn(ctx, actor, orderIDs, capacityKg)
}

func (m *mockLoadService) CancelLoad(ctx context.Context, actor service.Actor, orderIDs []int64) (*service.BatchResult, error) {
	return m.cancelFn(ctx, actor, orderIDs)
}

func (m *mockLoadService) ConfirmDelivery(ctx context.Context, actor service.Actor, req service.ConfirmDeliveryRequest) (*service.DeliveryResult, error) {
	return m.deliverFn(ctx, actor, req)
}

// --- Helpers ---

func setupLoadRouter(svc *mockLoadService, n *mockNotifier, access string) *chi.Mux {
	h := handler.NewLoadHandler(svc, n, nullLogger())
	r := chi.NewRouter()
	r.Use(withClaims(access, enum.ModuleLoads))
	h.RegisterRoutes(r)
	return r
}

func previewOf(t *testing.T, orders []database.Order, capacity decimal.Decimal) *service.LoadPreview {
	t.Helper()
	catalog := manifest.NewCatalog([]database.Product{
		{Description: "Arroz 5kg", UnitWeight: decimal.NewFromInt(5), WeightMode: database.WeightModeFIXED},
	})
	m, err := manifest.Build(catalog, orders)
	if err != nil {
		t.Fatalf("build matrix: %v", err)
	}
	return &service.LoadPreview{Orders: orders, Matrix: m, Capacity: manifest.CheckCapacity(m, capacity)}
}

// --- Preview / manifest ---

func TestLoadPreview(t *testing.T) {
	var got service.PreviewLoadRequest
	svc := &mockLoadService{previewFn: func(_ context.Context, req service.PreviewLoadRequest) (*service.LoadPreview, error) {
		got = req
		return previewOf(t, []database.Order{sampleOrder()}, req.CapacityKg), nil
	}}
	r := setupLoadRouter(svc, &mockNotifier{}, enum.AccessLevelViewOnly)

	rr := postJSON(t, r, "/loads/preview", map[string]interface{}{"order_ids": []int64{12}, "capacity_kg": "10"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(got.OrderIDs) != 1 || got.OrderIDs[0] != 12 {
		t.Errorf("order_ids: got %v, want [12]", got.OrderIDs)
	}

	resp := decodeResponse(t, rr)
	if resp["message"] != "load exceeded: reduce 5.00 kg" {
		t.Errorf("message: got %v", resp["message"])
	}
	matrix, _ := resp["matrix"].(map[string]interface{})
	if matrix == nil {
		t.Fatal("missing matrix")
	}
}

func TestLoadPreview_Errors(t *testing.T) {
	svc := &mockLoadService{previewFn: func(context.Context, service.PreviewLoadRequest) (*service.LoadPreview, error) {
		return nil, errors.Join(
			apperr.Validation(12, "Cafe", "product is not in the catalog"),
			apperr.Validation(13, "Arroz 5kg", "status is EN_ROUTE"),
		)
	}}
	r := setupLoadRouter(svc, &mockNotifier{}, enum.AccessLevelViewOnly)

	rr := postJSON(t, r, "/loads/preview", map[string]interface{}{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty selection status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = postJSON(t, r, "/loads/preview", map[string]interface{}{"order_ids": []int64{12, 13}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	msg, _ := decodeResponse(t, rr)["error"].(string)
	if !strings.Contains(msg, "order 12") || !strings.Contains(msg, "order 13") {
		t.Errorf("error should name every failing row: %q", msg)
	}
}

func TestLoadManifestCSV(t *testing.T) {
	svc := &mockLoadService{previewFn: func(_ context.Context, req service.PreviewLoadRequest) (*service.LoadPreview, error) {
		if len(req.RowIDs) != 1 {
			t.Errorf("row_ids: got %v, want one", req.RowIDs)
		}
		return previewOf(t, []database.Order{sampleOrder()}, decimal.NewFromInt(1500)), nil
	}}
	r := setupLoadRouter(svc, &mockNotifier{}, enum.AccessLevelViewOnly)

	rr := postJSON(t, r, "/loads/manifest.csv", map[string]interface{}{"row_ids": []string{uuid.NewString()}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type: got %q, want text/csv", ct)
	}
	want := "ORDER,CLIENT,Arroz 5kg,TOTAL_BOXES\n" +
		"12,Mercado Sul (RS),3,3\n" +
		",TOTAL_BOXES,3,3\n" +
		",TOTAL_WEIGHT_KG,15.000,15.000\n"
	if rr.Body.String() != want {
		t.Errorf("csv:\ngot  %q\nwant %q", rr.Body.String(), want)
	}
}

// --- Confirm / cancel ---

func TestLoadConfirm(t *testing.T) {
	moved := sampleOrder()
	moved.Status = database.OrderStatusENROUTE
	var gotIDs []int64
	svc := &mockLoadService{confirmFn: func(_ context.Context, _ service.Actor, ids []int64) (*service.BatchResult, error) {
		gotIDs = ids
		return &service.BatchResult{
			Affected:  []database.Order{moved},
			Conflicts: []apperr.RowRef{{OrderID: 12, Product: "Feijao 1kg"}},
		}, nil
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/confirm", map[string]interface{}{"order_ids": []int64{12}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(gotIDs) != 1 || gotIDs[0] != 12 {
		t.Errorf("order_ids: got %v, want [12]", gotIDs)
	}

	resp := decodeResponse(t, rr)
	if resp["rows_affected"] != float64(1) {
		t.Errorf("rows_affected: got %v, want 1", resp["rows_affected"])
	}
	if conflicts, _ := resp["conflicts"].([]interface{}); len(conflicts) != 1 {
		t.Errorf("conflicts: got %v, want one", resp["conflicts"])
	}
	if len(n.events) != 1 || n.events[0].eventType != enum.EventLoadConfirmed {
		t.Errorf("events: got %+v, want one load.confirmed", n.events)
	}
}

func TestLoadConfirm_NoMatchIsNotAnError(t *testing.T) {
	svc := &mockLoadService{confirmFn: func(context.Context, service.Actor, []int64) (*service.BatchResult, error) {
		return &service.BatchResult{Affected: []database.Order{}, Conflicts: []apperr.RowRef{}}, nil
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/confirm", map[string]interface{}{"order_ids": []int64{99}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeResponse(t, rr); resp["rows_affected"] != float64(0) {
		t.Errorf("rows_affected: got %v, want 0", resp["rows_affected"])
	}
	if len(n.events) != 0 {
		t.Error("no rows moved, nothing to publish")
	}
}

func TestLoadConfirm_EnforceCapacity(t *testing.T) {
	moved := sampleOrder()
	moved.Status = database.OrderStatusENROUTE
	var gotCapacity decimal.Decimal
	svc := &mockLoadService{gatedFn: func(_ context.Context, _ service.Actor, ids []int64, capacityKg decimal.Decimal) (*service.BatchResult, error) {
		gotCapacity = capacityKg
		return &service.BatchResult{Affected: []database.Order{moved}, Conflicts: []apperr.RowRef{}}, nil
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/confirm", map[string]interface{}{
		"order_ids":        []int64{12},
		"enforce_capacity": true,
		"capacity_kg":      "20",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !gotCapacity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("capacity_kg: got %s, want 20", gotCapacity)
	}
	if len(n.events) != 1 {
		t.Errorf("events: got %d, want 1", len(n.events))
	}
}

func TestLoadConfirm_OverCapacityRejected(t *testing.T) {
	svc := &mockLoadService{gatedFn: func(context.Context, service.Actor, []int64, decimal.Decimal) (*service.BatchResult, error) {
		return nil, apperr.Conflict(0, "", "load exceeded: reduce 5.00 kg")
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/confirm", map[string]interface{}{"order_ids": []int64{12}, "enforce_capacity": true})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	if msg := decodeResponse(t, rr)["error"]; !strings.Contains(msg.(string), "reduce 5.00 kg") {
		t.Errorf("error: got %v, want the capacity message", msg)
	}
	if len(n.events) != 0 {
		t.Error("rejected load must not publish")
	}
}

func TestLoadConfirm_BatchAborted(t *testing.T) {
	moved := sampleOrder()
	svc := &mockLoadService{confirmFn: func(context.Context, service.Actor, []int64) (*service.BatchResult, error) {
		return &service.BatchResult{Affected: []database.Order{moved}},
			&apperr.BatchError{
				Succeeded: []apperr.RowRef{{OrderID: 12, Product: "Arroz 5kg"}},
				Failed:    apperr.RowRef{OrderID: 13, Product: "Feijao 1kg"},
				Err:       apperr.Storage(13, "Feijao 1kg", errors.New("connection reset")),
			}
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/confirm", map[string]interface{}{"order_ids": []int64{12, 13}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	resp := decodeResponse(t, rr)
	if succeeded, _ := resp["succeeded"].([]interface{}); len(succeeded) != 1 {
		t.Errorf("succeeded: got %v, want one row", resp["succeeded"])
	}
	failed, _ := resp["failed"].(map[string]interface{})
	if failed["order_id"] != float64(13) {
		t.Errorf("failed: got %v, want order 13", resp["failed"])
	}
	if len(n.events) != 1 {
		t.Errorf("rows already moved should still be published, got %d events", len(n.events))
	}
}

func TestLoadCancel(t *testing.T) {
	called := false
	svc := &mockLoadService{cancelFn: func(context.Context, service.Actor, []int64) (*service.BatchResult, error) {
		called = true
		return &service.BatchResult{Affected: []database.Order{sampleOrder()}}, nil
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/loads/cancel", map[string]interface{}{"order_ids": []int64{12}})
	if rr.Code != http.StatusOK || !called {
		t.Fatalf("status: got %d, want %d (called=%v)", rr.Code, http.StatusOK, called)
	}
	if len(n.events) != 1 || n.events[0].eventType != enum.EventLoadCancelled {
		t.Errorf("events: got %+v, want one load.cancelled", n.events)
	}

	rr = postJSON(t, r, "/loads/cancel", map[string]interface{}{"order_ids": []int64{}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty ids status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLoadMutations_ViewOnlyForbidden(t *testing.T) {
	r := setupLoadRouter(&mockLoadService{}, &mockNotifier{}, enum.AccessLevelViewOnly)

	for _, path := range []string{"/loads/confirm", "/loads/cancel", "/deliveries"} {
		rr := postJSON(t, r, path, map[string]interface{}{"order_ids": []int64{1}})
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s status: got %d, want %d", path, rr.Code, http.StatusForbidden)
		}
	}
}

// --- Delivery ---

func TestDeliver(t *testing.T) {
	rowID := uuid.New()
	remainder := sampleOrder()
	var got service.ConfirmDeliveryRequest
	svc := &mockLoadService{deliverFn: func(_ context.Context, _ service.Actor, req service.ConfirmDeliveryRequest) (*service.DeliveryResult, error) {
		got = req
		return &service.DeliveryResult{
			Ledger:          database.LedgerEntry{OrderID: 12, Region: "RS", Product: "Arroz 5kg", DeliveredBoxes: 0, DeliveredWeight: decimal.Zero},
			Remainder:       &remainder,
			DeliveredBoxes:  0,
			DeliveredWeight: decimal.Zero,
		}, nil
	}}
	n := &mockNotifier{}
	r := setupLoadRouter(svc, n, enum.AccessLevelFull)

	rr := postJSON(t, r, "/deliveries", map[string]interface{}{"row_id": rowID, "delivered_boxes": 0})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got.RowID != rowID || got.DeliveredBoxes != 0 {
		t.Errorf("request: got %+v", got)
	}
	if len(n.events) != 1 || n.events[0].region != "RS" || n.events[0].eventType != enum.EventDeliveryConfirmed {
		t.Errorf("events: got %+v", n.events)
	}
}

func TestDeliver_Errors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		err  error
		want int
	}{
		{"missing boxes", map[string]interface{}{"row_id": uuid.NewString()}, nil, http.StatusBadRequest},
		{"missing row", map[string]interface{}{"delivered_boxes": 1}, nil, http.StatusBadRequest},
		{"not en route", map[string]interface{}{"row_id": uuid.NewString(), "delivered_boxes": 1},
			apperr.Conflict(12, "Arroz 5kg", "status is PENDING"), http.StatusConflict},
		{"unknown row", map[string]interface{}{"row_id": uuid.NewString(), "delivered_boxes": 1},
			apperr.NotFound(0, "", "order row not found"), http.StatusNotFound},
		{"too many boxes", map[string]interface{}{"row_id": uuid.NewString(), "delivered_boxes": 11},
			apperr.Validation(12, "Arroz 5kg", "delivered boxes must be between 0 and 10"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLoadService{deliverFn: func(context.Context, service.Actor, service.ConfirmDeliveryRequest) (*service.DeliveryResult, error) {
				if tt.err == nil {
					t.Fatal("service must not be called")
				}
				return nil, tt.err
			}}
			r := setupLoadRouter(svc, &mockNotifier{}, enum.AccessLevelFull)

			rr := postJSON(t, r, "/deliveries", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
