package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/memory"
	"github.com/shopspring/decimal"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                  8080,
		DBDriver:              config.DriverMemory,
		AuthMode:              config.AuthModeNone,
		DefaultUserID:         "local-user",
		JWTSecret:             "test-secret",
		JWTIssuer:             "meal-hub-test",
		JWTTTLMinutes:         60,
		PlanMaxRangeDays:      62,
		ShoppingUncategorized: "Uncategorized",
		IdempotencyTTLSeconds: 60,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	st := memory.New()
	err := st.GetCatalogStorage().SeedCatalog(context.Background(),
		[]storage.Ingredient{
			{ID: "flour", Name: "Flour", Unit: "g", Category: "Bakery"},
			{ID: "egg", Name: "Eggs", Unit: "unit", Category: "Dairy"},
		},
		[]storage.Dish{{
			ID: "crepes", Name: "Crepes",
			Composition: []storage.CompositionLine{
				{IngredientID: "flour", Quantity: decimal.NewFromInt(200)},
				{IngredientID: "egg", Quantity: decimal.NewFromInt(2)},
			},
		}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv := NewWithStorage(cfg, st)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func call(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testConfig())

	w := call(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %s", resp["status"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, testConfig())

	w := call(t, srv.Handler(), http.MethodPost, "/healthz", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestScheduleToShoppingListFlow(t *testing.T) {
	srv := newTestServer(t, testConfig())
	h := srv.Handler()

	w := call(t, h, http.MethodPost, "/v1/meal-plan",
		`{"date":"2024-03-04","slot":"lunch","dish_id":"crepes","servings":2}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var meal struct {
		ID             string `json:"id"`
		GeneratedItems int    `json:"generated_items"`
	}
	json.NewDecoder(w.Body).Decode(&meal)
	if meal.GeneratedItems != 2 {
		t.Errorf("generated_items = %d, want 2", meal.GeneratedItems)
	}

	w = call(t, h, http.MethodGet, "/v1/shopping-list", "", nil)
	var list struct {
		Total int `json:"total"`
		Items []struct {
			Name     string  `json:"name"`
			Quantity float64 `json:"quantity"`
			Editable bool    `json:"editable"`
		} `json:"items"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 2 {
		t.Fatalf("expected 2 items, got %d", list.Total)
	}
	for _, it := range list.Items {
		if it.Editable {
			t.Errorf("generated item %s should not be editable", it.Name)
		}
		if it.Name == "Flour" && it.Quantity != 400 {
			t.Errorf("flour quantity = %v, want 400", it.Quantity)
		}
	}

	w = call(t, h, http.MethodDelete, "/v1/meal-plan/"+meal.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete meal: expected 200, got %d", w.Code)
	}

	w = call(t, h, http.MethodGet, "/v1/shopping-list", "", nil)
	json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 0 {
		t.Errorf("expected empty list after unschedule, got %d", list.Total)
	}
}

func TestScheduleIdempotencyKey(t *testing.T) {
	srv := newTestServer(t, testConfig())
	h := srv.Handler()
	body := `{"date":"2024-03-04","slot":"dinner","dish_id":"crepes","servings":1}`
	headers := map[string]string{"Idempotency-Key": "retry-1"}

	if w := call(t, h, http.MethodPost, "/v1/meal-plan", body, headers); w.Code != http.StatusCreated {
		t.Fatalf("first: expected 201, got %d", w.Code)
	}
	w := call(t, h, http.MethodPost, "/v1/meal-plan", body, headers)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "duplicate_request") {
		t.Fatalf("repeat: expected 409 duplicate_request, got %d %s", w.Code, w.Body.String())
	}

	w = call(t, h, http.MethodGet, "/v1/meal-plan?startDate=2024-03-04&endDate=2024-03-10", "", nil)
	var week struct {
		Meals []json.RawMessage `json:"meals"`
	}
	json.NewDecoder(w.Body).Decode(&week)
	if len(week.Meals) != 1 {
		t.Errorf("expected one scheduled meal, got %d", len(week.Meals))
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMode = config.AuthModeDev
	cfg.AuthRequired = true
	srv := newTestServer(t, cfg)
	h := srv.Handler()

	if w := call(t, h, http.MethodGet, "/v1/shopping-list", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w := call(t, h, http.MethodPost, "/v1/auth/dev", `{"user_id":"u-42"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dev auth: expected 200, got %d", w.Code)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	json.NewDecoder(w.Body).Decode(&tok)

	w = call(t, h, http.MethodGet, "/v1/shopping-list", "", map[string]string{"Authorization": "Bearer " + tok.AccessToken})
	if w.Code != http.StatusOK {
		t.Errorf("with token: expected 200, got %d", w.Code)
	}
}

func TestDishesAndExportsRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())
	h := srv.Handler()

	if w := call(t, h, http.MethodGet, "/v1/dishes/crepes", "", nil); w.Code != http.StatusOK {
		t.Errorf("dish lookup: expected 200, got %d", w.Code)
	}

	w := call(t, h, http.MethodPost, "/v1/exports", `{"format":"csv"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("export: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}
