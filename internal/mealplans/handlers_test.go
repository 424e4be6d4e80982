package mealplans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fdg312/meal-hub/internal/apperr"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/memory"
	"github.com/fdg312/meal-hub/internal/userctx"
	"github.com/shopspring/decimal"
)

func setupStore(t *testing.T) *memory.MemoryStorage {
	t.Helper()
	store := memory.New()

	err := store.GetCatalogStorage().SeedCatalog(context.Background(),
		[]storage.Ingredient{
			{ID: "flour", Name: "Flour", Unit: "g", Category: "Bakery"},
			{ID: "egg", Name: "Eggs", Unit: "unit", Category: "Dairy"},
			{ID: "milk", Name: "Milk", Unit: "ml", Category: "Dairy"},
		},
		[]storage.Dish{
			{
				ID: "crepes", Name: "Crepes", Category: "Breakfast",
				Composition: []storage.CompositionLine{
					{IngredientID: "flour", Quantity: decimal.NewFromInt(200)},
					{IngredientID: "egg", Quantity: decimal.NewFromInt(2)},
				},
			},
			{
				ID: "omelette", Name: "Omelette", Category: "Breakfast",
				Composition: []storage.CompositionLine{
					{IngredientID: "egg", Quantity: decimal.NewFromInt(2)},
					{IngredientID: "egg", Quantity: decimal.NewFromInt(1)},
					{IngredientID: "milk", Quantity: decimal.NewFromInt(50)},
					{IngredientID: "milk", Quantity: decimal.NewFromInt(1), Unit: "cup"},
				},
			},
		})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return store
}

func newTestHandler(store *memory.MemoryStorage) *Handler {
	return NewHandler(NewService(store.GetMealPlansStorage(), store.GetCatalogStorage(), 0))
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}, userID string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(userctx.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func schedule(t *testing.T, h *Handler, userID string, req ScheduleRequest) ScheduleResponse {
	t.Helper()
	rr := doRequest(t, h.HandleSchedule, http.MethodPost, "/v1/meal-plan", req, userID)
	if rr.Code != http.StatusCreated {
		t.Fatalf("schedule: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ScheduleResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode schedule response: %v", err)
	}
	return resp
}

func generatedFor(t *testing.T, store *memory.MemoryStorage, userID, dishID string) []storage.ShoppingItem {
	t.Helper()
	items, err := store.GetShoppingItemsStorage().ListItems(context.Background(), userID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	var out []storage.ShoppingItem
	for _, it := range items {
		if it.DishID != nil && *it.DishID == dishID {
			out = append(out, it)
		}
	}
	return out
}

func TestHandleSchedule_MaterializesScaledComposition(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	resp := schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 3})

	if resp.DishName != "Crepes" || resp.GeneratedItems != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}

	want := map[string]string{"Flour|g": "600", "Eggs|unit": "6"}
	items := generatedFor(t, store, "u1", "crepes")
	if len(items) != len(want) {
		t.Fatalf("expected %d generated items, got %d", len(want), len(items))
	}
	for _, it := range items {
		qty, ok := want[it.Name+"|"+it.Unit]
		if !ok {
			t.Errorf("unexpected item %s %s", it.Name, it.Unit)
			continue
		}
		if !it.Quantity.Equal(decimal.RequireFromString(qty)) {
			t.Errorf("%s: quantity = %s, want %s", it.Name, it.Quantity, qty)
		}
		if it.MealPlanID == nil || *it.MealPlanID != resp.ID {
			t.Errorf("%s: not tied to meal %s", it.Name, resp.ID)
		}
		if it.DishName == nil || *it.DishName != "Crepes" {
			t.Errorf("%s: dish name not set", it.Name)
		}
	}
}

func TestHandleSchedule_SumsSameNameAndUnitOnly(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "morning", DishID: "omelette", Servings: 2})

	items := generatedFor(t, store, "u1", "omelette")
	got := map[string]string{}
	for _, it := range items {
		got[it.Name+"|"+it.Unit] = it.Quantity.String()
	}

	want := map[string]string{"Eggs|unit": "6", "Milk|ml": "100", "Milk|cup": "2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %s, want %s", k, got[k], v)
		}
	}
}

func TestHandleSchedule_TwiceKeepsSeparateBatches(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	first := schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 2})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-05", Slot: "lunch", DishID: "crepes", Servings: 3})

	items := generatedFor(t, store, "u1", "crepes")
	if len(items) != 4 {
		t.Fatalf("expected 4 generated rows (2 batches), got %d", len(items))
	}

	// Unscheduling the first meal retracts only its own batch.
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/meal-plan/{id}", h.HandleDelete)
	req := httptest.NewRequest(http.MethodDelete, "/v1/meal-plan/"+first.ID, nil)
	req = req.WithContext(userctx.WithUserID(req.Context(), "u1"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var del DeleteResponse
	json.NewDecoder(rr.Body).Decode(&del)
	if !del.Deleted || del.RetractedItems != 2 {
		t.Errorf("unexpected delete response: %+v", del)
	}

	items = generatedFor(t, store, "u1", "crepes")
	if len(items) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(items))
	}
	for _, it := range items {
		if it.Name == "Flour" && !it.Quantity.Equal(decimal.NewFromInt(600)) {
			t.Errorf("remaining batch should be the 3-serving one, flour = %s", it.Quantity)
		}
	}
}

func TestHandleSchedule_Validation(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	tests := []struct {
		name string
		req  ScheduleRequest
	}{
		{"missing date", ScheduleRequest{Slot: "lunch", DishID: "crepes", Servings: 1}},
		{"bad date", ScheduleRequest{Date: "2024-02-30", Slot: "lunch", DishID: "crepes", Servings: 1}},
		{"bad slot", ScheduleRequest{Date: "2024-03-04", Slot: "brunch", DishID: "crepes", Servings: 1}},
		{"zero servings", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 0}},
		{"unknown dish", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "nope", Servings: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h.HandleSchedule, http.MethodPost, "/v1/meal-plan", tt.req, "u1")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}

	items, _ := store.GetShoppingItemsStorage().ListItems(context.Background(), "u1")
	if len(items) != 0 {
		t.Errorf("failed schedules must not create items, got %d", len(items))
	}
}

func TestHandleSchedule_Unauthorized(t *testing.T) {
	h := newTestHandler(setupStore(t))

	rr := doRequest(t, h.HandleSchedule, http.MethodPost, "/v1/meal-plan",
		ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1}, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestHandleWeek_OrderAndRange(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-05", Slot: "morning", DishID: "crepes", Servings: 1})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "dinner", DishID: "crepes", Servings: 1})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "morning", DishID: "omelette", Servings: 1})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "snack", DishID: "crepes", Servings: 1})
	schedule(t, h, "u2", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1})

	rr := doRequest(t, h.HandleWeek, http.MethodGet, "/v1/meal-plan?startDate=2024-03-04&endDate=2024-03-10", nil, "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp WeekPlanResponse
	json.NewDecoder(rr.Body).Decode(&resp)

	want := []string{"2024-03-04/morning", "2024-03-04/snack", "2024-03-04/dinner", "2024-03-05/morning"}
	if len(resp.Meals) != len(want) {
		t.Fatalf("expected %d meals, got %d", len(want), len(resp.Meals))
	}
	for i, m := range resp.Meals {
		if got := m.Date + "/" + m.Slot; got != want[i] {
			t.Errorf("meal[%d] = %s, want %s", i, got, want[i])
		}
	}
	if resp.Meals[0].DishName != "Omelette" {
		t.Errorf("dish name not joined: %+v", resp.Meals[0])
	}

	for _, target := range []string{
		"/v1/meal-plan?startDate=2024-03-10&endDate=2024-03-04",
		"/v1/meal-plan?startDate=2024-03-04",
		"/v1/meal-plan?startDate=2024-01-01&endDate=2024-12-31",
	} {
		rr := doRequest(t, h.HandleWeek, http.MethodGet, target, nil, "u1")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestHandleClearDayAndWeek(t *testing.T) {
	store := setupStore(t)
	h := newTestHandler(store)

	rr := doRequest(t, h.HandleClearDay, http.MethodPost, "/v1/meal-plan/clear-day", ClearDayRequest{Date: "2024-03-04"}, "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("empty clear-day: expected 200, got %d", rr.Code)
	}
	var resp ClearResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 0 {
		t.Errorf("expected count 0, got %d", resp.Count)
	}

	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1})
	schedule(t, h, "u1", ScheduleRequest{Date: "2024-03-06", Slot: "dinner", DishID: "omelette", Servings: 1})
	schedule(t, h, "u2", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1})

	rr = doRequest(t, h.HandleClearDay, http.MethodPost, "/v1/meal-plan/clear-day", ClearDayRequest{Date: "2024-03-04"}, "u1")
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 2 || resp.RetractedItems != 4 {
		t.Errorf("clear-day: %+v", resp)
	}

	rr = doRequest(t, h.HandleClearWeek, http.MethodPost, "/v1/meal-plan/clear-week",
		ClearWeekRequest{WeekStart: "2024-03-04", WeekEnd: "2024-03-10"}, "u1")
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 1 {
		t.Errorf("clear-week: %+v", resp)
	}

	if n := len(generatedFor(t, store, "u2", "crepes")); n != 2 {
		t.Errorf("other user's items must survive, got %d", n)
	}

	rr = doRequest(t, h.HandleClearDay, http.MethodPost, "/v1/meal-plan/clear-day", ClearDayRequest{}, "u1")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing date: expected 400, got %d", rr.Code)
	}
	rr = doRequest(t, h.HandleClearWeek, http.MethodPost, "/v1/meal-plan/clear-week",
		ClearWeekRequest{WeekStart: "2024-03-10", WeekEnd: "2024-03-04"}, "u1")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("inverted range: expected 400, got %d", rr.Code)
	}
}

func TestUnschedule_NotFoundAndForeign(t *testing.T) {
	store := setupStore(t)
	svc := NewService(store.GetMealPlansStorage(), store.GetCatalogStorage(), 0)
	ctx := context.Background()

	resp, err := svc.Schedule(ctx, "u1", ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if _, err := svc.Unschedule(ctx, "u2", resp.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign unschedule: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Unschedule(ctx, "u1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing unschedule: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Unschedule(ctx, "u1", resp.ID); err != nil {
		t.Errorf("owner unschedule: %v", err)
	}
}

type failingPlans struct {
	storage.MealPlansStorage
}

func (failingPlans) ScheduleMeal(ctx context.Context, meal storage.ScheduledMeal, generated []storage.ShoppingItem) (storage.ScheduledMeal, []storage.ShoppingItem, error) {
	return storage.ScheduledMeal{}, nil, errors.New("connection refused")
}

func TestHandleSchedule_StoreErrorIs500(t *testing.T) {
	store := setupStore(t)
	h := NewHandler(NewService(failingPlans{}, store.GetCatalogStorage(), 0))

	rr := doRequest(t, h.HandleSchedule, http.MethodPost, "/v1/meal-plan",
		ScheduleRequest{Date: "2024-03-04", Slot: "lunch", DishID: "crepes", Servings: 1}, "u1")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("connection refused")) {
		t.Error("store error must not leak to the client")
	}
}
