package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultAPIBase = "http://localhost:8080"
	defaultDishID  = "crepes"
)

var (
	apiBase    string
	token      string
	dishID     string
	client     = &http.Client{Timeout: 30 * time.Second}
	testDate   string
	createdIDs = make(map[string]string) // track created resources for cleanup
)

func main() {
	fmt.Println("=== Meal Hub E2E Smoke Test ===")
	fmt.Println()

	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	token = getEnv("SMOKE_TOKEN", "")
	dishID = getEnv("SMOKE_DISH_ID", defaultDishID)

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Token: %s\n", maskString(token))
	fmt.Printf("Dish ID: %s\n", dishID)
	fmt.Println()

	// Far enough ahead to not collide with a real plan
	testDate = time.Now().AddDate(1, 0, 0).Format("2006-01-02")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Get Dish", testGetDish},
		{"Schedule Meal", testScheduleMeal},
		{"Shopping List Has Generated Items", testListHasGenerated},
		{"Add Manual Item", testAddManual},
		{"Generated Item Is Read-Only", testGeneratedReadOnly},
		{"Create Export (CSV)", testCreateExport},
		{"Download Export", testDownloadExport},
		{"Delete Export", testDeleteExport},
		{"Unschedule Meal", testUnscheduleMeal},
		{"Delete Manual Item", testDeleteManual},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz() error {
	_, err := do("GET", "/healthz", nil, http.StatusOK, nil)
	return err
}

func testGetDish() error {
	var dish struct {
		ID          string `json:"id"`
		Ingredients []struct {
			Name string `json:"name"`
		} `json:"ingredients"`
	}
	if _, err := do("GET", "/v1/dishes/"+dishID, nil, http.StatusOK, &dish); err != nil {
		return err
	}
	if len(dish.Ingredients) == 0 {
		return fmt.Errorf("dish %s has no ingredients, seed the catalog first", dishID)
	}
	return nil
}

func testScheduleMeal() error {
	body := map[string]interface{}{
		"date":     testDate,
		"slot":     "dinner",
		"dish_id":  dishID,
		"servings": 2,
	}

	var meal struct {
		ID             string `json:"id"`
		GeneratedItems int    `json:"generated_items"`
	}
	headers := map[string]string{"Idempotency-Key": fmt.Sprintf("smoke-%d", time.Now().UnixNano())}
	if _, err := doWithHeaders("POST", "/v1/meal-plan", body, http.StatusCreated, &meal, headers); err != nil {
		return err
	}
	if meal.GeneratedItems == 0 {
		return fmt.Errorf("no generated items for meal %s", meal.ID)
	}

	createdIDs["meal"] = meal.ID
	return nil
}

type listItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Generated  bool    `json:"generated"`
	Editable   bool    `json:"editable"`
	MealPlanID *string `json:"meal_plan_id"`
}

func fetchList() ([]listItem, error) {
	var list struct {
		Items []listItem `json:"items"`
	}
	if _, err := do("GET", "/v1/shopping-list", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func testListHasGenerated() error {
	items, err := fetchList()
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.MealPlanID != nil && *it.MealPlanID == createdIDs["meal"] {
			if it.Editable {
				return fmt.Errorf("generated item %s is editable", it.ID)
			}
			createdIDs["generated"] = it.ID
			return nil
		}
	}
	return fmt.Errorf("no item for meal %s", createdIDs["meal"])
}

func testAddManual() error {
	body := map[string]interface{}{
		"name":     "Smoke test coffee",
		"quantity": 1,
		"unit":     "pack",
		"category": "Beverages",
	}
	var item listItem
	if _, err := do("POST", "/v1/shopping-list/manual", body, http.StatusCreated, &item); err != nil {
		return err
	}
	createdIDs["manual"] = item.ID
	return nil
}

func testGeneratedReadOnly() error {
	id := createdIDs["generated"]
	_, err := do("DELETE", "/v1/shopping-list/manual/"+id, nil, http.StatusForbidden, nil)
	return err
}

func testCreateExport() error {
	var export struct {
		ID        string `json:"id"`
		ItemCount int    `json:"item_count"`
	}
	if _, err := do("POST", "/v1/exports", map[string]string{"format": "csv"}, http.StatusCreated, &export); err != nil {
		return err
	}
	if export.ItemCount == 0 {
		return fmt.Errorf("export %s is empty", export.ID)
	}
	createdIDs["export"] = export.ID
	return nil
}

func testDownloadExport() error {
	req, err := newRequest("GET", "/v1/exports/"+createdIDs["export"]+"/download", nil)
	if err != nil {
		return err
	}

	noRedirect := &http.Client{
		Timeout: client.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return checkBody(resp.Body)

	case http.StatusFound:
		// S3 mode
		location := resp.Header.Get("Location")
		if location == "" {
			return fmt.Errorf("redirect without Location header")
		}
		getResp, err := client.Get(location)
		if err != nil {
			return fmt.Errorf("failed to follow redirect: %w", err)
		}
		defer getResp.Body.Close()
		if getResp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(getResp.Body, 4096))
			return fmt.Errorf("redirect failed: status=%d body=%s", getResp.StatusCode, string(body))
		}
		return checkBody(getResp.Body)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("unexpected status=%d body=%s", resp.StatusCode, string(body))
}

func testDeleteExport() error {
	_, err := do("DELETE", "/v1/exports/"+createdIDs["export"], nil, http.StatusNoContent, nil)
	return err
}

func testUnscheduleMeal() error {
	if _, err := do("DELETE", "/v1/meal-plan/"+createdIDs["meal"], nil, http.StatusOK, nil); err != nil {
		return err
	}

	items, err := fetchList()
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.MealPlanID != nil && *it.MealPlanID == createdIDs["meal"] {
			return fmt.Errorf("item %s survived unschedule", it.ID)
		}
	}
	return nil
}

func testDeleteManual() error {
	_, err := do("DELETE", "/v1/shopping-list/manual/"+createdIDs["manual"], nil, http.StatusOK, nil)
	return err
}

// Helper functions

func do(method, path string, body interface{}, wantStatus int, out interface{}) (*http.Response, error) {
	return doWithHeaders(method, path, body, wantStatus, out, nil)
}

func doWithHeaders(method, path string, body interface{}, wantStatus int, out interface{}, headers map[string]string) (*http.Response, error) {
	req, err := newRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode failed: %w", err)
		}
	}
	return resp, nil
}

func newRequest(method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuth(req)
	return req, nil
}

func checkBody(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) < 10 {
		return fmt.Errorf("export too small: %d bytes", len(data))
	}
	return nil
}

func addAuth(req *http.Request) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
