package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fdg312/meal-hub/internal/auth"
	"github.com/fdg312/meal-hub/internal/blob"
	"github.com/fdg312/meal-hub/internal/catalog"
	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/exports"
	"github.com/fdg312/meal-hub/internal/grpchealth"
	"github.com/fdg312/meal-hub/internal/idempotency"
	"github.com/fdg312/meal-hub/internal/mealplans"
	"github.com/fdg312/meal-hub/internal/shoppinglist"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/backend"
	"github.com/redis/go-redis/v9"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        storage.Storage
	authMiddleware *auth.Middleware
	idempotency    idempotency.Store
	redis          *redis.Client
	watcher        *catalog.Watcher
	grpc           *grpchealth.Server
	http           *http.Server
}

// New создаёт новый HTTP сервер, подключая storage по DB_DRIVER
func New(cfg *config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, _ := backend.OpenOrMemory(ctx, cfg, log.Default())
	return NewWithStorage(cfg, st)
}

// NewWithStorage создаёт сервер поверх готового storage
func NewWithStorage(cfg *config.Config, st storage.Storage) *Server {
	s := &Server{
		config:  cfg,
		mux:     http.NewServeMux(),
		storage: st,
	}

	s.initCatalog()
	s.initIdempotency()
	s.routes()
	return s
}

// initCatalog seeds the catalog from CATALOG_SEED_FILE and optionally
// starts the file watcher.
func (s *Server) initCatalog() {
	path := s.config.CatalogSeedFile
	if path == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := catalog.LoadFile(path)
	if err != nil {
		log.Printf("WARN catalog: %v", err)
	} else if err := catalog.Apply(ctx, s.storage.GetCatalogStorage(), snap); err != nil {
		log.Printf("WARN catalog: %v", err)
	} else {
		log.Printf("INFO catalog: seeded %d ingredients, %d dishes from %s", len(snap.Ingredients), len(snap.Dishes), path)
	}

	if !s.config.CatalogWatch {
		return
	}
	w, err := catalog.NewWatcher(path, s.storage.GetCatalogStorage())
	if err != nil {
		log.Printf("WARN catalog: watcher init failed: %v", err)
		return
	}
	if err := w.Start(); err != nil {
		log.Printf("WARN catalog: watcher start failed: %v", err)
		return
	}
	go func() {
		for range w.Reloads {
		}
	}()
	s.watcher = w
	log.Printf("INFO catalog: watching %s", path)
}

func (s *Server) initIdempotency() {
	ttl := time.Duration(s.config.IdempotencyTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if s.config.RedisAddr == "" {
		log.Printf("INFO idempotency: store=memory ttl=%s", ttl)
		s.idempotency = idempotency.NewMemoryStore(ttl)
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.config.RedisAddr,
		Password: s.config.RedisPassword,
		DB:       s.config.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("WARN idempotency: redis %s unavailable (%v), fallback to memory", s.config.RedisAddr, err)
		client.Close()
		s.idempotency = idempotency.NewMemoryStore(ttl)
		return
	}

	log.Printf("INFO idempotency: store=redis addr=%s ttl=%s", s.config.RedisAddr, ttl)
	s.redis = client
	s.idempotency = idempotency.NewRedisStore(client, ttl)
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	// Auth API (no auth required)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	// POST /v1/auth/dev - dev token, AUTH_MODE=dev only
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	catalogStore := s.storage.GetCatalogStorage()
	plansStore := s.storage.GetMealPlansStorage()
	itemsStore := s.storage.GetShoppingItemsStorage()

	// Meal plan API
	planService := mealplans.NewService(plansStore, catalogStore, s.config.PlanMaxRangeDays)
	planHandler := mealplans.NewHandler(planService)

	s.mux.Handle("POST /v1/meal-plan", idempotency.Middleware(s.idempotency, http.HandlerFunc(planHandler.HandleSchedule)))
	s.mux.HandleFunc("GET /v1/meal-plan", planHandler.HandleWeek)
	s.mux.HandleFunc("DELETE /v1/meal-plan/{id}", planHandler.HandleDelete)
	s.mux.HandleFunc("POST /v1/meal-plan/clear-day", planHandler.HandleClearDay)
	s.mux.HandleFunc("POST /v1/meal-plan/clear-week", planHandler.HandleClearWeek)

	// Shopping list API
	listService := shoppinglist.NewService(itemsStore, plansStore, catalogStore, shoppinglist.Options{
		TolerateReadErrors: s.config.ShoppingTolerateReadErr,
		UncategorizedLabel: s.config.ShoppingUncategorized,
	})
	listHandler := shoppinglist.NewHandler(listService)

	s.mux.HandleFunc("GET /v1/shopping-list", listHandler.HandleList)
	s.mux.HandleFunc("POST /v1/shopping-list/manual", listHandler.HandleAddManual)
	s.mux.HandleFunc("POST /v1/shopping-list/generated", listHandler.HandleAddGenerated)
	s.mux.HandleFunc("PUT /v1/shopping-list/manual/{id}", listHandler.HandleUpdate)
	s.mux.HandleFunc("PUT /v1/shopping-list/{id}", listHandler.HandleUpdate)
	s.mux.HandleFunc("PATCH /v1/shopping-list/{id}/checked", listHandler.HandleToggle)
	s.mux.HandleFunc("DELETE /v1/shopping-list/manual/{id}", listHandler.HandleDelete)
	s.mux.HandleFunc("DELETE /v1/shopping-list/{id}", listHandler.HandleDelete)
	s.mux.HandleFunc("DELETE /v1/shopping-list/dish/{dishId}", listHandler.HandleDeleteByDish)
	s.mux.HandleFunc("DELETE /v1/shopping-list/by-dish/{dishId}", listHandler.HandleDeleteByDish)
	s.mux.HandleFunc("POST /v1/shopping-list/clear-checked", listHandler.HandleClearChecked)
	s.mux.HandleFunc("POST /v1/shopping-list/reconcile", listHandler.HandleReconcile)

	// Catalog lookups
	dishHandler := catalog.NewHandler(catalogStore)
	s.mux.HandleFunc("GET /v1/dishes", dishHandler.HandleList)
	s.mux.HandleFunc("GET /v1/dishes/{id}", dishHandler.HandleGet)

	// Exports API
	exportsBlob := s.initExportsBlob()
	exportService := exports.NewService(s.storage.GetExportsStorage(), listService, exportsBlob)
	exportHandler := exports.NewHandlers(exportService)

	s.mux.HandleFunc("POST /v1/exports", exportHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/exports", exportHandler.HandleList)
	s.mux.HandleFunc("GET /v1/exports/{id}/download", exportHandler.HandleDownload)
	s.mux.HandleFunc("DELETE /v1/exports/{id}", exportHandler.HandleDelete)
}

// initExportsBlob resolves EXPORTS_MODE (falls back to BLOB_MODE).
func (s *Server) initExportsBlob() blob.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, mode, err := blob.NewExportsStore(ctx, s.config.Blob, log.Default())
	if err != nil {
		log.Fatalf("FATAL blob: failed to initialize exports store: %v", err)
	}
	log.Printf("INFO blob: exports blob mode: %s", mode)
	return store
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Handler builds the middleware chain (outermost first): CORS → Rate Limit → Auth → Router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.authMiddleware.Authenticate(handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер и, если задан GRPC_PORT, gRPC health
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	if s.config.GRPCPort > 0 {
		gs, err := grpchealth.Listen(s.config.GRPCPort)
		if err != nil {
			return err
		}
		s.grpc = gs
		go func() {
			if err := gs.Serve(); err != nil {
				log.Printf("ERROR grpc: %v", err)
			}
		}()
		gs.SetServing()
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Сервер запущен на http://localhost%s\n", addr)
	log.Printf("Health check: http://localhost%s/healthz\n", addr)
	log.Printf("Meal plan API: http://localhost%s/v1/meal-plan\n", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает приём запросов; gRPC health переходит в NOT_SERVING
func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpc != nil {
		s.grpc.Stop()
	}
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
