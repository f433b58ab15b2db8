package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appcatalog "github.com/resell/backend/internal/application/catalog"
	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/infrastructure/persistence"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
	"github.com/resell/backend/internal/interfaces/http/middleware"
)

func setupCatalogRouter(t *testing.T) (*gin.Engine, catalog.CategoryMappingRepository, uuid.UUID) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.CategoryMappingModel{}))

	repo := persistence.NewGormCategoryMappingRepository(db)
	svc := appcatalog.NewMappingService(repo, zap.NewNop())
	h := NewCatalogHandler(svc)

	r := gin.New()
	r.Use(middleware.TenantMiddleware())
	v1 := r.Group("/api/v1")
	{
		v1.GET("/catalog/resolve", h.ResolveCategory)
		v1.GET("/catalog/mappings/validate", h.ValidateDefaults)
		v1.POST("/catalog/mappings/reload", h.ReloadMappings)
	}
	return r, repo, uuid.New()
}

func seedHandlerMappings(t *testing.T, repo catalog.CategoryMappingRepository, tenantID uuid.UUID) {
	t.Helper()

	fit := "slim"
	slim := catalog.CategoryMapping{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		Category:              "jeans",
		Gender:                "men",
		Fit:                   &fit,
		MarketplaceCategoryID: "1193",
	}
	fallback := catalog.CategoryMapping{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		Category:              "jeans",
		Gender:                "men",
		MarketplaceCategoryID: "1190",
		IsDefault:             true,
	}
	require.NoError(t, repo.Seed(context.Background(), []catalog.CategoryMapping{slim, fallback}))
}

func catalogGET(r *gin.Engine, tenantID uuid.UUID, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCatalogHandler_ResolveCategory(t *testing.T) {
	r, repo, tenantID := setupCatalogRouter(t)
	seedHandlerMappings(t, repo, tenantID)

	w := catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans&gender=men&fit=slim")
	require.Equal(t, http.StatusOK, w.Code)

	var resp appcatalog.ResolveCategoryResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "1193", resp.MarketplaceCategoryID)

	t.Run("falls back to the default row", func(t *testing.T) {
		w := catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans&gender=men")
		require.Equal(t, http.StatusOK, w.Code)
		var resp appcatalog.ResolveCategoryResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "1190", resp.MarketplaceCategoryID)
	})

	t.Run("unmapped pair", func(t *testing.T) {
		w := catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=dress&gender=women")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing required parameters", func(t *testing.T) {
		w := catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing tenant header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/resolve?category=jeans&gender=men", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCatalogHandler_ValidateDefaults(t *testing.T) {
	r, repo, tenantID := setupCatalogRouter(t)

	noDefault := catalog.CategoryMapping{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		Category:              "jeans",
		Gender:                "women",
		MarketplaceCategoryID: "1195",
	}
	require.NoError(t, repo.Seed(context.Background(), []catalog.CategoryMapping{noDefault}))

	w := catalogGET(r, tenantID, "/api/v1/catalog/mappings/validate")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Violations []appcatalog.DefaultViolationResponse `json:"violations"`
	}
	decodeData(t, w, &resp)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "NO_DEFAULT", resp.Violations[0].Kind)
	assert.Equal(t, "jeans", resp.Violations[0].Category)
}

func TestCatalogHandler_ReloadMappings(t *testing.T) {
	r, repo, tenantID := setupCatalogRouter(t)

	// Prime the cache with an empty snapshot
	w := catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans&gender=men")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	seedHandlerMappings(t, repo, tenantID)

	// Still stale until an explicit reload
	w = catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans&gender=men")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/mappings/reload", nil)
	req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	require.Equal(t, http.StatusNoContent, rw.Code)

	w = catalogGET(r, tenantID, "/api/v1/catalog/resolve?category=jeans&gender=men")
	require.Equal(t, http.StatusOK, w.Code)
	var resp appcatalog.ResolveCategoryResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "1190", resp.MarketplaceCategoryID)
}
