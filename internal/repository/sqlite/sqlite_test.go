package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/crenwick/taxonvault/internal/database"
	"github.com/crenwick/taxonvault/internal/models"
	"github.com/crenwick/taxonvault/internal/repository"
)

// setupTestDB creates a fresh SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func int64Ptr(v int64) *int64 { return &v }

// seedDataset returns a small dataset exercising nullable references and
// sub-second timestamps.
func seedDataset() *repository.Dataset {
	created := time.Date(2026, 5, 2, 16, 40, 12, 345678000, time.UTC)
	return &repository.Dataset{
		Products: []models.Product{
			{ID: 1, Name: "Torx Screw T10", StockCode: "TX-T10", Description: "stainless", SupplierID: int64Ptr(1), NodeID: int64Ptr(2), Price: 0.08, Active: true, CreatedAt: created, UpdatedAt: created},
			{ID: 2, Name: "Retired Part", StockCode: "RP-OLD", Active: false, CreatedAt: created, UpdatedAt: created},
		},
		Suppliers: []models.Supplier{
			{ID: 1, Name: "Screws Direct", Code: "SD", Email: "sales@sd.example", Phone: "+44 20 0000", Active: true, CreatedAt: created},
		},
		TreeNodes: []models.TreeNode{
			{ID: 1, Name: "Fixings", CodePart: "FX", SortOrder: 1, CreatedAt: created},
			{ID: 2, ParentID: int64Ptr(1), Name: "Screws", CodePart: "SC", SortOrder: 2, CreatedAt: created},
		},
		CustomFieldDefinitions: []models.CustomFieldDefinition{
			{ID: 1, Name: "Finish", FieldType: "text", Required: true, SortOrder: 1, CreatedAt: created},
		},
		AppSettings: []models.AppSetting{
			{ID: 1, Key: "code_separator", Value: "-"},
			{ID: 2, Key: "currency", Value: "GBP"},
		},
	}
}
