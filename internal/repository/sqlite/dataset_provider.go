package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crenwick/taxonvault/internal/models"
	"github.com/crenwick/taxonvault/internal/repository"
)

// DatasetProvider implements repository.DatasetProvider for SQLite.
// Both operations run inside a single transaction: ReadAll so the
// multi-table read is consistent, ReplaceAll so the swap is atomic.
type DatasetProvider struct {
	db *sql.DB
}

// NewDatasetProvider creates a new SQLite dataset provider.
func NewDatasetProvider(db *sql.DB) *DatasetProvider {
	return &DatasetProvider{db: db}
}

// ReadAll returns a consistent snapshot of every entity table.
func (p *DatasetProvider) ReadAll(ctx context.Context) (*repository.Dataset, error) {
	if p.db == nil {
		return nil, repository.ErrNilDatabase
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	ds := &repository.Dataset{
		Products:               []models.Product{},
		Suppliers:              []models.Supplier{},
		TreeNodes:              []models.TreeNode{},
		CustomFieldDefinitions: []models.CustomFieldDefinition{},
		AppSettings:            []models.AppSetting{},
	}

	if ds.Suppliers, err = readSuppliers(ctx, tx); err != nil {
		return nil, err
	}
	if ds.TreeNodes, err = readTreeNodes(ctx, tx); err != nil {
		return nil, err
	}
	if ds.Products, err = readProducts(ctx, tx); err != nil {
		return nil, err
	}
	if ds.CustomFieldDefinitions, err = readCustomFieldDefinitions(ctx, tx); err != nil {
		return nil, err
	}
	if ds.AppSettings, err = readAppSettings(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}

	return ds, nil
}

// ReplaceAll replaces the entire live dataset in one transaction.
// Tables are cleared and repopulated child-first/parent-first so foreign
// keys stay satisfied throughout.
func (p *DatasetProvider) ReplaceAll(ctx context.Context, ds *repository.Dataset) error {
	if p.db == nil {
		return repository.ErrNilDatabase
	}
	if ds == nil {
		return fmt.Errorf("dataset cannot be nil")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete children before parents.
	for _, table := range []string{"products", "custom_field_definitions", "app_settings", "tree_nodes", "suppliers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	for _, s := range ds.Suppliers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO suppliers (id, name, code, email, phone, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Name, s.Code, s.Email, s.Phone, boolToInt(s.Active), formatTime(s.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert supplier %d: %w", s.ID, err)
		}
	}

	// Parents can reference other nodes; rows arrive ordered by ID so a
	// parent is always inserted before its children.
	for _, n := range ds.TreeNodes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tree_nodes (id, parent_id, name, code_part, sort_order, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, n.ParentID, n.Name, n.CodePart, n.SortOrder, formatTime(n.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert tree node %d: %w", n.ID, err)
		}
	}

	for _, pr := range ds.Products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, stock_code, description, supplier_id, node_id, price, active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pr.ID, pr.Name, pr.StockCode, pr.Description, pr.SupplierID, pr.NodeID,
			pr.Price, boolToInt(pr.Active), formatTime(pr.CreatedAt), formatTime(pr.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert product %d: %w", pr.ID, err)
		}
	}

	for _, f := range ds.CustomFieldDefinitions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO custom_field_definitions (id, name, field_type, required, sort_order, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.FieldType, boolToInt(f.Required), f.SortOrder, formatTime(f.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert custom field definition %d: %w", f.ID, err)
		}
	}

	for _, a := range ds.AppSettings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO app_settings (id, key, value) VALUES (?, ?, ?)`,
			a.ID, a.Key, a.Value)
		if err != nil {
			return fmt.Errorf("failed to insert app setting %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}

	return nil
}

func readSuppliers(ctx context.Context, tx *sql.Tx) ([]models.Supplier, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, code, email, phone, active, created_at FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []models.Supplier{}
	for rows.Next() {
		var s models.Supplier
		var active int
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.Email, &s.Phone, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		s.Active = active != 0
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse supplier created_at: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func readTreeNodes(ctx context.Context, tx *sql.Tx) ([]models.TreeNode, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, parent_id, name, code_part, sort_order, created_at FROM tree_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tree nodes: %w", err)
	}
	defer rows.Close()

	nodes := []models.TreeNode{}
	for rows.Next() {
		var n models.TreeNode
		var parentID sql.NullInt64
		var createdAt string
		if err := rows.Scan(&n.ID, &parentID, &n.Name, &n.CodePart, &n.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tree node: %w", err)
		}
		if parentID.Valid {
			v := parentID.Int64
			n.ParentID = &v
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse tree node created_at: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func readProducts(ctx context.Context, tx *sql.Tx) ([]models.Product, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, stock_code, description, supplier_id, node_id, price, active, created_at, updated_at
		 FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		var supplierID, nodeID sql.NullInt64
		var active int
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.StockCode, &p.Description, &supplierID, &nodeID,
			&p.Price, &active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if supplierID.Valid {
			v := supplierID.Int64
			p.SupplierID = &v
		}
		if nodeID.Valid {
			v := nodeID.Int64
			p.NodeID = &v
		}
		p.Active = active != 0
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse product created_at: %w", err)
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse product updated_at: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func readCustomFieldDefinitions(ctx context.Context, tx *sql.Tx) ([]models.CustomFieldDefinition, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, field_type, required, sort_order, created_at FROM custom_field_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom field definitions: %w", err)
	}
	defer rows.Close()

	fields := []models.CustomFieldDefinition{}
	for rows.Next() {
		var f models.CustomFieldDefinition
		var required int
		var createdAt string
		if err := rows.Scan(&f.ID, &f.Name, &f.FieldType, &required, &f.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom field definition: %w", err)
		}
		f.Required = required != 0
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse custom field definition created_at: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func readAppSettings(ctx context.Context, tx *sql.Tx) ([]models.AppSetting, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, key, value FROM app_settings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query app settings: %w", err)
	}
	defer rows.Close()

	settings := []models.AppSetting{}
	for rows.Next() {
		var a models.AppSetting
		if err := rows.Scan(&a.ID, &a.Key, &a.Value); err != nil {
			return nil, fmt.Errorf("failed to scan app setting: %w", err)
		}
		settings = append(settings, a)
	}
	return settings, rows.Err()
}

// Ensure DatasetProvider implements repository.DatasetProvider.
var _ repository.DatasetProvider = (*DatasetProvider)(nil)
