// Package models defines the catalog entities captured in backups.
package models

import "time"

// Product is a catalog item. SupplierID and NodeID are optional references
// to a supplier and a taxonomy tree node.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	StockCode   string    `json:"stock_code"`
	Description string    `json:"description"`
	SupplierID  *int64    `json:"supplier_id"`
	NodeID      *int64    `json:"node_id"`
	Price       float64   `json:"price"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TreeNode is one node of the classification tree. Root nodes have a nil
// ParentID.
type TreeNode struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id"`
	Name      string    `json:"name"`
	CodePart  string    `json:"code_part"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomFieldDefinition struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FieldType string    `json:"field_type"`
	Required  bool      `json:"required"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// AppSetting is a key/value application preference.
type AppSetting struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}
