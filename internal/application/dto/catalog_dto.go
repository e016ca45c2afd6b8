package dto

import (
	"github.com/shopspring/decimal"
)

// ProductImport producto del catálogo con sus variantes vendibles.
type ProductImport struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Stock    int64    `json:"stock"`
	Variants []string `json:"variants"`
}

// RawMaterialImport materia prima con su unidad de medida.
type RawMaterialImport struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	Unit          string          `json:"unit"`
}

// RecipeLineImport consumo por unidad de producto.
type RecipeLineImport struct {
	RawMaterialID string          `json:"raw_material_id"`
	QuantityUsed  decimal.Decimal `json:"quantity_used"`
}

// RecipeImport receta completa de un producto.
type RecipeImport struct {
	ProductID string             `json:"product_id"`
	Lines     []RecipeLineImport `json:"lines"`
}

// CatalogImportRequest archivo de carga del catálogo (stockctl import).
type CatalogImportRequest struct {
	Products     []ProductImport     `json:"products"`
	RawMaterials []RawMaterialImport `json:"raw_materials"`
	Recipes      []RecipeImport      `json:"recipes"`
}

// CatalogImportResponse conteo de filas escritas.
type CatalogImportResponse struct {
	Products     int `json:"products"`
	Variants     int `json:"variants"`
	RawMaterials int `json:"raw_materials"`
	Recipes      int `json:"recipes"`
}

// ReceiveStockRequest entrada de mercancía: exactamente uno de ProductID o RawMaterialID.
type ReceiveStockRequest struct {
	ProductID     string          `json:"product_id,omitempty"`
	RawMaterialID string          `json:"raw_material_id,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// StockLevelResponse stock resultante tras la recepción.
type StockLevelResponse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Stock decimal.Decimal `json:"stock"`
	Unit  string          `json:"unit,omitempty"`
}
