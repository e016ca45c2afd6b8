package entity

import "github.com/shopspring/decimal"

// RawMaterial materia prima consumida por las recetas (café, leche, harina...).
type RawMaterial struct {
	ID            string
	Name          string
	StockQuantity decimal.Decimal
	Unit          string // g, ml, und
}

// RecipeEntry línea de receta: cuánto de una materia prima consume una unidad del producto.
// Un producto sin líneas de receta no es manufacturado.
type RecipeEntry struct {
	ProductID     string
	RawMaterialID string
	QuantityUsed  decimal.Decimal
}

// Required cantidad de materia prima necesaria para quantity unidades del producto.
func (r RecipeEntry) Required(quantity int64) decimal.Decimal {
	return r.QuantityUsed.Mul(decimal.NewFromInt(quantity))
}
