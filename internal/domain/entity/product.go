package entity

// Product representa un producto terminado vendible. Stock es en unidades enteras.
type Product struct {
	ID    string
	Name  string
	Stock int64
}

// ProductVariant asocia una variante vendible (talla, sabor, presentación) a su producto padre.
type ProductVariant struct {
	ID        string
	ProductID string
}
