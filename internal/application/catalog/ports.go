package catalog

import (
	"context"

	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

// TxRunner ejecuta fn en una transacción con el catálogo y el libro de stock atados a ella.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		catalog repository.CatalogRepository,
		ledger repository.StockLedger,
	) error) error
}
