package order

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/jhoicas/pos-stock/internal/application/inventory"
	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
	"github.com/jhoicas/pos-stock/pkg/logger"
)

// RetryPolicy reintentos del lote completo cuando el almacén reporta domain.ErrRetryable.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration // espera inicial; crece exponencialmente entre intentos
}

// UseCase flujo de pedidos del punto de venta: pre-validación, cobro y anulación.
// Cada operación abre su propia transacción y llama una sola vez al conciliador de stock.
type UseCase struct {
	txRunner   TxRunner
	reconciler *inventory.Reconciler
	guard      IdempotencyGuard
	retry      RetryPolicy
	log        *logger.Logger
	now        func() time.Time
}

// NewUseCase construye el caso de uso. guard puede ser nil (sin control de idempotencia).
func NewUseCase(
	txRunner TxRunner,
	reconciler *inventory.Reconciler,
	guard IdempotencyGuard,
	retry RetryPolicy,
	log *logger.Logger,
) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{
		txRunner:   txRunner,
		reconciler: reconciler,
		guard:      guard,
		retry:      retry,
		log:        log.Component("order"),
		now:        time.Now,
	}
}

// CheckoutInput entrada del cobro.
type CheckoutInput struct {
	RequestID string // opcional; si viene, se rechazan reenvíos con domain.ErrDuplicate
	Items     []entity.OrderLineItem
	CreatedBy string
}

// PreCheck valida que el pedido se pueda despachar sin modificar stock.
func (uc *UseCase) PreCheck(ctx context.Context, items []entity.OrderLineItem) error {
	err := uc.withRetry(ctx, func(ledger repository.StockLedger, _ repository.OrderRepository) error {
		return uc.reconciler.Reconcile(ctx, ledger, items, entity.FactorApply, true)
	})
	uc.logOutcome("precheck", "", len(items), err)
	return err
}

// Checkout descuenta stock (producto y materias primas) y guarda el pedido en una sola transacción.
func (uc *UseCase) Checkout(ctx context.Context, in CheckoutInput) (*entity.Order, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if in.RequestID != "" && uc.guard != nil {
		ok, err := uc.guard.Acquire(ctx, in.RequestID)
		if err != nil {
			return nil, err
		}
		if !ok {
			uc.log.Warn().Str("request_id", in.RequestID).Msg("pedido duplicado ignorado")
			return nil, domain.ErrDuplicate
		}
	}

	order := &entity.Order{
		ID:        uuid.New().String(),
		RequestID: in.RequestID,
		Status:    entity.OrderStatusPlaced,
		Items:     append([]entity.OrderLineItem(nil), in.Items...),
		CreatedBy: in.CreatedBy,
		CreatedAt: uc.now(),
	}
	err := uc.withRetry(ctx, func(ledger repository.StockLedger, orders repository.OrderRepository) error {
		if err := uc.reconciler.Reconcile(ctx, ledger, order.Items, entity.FactorApply, false); err != nil {
			return err
		}
		return orders.Create(ctx, order)
	})
	uc.logOutcome("checkout", order.ID, len(order.Items), err)
	if err != nil {
		if in.RequestID != "" && uc.guard != nil && !errors.Is(err, domain.ErrDuplicate) {
			if relErr := uc.guard.Release(context.WithoutCancel(ctx), in.RequestID); relErr != nil {
				uc.log.Error().Err(relErr).Str("request_id", in.RequestID).Msg("liberar clave de idempotencia")
			}
		}
		return nil, err
	}
	return order, nil
}

// Cancel anula un pedido y repone su stock. La reposición no valida suficiencia, así que solo
// falla por integridad (variante, producto o materia prima inexistente) o por el estado del pedido.
func (uc *UseCase) Cancel(ctx context.Context, orderID string) (*entity.Order, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidInput
	}
	var cancelled *entity.Order
	err := uc.withRetry(ctx, func(ledger repository.StockLedger, orders repository.OrderRepository) error {
		o, err := orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrNotFound
		}
		if o.Status == entity.OrderStatusCancelled {
			return domain.ErrConflict
		}
		if err := uc.reconciler.Reconcile(ctx, ledger, o.Items, entity.FactorReverse, false); err != nil {
			return err
		}
		at := uc.now()
		if err := orders.MarkCancelled(ctx, orderID, at); err != nil {
			return err
		}
		o.Status = entity.OrderStatusCancelled
		o.CancelledAt = &at
		cancelled = o
		return nil
	})
	n := 0
	if cancelled != nil {
		n = len(cancelled.Items)
	}
	uc.logOutcome("cancel", orderID, n, err)
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// withRetry corre fn en una transacción nueva por intento. Solo reintenta domain.ErrRetryable;
// los errores de negocio se devuelven de inmediato.
func (uc *UseCase) withRetry(ctx context.Context, fn func(repository.StockLedger, repository.OrderRepository) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = uc.retry.Backoff
	policy.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := uc.txRunner.Run(ctx, fn)
		if err != nil && !errors.Is(err, domain.ErrRetryable) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(uc.retry.MaxRetries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			uc.log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("conflicto de bloqueo, reintentando lote")
		}),
	)
	return err
}

func (uc *UseCase) logOutcome(op, orderID string, items int, err error) {
	if err == nil {
		uc.log.Info().Str("op", op).Str("order_id", orderID).Int("items", items).Msg("stock conciliado")
		return
	}
	ev := uc.log.Warn()
	if se, ok := domain.AsStockError(err); ok {
		ev = ev.Str("kind", string(se.Kind))
	} else if !errors.Is(err, domain.ErrDuplicate) && !errors.Is(err, domain.ErrConflict) &&
		!errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidInput) {
		ev = uc.log.Error()
	}
	ev.Err(err).Str("op", op).Str("order_id", orderID).Int("items", items).Msg("conciliación rechazada")
}
