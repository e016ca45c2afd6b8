// stockctl opera la conciliación de stock del POS contra PostgreSQL.
//
// Uso:
//
//	stockctl migrate
//	stockctl import -file catalogo.json
//	stockctl receive (-product ID | -material ID) -qty 12.5
//	stockctl precheck -items pedido.json
//	stockctl checkout -items pedido.json [-request-id ID] [-user USUARIO]
//	stockctl cancel -order-id ID
//
// -items acepta "-" para leer de stdin. Las líneas son [{"variant_id": "...", "quantity": 2}].
// Código de salida: 0 ok, 2 rechazo de negocio (stock insuficiente, duplicado...), 1 fallo técnico.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/jhoicas/pos-stock/internal/application/catalog"
	"github.com/jhoicas/pos-stock/internal/application/dto"
	"github.com/jhoicas/pos-stock/internal/application/inventory"
	"github.com/jhoicas/pos-stock/internal/application/order"
	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/infrastructure/cache"
	"github.com/jhoicas/pos-stock/internal/infrastructure/postgres"
	"github.com/jhoicas/pos-stock/internal/interfaces/cli"
	"github.com/jhoicas/pos-stock/pkg/config"
	"github.com/jhoicas/pos-stock/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "uso: stockctl <migrate|import|receive|precheck|checkout|cancel> [flags]")
		return 1
	}
	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	itemsPath := fs.String("items", "", "archivo JSON con las líneas del pedido (- = stdin)")
	requestID := fs.String("request-id", "", "clave de idempotencia del pedido")
	orderID := fs.String("order-id", "", "pedido a anular")
	user := fs.String("user", "", "usuario que registra el pedido")
	lang := fs.String("lang", "es", "idioma de los mensajes (es, en)")
	catalogPath := fs.String("file", "", "archivo JSON del catálogo (- = stdin)")
	productID := fs.String("product", "", "producto que recibe mercancía")
	materialID := fs.String("material", "", "materia prima que recibe mercancía")
	qty := fs.String("qty", "", "cantidad recibida")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		return 1
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("conexión a PostgreSQL")
		return 1
	}
	defer pool.Close()

	if cmd == "migrate" {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error().Err(err).Msg("migraciones")
			return 1
		}
		log.Info().Msg("migraciones aplicadas")
		return 0
	}

	out := json.NewEncoder(stdout)
	out.SetIndent("", "  ")
	tag := cli.ParseLang(*lang)
	runner := postgres.NewTxRunner(pool, cfg.Stock.LockTimeout)

	switch cmd {
	case "import":
		var req dto.CatalogImportRequest
		err := readJSON(*catalogPath, stdin, &req)
		if err != nil {
			return report(out, tag, nil, err)
		}
		res, err := catalog.NewUseCase(runner.Catalog(), log).Import(ctx, req)
		return report(out, tag, res, err)
	case "receive":
		quantity, err := decimal.NewFromString(*qty)
		if err != nil {
			return report(out, tag, nil, fmt.Errorf("%w: -qty %q", domain.ErrInvalidInput, *qty))
		}
		res, err := catalog.NewUseCase(runner.Catalog(), log).Receive(ctx, dto.ReceiveStockRequest{
			ProductID:     *productID,
			RawMaterialID: *materialID,
			Quantity:      quantity,
		})
		return report(out, tag, res, err)
	}

	lockOrder, err := inventory.ParseLockOrder(cfg.Stock.LockOrder)
	if err != nil {
		log.Error().Err(err).Msg("STOCK_LOCK_ORDER")
		return 1
	}

	var guard order.IdempotencyGuard
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("conexión a Redis")
			return 1
		}
		defer client.Close()
		guard = cache.NewRedisIdempotency(client, cfg.Redis.TTL)
	}

	uc := order.NewUseCase(
		runner,
		inventory.NewReconciler(lockOrder),
		guard,
		order.RetryPolicy{MaxRetries: cfg.Stock.MaxRetries, Backoff: cfg.Stock.RetryBackoff},
		log,
	)

	switch cmd {
	case "precheck":
		items, err := readItems(*itemsPath, stdin)
		if err == nil {
			err = uc.PreCheck(ctx, items)
		}
		return report(out, tag, map[string]string{"status": "ok"}, err)
	case "checkout":
		items, err := readItems(*itemsPath, stdin)
		if err != nil {
			return report(out, tag, nil, err)
		}
		o, err := uc.Checkout(ctx, order.CheckoutInput{RequestID: *requestID, Items: items, CreatedBy: *user})
		if err != nil {
			return report(out, tag, nil, err)
		}
		return report(out, tag, dto.NewOrderResponse(o), nil)
	case "cancel":
		o, err := uc.Cancel(ctx, *orderID)
		if err != nil {
			return report(out, tag, nil, err)
		}
		return report(out, tag, dto.NewOrderResponse(o), nil)
	}
	fmt.Fprintf(os.Stderr, "comando desconocido: %s\n", cmd)
	return 1
}

// readItems lee las líneas del pedido desde archivo o stdin.
func readItems(path string, stdin io.Reader) ([]entity.OrderLineItem, error) {
	var req dto.OrderItemsRequest
	if err := readJSON(path, stdin, &req); err != nil {
		return nil, err
	}
	return req.ToEntities()
}

// readJSON decodifica path ("-" = stdin) en v.
func readJSON(path string, stdin io.Reader, v any) error {
	if path == "" {
		return fmt.Errorf("%w: falta el archivo de entrada", domain.ErrInvalidInput)
	}
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("abrir %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: JSON inválido: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func report(out *json.Encoder, tag language.Tag, ok any, err error) int {
	if err != nil {
		_ = out.Encode(cli.Describe(err, tag))
		return cli.ExitCode(err)
	}
	_ = out.Encode(ok)
	return 0
}
