package services

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vitrin/internal/gateway"
	"vitrin/internal/models"
)

// CheckoutGateway, tek bir sepet satırını sunucuya gönderir.
type CheckoutGateway interface {
	Checkout(ctx context.Context, productID string, quantity int) (models.Product, error)
}

// Checkout, sepet satırlarını sırayla sunucuya gönderir.
type Checkout struct {
	cart    *CartStore
	catalog *Catalog
	gw      CheckoutGateway
	tracer  trace.Tracer
	log     *slog.Logger
}

// NewCheckout, yeni bir Checkout oluşturur.
func NewCheckout(cart *CartStore, catalog *Catalog, gw CheckoutGateway, logger *slog.Logger) *Checkout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkout{
		cart:    cart,
		catalog: catalog,
		gw:      gw,
		tracer:  otel.Tracer("vitrin/services"),
		log:     logger,
	}
}

// Run, her satırı sepet sırasıyla dener. Kabul edilen satırlar sepetten çıkarılır ve dönen
// ürün kaydı kataloğa yazılır; reddedilen satırlar hatalarıyla birlikte sepette kalır.
// Yetkisiz yanıt döngüyü hemen durdurur. Sepet yalnızca tüm satırlar kabul edilirse tamamen boşalır.
func (co *Checkout) Run(ctx context.Context) (models.CheckoutResult, error) {
	lines := co.cart.Lines()
	if len(lines) == 0 {
		return models.CheckoutResult{}, &models.ValidationError{Message: "Your cart is empty"}
	}

	ctx, span := co.tracer.Start(ctx, "Checkout.Run", trace.WithAttributes(attribute.Int("cart.lines", len(lines))))
	defer span.End()

	result := models.CheckoutResult{Submitted: []models.CheckoutLine{}, Failed: []models.CheckoutLine{}}
	submitted := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout cancelled")
			return co.finish(result, submitted), err
		}

		id := models.ResolveID(line.Product)
		entry := models.CheckoutLine{
			ProductID: id,
			Name:      line.Name,
			Quantity:  line.CartQuantity,
			Subtotal:  models.FormatPrice(line.Subtotal()),
		}

		p, err := co.submit(ctx, id, line.CartQuantity)
		if errors.Is(err, gateway.ErrUnauthorized) {
			co.log.Warn("Checkout.Run - unauthorized, stopping", slog.String("product_id", id))
			span.SetStatus(codes.Error, "unauthorized")
			return co.finish(result, submitted), err
		}
		if err != nil {
			co.log.Info("Checkout.Run - line rejected", slog.String("product_id", id), slog.Any("err", err))
			entry.Error = err.Error()
			result.Failed = append(result.Failed, entry)
			continue
		}

		co.cart.Remove(id)
		co.catalog.Patch(p)
		result.Submitted = append(result.Submitted, entry)
		submitted = append(submitted, line)
	}

	if len(result.Failed) == 0 {
		co.cart.Clear()
	} else {
		span.SetStatus(codes.Error, "some lines failed")
	}
	result = co.finish(result, submitted)
	co.log.Info("Checkout.Run - done",
		slog.Int("submitted", len(result.Submitted)),
		slog.Int("failed", len(result.Failed)),
		slog.String("total", result.TotalPrice),
	)
	return result, nil
}

func (co *Checkout) submit(ctx context.Context, id string, quantity int) (models.Product, error) {
	ctx, span := co.tracer.Start(ctx, "Checkout.line", trace.WithAttributes(
		attribute.String("product.id", id),
		attribute.Int("product.quantity", quantity),
	))
	defer span.End()

	p, err := co.gw.Checkout(ctx, id, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return p, err
}

func (co *Checkout) finish(result models.CheckoutResult, submitted []models.CartLine) models.CheckoutResult {
	result.TotalItems = 0
	for _, l := range submitted {
		result.TotalItems += l.CartQuantity
	}
	result.TotalPrice = models.FormatPrice(totalOf(submitted))
	return result
}
