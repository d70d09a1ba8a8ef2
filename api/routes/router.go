package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kelvinchng/storefront-backend/api/controllers"
	"github.com/kelvinchng/storefront-backend/api/middleware"
	"github.com/kelvinchng/storefront-backend/internal/auth"
	"github.com/kelvinchng/storefront-backend/internal/cart"
	"github.com/kelvinchng/storefront-backend/internal/inventory"
	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/internal/payments"
	"github.com/kelvinchng/storefront-backend/internal/payments/netsqr"
	"github.com/kelvinchng/storefront-backend/internal/payments/paypalgw"
	"github.com/kelvinchng/storefront-backend/internal/payments/stripegw"
	"github.com/kelvinchng/storefront-backend/internal/refunds"
	"github.com/kelvinchng/storefront-backend/internal/wallet"
	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/db"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	pkgredis "github.com/kelvinchng/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	registry *prometheus.Registry,
	authService auth.Service,
	cartService cart.Service,
	inventoryService inventory.Service,
	ordersService orders.Service,
	walletService wallet.Service,
	paymentsService payments.Service,
	netsService *netsqr.Service,
	netsPoller *netsqr.Poller,
	paypalService *paypalgw.Service,
	stripeService *stripegw.Service,
	refundsService refunds.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(authService, logg))
		r.Post("/login", controllers.Login(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.ListCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Put("/items/{productID}", controllers.SetCartItemQuantity(cartService, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(cartService, logg))
			r.Delete("/", controllers.ClearCart(cartService, logg))
		})

		r.Get("/checkout/preview", controllers.CheckoutPreview(ordersService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderID}/refund", controllers.RequestRefund(refundsService, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
			r.Post("/pin", controllers.SetWalletPIN(walletService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Route("/nets", func(r chi.Router) {
				r.Post("/purchase", controllers.InitiateNetsPurchase(netsService, logg))
				r.Post("/topup", controllers.InitiateNetsTopup(netsService, logg))
				r.Get("/{retrievalRef}/stream", controllers.StreamNetsPayment(netsService, netsPoller, logg))
				r.Post("/{intentID}/success", controllers.FinalizeNetsSuccess(netsService, logg))
				r.Post("/{intentID}/fail", controllers.FinalizeNetsFailure(netsService, logg))
			})
			r.Route("/paypal", func(r chi.Router) {
				r.Post("/purchase", controllers.CreatePaypalPurchase(paypalService, logg))
				r.Post("/topup", controllers.CreatePaypalTopup(paypalService, logg))
				r.Post("/capture", controllers.CapturePaypalOrder(paypalService, logg))
			})
			r.Route("/stripe", func(r chi.Router) {
				r.Post("/session", controllers.CreateStripeSession(stripeService, logg))
				r.Post("/confirm", controllers.ConfirmStripeSession(stripeService, logg))
			})
			r.Post("/wallet/pay", controllers.PayWithWallet(paymentsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersService, logg))
			r.Get("/export", controllers.AdminExportOrders(ordersService, logg))
			r.Delete("/", controllers.AdminRemoveAllOrders(ordersService, logg))
			r.Delete("/{orderID}", controllers.AdminRemoveOrder(ordersService, logg))
			r.Put("/{orderID}/items/{itemID}", controllers.AdminUpdateOrderItem(ordersService, logg))
			r.Delete("/{orderID}/items/{itemID}", controllers.AdminRemoveOrderItem(ordersService, logg))
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.AdminListRefunds(refundsService, logg))
			r.Post("/{orderID}/approve", controllers.AdminApproveRefund(refundsService, logg))
			r.Post("/{orderID}/reject", controllers.AdminRejectRefund(refundsService, logg))
		})

		r.Post("/wallet/topup", controllers.AdminTopupWallet(walletService, logg))
		r.Post("/inventory/reset", controllers.AdminResetInventory(inventoryService, logg))
	})

	return r
}
