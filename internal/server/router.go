package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/response"
	"storefront/internal/token"
)

// Deps carries everything the routes need. DB may be nil in tests that only
// exercise routing and middleware.
type Deps struct {
	Config   config.Config
	DB       *mongo.Database
	Issuer   *token.Issuer
	Notifier handlers.Notifier
	Images   handlers.ImageStore
	Payments handlers.PaymentGateway
	Metrics  *metrics.Registry
	Started  time.Time
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	db := d.DB

	r := gin.New()
	r.Use(
		gin.Logger(),
		middleware.RequestID(),
		middleware.Recovery(cfg.IsProduction()),
		middleware.Metrics(d.Metrics),
		cors.New(cors.Config{
			AllowOrigins:     []string{cfg.ClientURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", handlers.Health(db, d.Started))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Gatherer(), promhttp.HandlerOpts{})))

	cookie := handlers.NewRefreshCookie(cfg.CookieSecret, cfg.IsProduction(), cfg.RefreshTokenTTL)
	secrets := handlers.PaymentSecrets{KeySecret: cfg.PaymentKeySecret, WebhookSecret: cfg.PaymentWebhookSecret}
	authed := middleware.AuthGuard(d.Issuer)
	adminOnly := middleware.AuthGuard(d.Issuer, models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", handlers.Health(db, d.Started))

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register(db, d.Issuer, cookie, d.Notifier))
		auth.POST("/login", handlers.Login(db, d.Issuer, cookie))
		auth.POST("/refresh", handlers.Refresh(db, d.Issuer, cookie))
		auth.POST("/forgot-password", handlers.ForgotPassword(db, d.Notifier))
		auth.POST("/reset-password/:token", handlers.ResetPassword(db))
		auth.GET("/verify-email/:token", handlers.VerifyEmail(db))

		auth.POST("/logout", authed, handlers.Logout(db, cookie))
		auth.GET("/me", authed, handlers.GetMe(db))
		auth.PUT("/profile", authed, handlers.UpdateProfile(db))
		auth.PUT("/change-password", authed, handlers.ChangePassword(db, d.Issuer, cookie))
	}

	products := api.Group("/products")
	{
		products.GET("", handlers.ListProducts(db))
		products.GET("/:id", handlers.GetProduct(db))
		products.GET("/:id/related", handlers.RelatedProducts(db))
		products.GET("/:id/reviews", handlers.ListReviews(db))
		products.POST("/:id/reviews", authed, handlers.CreateReview(db))

		products.POST("", adminOnly, handlers.CreateProduct(db))
		products.PUT("/:id", adminOnly, handlers.UpdateProduct(db))
		products.DELETE("/:id", adminOnly, handlers.DeleteProduct(db, d.Images))
		products.POST("/:id/images", adminOnly, handlers.UploadProductImages(db, d.Images))
		products.DELETE("/:id/images", adminOnly, handlers.DeleteProductImage(db, d.Images))
	}

	api.DELETE("/reviews/:id", authed, handlers.DeleteReview(db))

	categories := api.Group("/categories")
	{
		categories.GET("", handlers.ListCategories(db))
		categories.GET("/:idOrSlug", handlers.GetCategory(db))
		categories.POST("", adminOnly, handlers.CreateCategory(db))
		categories.PUT("/:id", adminOnly, handlers.UpdateCategory(db))
		categories.DELETE("/:id", adminOnly, handlers.DeleteCategory(db))
	}

	cart := api.Group("/cart", authed)
	{
		cart.GET("", handlers.GetCart(db))
		cart.POST("/items", handlers.AddToCart(db))
		cart.PUT("/items/:productId", handlers.UpdateCartItem(db))
		cart.DELETE("/items/:productId", handlers.RemoveCartItem(db))
		cart.DELETE("", handlers.ClearCart(db))
	}

	wishlist := api.Group("/wishlist", authed)
	{
		wishlist.GET("", handlers.GetWishlist(db))
		wishlist.POST("", handlers.AddToWishlist(db))
		wishlist.DELETE("/:productId", handlers.RemoveFromWishlist(db))
	}

	addresses := api.Group("/addresses", authed)
	{
		addresses.GET("", handlers.ListAddresses(db))
		addresses.POST("", handlers.CreateAddress(db))
		addresses.PUT("/:id", handlers.UpdateAddress(db))
		addresses.DELETE("/:id", handlers.DeleteAddress(db))
		addresses.PATCH("/:id/default", handlers.SetDefaultAddress(db))
	}

	coupons := api.Group("/coupons", authed)
	{
		coupons.POST("/validate", handlers.ValidateCoupon(db))
		coupons.GET("/available", handlers.AvailableCoupons(db))
	}

	orders := api.Group("/orders", authed)
	{
		orders.POST("", handlers.PlaceOrder(db, d.Notifier, d.Metrics))
		orders.GET("", handlers.ListMyOrders(db))
		orders.GET("/:id", handlers.GetOrder(db))
		orders.PUT("/:id/cancel", handlers.CancelOrder(db, d.Metrics))
	}

	payments := api.Group("/payments")
	{
		payments.GET("/key", handlers.PaymentKey(d.Payments))
		payments.POST("/webhook", handlers.PaymentWebhook(db, secrets, d.Metrics))
		payments.POST("/create-order", authed, handlers.CreatePaymentOrder(db, d.Payments))
		payments.POST("/verify", authed, handlers.VerifyPayment(db, secrets, d.Metrics))
	}

	admin := api.Group("/admin", adminOnly)
	{
		admin.GET("/dashboard", handlers.Dashboard(db))
		admin.GET("/analytics/sales", handlers.SalesAnalytics(db))
		admin.GET("/analytics/products", handlers.ProductAnalytics(db))

		admin.GET("/users", handlers.AdminListUsers(db))
		admin.PUT("/users/:id/role", handlers.UpdateUserRole(db))
		admin.PUT("/users/:id/status", handlers.UpdateUserStatus(db))

		admin.GET("/products", handlers.AdminListProducts(db))
		admin.GET("/categories", handlers.AdminListCategories(db))

		admin.GET("/orders", handlers.AdminListOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db, d.Metrics))
		admin.DELETE("/orders/:id", handlers.DeleteOrder(db))

		admin.GET("/coupons", handlers.AdminListCoupons(db))
		admin.POST("/coupons", handlers.CreateCoupon(db))
		admin.PUT("/coupons/:id", handlers.UpdateCoupon(db))
		admin.DELETE("/coupons/:id", handlers.DeleteCoupon(db))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Envelope{Success: false, Message: "route not found: " + c.Request.URL.Path})
	})

	return r
}
