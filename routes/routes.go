package routes

import (
	"github.com/gin-gonic/gin"

	"organic-hub/controllers"
	"organic-hub/middleware"
)

type Controllers struct {
	Auth     *controllers.AuthController
	Product  *controllers.ProductController
	Cart     *controllers.CartController
	Order    *controllers.OrderController
	Wishlist *controllers.WishlistController
	Payment  *controllers.PaymentController
	Admin    *controllers.AdminController
}

// RegisterRoutes mounts the storefront API under /api.
func RegisterRoutes(r *gin.Engine, ctl Controllers, tokens middleware.TokenParser) {
	api := r.Group("/api")
	requireAuth := middleware.AuthMiddleware(tokens)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", ctl.Auth.Register)
		authRoutes.POST("/login", ctl.Auth.Login)
		authRoutes.POST("/refresh", ctl.Auth.Refresh)
	}

	userRoutes := api.Group("/users", requireAuth)
	{
		userRoutes.GET("/me", ctl.Auth.Me)
		userRoutes.PUT("/me", ctl.Auth.UpdateProfile)
		userRoutes.PUT("/me/password", ctl.Auth.ChangePassword)
	}

	productRoutes := api.Group("/products")
	{
		productRoutes.GET("", ctl.Product.GetProducts)
		productRoutes.GET("/seasonal", ctl.Product.GetSeasonal)
		productRoutes.GET("/:id", ctl.Product.GetProduct)
	}
	api.GET("/categories", ctl.Product.GetCategories)

	cartRoutes := api.Group("/cart", middleware.OptionalAuth(tokens))
	{
		cartRoutes.GET("", ctl.Cart.GetCart)
		cartRoutes.DELETE("", ctl.Cart.ClearCart)
		cartRoutes.POST("/items", ctl.Cart.AddItem)
		cartRoutes.PUT("/items/:product_id", ctl.Cart.UpdateItem)
		cartRoutes.DELETE("/items/:product_id", ctl.Cart.RemoveItem)
		cartRoutes.POST("/merge", ctl.Cart.MergeCart)
	}

	orderRoutes := api.Group("/orders", requireAuth)
	{
		orderRoutes.POST("", ctl.Order.Checkout)
		orderRoutes.GET("", ctl.Order.ListMyOrders)
		orderRoutes.GET("/:id", ctl.Order.GetMyOrder)
		orderRoutes.POST("/:id/cancel", ctl.Order.CancelMyOrder)
	}

	wishlistRoutes := api.Group("/wishlist", requireAuth)
	{
		wishlistRoutes.GET("", ctl.Wishlist.GetWishlist)
		wishlistRoutes.POST("", ctl.Wishlist.AddToWishlist)
		wishlistRoutes.DELETE("/:product_id", ctl.Wishlist.RemoveFromWishlist)
		wishlistRoutes.POST("/:product_id/move-to-cart", ctl.Wishlist.MoveToCart)
	}

	paymentRoutes := api.Group("/payments")
	{
		paymentRoutes.GET("/config", ctl.Payment.GetConfig)
		paymentRoutes.POST("/webhook/stripe", ctl.Payment.StripeWebhook)
		paymentRoutes.POST("", requireAuth, ctl.Payment.CreatePayment)
		paymentRoutes.POST("/verify", requireAuth, ctl.Payment.VerifyPayment)
	}

	adminRoutes := api.Group("/admin", requireAuth, middleware.AdminOnly())
	{
		adminRoutes.GET("/dashboard", ctl.Admin.GetStats)
		adminRoutes.GET("/users", ctl.Admin.ListUsers)

		adminRoutes.POST("/products", ctl.Product.CreateProduct)
		adminRoutes.POST("/products/upload-url", ctl.Product.ImageUploadURL)
		adminRoutes.PUT("/products/:id", ctl.Product.UpdateProduct)
		adminRoutes.DELETE("/products/:id", ctl.Product.DeleteProduct)
		adminRoutes.PATCH("/products/:id/stock", ctl.Product.AdjustStock)

		adminRoutes.GET("/orders", ctl.Order.ListOrders)
		adminRoutes.GET("/orders/:id", ctl.Order.GetOrder)
		adminRoutes.PATCH("/orders/:id/status", ctl.Order.UpdateOrderStatus)
	}
}
