package constants

// Route constants shared by the router, controllers and templates
const (
	PublicRoute = "/"
	LoginRoute  = "/login"

	APIPrefix        = "/api"
	APIV1Prefix      = "/api/v1"
	CheckoutRoute    = "/checkout"
	CheckoutCallback = "/checkout/callback"
	PurchaseRoute    = "/courses/:id/purchase"

	PaystackWebhookRoute = "/webhooks/paystack"

	AdminPrefix   = "/admin"
	MetricsRoute  = "/metrics"
	DocsAPIPrefix = "/docs/api"
)
