package config

// EnvPrefix is the envconfig prefix for every setting in this service.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names used across config loading and tests.
const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvDBDSN     = "STOREFRONT_DB_DSN"
	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvNetsAPIKey    = "STOREFRONT_NETS_API_KEY"
	EnvNetsProjectID = "STOREFRONT_NETS_PROJECT_ID"

	EnvPayPalClientID     = "STOREFRONT_PAYPAL_CLIENT_ID"
	EnvPayPalClientSecret = "STOREFRONT_PAYPAL_CLIENT_SECRET"

	EnvStripeAPIKey = "STOREFRONT_STRIPE_API_KEY"
)
