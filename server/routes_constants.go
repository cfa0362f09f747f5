package server

// Route path constants
const (
	// Authorization
	RouteConnect  = "/connect"
	RouteCallback = "/callback"

	// Admin API
	RouteUserTenants = "/users/{email}/tenants"
	RouteUserTenant  = "/users/{email}/tenants/{tenantID}"
	RouteTenantSync  = "/tenants/{tenantID}/sync"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
