package server

func (s *Server) initRoutes() {
	// AUTHORIZATION
	s.RegisterRouteHandler("GET "+RouteConnect, ChainMiddleware(s.ConnectHandler(), s.PublicMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.PublicMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.PublicMiddleware()...)) // form_post response mode

	// ADMIN
	s.RegisterRouteHandler("GET "+RouteUserTenants, ChainMiddleware(s.ListTenantsHandler(), s.AdminMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteUserTenant, ChainMiddleware(s.DisconnectTenantHandler(), s.AdminMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteTenantSync, ChainMiddleware(s.SyncTenantHandler(), s.AdminMiddleware()...))

	// OPERATIONS
	if s.services.Metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(s.services.Metrics.ServeHTTP, s.AdminMiddleware()...))
	}
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
