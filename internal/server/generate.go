// Package server provides the HTTP server of the biorecords API.
//
// The package is layered:
//
//   - Server: store wiring, change events and background services
//   - Config: listen address, middleware switches and timeouts
//   - Router: gorilla/mux routes and the middleware chain
//   - Handlers: HTTP request handlers organized by domain
//
// Usage:
//
//	st, err := store.Open(ctx, store.DSN("biorecords.db"))
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(st, server.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	srv.Start() // Start background services
//	http.ListenAndServe(":8080", srv.Handler())
package server

//go:generate gomarkdoc --output README.md .
