// Package handlers provides the HTTP request handlers of the biorecords API.
//
// Handlers are organized by domain:
//
//   - taxa.go: taxa, vernacular names and crossreferences
//   - communities.go: ecological communities
//   - conservation.go: conservation lists, categories, criteria and listings
//   - documents.go: documents and file attachments
//   - management.go: threats, actions, activities and their categories
//   - occurrence.go: lookups and occurrence area encounters
//   - observations.go: typed observations of both domains and bulk create
//   - fieldwork.go: areas, surveys, field encounters and users
//   - export.go: CSV exports
//   - admin.go, health.go, realtime.go: operations endpoints
//
// Read handlers share one pattern:
//
//  1. Check the response cache
//  2. Parse filters and query the store
//  3. Cache and write the result
//
// Write handlers decode the body, save through the store and return the
// stored record. The store's change hooks flush the cache and publish
// events, so handlers never do either themselves.
package handlers
