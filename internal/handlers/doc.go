// Package handlers provides the HTTP surface of the catalog.
//
// It includes handlers for:
//   - Upload intake (POST /api/upload), streaming each file into the
//     staging area while its digest is computed
//   - Item lookup and deletion (GET and DELETE /api/items/{id})
//   - Catalog statistics and on-demand reconciliation sweeps
//   - Health, liveness and readiness probes
package handlers
