// Package app provides the application service layer.
//
// Orchestrates use cases: admin sign-in and token refresh, earning approvals,
// collection review, exports and reports. Sits between HTTP handlers and
// domain repositories. Depends on domain interfaces, not concrete implementations.
package app
