// Package domain defines the core console types and the interfaces between layers.
//
// Concept-oriented files (admin.go, session.go, earning.go, collection.go, report.go,
// liveness.go) hold shared types and consumer-side contracts. No implementation code.
package domain
