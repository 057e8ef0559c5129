// Package domain defines the core types of the campaign dispatch pipeline.
//
// Types in this package are pure value objects: no database handles, no
// HTTP concerns. They are the shared language between handlers, services,
// workers and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Transition and eligibility rules are allowed (pure functions on the type)
//   - Constants and enums belong here
package domain
