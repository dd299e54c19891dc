// Package service contains the application-specific use cases of the
// extraction subsystem. It orchestrates interactions between domain
// objects, the persistence interfaces in internal/store, and the work
// queue port in internal/queue.
//
// Two services make up the package:
//
//   - ExtractionService translates extraction requests into queue calls:
//     resolving the effective model id, fanning bulk requests out into one
//     job per manifest, and building field-scoped OCR context previews.
//
//   - JobsService is the read side: job lookup, filtered listing,
//     aggregate stats, queue pause/resume, and the durable history ledger.
//
// Services receive their collaborators through constructor injection and
// depend only on interfaces, never on concrete Redis or Postgres types.
// Expected failures surface as sentinel errors the API layer maps to
// status codes; unexpected ones are wrapped with operation context.
package service
