// Package dispatch drains the send queue.
//
// A pass reclaims items stuck in processing past their lease, claims a
// batch of eligible items with a single compare-and-swap statement and
// sends each one. Passes from any number of triggers may overlap; the
// claim guarantees each item is held by at most one pass at a time.
//
// Delivery is at-least-once: a process that dies between the transport
// call and MarkSent leaves the item in processing, and it is sent again
// after the lease expires. A pass that outlives its lease finds its mark
// rejected and leaves bookkeeping to the pass that reclaimed the item.
//
// Items the pass could not settle, because the local rate limiter refused
// the send or the pass was cancelled, go straight back to pending without
// spending a retry.
package dispatch
