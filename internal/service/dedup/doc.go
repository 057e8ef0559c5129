// Package dedup resolves email and fax conflicts in contact imports.
//
// Every import row is checked twice, first against contacts already in
// the store and then against rows accepted earlier in the same import,
// with the same precedence both times:
//
//  1. email and fax both collide: reject
//  2. only email collides: keep as fax-only (fax inactive) if a fax is
//     present, otherwise reject
//  3. only fax collides, or nothing collides: keep in full
//
// Fax numbers are never deduplicated on their own; shared office lines
// are expected.
package dedup
