// Package contactcache persists the contact set of a client session in a
// Badger database, so a restarted client seeds from the receptionists it
// last knew instead of the configured initial contacts alone.
//
// Each contact is one key under the "contact/" prefix. Store replaces the
// whole set in a single transaction. Entries expire after MaxAge.
package contactcache
