// Package masterdata holds the ERP master and transactional records the portal
// caches locally, the cache keys that scope them, and the sync ledger that
// records the outcome of every upstream crawl.
package masterdata
