// Package crawler holds the types and capability interfaces shared by the scrape pipeline:
// country snapshots, fetch requests, queue items, and the retry policy used by workers.
package crawler
