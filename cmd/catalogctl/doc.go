// Command catalogctl runs maintenance tasks against a media catalog.
//
// It opens the same library, database and derivative directories as the
// service, read from the same environment variables and .env file, and can
// run while the service is up: every change goes through the ingestion
// coordinator and SQLite serialises writers across processes.
//
// Usage:
//
//	catalogctl analyze [--workers N]      analyse images not yet analysed
//	catalogctl derivatives [--workers N]  generate missing thumbnails and previews
//	catalogctl sweep                      reconcile the library directory now
//	catalogctl ingest FILE...             move files into the library and catalogue them
//	catalogctl delete ID...               remove items with their originals and derivatives
//	catalogctl stats [--json]             print catalog counters
//
// Exit status is 1 when any item failed; the failures are listed on stderr.
package main
