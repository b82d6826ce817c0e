// Package scraper drives the list and detail endpoints of the XHS web API.
//
// Every scraper sits on an APIClient, normally an open *xhs.Client, and
// turns raw response mappings into typed records from package xhs. List
// items that fail to decode are skipped; request errors stop the walk and
// are returned with whatever was collected so far.
//
// Pagination:
//
// CollectCursor follows continuation cursors. It stops when the server
// reports no more data, returns an empty cursor, echoes the cursor it was
// sent, or returns a cursor already visited, and it never fetches more
// than the caller's page limit. CollectPages walks numbered pages for
// search and stops at the first empty page.
//
// Usage:
//
//	client, err := xhs.NewClient(cookies, xhs.WithSigner(signer), xhs.WithRateLimit(2, 2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	s := scraper.New(client, 0, logger.GetLogger())
//	notes, err := s.Notes.GetUserNotes(ctx, userID, "", 10)
//
// Resumable crawls:
//
// CrawlUserNotes and CrawlComments persist the last cursor through package
// checkpoint when a crawl fails, so a later run with Resume set picks up
// where it stopped.
package scraper
