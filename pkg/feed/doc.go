// Package feed streams upload batch summaries to WebSocket clients.
//
// Mount a Hub on an HTTP route and add its middleware to a processor:
//
//	hub := feed.NewHub(feed.WithHistory(50))
//	r.Get("/_uprename/feed", hub.ServeHTTP)
//
//	processor := upload.NewProcessor(relocator,
//	    upload.WithMiddleware(hub.Middleware("/upload")),
//	)
//
// Every message is a JSON Event holding the route and the batch summary
// returned by upload.Summarize.
package feed
