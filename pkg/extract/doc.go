// Package extract implements the extraction core: sequential cursor
// pagination over the deals list endpoint, normalization of raw deal records
// into flat rows, and a lazy pull-based stream composing the two.
//
// Control flow is a single logical thread: the consumer pulls rows from a
// Stream, the Stream pulls pages from a PageIterator, and the iterator issues
// requests through the hubspot client. There are no concurrent page fetches
// and no parallel transforms; the only suspension points are the client's
// throttle sleep and 429 backoff.
//
// Example usage:
//
//	client, _ := hubspot.New(hubspot.DefaultConfig(token))
//	stream, err := extract.NewStream(ctx, client, extract.StreamConfig{
//	    TenantID: "acme",
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    row := stream.Row()
//	    ...
//	}
//	return stream.Err()
package extract
