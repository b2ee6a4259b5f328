// internal/workers/reconciliation/ingest-listing/models.go
package ingestlisting

import "encoding/json"

type Input struct {
	Listing json.RawMessage `json:"listing"`
}

type Output struct {
	ListingID string `json:"listingId"`
	Created   bool   `json:"created"`
}
