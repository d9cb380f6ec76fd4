package api

import (
	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/recordstore"
)

// CreateBlockRequest is the request body for creating a block. Id is
// optional; one is generated when absent.
type CreateBlockRequest = block.Block

// UpdateBlockRequest carries the fields to replace on an existing block.
type UpdateBlockRequest = block.Patch

// SemanticQueryRequest is the request body for POST /query/semantic.
type SemanticQueryRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k,omitempty"`
}

// BlockListResponse wraps block listings.
type BlockListResponse struct {
	Blocks []*block.Block `json:"blocks"`
	Total  int            `json:"total"`
}

// LinkListResponse wraps link query results.
type LinkListResponse struct {
	Links []block.Link `json:"links"`
}

// ProofListResponse wraps the audit trail of a block.
type ProofListResponse struct {
	Proofs []recordstore.ProofRecord `json:"proofs"`
}

// SchemaListResponse wraps the registered schema versions.
type SchemaListResponse struct {
	Schemas []recordstore.SchemaListing `json:"schemas"`
}

// ReindexResponse reports how many blocks a reindex touched.
type ReindexResponse struct {
	Reindexed int `json:"reindexed"`
}
