package api

import (
	"time"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/search"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	Query      query.Request   `json:"query"`
	Expression string          `json:"expression"`
	NRes       int             `json:"nres"`
	Page       int             `json:"page"`
	Pages      int             `json:"pages"`
	PerPage    int             `json:"per_page"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	Results    []search.Record `json:"results"`
}

type DirsResponse struct {
	Entries []catalog.Entry `json:"entries"`
	Tree    []string        `json:"tree"`
	Count   int             `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
}
