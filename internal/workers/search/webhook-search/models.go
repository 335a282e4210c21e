// internal/workers/search/webhook-search/models.go
package webhooksearch

import (
	"webhook-search/internal/normalize"
	"webhook-search/internal/render"
)

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	SearchView  *normalize.View   `json:"searchView"`
	SearchHTML  *render.Fragments `json:"searchHtml"`
	SearchState render.State      `json:"searchState"`
	Cached      bool              `json:"searchCached"`
}
