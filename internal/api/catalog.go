package api

import "net/http"

// handleGetCatalog returns the server's effective tool table: the canonical
// tool names and every group expanded to the tools it grants. Clients use it
// to author manifests and base policies against the names resolution sees.
func (d *Dependencies) handleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := d.Engine.Catalog()

	groups := make(map[string][]string)
	for _, name := range cat.Groups() {
		groups[name] = cat.ExpandList([]string{name})
	}

	writeJSON(w, http.StatusOK, CatalogResp{
		Tools:  cat.Tools(),
		Groups: groups,
	})
}
