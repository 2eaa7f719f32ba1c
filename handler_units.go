package main

import "net/http"

// handleListUnits proxies the unit catalog for a product, already
// normalized by the boundary client.
func handleListUnits(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		jsonErr(w, "product_id is required", 400)
		return
	}
	catalog, err := units.ListUnits(r.Context(), productID)
	if err != nil {
		jsonErr(w, remoteMessage(err), remoteStatus(err))
		return
	}
	jsonResp(w, catalog)
}
