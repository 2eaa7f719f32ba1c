package main

import (
	"net/http"

	"cutplan/internal/audit"
	"cutplan/internal/models"
)

// handleFulfillmentReport exports the orders of one status (or all three
// board columns) as CSV or Excel. Rows come from the remote service pages,
// one row per order item, so the report matches what the board shows.
func handleFulfillmentReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	statuses := colsyncStatuses()
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = []string{s}
	}

	headers := []string{"Order Number", "Customer", "Product", "Status", "Assigned To", "Quantity To Cut", "Unit", "Quantity"}
	var data [][]string
	for _, status := range statuses {
		cursor := ""
		for {
			page, err := orders.ListOrders(r.Context(), status, cursor)
			if err != nil {
				jsonErr(w, remoteMessage(err), remoteStatus(err))
				return
			}
			for _, o := range page.Orders {
				data = append(data, reportRows(o)...)
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}

	audit.Log(db, hub, currentUsername(r), audit.ActionExport, "fulfillment_report", "",
		"exported fulfillment report as "+format)

	if format == "xlsx" {
		exportExcel(w, "Fulfillment", headers, data)
	} else {
		exportCSV(w, "fulfillment.csv", headers, data)
	}
}

// reportRows flattens one order into report rows. Orders without items
// still get a single row so deferred allocations show up.
func reportRows(o models.CuttingOrder) [][]string {
	target := ""
	if o.TargetQuantity != nil {
		target = o.TargetQuantity.StringFixed(2)
	}
	base := []string{o.OrderNumber, o.Customer, o.Product.Label, o.Status, o.AssignedTo.Label, target}
	if len(o.Items) == 0 {
		return [][]string{append(base, "", "")}
	}
	rows := make([][]string, 0, len(o.Items))
	for _, item := range o.Items {
		row := make([]string, 0, len(base)+2)
		row = append(row, base...)
		row = append(row, item.UnitID, item.Quantity.StringFixed(2))
		rows = append(rows, row)
	}
	return rows
}
