// internal/application/notification/links.go
package notification

import "strings"

// ResolveLink rewrites a stored link for the page at currentPath.
// Stored links are relative to the site root ("pages/admin.html?orderId=1",
// "home.html"); pages under /pages/ need them re-rooted.
func ResolveLink(link, currentPath string) string {
	l := strings.TrimSpace(link)
	if l == "" || l == "null" || l == "undefined" {
		return ""
	}
	if !strings.Contains(currentPath, "/pages/") {
		return l
	}
	if strings.HasPrefix(l, "pages/") {
		return strings.TrimPrefix(l, "pages/")
	}
	if !strings.Contains(l, "/") {
		return "../" + l
	}
	return l
}

func AdminOrderLink(orderID string) string {
	return "pages/admin.html?orderId=" + orderID
}

func AdminTicketLink(ticketID string) string {
	return "pages/admin-cs.html?ticketId=" + ticketID
}

const (
	OrdersPageLink  = "pages/orders.html"
	TicketsPageLink = "pages/my-tickets.html"
	PilePageLink    = "pages/pile.html"
)
