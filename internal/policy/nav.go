package policy

// NavItem is an entry of the app's main navigation.
type NavItem struct {
	ID    string
	Label string
}

// NavItems lists the navigation in display order.
var NavItems = []NavItem{
	{ID: "home", Label: "Home"},
	{ID: "facilities", Label: "Courts"},
	{ID: "players", Label: "Players"},
	{ID: "groups", Label: "Groups"},
	{ID: "calendar", Label: "Games"},
	{ID: "messages", Label: "Chat"},
	{ID: "profile", Label: "Profile"},
	{ID: "admin", Label: "Admin"},
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package nav_policy

default decision = "locked"

public_items = {"home", "facilities", "players", "groups"}
member_items = {"calendar", "messages", "profile"}

decision = "allow" {
	public_items[input.item]
}

decision = "allow" {
	member_items[input.item]
	input.authenticated
}

decision = "allow" {
	input.item == "admin"
	input.authenticated
	input.role == "admin"
}

decision = "hidden" {
	input.item == "admin"
	not is_admin
}

is_admin {
	input.authenticated
	input.role == "admin"
}
`
