package entities

// PagePolicy controls what the session does when the site opens a new page.
type PagePolicy string

const (
	// PolicyRedirect navigates the current active page to the new page's URL
	// and closes the new page, keeping exactly one live page.
	PolicyRedirect PagePolicy = "redirect"
	// PolicySwitch adopts the new page as the active page once it resolves a
	// non-blank URL; otherwise the page is closed.
	PolicySwitch PagePolicy = "switch"
	// PolicyIgnore closes every new page immediately.
	PolicyIgnore PagePolicy = "ignore"
)
