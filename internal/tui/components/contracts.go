package components

// Scrollable captures the common scrolling operations supported by viewports.
type Scrollable interface {
	ScrollUp(lines int)
	ScrollDown(lines int)
	HalfPageUp()
	HalfPageDown()
}
