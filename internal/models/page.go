package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

// Page is an offset based window over a result set.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Clamp fills in defaults and bounds the window.
func (p Page) Clamp(defaultLimit, maxLimit int) Page {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxPageLimit
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Fill sets the default limit on an unset window and leaves any upper bound to
// the caller.
func (p Page) Fill(defaultLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
