package main

// Criteria is the static acceptance filter applied to every fetched listing.
type Criteria struct {
	Rooms    int
	MaxPrice int
}

// Accept reports whether a listing matches the criteria. A listing with a
// missing room count or price (zero value after normalization) never
// matches; that is an expected rejection, not an error.
func (c Criteria) Accept(l Listing) bool {
	if l.Rooms <= 0 || l.Price <= 0 {
		return false
	}
	return l.Rooms == c.Rooms && l.Price <= c.MaxPrice
}
