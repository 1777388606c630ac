package school

import "fmt"

type ListingState string

const (
	// ListingLoading is what a client renders while the query is outstanding.
	// The server never returns it.
	ListingLoading ListingState = "loading"
	ListingEmpty   ListingState = "empty"
	ListingReady   ListingState = "ready"
)

type Listing struct {
	State   ListingState `json:"state"`
	Schools []School     `json:"schools"`
	Count   int          `json:"count"`
}

func NewListing(schools []School) Listing {
	if schools == nil {
		schools = []School{}
	}
	state := ListingReady
	if len(schools) == 0 {
		state = ListingEmpty
	}
	return Listing{
		State:   state,
		Schools: schools,
		Count:   len(schools),
	}
}

func (l Listing) Headline() string {
	switch l.State {
	case ListingLoading:
		return "Loading schools..."
	case ListingEmpty:
		return "No schools found"
	default:
		return fmt.Sprintf("Discover schools in your area - %d schools found", l.Count)
	}
}
