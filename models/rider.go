package models

type Rider struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Pickup      Location `json:"pickup"`
	Destination Location `json:"destination"`
}

func NewRider(name string, pickup, destination Location) *Rider {
	return &Rider{Name: name, Pickup: pickup, Destination: destination}
}

func (r *Rider) RequesterID() string { return r.ID }
func (r *Rider) Kind() RequesterKind { return RequesterRider }
func (r *Rider) PickupLocation() Location { return r.Pickup }
func (r *Rider) DropoffLocation() Location { return r.Destination }
