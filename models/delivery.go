package models

// Delivery is a package going from a pickup address to a dropoff address.
type Delivery struct {
	ID      string   `json:"id"`
	Pickup  Location `json:"pickup"`
	Dropoff Location `json:"dropoff"`
}

func NewDelivery(pickup, dropoff Location) *Delivery {
	return &Delivery{Pickup: pickup, Dropoff: dropoff}
}

func (d *Delivery) RequesterID() string { return d.ID }
func (d *Delivery) Kind() RequesterKind { return RequesterDelivery }
func (d *Delivery) PickupLocation() Location { return d.Pickup }
func (d *Delivery) DropoffLocation() Location { return d.Dropoff }
