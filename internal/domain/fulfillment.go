package domain

type FulfillmentMethod string

const (
	FulfillmentDelivery FulfillmentMethod = "delivery"
	FulfillmentPickup   FulfillmentMethod = "pickup"
)

// Fulfillment is the tagged form of the flat nullable columns: depending on
// Method only one of the two field groups is meaningful. Validate enforces
// that before anything touches storage.
type Fulfillment struct {
	Method          FulfillmentMethod `json:"method"`
	ShippingAddress string            `json:"shipping_address,omitempty"`
	City            string            `json:"city,omitempty"`
	State           string            `json:"state,omitempty"`
	PickupLocation  string            `json:"pickup_location,omitempty"`
}

func DeliveryTo(address, city, state string) Fulfillment {
	return Fulfillment{Method: FulfillmentDelivery, ShippingAddress: address, City: city, State: state}
}

func PickupAt(location string) Fulfillment {
	return Fulfillment{Method: FulfillmentPickup, PickupLocation: location}
}

func (f Fulfillment) Validate() error {
	fields := map[string]string{}
	switch f.Method {
	case FulfillmentDelivery:
		if f.ShippingAddress == "" {
			fields["shipping_address"] = "required for delivery"
		}
		if f.City == "" {
			fields["city"] = "required for delivery"
		}
		if f.State == "" {
			fields["state"] = "required for delivery"
		}
	case FulfillmentPickup:
		if f.PickupLocation == "" {
			fields["pickup_location"] = "required for pickup"
		}
	default:
		fields["fulfillment_method"] = "must be delivery or pickup"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

func (o *Order) Fulfillment() Fulfillment {
	return Fulfillment{
		Method:          o.FulfillmentMethod,
		ShippingAddress: o.ShippingAddress,
		City:            o.City,
		State:           o.State,
		PickupLocation:  o.PickupLocation,
	}
}

func (o *Order) SetFulfillment(f Fulfillment) {
	o.FulfillmentMethod = f.Method
	o.ShippingAddress = f.ShippingAddress
	o.City = f.City
	o.State = f.State
	o.PickupLocation = f.PickupLocation
}

func (p *CustomerPreOrder) Fulfillment() Fulfillment {
	return Fulfillment{
		Method:          p.FulfillmentMethod,
		ShippingAddress: p.ShippingAddress,
		City:            p.City,
		State:           p.State,
		PickupLocation:  p.PickupLocation,
	}
}

func (p *CustomerPreOrder) SetFulfillment(f Fulfillment) {
	p.FulfillmentMethod = f.Method
	p.ShippingAddress = f.ShippingAddress
	p.City = f.City
	p.State = f.State
	p.PickupLocation = f.PickupLocation
}
