package checkout

// ComputeTotal returns the amount due for a party on a tour. Pricing is flat
// per seat with no fees or discounts applied at this stage.
func ComputeTotal(pricePerPerson float64, partySize uint) float64 {
	return pricePerPerson * float64(partySize)
}
