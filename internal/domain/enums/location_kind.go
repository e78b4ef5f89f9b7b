package enums

type LocationKind string

const (
	LocationKindNone        LocationKind = ""
	LocationKindCoordinates LocationKind = "coordinates"
	LocationKindAddress     LocationKind = "address"
)
