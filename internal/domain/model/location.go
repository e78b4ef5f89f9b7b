package model

import (
	"strings"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
)

// Location holds either a coordinate pair or a free-text address, never both.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address"`
	HasGeo  bool    `json:"has_geo"`
}

func Coordinates(lat, lon float64) Location {
	return Location{Lat: lat, Lon: lon, HasGeo: true}
}

func Address(text string) Location {
	return Location{Address: strings.TrimSpace(text)}
}

func (l Location) Kind() enums.LocationKind {
	if l.HasGeo {
		return enums.LocationKindCoordinates
	}
	if strings.TrimSpace(l.Address) != "" {
		return enums.LocationKindAddress
	}
	return enums.LocationKindNone
}

func (l Location) IsSet() bool {
	return l.Kind() != enums.LocationKindNone
}
