package idealista

import "strconv"

// Point is a latitude/longitude pair.
type Point struct {
	Latitude  float64
	Longitude float64
}

// String renders the point as "latitude,longitude", the form the search API expects for center.
func (p Point) String() string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}
