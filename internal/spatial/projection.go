package spatial

import "math"

// Projection converts WGS84 longitude/latitude into British National Grid
// easting/northing (OSGB36, EPSG:27700).
//
// The conversion is the standard three-step chain published by Ordnance
// Survey: geodetic to cartesian on the WGS84 ellipsoid, a seven-parameter
// Helmert transformation onto the Airy 1830 datum, then the transverse
// Mercator projection of the national grid. Without the OSTN correction grid
// this is accurate to a few meters, which is sufficient for the coarse
// bounding boxes kept in the search index.
type Projection struct{}

// NewProjection returns a stateless projection.
func NewProjection() *Projection {
	return &Projection{}
}

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84B = 6356752.314245
)

// Airy 1830 ellipsoid, the OSGB36 datum surface.
const (
	airyA = 6377563.396
	airyB = 6356256.909
)

// Helmert parameters, WGS84 to OSGB36. Rotations are arcseconds, scale is
// parts per million.
const (
	helmertTx = -446.448
	helmertTy = 125.157
	helmertTz = -542.060
	helmertRx = -0.1502
	helmertRy = -0.2470
	helmertRz = -0.8421
	helmertS  = 20.4894
)

// National grid transverse Mercator constants.
const (
	gridScaleF0    = 0.9996012717
	gridLat0       = 49.0 * math.Pi / 180
	gridLon0       = -2.0 * math.Pi / 180
	gridNorthing0  = -100000.0
	gridEasting0   = 400000.0
	arcsecToRadian = math.Pi / (180 * 3600)
)

// Wgs84ToOsgb36 projects a WGS84 point to national grid coordinates, returned
// as a Coordinates value with easting in Longitude and northing in Latitude.
func (p *Projection) Wgs84ToOsgb36(point Coordinates) Coordinates {
	lat := point.Latitude * math.Pi / 180
	lon := point.Longitude * math.Pi / 180

	x, y, z := geodeticToCartesian(lat, lon, wgs84A, wgs84B)
	x, y, z = helmert(x, y, z)
	lat, lon = cartesianToGeodetic(x, y, z, airyA, airyB)
	easting, northing := transverseMercator(lat, lon)

	return Coordinates{Longitude: easting, Latitude: northing}
}

// Wgs84BoxToOsgb36 reprojects a box by projecting its four corners and
// wrapping the results. Projected edges are not straight lines, so the result
// can be marginally tighter than the true reprojected extent; acceptable at
// index granularity.
func (p *Projection) Wgs84BoxToOsgb36(box BoundingBox) BoundingBox {
	corners := []Coordinates{
		p.Wgs84ToOsgb36(Coordinates{Longitude: box.West, Latitude: box.South}),
		p.Wgs84ToOsgb36(Coordinates{Longitude: box.West, Latitude: box.North}),
		p.Wgs84ToOsgb36(Coordinates{Longitude: box.East, Latitude: box.South}),
		p.Wgs84ToOsgb36(Coordinates{Longitude: box.East, Latitude: box.North}),
	}
	return Wrapping(corners)
}

func geodeticToCartesian(lat, lon, a, b float64) (x, y, z float64) {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	e2 := (a*a - b*b) / (a * a)
	nu := a / math.Sqrt(1-e2*sinLat*sinLat)

	x = nu * cosLat * cosLon
	y = nu * cosLat * sinLon
	z = nu * (1 - e2) * sinLat
	return x, y, z
}

func helmert(x, y, z float64) (float64, float64, float64) {
	rx := helmertRx * arcsecToRadian
	ry := helmertRy * arcsecToRadian
	rz := helmertRz * arcsecToRadian
	s := 1 + helmertS*1e-6

	x2 := helmertTx + s*x - rz*y + ry*z
	y2 := helmertTy + rz*x + s*y - rx*z
	z2 := helmertTz - ry*x + rx*y + s*z
	return x2, y2, z2
}

func cartesianToGeodetic(x, y, z, a, b float64) (lat, lon float64) {
	e2 := (a*a - b*b) / (a * a)
	p := math.Sqrt(x*x + y*y)

	lat = math.Atan2(z, p*(1-e2))
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		nu := a / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(z+e2*nu*sinLat, p)
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	lon = math.Atan2(y, x)
	return lat, lon
}

// transverseMercator applies the OSGB national grid projection to an Airy
// 1830 geodetic coordinate.
func transverseMercator(lat, lon float64) (easting, northing float64) {
	a, b := airyA, airyB
	e2 := (a*a - b*b) / (a * a)
	n := (a - b) / (a + b)

	sinLat, cosLat := math.Sincos(lat)
	tanLat := sinLat / cosLat

	nu := a * gridScaleF0 / math.Sqrt(1-e2*sinLat*sinLat)
	rho := a * gridScaleF0 * (1 - e2) / math.Pow(1-e2*sinLat*sinLat, 1.5)
	eta2 := nu/rho - 1

	m := meridionalArc(lat, n)

	one := m + gridNorthing0
	two := nu / 2 * sinLat * cosLat
	three := nu / 24 * sinLat * math.Pow(cosLat, 3) * (5 - tanLat*tanLat + 9*eta2)
	threeA := nu / 720 * sinLat * math.Pow(cosLat, 5) * (61 - 58*tanLat*tanLat + math.Pow(tanLat, 4))
	four := nu * cosLat
	five := nu / 6 * math.Pow(cosLat, 3) * (nu/rho - tanLat*tanLat)
	six := nu / 120 * math.Pow(cosLat, 5) *
		(5 - 18*tanLat*tanLat + math.Pow(tanLat, 4) + 14*eta2 - 58*tanLat*tanLat*eta2)

	dLon := lon - gridLon0

	northing = one + two*dLon*dLon + three*math.Pow(dLon, 4) + threeA*math.Pow(dLon, 6)
	easting = gridEasting0 + four*dLon + five*math.Pow(dLon, 3) + six*math.Pow(dLon, 5)
	return easting, northing
}

// meridionalArc is the distance along the meridian from the grid's true
// origin latitude, scaled by F0.
func meridionalArc(lat float64, n float64) float64 {
	b := airyB

	dLat := lat - gridLat0
	sLat := lat + gridLat0

	m := (1 + n + 5.0/4*n*n + 5.0/4*n*n*n) * dLat
	m -= (3*n + 3*n*n + 21.0/8*n*n*n) * math.Sin(dLat) * math.Cos(sLat)
	m += (15.0/8*n*n + 15.0/8*n*n*n) * math.Sin(2*dLat) * math.Cos(2*sLat)
	m -= 35.0 / 24 * n * n * n * math.Sin(3*dLat) * math.Cos(3*sLat)

	return b * gridScaleF0 * m
}
