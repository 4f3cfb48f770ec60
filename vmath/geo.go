// @focus: #projection { geo }
package vmath

import "math"

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	degToRad = math.Pi / 180
)

// GeoToVec3 maps a latitude/longitude pair in degrees onto a sphere of the given radius.
// The north pole maps to +Y and the texture seam (longitude ±180) lies in the XY plane,
// matching an equirectangular texture wrapped onto a Y-up sphere.
// Out-of-range coordinates are clamped before projection.
func GeoToVec3(lat, lng, radius float64) Vec3F {
	lat, lng, _ = ClampGeo(lat, lng)

	phi := (90 - lat) * degToRad
	theta := (lng + 180) * degToRad

	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)

	return Vec3F{
		X: -(radius * sinPhi * cosTheta),
		Y: radius * cosPhi,
		Z: radius * sinPhi * sinTheta,
	}
}

// ClampGeo clamps latitude to [-90, 90] and longitude to [-180, 180].
// clamped reports whether either input was outside its range.
func ClampGeo(lat, lng float64) (clat, clng float64, clamped bool) {
	clat = clampFloat(lat, MinLatitude, MaxLatitude)
	clng = clampFloat(lng, MinLongitude, MaxLongitude)
	return clat, clng, clat != lat || clng != lng
}

// Vec3ToGeo is the inverse of GeoToVec3 for points off the origin.
// Returns latitude, longitude in degrees and the radius.
func Vec3ToGeo(v Vec3F) (lat, lng, radius float64) {
	radius = V3FMag(v)
	if radius == 0 {
		return 0, 0, 0
	}
	phi := math.Acos(clampFloat(v.Y/radius, -1, 1))
	theta := math.Atan2(v.Z, -v.X)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	lat = 90 - phi/degToRad
	lng = theta/degToRad - 180
	return lat, lng, radius
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
