package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters 是haversine计算使用的地球平均半径（米）。
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate 表示经纬度超出合法范围。
var ErrInvalidCoordinate = errors.New("非法的经纬度坐标")

// Point 表示一个WGS84坐标点。
// 零值(0, 0)被视为“未设置”哨兵，构造时不参与范围校验。
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint 构造并校验一个坐标点。
// 纬度必须在[-90, 90]之间，经度必须在[-180, 180]之间。
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lat: lat, Lon: lon}
	if p.IsZero() {
		return p, nil
	}
	if lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("%w: 纬度 %v 超出 [-90, 90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("%w: 经度 %v 超出 [-180, 180]", ErrInvalidCoordinate, lon)
	}
	return p, nil
}

// IsZero 报告该点是否为未设置哨兵。
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// Distance 计算两点间的大圆距离（haversine公式，单位米）。
// 满足对称性 Distance(a,b) == Distance(b,a)，同点距离为0。
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	deltaLat := toRadians(b.Lat - a.Lat)
	deltaLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	// 浮点误差可能让h略微越过1，使Sqrt(1-h)产生NaN，必须夹紧
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Bearing 计算从from到to的初始方位角，单位度，范围[0, 360)。
func Bearing(from, to Point) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLon := toRadians(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
