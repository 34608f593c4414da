package hub

import (
	"fmt"
	"math"

	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/update"
)

// Helper functions for templates

func isIdentified(s display.StationRow) bool {
	return s.Identified != nil && *s.Identified
}

func getModeClass(v display.View) string {
	if v.InsufficientCoverage {
		return "bg-orange-100 text-orange-800"
	}
	switch v.Mode {
	case display.LocationAcquired:
		return "bg-green-100 text-green-800"
	case display.LocationLost:
		return "bg-red-100 text-red-800"
	case display.SearchingFromOrigin:
		return "bg-blue-100 text-blue-800"
	default:
		return "bg-gray-100 text-gray-800"
	}
}

func formatPosition(label string, c *update.Coordinate) string {
	if c == nil {
		return label + ": -"
	}
	return fmt.Sprintf("%s: %s %s", label, degreesToDMS(c.Lat, true), degreesToDMS(c.Lon, false))
}

func degreesToDMS(decimalDegrees float64, isLatitude bool) string {
	absolute := math.Abs(decimalDegrees)

	degrees := int(absolute)
	minutesNotTruncated := (absolute - float64(degrees)) * 60
	minutes := int(minutesNotTruncated)
	seconds := (minutesNotTruncated - float64(minutes)) * 60

	var direction string
	if isLatitude {
		if decimalDegrees >= 0 {
			direction = "N"
		} else {
			direction = "S"
		}
	} else {
		if decimalDegrees >= 0 {
			direction = "E"
		} else {
			direction = "W"
		}
	}

	return fmt.Sprintf("%d°%d'%.2f\"%s", degrees, minutes, seconds, direction)
}
