// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// Units of the exposure factors as shown on plots and reports
const (
	ExposureUnit  = "K*s"
	TimeAboveUnit = "s"
)
