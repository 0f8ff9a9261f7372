package lib

import (
	"fmt"
	"runtime"
)

// Version and Gitref are set at build time via -ldflags.
var (
	Version = "0.1.0-dev"
	Gitref  = ""
)

// PrintVersion prints the specified app version to STDOUT
func PrintVersion(appName string, version string, gitref string) {
	fmt.Println(VersionString(appName, version, gitref))
}

// VersionString formats the app version the way PrintVersion prints it.
func VersionString(appName string, version string, gitref string) string {
	if gitref != "" {
		return fmt.Sprintf("%v v%v git:%v %v", appName, version, gitref, runtime.Version())
	}
	return fmt.Sprintf("%v v%v %v", appName, version, runtime.Version())
}
