package console

import (
	"os"
	"runtime"
)

const (
	AppName     = "Intellido"
	Description = "Revolutionizing Productivity: Your AI-Powered To-Do Companion! 🚀"
)

// Info describes the running application and host for the banner
type Info struct {
	AppName     string
	Description string
	Version     string
	Host        string
	OS          string
	Arch        string
	CPUs        int
	GoVersion   string
}

// SystemInfo collects banner details for the current process
func SystemInfo(version string) Info {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Info{
		AppName:     AppName,
		Description: Description,
		Version:     version,
		Host:        host,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		CPUs:        runtime.NumCPU(),
		GoVersion:   runtime.Version(),
	}
}
