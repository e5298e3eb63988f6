package version

// Version is the cafe CLI version, set at release time with
//
//	go build -ldflags="-X 'github.com/BioHazard786/cafe/internal/version.Version=v1.0.0'"
var Version = "dev"
