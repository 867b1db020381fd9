package version

// Version is the current version of warpchat.
// Override it at build time with:
//   go build -ldflags="-X 'github.com/BioHazard786/warpchat/internal/version.Version=v1.0.0'"
var Version = "dev"
