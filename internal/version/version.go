package version

// Version is the build version, overridable via -ldflags at build time.
var Version = "dev"
