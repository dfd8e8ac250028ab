package version

// Version is overridden at build time with -ldflags "-X asrgen/version.Version=...".
var Version = "dev"
