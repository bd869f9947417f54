package warden

// Version is the release of this build, set with
// -ldflags "-X github.com/aretw0/warden.Version=v1.2.3".
var Version = "dev"
