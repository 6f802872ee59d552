package common

// PackageName identifies this module in metrics and logs.
const PackageName = "content-pipeline"

// Version is set at build time via -ldflags.
var Version = "dev"
