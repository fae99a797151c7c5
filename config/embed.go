package config

import _ "embed"

// Default holds the embedded baseline configuration. It is always read
// first; an on-disk conf.yaml and environment variables merge over it.
//
//go:embed conf.yaml
var Default []byte
