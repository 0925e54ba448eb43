package ir

// Version constants for the driver encoding and compiler.
const (
	// IRVersion is the driver encoding version.
	IRVersion = "1"

	// CompilerVersion is the morphc compiler version.
	CompilerVersion = "0.1.0"
)
