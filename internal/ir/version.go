package ir

// Version constants for the graph encoding and the rewrite engine.
const (
	// IRVersion is the graph encoding version.
	IRVersion = "1"

	// EngineVersion is the seanode engine version.
	EngineVersion = "0.1.0"
)
