// Package constants provides shared constants for the lineup-optimizer application.
package constants

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON prints the result document as served by the API
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultRosterFile is the roster read when the configuration names none
	DefaultRosterFile = "roster.yaml"

	// EnvPrefix prefixes environment overrides, e.g. LINEUP_OPTIMIZER_THREADS
	EnvPrefix = "LINEUP"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultMaxConcurrentRuns bounds how many optimizations the server runs at once
	DefaultMaxConcurrentRuns = 2

	// DefaultResultDirectory is where the file store keeps results
	DefaultResultDirectory = "results"
)

// Calibration defaults
const (
	// DefaultCalibrationGames is the number of games timed per calibration sample
	DefaultCalibrationGames = 2000

	// DefaultCalibrationDegree is the polynomial degree of the fitted cost model
	DefaultCalibrationDegree = 2
)
