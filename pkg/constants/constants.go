// Package constants provides shared constants for the premium engine.
package constants

// DateLayout is the format expected for contract dates in requests and is
// also the output date format.
const DateLayout = "2006-01-02"

// Proration constants
const (
	// MonthsPerYear is the number of months covered by a full annual premium
	MonthsPerYear = 12

	// DaysPerMonth is the day count used to convert day-based contract
	// durations to months
	DaysPerMonth = 30

	// FullYearPercentage is the proration percentage of a full year
	FullYearPercentage = 100

	// DefaultDurationMonths is the duration applied when a contract has none
	DefaultDurationMonths = 12
)

// Periodicity constants
const (
	// PeriodicityMonth expresses a contract duration in months
	PeriodicityMonth = "month"

	// PeriodicityDay expresses a contract duration in days
	PeriodicityDay = "day"

	// PeriodicityYear expresses a contract duration in years
	PeriodicityYear = "year"
)

// Quote constants
const (
	// Currency is the currency of every amount produced by the engine
	Currency = "XOF"

	// QuoteValidityDays is how long an issued quote stays valid
	QuoteValidityDays = 7

	// ReferencePrefix prefixes every quote reference
	ReferencePrefix = "SIM"

	// ReferenceLength is the total length of a quote reference
	ReferenceLength = 16
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default application configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultTariffFile is the default tariff document file name
	DefaultTariffFile = "tariff.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides of the application config
	EnvPrefix = "PREMIUM"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxRequestSizeBytes is the default maximum quote request body size (64 KB)
	DefaultMaxRequestSizeBytes int64 = 64 * 1024

	// APIKeyHeader carries the caller's API key
	APIKeyHeader = "X-API-Key"
)

// Vehicle constants
const (
	// FuelDiesel is the fuel type that triggers horsepower conversion
	FuelDiesel = "diesel"

	// HeavyVehicleWeightKg is the weight above which a vehicle counts as heavy
	HeavyVehicleWeightKg = 3500
)
