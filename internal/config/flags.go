package config

import "github.com/spf13/pflag"

// RegisterIngestFlags adds the run selection flags.
func RegisterIngestFlags(fs *pflag.FlagSet) {
	fs.String("make", DefaultMake, "vehicle make to ingest")
	fs.String("start", DefaultStart, "window start date (YYYY-MM-DD, inclusive)")
	fs.String("end", DefaultEnd, "window end date (YYYY-MM-DD, inclusive)")
	fs.String("model", "", "vehicle model; enables complaint ingestion together with --model-year")
	fs.String("model-year", "", "vehicle model year")
	fs.Int("page-size", 0, "socrata page size")
	fs.String("app-token", "", "socrata app token")
	fs.String("complaints-source", DefaultComplaintsSource, "complaint source: nhtsa or socrata")
}

// RegisterStoreFlags adds the raw layer connection flags.
func RegisterStoreFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "raw layer database url (postgres:// or sqlite path)")
	fs.Int("chunk-size", 0, "rows per insert statement")
}

// RegisterServerFlags adds the listen address flags.
func RegisterServerFlags(fs *pflag.FlagSet) {
	fs.String("addr", DefaultAddr, "http listen address")
	fs.String("grpc-addr", "", "grpc health listen address (disabled when empty)")
}

// RegisterLogFlags adds the logging flags.
func RegisterLogFlags(fs *pflag.FlagSet) {
	fs.String("log-level", DefaultLogLevel, "log level")
	fs.String("log-format", DefaultLogFormat, "log format: text or json")
}
