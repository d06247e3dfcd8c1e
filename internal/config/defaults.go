package config

// Default configuration values.
const (
	DefaultInputCodec   = "utf-8-sig"
	DefaultOutputCodec  = "cp1252"
	DefaultCSVDelimiter = ";"
	DefaultCSVPattern   = `.+\.csv$`
	DefaultKeepDB       = true
)

// EnvPrefix is the prefix of environment variables overriding base options.
const EnvPrefix = "SQLMERGER_"

// defaultValues seeds the koanf instance before the file is loaded.
func defaultValues() map[string]any {
	return map[string]any{
		"base.sqlite_template_name": "",
		"base.input_codec":          DefaultInputCodec,
		"base.output_codec":         DefaultOutputCodec,
		"base.disable_output":       false,
		"base.keep_db":              DefaultKeepDB,
		"base.kept_db_name":         "",
		"base.copy_csv_to_temp":     false,
		"base.csv_delimiter":        DefaultCSVDelimiter,
		"base.history_db":           "",
	}
}

// ApplyDefaults fills unset base options.
func (b *Base) ApplyDefaults() {
	if b.InputCodec == "" {
		b.InputCodec = DefaultInputCodec
	}
	if b.OutputCodec == "" {
		b.OutputCodec = DefaultOutputCodec
	}
	if b.CSVDelimiter == "" {
		b.CSVDelimiter = DefaultCSVDelimiter
	}
}
