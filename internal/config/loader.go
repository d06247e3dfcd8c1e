package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps CLI flag names to the base option they override.
var flagKeys = map[string]string{
	"template":     "base.sqlite_template_name",
	"input-codec":  "base.input_codec",
	"output-codec": "base.output_codec",
	"no-output":    "base.disable_output",
	"keep-db":      "base.keep_db",
	"copy-csv":     "base.copy_csv_to_temp",
	"delimiter":    "base.csv_delimiter",
	"history":      "base.history_db",
}

type rawConfig struct {
	Base      Base          `koanf:"base"`
	Tables    []rawTable    `koanf:"sql_tables"`
	Variables []rawVariable `koanf:"sql_variables"`
	Commands  []rawCommand  `koanf:"sql_commands"`
}

type rawTable struct {
	ID              string   `koanf:"table_id"`
	Type            string   `koanf:"type"`
	SQLName         string   `koanf:"sql_name"`
	ExcelName       string   `koanf:"excel_name"`
	CSVName         string   `koanf:"csv_name"`
	CSVSource       string   `koanf:"csv_source"`
	CSVPatternRegex string   `koanf:"csv_pattern_regex"`
	CSVEncoding     string   `koanf:"csv_encoding"`
	CSVMissingOK    bool     `koanf:"csv_missing_ok"`
	ColSource       string   `koanf:"col_source"`
	RequiredCols    []string `koanf:"required_cols"`
}

type rawVariable struct {
	SQLName     string `koanf:"sql_name"`
	UILabel     string `koanf:"ui_label"`
	SQLTable    string `koanf:"sql_table"`
	SQLSetCol   string `koanf:"sql_set_col"`
	SQLWhereCol string `koanf:"sql_where_col"`
	Level       string `koanf:"level"`
	Default     string `koanf:"default"`
	RegexCtrl   string `koanf:"regex_ctrl"`
	Optional    bool   `koanf:"optional"`
}

type rawCommand struct {
	Phase  string `koanf:"phase"`
	SQL    string `koanf:"sql"`
	Commit bool   `koanf:"commit"`
}

// parserFor picks the koanf parser from the file extension.
// .json and .cfg files are JSON, .yaml and .yml are YAML.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".cfg", "":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// envKey maps an environment variable name to a configuration key. A double
// underscore separates nesting levels; after BASE a single one does too.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if strings.Contains(key, "__") {
		return strings.ReplaceAll(key, "__", ".")
	}
	if opt, ok := strings.CutPrefix(key, "base_"); ok {
		return "base." + opt
	}
	return key
}

// Load reads a run configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Only base options can be overridden by env vars and flags.
func Load(path string, flags *pflag.FlagSet) (*RunConfig, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path == "" {
		return nil, &Error{Section: "file", Index: -1, Msg: "no configuration file given"}
	}
	parser, err := parserFor(path)
	if err != nil {
		return nil, &Error{Section: "file", Index: -1, Msg: err.Error()}
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, &Error{Section: "file", Index: -1, Msg: fmt.Sprintf("error reading %s: %v", path, err)}
	}

	// 3. Environment variables (SQLMERGER_ prefix)
	// Transform: SQLMERGER_BASE_KEEP_DB and SQLMERGER_BASE__KEEP_DB -> base.keep_db
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var raw rawConfig
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, &Error{Section: "file", Index: -1, Msg: fmt.Sprintf("unable to decode %s: %v", path, err)}
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	// A template given on the command line is relative to the working
	// directory, one from the file is relative to the file.
	if flags != nil && flags.Changed("template") {
		if v, _ := flags.GetString("template"); v != "" {
			cfg.Base.TemplateName, _ = filepath.Abs(v)
		}
	} else {
		cfg.Base.TemplateName = resolveRelative(cfg.Base.TemplateName, filepath.Dir(path))
	}
	return cfg, nil
}

// resolveRelative resolves path against baseDir when it is relative.
func resolveRelative(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
