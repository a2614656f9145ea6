package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. GENOBATCH_OUTPUT_FORMAT
const EnvPrefix = "GENOBATCH"

// FlagKeys maps command-line flag names to configuration keys
var FlagKeys = map[string]string{
	"input":             "input",
	"format":            "format",
	"index":             "index",
	"gzi":               "gzi",
	"fields":            "fields",
	"attribute":         "attributes",
	"infer-attributes":  "infer_attributes",
	"scan-rows":         "scan_rows",
	"batch-size":        "batch_size",
	"limit":             "limit",
	"region":            "regions",
	"output":            "output.path",
	"output-format":     "output.format",
	"compression":       "output.compression",
	"compression-level": "output.compression_level",
	"parquet-codec":     "output.parquet_codec",
	"avro-codec":        "output.avro_codec",
	"dsn":               "output.dsn",
	"table":             "output.table",
	"create-table":      "output.create_table",
	"log-level":         "logging.level",
	"log-encoding":      "logging.encoding",
	"metrics":           "observability.enable_metrics",
	"metrics-addr":      "observability.metrics_addr",
	"tracing":           "observability.enable_tracing",
	"s3-region":         "storage.s3_region",
	"s3-endpoint":       "storage.s3_endpoint",
	"gcs-credentials":   "storage.gcs_credentials_file",
	"remote-block-size": "storage.block_size",
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := readWithEnv(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", filePath)
	}
	return nil
}

// LoadScanConfig reads a ScanConfig from YAML on top of Default
func LoadScanConfig(filePath string) (*ScanConfig, error) {
	cfg := Default()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").WithDetail("path", filePath)
	}
	return nil
}

// LoadWithViper layers the configuration sources. From lowest to highest
// precedence: Default, the YAML file at filePath (optional), GENOBATCH_*
// environment variables, then flags that were set explicitly.
func LoadWithViper(filePath string, flags *pflag.FlagSet) (*ScanConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to load defaults")
	}

	if filePath != "" {
		data, err := readWithEnv(filePath)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", filePath)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys omitted from the defaults document still need env lookups
	for _, key := range []string{"fields", "attributes", "regions"} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to bind environment")
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := FlagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, errors.Wrap(bindErr, errors.ErrorTypeInternal, "failed to bind flags")
		}
	}

	cfg := &ScanConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	return cfg, nil
}

func readWithEnv(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").WithDetail("path", filePath)
	}
	return []byte(substituteEnvVars(string(data))), nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
