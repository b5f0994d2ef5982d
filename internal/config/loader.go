package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fastfinder/fastfinder/internal/duration"
)

const envPrefix = "FASTFINDER_"

// legacyEnv maps the bare variable names used by older deployments.
var legacyEnv = map[string]string{
	"API_ID":      "tg.app-id",
	"API_HASH":    "tg.app-hash",
	"BOT_TOKEN":   "tg.bot-token",
	"BIN_CHANNEL": "tg.bin-channel",
	"PORT":        "server.port",
	"URL":         "server.base-url",
}

var durationType = reflect.TypeOf(time.Duration(0))

type ConfigLoader struct {
	flagKeys map[string]string
	envKeys  map[string]string
	defaults map[string]string
	validate *validator.Validate
	cfg      any
}

func NewConfigLoader() *ConfigLoader {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("config")
	})
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("pow2", isPowerOfTwo)
	return &ConfigLoader{
		flagKeys: make(map[string]string),
		envKeys:  make(map[string]string),
		defaults: make(map[string]string),
		validate: v,
	}
}

func StringToDurationHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}

		if t != durationType {
			return data, nil
		}

		str, ok := data.(string)
		if !ok {
			return data, nil
		}
		return duration.ParseDuration(str)
	}
}

// isPowerOfTwo validates integer fields such as chunk sizes that must stay
// aligned to upload.getFile block boundaries.
func isPowerOfTwo(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v > 0 && v&(v-1) == 0
}

// RegisterFlags adds one flag per leaf field of cfg, named after the dotted
// config key with dashes ("tg.stream.chunk-timeout" becomes
// "tg-stream-chunk-timeout").
func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet, prefix string, cfg any, skipConfigFlag bool) error {
	if !skipConfigFlag {
		flags.StringP("config", "c", "", "Config file path (default $HOME/.fastfinder/config.toml)")
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return cl.registerFlags(flags, prefix, t)
}

func (cl *ConfigLoader) registerFlags(flags *pflag.FlagSet, prefix string, t reflect.Type) error {
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("config")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		if field.Type.Kind() == reflect.Struct {
			if err := cl.registerFlags(flags, key, field.Type); err != nil {
				return err
			}
			continue
		}

		flagName := strings.ReplaceAll(key, ".", "-")
		def := field.Tag.Get("default")
		usage := field.Tag.Get("description")

		if err := addFlag(flags, field.Type, flagName, def, usage); err != nil {
			return errors.Wrapf(err, "flag %s", flagName)
		}

		cl.flagKeys[flagName] = key
		cl.envKeys[envPrefix+strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))] = key
		if def != "" {
			cl.defaults[key] = def
		}
	}
	return nil
}

func addFlag(flags *pflag.FlagSet, t reflect.Type, name, def, usage string) error {
	if t == durationType {
		d := time.Duration(0)
		if def != "" {
			var err error
			if d, err = duration.ParseDuration(def); err != nil {
				return err
			}
		}
		duration.DurationVar(flags, new(time.Duration), name, d, usage)
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		flags.String(name, def, usage)
	case reflect.Bool:
		v := false
		if def != "" {
			var err error
			if v, err = strconv.ParseBool(def); err != nil {
				return err
			}
		}
		flags.Bool(name, v, usage)
	case reflect.Int, reflect.Int64:
		v := int64(0)
		if def != "" {
			var err error
			if v, err = strconv.ParseInt(def, 10, 64); err != nil {
				return err
			}
		}
		if t.Kind() == reflect.Int {
			flags.Int(name, int(v), usage)
		} else {
			flags.Int64(name, v, usage)
		}
	case reflect.Slice:
		var v []string
		if def != "" {
			v = strings.Split(def, ",")
		}
		flags.StringSlice(name, v, usage)
	default:
		return errors.Errorf("unsupported type %s", t)
	}
	return nil
}

// Load merges defaults, the config file, .env, the environment and changed
// flags (in increasing priority) into cfg.
func (cl *ConfigLoader) Load(cmd *cobra.Command, cfg any) error {
	k := koanf.New(".")

	for key, value := range cl.defaults {
		if err := k.Set(key, value); err != nil {
			return errors.Wrapf(err, "default %s", key)
		}
	}

	cfgFile := ""
	if f := cmd.Flags().Lookup("config"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile == "" {
		cfgFile = findConfigFile()
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), parserFor(cfgFile)); err != nil {
			return errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return errors.Wrap(err, "load legacy env")
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return cl.envKeys[s]
	}), nil); err != nil {
		return errors.Wrap(err, "load env")
	}

	var flagErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := cl.flagKeys[f.Name]
		if !ok {
			return
		}
		value := f.Value.String()
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if err := k.Set(key, sv.GetSlice()); err != nil {
				flagErr = err
			}
			return
		}
		if err := k.Set(key, value); err != nil {
			flagErr = err
		}
	})
	if flagErr != nil {
		return errors.Wrap(flagErr, "apply flags")
	}

	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "config",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				StringToDurationHook(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           cfg,
		},
	})
	if err != nil {
		return errors.Wrap(err, "decode config")
	}

	cl.cfg = cfg
	return nil
}

// Validate checks the last loaded config.
func (cl *ConfigLoader) Validate() error {
	if cl.cfg == nil {
		return errors.New("config is not loaded")
	}

	err := cl.validate.Struct(cl.cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if fe.Tag() == "required" {
			missing = append(missing, key)
		} else {
			invalid = append(invalid, key+" ("+fe.Tag()+")")
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("required configuration values not set: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
}

func findConfigFile() string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".fastfinder", "config.toml"))
	}
	candidates = append(candidates, "config.toml", "config.yaml", "config.yml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}
