// Package config implements the engine's persisted configuration file,
// config.build: a human-editable, diffable YAML document layered beneath
// CLI config.var=value overrides.
//
// The file is read and written through github.com/spf13/viper; lookups
// check the CLI overrides first, then the file. No private binary format
// is required to read or edit it — config.build stays plain YAML end to
// end.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/kiln-build/kiln/internal/vars"
)

// Build is the config.build file for one out_root: a viper instance
// scoped to that directory plus the CLI-supplied config.var=value
// overrides, which always win over the file.
type Build struct {
	v         *viper.Viper
	cliValues map[string]string
}

// Load reads <outRoot>/.kiln/config.build if present (absence is not an
// error — a fresh configuration simply starts empty) and layers cliArgs
// ("config.var=value" strings, as passed on the kiln command line) on
// top.
func Load(outRoot string, cliArgs []string) (*Build, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(outRoot + "/.kiln/config.build")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config.build: %w", err)
		}
	}

	cli := make(map[string]string, len(cliArgs))
	for _, arg := range cliArgs {
		k, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config argument %q: want name=value", arg)
		}
		cli[k] = val
	}
	return &Build{v: v, cliValues: cli}, nil
}

// Get returns the raw string for name, checking CLI overrides first,
// then the persisted file. ok is false if name is set nowhere.
func (b *Build) Get(name string) (string, bool) {
	if v, ok := b.cliValues[name]; ok {
		return v, true
	}
	if b.v.IsSet(name) {
		return b.v.GetString(name), true
	}
	return "", false
}

// GetValue resolves name to a typed vars.Value according to kind.
func (b *Build) GetValue(name string, kind vars.Kind) (vars.Value, bool, error) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, false, nil
	}
	switch kind {
	case vars.KindBool:
		bv, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, true, err
		}
		return vars.Bool(bv), true, nil
	case vars.KindUInt64:
		iv, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, true, err
		}
		return vars.UInt64(iv), true, nil
	case vars.KindInt64:
		iv, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, true, err
		}
		return vars.Int64(iv), true, nil
	case vars.KindPath:
		return vars.Path(raw), true, nil
	case vars.KindDirPath, vars.KindAbsDirPath:
		return vars.DirPath(raw), true, nil
	default:
		return vars.String(raw), true, nil
	}
}

// Set persists name=value into the in-memory config (callers are
// responsible for calling WriteTo to flush it to disk); used by the
// "configure" meta-operation to record the config.var=value arguments it
// was given.
func (b *Build) Set(name, value string) {
	b.v.Set(name, value)
}

// WriteTo writes the current configuration to config.build inside the
// directory outRoot.
func (b *Build) WriteTo(outRoot string) error {
	return b.v.WriteConfigAs(outRoot + "/config.build")
}

// AllSettings returns every name currently set, file and CLI combined,
// for the "info" meta-operation's diagnostic dump.
func (b *Build) AllSettings() map[string]any {
	out := b.v.AllSettings()
	for k, v := range b.cliValues {
		out[k] = v
	}
	return out
}
