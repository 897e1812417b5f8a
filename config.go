package block_ring_buffer_go

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const defaultCapacity = 64 * 1024

// ByteSize is a byte count that unpacks from integers or from humanized
// strings such as "64KiB" or "1MB".
type ByteSize uint64

// Unpack implements ucfg.Unpacker.
func (b *ByteSize) Unpack(v interface{}) error {
	switch v := v.(type) {
	case int:
		if v < 0 {
			return errors.Errorf("negative byte size %d", v)
		}
		*b = ByteSize(v)
	case int64:
		if v < 0 {
			return errors.Errorf("negative byte size %d", v)
		}
		*b = ByteSize(v)
	case uint64:
		*b = ByteSize(v)
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return errors.Errorf("invalid byte size %v", v)
		}
		*b = ByteSize(v)
	case string:
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return errors.Wrapf(err, "invalid byte size %q", v)
		}
		*b = ByteSize(n)
	default:
		return errors.Errorf("invalid byte size %v (%T)", v, v)
	}

	return nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Config holds BufferManager configuration.
type Config struct {
	// Capacity of the backing store.
	Capacity ByteSize `config:"capacity"`

	// MissingKeyPolicy is "not_found" (default) or "ignore".
	MissingKeyPolicy string `config:"missing_key_policy"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:         defaultCapacity,
		MissingKeyPolicy: MissingKeyNotFound.String(),
	}
}

// Validate implements ucfg.Validator.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Capacity == 0 || c.Capacity > MaxCapacity {
		result = multierror.Append(result, errors.Errorf(
			"capacity %s outside [1B, %s]", c.Capacity, ByteSize(MaxCapacity),
		))
	}

	if _, err := ParseMissingKeyPolicy(c.MissingKeyPolicy); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// NewConfigFrom unpacks a Config from a map, a struct or a *ucfg.Config,
// starting from DefaultConfig.
func NewConfigFrom(from interface{}) (Config, error) {
	raw, err := ucfg.NewFrom(from, ucfg.PathSep("."))
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read buffer config")
	}

	return unpackConfig(raw)
}

// LoadConfig reads a YAML file and unpacks it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	raw, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to load buffer config %s", path)
	}

	return unpackConfig(raw)
}

func unpackConfig(raw *ucfg.Config) (Config, error) {
	cfg := DefaultConfig()
	if err := raw.Unpack(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "invalid buffer config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid buffer config")
	}

	return cfg, nil
}

// NewFromConfig allocates a BufferManager from cfg. Options passed explicitly
// override the ones derived from cfg.
func NewFromConfig(cfg Config, opts ...Option) (*BufferManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid buffer config")
	}

	policy, _ := ParseMissingKeyPolicy(cfg.MissingKeyPolicy)
	all := append([]Option{WithMissingKeyPolicy(policy)}, opts...)

	return New(int64(cfg.Capacity), all...)
}
