// gen3dapi/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Engine names selectable via the ENGINE setting.
const (
	EngineNerfstudio = "nerfstudio"
	EngineGaussian   = "gaussian"
	EngineColmap     = "colmap"
)

type Config struct {
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`
	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`

	Engine            string        `mapstructure:"ENGINE"`
	MaxConcurrentJobs int           `mapstructure:"MAX_CONCURRENT_JOBS"`
	TargetFrames      int           `mapstructure:"TARGET_FRAMES"`
	MinFrames         int           `mapstructure:"MIN_FRAMES"`
	MaxUploadSize     int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	StageTimeout      time.Duration `mapstructure:"STAGE_TIMEOUT"`
	TrainTimeout      time.Duration `mapstructure:"TRAIN_TIMEOUT"`

	Iterations       int `mapstructure:"ITERATIONS"`
	MaxNumIterations int `mapstructure:"MAX_NUM_ITERATIONS"`

	FFmpegBin            string `mapstructure:"FFMPEG_BIN"`
	FFprobeBin           string `mapstructure:"FFPROBE_BIN"`
	ColmapBin            string `mapstructure:"COLMAP_BIN"`
	NsBinPrefix          string `mapstructure:"NS_BIN_PREFIX"`
	PythonBin            string `mapstructure:"PYTHON_BIN"`
	GaussianSplattingDir string `mapstructure:"GAUSSIAN_SPLATTING_PATH"`

	DataDir          string `mapstructure:"DATA_DIR"`
	CleanupWorkFiles bool   `mapstructure:"CLEANUP_WORK_FILES"`
	RegistryPath     string `mapstructure:"REGISTRY_PATH"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`
}

// UploadDir is where submitted videos are stored until cleanup.
func (c *Config) UploadDir() string { return filepath.Join(c.DataDir, "uploads") }

// OutputDir holds canonical per-job artifacts, named <jobID>.ply.
func (c *Config) OutputDir() string { return filepath.Join(c.DataDir, "outputs") }

// JobsDir holds per-job working directories, removed after completion.
func (c *Config) JobsDir() string { return filepath.Join(c.DataDir, "jobs") }

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Defaults are strings where the hooks handle conversion.
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")

	vp.SetDefault("ENGINE", EngineNerfstudio)
	vp.SetDefault("MAX_CONCURRENT_JOBS", 2)
	vp.SetDefault("TARGET_FRAMES", 50)
	vp.SetDefault("MIN_FRAMES", 10)
	vp.SetDefault("MAX_UPLOAD_SIZE", "500MB")
	vp.SetDefault("STAGE_TIMEOUT", "15m")
	vp.SetDefault("TRAIN_TIMEOUT", "1h")

	vp.SetDefault("ITERATIONS", 7000)
	vp.SetDefault("MAX_NUM_ITERATIONS", 10000)

	vp.SetDefault("FFMPEG_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("COLMAP_BIN", "colmap")
	vp.SetDefault("NS_BIN_PREFIX", "ns")
	vp.SetDefault("PYTHON_BIN", "python")
	vp.SetDefault("GAUSSIAN_SPLATTING_PATH", "/workspace/gaussian-splatting")

	vp.SetDefault("DATA_DIR", "data")
	vp.SetDefault("CLEANUP_WORK_FILES", true)
	vp.SetDefault("REGISTRY_PATH", "")

	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")

	vp.SetConfigName("gen3dapi_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/gen3dapi/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("GEN3DAPI")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineNerfstudio, EngineGaussian, EngineColmap:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", c.MaxConcurrentJobs)
	}
	if c.AuthEnable && c.AuthKey == "" {
		return fmt.Errorf("AUTH_ENABLE is set but AUTH_KEY is empty")
	}
	return nil
}
