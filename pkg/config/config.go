package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"github.com/travigo/positiontracker/pkg/util"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "POSITIONTRACKER_"

const (
	defaultFeedPrefix        = "gtfs-realtime"
	defaultCitiesFile        = "cities.yml"
	defaultTransport         = "rmq"
	defaultNatsURL           = "nats://localhost:4222"
	defaultCongestionURL     = "http://localhost:8000/congestion"
	defaultCongestionTimeout = 10 * time.Second
	defaultTripCacheTTL      = 30 * time.Minute
	defaultStoreRetryElapsed = 5 * time.Second
	defaultInFlight          = 10
	defaultStatsListen       = ":3333"
)

type CityConfig struct {
	Name   string `yaml:"name" validate:"required,knowncity"`
	Topic  string `yaml:"topic"`
	Format string `yaml:"format" validate:"omitempty,oneof=json protobuf"`
	Filter string `yaml:"filter"`
}

func (c CityConfig) City() ctdf.City {
	return ctdf.City(c.Name)
}

// TopicName is the explicit topic or <feedPrefix>-<city>
func (c CityConfig) TopicName(feedPrefix string) string {
	if c.Topic != "" {
		return c.Topic
	}

	return fmt.Sprintf("%s-%s", feedPrefix, c.Name)
}

type CitiesFile struct {
	FeedPrefix string       `yaml:"feedPrefix"`
	Cities     []CityConfig `yaml:"cities" validate:"required,min=1,dive"`
}

type Config struct {
	MongoConnection string `validate:"required"`
	MongoDatabase   string `validate:"required"`

	RedisAddress  string
	RedisPassword string
	RedisDatabase int `validate:"gte=0"`

	Transport string `validate:"oneof=rmq nats"`
	NatsURL   string

	CongestionURL     string        `validate:"required,url"`
	CongestionTimeout time.Duration `validate:"gt=0"`

	MinPositionChangeMeters float64       `validate:"gte=0"`
	TripCacheTTL            time.Duration `validate:"gte=0"`
	StoreRetryMaxElapsed    time.Duration `validate:"gte=0"`
	InFlight                int           `validate:"gte=1"`

	StatsListen string

	ElasticsearchAddress  string
	ElasticsearchUsername string
	ElasticsearchPassword string

	FeedPrefix string
	Cities     []CityConfig `validate:"required,min=1,dive"`
}

// Load reads an optional .env file, the environment and the cities file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded, using process environment")
	}

	return FromEnvironment(util.GetEnvironmentVariables())
}

func FromEnvironment(env map[string]string) (*Config, error) {
	var err error

	cfg := &Config{
		MongoConnection:       util.EnvString(env, EnvPrefix+"MONGODB_CONNECTION", "mongodb://localhost:27017/"),
		MongoDatabase:         util.EnvString(env, EnvPrefix+"MONGODB_DATABASE", "positiontracker"),
		RedisAddress:          util.EnvString(env, EnvPrefix+"REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:         env[EnvPrefix+"REDIS_PASSWORD"],
		Transport:             strings.ToLower(util.EnvString(env, EnvPrefix+"TRANSPORT", defaultTransport)),
		NatsURL:               util.EnvString(env, EnvPrefix+"NATS_URL", defaultNatsURL),
		CongestionURL:         util.EnvString(env, EnvPrefix+"CONGESTION_URL", defaultCongestionURL),
		StatsListen:           util.EnvString(env, EnvPrefix+"STATS_LISTEN", defaultStatsListen),
		ElasticsearchAddress:  env[EnvPrefix+"ELASTICSEARCH_ADDRESS"],
		ElasticsearchUsername: env[EnvPrefix+"ELASTICSEARCH_USERNAME"],
		ElasticsearchPassword: env[EnvPrefix+"ELASTICSEARCH_PASSWORD"],
	}

	if cfg.RedisDatabase, err = util.EnvInt(env, EnvPrefix+"REDIS_DATABASE", 0); err != nil {
		return nil, fmt.Errorf("parsing %sREDIS_DATABASE: %w", EnvPrefix, err)
	}
	if cfg.InFlight, err = util.EnvInt(env, EnvPrefix+"IN_FLIGHT", defaultInFlight); err != nil {
		return nil, fmt.Errorf("parsing %sIN_FLIGHT: %w", EnvPrefix, err)
	}
	if cfg.MinPositionChangeMeters, err = util.EnvFloat(env, EnvPrefix+"MIN_POSITION_CHANGE_METERS", 0); err != nil {
		return nil, fmt.Errorf("parsing %sMIN_POSITION_CHANGE_METERS: %w", EnvPrefix, err)
	}
	if cfg.CongestionTimeout, err = util.EnvDuration(env, EnvPrefix+"CONGESTION_TIMEOUT", defaultCongestionTimeout); err != nil {
		return nil, fmt.Errorf("parsing %sCONGESTION_TIMEOUT: %w", EnvPrefix, err)
	}
	if cfg.TripCacheTTL, err = util.EnvDuration(env, EnvPrefix+"TRIP_CACHE_TTL", defaultTripCacheTTL); err != nil {
		return nil, fmt.Errorf("parsing %sTRIP_CACHE_TTL: %w", EnvPrefix, err)
	}
	if cfg.StoreRetryMaxElapsed, err = util.EnvDuration(env, EnvPrefix+"STORE_RETRY_MAX_ELAPSED", defaultStoreRetryElapsed); err != nil {
		return nil, fmt.Errorf("parsing %sSTORE_RETRY_MAX_ELAPSED: %w", EnvPrefix, err)
	}

	citiesPath, explicit := env[EnvPrefix+"CITIES_FILE"]
	if citiesPath == "" {
		citiesPath = defaultCitiesFile
		explicit = false
	}

	cities, err := LoadCities(citiesPath, explicit)
	if err != nil {
		return nil, err
	}
	cfg.FeedPrefix = cities.FeedPrefix
	cfg.Cities = cities.Cities

	if err := newValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadCities reads the city to topic mapping. A missing file is only an error when it
// was explicitly requested, otherwise the built in amsterdam & stockholm feeds are used.
func LoadCities(path string, required bool) (*CitiesFile, error) {
	cities := &CitiesFile{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cities); err != nil {
			return nil, fmt.Errorf("parsing cities file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		cities.Cities = defaultCities()
	default:
		return nil, fmt.Errorf("reading cities file %s: %w", path, err)
	}

	if cities.FeedPrefix == "" {
		cities.FeedPrefix = defaultFeedPrefix
	}

	if err := newValidator().Struct(cities); err != nil {
		return nil, fmt.Errorf("invalid cities file %s: %w", path, err)
	}

	seen := map[string]bool{}
	for _, city := range cities.Cities {
		if seen[city.Name] {
			return nil, fmt.Errorf("city %s configured more than once", city.Name)
		}
		seen[city.Name] = true
	}

	return cities, nil
}

func defaultCities() []CityConfig {
	return []CityConfig{
		{Name: string(ctdf.CityAmsterdam), Format: "json"},
		{Name: string(ctdf.CityStockholm), Format: "json"},
	}
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("knowncity", func(fl validator.FieldLevel) bool {
		return slices.Contains(ctdf.KnownCities, ctdf.City(fl.Field().String()))
	})

	return v
}
