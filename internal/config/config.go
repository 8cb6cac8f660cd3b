package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Jobs      JobsConfig
	Fanout    FanoutConfig
	Sources   SourcesConfig
	Papers    PapersConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JobsConfig struct {
	Retention time.Duration
}

type FanoutConfig struct {
	CallTimeout  time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
	Sequential   bool
}

type SourcesConfig struct {
	SimbadURL string
	VizierURL string
	NedURL    string
	SdssURL   string
	GaiaURL   string
	IrsaURL   string
	AdsURL    string
	AdsToken  string
}

type PapersConfig struct {
	ArxivURL   string
	TavilyURL  string
	TavilyKey  string
	MaxResults int
}

type RateLimitConfig struct {
	SearchPerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jobs.retention", "24h")
	viper.SetDefault("fanout.call_timeout", "30s")
	viper.SetDefault("fanout.poll_interval", "5s")
	viper.SetDefault("fanout.max_wait", "300s")
	viper.SetDefault("fanout.sequential", false)
	viper.SetDefault("sources.simbad_url", "https://simbad.cds.unistra.fr/simbad/sim-tap")
	viper.SetDefault("sources.vizier_url", "https://vizier.cds.unistra.fr/viz-bin")
	viper.SetDefault("sources.ned_url", "https://ned.ipac.caltech.edu/cgi-bin/objsearch")
	viper.SetDefault("sources.sdss_url", "https://skyserver.sdss.org/dr18/SkyServerWS")
	viper.SetDefault("sources.gaia_url", "https://gea.esac.esa.int/tap-server/tap")
	viper.SetDefault("sources.irsa_url", "https://irsa.ipac.caltech.edu/TAP")
	viper.SetDefault("sources.ads_url", "https://api.adsabs.harvard.edu/v1")
	viper.SetDefault("sources.ads_token", "")
	viper.SetDefault("papers.arxiv_url", "http://export.arxiv.org/api/query")
	viper.SetDefault("papers.tavily_url", "https://api.tavily.com/search")
	viper.SetDefault("papers.tavily_key", "")
	viper.SetDefault("papers.max_results", 5)
	viper.SetDefault("ratelimit.search_per_hour", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Jobs: JobsConfig{
			Retention: viper.GetDuration("jobs.retention"),
		},
		Fanout: FanoutConfig{
			CallTimeout:  viper.GetDuration("fanout.call_timeout"),
			PollInterval: viper.GetDuration("fanout.poll_interval"),
			MaxWait:      viper.GetDuration("fanout.max_wait"),
			Sequential:   viper.GetBool("fanout.sequential"),
		},
		Sources: SourcesConfig{
			SimbadURL: viper.GetString("sources.simbad_url"),
			VizierURL: viper.GetString("sources.vizier_url"),
			NedURL:    viper.GetString("sources.ned_url"),
			SdssURL:   viper.GetString("sources.sdss_url"),
			GaiaURL:   viper.GetString("sources.gaia_url"),
			IrsaURL:   viper.GetString("sources.irsa_url"),
			AdsURL:    viper.GetString("sources.ads_url"),
			AdsToken:  viper.GetString("sources.ads_token"),
		},
		Papers: PapersConfig{
			ArxivURL:   viper.GetString("papers.arxiv_url"),
			TavilyURL:  viper.GetString("papers.tavily_url"),
			TavilyKey:  viper.GetString("papers.tavily_key"),
			MaxResults: viper.GetInt("papers.max_results"),
		},
		RateLimit: RateLimitConfig{
			SearchPerHour: viper.GetInt("ratelimit.search_per_hour"),
		},
	}

	return cfg, nil
}
