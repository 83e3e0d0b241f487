package config

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Providers ProvidersConfig
	Dart      DartConfig
	Analysis  AnalysisConfig
	Schedule  ScheduleConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

// ProvidersConfig holds credentials for the news providers. A provider is
// active only when its credentials are set; collection runs with whatever
// subset is active.
type ProvidersConfig struct {
	NaverClientID     string
	NaverClientSecret string
	NewsDataAPIKey    string
	GNewsAPIKey       string
	TheNewsAPIKey     string
	DefaultQuery      string
}

type DartConfig struct {
	BaseURL string
	APIKey  string
}

type AnalysisConfig struct {
	// CandidateLimit caps semantic retrieval before LLM scoring.
	CandidateLimit int
	// SelectTarget is how many articles the selector keeps for analysis.
	SelectTarget int
	// Timezone anchors the analysis window (IANA name).
	Timezone string
}

type ScheduleConfig struct {
	Enabled     bool
	CollectSpec string
	AnalyzeSpec string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Providers: ProvidersConfig{
			DefaultQuery: "주식,증시,코스피,코스닥,반도체,경제,금리,부동산,주가,투자",
		},
		Dart: DartConfig{
			BaseURL: "https://opendart.fss.or.kr/api",
		},
		Analysis: AnalysisConfig{
			CandidateLimit: 100,
			SelectTarget:   20,
			Timezone:       "Asia/Seoul",
		},
		Schedule: ScheduleConfig{
			Enabled:     false,
			CollectSpec: "0 * * * *",
			AnalyzeSpec: "0 6 * * *",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a JSON file at
// $XDG_CONFIG_HOME/stockradar/config.json, then applies STOCKRADAR_*
// environment overrides. Secrets (API keys) are env-only and never read
// from the file.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
