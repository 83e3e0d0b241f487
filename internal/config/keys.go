package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STOCKRADAR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.base_url", typ: kString, env: "STOCKRADAR_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "STOCKRADAR_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.chat_model", typ: kString, env: "STOCKRADAR_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.embed_model", typ: kString, env: "STOCKRADAR_LLM_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STOCKRADAR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "providers.naver_client_id", typ: kString, env: "NAVER_CLIENT_ID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.NaverClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.NaverClientID },
	},
	{
		key: "providers.naver_client_secret", typ: kString, env: "NAVER_CLIENT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.NaverClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.NaverClientSecret },
	},
	{
		key: "providers.newsdata_api_key", typ: kString, env: "NEWSDATA_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.NewsDataAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.NewsDataAPIKey },
	},
	{
		key: "providers.gnews_api_key", typ: kString, env: "GNEWS_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.GNewsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.GNewsAPIKey },
	},
	{
		key: "providers.thenewsapi_api_key", typ: kString, env: "THENEWSAPI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.TheNewsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.TheNewsAPIKey },
	},
	{
		key: "providers.default_query", typ: kString, env: "STOCKRADAR_PROVIDERS_DEFAULT_QUERY",
		apply:   func(cfg *Config, v any) { cfg.Providers.DefaultQuery = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.DefaultQuery },
	},
	{
		key: "dart.base_url", typ: kString, env: "STOCKRADAR_DART_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Dart.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Dart.BaseURL },
	},
	{
		key: "dart.api_key", typ: kString, env: "DART_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Dart.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Dart.APIKey },
	},
	{
		key: "analysis.candidate_limit", typ: kInt, env: "STOCKRADAR_ANALYSIS_CANDIDATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Analysis.CandidateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.CandidateLimit },
	},
	{
		key: "analysis.select_target", typ: kInt, env: "STOCKRADAR_ANALYSIS_SELECT_TARGET",
		apply:   func(cfg *Config, v any) { cfg.Analysis.SelectTarget = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.SelectTarget },
	},
	{
		key: "analysis.timezone", typ: kString, env: "STOCKRADAR_ANALYSIS_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Timezone },
	},
	{
		key: "schedule.enabled", typ: kBool, env: "STOCKRADAR_SCHEDULE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Schedule.Enabled },
	},
	{
		key: "schedule.collect_spec", typ: kString, env: "STOCKRADAR_SCHEDULE_COLLECT_SPEC",
		apply:   func(cfg *Config, v any) { cfg.Schedule.CollectSpec = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.CollectSpec },
	},
	{
		key: "schedule.analyze_spec", typ: kString, env: "STOCKRADAR_SCHEDULE_ANALYZE_SPEC",
		apply:   func(cfg *Config, v any) { cfg.Schedule.AnalyzeSpec = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.AnalyzeSpec },
	},
	{
		key: "log.level", typ: kString, env: "STOCKRADAR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
