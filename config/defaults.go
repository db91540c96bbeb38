package config

import "time"

// DefaultConfig returns the baseline configuration before file and
// environment overrides.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "openai",
			BaseURL:           "https://api.openai.com",
			Model:             "gpt-4o-mini",
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			RequestsPerMinute: 60,
		},
		Agent: AgentConfig{
			Temperature:   0.1,
			MaxTokens:     2048,
			MaxToolRounds: 4,
			ToolTimeout:   10 * time.Second,
		},
		Data: DataConfig{
			CSVPath: "data/sample_sales_data.csv",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
	}
}
