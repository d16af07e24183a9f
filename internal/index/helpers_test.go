package index_test

import "github.com/raphaelgruber/docqa/internal/config"

func configFor(provider string) config.IndexConfig {
	cfg := config.Default().Index
	cfg.Provider = provider
	cfg.Collection = "factory-" + provider
	return cfg
}
