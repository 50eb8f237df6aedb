package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/ringlink/internal/config"
	"github.com/srg/ringlink/internal/executor"
	"github.com/srg/ringlink/internal/llm"
)

// loadConfig reads the configuration named by --config, or the built-in
// defaults when the flag is unset, and validates everything except the
// device section. Commands that only inspect configuration do not need a
// ring address; run performs the full validation itself.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildProviders registers every enabled LLM provider from the config.
func buildProviders(cfg *config.Config) (*llm.Registry, error) {
	providers := llm.NewRegistry()

	if cfg.LLM.Ollama.Enabled {
		if err := providers.Register(llm.NewOllamaProvider(cfg.LLM.Ollama.BaseURL)); err != nil {
			return nil, err
		}
	}

	if cfg.LLM.OpenAI.Enabled {
		p, err := llm.NewOpenAIProvider(llm.OpenAIOptions{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := providers.Register(p); err != nil {
			return nil, err
		}
	}

	return providers, nil
}

// buildExecutors constructs one executor per configured action. Options
// omitted on an action fall back to the matching top-level config section,
// so a bare `executor: telemetry` inherits the broker from the telemetry
// section.
func buildExecutors(cfg *config.Config, providers *llm.Registry, logger *logrus.Logger) (map[string]executor.Executor, error) {
	registry := executor.DefaultRegistry()
	deps := executor.Deps{
		Logger:    logger,
		Providers: providers,
		Out:       os.Stdout,
	}

	executors := make(map[string]executor.Executor, len(cfg.Actions))
	for actionID, def := range cfg.Actions {
		opts := make(map[string]string, len(def.Options)+3)
		for k, v := range def.Options {
			opts[k] = v
		}
		applyOptionDefaults(cfg, def.Executor, opts)

		exec, err := registry.Build(def.Executor, deps, opts)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", actionID, err)
		}
		executors[actionID] = exec
	}
	return executors, nil
}

func applyOptionDefaults(cfg *config.Config, executorID string, opts map[string]string) {
	switch executorID {
	case "llm":
		if opts["provider"] == "" {
			opts["provider"] = defaultProviderID(cfg)
		}
		if opts["model"] == "" {
			switch opts["provider"] {
			case "ollama":
				opts["model"] = cfg.LLM.Ollama.Model
			case "openai":
				opts["model"] = cfg.LLM.OpenAI.Model
			}
		}
	case "mirror":
		if opts["url"] == "" {
			opts["url"] = cfg.Mirror.URL
		}
	case "telemetry":
		if opts["broker"] == "" {
			opts["broker"] = cfg.Telemetry.Broker
		}
		if opts["client_id"] == "" {
			opts["client_id"] = cfg.Telemetry.ClientID
		}
		if opts["topic"] == "" {
			opts["topic"] = cfg.Telemetry.Topic
		}
	}
}

func defaultProviderID(cfg *config.Config) string {
	if cfg.LLM.Ollama.Enabled {
		return "ollama"
	}
	if cfg.LLM.OpenAI.Enabled {
		return "openai"
	}
	return ""
}
