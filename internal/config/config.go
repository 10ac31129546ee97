// Package config provides configuration types and loading for wxclaw.
package config

// Config is the root configuration struct.
// Top-level groups: Server, WeCom, Provider, Relay, Agent.
type Config struct {
	Server   ServerConfig   `json:"server"`
	WeCom    WeComConfig    `json:"wecom"`
	Provider ProviderConfig `json:"provider"`
	Relay    RelayConfig    `json:"relay"`
	Agent    AgentConfig    `json:"agent"`
}

// ---------------------------------------------------------------------------
// Server – HTTP callback endpoint
// ---------------------------------------------------------------------------

// ServerConfig contains callback server settings.
type ServerConfig struct {
	Host         string `json:"host" envconfig:"HOST"`
	Port         int    `json:"port" envconfig:"PORT"`
	CallbackPath string `json:"callbackPath" envconfig:"CALLBACK_PATH"`
}

// ---------------------------------------------------------------------------
// WeCom – platform credentials and crypto material
// ---------------------------------------------------------------------------

// WeComConfig contains the platform callback credentials. Token and
// EncodingAESKey come from the app's API receive settings; CorpSecret is
// the app secret used for the send API.
type WeComConfig struct {
	CorpID         string `json:"corpId" envconfig:"CORP_ID"`
	AgentID        int    `json:"agentId" envconfig:"AGENT_ID"`
	Token          string `json:"token" envconfig:"TOKEN"`
	EncodingAESKey string `json:"encodingAesKey" envconfig:"ENCODING_AES_KEY"`
	CorpSecret     string `json:"corpSecret" envconfig:"CORP_SECRET"`
	APIBase        string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Provider – LLM API key & endpoint
// ---------------------------------------------------------------------------

// ProviderConfig contains settings for the LLM provider.
type ProviderConfig struct {
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase,omitempty" envconfig:"API_BASE"`
	Model       string  `json:"model" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ---------------------------------------------------------------------------
// Relay – batching and session lifecycle
// ---------------------------------------------------------------------------

// RelayConfig controls message batching and session bookkeeping.
type RelayConfig struct {
	// BatchIdleSeconds is the quiet period after the last message before
	// the open batch is flushed to the model.
	BatchIdleSeconds int `json:"batchIdleSeconds" envconfig:"BATCH_IDLE_SECONDS"`
	// SessionIdleSeconds is how long a session may sit idle before the
	// sweeper removes it.
	SessionIdleSeconds int `json:"sessionIdleSeconds" envconfig:"SESSION_IDLE_SECONDS"`
	// MaxSessions bounds concurrently tracked users; the least recently
	// active session is evicted when the cap is hit.
	MaxSessions int `json:"maxSessions" envconfig:"MAX_SESSIONS"`
	// HistoryWindow is how many stored messages are replayed as context.
	HistoryWindow int `json:"historyWindow" envconfig:"HISTORY_WINDOW"`
}

// ---------------------------------------------------------------------------
// Agent – turn handling
// ---------------------------------------------------------------------------

// AgentConfig controls the agent loop.
type AgentConfig struct {
	// PersonaPath points at the persona markdown used as the system prompt.
	PersonaPath string `json:"personaPath" envconfig:"PERSONA_PATH"`
	// Workspace is the directory the filesystem tools are confined to.
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	// MaxToolIterations caps the tool-call loop per turn.
	MaxToolIterations int `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			CallbackPath: "/callback",
		},
		WeCom: WeComConfig{
			APIBase: "https://qyapi.weixin.qq.com/cgi-bin",
		},
		Provider: ProviderConfig{
			APIBase: "https://api.deepseek.com/v1",
			Model:   "deepseek-chat",
		},
		Relay: RelayConfig{
			BatchIdleSeconds:   40,
			SessionIdleSeconds: 3600,
			MaxSessions:        10,
			HistoryWindow:      20,
		},
		Agent: AgentConfig{
			PersonaPath:       "~/.wxclaw/soul.md",
			Workspace:         "~/WxClaw-Workspace",
			MaxToolIterations: 20,
		},
	}
}
