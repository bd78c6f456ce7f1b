package types

// Settings is the parsed contents of ~/.memory-service/settings.json.
type Settings struct {
	Schema string `json:"$schema,omitempty"`

	// Provider selection: "claude" | "lmstudio" | "openrouter" | "gemini".
	Provider         string                    `json:"provider,omitempty"`
	FallbackProvider string                    `json:"fallbackProvider,omitempty"`
	Providers        map[string]ProviderConfig `json:"providers,omitempty"`

	// Vector backend selection: "chroma" | "sqlite-vec" | "none".
	VectorBackend     string                  `json:"vectorBackend,omitempty"`
	Embedding         EmbeddingConfig         `json:"embedding,omitempty"`
	CollectionService CollectionServiceConfig `json:"collectionService,omitempty"`

	Federation  FederationConfig  `json:"federation,omitempty"`
	Replication ReplicationConfig `json:"replication,omitempty"`
	Truncation  TruncationConfig  `json:"truncation,omitempty"`

	HTTPPort int `json:"httpPort,omitempty"`
}

// ProviderConfig holds endpoint/model/key configuration for one LLM provider.
type ProviderConfig struct {
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

// EmbeddingConfig configures the embedding provider used by EmbeddedVecBackend.
type EmbeddingConfig struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	BaseURL    string `json:"baseUrl,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`

	// QdrantURL, if set, switches EmbeddedBackend's query path from a
	// brute-force cosine scan to an ANN index against a Qdrant instance.
	QdrantURL        string `json:"qdrantUrl,omitempty"`
	QdrantCollection string `json:"qdrantCollection,omitempty"`
}

// CollectionServiceConfig names the external collection-service child
// process CollectionServiceBackend spawns and speaks JSON-RPC to, used when
// vectorBackend="chroma".
type CollectionServiceConfig struct {
	Command    []string          `json:"command,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Collection string            `json:"collection,omitempty"`
}

// FederationConfig configures weighted queries against remote nodes.
type FederationConfig struct {
	MaxRemotes      int      `json:"maxRemotes,omitempty"`
	PerQueryTimeout int      `json:"perQueryTimeoutSeconds,omitempty"`
	OverallBudget   int      `json:"overallBudgetSeconds,omitempty"`
	DecayStrategy   string   `json:"decayStrategy,omitempty"` // "golden"|"exponential"|"linear"
	AllowList       []string `json:"allowList,omitempty"`
	ReadOnly        bool     `json:"readOnly,omitempty"`
}

// ReplicationConfig configures the export/git-sync workflow.
type ReplicationConfig struct {
	Enabled         bool   `json:"enabled,omitempty"`
	RemoteName      string `json:"remoteName,omitempty"`
	RemoteURL       string `json:"remoteUrl,omitempty"`
	AutoPush        bool   `json:"autoPush,omitempty"`
	IdlePushSeconds int    `json:"idlePushSeconds,omitempty"`
}

// TruncationConfig bounds the Session Agent's conversation history.
type TruncationConfig struct {
	MaxContextMessages int `json:"maxContextMessages,omitempty"`
	MaxTokens          int `json:"maxTokens,omitempty"`
}

// DefaultSettings returns the built-in defaults applied before a settings
// file is loaded and merged on top.
func DefaultSettings() *Settings {
	return &Settings{
		Provider:      "claude",
		VectorBackend: "sqlite-vec",
		HTTPPort:      37777,
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Dimensions: 1536,
		},
		CollectionService: CollectionServiceConfig{
			Collection: "memoryd",
		},
		Federation: FederationConfig{
			MaxRemotes:      3,
			PerQueryTimeout: 5,
			OverallBudget:   15,
			DecayStrategy:   "golden",
			ReadOnly:        true,
		},
		Replication: ReplicationConfig{
			IdlePushSeconds: 300,
		},
		Truncation: TruncationConfig{
			MaxContextMessages: 40,
			MaxTokens:          150000,
		},
	}
}
