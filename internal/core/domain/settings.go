package domain

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// StorageBackend selects the vector store implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite persists vectors in a local SQLite database.
	StorageSQLite StorageBackend = "sqlite"

	// StorageMemory keeps vectors in process memory only.
	StorageMemory StorageBackend = "memory"

	// StorageQdrant uses an external Qdrant instance.
	StorageQdrant StorageBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StorageMemory, StorageQdrant:
		return true
	default:
		return false
	}
}

// StorageSettings configures the vector store backend.
type StorageSettings struct {
	// Backend selects the implementation (default: sqlite).
	Backend StorageBackend `toml:"backend"`

	// DataDir is where local storage lives (default: ~/.tabletalk/data).
	DataDir string `toml:"data_dir"`

	// QdrantURL is the Qdrant base URL when Backend is qdrant.
	QdrantURL string `toml:"qdrant_url"`

	// QdrantCollection is the logical collection name.
	QdrantCollection string `toml:"qdrant_collection"`
}

// EmbeddingSettings configures the embedding provider gateway.
type EmbeddingSettings struct {
	// Provider selects the embedding backend (default: ollama).
	Provider AIProvider `toml:"provider"`

	// BaseURL overrides the provider's API base URL.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions is the embedding vector size; it must match the
	// vector store's declared dimension.
	Dimensions int `toml:"dimensions"`

	// BatchSize bounds texts per provider round trip (default: 30).
	BatchSize int `toml:"batch_size"`

	// RatePerSecond throttles batch requests to respect provider
	// limits. Zero disables throttling.
	RatePerSecond float64 `toml:"rate_per_second"`
}

// LLMProviderSettings configures one LLM provider in the fallback chain.
type LLMProviderSettings struct {
	// Provider selects the backend.
	Provider AIProvider `toml:"provider"`

	// Model is the model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider's API base URL.
	BaseURL string `toml:"base_url"`
}

// LLMSettings configures the multi-provider LLM gateway.
type LLMSettings struct {
	// Providers lists configured providers. Their order is the default
	// fallback order.
	Providers []LLMProviderSettings `toml:"providers"`

	// Preference is the preferred attempt order by provider name; any
	// configured provider not listed is appended in Providers order.
	Preference []string `toml:"preference"`

	// Temperature is the default sampling temperature.
	Temperature float64 `toml:"temperature"`

	// MaxTokens caps generated tokens.
	MaxTokens int `toml:"max_tokens"`

	// TimeoutSeconds bounds each provider call (default: 30).
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// ChunkingSettings configures the chunker defaults.
type ChunkingSettings struct {
	// RowsPerChunk is the tabular chunk size in data rows (default: 20).
	RowsPerChunk int `toml:"rows_per_chunk"`

	// RowOverlap is the tabular overlap in data rows (default: 4).
	RowOverlap int `toml:"row_overlap"`

	// ChunkSize is the fixed-strategy chunk size in characters.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is the fixed-strategy overlap in characters.
	ChunkOverlap int `toml:"chunk_overlap"`

	// Enrich toggles the contextual enrichment pass (default: true).
	Enrich bool `toml:"enrich"`
}

// GuardrailSettings holds the guardrail's tunable constants. The
// original values are empirically chosen, so they live in configuration
// rather than code.
type GuardrailSettings struct {
	// ConfidenceThreshold is the minimum confidence for a valid answer
	// (default: 0.7).
	ConfidenceThreshold float64 `toml:"confidence_threshold"`

	// CountTolerance is the absolute tolerance for row/record counts
	// (default: 100).
	CountTolerance float64 `toml:"count_tolerance"`

	// RelativeTolerance is the relative tolerance for numeric
	// statistics (default: 0.10).
	RelativeTolerance float64 `toml:"relative_tolerance"`

	// IssuePenalty is the confidence deduction per distinct issue class
	// (default: 0.3).
	IssuePenalty float64 `toml:"issue_penalty"`

	// MaxRetries bounds the correction loop (default: 1).
	MaxRetries int `toml:"max_retries"`

	// MaxIssuesInPrompt caps issues listed in a correction prompt
	// (default: 5).
	MaxIssuesInPrompt int `toml:"max_issues_in_prompt"`
}

// ClassifierSettings holds the intent keyword sets and scoring knobs.
// Keyword sets are deliberately externalised: the originals are ad hoc
// and language-specific.
type ClassifierSettings struct {
	// StatisticalKeywords score towards statistical analysis.
	StatisticalKeywords []string `toml:"statistical_keywords"`

	// SearchKeywords score towards semantic search.
	SearchKeywords []string `toml:"search_keywords"`

	// LoadingKeywords score towards data loading.
	LoadingKeywords []string `toml:"loading_keywords"`

	// ChatKeywords score towards general chat.
	ChatKeywords []string `toml:"chat_keywords"`

	// LoadedBonus is added to data intents when a dataset is loaded.
	LoadedBonus float64 `toml:"loaded_bonus"`

	// HybridMargin flags hybrid when two data intents score within it.
	HybridMargin float64 `toml:"hybrid_margin"`
}

// Config is the full application configuration.
type Config struct {
	Storage    StorageSettings    `toml:"storage"`
	Embedding  EmbeddingSettings  `toml:"embedding"`
	LLM        LLMSettings        `toml:"llm"`
	Chunking   ChunkingSettings   `toml:"chunking"`
	Guardrail  GuardrailSettings  `toml:"guardrail"`
	Classifier ClassifierSettings `toml:"classifier"`
}

// DefaultConfig returns the configuration used when no config file
// exists.
func DefaultConfig() Config {
	return Config{
		Storage: StorageSettings{
			Backend:          StorageSQLite,
			QdrantCollection: "tabletalk",
		},
		Embedding: EmbeddingSettings{
			Provider:      AIProviderOllama,
			Model:         "all-minilm",
			Dimensions:    384,
			BatchSize:     30,
			RatePerSecond: 0,
		},
		LLM: LLMSettings{
			Providers: []LLMProviderSettings{
				{Provider: AIProviderOllama, Model: "llama3.1"},
			},
			Temperature:    0.3,
			MaxTokens:      1024,
			TimeoutSeconds: 30,
		},
		Chunking: ChunkingSettings{
			RowsPerChunk: 20,
			RowOverlap:   4,
			ChunkSize:    1000,
			ChunkOverlap: 200,
			Enrich:       true,
		},
		Guardrail: GuardrailSettings{
			ConfidenceThreshold: 0.7,
			CountTolerance:      100,
			RelativeTolerance:   0.10,
			IssuePenalty:        0.3,
			MaxRetries:          1,
			MaxIssuesInPrompt:   5,
		},
		Classifier: ClassifierSettings{
			StatisticalKeywords: []string{
				"mean", "average", "median", "mode", "deviation", "std",
				"minimum", "maximum", "range", "distribution", "count",
				"statistics", "summary", "summarize", "summarise",
				"describe", "overview", "data types", "correlation",
			},
			SearchKeywords: []string{
				"find", "show", "search", "which", "where", "list",
				"look up", "examples", "similar", "related",
			},
			LoadingKeywords: []string{
				"load", "upload", "import", "ingest", "file", "csv",
				"dataset", "replace",
			},
			ChatKeywords: []string{
				"hello", "hi", "thanks", "thank you", "help",
				"who are you", "what can you do",
			},
			LoadedBonus:  0.5,
			HybridMargin: 0.25,
		},
	}
}
