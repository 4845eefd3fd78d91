package zilliz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Client indexes past questions by embedding so similar phrasings resolve
// to the same cached SQL.
type Client struct {
	client         client.Client
	embedder       Embedder
	collectionName string
	vectorDim      int
	topK           int
	maxDistance    float64
}

type Config struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	TopK           int
	// MaxDistance is the largest L2 distance still treated as the same
	// question. It has no default and must be positive.
	MaxDistance float64
}

func NewClient(ctx context.Context, cfg Config, embedder Embedder) (*Client, error) {
	if cfg.MaxDistance <= 0 {
		return nil, fmt.Errorf("zilliz max distance must be positive, got %v", cfg.MaxDistance)
	}

	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Zilliz/Milvus client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("collection", cfg.CollectionName),
		zap.Float64("max_distance", cfg.MaxDistance),
	)

	return newClient(c, cfg, embedder), nil
}

func newClient(c client.Client, cfg Config, embedder Embedder) *Client {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 1
	}
	return &Client{
		client:         c,
		embedder:       embedder,
		collectionName: cfg.CollectionName,
		vectorDim:      cfg.VectorDim,
		topK:           topK,
		maxDistance:    cfg.MaxDistance,
	}
}

func (z *Client) Close() error {
	return z.client.Close()
}

func (z *Client) CreateCollection(ctx context.Context) error {
	has, err := z.client.HasCollection(ctx, z.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", z.collectionName))
		return z.client.LoadCollection(ctx, z.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: z.collectionName,
		Description:    "Cricket question embeddings for SQL cache reuse",
		Fields: []*entity.Field{
			{
				Name:       "entry_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", z.vectorDim),
				},
			},
			{
				Name:     "question",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
			{
				Name:     "sql",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := z.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := z.client.CreateIndex(ctx, z.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := z.client.LoadCollection(ctx, z.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", z.collectionName))

	return nil
}

// Index stores the question embedding alongside its SQL. Entries are never
// updated; a repeated question gets a second row.
func (z *Client) Index(ctx context.Context, question, sql string) error {
	embedding, err := z.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to embed question: %w", err)
	}

	_, err = z.client.Insert(
		ctx,
		z.collectionName,
		"",
		entity.NewColumnVarChar("entry_id", []string{uuid.New().String()}),
		entity.NewColumnFloatVector("embedding", z.vectorDim, [][]float32{embedding}),
		entity.NewColumnVarChar("question", []string{question}),
		entity.NewColumnVarChar("sql", []string{sql}),
		entity.NewColumnInt64("created_at", []int64{time.Now().Unix()}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	logger.Debug("Question indexed", zap.String("question", question))
	return nil
}

// FuzzyMatch returns the past questions within maxDistance, closest first.
// Anything farther away is a different question and is dropped.
func (z *Client) FuzzyMatch(ctx context.Context, question string) ([]models.FuzzyCandidate, error) {
	embedding, err := z.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := z.client.Search(
		ctx,
		z.collectionName,
		[]string{},
		"",
		[]string{"question", "sql"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.L2,
		z.topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	candidates := make([]models.FuzzyCandidate, 0)
	for _, sr := range searchResult {
		questionCol := sr.Fields.GetColumn("question")
		sqlCol := sr.Fields.GetColumn("sql")
		if questionCol == nil || sqlCol == nil {
			continue
		}
		for i := 0; i < sr.ResultCount && i < len(sr.Scores); i++ {
			if float64(sr.Scores[i]) > z.maxDistance {
				continue
			}
			q, _ := questionCol.GetAsString(i)
			s, _ := sqlCol.GetAsString(i)
			candidates = append(candidates, models.FuzzyCandidate{
				Question: q,
				SQL:      s,
				Score:    float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", z.topK),
		zap.Int("results", len(candidates)),
	)

	return candidates, nil
}
