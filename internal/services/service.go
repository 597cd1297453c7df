// Package services owns the per-process object graph: one
// IndexingService holds the chunking engine, the embedding gateway and
// its cache, the document store, the indexer registry and the rebuild
// orchestrator. Nothing in the pipeline lives in package-level state;
// constructing two services yields two fully independent pipelines.
package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/embeddings"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/rebuild"
	"github.com/fyrsmithlabs/indexd/internal/sqlite"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

// Sources carries the source-of-truth providers the indexers read from.
// A nil provider leaves that source type unregistered.
type Sources struct {
	Policies indexer.PolicySource
	Cases    indexer.CaseSource
	Audit    indexer.AuditSource
	Tools    indexer.ToolSource
}

// IndexingService is the assembled pipeline.
type IndexingService struct {
	store        *sqlite.Store
	documents    vectorstore.Store
	engine       *chunking.Engine
	gateway      *embeddings.Gateway
	registry     *indexer.Registry
	orchestrator *rebuild.Orchestrator
	scheduler    *rebuild.Scheduler
	logger       *zap.Logger
}

// New builds the service graph from configuration.
func New(cfg *config.Config, sources Sources, logger *zap.Logger) (*IndexingService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	engine, err := chunking.NewEngine(cfg.Chunking.Defaults, cfg.Chunking.Presets, logger.Named("chunking"))
	if err != nil {
		return nil, fmt.Errorf("building chunking engine: %w", err)
	}

	provider, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("building embedding provider: %w", err)
	}
	gateway := embeddings.NewGateway(provider, cfg.Embeddings, logger.Named("embeddings"))

	store, err := sqlite.NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	index, err := vectorstore.NewIndex(cfg.Vector, logger.Named("vectorstore"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building vector index: %w", err)
	}
	documents, err := vectorstore.NewDualStore(store.DocumentStore(), index, cfg.Vector, logger.Named("vectorstore"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building vector store: %w", err)
	}

	pipeline, err := indexer.NewPipeline(engine, gateway, documents, store.WatermarkStore(), logger.Named("indexer"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building indexer pipeline: %w", err)
	}

	registry := indexer.NewRegistry()
	if sources.Policies != nil {
		registry.Register(indexer.NewPolicyIndexer(pipeline, sources.Policies))
	}
	if sources.Cases != nil {
		registry.Register(indexer.NewExceptionIndexer(pipeline, sources.Cases))
	}
	if sources.Audit != nil {
		registry.Register(indexer.NewAuditIndexer(pipeline, sources.Audit))
	}
	if sources.Tools != nil {
		registry.Register(indexer.NewToolIndexer(pipeline, sources.Tools))
	}
	registry.Register(indexer.NewPlaybookIndexer(pipeline))

	orchestrator, err := rebuild.NewOrchestrator(registry, store.JobStore(), logger.Named("rebuild"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}

	scheduler := rebuild.NewScheduler(registry, cfg.Scheduler, logger.Named("scheduler"))

	return &IndexingService{
		store:        store,
		documents:    documents,
		engine:       engine,
		gateway:      gateway,
		registry:     registry,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		logger:       logger,
	}, nil
}

func (s *IndexingService) Documents() vectorstore.Store        { return s.documents }
func (s *IndexingService) Gateway() *embeddings.Gateway        { return s.gateway }
func (s *IndexingService) Indexers() *indexer.Registry         { return s.registry }
func (s *IndexingService) Orchestrator() *rebuild.Orchestrator { return s.orchestrator }
func (s *IndexingService) Scheduler() *rebuild.Scheduler       { return s.scheduler }

// Close shuts the pipeline down: in-flight rebuild jobs are cancelled
// and drained before storage closes.
func (s *IndexingService) Close() error {
	s.scheduler.Stop()
	s.orchestrator.Shutdown()
	if err := s.documents.Close(); err != nil {
		s.logger.Warn("closing vector store", zap.Error(err))
	}
	if err := s.gateway.Close(); err != nil {
		s.logger.Warn("closing embedding provider", zap.Error(err))
	}
	return s.store.Close()
}
