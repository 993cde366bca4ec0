package core

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"esg-sync/internal/config"
	"esg-sync/internal/external"
	"esg-sync/internal/external/vaultcreds"
	"esg-sync/internal/platform"
	"esg-sync/internal/ratelimit"
	"esg-sync/internal/registry"
	repo "esg-sync/internal/repository"
	psqlRepo "esg-sync/internal/repository/postgres"
	"esg-sync/internal/retry"
	"esg-sync/internal/service/orchestrator"
	"esg-sync/internal/service/prober"
	"esg-sync/pkg/db"
	"esg-sync/pkg/db/migrations"
	"esg-sync/pkg/log"
)

type Wiring struct {
	config *config.Config
	logger zerolog.Logger

	datastoreOnce sync.Once
	datastore     *db.PostgresDatastore

	resolverOnce sync.Once
	resolver     external.CredentialResolver

	limiter *ratelimit.ConnectorLimiter
}

func NewWiring(cfg *config.Config) *Wiring {
	return &Wiring{
		config:  cfg,
		logger:  log.Logger.With().Str("component", "wiring").Logger(),
		limiter: ratelimit.NewConnectorLimiter(),
	}
}

func (w *Wiring) GetConfig() *config.Config {
	return w.config
}

func (w *Wiring) InitPostgresDataStore() *db.PostgresDatastore {
	w.datastoreOnce.Do(func() {
		var err error
		w.datastore, err = db.NewPostgresDatastore(&w.config.Postgres, migrations.NewPostgresMigration())
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to create Postgres datastore")
			os.Exit(-1)
		}
	})
	return w.datastore
}

func (w *Wiring) InitConnectorRepository() repo.ConnectorRepository {
	return psqlRepo.NewConnectorRepository(w.InitPostgresDataStore())
}

func (w *Wiring) InitSyncRecordRepository() repo.SyncRecordRepository {
	return psqlRepo.NewSyncRecordRepository(w.InitPostgresDataStore())
}

func (w *Wiring) InitIntegrationLogRepository() repo.IntegrationLogRepository {
	return psqlRepo.NewIntegrationLogRepository(w.InitPostgresDataStore())
}

func (w *Wiring) InitEntitySyncStateRepository() repo.EntitySyncStateRepository {
	return psqlRepo.NewEntitySyncStateRepository(w.InitPostgresDataStore())
}

func (w *Wiring) InitRegistry() *registry.Registry {
	return registry.NewRegistry(w.InitConnectorRepository())
}

func (w *Wiring) InitCredentialResolver() external.CredentialResolver {
	w.resolverOnce.Do(func() {
		var err error
		w.resolver, err = vaultcreds.NewResolver(&w.config.Vault)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to create Vault credential resolver")
			os.Exit(-1)
		}
	})
	return w.resolver
}

func (w *Wiring) InitExternalClient() *external.Client {
	timeout := time.Duration(w.config.HTTP.TimeoutSeconds) * time.Second
	return external.NewClient(w.InitCredentialResolver(), timeout)
}

func (w *Wiring) InitProber() *prober.Prober {
	return prober.NewProber(
		w.InitRegistry(),
		w.InitExternalClient(),
		w.InitIntegrationLogRepository(),
		platform.NopAuditSink{},
	)
}

// InitOrchestrator wires the full pipeline. The internal entity store is a
// platform collaborator; the in-memory store stands in until the platform
// exposes its own.
func (w *Wiring) InitOrchestrator(entityStore platform.EntityStore) *orchestrator.SyncOrchestrator {
	if entityStore == nil {
		entityStore = platform.NewMemoryEntityStore()
	}

	return orchestrator.NewSyncOrchestrator(
		w.InitRegistry(),
		w.InitExternalClient(),
		w.InitCredentialResolver(),
		w.limiter,
		retry.NewExecutor(w.InitIntegrationLogRepository()),
		entityStore,
		w.InitEntitySyncStateRepository(),
		w.InitSyncRecordRepository(),
		w.InitIntegrationLogRepository(),
		platform.NopAuditSink{},
		w.config.Concurrency,
	)
}
