package service

import (
	"go.uber.org/zap"

	"coach-service/internal/client"
	"coach-service/internal/config"
	"coach-service/internal/hashing"
	"coach-service/internal/provider"
	"coach-service/internal/repository"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	counterStore repository.CounterStore
	jobStore     repository.JobStore
	ideaStore    repository.IdeaStore
	audit        repository.AttemptSink
	producer     *client.KafkaProducer
	providers    []provider.Provider
	hasher       *hashing.IdentifierHasher
	dispatchCfg  config.DispatchConfig
	logger       *zap.Logger

	admissionService *AdmissionService
	chainService     *ChainService
	jobService       *JobService
	dispatchService  *DispatchService
}

func NewServiceFactory(
	counterStore repository.CounterStore,
	jobStore repository.JobStore,
	ideaStore repository.IdeaStore,
	audit repository.AttemptSink,
	producer *client.KafkaProducer,
	providers []provider.Provider,
	hasher *hashing.IdentifierHasher,
	dispatchCfg config.DispatchConfig,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		counterStore: counterStore,
		jobStore:     jobStore,
		ideaStore:    ideaStore,
		audit:        audit,
		producer:     producer,
		providers:    providers,
		hasher:       hasher,
		dispatchCfg:  dispatchCfg,
		logger:       logger,
	}
}

// AdmissionService returns the admission controller (singleton)
func (f *ServiceFactory) AdmissionService() *AdmissionService {
	if f.admissionService == nil {
		f.admissionService = NewAdmissionService(f.counterStore, f.hasher, f.logger)
	}
	return f.admissionService
}

// ChainService returns the provider chain orchestrator (singleton)
func (f *ServiceFactory) ChainService() *ChainService {
	if f.chainService == nil {
		f.chainService = NewChainService(f.providers, f.audit, f.logger)
	}
	return f.chainService
}

// JobService returns the job tracker (singleton)
func (f *ServiceFactory) JobService() *JobService {
	if f.jobService == nil {
		f.jobService = NewJobService(f.jobStore, f.ideaStore, f.producer, f.logger)
	}
	return f.jobService
}

// DispatchService returns the fire-and-forget dispatcher (singleton)
func (f *ServiceFactory) DispatchService() *DispatchService {
	if f.dispatchService == nil {
		f.dispatchService = NewDispatchService(f.dispatchCfg.EngineURL, f.dispatchCfg.Timeout, f.logger)
	}
	return f.dispatchService
}

// Cleanup waits for in-flight dispatches before shutdown.
func (f *ServiceFactory) Cleanup() {
	if f.dispatchService != nil {
		f.dispatchService.Wait()
	}
}
