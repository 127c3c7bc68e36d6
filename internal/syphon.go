package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hbomb79/Syphon/internal/api"
	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/hbomb79/Syphon/internal/media"
	"github.com/hbomb79/Syphon/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// Syphon is the top-level object for the server; it wires the extractor
// invoker through the orchestration service and into the REST gateway.
type syphonImpl struct {
	config      SyphonConfig
	restGateway RunnableService
}

func New(config SyphonConfig) *syphonImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Syphon services using config: %#v\n", config)

	invoker := extractor.NewInvoker(config.Extractor)
	downloadService := media.New(config.Media, invoker)

	return &syphonImpl{
		config:      config,
		restGateway: api.NewRestGateway(&config.Rest, downloadService),
	}
}

// Run brings up all of Syphon's services and blocks until the provided
// context is cancelled, or a service suffers an unrecoverable error.
func (syphon *syphonImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	syphon.spawnAsyncService(ctx, wg, syphon.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Syphon services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService runs the provided service as its own goroutine,
// keeping the service waitgroup updated and funnelling panics and errors
// through the crash handler.
func (syphon *syphonImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				crashHandler(serviceLabel, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crashHandler(serviceLabel, err)
		}
	}()
}
