package detect

import (
	"context"

	"github.com/vzahanych/binsight/internal/logger"
	"github.com/vzahanych/binsight/internal/service"
)

// Preloader warms the model during startup instead of on the first
// request. It is registered with the service manager only when
// model.preload is set.
type Preloader struct {
	*service.ServiceBase
	gateway *Gateway
}

func NewPreloader(gateway *Gateway, log *logger.Logger) *Preloader {
	return &Preloader{
		ServiceBase: service.NewServiceBase("model-preloader", log),
		gateway:     gateway,
	}
}

func (p *Preloader) Start(ctx context.Context) error {
	p.LogInfo("Preloading detection model")

	if _, err := p.gateway.Get(ctx); err != nil {
		p.LogError("Model preload failed", err)
		return err
	}

	if p.gateway.WeightsFetched() {
		p.PublishEvent(service.EventTypeWeightsDownloaded, map[string]interface{}{
			"path": p.gateway.Config().WeightsPath,
		})
	}
	p.PublishEvent(service.EventTypeModelLoaded, map[string]interface{}{
		"backend": p.gateway.Config().Backend,
	})
	return nil
}

func (p *Preloader) Stop(ctx context.Context) error {
	return nil
}
