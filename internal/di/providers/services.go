package providers

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// ProvideValidator provides the request validator shared by all services.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCatalogService provides the book catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, validate, log.Logger), nil
}

// ProvideInventoryService provides the copy registry service.
func ProvideInventoryService(i do.Injector) (*service.InventoryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInventoryService(storeHandle.Store, validate, log.Logger), nil
}

// ProvideCirculationService provides the borrow and return service.
func ProvideCirculationService(i do.Injector) (*service.CirculationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCirculationService(storeHandle.Store, validate, cfg.Circulation, log.Logger), nil
}
