package httpserver

import (
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/component-manager/fusionctl/component"
)

// RouteRegisterFunc mounts routes onto r; cc lets a registrar resolve
// any other component it needs (a mysql connection pool, say) via
// FindComponent without this package importing it.
type RouteRegisterFunc func(r chi.Router, cc *component.Context) error

var (
	registryMu sync.Mutex
	registrars []RouteRegisterFunc
)

// RegisterRoutes adds fn to the global set of route registrars applied
// to every httpserver.Component when New builds it. Intended to be called from a
// package init() so that controller packages self-register against the
// chi router just by being imported.
func RegisterRoutes(fn RouteRegisterFunc) {
	if fn == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registrars = append(registrars, fn)
}

func snapshotRegistrars() []RouteRegisterFunc {
	registryMu.Lock()
	defer registryMu.Unlock()
	return append([]RouteRegisterFunc(nil), registrars...)
}
