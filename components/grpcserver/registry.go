package grpcserver

import (
	"sync"

	"google.golang.org/grpc"

	"github.com/component-manager/fusionctl/component"
)

// ServiceRegistrar registers an RPC service implementation against s;
// cc lets it resolve whatever other component it needs via
// FindComponent without this package importing it.
type ServiceRegistrar func(s *grpc.Server, cc *component.Context) error

var (
	regMu      sync.Mutex
	registrars []ServiceRegistrar
)

// RegisterService adds fn to the global set of registrars applied to
// every grpcserver.Component on New.
func RegisterService(fn ServiceRegistrar) {
	if fn == nil {
		return
	}
	regMu.Lock()
	defer regMu.Unlock()
	registrars = append(registrars, fn)
}

func snapshotRegistrars() []ServiceRegistrar {
	regMu.Lock()
	defer regMu.Unlock()
	return append([]ServiceRegistrar(nil), registrars...)
}
