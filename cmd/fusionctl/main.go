// Command fusionctl boots the component manager from a configuration
// file and blocks until it receives a termination signal.
package main

import (
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/config"
	"github.com/component-manager/fusionctl/consts"
	"github.com/component-manager/fusionctl/manager"

	"github.com/component-manager/fusionctl/components/grpcclient"
	"github.com/component-manager/fusionctl/components/grpcserver"
	"github.com/component-manager/fusionctl/components/httpclient"
	"github.com/component-manager/fusionctl/components/httpserver"
	"github.com/component-manager/fusionctl/components/logging"
	"github.com/component-manager/fusionctl/components/mysql"
	"github.com/component-manager/fusionctl/components/mysqlgorm"
	"github.com/component-manager/fusionctl/components/postgresgorm"
	"github.com/component-manager/fusionctl/components/prometheus"
	"github.com/component-manager/fusionctl/components/redis"
	"github.com/component-manager/fusionctl/components/telemetry"
)

// componentList names every component this binary knows how to build.
// Order only affects which goroutine starts first; completion order is
// resolved dynamically through component.Context.FindComponent, so
// listing logging first just means its own boot log line tends to
// appear earliest.
var componentList = manager.ComponentList{
	{Name: consts.COMPONENT_LOGGING, Required: true, New: logging.New},
	{Name: consts.COMPONENT_TELEMETRY, Required: false, New: telemetry.New},
	{Name: consts.COMPONENT_PROMETHEUS, Required: false, New: prometheus.New},
	{Name: consts.COMPONENT_MYSQL, Required: false, New: mysql.New},
	{Name: consts.COMPONENT_MYSQL_GORM, Required: false, New: mysqlgorm.New},
	{Name: consts.COMPONENT_POSTGRES_GORM, Required: false, New: postgresgorm.New},
	{Name: consts.COMPONENT_REDIS, Required: false, New: redis.New},
	{Name: consts.COMPONENT_HTTP_CLIENTS, Required: false, New: httpclient.New},
	{Name: consts.COMPONENT_HTTP_SERVER, Required: false, New: httpserver.New},
	{Name: consts.COMPONENT_GRPC_CLIENTS, Required: false, New: grpcclient.New},
	{Name: consts.COMPONENT_GRPC_SERVER, Required: false, New: grpcserver.New},
}

func main() {
	env := flag.String("env", "", "deployment environment (development, test, production)")
	configPath := flag.String("config", "", "path to the YAML configuration file")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown deadline")
	flag.Parse()

	logger := manager.BootstrapLogger()
	defer logger.Sync()

	cfgManager := config.NewManager(*env, *configPath)
	cfg, err := cfgManager.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	m, err := manager.New(cfg, componentList, nil)
	if err != nil {
		logger.Fatal("boot", zap.Error(err))
	}

	m.RunUntilSignal(*shutdownTimeout)
}
