package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/FleetAssign/FleetAssign/internal/assignment"
	"github.com/FleetAssign/FleetAssign/internal/common/config"
	"github.com/FleetAssign/FleetAssign/internal/common/db"
	"github.com/FleetAssign/FleetAssign/internal/common/lock"
	"github.com/FleetAssign/FleetAssign/internal/common/logger"
	"github.com/FleetAssign/FleetAssign/internal/common/metrics"
	"github.com/FleetAssign/FleetAssign/internal/common/middleware"
	"github.com/FleetAssign/FleetAssign/internal/common/server"
	"github.com/FleetAssign/FleetAssign/internal/common/tracing"
	"github.com/FleetAssign/FleetAssign/internal/user"
	"github.com/FleetAssign/FleetAssign/internal/vehicle"
)

func main() {
	configPath := flag.String("config", "configs/assignment-service.json", "path to config file")
	consulHost := flag.String("consul-host", "localhost", "consul host for KV config")
	consulPort := flag.Int("consul-port", 8500, "consul port for KV config")
	consulKey := flag.String("consul-config-key", "", "consul KV key holding JSON config (overrides -config)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *consulKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulHost, *consulPort, *consulKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}

	// 链路追踪
	tracer, closer, err := tracing.InitTracer(cfg.Server.Name, cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		opentracing.SetGlobalTracer(tracer)
		defer closer.Close()
	}

	// 数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := gormDB.AutoMigrate(&vehicle.Vehicle{}, &user.User{}, &assignment.Assignment{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// 车辆级互斥锁：多实例部署用 Redis，单实例退化为进程内锁
	var locker lock.ResourceLocker
	switch cfg.Lock.Mode {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		locker = lock.NewRedisLocker(client, cfg.Lock.KeyPrefix, time.Duration(cfg.Lock.TTLSeconds)*time.Second)
		log.Infof("vehicle lock mode: redis (%s:%d)", cfg.Redis.Host, cfg.Redis.Port)
	default:
		locker = lock.NewLocalLocker()
		log.Infof("vehicle lock mode: local")
	}

	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// 组装调度核心
	store := assignment.NewRepo(gormDB)
	ledger := assignment.NewLedger(store, locker, log)
	resolver := assignment.NewResolver(store, log)
	vehicleRepo := vehicle.NewRepo(gormDB)
	svc := assignment.NewService(store, ledger, resolver, vehicleRepo, log, recorder)

	assignmentHandler := assignment.NewHandler(svc)
	vehicleHandler := vehicle.NewHandler(gormDB)
	userHandler := user.NewHandler(gormDB, cfg.Auth)

	err = server.RunHTTPServer(cfg, log, func(mux *http.ServeMux) error {
		assignmentHandler.RegisterRoutes(mux)
		vehicleHandler.RegisterRoutes(mux)
		userHandler.RegisterRoutes(mux)
		return nil
	},
		server.WithRateLimiter(middleware.NewTokenBucket(200, 100)),
		server.WithShutdownTimeout(10*time.Second),
	)
	if err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
