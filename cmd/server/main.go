package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"palisade/internal/audit"
	biometricmetrics "palisade/internal/biometric/metrics"
	biometricservice "palisade/internal/biometric/service"
	biometricstore "palisade/internal/biometric/store/sample"
	directorymetrics "palisade/internal/directory/metrics"
	directoryservice "palisade/internal/directory/service"
	"palisade/internal/directory/store/person"
	jwttoken "palisade/internal/jwt_token"
	"palisade/internal/ledger/cache"
	ledgermetrics "palisade/internal/ledger/metrics"
	ledgerservice "palisade/internal/ledger/service"
	ledgerstore "palisade/internal/ledger/store/event"
	"palisade/internal/platform/config"
	"palisade/internal/platform/httpserver"
	"palisade/internal/platform/logger"
	"palisade/internal/platform/postgres"
	"palisade/internal/platform/redis"
	"palisade/internal/search"
	topologyservice "palisade/internal/topology/service"
	"palisade/internal/topology/store/registry"
	httptransport "palisade/internal/transport/http"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	authmw "palisade/pkg/platform/middleware/auth"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err = kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
	}

	// Stores: postgres when configured, in-memory otherwise (dev mode).
	var (
		auditStore  audit.Store
		personStore directoryservice.PersonStore
		sampleStore biometricservice.SampleStore
		eventStore  ledgerservice.EventStore
		topoStore   topologyservice.Store
		corpus      search.PersonLister
	)
	if db != nil {
		trail := audit.NewPostgres(db)
		pgPersons := person.NewPostgres(db, trail)
		auditStore = trail
		personStore = pgPersons
		corpus = pgPersons
		sampleStore = biometricstore.NewPostgres(db)
		eventStore = ledgerstore.NewPostgres(db)
		topoStore = registry.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		trail := audit.NewInMemoryStore()
		memPersons := person.NewInMemory(trail)
		auditStore = trail
		personStore = memPersons
		corpus = memPersons
		sampleStore = biometricstore.NewInMemory()
		eventStore = ledgerstore.NewInMemory()
		topoStore = registry.NewInMemory()
	}

	auditor := audit.NewPublisher(auditStore,
		audit.WithKafka(kafkaClient, cfg.Kafka.AuditTopic),
		audit.WithLogger(log),
	)

	directory := directoryservice.New(personStore,
		directoryservice.WithLogger(log),
		directoryservice.WithAuditor(auditor),
		directoryservice.WithMetrics(directorymetrics.New()),
	)
	persons := personResolver{directory: directory}

	biometric := biometricservice.New(sampleStore, persons,
		biometricservice.WithLogger(log),
		biometricservice.WithMetrics(biometricmetrics.New()),
		biometricservice.WithTemplateScorer(biometricservice.ByteScorer{}),
	)

	topology := topologyservice.New(topoStore, topologyservice.WithLogger(log))

	ledger := ledgerservice.New(eventStore, persons, topology,
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithReplayCache(cache.NewReplay(redisClient, cfg.ReplayCacheTTL)),
	)

	searcher := search.New(corpus, search.WithLogger(log))

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "palisade")

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Directory: directory,
		Audit:     auditor,
		Biometric: biometric,
		Ledger:    ledger,
		Search:    searcher,
		Topology:  topology,
		Validator: jwtValidator{jwt: jwtService},
		Devices:   deviceVerifier{topology: topology},

		FaceThreshold: cfg.FaceMatchThreshold,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting palisade", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

// personResolver lets biometric and ledger check person existence without
// direct access to the directory store.
type personResolver struct {
	directory *directoryservice.Service
}

func (r personResolver) Exists(ctx context.Context, personID id.PersonID) (bool, error) {
	if _, err := r.directory.Get(ctx, personID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type jwtValidator struct {
	jwt *jwttoken.Service
}

func (v jwtValidator) ValidateToken(token string) (*authmw.Claims, error) {
	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{OperatorID: claims.OperatorID, Role: claims.Role}, nil
}

type deviceVerifier struct {
	topology *topologyservice.Service
}

func (v deviceVerifier) CheckDeviceSecret(ctx context.Context, serial, secret string) error {
	_, err := v.topology.VerifyDeviceSecret(ctx, serial, secret)
	return err
}
