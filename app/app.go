package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loxodon-net/loxodon/activitypub"
	"github.com/loxodon-net/loxodon/db"
	"github.com/loxodon-net/loxodon/domain"
	"github.com/loxodon-net/loxodon/util"
	"github.com/loxodon-net/loxodon/web"
)

// instanceActorName is the reserved local account signing this server's
// outbound fetches.
const instanceActorName = "loxodon.internal"

// App wires the federation core together and owns process lifecycle.
type App struct {
	config    *util.AppConfig
	engine    *gin.Engine
	processor *activitypub.Processor
	done      chan os.Signal
}

// New creates a new App instance with the given configuration
func New(conf *util.AppConfig) (*App, error) {
	return &App{
		config: conf,
		done:   make(chan os.Signal, 1),
	}, nil
}

// Initialize opens the database, ensures the instance actor exists, and
// builds the federation pipeline.
func (a *App) Initialize() error {
	log.Println("Opening database...")
	database := db.GetDB()

	instanceActor, keypair, err := ensureInstanceActor(database)
	if err != nil {
		return fmt.Errorf("failed to set up instance actor: %w", err)
	}

	domainName := a.config.Conf.SslDomain
	gate := activitypub.NewGate(a.config.Conf.Federation)
	fetcher := activitypub.NewFetcher(gate, domainName)

	keyId := fmt.Sprintf("https://%s/users/%s#main-key", domainName, instanceActor.Username)
	if err := fetcher.SetSigningKey(keypair.PrivatePem, keyId); err != nil {
		return fmt.Errorf("failed to load instance actor key: %w", err)
	}

	a.processor = activitypub.NewProcessor(a.config, fetcher, gate)
	a.engine = web.NewRouter(a.config, a.processor)
	return nil
}

// Start runs the HTTP server and blocks until a shutdown signal arrives.
func (a *App) Start() error {
	signal.Notify(a.done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-a.done
		cancel()
	}()

	return web.Serve(ctx, a.config, a.engine)
}

// ensureInstanceActor creates the reserved signing account on first boot.
func ensureInstanceActor(database *db.DB) (*domain.User, *domain.Keypair, error) {
	err, user := database.ReadUserByAcct(instanceActorName, "")
	if err == nil && user != nil {
		err, keypair := database.ReadKeypairByUserId(user.Id)
		if err != nil || keypair == nil {
			return nil, nil, fmt.Errorf("instance actor exists but has no keypair")
		}
		return user, keypair, nil
	}

	log.Println("Creating instance actor...")
	user = &domain.User{
		Id:        uuid.New(),
		Username:  instanceActorName,
		IsLocked:  true,
		CreatedAt: time.Now(),
	}
	if err := database.CreateUser(user); err != nil {
		return nil, nil, err
	}

	keys := util.GeneratePemKeypair()
	keypair := &domain.Keypair{
		UserId:     user.Id,
		PublicPem:  keys.Public,
		PrivatePem: keys.Private,
		CreatedAt:  time.Now(),
	}
	if err := database.CreateKeypair(keypair); err != nil {
		return nil, nil, err
	}
	return user, keypair, nil
}
