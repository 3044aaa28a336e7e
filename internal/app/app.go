// Package app builds the store, tutor and services from Config and owns
// their lifetimes.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/suPer8Hu/germanleap/internal/ai"
	"github.com/suPer8Hu/germanleap/internal/auth"
	"github.com/suPer8Hu/germanleap/internal/chat"
	"github.com/suPer8Hu/germanleap/internal/config"
	"github.com/suPer8Hu/germanleap/internal/db"
	"github.com/suPer8Hu/germanleap/internal/httpapi/handlers"
	"github.com/suPer8Hu/germanleap/internal/store"
	"github.com/suPer8Hu/germanleap/internal/store/gormstore"
	"github.com/suPer8Hu/germanleap/internal/store/jsonstore"
	"github.com/suPer8Hu/germanleap/internal/store/rabbitmq"
	"github.com/suPer8Hu/germanleap/internal/store/redisstore"
	"github.com/suPer8Hu/germanleap/internal/store/s3blob"
	"github.com/suPer8Hu/germanleap/internal/student"
)

type App struct {
	Store    store.Store
	Tutor    *ai.Tutor
	Auth     *auth.Service
	Students *student.Service
	Chat     *chat.Service

	jobs      *redisstore.Store
	publisher *rabbitmq.Publisher
}

// New fails fast: a missing provider credential or an unreachable store
// stops startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	st, err := OpenStore(initCtx, cfg)
	if err != nil {
		return nil, err
	}

	tutor, err := ai.New(initCtx, cfg.AI())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	log.Printf("[app] ai provider=%s model=%s", tutor.Provider(), tutor.Model())

	a := &App{
		Store:    st,
		Tutor:    tutor,
		Auth:     auth.NewService(st, auth.NewHasher(cfg.BcryptCost), cfg.JWTSecret, cfg.JWTTTL),
		Students: student.NewService(st),
		Chat:     chat.NewService(st, tutor),
	}

	if cfg.ChatJobsEnabled {
		if err := a.enableJobs(cfg); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) enableJobs(cfg config.Config) error {
	jobs, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	a.jobs = jobs

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		return fmt.Errorf("init job queue: %w", err)
	}
	a.publisher = pub

	a.Chat.WithJobs(jobs, pub)
	log.Printf("[app] chat jobs enabled queue=%s redis=%s", cfg.RabbitQueue, cfg.RedisAddr)
	return nil
}

// OpenStore picks the profile/session backend named by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "file":
		st, err := jsonstore.NewDisk(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
		}
		log.Printf("[store] file data_dir=%s", cfg.DataDir)
		return st, nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("STORE_DRIVER=s3 requires S3_BUCKET")
		}
		bucket, err := s3blob.Open(ctx, s3blob.Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
		})
		if err != nil {
			return nil, err
		}
		return jsonstore.New(bucket), nil

	case "sqlite", "mysql", "postgres":
		gdb, err := db.Connect(cfg.StoreDriver, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		st := gormstore.New(gdb)
		if err := st.AutoMigrate(); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER=%q", cfg.StoreDriver)
	}
}

// Services hands the wired components to the HTTP layer.
func (a *App) Services() handlers.Services {
	return handlers.Services{
		Auth:       a.Auth,
		Students:   a.Students,
		Chat:       a.Chat,
		AIProvider: a.Tutor.Provider(),
	}
}

func (a *App) JobsEnabled() bool { return a.Chat.JobsEnabled() }

func (a *App) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.jobs != nil {
		_ = a.jobs.Close()
	}
	if a.Tutor != nil {
		_ = a.Tutor.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
