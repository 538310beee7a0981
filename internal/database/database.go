package database

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	embeddedDataPath = "./db_data"
	embeddedPort     = 5433
)

// DB is the gorm handle plus the embedded server it may own.
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// stopOrphan stops a postgres left running in dataPath by a crashed process
// and removes its pid file.
func stopOrphan(dataPath string, log logrus.FieldLogger) {
	pidFile := filepath.Join(dataPath, "postmaster.pid")
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}
	defer os.Remove(pidFile)

	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		log.WithError(err).Warn("unreadable postmaster.pid")
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil || !alive(proc) {
		log.WithField("pid", pid).Info("removing stale postmaster.pid")
		return
	}

	log.WithField("pid", pid).Warn("orphaned postgres found, stopping")
	_ = proc.Signal(syscall.SIGTERM)
	if waitFor(5*time.Second, func() bool { return !alive(proc) }) {
		return
	}
	log.WithField("pid", pid).Warn("postgres ignored SIGTERM, killing")
	_ = proc.Kill()
	time.Sleep(500 * time.Millisecond)
}

func alive(p *os.Process) bool {
	return p.Signal(syscall.Signal(0)) == nil
}

func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// waitFor polls cond every 500ms until it holds or d elapses.
func waitFor(d time.Duration, cond func() bool) bool {
	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
		if cond() {
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return cond()
}

// Embedded reports whether cfg selects the embedded server: localhost and no
// password.
func Embedded(cfg config.DatabaseConfig) bool {
	return cfg.Host == "localhost" && cfg.Password == ""
}

// Connect opens the configured database, starting embedded postgres when
// Embedded(cfg).
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	return ConnectWith(cfg, embeddedDataPath, embeddedPort)
}

// ConnectWith is Connect with an explicit data directory and port for the
// embedded server.
func ConnectWith(cfg config.DatabaseConfig, dataPath string, port int) (*DB, error) {
	log := config.GetLogger()
	var embedded *embeddedpostgres.EmbeddedPostgres

	password := cfg.Password
	if Embedded(cfg) {
		var err error
		embedded, err = startEmbedded(cfg, dataPath, port, log)
		if err != nil {
			return nil, err
		}
		cfg.Port = strconv.Itoa(port)
		password = "postgres"
	} else {
		log.WithFields(logrus.Fields{"host": cfg.Host, "port": cfg.Port}).Info("database mode: external postgres")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.Username, password, cfg.Database)

	logLevel := logger.Warn
	if cfg.Alter {
		logLevel = logger.Silent
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("database connection established")
	return &DB{DB: db, embedded: embedded}, nil
}

// Close closes the pool and stops the embedded server if this process
// started it.
func (db *DB) Close() error {
	var errs []error
	if sqlDB, err := db.DB.DB(); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, sqlDB.Close())
	}
	if db.embedded != nil {
		config.GetLogger().Info("stopping embedded postgres")
		errs = append(errs, db.embedded.Stop())
	}
	return errors.Join(errs...)
}

// AutoMigrate creates or updates the tables of models.
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

func startEmbedded(cfg config.DatabaseConfig, dataPath string, port int, log *logrus.Logger) (*embeddedpostgres.EmbeddedPostgres, error) {
	log.WithField("data", dataPath).Info("database mode: embedded postgres")
	stopOrphan(dataPath, log)

	if portInUse(port) {
		log.WithField("port", port).Warn("port still in use, waiting for release")
		if !waitFor(3*time.Second, func() bool { return !portInUse(port) }) {
			return nil, fmt.Errorf("embedded postgres: port %d is in use by another process", port)
		}
	}

	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(dataPath).
		Port(uint32(port)).
		Database(cfg.Database).
		Username(cfg.Username).
		Password("postgres").
		Logger(log.WriterLevel(logrus.DebugLevel)))
	if err := pg.Start(); err != nil {
		return nil, fmt.Errorf("start embedded postgres: %w", err)
	}
	log.WithField("port", port).Info("embedded postgres started")
	return pg, nil
}
