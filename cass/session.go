package cass

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/validator.v2"
)

// Config describes a cluster connection.
type Config struct {
	Hosts       []string `validate:"min=1"`
	Keyspace    string
	Username    string
	Password    string
	Consistency string
	// seconds
	Timeout  int
	Retries  int
	Interval int
}

func DefaultConfig() *Config {
	return &Config{
		Consistency: "LOCAL_QUORUM",
		Timeout:     10,
		Retries:     1,
		Interval:    2,
	}
}

// NewSession connects to the cluster, retrying every Interval seconds.
func NewSession(cfg *Config) (*gocql.Session, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "cassandra config")
	}
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = time.Second * time.Duration(cfg.Timeout)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return nil, errors.Wrap(err, "cassandra consistency")
		}
		cluster.Consistency = c
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	var sess *gocql.Session
	var err error
	for ; retries > 0; retries-- {
		if sess, err = cluster.CreateSession(); err == nil {
			return sess, nil
		}
		log.WithFields(log.Fields{
			"hosts":    cfg.Hosts,
			"keyspace": cfg.Keyspace,
			"retries":  retries - 1,
		}).WithError(err).Warn("cannot connect to cassandra")
		if retries > 1 {
			time.Sleep(time.Second * time.Duration(cfg.Interval))
		}
	}
	return nil, errors.Wrapf(err, "connect %v", cfg.Hosts)
}
