package main

import (
	"flag"
	"runtime"
	"strconv"
	"strings"

	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/maidsafe/sn-data-types-sub001/auth"
	"github.com/maidsafe/sn-data-types-sub001/comm"
	"github.com/maidsafe/sn-data-types-sub001/config"
	"github.com/maidsafe/sn-data-types-sub001/crdt"
	"github.com/maidsafe/sn-data-types-sub001/crypto"
	"github.com/maidsafe/sn-data-types-sub001/node"
	"github.com/maidsafe/sn-data-types-sub001/policy"
	"github.com/maidsafe/sn-data-types-sub001/types"
	"github.com/satori/go.uuid"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initKeyDirectory opens the key directory adapter
// specified in the config to be consulted for identity
// lookups and source key checks.
func initKeyDirectory(conf *config.Config, env *config.Env) (auth.KeyDirectory, error) {

	switch conf.KeyDirectory.Adapter {
	case "KeyPostgres":

		password := conf.KeyDirectory.KeyPostgres.Password
		if (env != nil) && (env.KeyDBPassword != "") {
			password = env.KeyDBPassword
		}

		// Connect to PostgreSQL database.
		return auth.NewPostgresDirectory(
			conf.KeyDirectory.KeyPostgres.IP,
			conf.KeyDirectory.KeyPostgres.Port,
			conf.KeyDirectory.KeyPostgres.Database,
			conf.KeyDirectory.KeyPostgres.User,
			password,
			conf.KeyDirectory.KeyPostgres.UseTLS,
		)
	case "KeyPostgreSQL":

		password := conf.KeyDirectory.KeyPostgres.Password
		if (env != nil) && (env.KeyDBPassword != "") {
			password = env.KeyDBPassword
		}

		sslmode := "disable"
		if conf.KeyDirectory.KeyPostgres.UseTLS {
			sslmode = "require"
		}

		// Connect to PostgreSQL database via ORM layer.
		return auth.NewPostgreSQLDirectory(
			conf.KeyDirectory.KeyPostgres.IP,
			strconv.Itoa(int(conf.KeyDirectory.KeyPostgres.Port)),
			conf.KeyDirectory.KeyPostgres.Database,
			conf.KeyDirectory.KeyPostgres.User,
			password,
			sslmode,
		)
	default: // KeyFile
		// Open key file and read identity information.
		return auth.NewFileDirectory(
			conf.KeyDirectory.KeyFile.File,
			conf.KeyDirectory.KeyFile.Separator,
		)
	}
}

// ownerPolicy builds the initial access policy of a hosted
// instance: the owner holds every permission, everyone else
// only what the namespace kind implies.
func ownerPolicy(kind types.Kind, owner auth.PublicKey) policy.Policy {

	if kind == types.KindPrivate {
		return policy.Private{
			PolicyOwner: owner,
			Permissions: map[policy.User]policy.PrivatePermissions{},
		}
	}

	return policy.Public{
		PolicyOwner: owner,
		Permissions: map[policy.User]policy.PublicPermissions{},
	}
}

// registerInstances creates all data instances declared in
// the config and places them into supplied registry so that
// incoming sync operations find them.
func registerInstances(registry *node.Registry, directory auth.KeyDirectory, actor string, instances []config.Instance) error {

	for _, inst := range instances {

		ownerKey, err := directory.PublicKeyFor(inst.Owner)
		if err != nil {
			return err
		}

		kind := types.KindPublic
		if inst.Namespace == "private" {
			kind = types.KindPrivate
		}

		addr := types.NewAddress(kind, inst.Name, inst.Tag)

		switch inst.Kind {
		case "sequence":
			err = registry.AddSequence(crdt.InitSequence(addr, actor, ownerPolicy(kind, ownerKey)))
		case "register":
			err = registry.AddRegister(crdt.InitRegister(addr, ownerPolicy(kind, ownerKey)))
		case "map":
			// A map starts without a policy and waits for
			// the owner's first policy operation.
			err = registry.AddMap(crdt.InitMap(addr, actor))
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func main() {

	// Set usable CPUs to all available.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Parse command-line flags.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", ".env", "Provide path to a file containing deployment secrets.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config",
			"err", err,
		)
		os.Exit(1)
	}

	// Secrets are optional when the key directory does
	// not need a database password.
	env, err := config.LoadEnv(*envFlag)
	if err != nil {
		level.Debug(logger).Log(
			"msg", "no env file loaded, continuing without deployment secrets",
			"err", err,
		)
	}

	directory, err := initKeyDirectory(conf, env)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize the key directory",
			"err", err,
		)
		os.Exit(2)
	}

	// Data written on this replica carries this actor id
	// in its item identifiers.
	actor := uuid.NewV4().String()

	registry := node.InitRegistry(logger, directory)

	err = registerInstances(registry, directory, actor, conf.Instances)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to register a declared data instance",
			"err", err,
		)
		os.Exit(3)
	}

	tlsConfig, err := crypto.NewSyncTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc, conf.TLS.RootCertLoc)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to build the sync TLS config",
			"err", err,
		)
		os.Exit(4)
	}

	socket, err := node.InitSyncSocket(logger, tlsConfig, conf.Replica.ListenSyncAddr)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to open the sync socket",
			"err", err,
		)
		os.Exit(5)
	}

	syncMetrics := NewSyncMetrics(conf.Replica.PrometheusAddr)
	go runPromHTTP(logger, conf.Replica.PrometheusAddr)

	// Outgoing operations pass through the durable send
	// log before they reach any peer.
	syncSendChan, err := comm.InitSender(logger, conf.Replica.Name, conf.Replica.SendLog, tlsConfig, conf.Replica.SyncTimeout, conf.Replica.SyncRetry, conf.Peers)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize the sender",
			"err", err,
		)
		os.Exit(6)
	}
	registry.ConnectSender(syncSendChan)

	downRecv := make(chan struct{})

	recv, err := comm.InitReceiver(logger, conf.Replica.Name, conf.Replica.RecvLog, socket, registry, syncMetrics, downRecv)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize the receiver",
			"err", err,
		)
		os.Exit(7)
	}

	level.Info(logger).Log(
		"msg", "replica node running",
		"name", conf.Replica.Name,
		"instances", len(conf.Instances),
		"peers", len(conf.Peers),
	)

	// Wait for an external termination signal, then shut
	// the receiver down in an orderly fashion.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	level.Info(logger).Log("msg", "shutting down")

	downRecv <- struct{}{}
	<-recv.Done()
}
