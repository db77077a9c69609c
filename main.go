package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DavidGamba/go-getoptions"
	"github.com/cyverse-de/configurate"
	"github.com/cyverse-de/go-mod/otelutils"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"

	"github.com/adminhub/notification-client/api"
	"github.com/adminhub/notification-client/bus"
	"github.com/adminhub/notification-client/common"
	"github.com/adminhub/notification-client/journal"
	"github.com/adminhub/notification-client/model"
	"github.com/adminhub/notification-client/store"
	"github.com/adminhub/notification-client/transport"
)

var log = logrus.WithField("service", common.ServiceName)

// defaultConfig provides the fallback values for settings that aren't present
// in the configuration file.
const defaultConfig = `
notifications:
  base: http://localhost:8080
  ws: ws://localhost:8080/ws/notifications
  user: ""

auth:
  token: ""

db:
  uri: ""
`

// commandLineOptionValues represents the values of the command-line options that were passed on the command line when
// this client was invoked.
type commandLineOptionValues struct {
	Config   string
	User     string
	LogLevel string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	// Default option values.
	defaultConfigPath := "/etc/adminhub/notification-client.yml"

	// Define the command-line options.
	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", defaultConfigPath,
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.StringVar(&optionValues.User, "user", "",
		opt.Alias("u"),
		opt.Description("the user to receive notifications for, overriding the configuration file"))
	opt.StringVar(&optionValues.LogLevel, "log-level", "info",
		opt.Description("the logging level to use"))

	// Parse the command line, handling requests for help and usage errors.
	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprintf(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprintf(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

func main() {
	// Parse the command-line.
	optionValues := parseCommandLine()

	// Initialize logging.
	common.InitLogging(optionValues.LogLevel)

	// Initialize tracing.
	var tracerContext, cancel = context.WithCancel(context.Background())
	defer cancel()
	shutdown := otelutils.TracerProviderFromEnv(tracerContext, common.ServiceName, func(e error) { log.Fatal(e) })
	defer shutdown()

	// Read in the configuration file.
	cfg, err := configurate.InitDefaults(optionValues.Config, defaultConfig)
	if err != nil {
		log.Fatal(err)
	}

	// Determine the user to receive notifications for.
	userID := optionValues.User
	if userID == "" {
		userID = cfg.GetString("notifications.user")
	}
	if userID == "" {
		log.Fatal("no user specified; use --user or set notifications.user in the configuration file")
	}

	// Build the core: one bus, one store, one transport per session.
	credentials := api.StaticCredential(cfg.GetString("auth.token"))
	eventBus := bus.New()
	apiClient := api.NewClient(cfg.GetString("notifications.base"), credentials)
	notificationStore := store.New(apiClient, eventBus)
	defer notificationStore.Dispose()

	// Journal deliveries to the database when one is configured.
	if databaseURI := cfg.GetString("db.uri"); databaseURI != "" {
		db, err := journal.InitDatabase("postgres", databaseURI)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		recorder := journal.NewRecorder(db)
		eventBus.Subscribe(bus.ChannelNewNotification, recorder.HandleDelivery)
	}

	// Tail every delivery to the log.
	eventBus.Subscribe(bus.ChannelNewNotification, func(payload interface{}) {
		notification, ok := payload.(*model.Notification)
		if !ok {
			return
		}
		log.Infof("[%s/%s] %s: %s",
			notification.Type, notification.Priority, notification.Title, notification.Message)
	})

	// Connect to the push channel.
	pushClient := transport.NewClient(
		transport.Settings{Endpoint: cfg.GetString("notifications.ws")},
		credentials,
		eventBus,
	)
	defer pushClient.Close()
	err = pushClient.Connect(userID)
	if err != nil {
		log.Fatal(err)
	}

	// Seed the store with the first page and the aggregate counts.
	notificationStore.LoadNotifications(context.Background(), userID, 0, store.DefaultPageSize)
	notificationStore.LoadStats(context.Background(), userID)
	log.Infof("loaded %d of %d notifications, %d unread",
		len(notificationStore.Notifications()), notificationStore.TotalElements(), notificationStore.UnreadCount())

	// Run until interrupted.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
	log.Info("shutting down")
}
