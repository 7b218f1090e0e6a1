// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/codegangsta/negroni"
	"github.com/gorilla/context"
	"github.com/justinas/alice"
	_ "github.com/linksmart/go-sec/auth/keycloak/obtainer"
	_ "github.com/linksmart/go-sec/auth/keycloak/validator"
	"github.com/linksmart/go-sec/auth/validator"
	"github.com/linksmart/wot-servient/catalog"
	"github.com/linksmart/wot-servient/discovery"
	"github.com/linksmart/wot-servient/notification"
	"github.com/linksmart/wot-servient/servient"
	"github.com/linksmart/wot-servient/wot"
	"github.com/rs/cors"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

const LINKSMART = `
╦   ╦ ╔╗╔ ╦╔═  ╔═╗ ╔╦╗ ╔═╗ ╦═╗ ╔╦╗
║   ║ ║║║ ╠╩╗  ╚═╗ ║║║ ╠═╣ ╠╦╝  ║
╩═╝ ╩ ╝╚╝ ╩ ╩  ╚═╝ ╩ ╩ ╩ ╩ ╩╚═  ╩
`

var (
	confPath    = flag.String("conf", "conf/wot-servient.json", "Configuration file path (JSON or YAML)")
	schemaPaths = flag.String("schema", "", "Comma-separated paths of additional JSON Schemas for TD validation")
	version     = flag.Bool("version", false, "Print the API version")
	Version     string // set with build flags
	BuildNumber string // set with build flags
)

func main() {
	flag.Parse()
	if *version {
		fmt.Println(Version)
		return
	}

	fmt.Print(LINKSMART)
	logrus.Info("Starting WoT Servient")
	defer logrus.Info("Stopped.")

	if Version != "" {
		logrus.Infof("Version: %s", Version)
	}
	if BuildNumber != "" {
		logrus.Infof("Build Number: %s", BuildNumber)
	}

	config, err := loadConfig(*confPath)
	if err != nil {
		logrus.Fatalf("Error reading config file: %s", err)
	}
	logrus.Infof("Loaded config file: %s", *confPath)
	if config.ServiceID == "" {
		config.ServiceID = uuid.NewV4().String()
		logrus.Infof("Service ID not set. Generated new UUID: %s", config.ServiceID)
	}

	if *schemaPaths != "" {
		err = wot.LoadJSONSchemas(strings.Split(*schemaPaths, ","))
		if err != nil {
			logrus.Fatalf("Error loading validation JSON Schemas: %s", err)
		}
		logrus.Infof("Loaded JSON Schemas: %s", *schemaPaths)
	}

	// Setup API storage
	var storage catalog.Storage
	switch config.Storage.Type {
	case catalog.BackendLevelDB:
		storage, err = catalog.NewLevelDBStorage(config.Storage.DSN, nil)
		if err != nil {
			logrus.Fatalf("Failed to start LevelDB storage: %s", err)
		}
	case catalog.BackendMemory:
		storage = catalog.NewMemoryStorage()
	}
	defer storage.Close()

	controller, err := catalog.NewController(storage)
	if err != nil {
		logrus.Fatalf("Failed to start the controller: %s", err)
	}
	defer controller.Stop()

	// Setup notifications
	var eventQueue notification.EventQueue
	switch config.Notification.Storage.Type {
	case catalog.BackendLevelDB:
		eventQueue, err = notification.NewLevelDBEventQueue(config.Notification.Storage.DSN, nil, config.Notification.Capacity, logrus.StandardLogger())
		if err != nil {
			logrus.Fatalf("Failed to start LevelDB event queue: %s", err)
		}
	case catalog.BackendMemory:
		eventQueue = notification.NewMemoryEventQueue(config.Notification.Capacity)
	}
	defer eventQueue.Close()

	notificationController := notification.NewController(eventQueue, logrus.StandardLogger())
	defer notificationController.Stop()
	controller.AddSubscriber(notificationController)

	// Setup the servient with its discovery collaborators
	s, shutdown, err := setupServient(config, controller)
	if err != nil {
		logrus.Fatalf("Failed to setup the servient: %s", err)
	}
	defer shutdown()

	for _, path := range config.Things {
		if err := produceThing(s, path); err != nil {
			logrus.Errorf("Error exposing Thing from %s: %s", path, err)
		}
	}

	// Create API objects
	api := catalog.NewHTTPAPI(controller, Version)
	sseAPI := notification.NewSSEAPI(notificationController, Version, logrus.StandardLogger())

	nRouter, err := setupHTTPRouter(config, s, api, sseAPI)
	if err != nil {
		logrus.Fatalf("Failed to setup the router: %s", err)
	}
	// Start listener
	addr := fmt.Sprintf("%s:%d", config.BindAddr, config.BindPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logrus.Fatalf("Failed to listen on %s: %s", addr, err)
	}
	logrus.Infof("HTTP server listening on %v", addr)
	go func() { logrus.Fatalln(http.Serve(listener, nRouter)) }()

	// Publish service using DNS-SD
	if config.DNSSD.Publish.Enabled {
		ifaces, err := interfaces(config.DNSSD.Publish.Interfaces)
		if err != nil {
			logrus.Fatalf("Invalid DNS-SD config: %s", err)
		}
		shutdown, err := registerDNSSDService(config, ifaces)
		if err != nil {
			logrus.Errorf("Failed to register DNS-SD service: %s", err)
		} else {
			defer shutdown()
		}
	}

	// Register in the LinkSmart Service Catalog
	if config.ServiceCatalog.Enabled {
		unregisterService, err := registerInServiceCatalog(config)
		if err != nil {
			logrus.Fatalf("Error registering service: %s", err)
		}
		// Unregister from the Service Catalog
		defer unregisterService()
	}

	logrus.Info("Ready!")

	// Ctrl+C / Kill handling
	handler := make(chan os.Signal, 1)
	signal.Notify(handler, os.Interrupt, syscall.SIGTERM)
	<-handler
	logrus.Info("Shutting down...")
}

// setupServient creates the servient, advertising exposed Things in the local directory and
// over the enabled DNS-SD and MQTT discovery mechanisms
func setupServient(config *Config, controller catalog.CatalogController) (*servient.Servient, func(), error) {
	logger := logrus.StandardLogger()
	var closers []func()
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ticket, err := newTicketClient(config.DirectoryAuth)
	if err != nil {
		return nil, nil, err
	}
	directoryClient := discovery.NewDirectoryClient(ticket, logger)

	opts := []servient.Option{
		servient.WithLogger(logger),
		servient.WithDirectoryClient(directoryClient),
		servient.WithFetcher(directoryClient),
		servient.WithAdvertiser(catalog.NewLocalAdvertiser(controller)),
	}

	if config.DNSSD.Browse.Enabled {
		solicitor := discovery.NewDNSSDSolicitor(config.DNSSD.Browse.Domain, directoryClient, logger)
		opts = append(opts,
			servient.WithSolicitor(servient.DiscoveryMulticast, solicitor),
			servient.WithSolicitor(servient.DiscoveryNearby, solicitor),
		)
	}
	if config.DNSSD.Publish.Enabled {
		ifaces, err := interfaces(config.DNSSD.Publish.Interfaces)
		if err != nil {
			return nil, nil, err
		}
		advertiser := discovery.NewDNSSDAdvertiser(config.DNSSD.Publish.Domain, config.BindPort, "/td/", ifaces, logger)
		closers = append(closers, advertiser.Shutdown)
		opts = append(opts, servient.WithAdvertiser(advertiser))
	}
	if config.MQTT.Enabled {
		clientID := config.MQTT.ClientID
		if clientID == "" {
			clientID = config.ServiceID
		}
		client, err := discovery.NewMQTTClient(discovery.MQTTConfig{
			Broker:   config.MQTT.Broker,
			ClientID: clientID,
			Username: config.MQTT.Username,
			Password: config.MQTT.Password,
		}, logger)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Disconnect(250) })
		opts = append(opts,
			servient.WithAdvertiser(discovery.NewMQTTAnnouncer(client, config.MQTT.TopicPrefix, logger)),
			servient.WithSolicitor(servient.DiscoveryBroadcast, discovery.NewMQTTSolicitor(client, config.MQTT.TopicPrefix, logger)),
		)
	}

	s := servient.New(opts...)
	// destroy the exposed Things before their advertisers go away
	closers = append(closers, s.Shutdown)
	return s, shutdown, nil
}

// produceThing exposes the Thing described by the TD template file
func produceThing(s *servient.Servient, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mediaType := wot.MediaTypeJSON
	if strings.ToLower(filepath.Ext(path)) == ".cbor" {
		mediaType = wot.MediaTypeCBOR
	}
	var model wot.ThingDescription
	if err := wot.Unmarshal(mediaType, b, &model); err != nil {
		return fmt.Errorf("error decoding TD template: %s", err)
	}

	thing, err := s.Produce(model)
	if err != nil {
		return err
	}
	if err := thing.Expose(); err != nil {
		return err
	}
	logrus.WithField("thing", thing.ID()).Infof("Exposed %s", model.Title)
	return nil
}

func setupHTTPRouter(config *Config, s *servient.Servient, api *catalog.HTTPAPI, sseAPI *notification.SSEAPI) (*negroni.Negroni, error) {

	commonHandlers := alice.New(
		context.ClearHandler,
	)

	// Append auth handler if enabled
	if config.Auth.Enabled {
		// Setup ticket validator
		v, err := validator.Setup(
			config.Auth.Provider,
			config.Auth.ProviderURL,
			config.Auth.ClientID,
			config.Auth.BasicEnabled,
			config.Auth.Authz)
		if err != nil {
			return nil, err
		}

		commonHandlers = commonHandlers.Append(v.Handler)
	}

	// Configure http api router
	r := newRouter()
	r.get("/", commonHandlers.ThenFunc(indexHandler(s)))

	r.get("/td", commonHandlers.ThenFunc(api.GetMany))
	r.get("/td/filter/{path}/{op}/{value:.*}", commonHandlers.ThenFunc(api.Filter)) // deprecated

	r.post("/td", commonHandlers.ThenFunc(api.Post))
	r.get("/td/{id:.+}", commonHandlers.ThenFunc(api.Get))
	r.put("/td/{id:.+}", commonHandlers.ThenFunc(api.Put))
	r.patch("/td/{id:.+}", commonHandlers.ThenFunc(api.Patch))
	r.delete("/td/{id:.+}", commonHandlers.ThenFunc(api.Delete))

	r.get("/search/jsonpath", commonHandlers.ThenFunc(api.SearchJSONPath))
	r.get("/search/xpath", commonHandlers.ThenFunc(api.SearchXPath))

	r.get("/validation", commonHandlers.ThenFunc(api.GetValidation))

	r.get("/events", commonHandlers.ThenFunc(sseAPI.SubscribeEvent))
	r.get("/events/{type}", commonHandlers.ThenFunc(sseAPI.SubscribeEvent))

	logger := negroni.NewLogger()
	logger.ALogger = logrus.StandardLogger()
	logger.SetFormat("{{.Method}} {{.Request.URL}} {{.Status}} {{.Duration}}")

	// Configure the middleware
	n := negroni.New(
		negroni.NewRecovery(),
		logger,
		cors.New(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", notification.HeaderLastEventID},
			ExposedHeaders: []string{"Location"},
		}),
	)
	// Mount router
	n.UseHandler(r)

	return n, nil
}
