// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"fmt"
	"net"

	"github.com/linksmart/go-sec/auth/obtainer"
	sc "github.com/linksmart/service-catalog/v3/catalog"
	"github.com/linksmart/service-catalog/v3/client"
	"github.com/linksmart/wot-servient/discovery"
	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

// register the directory as a DNS-SD Service
func registerDNSSDService(conf *Config, ifaces []net.Interface) (func(), error) {
	logrus.Infof("Registering DNS-SD service with Service Instance Name: %s.%s.%s Subtype: %s",
		discovery.EscapeInstance(conf.DNSSD.Publish.Instance), wot.DNSSDServiceType, conf.DNSSD.Publish.Domain, wot.DNSSDServiceSubtypeDirectory)

	sd, err := discovery.RegisterDirectory(
		conf.DNSSD.Publish.Instance,
		conf.DNSSD.Publish.Domain,
		conf.BindPort,
		ifaces,
		Version,
	)
	if err != nil {
		return nil, err
	}

	return sd.Shutdown, nil
}

// interfaces resolves the configured network interface names; nil means all
func interfaces(names []string) ([]net.Interface, error) {
	var ifaces []net.Interface
	for _, name := range names {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("error finding interface %s: %s", name, err)
		}
		ifaces = append(ifaces, *iface)
	}
	return ifaces, nil
}

// newTicketClient sets up a ticket obtainer if auth is enabled
func newTicketClient(conf ObtainerConf) (*obtainer.Client, error) {
	if !conf.Enabled {
		return nil, nil
	}
	ticket, err := obtainer.NewClient(conf.Provider, conf.ProviderURL, conf.Username, conf.Password, conf.ClientID)
	if err != nil {
		return nil, fmt.Errorf("error creating auth client: %s", err)
	}
	return ticket, nil
}

// register in LinkSmart Service Catalog
func registerInServiceCatalog(conf *Config) (func() error, error) {

	cat := conf.ServiceCatalog

	service := sc.Service{
		ID:          conf.ServiceID,
		Type:        wot.DNSSDServiceType,
		Title:       "LinkSmart WoT Servient",
		Description: conf.Description,
		APIs: []sc.API{{
			ID:       "things",
			Title:    "Thing Directory API",
			Protocol: "HTTP",
			URL:      conf.PublicEndpoint,
			Spec: sc.Spec{
				MediaType: wot.MediaTypeThingDescription,
			},
			Meta: map[string]interface{}{
				"apiVersion": Version,
			},
		}, {
			ID:       "events",
			Title:    "Directory Notifications",
			Protocol: "HTTP",
			URL:      conf.PublicEndpoint + "/events",
			Spec: sc.Spec{
				MediaType: "text/event-stream",
			},
		}},
		Doc: conf.PublicEndpoint,
		TTL: uint32(conf.ServiceCatalog.Ttl),
	}

	ticket, err := newTicketClient(cat.Auth)
	if err != nil {
		return nil, err
	}

	stopRegistrator, _, err := client.RegisterServiceAndKeepalive(cat.Endpoint, service, ticket)
	if err != nil {
		return nil, fmt.Errorf("error registering service: %s", err)
	}

	return stopRegistrator, nil
}
