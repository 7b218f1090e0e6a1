package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/linksmart/wot-servient/servient"
	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

var (
	_ servient.Advertiser = (*DNSSDAdvertiser)(nil)
	_ servient.Solicitor  = (*DNSSDSolicitor)(nil)
)

// DNS-SD TXT type values
const (
	TypeThing     = "Thing"
	TypeDirectory = "Directory"
)

// EscapeInstance escapes the special characters of a Service Instance Name (RFC 6763, section 4.3)
func EscapeInstance(instance string) string {
	instance = strings.ReplaceAll(instance, "\\", "\\\\")
	return strings.ReplaceAll(instance, ".", "\\.")
}

// DNSSDAdvertiser publishes a _thing._sub._wot._tcp service for every exposed Thing.
// The TD is expected under TDPath + id on the advertised port.
type DNSSDAdvertiser struct {
	Domain string
	Port   int
	// e.g. /td/
	TDPath string
	// Interfaces to publish on; all when empty
	Interfaces []net.Interface

	log *logrus.Entry

	mu      sync.Mutex
	servers map[string]*zeroconf.Server
}

func NewDNSSDAdvertiser(domain string, port int, tdPath string, ifaces []net.Interface, logger logrus.FieldLogger) *DNSSDAdvertiser {
	return &DNSSDAdvertiser{
		Domain:     domain,
		Port:       port,
		TDPath:     tdPath,
		Interfaces: ifaces,
		log:        logger.WithField("component", "dnssd"),
		servers:    make(map[string]*zeroconf.Server),
	}
}

// Advertise registers the Thing's service, replacing an earlier registration of the same Thing
func (a *DNSSDAdvertiser) Advertise(td wot.ThingDescription) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if server, found := a.servers[td.ID]; found {
		server.Shutdown()
		delete(a.servers, td.ID)
	}

	instance := EscapeInstance(td.Title)
	text := thingText(a.TDPath+td.ID, "http")
	server, err := zeroconf.Register(
		instance,
		wot.DNSSDServiceType+","+wot.DNSSDServiceSubtypeThing,
		a.Domain,
		a.Port,
		text,
		a.Interfaces,
	)
	if err != nil {
		return fmt.Errorf("error registering DNS-SD service for %s: %w", td.ID, err)
	}
	a.servers[td.ID] = server
	a.log.WithField("thing", td.ID).Infof("Registered DNS-SD service instance %s.%s.%s", instance, wot.DNSSDServiceType, a.Domain)
	return nil
}

func (a *DNSSDAdvertiser) Withdraw(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, found := a.servers[id]
	if !found {
		return nil
	}
	server.Shutdown()
	delete(a.servers, id)
	a.log.WithField("thing", id).Info("Removed DNS-SD service instance")
	return nil
}

// Shutdown removes all registrations
func (a *DNSSDAdvertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, server := range a.servers {
		server.Shutdown()
		delete(a.servers, id)
	}
}

// RegisterDirectory publishes a Thing Directory as _directory._sub._wot._tcp
func RegisterDirectory(instance, domain string, port int, ifaces []net.Interface, version string) (*zeroconf.Server, error) {
	text := thingText("/td", "http")
	text[1] = wot.DNSSDTextType + "=" + TypeDirectory
	if version != "" {
		text = append(text, "version="+version)
	}
	return zeroconf.Register(
		EscapeInstance(instance),
		wot.DNSSDServiceType+","+wot.DNSSDServiceSubtypeDirectory,
		domain,
		port,
		text,
		ifaces,
	)
}

func thingText(tdPath, scheme string) []string {
	return []string{
		wot.DNSSDTextTD + "=" + tdPath,
		wot.DNSSDTextType + "=" + TypeThing,
		wot.DNSSDTextScheme + "=" + scheme,
	}
}

// DNSSDSolicitor browses for WoT services. TDs of Things are fetched, directories are listed.
type DNSSDSolicitor struct {
	Domain string
	Client *DirectoryClient

	log *logrus.Entry
}

func NewDNSSDSolicitor(domain string, client *DirectoryClient, logger logrus.FieldLogger) *DNSSDSolicitor {
	return &DNSSDSolicitor{
		Domain: domain,
		Client: client,
		log:    logger.WithField("component", "dnssd"),
	}
}

// Solicit browses until ctx is done
func (s *DNSSDSolicitor) Solicit(ctx context.Context) (<-chan wot.ThingDescription, error) {
	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("error creating DNS-SD resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, wot.DNSSDServiceType, s.Domain, entries); err != nil {
		return nil, fmt.Errorf("error browsing DNS-SD: %w", err)
	}

	out := make(chan wot.ThingDescription)
	go func() {
		defer close(out)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				s.resolve(ctx, entry, out)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *DNSSDSolicitor) resolve(ctx context.Context, entry *zeroconf.ServiceEntry, out chan<- wot.ThingDescription) {
	log := s.log.WithField("instance", entry.Instance)
	endpoint, kind, err := entryURL(entry)
	if err != nil {
		log.Debugf("Skipping service: %s", err)
		return
	}

	var tds []wot.ThingDescription
	switch kind {
	case TypeDirectory:
		tds, err = s.Client.Search(ctx, endpoint, "")
	default:
		var td wot.ThingDescription
		td, err = s.Client.Fetch(ctx, endpoint)
		tds = []wot.ThingDescription{td}
	}
	if err != nil {
		log.Warnf("Error retrieving TDs from %s: %s", endpoint, err)
		return
	}

	for _, td := range tds {
		select {
		case out <- td:
		case <-ctx.Done():
			return
		}
	}
}

// entryURL returns the TD or directory URL of the service and its type
func entryURL(entry *zeroconf.ServiceEntry) (string, string, error) {
	text := parseText(entry.Text)

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return "", "", fmt.Errorf("no address")
	}

	scheme := text[wot.DNSSDTextScheme]
	if scheme == "" {
		scheme = "http"
	}
	kind := text[wot.DNSSDTextType]
	if kind == "" {
		kind = TypeThing
	}

	path := text[wot.DNSSDTextTD]
	if kind == TypeDirectory {
		// the directory API is addressed relative to its root
		path = strings.TrimSuffix(path, "/td")
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + path, kind, nil
}

func parseText(text []string) map[string]string {
	m := make(map[string]string, len(text))
	for _, t := range text {
		k, v, _ := strings.Cut(t, "=")
		m[k] = v
	}
	return m
}
