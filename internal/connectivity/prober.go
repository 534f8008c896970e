package connectivity

import (
	"context"
	"net"
	"strings"
	"time"
)

const defaultProbeInterval = 10 * time.Second

// Iface is the subset of [net.Interface] the prober inspects.
type Iface struct {
	Name     string
	Up       bool
	Loopback bool
}

// Prober is a [Source] for hosts without network callbacks. It samples the
// interface list and dials a probe address on a ticker, emitting an event
// whenever the derived capabilities change.
type Prober struct {
	Address  string
	Interval time.Duration
	Timeout  time.Duration

	interfaces func() ([]Iface, error)
	dial       func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewProber creates a Prober dialing address (host:port) every interval.
func NewProber(address string, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	d := &net.Dialer{}
	return &Prober{
		Address:    address,
		Interval:   interval,
		Timeout:    3 * time.Second,
		interfaces: systemInterfaces,
		dial:       d.DialContext,
	}
}

// Events implements [Source].
func (p *Prober) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		var last *Capabilities
		for {
			ev, caps := p.next(ctx, last)
			if ev != nil {
				select {
				case out <- *ev:
				case <-ctx.Done():
					return
				}
			}
			last = &caps

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

// Check performs a single probe and returns the corresponding event.
func (p *Prober) Check(ctx context.Context) Event {
	caps := p.sample(ctx)
	if caps.Transport == None {
		return Event{Kind: Lost}
	}
	return Event{Kind: Available, Capabilities: caps}
}

func (p *Prober) next(ctx context.Context, last *Capabilities) (*Event, Capabilities) {
	caps := p.sample(ctx)
	switch {
	case last != nil && *last == caps:
		return nil, caps
	case caps.Transport == None:
		return &Event{Kind: Lost}, caps
	case last == nil || last.Transport == None:
		return &Event{Kind: Available, Capabilities: caps}, caps
	default:
		return &Event{Kind: CapabilitiesChanged, Capabilities: caps}, caps
	}
}

func (p *Prober) sample(ctx context.Context) Capabilities {
	ifaces, err := p.interfaces()
	if err != nil {
		return Capabilities{Transport: None}
	}

	transport := None
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}
		t := Classify(iface.Name)
		if transport == None || rank(t) > rank(transport) {
			transport = t
		}
	}
	if transport == None {
		return Capabilities{Transport: None}
	}

	reachable := p.reachable(ctx)
	return Capabilities{
		Transport:   transport,
		HasInternet: reachable,
		Validated:   reachable,
		NotMetered:  transport != Cellular,
	}
}

func (p *Prober) reachable(ctx context.Context) bool {
	if p.Address == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	conn, err := p.dial(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Classify maps an interface name to a transport.
func Classify(name string) ConnectionType {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "wl"), strings.HasPrefix(n, "wifi"), strings.HasPrefix(n, "wi-fi"):
		return WiFi
	case strings.HasPrefix(n, "wwan"), strings.HasPrefix(n, "rmnet"), strings.HasPrefix(n, "ppp"), strings.HasPrefix(n, "pdp_ip"):
		return Cellular
	case strings.HasPrefix(n, "en"), strings.HasPrefix(n, "eth"), strings.HasPrefix(n, "ethernet"):
		return Ethernet
	default:
		return Unknown
	}
}

// rank prefers wired over wireless over cellular when several interfaces are up.
func rank(t ConnectionType) int {
	switch t {
	case Ethernet:
		return 4
	case WiFi:
		return 3
	case Cellular:
		return 2
	case Unknown:
		return 1
	default:
		return 0
	}
}

func systemInterfaces() ([]Iface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Iface, 0, len(ifaces))
	for _, i := range ifaces {
		out = append(out, Iface{
			Name:     i.Name,
			Up:       i.Flags&net.FlagUp != 0,
			Loopback: i.Flags&net.FlagLoopback != 0,
		})
	}
	return out, nil
}

// StaticSource emits a single event and then idles until cancelled.
// Used when connectivity probing is disabled.
type StaticSource struct {
	Event Event
}

// Events implements [Source].
func (s StaticSource) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)
	out <- s.Event
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

// AssumeOnline is the event fed by [StaticSource] when probing is disabled.
var AssumeOnline = Event{
	Kind: Available,
	Capabilities: Capabilities{
		Transport:   Ethernet,
		HasInternet: true,
		Validated:   true,
		NotMetered:  true,
	},
}
