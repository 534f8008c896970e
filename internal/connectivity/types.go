package connectivity

// ConnectionType is the transport backing the active network.
type ConnectionType int

const (
	None ConnectionType = iota
	WiFi
	Cellular
	Ethernet
	Unknown
)

func (c ConnectionType) String() string {
	switch c {
	case None:
		return "none"
	case WiFi:
		return "wifi"
	case Cellular:
		return "cellular"
	case Ethernet:
		return "ethernet"
	default:
		return "unknown"
	}
}

// Quality is a coarse score of how well the active network can carry API traffic.
type Quality int

const (
	Poor Quality = iota
	Fair
	Good
	Excellent
)

func (q Quality) String() string {
	switch q {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Fair:
		return "fair"
	default:
		return "poor"
	}
}

// Recommendation is the user facing advice for a quality level.
func (q Quality) Recommendation() string {
	switch q {
	case Excellent:
		return "network quality is excellent"
	case Good:
		return "network quality is good"
	case Fair:
		return "network quality is fair, this may affect your experience"
	default:
		return "network quality is poor, consider switching to another network"
	}
}

// Capabilities describes the active network as reported by the host.
type Capabilities struct {
	Transport             ConnectionType
	HasInternet           bool
	Validated             bool
	NotMetered            bool
	TemporarilyNotMetered bool
}

// NetworkInfo is an immutable snapshot of connectivity state.
type NetworkInfo struct {
	Connected   bool
	Type        ConnectionType
	Quality     Quality
	HasInternet bool
	Validated   bool
	Metered     bool
}

// AvailableForRequests reports whether API calls should be attempted at all.
func (n NetworkInfo) AvailableForRequests() bool {
	return n.Connected && n.Quality != Poor
}

// Disconnected is the state with no active network.
var Disconnected = NetworkInfo{Type: None, Quality: Poor}

// Evaluate derives a [NetworkInfo] from host capabilities.
func Evaluate(c Capabilities) NetworkInfo {
	return NetworkInfo{
		Connected:   c.HasInternet && c.Validated,
		Type:        c.Transport,
		Quality:     quality(c),
		HasInternet: c.HasInternet,
		Validated:   c.Validated,
		Metered:     !c.NotMetered && !c.TemporarilyNotMetered,
	}
}

// quality checks metering first, then the transport.
func quality(c Capabilities) Quality {
	switch {
	case c.NotMetered:
		return Excellent
	case c.TemporarilyNotMetered:
		return Good
	}
	switch c.Transport {
	case WiFi:
		return Good
	case Ethernet:
		return Excellent
	case Cellular:
		return Fair
	default:
		return Poor
	}
}

// EventKind enumerates host network callbacks.
type EventKind int

const (
	Available EventKind = iota
	Lost
	CapabilitiesChanged
)

func (k EventKind) String() string {
	switch k {
	case Available:
		return "available"
	case Lost:
		return "lost"
	case CapabilitiesChanged:
		return "capabilities_changed"
	default:
		return "unknown"
	}
}

// Event is a single host network callback.
type Event struct {
	Kind         EventKind
	Capabilities Capabilities
}
