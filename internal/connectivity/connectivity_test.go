package connectivity

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		caps          Capabilities
		wantConnected bool
		wantQuality   Quality
		wantMetered   bool
		wantAvailable bool
	}{
		{
			name:          "Unmetered Wifi",
			caps:          Capabilities{Transport: WiFi, HasInternet: true, Validated: true, NotMetered: true},
			wantConnected: true, wantQuality: Excellent, wantAvailable: true,
		},
		{
			name:          "Temporarily Unmetered Cellular",
			caps:          Capabilities{Transport: Cellular, HasInternet: true, Validated: true, TemporarilyNotMetered: true},
			wantConnected: true, wantQuality: Good, wantAvailable: true,
		},
		{
			name:          "Metered Wifi",
			caps:          Capabilities{Transport: WiFi, HasInternet: true, Validated: true},
			wantConnected: true, wantQuality: Good, wantMetered: true, wantAvailable: true,
		},
		{
			name:          "Metered Ethernet",
			caps:          Capabilities{Transport: Ethernet, HasInternet: true, Validated: true},
			wantConnected: true, wantQuality: Excellent, wantMetered: true, wantAvailable: true,
		},
		{
			name:          "Cellular",
			caps:          Capabilities{Transport: Cellular, HasInternet: true, Validated: true},
			wantConnected: true, wantQuality: Fair, wantMetered: true, wantAvailable: true,
		},
		{
			name:          "Unknown Transport",
			caps:          Capabilities{Transport: Unknown, HasInternet: true, Validated: true},
			wantConnected: true, wantQuality: Poor, wantMetered: true, wantAvailable: false,
		},
		{
			name:          "Captive Portal",
			caps:          Capabilities{Transport: WiFi, HasInternet: true, NotMetered: true},
			wantConnected: false, wantQuality: Excellent, wantAvailable: false,
		},
		{
			name:          "No Internet",
			caps:          Capabilities{Transport: Ethernet, Validated: true, NotMetered: true},
			wantConnected: false, wantQuality: Excellent, wantAvailable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Evaluate(tt.caps)
			if info.Connected != tt.wantConnected {
				t.Errorf("expected connected %v, got %v", tt.wantConnected, info.Connected)
			}
			if info.Quality != tt.wantQuality {
				t.Errorf("expected quality %v, got %v", tt.wantQuality, info.Quality)
			}
			if info.Metered != tt.wantMetered {
				t.Errorf("expected metered %v, got %v", tt.wantMetered, info.Metered)
			}
			if info.AvailableForRequests() != tt.wantAvailable {
				t.Errorf("expected available %v, got %v", tt.wantAvailable, info.AvailableForRequests())
			}
		})
	}
}

func TestQualityRecommendation(t *testing.T) {
	for _, q := range []Quality{Poor, Fair, Good, Excellent} {
		if q.Recommendation() == "" {
			t.Errorf("expected recommendation for %v", q)
		}
	}
	if Poor.Recommendation() == Excellent.Recommendation() {
		t.Error("expected distinct recommendations")
	}
}

func TestMonitor(t *testing.T) {
	online := Event{Kind: Available, Capabilities: Capabilities{Transport: WiFi, HasInternet: true, Validated: true, NotMetered: true}}

	t.Run("Starts Disconnected", func(t *testing.T) {
		m := NewMonitor(nil)
		if m.IsConnected() {
			t.Error("expected disconnected monitor")
		}
		if m.Type() != None || m.Quality() != Poor {
			t.Errorf("expected none/poor, got %v/%v", m.Type(), m.Quality())
		}
		if m.IsAvailableForRequests() {
			t.Error("expected requests to be gated")
		}
	})

	t.Run("Handle Available Then Lost", func(t *testing.T) {
		m := NewMonitor(nil)
		m.Handle(online)
		if !m.IsAvailableForRequests() {
			t.Fatal("expected requests to be allowed")
		}
		if m.Type() != WiFi {
			t.Errorf("expected wifi, got %v", m.Type())
		}

		m.Handle(Event{Kind: Lost})
		if m.Snapshot() != Disconnected {
			t.Errorf("expected disconnected snapshot, got %+v", m.Snapshot())
		}
	})

	t.Run("Capabilities Changed Downgrades Quality", func(t *testing.T) {
		m := NewMonitor(nil)
		m.Handle(online)
		m.Handle(Event{Kind: CapabilitiesChanged, Capabilities: Capabilities{Transport: Cellular, HasInternet: true, Validated: true}})

		if m.Quality() != Fair {
			t.Errorf("expected fair, got %v", m.Quality())
		}
		if m.Recommendation() != Fair.Recommendation() {
			t.Errorf("unexpected recommendation %q", m.Recommendation())
		}
	})

	t.Run("Subscribe Receives Current And Updates", func(t *testing.T) {
		m := NewMonitor(nil)
		ch, unsubscribe := m.Subscribe(4)
		defer unsubscribe()

		if first := <-ch; first != Disconnected {
			t.Errorf("expected initial snapshot, got %+v", first)
		}

		m.Handle(online)
		select {
		case info := <-ch:
			if !info.Connected {
				t.Error("expected connected snapshot")
			}
		case <-time.After(time.Second):
			t.Fatal("expected update")
		}
	})

	t.Run("Slow Subscriber Does Not Block", func(t *testing.T) {
		m := NewMonitor(nil)
		_, unsubscribe := m.Subscribe(1)
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				m.Handle(online)
				m.Handle(Event{Kind: Lost})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("expected Handle not to block on a full subscriber")
		}
	})

	t.Run("Slow Subscriber Receives Latest", func(t *testing.T) {
		for _, buffer := range []int{1, 3} {
			m := NewMonitor(nil)
			ch, unsubscribe := m.Subscribe(buffer)

			m.Handle(Event{Kind: Lost})
			m.Handle(online)

			var last NetworkInfo
			n := 0
		read:
			for {
				select {
				case info := <-ch:
					last = info
					n++
				default:
					break read
				}
			}

			if n != 1 {
				t.Errorf("buffer %d: expected 1 queued snapshot, got %d", buffer, n)
			}
			if last != m.Snapshot() {
				t.Errorf("buffer %d: expected %+v, got %+v", buffer, m.Snapshot(), last)
			}
			unsubscribe()
		}
	})

	t.Run("Unsubscribe Closes Channel", func(t *testing.T) {
		m := NewMonitor(nil)
		ch, unsubscribe := m.Subscribe(1)
		<-ch
		unsubscribe()
		unsubscribe()

		if _, ok := <-ch; ok {
			t.Error("expected closed channel")
		}
	})

	t.Run("Watch And Unregister", func(t *testing.T) {
		m := NewMonitor(nil)
		ch, _ := m.Subscribe(4)
		<-ch

		m.Watch(context.Background(), StaticSource{Event: AssumeOnline})

		select {
		case info := <-ch:
			if !info.Connected || info.Quality != Excellent {
				t.Errorf("expected online snapshot, got %+v", info)
			}
		case <-time.After(time.Second):
			t.Fatal("expected event from source")
		}

		m.Unregister()
		if _, ok := <-ch; ok {
			t.Error("expected subscriptions to be closed")
		}

		m.Handle(Event{Kind: Lost})
		if !m.IsConnected() {
			t.Error("expected events after unregister to be ignored")
		}

		late, _ := m.Subscribe(1)
		if _, ok := <-late; ok {
			t.Error("expected subscription after unregister to be closed")
		}
		m.Unregister()
	})
}

type stubConn struct{ net.Conn }

func (stubConn) Close() error { return nil }

func newTestProber(ifaces []Iface, dialErr error) *Prober {
	p := NewProber("probe.invalid:53", time.Millisecond)
	p.interfaces = func() ([]Iface, error) { return ifaces, nil }
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return stubConn{}, nil
	}
	return p
}

func TestProber(t *testing.T) {
	t.Run("Classify", func(t *testing.T) {
		tests := []struct {
			name string
			want ConnectionType
		}{
			{"wlan0", WiFi},
			{"wlp3s0", WiFi},
			{"eth0", Ethernet},
			{"enp0s31f6", Ethernet},
			{"wwan0", Cellular},
			{"rmnet_data0", Cellular},
			{"docker0", Unknown},
		}
		for _, tt := range tests {
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
			}
		}
	})

	t.Run("Check Prefers Wired", func(t *testing.T) {
		p := newTestProber([]Iface{
			{Name: "lo", Up: true, Loopback: true},
			{Name: "wlan0", Up: true},
			{Name: "eth0", Up: true},
		}, nil)

		ev := p.Check(context.Background())
		if ev.Kind != Available {
			t.Fatalf("expected available, got %v", ev.Kind)
		}
		if ev.Capabilities.Transport != Ethernet {
			t.Errorf("expected ethernet, got %v", ev.Capabilities.Transport)
		}
		if !ev.Capabilities.Validated {
			t.Error("expected validated network")
		}
	})

	t.Run("Check Without Interfaces", func(t *testing.T) {
		p := newTestProber([]Iface{{Name: "lo", Up: true, Loopback: true}, {Name: "eth0"}}, nil)
		if ev := p.Check(context.Background()); ev.Kind != Lost {
			t.Errorf("expected lost, got %v", ev.Kind)
		}
	})

	t.Run("Unreachable Probe Is Not Validated", func(t *testing.T) {
		p := newTestProber([]Iface{{Name: "wlan0", Up: true}}, errors.New("no route"))
		ev := p.Check(context.Background())

		info := Evaluate(ev.Capabilities)
		if info.Connected {
			t.Error("expected unvalidated network to be disconnected")
		}
	})

	t.Run("Cellular Is Metered", func(t *testing.T) {
		p := newTestProber([]Iface{{Name: "wwan0", Up: true}}, nil)
		info := Evaluate(p.Check(context.Background()).Capabilities)
		if !info.Metered || info.Quality != Fair {
			t.Errorf("expected metered fair cellular, got %+v", info)
		}
	})

	t.Run("Events Emits Only Changes", func(t *testing.T) {
		p := newTestProber([]Iface{{Name: "eth0", Up: true}}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		events := p.Events(ctx)

		first := <-events
		if first.Kind != Available {
			t.Fatalf("expected available first, got %v", first.Kind)
		}

		select {
		case ev := <-events:
			t.Errorf("expected no event for unchanged state, got %v", ev.Kind)
		case <-time.After(20 * time.Millisecond):
		}

		cancel()
		for range events {
		}
	})
}
