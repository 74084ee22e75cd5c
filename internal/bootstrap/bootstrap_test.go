package bootstrap

import (
	"errors"
	"strings"
	"testing"

	"liveconnect/internal/debugreg"
	"liveconnect/internal/eventbus"
	"liveconnect/internal/logging"
	"liveconnect/internal/pagetoken"
)

type fakeChannel struct {
	connects int
}

func (c *fakeChannel) Connect() { c.connects++ }

type fakeIndicator struct {
	starts int
	dones  int
}

func (i *fakeIndicator) Start() { i.starts++ }
func (i *fakeIndicator) Done()  { i.dones++ }

type factoryRecorder struct {
	calls   int
	configs []ChannelConfig
	channel *fakeChannel
}

func (f *factoryRecorder) build(cfg ChannelConfig) (Channel, error) {
	f.calls++
	f.configs = append(f.configs, cfg)
	return f.channel, nil
}

func parsePage(t *testing.T, html string) *pagetoken.Document {
	t.Helper()
	doc, err := pagetoken.Parse(strings.NewReader(html))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

const tokenPage = `<html><head><meta name="csrf-token" content="tok-123"></head><body></body></html>`

func newFixture(t *testing.T, html string) (*Bootstrapper, *factoryRecorder, *fakeIndicator, *eventbus.Bus) {
	t.Helper()
	factory := &factoryRecorder{channel: &fakeChannel{}}
	indicator := &fakeIndicator{}
	bus := eventbus.New()
	b := New(Options{}, Deps{
		Document:   parsePage(t, html),
		Bus:        bus,
		Indicator:  indicator,
		NewChannel: factory.build,
	}, logging.Discard())
	return b, factory, indicator, bus
}

func TestBoot_ChannelConfigCarriesToken(t *testing.T) {
	b, factory, _, _ := newFixture(t, tokenPage)

	handle, err := b.Boot()
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if got := handle.Config.Params[DefaultTokenParam]; got != "tok-123" {
		t.Fatalf("token param = %q, want tok-123", got)
	}
	if len(handle.Config.Params) != 1 {
		t.Fatalf("params = %#v, want exactly one key", handle.Config.Params)
	}
	if factory.calls != 1 || factory.configs[0].Params[DefaultTokenParam] != "tok-123" {
		t.Fatalf("factory saw %#v", factory.configs)
	}
}

func TestBoot_MissingTokenFailsBeforeConnect(t *testing.T) {
	b, factory, indicator, bus := newFixture(t, `<html><head><title>no token</title></head></html>`)

	handle, err := b.Boot()
	if !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("Boot() err = %v, want ErrTokenMissing", err)
	}
	if !errors.Is(err, pagetoken.ErrElementMissing) {
		t.Fatalf("Boot() err = %v, want wrapped ErrElementMissing", err)
	}
	if handle != nil {
		t.Fatalf("Boot() returned a handle on failure")
	}
	if factory.calls != 0 || factory.channel.connects != 0 {
		t.Fatalf("factory calls = %d, connects = %d; want none", factory.calls, factory.channel.connects)
	}
	if n := bus.ListenerCount(eventbus.PageLoadingStart) + bus.ListenerCount(eventbus.PageLoadingStop); n != 0 {
		t.Fatalf("listeners registered on failure: %d", n)
	}
	bus.Dispatch(eventbus.PageLoadingStart, eventbus.Detail{})
	if indicator.starts != 0 {
		t.Fatalf("indicator driven without a boot")
	}
}

func TestBoot_EmptyTokenIsMissing(t *testing.T) {
	b, factory, _, _ := newFixture(t, `<html><head><meta name="csrf-token" content="  "></head></html>`)
	if _, err := b.Boot(); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("Boot() err = %v, want ErrTokenMissing", err)
	}
	if factory.calls != 0 {
		t.Fatalf("factory called for empty token")
	}
}

func TestBoot_StartSignalDrivesIndicatorStart(t *testing.T) {
	b, _, indicator, bus := newFixture(t, tokenPage)
	if _, err := b.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		bus.Dispatch(eventbus.PageLoadingStart, eventbus.Detail{Kind: eventbus.KindInitial})
		if indicator.starts != i || indicator.dones != 0 {
			t.Fatalf("after %d start signals: starts = %d, dones = %d", i, indicator.starts, indicator.dones)
		}
	}
}

func TestBoot_StopSignalDrivesIndicatorDone(t *testing.T) {
	b, _, indicator, bus := newFixture(t, tokenPage)
	if _, err := b.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	for i := 1; i <= 2; i++ {
		bus.Dispatch(eventbus.PageLoadingStop, eventbus.Detail{})
		if indicator.dones != i || indicator.starts != 0 {
			t.Fatalf("after %d stop signals: dones = %d, starts = %d", i, indicator.dones, indicator.starts)
		}
	}
}

func TestPublishDebug_PublishesConnectedHandle(t *testing.T) {
	b, factory, _, _ := newFixture(t, tokenPage)
	handle, err := b.Boot()
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	registry := debugreg.New()
	if err := PublishDebug(registry, handle); err != nil {
		t.Fatalf("PublishDebug() error = %v", err)
	}
	published, ok := registry.Lookup(DebugName)
	if !ok || published == nil {
		t.Fatalf("debug slot empty")
	}
	if published != Channel(factory.channel) {
		t.Fatalf("published %v, want the channel that was connected", published)
	}
	if factory.channel.connects != 1 {
		t.Fatalf("connects = %d, want 1", factory.channel.connects)
	}
}

func TestBoot_RepeatedBootConnectsOnce(t *testing.T) {
	b, factory, indicator, bus := newFixture(t, tokenPage)

	first, err := b.Boot()
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	second, err := b.Boot()
	if err != nil {
		t.Fatalf("second Boot() error = %v", err)
	}
	if first != second {
		t.Fatalf("Boot() returned a different handle")
	}
	if factory.calls != 1 || factory.channel.connects != 1 {
		t.Fatalf("factory calls = %d, connects = %d; want 1 and 1", factory.calls, factory.channel.connects)
	}
	bus.Dispatch(eventbus.PageLoadingStart, eventbus.Detail{})
	if indicator.starts != 1 {
		t.Fatalf("start bound %d times", indicator.starts)
	}
}

func TestHandleClose_UnbindsSignals(t *testing.T) {
	b, _, indicator, bus := newFixture(t, tokenPage)
	handle, err := b.Boot()
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	handle.Close()
	handle.Close()

	bus.Dispatch(eventbus.PageLoadingStart, eventbus.Detail{})
	bus.Dispatch(eventbus.PageLoadingStop, eventbus.Detail{})
	if indicator.starts != 0 || indicator.dones != 0 {
		t.Fatalf("indicator driven after Close: %#v", indicator)
	}
}

func TestBoot_CustomTokenNames(t *testing.T) {
	factory := &factoryRecorder{channel: &fakeChannel{}}
	b := New(Options{TokenMeta: "x-token", TokenParam: "_token"}, Deps{
		Document:   parsePage(t, `<html><head><meta name="x-token" content="abc"></head></html>`),
		Bus:        eventbus.New(),
		Indicator:  &fakeIndicator{},
		NewChannel: factory.build,
	}, logging.Discard())

	handle, err := b.Boot()
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if handle.Config.Params["_token"] != "abc" {
		t.Fatalf("params = %#v", handle.Config.Params)
	}
}

func TestSignalTable_TwoRows(t *testing.T) {
	table := SignalTable(&fakeIndicator{})
	if len(table) != 2 || table[0].Signal != eventbus.PageLoadingStart || table[1].Signal != eventbus.PageLoadingStop {
		t.Fatalf("table = %#v", table)
	}
}
