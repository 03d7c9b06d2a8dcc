package board

import (
	"context"
	"sync"
	"time"

	"github.com/Koromix/tytools-sub001/device"
	"github.com/Koromix/tytools-sub001/internal/errcode"
	"github.com/Koromix/tytools-sub001/internal/msgsink"
	"github.com/Koromix/tytools-sub001/platform"
)

// DefaultDropDelay is how long a board stays MISSING before Monitor drops
// it for good, matching monitor.c's DROP_BOARD_DELAY. Overridable per
// Monitor via WithDropDelay only: the same 15s default applies on every
// OS, and no environment variable is read.
const DefaultDropDelay = 15 * time.Second

// CallbackFunc is notified of every board lifecycle transition. Returning
// remove=true deregisters the callback (a one-shot "wait for this"
// helper does this); a non-nil error is logged and further callbacks in
// this round are skipped, matching change_board_status's "stop calling
// if one returns < 0" rule.
type CallbackFunc func(b *Board, event Event) (remove bool, err error)

type registeredCallback struct {
	id int
	f  CallbackFunc
}

type ifaceEntry struct {
	iface  *device.Interface
	board  *Board
	driver ClassDriver
}

// Monitor watches a platform.HAL's hotplug stream and keeps a live Board
// set, grounded on monitor.c's ty_monitor. Unlike ty_monitor, which
// drives itself from a caller-pumped descriptor-set poll loop, Monitor
// runs its own goroutines against the HAL's already-asynchronous
// Hotplug channel and a periodic missing-board sweep, since Go gives it
// a natural place to do so.
type Monitor struct {
	hal       platform.HAL
	dropDelay time.Duration

	mu         sync.Mutex
	boards     []*Board
	byNode     map[string]ifaceEntry
	callbacks  []registeredCallback
	nextCBID   int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor over hal with the default drop delay.
func New(hal platform.HAL) *Monitor {
	return &Monitor{
		hal:       hal,
		dropDelay: DefaultDropDelay,
		byNode:    make(map[string]ifaceEntry),
	}
}

// WithDropDelay overrides the MISSING-to-DROPPED timeout.
func (m *Monitor) WithDropDelay(d time.Duration) *Monitor {
	m.dropDelay = d
	return m
}

// Start performs an initial enumeration, then begins watching for
// hotplug events and sweeping missing boards until ctx is cancelled or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	devs, err := m.hal.Enumerate(nil)
	if err != nil {
		return errcode.Wrap(errcode.IO, err, "enumerating devices")
	}
	for _, raw := range devs {
		m.addInterfaceForDevice(raw)
	}

	events, err := m.hal.Hotplug(ctx)
	if err != nil {
		return errcode.Wrap(errcode.IO, err, "starting hotplug watch")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(2)
	go m.watchHotplug(runCtx, events)
	go m.sweepLoop(runCtx)
	return nil
}

// Stop halts hotplug watching and the missing-board sweep.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) watchHotplug(ctx context.Context, events <-chan platform.HotplugEvent) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Added {
				m.addInterfaceForDevice(ev.Device)
			} else {
				m.removeInterfaceForDevice(ev.Device)
			}
		}
	}
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	tick := m.dropDelay / 8
	if tick < 200*time.Millisecond {
		tick = 200 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepMissing()
		}
	}
}

func (m *Monitor) sweepMissing() {
	now := m.hal.Millis()
	dropMillis := m.dropDelay.Milliseconds()

	m.mu.Lock()
	var expired []*Board
	for _, b := range m.boards {
		b.mu.Lock()
		if b.status == StatusMissing && now-b.missingSince >= dropMillis {
			expired = append(expired, b)
		}
		b.mu.Unlock()
	}
	m.mu.Unlock()

	for _, b := range expired {
		m.dropBoard(b)
	}
}

func (m *Monitor) boardByLocation(location string) *Board {
	for _, b := range m.boards {
		if b.Location() == location {
			return b
		}
	}
	return nil
}

// addInterfaceForDevice claims raw with the first matching class driver,
// folds it into a (possibly new) Board, and fires an Added/Changed
// callback round, mirroring add_interface_for_device.
func (m *Monitor) addInterfaceForDevice(raw platform.RawDevice) {
	driver, name, ok := matchDriver(raw)
	if !ok {
		return
	}

	dev := device.Device{Raw: raw}
	iface := &device.Interface{
		Device: dev,
		Port:   device.NewPort(m.hal, dev),
		Name:   name,
	}

	loaded, err := driver.LoadInterface(raw, iface)
	if err != nil {
		msgsink.Log(msgsink.LevelWarning, msgsink.ComponentBoard, err,
			"loading interface %s", raw.Node)
		return
	}
	if !loaded {
		return
	}

	m.mu.Lock()
	board := m.boardByLocation(raw.Location)
	event := EventChanged
	isNew := board == nil
	if board == nil {
		board = newBoard(raw.Location)
		m.boards = append(m.boards, board)
		event = EventAdded
	}

	compatible, err := driver.UpdateBoard(iface, board, isNew)
	if err != nil {
		m.mu.Unlock()
		msgsink.Log(msgsink.LevelWarning, msgsink.ComponentBoard, err,
			"updating board at %s", raw.Location)
		return
	}
	if !compatible {
		// The existing identity at this location no longer matches;
		// drop it and start over with a fresh Board, per
		// update_or_create_board's incompatible-interface branch.
		m.removeBoardLocked(board)
		m.mu.Unlock()
		m.setStatus(board, StatusDropped, EventDropped)

		m.mu.Lock()
		board = newBoard(raw.Location)
		if _, err := driver.UpdateBoard(iface, board, true); err != nil {
			m.mu.Unlock()
			return
		}
		m.boards = append(m.boards, board)
		event = EventAdded
	}

	board.mu.Lock()
	board.vendorID, board.productID = raw.VendorID, raw.ProductID
	board.ifaces = append(board.ifaces, iface)
	board.drivers[iface] = driver
	board.recomputeCapabilities()
	board.mu.Unlock()

	board.monitor = m
	m.byNode[raw.Node] = ifaceEntry{iface: iface, board: board, driver: driver}
	m.mu.Unlock()

	m.setStatus(board, StatusOnline, event)
}

func (m *Monitor) removeInterfaceForDevice(raw platform.RawDevice) {
	m.mu.Lock()
	entry, ok := m.byNode[raw.Node]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byNode, raw.Node)
	board := entry.board

	board.mu.Lock()
	for i, it := range board.ifaces {
		if it == entry.iface {
			board.ifaces = append(board.ifaces[:i], board.ifaces[i+1:]...)
			break
		}
	}
	delete(board.drivers, entry.iface)
	board.recomputeCapabilities()
	remaining := len(board.ifaces)
	board.mu.Unlock()
	m.mu.Unlock()

	if remaining == 0 {
		m.setStatus(board, StatusMissing, EventDisappeared)
	} else {
		m.setStatus(board, StatusOnline, EventChanged)
	}
}

// removeBoardLocked removes b from the monitor's board list. Caller must
// hold m.mu.
func (m *Monitor) removeBoardLocked(b *Board) {
	for i, it := range m.boards {
		if it == b {
			m.boards = append(m.boards[:i], m.boards[i+1:]...)
			return
		}
	}
}

func (m *Monitor) dropBoard(b *Board) {
	m.mu.Lock()
	m.removeBoardLocked(b)
	m.mu.Unlock()
	m.setStatus(b, StatusDropped, EventDropped)
}

// setStatus transitions b to status, arming missing_since on the
// MISSING transition, then fires the callback round for event.
func (m *Monitor) setStatus(b *Board, status Status, event Event) {
	b.mu.Lock()
	if status == StatusMissing && b.status != StatusMissing {
		b.status = StatusMissing
		b.missingSince = m.hal.Millis()
	} else {
		b.status = status
	}
	b.mu.Unlock()

	m.fireCallbacks(b, event)
}

func (m *Monitor) fireCallbacks(b *Board, event Event) {
	m.mu.Lock()
	cbs := make([]registeredCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()

	var kept []registeredCallback
	stopped := false
	for _, cb := range cbs {
		if stopped {
			kept = append(kept, cb)
			continue
		}
		remove, err := cb.f(b, event)
		if err != nil {
			msgsink.Log(msgsink.LevelWarning, msgsink.ComponentBoard, err, "board callback")
			stopped = true
			kept = append(kept, cb)
			continue
		}
		if !remove {
			kept = append(kept, cb)
		}
	}

	m.mu.Lock()
	m.callbacks = kept
	m.mu.Unlock()
}

// RegisterCallback adds f to the notification list and returns an id
// usable with DeregisterCallback.
func (m *Monitor) RegisterCallback(f CallbackFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextCBID
	m.nextCBID++
	m.callbacks = append(m.callbacks, registeredCallback{id: id, f: f})
	return id
}

// DeregisterCallback removes a previously registered callback by id.
func (m *Monitor) DeregisterCallback(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cb := range m.callbacks {
		if cb.id == id {
			m.callbacks = append(m.callbacks[:i], m.callbacks[i+1:]...)
			return
		}
	}
}

// Boards returns every board the monitor currently knows about
// (ONLINE, MISSING or about to be swept), matching ty_monitor_list's
// backing store before the ONLINE filter.
func (m *Monitor) Boards() []*Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Board, len(m.boards))
	copy(out, m.boards)
	return out
}

// List returns only the currently ONLINE boards, matching
// ty_monitor_list.
func (m *Monitor) List() []*Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Board
	for _, b := range m.boards {
		if b.Status() == StatusOnline {
			out = append(out, b)
		}
	}
	return out
}

// FindTag returns the first board matching idPattern, or nil.
func (m *Monitor) FindTag(idPattern string) *Board {
	for _, b := range m.Boards() {
		if b.MatchesTag(idPattern) {
			return b
		}
	}
	return nil
}

// WaitFor blocks until b gains capability cap, b is dropped, ctx is
// cancelled, or timeout elapses (timeout <= 0 means wait forever),
// matching ty_board_wait_for/wait_for_callback. ok is true only on the
// capability-gained case.
func (m *Monitor) WaitFor(ctx context.Context, b *Board, cap device.Capability, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	const pollInterval = 50 * time.Millisecond
	for {
		if b.Status() == StatusDropped {
			return false, errcode.New(errcode.NotFound, "board '%s' has disappeared", b.Tag())
		}
		if b.HasCapability(cap) {
			return true, nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
