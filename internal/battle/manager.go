// Package battle runs battle sessions: setup, the turn loop with its QRF wait,
// the submit entry points used during a combatant's turn, and settlement.
package battle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidewatch/battlecore/internal/cache"
	"github.com/tidewatch/battlecore/internal/clock"
	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/logging"
	"github.com/tidewatch/battlecore/internal/notify"
	"github.com/tidewatch/battlecore/internal/objective"
	"github.com/tidewatch/battlecore/internal/status"
	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
)

// Defaults applied to zero config values.
const (
	DefaultQRFTimeout       = 10 * time.Minute
	DefaultPollInterval     = 10 * time.Second
	DefaultReminderInterval = 5 * time.Minute
	DefaultRefreshEvery     = 3
	DefaultMapSize          = 40.0
)

// Authorizer decides who may start a battle.
type Authorizer interface {
	CanStart(playerID string) bool
}

// StaffList authorizes the listed ids. An empty list authorizes everyone.
type StaffList []string

func (l StaffList) CanStart(playerID string) bool {
	return len(l) == 0 || slices.Contains(l, playerID)
}

// Reporter is told about every settled battle, in the background.
type Reporter interface {
	ReportBattle(ctx context.Context, rec core.BattleRecord) error
}

// Dependencies holds all dependencies of the session manager. Only Config is
// required; nil collaborators are skipped.
type Dependencies struct {
	Config     config.BattleConfig
	Clock      clock.Clock
	Roller     combat.Roller
	Recorder   storage.Backend
	Players    storage.PlayerStore
	Notifier   notify.Notifier
	Cache      *cache.SnapshotCache
	Metrics    MetricsSink
	Reporter   Reporter
	Authorizer Authorizer
	LogManager *logging.SlogManager

	// PlayerHandler drives player-controlled turns; defaults to AwaitInput.
	PlayerHandler TurnHandler
	// AIHandler drives AI-controlled turns; defaults to NearestTarget.
	AIHandler TurnHandler

	// ExternalDrive disables the per-session loop; rounds then only advance
	// through AdvanceTurn.
	ExternalDrive bool
}

// Manager owns every active battle session.
type Manager struct {
	deps     Dependencies
	cfg      config.BattleConfig
	clock    clock.Clock
	resolver *combat.Resolver
	status   *status.Processor
	metrics  *instruments

	mu       sync.RWMutex
	sessions map[string]*session
	ended    map[string]bool
	loops    sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(deps Dependencies) (*Manager, error) {
	in, err := newInstruments()
	if err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewSnapshotCache()
	}
	if deps.Authorizer == nil {
		deps.Authorizer = StaffList(deps.Config.Staff)
	}
	if deps.AIHandler == nil {
		deps.AIHandler = NearestTarget{}
	}

	m := &Manager{
		deps:     deps,
		cfg:      withDefaults(deps.Config),
		clock:    deps.Clock,
		status:   status.NewProcessor(),
		metrics:  in,
		sessions: make(map[string]*session),
		ended:    make(map[string]bool),
	}
	m.resolver = combat.NewResolver(deps.Roller, combat.Durations{
		Fire:     m.cfg.FireDuration,
		Flooding: m.cfg.FloodingDuration,
	})
	if m.deps.PlayerHandler == nil {
		m.deps.PlayerHandler = &AwaitInput{
			Clock:    m.clock,
			Timeout:  m.cfg.TurnTimeout,
			Announce: m.notify,
		}
	}
	return m, nil
}

func withDefaults(cfg config.BattleConfig) config.BattleConfig {
	if cfg.QRFTimeout <= 0 {
		cfg.QRFTimeout = DefaultQRFTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = DefaultReminderInterval
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = DefaultRefreshEvery
	}
	if cfg.MapWidth <= 0 {
		cfg.MapWidth = DefaultMapSize
	}
	if cfg.MapHeight <= 0 {
		cfg.MapHeight = DefaultMapSize
	}
	return cfg
}

// Cache returns the snapshot cache sessions publish to.
func (m *Manager) Cache() *cache.SnapshotCache {
	return m.deps.Cache
}

func (m *Manager) writeLog(functionName, data, level string) {
	m.deps.LogManager.WriteLog(functionName, data, level)
}

func (m *Manager) sessionLog(sessionID, functionName, data, level string) {
	m.deps.LogManager.WriteSessionLog(sessionID, functionName, data, level)
}

// lookup finds an active session. Ended sessions report SessionExpiredError, unknown
// ones PreconditionError.
func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	if m.ended[sessionID] {
		return nil, &SessionExpiredError{SessionID: sessionID}
	}
	return nil, &PreconditionError{SessionID: sessionID, Reason: BlockNoSession}
}

// guard turns a panic in an entry point into an InternalError.
func (m *Manager) guard(sessionID, op string, err *error) {
	if r := recover(); r != nil {
		ie := recovered(sessionID, op, r)
		m.writeLog(op, ie.Error(), "ERROR")
		*err = ie
	}
}

// CreateSession registers a session in the setup phase. An empty id is generated.
func (m *Manager) CreateSession(sessionID, objectiveName string) (string, error) {
	obj, err := objective.Parse(objectiveName)
	if err != nil {
		return "", &ValidationError{Field: "objective", Reason: err.Error()}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; ok || m.ended[sessionID] {
		m.mu.Unlock()
		return "", invalid("session", "%s already exists", sessionID)
	}
	s := newSession(sessionID, obj)
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.metrics.active.Add(context.Background(), 1)
	s.mu.Lock()
	m.publish(s)
	s.mu.Unlock()

	m.writeLog("CreateSession", fmt.Sprintf("Session %s created with objective %s", sessionID, obj.Name()), "INFO")
	return sessionID, nil
}

// ActiveSessions lists the ids of registered sessions.
func (m *Manager) ActiveSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ActiveCount returns the number of registered sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetSnapshot returns a read-only copy of the session.
func (m *Manager) GetSnapshot(sessionID string) (core.Snapshot, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return core.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(m.clock.Now()), nil
}

// AddCombatant registers a combatant during setup.
func (m *Manager) AddCombatant(sessionID string, c core.Combatant) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended() {
		return &SessionExpiredError{SessionID: sessionID}
	}
	if s.phase != core.PhaseSetup {
		return &PreconditionError{SessionID: sessionID, Reason: BlockWrongPhase, Detail: []string{"use Reinforce once the battle has started"}}
	}
	if err := m.validateNew(s, c); err != nil {
		return err
	}
	s.add(c)
	m.publish(s)
	return nil
}

func (m *Manager) validateNew(s *session, c core.Combatant) error {
	if c == nil {
		return invalid("combatant", "missing")
	}
	u := c.Base()
	if u.ID == "" {
		return invalid("combatant", "id is required")
	}
	if _, ok := s.combatants[u.ID]; ok {
		return invalid("combatant", "%s is already registered", u.ID)
	}
	if !u.Alive() || u.MaxHP < u.HP {
		return invalid("combatant", "%s needs 0 < hp <= maxHp, got %d/%d", u.ID, u.HP, u.MaxHP)
	}
	if u.Side != core.SidePlayer && u.Side != core.SideEnemy {
		return invalid("side", "%q is not a side", u.Side)
	}
	if u.Controller == "" {
		u.Controller = core.ControllerAI
		if u.Side == core.SidePlayer {
			u.Controller = core.ControllerPlayer
		}
	}
	if u.Placed && !geo.InBounds(u.Pos, m.cfg.MapWidth, m.cfg.MapHeight) {
		return invalid("position", "(%g, %g) is off the map", u.Pos.X, u.Pos.Y)
	}
	return nil
}

// Place assigns a combatant's starting position during setup.
func (m *Manager) Place(sessionID, combatantID string, pos core.Position) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != core.PhaseSetup {
		return &PreconditionError{SessionID: sessionID, Reason: BlockWrongPhase}
	}
	c, ok := s.combatants[combatantID]
	if !ok {
		return &SessionExpiredError{SessionID: sessionID, EntityID: combatantID}
	}
	if !geo.InBounds(pos, m.cfg.MapWidth, m.cfg.MapHeight) {
		return invalid("position", "(%g, %g) is off the map", pos.X, pos.Y)
	}
	u := c.Base()
	u.Pos = pos
	u.Placed = true
	m.publish(s)
	return nil
}

// CompleteSetup closes the setup configuration. Both sides need a combatant and the
// player side needs a player-controlled one.
func (m *Manager) CompleteSetup(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != core.PhaseSetup {
		return &PreconditionError{SessionID: sessionID, Reason: BlockWrongPhase}
	}

	var missing []string
	if len(s.actors(core.ControllerPlayer)) == 0 {
		missing = append(missing, "no player-controlled combatant")
	}
	if s.aliveCount(core.SideEnemy) == 0 {
		missing = append(missing, "no enemy combatant")
	}
	if len(missing) > 0 {
		return &PreconditionError{SessionID: sessionID, Reason: BlockSetupIncomplete, Detail: missing}
	}
	s.setupComplete = true
	return nil
}

// SetWeather changes the weather. During a battle the change applies at the start
// of the next round.
func (m *Manager) SetWeather(sessionID, weather string) error {
	w, err := combat.ParseWeather(weather)
	if err != nil {
		return &ValidationError{Field: "weather", Reason: err.Error()}
	}
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == core.PhaseSetup {
		s.weather = w
		m.publish(s)
		return nil
	}
	s.pendingWeather = w
	return nil
}

// StartBattle moves a session from setup to battle. Refusals are PreconditionErrors
// naming the reason and leave the session untouched.
func (m *Manager) StartBattle(sessionID, requesterID string) (err error) {
	defer m.guard(sessionID, "StartBattle", &err)

	if !m.deps.Authorizer.CanStart(requesterID) {
		return &PreconditionError{SessionID: sessionID, Reason: BlockNotAuthorized, Detail: []string{requesterID}}
	}
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return &PreconditionError{SessionID: sessionID, Reason: BlockBusy}
	}

	rec, msgs, err := m.begin(s)
	if err != nil {
		s.running.Store(false)
		return err
	}

	if m.deps.Recorder != nil {
		if err := m.deps.Recorder.StartBattle(&rec); err != nil {
			m.sessionLog(sessionID, "StartBattle", fmt.Sprintf("Error recording battle start: %v", err), "WARN")
		}
	}
	m.record(core.BattleEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Time:      rec.StartedAt,
		Type:      core.EventBattleStarted,
		Message:   msgs[0],
	})
	m.notify(sessionID, msgs)
	m.writeLog("StartBattle", fmt.Sprintf("Battle %s started by %s", sessionID, requesterID), "INFO")

	if m.deps.ExternalDrive {
		s.running.Store(false)
		return nil
	}
	m.loops.Add(1)
	go m.run(s)
	return nil
}

// begin validates the start preconditions and switches the phase. Objective setup
// runs before any state changes so a failure leaves the session in setup.
func (m *Manager) begin(s *session) (rec core.BattleRecord, msgs []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.ended():
		return rec, nil, &SessionExpiredError{SessionID: s.id}
	case s.phase != core.PhaseSetup:
		return rec, nil, &PreconditionError{SessionID: s.id, Reason: BlockWrongPhase, Detail: []string{string(s.phase)}}
	case !s.setupComplete:
		return rec, nil, &PreconditionError{SessionID: s.id, Reason: BlockSetupIncomplete}
	}

	var unplaced []string
	for _, id := range s.ids {
		if !s.combatants[id].Base().Placed {
			unplaced = append(unplaced, id)
		}
	}
	if len(unplaced) > 0 {
		return rec, nil, &PreconditionError{SessionID: s.id, Reason: BlockMissingPositions, Detail: unplaced}
	}

	if err := m.startObjective(s); err != nil {
		return rec, nil, err
	}
	if dt, ok := s.objective.(*objective.DestroyTarget); ok && !dt.Present() {
		return rec, nil, &PreconditionError{SessionID: s.id, Reason: BlockMissingTarget, Detail: []string{dt.TargetID}}
	}

	now := m.clock.Now()
	s.phase = core.PhaseBattle
	s.startedAt = now
	s.record = core.BattleRecord{
		SessionID:    s.id,
		Objective:    s.objective.Name(),
		StartedAt:    now,
		Participants: s.participants(),
	}
	m.publish(s)

	msgs = []string{fmt.Sprintf("Battle started! Objective: %s. Weather: %s.", s.objective.Name(), s.weather)}
	return s.record, msgs, nil
}

func (m *Manager) startObjective(s *session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(s.id, "objective start", r)
		}
	}()
	if st, ok := s.objective.(objective.Starter); ok {
		st.OnStart(s)
	}
	return nil
}

// Reinforce adds a combatant to a running or paused battle. It joins the turn order
// next round and ends a QRF pause at the next check.
func (m *Manager) Reinforce(sessionID string, c core.Combatant) (err error) {
	defer m.guard(sessionID, "Reinforce", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	msgs, err := func() ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ended() {
			return nil, &SessionExpiredError{SessionID: sessionID}
		}
		if err := m.validateNew(s, c); err != nil {
			return nil, err
		}
		u := c.Base()
		if !geo.InBounds(u.Pos, m.cfg.MapWidth, m.cfg.MapHeight) {
			return nil, invalid("position", "(%g, %g) is off the map", u.Pos.X, u.Pos.Y)
		}
		u.Placed = true
		s.add(c)
		if s.phase == core.PhaseSetup {
			m.publish(s)
			return nil, nil
		}
		msg := fmt.Sprintf("%s joins the battle as reinforcement!", u.Name)
		m.record(m.event(s, core.EventReinforcement, u.ID, "", 0, msg))
		m.publish(s)
		return []string{msg}, nil
	}()
	if err != nil {
		return err
	}

	s.notifyWake()
	m.notify(sessionID, msgs)
	return nil
}

// EndBattle settles the session with the evaluator's verdict, or as aborted when the
// battle is undecided. Calling it on a settled session is a no-op.
func (m *Manager) EndBattle(sessionID string) (err error) {
	defer m.guard(sessionID, "EndBattle", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil
		}
		return err
	}
	m.settle(s, func() objective.Outcome {
		if out := objective.Evaluate(s, s.objective); out.Ended {
			return out
		}
		return objective.Aborted()
	}, "")
	return nil
}

// Abort settles the session with an aborted outcome. Calling it on a settled session
// is a no-op.
func (m *Manager) Abort(sessionID, reason string) (err error) {
	defer m.guard(sessionID, "Abort", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil
		}
		return err
	}
	m.settle(s, objective.Aborted, reason)
	return nil
}

// Wait blocks until the session is settled or ctx is done.
func (m *Manager) Wait(ctx context.Context, sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil
		}
		return err
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown aborts every session and waits for their loops to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, id := range m.ActiveSessions() {
		_ = m.Abort(id, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish stores the session snapshot in the cache. Callers hold s.mu.
func (m *Manager) publish(s *session) {
	m.deps.Cache.Set(s.snapshot(m.clock.Now()))
}

// notify is best-effort: failures are logged and never reach the loop.
func (m *Manager) notify(sessionID string, messages []string) {
	if len(messages) == 0 || m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.Notify(sessionID, messages); err != nil {
		m.writeLog("notify", fmt.Sprintf("Error notifying session %s: %v", sessionID, err), "WARN")
	}
}

func (m *Manager) refresh(snap core.Snapshot) {
	if m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.RequestRefresh(snap); err != nil {
		m.writeLog("refresh", fmt.Sprintf("Error refreshing session %s: %v", snap.SessionID, err), "WARN")
	}
}

// event builds a battle event stamped with the session turn. Callers hold s.mu.
func (m *Manager) event(s *session, typ core.EventType, actorID, targetID string, damage int, msg string) core.BattleEvent {
	return core.BattleEvent{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Turn:      s.turn,
		Time:      m.clock.Now(),
		Type:      typ,
		ActorID:   actorID,
		TargetID:  targetID,
		Damage:    damage,
		Message:   msg,
	}
}

func (m *Manager) record(events ...core.BattleEvent) {
	if m.deps.Recorder == nil {
		return
	}
	for i := range events {
		if err := m.deps.Recorder.RecordEvent(&events[i]); err != nil {
			m.sessionLog(events[i].SessionID, "record", fmt.Sprintf("Error recording %s event: %v", events[i].Type, err), "WARN")
		}
	}
}
