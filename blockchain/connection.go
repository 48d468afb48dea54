package blockchain

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Trigger says who asked for a connect.
type Trigger int

const (
	TriggerUser Trigger = iota
	TriggerSystem
)

// Connection is the wallet connection. It is replaced wholesale, never
// mutated after it has been published.
type Connection struct {
	Address           string `json:"address"`
	ChainID           string `json:"chainId"`
	IsExpectedNetwork bool   `json:"isExpectedNetwork"`
}

// Snapshot is a consistent view of the manager.
type Snapshot struct {
	State        State
	Connection   *Connection
	ChainID      string
	WrongNetwork bool
}

// Manager reconciles wallet state with the gateway.
type Manager struct {
	gw      Gateway
	network Network
	flags   FlagStore
	log     *zap.Logger

	mu            sync.Mutex
	conn          *Connection
	inflight      int // connects awaiting the wallet
	chainID       string
	wrongNetwork  bool
	autoAttempted bool
	listeners     []func(Snapshot)
}

// NewManager builds a manager for the expected network. A nil flag store
// keeps the flag in memory.
func NewManager(gw Gateway, network Network, flags FlagStore, log *zap.Logger) *Manager {
	if flags == nil {
		flags = &MemoryFlagStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{gw: gw, network: network, flags: flags, log: log}
}

func (m *Manager) Network() Network { return m.network }

// OnChange registers fn to be called after every state change.
func (m *Manager) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{ChainID: m.chainID, WrongNetwork: m.wrongNetwork}
	if m.conn != nil {
		c := *m.conn
		s.Connection = &c
	}
	switch {
	case m.inflight > 0:
		s.State = Connecting
	case m.conn != nil:
		s.State = Connected
	default:
		s.State = Disconnected
	}
	return s
}

// unlockAndNotify releases the lock and tells listeners about the new state.
func (m *Manager) unlockAndNotify() {
	snap := m.snapshotLocked()
	listeners := append([]func(Snapshot){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Connect asks the wallet for accounts and the chain id. A user connect
// while another connect is in flight returns immediately. The state stays
// Connecting until every in-flight connect has returned. On failure a user
// connect resets to Disconnected while a system connect keeps whatever
// state an event already established.
func (m *Manager) Connect(ctx context.Context, trigger Trigger) error {
	m.mu.Lock()
	if m.inflight > 0 && trigger == TriggerUser {
		m.mu.Unlock()
		m.log.Debug("connect already in progress")
		return nil
	}
	m.inflight++
	m.unlockAndNotify()

	conn, err := m.dial(ctx)

	m.mu.Lock()
	m.inflight--
	if err != nil {
		if trigger == TriggerUser {
			m.conn = nil
		}
		m.unlockAndNotify()
		m.log.Warn("wallet connect failed", zap.Error(err), zap.Bool("user", trigger == TriggerUser))
		return err
	}
	m.conn = conn
	m.chainID = conn.ChainID
	m.wrongNetwork = !conn.IsExpectedNetwork
	m.unlockAndNotify()

	if trigger == TriggerUser {
		if err := m.flags.SetManuallyDisconnected(false); err != nil {
			m.log.Warn("clear disconnect flag", zap.Error(err))
		}
	}
	m.log.Info("wallet connected",
		zap.String("address", conn.Address),
		zap.String("chain_id", conn.ChainID),
		zap.Bool("expected_network", conn.IsExpectedNetwork))
	return nil
}

func (m *Manager) dial(ctx context.Context) (*Connection, error) {
	accounts, err := requestAccounts(ctx, m.gw, "eth_requestAccounts")
	if err != nil {
		return nil, errors.Wrap(err, "eth_requestAccounts")
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	chainID, err := requestChainID(ctx, m.gw)
	if err != nil {
		return nil, errors.Wrap(err, "eth_chainId")
	}
	return &Connection{
		Address:           strings.ToLower(accounts[0]),
		ChainID:           NormalizeChainID(chainID),
		IsExpectedNetwork: m.network.IsExpected(chainID),
	}, nil
}

// Disconnect clears the connection and persists the manual flag so that
// AutoConnect stays quiet until the user or the wallet says otherwise.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.conn = nil
	m.wrongNetwork = false
	m.unlockAndNotify()
	m.log.Info("wallet disconnected")
	return m.flags.SetManuallyDisconnected(true)
}

// AutoConnect is the passive connect run on startup. It reports whether a
// connect was attempted.
func (m *Manager) AutoConnect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	skip := m.conn != nil || m.inflight > 0 || m.autoAttempted
	m.mu.Unlock()
	if skip || m.flags.ManuallyDisconnected() {
		return false, nil
	}

	accounts, err := requestAccounts(ctx, m.gw, "eth_accounts")
	if err != nil {
		return false, errors.Wrap(err, "eth_accounts")
	}
	if len(accounts) == 0 {
		return false, nil
	}

	m.mu.Lock()
	if m.autoAttempted || m.conn != nil || m.inflight > 0 {
		m.mu.Unlock()
		return false, nil
	}
	m.autoAttempted = true
	m.mu.Unlock()

	return true, m.Connect(ctx, TriggerSystem)
}

// HandleAccountsChanged reconciles an accountsChanged event.
func (m *Manager) HandleAccountsChanged(ctx context.Context, accounts []string) error {
	if len(accounts) == 0 {
		m.log.Info("wallet reported no accounts")
		return m.Disconnect()
	}

	m.mu.Lock()
	current := ""
	if m.conn != nil {
		current = m.conn.Address
	}
	m.mu.Unlock()

	if strings.EqualFold(accounts[0], current) {
		return nil
	}
	if err := m.flags.SetManuallyDisconnected(false); err != nil {
		m.log.Warn("clear disconnect flag", zap.Error(err))
	}
	m.log.Info("wallet account switched", zap.String("address", strings.ToLower(accounts[0])))
	return m.Connect(ctx, TriggerSystem)
}

// HandleChainChanged reconciles a chainChanged event.
func (m *Manager) HandleChainChanged(ctx context.Context, chainID string) error {
	expected := m.network.IsExpected(chainID)

	m.mu.Lock()
	m.chainID = NormalizeChainID(chainID)
	m.wrongNetwork = !expected
	wasConnected := m.conn != nil
	if wasConnected {
		m.conn = &Connection{
			Address:           m.conn.Address,
			ChainID:           m.chainID,
			IsExpectedNetwork: expected,
		}
	}
	m.unlockAndNotify()

	if !expected {
		m.log.Warn("wallet switched to unexpected network",
			zap.String("chain_id", chainID), zap.String("expected", m.network.ChainID))
	}
	if !wasConnected {
		return nil
	}
	return m.Connect(ctx, TriggerSystem)
}

// SwitchNetwork asks the wallet to move to the expected network, adding it
// first when the wallet does not know it.
func (m *Manager) SwitchNetwork(ctx context.Context) error {
	_, err := m.gw.Request(ctx, "wallet_switchEthereumChain",
		map[string]string{"chainId": m.network.ChainID})
	if IsUnknownChain(err) {
		m.log.Info("network unknown to wallet, adding it", zap.String("chain", m.network.ChainName))
		_, err = m.gw.Request(ctx, "wallet_addEthereumChain", m.network)
		if err != nil {
			return errors.Wrapf(err, "add network %s", m.network.ChainName)
		}
	} else if err != nil {
		return errors.Wrapf(err, "switch to %s", m.network.ChainName)
	}
	return m.Connect(ctx, TriggerUser)
}

// Signer returns a signer for the connected account.
func (m *Manager) Signer() (Signer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil, ErrNotConnected
	}
	if !m.conn.IsExpectedNetwork {
		return nil, ErrWrongNetwork
	}
	return NewGatewaySigner(m.gw, m.conn.Address), nil
}

// Sync reads the current chain and tries a passive connect. Failures are
// logged, not returned.
func (m *Manager) Sync(ctx context.Context) {
	if chainID, err := requestChainID(ctx, m.gw); err != nil {
		m.log.Warn("initial chain check failed", zap.Error(err))
	} else {
		m.mu.Lock()
		m.chainID = NormalizeChainID(chainID)
		m.wrongNetwork = !m.network.IsExpected(chainID)
		m.unlockAndNotify()
	}
	if _, err := m.AutoConnect(ctx); err != nil {
		m.log.Warn("auto connect failed", zap.Error(err))
	}
}

// Run syncs and then applies gateway events until ctx is done or the stream
// ends. Event handling errors are logged; they never stop the loop.
func (m *Manager) Run(ctx context.Context) error {
	m.Sync(ctx)

	events := m.gw.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			var err error
			switch ev.Kind {
			case AccountsChanged:
				err = m.HandleAccountsChanged(ctx, ev.Accounts)
			case ChainChanged:
				err = m.HandleChainChanged(ctx, ev.ChainID)
			}
			if err != nil {
				m.log.Warn("reconcile wallet event", zap.String("kind", string(ev.Kind)), zap.Error(err))
			}
		}
	}
}
