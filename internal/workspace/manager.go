package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pbaille/jdc/internal/apiclient"
	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/logging"
	"github.com/pbaille/jdc/internal/session"
	syncengine "github.com/pbaille/jdc/internal/sync"
)

// Manager ties the item store, chat session, sync engine, and backend
// client together: initialization, workspace switches, create, rename,
// delete.
type Manager struct {
	store   *Store
	session *session.Session
	engine  *syncengine.Engine
	api     *apiclient.Client
	prefs   *Prefs
	logger  *slog.Logger
}

func NewManager(store *Store, sess *session.Session, engine *syncengine.Engine, api *apiclient.Client, prefs *Prefs, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		store:   store,
		session: sess,
		engine:  engine,
		api:     api,
		prefs:   prefs,
		logger:  logger,
	}
}

func (m *Manager) Store() *Store { return m.store }

// Init restores the persisted active workspace. A stored id that the
// backend no longer knows is discarded and a fresh workspace created; a
// generic network failure keeps the stored id for a later retry and
// leaves the client usable without persistence. Workspace creation
// failure also degrades to unpersisted local state.
func (m *Manager) Init(ctx context.Context) error {
	stored, err := m.prefs.ActiveWorkspace()
	if err != nil {
		m.logger.Debug("read workspace pref failed", "error", err)
	}

	if stored != "" {
		detail, err := m.api.LoadWorkspace(ctx, stored)
		if err == nil {
			m.hydrate(detail)
			return nil
		}
		if !errors.Is(err, apiclient.ErrWorkspaceNotFound) {
			m.logger.Warn("workspace load failed, continuing without persistence", "id", stored, "error", err)
			m.engine.Prime()
			return nil
		}
		// Stale id: fall through to creation.
		if err := m.prefs.Clear(); err != nil {
			m.logger.Debug("clear workspace pref failed", "error", err)
		}
	}

	detail, err := m.api.CreateWorkspace(ctx, "")
	if err != nil {
		m.logger.Warn("workspace create failed, continuing without persistence", "error", err)
		m.engine.Prime()
		return nil
	}
	m.hydrate(detail)
	return nil
}

// Switch saves the outgoing workspace, then loads the target. The save
// attempt always happens before the incoming items become visible; its
// failure is tolerated rather than blocking the switch.
func (m *Manager) Switch(ctx context.Context, id string) error {
	if id == m.store.WorkspaceID() {
		return nil
	}
	m.flushOutgoing(ctx)

	detail, err := m.api.LoadWorkspace(ctx, id)
	if err != nil {
		return fmt.Errorf("switch workspace: %w", err)
	}
	m.store.ResetForSwitch()
	m.session.Reset()
	m.hydrate(detail)
	return nil
}

// CreateAndSwitch saves the outgoing workspace, then creates and
// activates a new one.
func (m *Manager) CreateAndSwitch(ctx context.Context, name string) (*domain.WorkspaceDetail, error) {
	m.flushOutgoing(ctx)

	detail, err := m.api.CreateWorkspace(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	m.store.ResetForSwitch()
	m.session.Reset()
	m.hydrate(detail)
	return detail, nil
}

// Rename updates the workspace name remotely, reverting the local name
// if the backend rejects it.
func (m *Manager) Rename(ctx context.Context, name string) error {
	id := m.store.WorkspaceID()
	if id == "" {
		m.store.SetWorkspaceName(name)
		return nil
	}
	previous := m.store.WorkspaceName()
	m.store.SetWorkspaceName(name)
	if _, err := m.api.RenameWorkspace(ctx, id, name); err != nil {
		m.store.SetWorkspaceName(previous)
		return fmt.Errorf("rename workspace: %w", err)
	}
	return nil
}

// Delete removes a workspace. Deleting the active one falls back to
// creating a fresh workspace.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.api.DeleteWorkspace(ctx, id); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if id != m.store.WorkspaceID() {
		return nil
	}
	if err := m.prefs.Clear(); err != nil {
		m.logger.Debug("clear workspace pref failed", "error", err)
	}
	m.store.ResetForSwitch()
	m.session.Reset()
	detail, err := m.api.CreateWorkspace(ctx, "")
	if err != nil {
		m.logger.Warn("replacement workspace create failed", "error", err)
		m.engine.Prime()
		return nil
	}
	m.hydrate(detail)
	return nil
}

func (m *Manager) flushOutgoing(ctx context.Context) {
	if err := m.engine.Flush(ctx); err != nil {
		// Accepted data-loss window: the switch proceeds regardless.
		m.logger.Warn("flush before switch failed", "workspace", m.store.WorkspaceID(), "error", err)
	}
}

func (m *Manager) hydrate(detail *domain.WorkspaceDetail) {
	m.store.LoadFrom(detail)
	m.session.LoadHistory(detail.ChatMessages)
	m.engine.Prime()
	if err := m.prefs.SetActiveWorkspace(detail.ID); err != nil {
		m.logger.Debug("persist workspace pref failed", "error", err)
	}
}
