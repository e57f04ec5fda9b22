package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/entitysync"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/form"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/notifications"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/schema"
)

const (
	sessionName            = "dispatch_console"
	sessionKeyWorkspaceID  = "workspace_id"
	sessionCookiePath      = "/"
	logEventLoadSession    = "load_session"
	logEventSaveSession    = "save_session"
	logEventWorkspaceOpen  = "open_workspace"
	logEventEphemeralKey   = "session_secret_missing"
	workspaceLoggerFieldID = "workspace"
)

// ErrMissingWorkspaceDependency is returned when the registry is built without its collaborators.
var ErrMissingWorkspaceDependency = errors.New("httpapi: workspace registry is missing a dependency")

// WorkspaceConfig wires a WorkspaceRegistry.
type WorkspaceConfig struct {
	Backend              entitysync.Backend
	Registry             *schema.Registry
	Clock                clockwork.Clock
	Deadline             time.Duration
	NotificationDuration time.Duration
	SessionSecret        string
	SecureCookies        bool
	Logger               *zap.Logger
}

// Workspace is the console state of one browser: its banner, its controller and the forms it shows.
type Workspace struct {
	id         string
	channel    *notifications.Channel
	controller *entitysync.Controller

	mutex          sync.Mutex
	lastSeen       time.Time
	selectedSystem string
	systems        []model.EntitySummary
	refreshedAt    time.Time
	instances      map[string]*form.Instance
	drafts         map[model.EntityKind]*form.Instance
}

// WorkspaceRegistry hands every browser session its own Workspace, located through a signed cookie.
type WorkspaceRegistry struct {
	config       WorkspaceConfig
	sessionStore *sessions.CookieStore

	mutex      sync.Mutex
	workspaces map[string]*Workspace
}

func NewWorkspaceRegistry(config WorkspaceConfig) (*WorkspaceRegistry, error) {
	if config.Backend == nil || config.Registry == nil {
		return nil, ErrMissingWorkspaceDependency
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	secret := config.SessionSecret
	if secret == "" {
		// Sessions do not survive a restart without a configured secret.
		config.Logger.Warn(logEventEphemeralKey)
		secret = uuid.NewString() + uuid.NewString()
	}
	sessionStore := sessions.NewCookieStore([]byte(secret))
	sessionStore.Options = &sessions.Options{
		Path:     sessionCookiePath,
		HttpOnly: true,
		Secure:   config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return &WorkspaceRegistry{
		config:       config,
		sessionStore: sessionStore,
		workspaces:   make(map[string]*Workspace),
	}, nil
}

// Resolve returns the workspace of the requesting browser, creating one and setting its cookie when needed.
func (registry *WorkspaceRegistry) Resolve(context *gin.Context) (*Workspace, error) {
	session, sessionErr := registry.sessionStore.Get(context.Request, sessionName)
	if sessionErr != nil {
		// A cookie signed with another secret yields a fresh session.
		registry.config.Logger.Warn(logEventLoadSession, zap.Error(sessionErr))
	}
	workspaceID, _ := session.Values[sessionKeyWorkspaceID].(string)

	registry.mutex.Lock()
	workspace, found := registry.workspaces[workspaceID]
	if !found {
		if workspaceID == "" {
			workspaceID = uuid.NewString()
		}
		var createErr error
		workspace, createErr = registry.newWorkspace(workspaceID)
		if createErr != nil {
			registry.mutex.Unlock()
			return nil, createErr
		}
		registry.workspaces[workspaceID] = workspace
	}
	registry.mutex.Unlock()
	workspace.touch(registry.config.Clock.Now())

	if session.Values[sessionKeyWorkspaceID] != workspaceID {
		session.Values[sessionKeyWorkspaceID] = workspaceID
		if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
			registry.config.Logger.Warn(logEventSaveSession, zap.Error(saveErr))
		}
	}
	return workspace, nil
}

// SweepIdle discards workspaces not used since cutoff and returns how many were dropped.
func (registry *WorkspaceRegistry) SweepIdle(cutoff time.Time) int {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	swept := 0
	for workspaceID, workspace := range registry.workspaces {
		if !workspace.idleSince(cutoff) {
			continue
		}
		workspace.channel.Dismiss()
		delete(registry.workspaces, workspaceID)
		swept++
	}
	return swept
}

// Len returns the number of live workspaces.
func (registry *WorkspaceRegistry) Len() int {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return len(registry.workspaces)
}

func (registry *WorkspaceRegistry) newWorkspace(workspaceID string) (*Workspace, error) {
	logger := registry.config.Logger.With(zap.String(workspaceLoggerFieldID, workspaceID))
	channel := notifications.NewChannel(registry.config.Clock, registry.config.NotificationDuration, logger)
	controller, controllerErr := entitysync.NewController(entitysync.Config{
		Backend:  registry.config.Backend,
		Registry: registry.config.Registry,
		Notifier: channel,
		Clock:    registry.config.Clock,
		Deadline: registry.config.Deadline,
		Logger:   logger,
	})
	if controllerErr != nil {
		return nil, fmt.Errorf("open workspace: %w", controllerErr)
	}
	logger.Info(logEventWorkspaceOpen)
	return &Workspace{
		id:         workspaceID,
		channel:    channel,
		controller: controller,
		instances:  make(map[string]*form.Instance),
		drafts:     make(map[model.EntityKind]*form.Instance),
	}, nil
}

func (workspace *Workspace) ID() string {
	return workspace.id
}

// Notifications returns the banner channel of the workspace.
func (workspace *Workspace) Notifications() *notifications.Channel {
	return workspace.channel
}

func (workspace *Workspace) Controller() *entitysync.Controller {
	return workspace.controller
}

// SelectedSystem returns the id of the system shown in the accordion, or "".
func (workspace *Workspace) SelectedSystem() string {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.selectedSystem
}

// Select shows systemID. Switching to another system discards the forms of the previous one.
func (workspace *Workspace) Select(systemID string) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	if workspace.selectedSystem == systemID {
		return
	}
	workspace.selectedSystem = systemID
	workspace.instances = make(map[string]*form.Instance)
	delete(workspace.drafts, model.KindAgency)
}

// Instance returns the form of ref, creating an empty one on first use.
func (workspace *Workspace) Instance(catalog schema.Catalog, ref model.EntityRef) *form.Instance {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	key := ref.Key()
	if instance, found := workspace.instances[key]; found {
		return instance
	}
	instance := form.NewInstance(catalog, ref)
	workspace.instances[key] = instance
	return instance
}

// Forget drops the form of ref.
func (workspace *Workspace) Forget(ref model.EntityRef) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	delete(workspace.instances, ref.Key())
}

// Retain keeps only the forms of refs, so every visible entry owns exactly one instance.
func (workspace *Workspace) Retain(refs []model.EntityRef) {
	keep := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		keep[ref.Key()] = struct{}{}
	}
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	for key := range workspace.instances {
		if _, visible := keep[key]; !visible {
			delete(workspace.instances, key)
		}
	}
}

// Children returns the forms of kind owned by parentID in insertion-independent id order.
func (workspace *Workspace) Children(kind model.EntityKind, parentID string) []*form.Instance {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	var children []*form.Instance
	for _, instance := range workspace.instances {
		ref := instance.Ref()
		if ref.Kind == kind && ref.ParentID == parentID && !ref.IsNew() {
			children = append(children, instance)
		}
	}
	sortInstances(children)
	return children
}

// Draft returns the unsaved add form of kind, if one is pending.
func (workspace *Workspace) Draft(kind model.EntityKind) *form.Instance {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.drafts[kind]
}

func (workspace *Workspace) SetDraft(draft *form.Instance) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	workspace.drafts[draft.Ref().Kind] = draft
}

func (workspace *Workspace) ClearDraft(kind model.EntityKind) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	delete(workspace.drafts, kind)
}

// Systems returns the system list of the last render.
func (workspace *Workspace) Systems() []model.EntitySummary {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return append([]model.EntitySummary(nil), workspace.systems...)
}

// SystemsRefreshedAt reports when the system list was last fetched from the backend.
func (workspace *Workspace) SystemsRefreshedAt() time.Time {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.refreshedAt
}

func (workspace *Workspace) rememberSystems(systems []model.EntitySummary, now time.Time) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	workspace.systems = append([]model.EntitySummary(nil), systems...)
	workspace.refreshedAt = now
}

func (workspace *Workspace) touch(now time.Time) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	workspace.lastSeen = now
}

func (workspace *Workspace) idleSince(cutoff time.Time) bool {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.lastSeen.Before(cutoff)
}
